package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"skillswap/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPusher struct {
	mu     sync.Mutex
	pushed []models.Notification
	err    error
}

func (p *stubPusher) PushNotification(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, *n)
	return p.err
}

func messagesFor(t *testing.T, svc *NotificationService, userID string) []string {
	t.Helper()
	list, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.Message)
	}
	return out
}

func TestSessionMessage(t *testing.T) {
	assert.Equal(t, "Session Confirmed", SessionMessage(models.BookingConfirmed))
	assert.Equal(t, "Session Ongoing", SessionMessage(models.BookingOngoing))
	assert.Equal(t, "Session Cancelled", SessionMessage(models.BookingCancelled))
}

func TestNotificationService_BookingCreatedNotifiesBoth(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	pusher := &stubPusher{}
	notes := NewNotificationService(env.notifications, pusher)
	bookings := env.bookingService()
	bookings.Subscribe(notes)
	ctx := context.Background()

	b, err := bookings.Create(ctx, CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-12"})
	require.NoError(t, err)

	assert.Equal(t, []string{MsgNewBookingRequest}, messagesFor(t, notes, teacher.ID))
	assert.Equal(t, []string{MsgBookingCreated}, messagesFor(t, notes, learner.ID))
	require.Len(t, pusher.pushed, 2)
	require.NotNil(t, pusher.pushed[0].BookingID)
	assert.Equal(t, b.ID, *pusher.pushed[0].BookingID)
}

func TestNotificationService_DedupWhileUnread(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	notes := NewNotificationService(env.notifications, nil)
	bookings := env.bookingService()
	bookings.Subscribe(notes)
	ctx := context.Background()

	b, err := bookings.Create(ctx, CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-12"})
	require.NoError(t, err)

	// The learner still has the unread "created" notice, so the confirmation is skipped.
	_, err = bookings.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: models.BookingConfirmed})
	require.NoError(t, err)
	assert.Equal(t, []string{MsgBookingCreated}, messagesFor(t, notes, learner.ID))

	list, err := notes.List(ctx, learner.ID)
	require.NoError(t, err)
	require.NoError(t, notes.MarkRead(ctx, learner.ID, list[0].ID))

	_, err = bookings.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: models.BookingOngoing})
	require.NoError(t, err)
	assert.Contains(t, messagesFor(t, notes, learner.ID), "Session Ongoing")

	// The actor is never notified of their own transition.
	assert.Equal(t, []string{MsgNewBookingRequest}, messagesFor(t, notes, teacher.ID))
}

func TestNotificationService_CounterpartOfLearnerAction(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	notes := NewNotificationService(env.notifications, nil)
	ctx := context.Background()

	b := models.Booking{ID: "b1", SkillID: skill.ID, LearnerID: learner.ID, TeacherID: teacher.ID, Status: models.BookingCancelled}
	require.NoError(t, notes.OnBookingEvent(ctx, BookingEvent{Type: BookingStatusChanged, Booking: b, Previous: models.BookingPending, ActorID: learner.ID}))
	assert.Equal(t, []string{"Session Cancelled"}, messagesFor(t, notes, teacher.ID))
	assert.Empty(t, messagesFor(t, notes, learner.ID))

	// Unknown actors produce nothing.
	require.NoError(t, notes.OnBookingEvent(ctx, BookingEvent{Type: BookingStatusChanged, Booking: b, ActorID: "someone"}))
	assert.Len(t, messagesFor(t, notes, teacher.ID), 1)
}

func TestNotificationService_PushFailureStillStores(t *testing.T) {
	env := newTestEnv(t)
	notes := NewNotificationService(env.notifications, &stubPusher{err: errors.New("redis down")})
	ctx := context.Background()

	require.NoError(t, notes.Notify(ctx, "u1", "b1", "hello"))
	count, err := notes.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestNotificationService_ReadAndClear(t *testing.T) {
	env := newTestEnv(t)
	notes := NewNotificationService(env.notifications, nil)
	ctx := context.Background()

	require.NoError(t, notes.Notify(ctx, "u1", "b1", "one"))
	require.NoError(t, notes.Notify(ctx, "u1", "b2", "two"))
	require.NoError(t, notes.Notify(ctx, "u2", "b1", "other"))

	list, err := notes.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	err = notes.MarkRead(ctx, "u2", list[0].ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	require.NoError(t, notes.MarkRead(ctx, "u1", list[0].ID))
	count, err := notes.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	n, err := notes.ClearAll(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Empty(t, messagesFor(t, notes, "u1"))
	assert.Len(t, messagesFor(t, notes, "u2"), 1)
}
