package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	events []BookingEvent
	err    error
}

func (r *recordingObserver) OnBookingEvent(_ context.Context, ev BookingEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestBookingService_CreateStartsPending(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	svc := env.bookingService()
	obs := &recordingObserver{}
	svc.Subscribe(obs)

	b, err := svc.Create(context.Background(), CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-12"})
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.Equal(t, teacher.ID, b.TeacherID)
	assert.Equal(t, learner.ID, b.LearnerID)
	assert.Nil(t, b.StartTime)
	assert.Nil(t, b.EndTime)

	require.Len(t, obs.events, 1)
	assert.Equal(t, BookingCreated, obs.events[0].Type)
	assert.Equal(t, b.ID, obs.events[0].Booking.ID)
}

func TestBookingService_CreateRejects(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	svc := env.bookingService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateBookingInput
		code string
	}{
		{"own skill", CreateBookingInput{LearnerID: teacher.ID, SkillID: skill.ID, Date: "2025-03-12"}, models.CodeValidation},
		{"bad date", CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "12/03/2025"}, models.CodeValidation},
		{"past date", CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-09"}, models.CodeValidation},
		{"unknown skill", CreateBookingInput{LearnerID: learner.ID, SkillID: "missing", Date: "2025-03-12"}, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, models.ErrorCode(err))
		})
	}

	all, err := env.bookings.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBookingService_FullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	svc := env.bookingService()
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-10"})
	require.NoError(t, err)

	b, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: models.BookingConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.Status)
	assert.Nil(t, b.StartTime)

	b, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: learner.ID, Status: models.BookingOngoing})
	require.NoError(t, err)
	require.NotNil(t, b.StartTime)
	assert.True(t, b.StartTime.Equal(fixedNow))
	assert.Nil(t, b.EndTime)

	b, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: models.BookingCompleted})
	require.NoError(t, err)
	require.NotNil(t, b.EndTime)

	stored, err := env.bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, stored.Status)
	require.NotNil(t, stored.StartTime)
	require.NotNil(t, stored.EndTime)
	assert.False(t, stored.EndTime.Before(*stored.StartTime))

	// Terminal: nothing leaves completed.
	for _, to := range []models.BookingStatus{models.BookingPending, models.BookingConfirmed, models.BookingOngoing, models.BookingCancelled} {
		_, err := svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: to})
		require.Error(t, err, "completed -> %s", to)
		assert.True(t, errors.Is(err, models.ErrIllegalTransition))
		assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
	}
}

func TestBookingService_IllegalTransitionsLeaveBookingUntouched(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	svc := env.bookingService()
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-11"})
	require.NoError(t, err)

	for _, to := range []models.BookingStatus{models.BookingOngoing, models.BookingCompleted, models.BookingPending} {
		_, err := svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: to})
		var te *models.TransitionError
		require.ErrorAs(t, err, &te, "pending -> %s", to)
		assert.Equal(t, models.BookingPending, te.From)
		assert.Equal(t, to, te.To)
	}

	stored, err := env.bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, stored.Status)
	assert.Nil(t, stored.StartTime)
	assert.Nil(t, stored.EndTime)

	_, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: learner.ID, Status: models.BookingCancelled})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: models.BookingConfirmed})
	assert.ErrorIs(t, err, models.ErrIllegalTransition)
}

// racingBookings runs beforeWrite once, after the service has read the
// booking and before its conditional write.
type racingBookings struct {
	repository.BookingRepository
	beforeWrite func()
}

func (r *racingBookings) UpdateFromStatus(ctx context.Context, id string, from models.BookingStatus, fields map[string]any) (bool, error) {
	if f := r.beforeWrite; f != nil {
		r.beforeWrite = nil
		f()
	}
	return r.BookingRepository.UpdateFromStatus(ctx, id, from, fields)
}

func TestBookingService_StaleTransitionCannotLeaveTerminalState(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	ctx := context.Background()
	svc := env.bookingService()

	b, err := svc.Create(ctx, CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-10"})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: models.BookingConfirmed})
	require.NoError(t, err)

	racing := &racingBookings{BookingRepository: env.bookings}
	stale := NewBookingService(racing, env.skills).WithClock(func() time.Time { return fixedNow })
	obs := &recordingObserver{}
	stale.Subscribe(obs)

	// The teacher runs the session to completion while the learner's cancel
	// is between its read and its write.
	racing.beforeWrite = func() {
		for _, to := range []models.BookingStatus{models.BookingOngoing, models.BookingCompleted} {
			_, err := svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: to})
			require.NoError(t, err)
		}
	}

	_, err = stale.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: learner.ID, Status: models.BookingCancelled})
	require.ErrorIs(t, err, models.ErrIllegalTransition)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
	var te *models.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.BookingCompleted, te.From)
	assert.Empty(t, obs.events, "a lost write publishes nothing")

	stored, err := env.bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, stored.Status)
	assert.NotNil(t, stored.StartTime)
	assert.NotNil(t, stored.EndTime)
}

func TestBookingService_TransitionActors(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	stranger := env.createUser(t, "stranger", models.RoleStudent)
	svc := env.bookingService()
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-11"})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: stranger.ID, Status: models.BookingCancelled})
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))

	_, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: learner.ID, Status: models.BookingConfirmed})
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))

	_, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: "archived"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = svc.Transition(ctx, TransitionInput{BookingID: "missing", ActorID: teacher.ID, Status: models.BookingConfirmed})
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	_, err = svc.Get(ctx, b.ID, stranger.ID)
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))
	got, err := svc.Get(ctx, b.ID, learner.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestBookingService_ObserverFailureKeepsWrite(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	svc := env.bookingService()
	obs := &recordingObserver{err: errors.New("push failed")}
	svc.Subscribe(obs)
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateBookingInput{LearnerID: learner.ID, SkillID: skill.ID, Date: "2025-03-11"})
	require.NoError(t, err)
	b, err = svc.Transition(ctx, TransitionInput{BookingID: b.ID, ActorID: teacher.ID, Status: models.BookingConfirmed})
	require.NoError(t, err)

	require.Len(t, obs.events, 2)
	last := obs.events[1]
	assert.Equal(t, BookingStatusChanged, last.Type)
	assert.Equal(t, models.BookingPending, last.Previous)
	assert.Equal(t, models.BookingConfirmed, last.Booking.Status)
	assert.Equal(t, teacher.ID, last.ActorID)

	stored, err := env.bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, stored.Status)
}

func TestBookingService_ListViews(t *testing.T) {
	env := newTestEnv(t)
	teacher, learner, skill := env.pair(t)
	svc := env.bookingService()
	ctx := context.Background()

	put := func(date string, status models.BookingStatus) string {
		b := &models.Booking{SkillID: skill.ID, LearnerID: learner.ID, TeacherID: teacher.ID, Date: date, Status: status}
		require.NoError(t, env.bookings.Put(ctx, b))
		return b.ID
	}
	yesterday := put("2025-03-09", models.BookingConfirmed)
	today := put("2025-03-10", models.BookingPending)
	doneToday := put("2025-03-10", models.BookingCompleted)
	tomorrow := put("2025-03-11", models.BookingCancelled)

	ids := func(bs []models.Booking) []string {
		out := make([]string, 0, len(bs))
		for _, b := range bs {
			out = append(out, b.ID)
		}
		return out
	}

	all, err := svc.ListForUser(ctx, teacher.ID, BookingViewAll)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	upcoming, err := svc.ListForUser(ctx, learner.ID, BookingViewUpcoming)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{today, tomorrow}, ids(upcoming))

	past, err := svc.ListForUser(ctx, learner.ID, BookingViewPast)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{yesterday, doneToday}, ids(past))

	_, err = ParseBookingView("later")
	assert.Error(t, err)
	v, err := ParseBookingView(" Upcoming ")
	require.NoError(t, err)
	assert.Equal(t, BookingViewUpcoming, v)
}
