package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()
	all := []BookingStatus{BookingPending, BookingConfirmed, BookingOngoing, BookingCompleted, BookingCancelled}
	allowed := map[[2]BookingStatus]bool{
		{BookingPending, BookingConfirmed}:   true,
		{BookingPending, BookingCancelled}:   true,
		{BookingConfirmed, BookingOngoing}:   true,
		{BookingConfirmed, BookingCancelled}: true,
		{BookingOngoing, BookingCompleted}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]BookingStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	t.Parallel()
	assert.True(t, BookingCompleted.IsTerminal())
	assert.True(t, BookingCancelled.IsTerminal())
	assert.False(t, BookingPending.IsTerminal())
	assert.Empty(t, NextStatuses(BookingCompleted))
	assert.Empty(t, NextStatuses(BookingCancelled))
	assert.ElementsMatch(t, []BookingStatus{BookingConfirmed, BookingCancelled}, NextStatuses(BookingPending))
}

func TestTransitionError_Is(t *testing.T) {
	t.Parallel()
	var err error = &TransitionError{From: BookingCompleted, To: BookingOngoing}
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Contains(t, err.Error(), "completed")
}

func TestBooking_Participants(t *testing.T) {
	t.Parallel()
	b := &Booking{LearnerID: "l", TeacherID: "t"}

	assert.True(t, b.IsParticipant("l"))
	assert.True(t, b.IsParticipant("t"))
	assert.False(t, b.IsParticipant("x"))
	assert.False(t, b.IsParticipant(""))
	assert.Equal(t, "t", b.Counterpart("l"))
	assert.Equal(t, "l", b.Counterpart("t"))
	assert.Equal(t, "", b.Counterpart("x"))
	assert.Equal(t, RoleMentor, b.RoleOf("t"))
	assert.Equal(t, RoleStudent, b.RoleOf("l"))
}

func TestBooking_UpcomingAndPast(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		date     string
		status   BookingStatus
		upcoming bool
		past     bool
	}{
		{"today pending", "2026-03-10", BookingPending, true, false},
		{"future confirmed", "2026-04-01", BookingConfirmed, true, false},
		{"future completed", "2026-04-01", BookingCompleted, false, true},
		{"yesterday pending", "2026-03-09", BookingPending, false, true},
		{"future cancelled", "2026-04-01", BookingCancelled, true, false},
		{"malformed date", "soon", BookingPending, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Date: tt.date, Status: tt.status}
			assert.Equal(t, tt.upcoming, b.IsUpcoming(now))
			assert.Equal(t, tt.past, b.IsPast(now))
		})
	}
}

func TestSkillCategories(t *testing.T) {
	t.Parallel()
	cats := SkillCategories()
	assert.Len(t, cats, 12)
	assert.Equal(t, "Software Development", cats[0])
	assert.Equal(t, "Other", cats[len(cats)-1])

	c, ok := CanonicalCategory("  social skills ")
	assert.True(t, ok)
	assert.Equal(t, "Social Skills", c)

	_, ok = CanonicalCategory("Cooking")
	assert.False(t, ok)
}
