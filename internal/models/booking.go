package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStatus is a state in the booking lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingOngoing   BookingStatus = "ongoing"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// BookingDateLayout is the calendar-date format bookings are scheduled with.
const BookingDateLayout = "2006-01-02"

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingOngoing, BookingCancelled},
	BookingOngoing:   {BookingCompleted},
}

// ErrIllegalTransition is matched by every *TransitionError.
var ErrIllegalTransition = errors.New("illegal booking transition")

// TransitionError describes a rejected status change.
type TransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingOngoing, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s BookingStatus) []BookingStatus {
	out := make([]BookingStatus, len(bookingTransitions[s]))
	copy(out, bookingTransitions[s])
	return out
}

// Booking is a scheduled session between a learner and the skill's owner.
// Bookings are never physically deleted.
type Booking struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	SkillID   string        `gorm:"size:36;index;not null" json:"skill_id"`
	LearnerID string        `gorm:"size:36;index;not null" json:"learner_id"`
	TeacherID string        `gorm:"size:36;index;not null" json:"teacher_id"`
	Date      string        `gorm:"size:10;not null" json:"date"`
	Status    BookingStatus `gorm:"size:16;index;not null;default:pending" json:"status"`
	StartTime *time.Time    `json:"start_time,omitempty"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (b *Booking) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// IsParticipant reports whether userID is the learner or the teacher.
func (b *Booking) IsParticipant(userID string) bool {
	return userID != "" && (userID == b.LearnerID || userID == b.TeacherID)
}

// Counterpart returns the other participant, or "" if userID is not one.
func (b *Booking) Counterpart(userID string) string {
	switch userID {
	case b.LearnerID:
		return b.TeacherID
	case b.TeacherID:
		return b.LearnerID
	}
	return ""
}

// RoleOf returns the booking-side role of userID.
func (b *Booking) RoleOf(userID string) Role {
	if userID == b.TeacherID {
		return RoleMentor
	}
	return RoleStudent
}

// ScheduledDate parses Date; ok is false when it is malformed.
func (b *Booking) ScheduledDate() (time.Time, bool) {
	d, err := time.Parse(BookingDateLayout, b.Date)
	return d, err == nil
}

// IsUpcoming reports whether the booking belongs in the upcoming list as of now.
func (b *Booking) IsUpcoming(now time.Time) bool {
	d, ok := b.ScheduledDate()
	if !ok {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(today) && b.Status != BookingCompleted
}

// IsPast reports whether the booking belongs in the past list as of now.
func (b *Booking) IsPast(now time.Time) bool {
	if b.Status == BookingCompleted {
		return true
	}
	d, ok := b.ScheduledDate()
	if !ok {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d.Before(today)
}
