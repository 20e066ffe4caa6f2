package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/observability"
	"skillswap/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// BookingEventType names what happened to a booking.
type BookingEventType string

const (
	BookingCreated       BookingEventType = "booking.created"
	BookingStatusChanged BookingEventType = "booking.status_changed"
)

// BookingEvent is published to observers after a booking write succeeds.
type BookingEvent struct {
	Type     BookingEventType
	Booking  models.Booking
	Previous models.BookingStatus
	ActorID  string
}

// BookingObserver reacts to booking events. Errors are logged and never undo the write.
type BookingObserver interface {
	OnBookingEvent(ctx context.Context, ev BookingEvent) error
}

// BookingObserverFunc adapts a function to BookingObserver.
type BookingObserverFunc func(ctx context.Context, ev BookingEvent) error

func (f BookingObserverFunc) OnBookingEvent(ctx context.Context, ev BookingEvent) error {
	return f(ctx, ev)
}

// BookingView selects which bookings ListForUser returns.
type BookingView string

const (
	BookingViewAll      BookingView = "all"
	BookingViewUpcoming BookingView = "upcoming"
	BookingViewPast     BookingView = "past"
)

// BookingService owns the booking lifecycle.
type BookingService struct {
	bookings repository.BookingRepository
	skills   repository.SkillRepository
	now      func() time.Time

	mu        sync.RWMutex
	observers []BookingObserver
}

// CreateBookingInput is a learner's request for a session.
type CreateBookingInput struct {
	LearnerID string
	SkillID   string
	Date      string
}

// TransitionInput moves a booking to Status on behalf of ActorID.
type TransitionInput struct {
	BookingID string
	ActorID   string
	Status    models.BookingStatus
}

func NewBookingService(bookings repository.BookingRepository, skills repository.SkillRepository) *BookingService {
	return &BookingService{
		bookings: bookings,
		skills:   skills,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// Subscribe registers o for every subsequent booking event.
func (s *BookingService) Subscribe(o BookingObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *BookingService) publish(ctx context.Context, ev BookingEvent) {
	s.mu.RLock()
	observers := append([]BookingObserver(nil), s.observers...)
	s.mu.RUnlock()

	for _, o := range observers {
		if err := o.OnBookingEvent(ctx, ev); err != nil {
			middleware.Logger.WarnContext(ctx, "booking observer failed",
				slog.String("event", string(ev.Type)),
				slog.String("booking_id", ev.Booking.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Create books a skill's owner for a session on Date. The booking starts pending.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	date := strings.TrimSpace(in.Date)
	d, err := time.Parse(models.BookingDateLayout, date)
	if err != nil {
		return nil, models.NewValidationError("Date must be in YYYY-MM-DD format")
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		return nil, models.NewValidationError("Date must not be in the past")
	}

	skill, err := s.skills.Get(ctx, in.SkillID)
	if err != nil {
		return nil, err
	}
	if skill.UserID == in.LearnerID {
		return nil, models.NewValidationError("You cannot book your own skill")
	}

	booking := &models.Booking{
		SkillID:   skill.ID,
		LearnerID: in.LearnerID,
		TeacherID: skill.UserID,
		Date:      date,
		Status:    models.BookingPending,
	}
	if err := s.bookings.Put(ctx, booking); err != nil {
		return nil, err
	}

	s.publish(ctx, BookingEvent{Type: BookingCreated, Booking: *booking, ActorID: in.LearnerID})
	return booking, nil
}

// Transition applies one FSM step. Illegal steps return a CONFLICT wrapping *models.TransitionError.
func (s *BookingService) Transition(ctx context.Context, in TransitionInput) (*models.Booking, error) {
	span, ctx := observability.NewSpan(ctx, "booking.transition")
	defer span.End()
	span.AddAttributes(
		attribute.String("booking.id", in.BookingID),
		attribute.String("booking.to", string(in.Status)),
	)

	booking, err := s.transition(ctx, in)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) transition(ctx context.Context, in TransitionInput) (*models.Booking, error) {
	if !in.Status.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("Unknown booking status %q", in.Status))
	}

	booking, err := s.bookings.Get(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(in.ActorID) {
		return nil, models.NewForbiddenError("You are not a participant in this booking")
	}

	from := booking.Status
	if !models.CanTransition(from, in.Status) {
		return nil, models.NewConflictError(
			fmt.Sprintf("Cannot change booking from %s to %s", from, in.Status),
			&models.TransitionError{From: from, To: in.Status},
		)
	}
	if in.Status == models.BookingConfirmed && in.ActorID != booking.TeacherID {
		return nil, models.NewForbiddenError("Only the teacher can confirm a booking")
	}

	now := s.now().UTC()
	fields := map[string]any{"status": in.Status}
	switch in.Status {
	case models.BookingOngoing:
		fields["start_time"] = now
		booking.StartTime = &now
	case models.BookingCompleted:
		fields["end_time"] = now
		booking.EndTime = &now
	}
	applied, err := s.bookings.UpdateFromStatus(ctx, booking.ID, from, fields)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.staleTransition(ctx, booking.ID, from, in.Status)
	}
	booking.Status = in.Status
	booking.UpdatedAt = now

	observability.BookingTransitions.WithLabelValues(string(in.Status)).Inc()
	s.publish(ctx, BookingEvent{
		Type:     BookingStatusChanged,
		Booking:  *booking,
		Previous: from,
		ActorID:  in.ActorID,
	})
	return booking, nil
}

// staleTransition reports a write that lost to a concurrent transition. The
// error carries the status the booking actually holds now.
func (s *BookingService) staleTransition(ctx context.Context, id string, from, to models.BookingStatus) error {
	current := from
	if latest, err := s.bookings.Get(ctx, id); err == nil {
		current = latest.Status
	}
	return models.NewConflictError(
		fmt.Sprintf("Booking changed to %s before it could move to %s", current, to),
		&models.TransitionError{From: current, To: to},
	)
}

// Get returns a booking visible to viewerID.
func (s *BookingService) Get(ctx context.Context, id, viewerID string) (*models.Booking, error) {
	booking, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(viewerID) {
		return nil, models.NewForbiddenError("You are not a participant in this booking")
	}
	return booking, nil
}

// ParseBookingView maps a query value to a view; empty means all.
func ParseBookingView(raw string) (BookingView, error) {
	switch v := BookingView(strings.ToLower(strings.TrimSpace(raw))); v {
	case "":
		return BookingViewAll, nil
	case BookingViewAll, BookingViewUpcoming, BookingViewPast:
		return v, nil
	default:
		return "", models.NewValidationError("view must be all, upcoming or past")
	}
}

// ListForUser lists bookings where userID is learner or teacher.
func (s *BookingService) ListForUser(ctx context.Context, userID string, view BookingView) ([]models.Booking, error) {
	all, err := s.bookings.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == BookingViewAll || view == "" {
		return all, nil
	}

	now := s.now().UTC()
	out := make([]models.Booking, 0, len(all))
	for i := range all {
		b := &all[i]
		if (view == BookingViewUpcoming && b.IsUpcoming(now)) || (view == BookingViewPast && b.IsPast(now)) {
			out = append(out, *b)
		}
	}
	return out, nil
}
