package service

import (
	"context"
	"log/slog"
	"strings"

	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/observability"
	"skillswap/internal/repository"
)

// Notification messages.
const (
	MsgNewBookingRequest = "New booking request for your session"
	MsgBookingCreated    = "Your booking request has been created"
)

// NotificationPusher delivers a stored notification to the recipient's live sockets.
type NotificationPusher interface {
	PushNotification(ctx context.Context, n *models.Notification) error
}

// NotificationService turns booking events into per-user notifications.
type NotificationService struct {
	repo   repository.NotificationRepository
	pusher NotificationPusher
}

func NewNotificationService(repo repository.NotificationRepository, pusher NotificationPusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// SessionMessage is the text sent to the counterpart when a booking reaches status.
func SessionMessage(status models.BookingStatus) string {
	s := string(status)
	if s == "" {
		return "Session"
	}
	return "Session " + strings.ToUpper(s[:1]) + s[1:]
}

// OnBookingEvent implements BookingObserver.
func (s *NotificationService) OnBookingEvent(ctx context.Context, ev BookingEvent) error {
	b := ev.Booking
	switch ev.Type {
	case BookingCreated:
		if err := s.Notify(ctx, b.TeacherID, b.ID, MsgNewBookingRequest); err != nil {
			return err
		}
		return s.Notify(ctx, b.LearnerID, b.ID, MsgBookingCreated)
	case BookingStatusChanged:
		recipient := b.Counterpart(ev.ActorID)
		if recipient == "" {
			return nil
		}
		return s.Notify(ctx, recipient, b.ID, SessionMessage(b.Status))
	}
	return nil
}

// Notify stores a notification for userID unless one for the same booking is still unread.
func (s *NotificationService) Notify(ctx context.Context, userID, bookingID, message string) error {
	if bookingID != "" {
		existing, err := s.repo.FindUnreadForBooking(ctx, userID, bookingID)
		if err != nil {
			return err
		}
		if existing != nil {
			observability.NotificationsCreated.WithLabelValues("deduplicated").Inc()
			return nil
		}
	}

	n := &models.Notification{UserID: userID, Message: message}
	if bookingID != "" {
		n.BookingID = &bookingID
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return err
	}
	observability.NotificationsCreated.WithLabelValues("created").Inc()

	if s.pusher != nil {
		if err := s.pusher.PushNotification(ctx, n); err != nil {
			middleware.Logger.WarnContext(ctx, "notification push failed",
				slog.String("user_id", userID),
				slog.String("notification_id", n.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	out, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Notification{}
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// ClearAll deletes every notification of userID and reports how many were removed.
func (s *NotificationService) ClearAll(ctx context.Context, userID string) (int64, error) {
	return s.repo.ClearAll(ctx, userID)
}
