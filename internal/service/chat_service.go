package service

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/featureflags"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/observability"
	"skillswap/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const roomLockStripes = 64

// roomLock serializes sends for the bookings hashed onto it and remembers each
// booking's last stamp so stamps never go backwards.
type roomLock struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// ChatService persists and serves the per-booking chat log.
type ChatService struct {
	log      repository.MessageLog
	bookings repository.BookingRepository
	flags    *featureflags.Manager
	now      func() time.Time
	rooms    [roomLockStripes]roomLock
}

// SendInput is one chat message as received from a connection.
type SendInput struct {
	BookingID string
	SenderID  string
	ClientID  string
	Content   string
	UserType  string
}

func NewChatService(log repository.MessageLog, bookings repository.BookingRepository, flags *featureflags.Manager) *ChatService {
	return &ChatService{
		log:      log,
		bookings: bookings,
		flags:    flags,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for server timestamps.
func (s *ChatService) WithClock(now func() time.Time) *ChatService {
	s.now = now
	return s
}

// CanAccess returns the booking when userID is its learner or teacher.
func (s *ChatService) CanAccess(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this booking")
	}
	return booking, nil
}

// History returns the booking's messages oldest first.
func (s *ChatService) History(ctx context.Context, bookingID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := cache.Aside(ctx, cache.ChatHistoryKey(bookingID), &messages, cache.ChatHistoryTTL, func() error {
		var err error
		messages, err = s.log.History(ctx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return messages, nil
}

func (s *ChatService) room(bookingID string) *roomLock {
	h := fnv.New32a()
	_, _ = h.Write([]byte(bookingID))
	return &s.rooms[h.Sum32()%roomLockStripes]
}

// Send stamps, persists and returns a message without relaying it.
func (s *ChatService) Send(ctx context.Context, in SendInput) (*models.ChatMessage, error) {
	return s.SendAndRelay(ctx, in, nil)
}

// SendAndRelay stamps, persists and relays a message as one ordered step per
// booking, so the relay order, the append order and the timestamp order agree
// for sends handled by this instance. relay runs only for a message that is
// returned. When the log rejects the write the message is still relayed and
// returned if chat_broadcast_on_persist_failure is on for the sender.
func (s *ChatService) SendAndRelay(ctx context.Context, in SendInput, relay func(*models.ChatMessage)) (*models.ChatMessage, error) {
	span, ctx := observability.NewSpan(ctx, "chat.send")
	defer span.End()
	span.AddAttributes(attribute.String("booking.id", in.BookingID))

	content := strings.TrimSpace(in.Content)
	if content == "" || strings.TrimSpace(in.SenderID) == "" {
		return nil, models.NewValidationError("Message content and senderId are required")
	}

	id := in.ClientID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	room := s.room(in.BookingID)
	room.mu.Lock()
	defer room.mu.Unlock()

	stamp := s.now().UTC()
	if last, ok := room.last[in.BookingID]; ok && stamp.Before(last) {
		stamp = last
	}

	msg := &models.ChatMessage{
		ID:        id,
		BookingID: in.BookingID,
		SenderID:  in.SenderID,
		Content:   content,
		Timestamp: stamp,
		UserType:  in.UserType,
	}

	if err := s.log.Append(ctx, msg); err != nil {
		span.SetError(err)
		observability.ChatPersistFailures.Inc()
		if s.flags.Enabled(featureflags.ChatBroadcastOnPersistFailure, in.SenderID) {
			middleware.Logger.WarnContext(ctx, "chat message not persisted, relaying anyway",
				slog.String("booking_id", in.BookingID),
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
			s.stamped(room, msg, relay)
			return msg, nil
		}
		return nil, models.NewInternalError(err)
	}

	cache.InvalidateChatHistory(ctx, in.BookingID)
	s.stamped(room, msg, relay)
	return msg, nil
}

// stamped records msg as the booking's latest and relays it. room is held.
func (s *ChatService) stamped(room *roomLock, msg *models.ChatMessage, relay func(*models.ChatMessage)) {
	if room.last == nil {
		room.last = make(map[string]time.Time)
	}
	room.last[msg.BookingID] = msg.Timestamp
	if relay != nil {
		relay(msg)
	}
}
