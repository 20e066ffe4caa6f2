package repository

import (
	"context"
	"sync/atomic"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/observability"

	"gorm.io/gorm"
)

// MessageLog is the append-only chat history of every booking.
type MessageLog interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
	// History returns a booking's messages ordered by timestamp, then insertion.
	History(ctx context.Context, bookingID string) ([]models.ChatMessage, error)
}

// sequence hands out increasing insertion numbers that survive restarts.
type sequence struct {
	n atomic.Int64
}

func newSequence() *sequence {
	s := &sequence{}
	s.n.Store(time.Now().UnixNano())
	return s
}

func (s *sequence) next() int64 {
	return s.n.Add(1)
}

type gormMessageLog struct {
	db  *gorm.DB
	seq *sequence
}

// NewMessageLog returns the SQL-backed MessageLog using the chat_messages table.
func NewMessageLog(db *gorm.DB) MessageLog {
	return &gormMessageLog{db: db, seq: newSequence()}
}

func (r *gormMessageLog) Append(ctx context.Context, msg *models.ChatMessage) error {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "sql", "Append", "chat_messages")
	defer span.End()

	msg.Seq = r.seq.next()
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *gormMessageLog) History(ctx context.Context, bookingID string) ([]models.ChatMessage, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "sql", "History", "chat_messages")
	defer span.End()

	messages := []models.ChatMessage{}
	if err := readDB(r.db).WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("timestamp ASC").
		Order("seq ASC").
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}
