package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatMessage is one entry in a booking's append-only chat log.
// The JSON shape matches the realtime wire format.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	BookingID string    `gorm:"size:64;index:idx_chat_booking_ts,priority:1;not null" json:"bookingId" bson:"bookingId"`
	SenderID  string    `gorm:"size:64;not null" json:"senderId" bson:"senderId"`
	Content   string    `gorm:"type:text;not null" json:"content" bson:"content"`
	Timestamp time.Time `gorm:"index:idx_chat_booking_ts,priority:2;not null" json:"timestamp" bson:"timestamp"`
	UserType  string    `gorm:"size:16" json:"userType,omitempty" bson:"userType,omitempty"`
	Seq       int64     `gorm:"not null;default:0" json:"-" bson:"seq"`
}

// TableName pins the gorm table name.
func (ChatMessage) TableName() string { return "chat_messages" }

func (m *ChatMessage) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
