package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is a per-user message surfaced in the dashboard bell.
type Notification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Message   string    `gorm:"size:255;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	BookingID *string   `gorm:"size:36;index" json:"booking_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
