package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Skill is an offering a mentor lists on the marketplace.
type Skill struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;index;not null" json:"user_id"`
	Title       string    `gorm:"size:120;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Rate        float64   `gorm:"not null;default:0" json:"rate"`
	Category    string    `gorm:"size:64;index;not null" json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Skill) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
