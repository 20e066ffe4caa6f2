// Package models defines the persistent entities and API error types.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role distinguishes people who teach from people who learn.
type Role string

const (
	RoleMentor  Role = "mentor"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMentor || r == RoleStudent
}

// User is a registered account. Users are never deleted in-app.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Role      Role      `gorm:"size:16;not null;default:student" json:"role"`
	Bio       string    `gorm:"size:500" json:"bio,omitempty"`
	Skills    []Skill   `gorm:"foreignKey:UserID" json:"skills,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
