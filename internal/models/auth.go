package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	UserID      string     `gorm:"primaryKey" json:"user_id"`
	Email       string     `gorm:"uniqueIndex;not null" json:"email"`
	Name        string     `gorm:"not null" json:"name"`
	Password    string     `gorm:"not null" json:"-"`
	Picture     string     `json:"picture,omitempty"`
	Role        UserRole   `gorm:"not null;default:'pracownik'" json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string     `json:"last_login_ip,omitempty"`
	LastLoginUA string     `json:"last_login_ua,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == "" {
		u.UserID = shortID("user")
	}
	return nil
}

// UserSession is an opaque bearer session. Expiry is checked lazily on
// resolution, never swept proactively; a login purges every prior session
// for the user.
type UserSession struct {
	SessionToken string    `gorm:"primaryKey" json:"session_token"`
	UserID       string    `gorm:"index;not null" json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
