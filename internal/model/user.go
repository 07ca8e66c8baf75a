package model

import (
	"time"
)

type User struct {
	ID              string     `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    *string    `db:"password_hash" json:"-"` // nil for passwordless accounts
	PendingEmail    *string    `db:"pending_email" json:"pending_email,omitempty"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`

	// Computed fields (not in database)
	AvatarURL   string `db:"-" json:"avatar_url,omitempty"`
	HasPassword bool   `db:"-" json:"has_password"`
}

func (u *User) PasswordSet() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
