package model

import "time"

const (
	CalendarSourceLocal     = "local"
	CalendarSourceGoogle    = "google"
	CalendarSourceMicrosoft = "microsoft"
)

type CalendarEvent struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	ConnectionID *string   `db:"connection_id" json:"connection_id,omitempty"`
	ExternalID   *string   `db:"external_id" json:"external_id,omitempty"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Location     string    `db:"location" json:"location"`
	StartsAt     time.Time `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time `db:"ends_at" json:"ends_at"`
	AllDay       bool      `db:"all_day" json:"all_day"`
	Source       string    `db:"source" json:"source"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type CalendarConnection struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Provider     string     `db:"provider" json:"provider"`
	AccountEmail string     `db:"account_email" json:"account_email"`
	AccessToken  string     `db:"access_token" json:"-"`
	RefreshToken string     `db:"refresh_token" json:"-"`
	TokenExpiry  *time.Time `db:"token_expiry" json:"-"`
	LastSyncedAt *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
