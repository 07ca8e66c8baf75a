package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Badge struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Icon        string    `db:"icon" json:"icon"`
	Points      int       `db:"points" json:"points"`
	Criteria    JSON      `db:"criteria" json:"criteria"`
	Active      bool      `db:"active" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"-"`

	Unlocked   bool       `db:"-" json:"unlocked"`
	UnlockedAt *time.Time `db:"-" json:"unlocked_at,omitempty"`
}

// BadgeCriteria is the decoded unlock rule of a badge.
type BadgeCriteria struct {
	Metric    string `json:"metric"`
	Threshold int    `json:"threshold"`
}

func (b *Badge) Rule() (BadgeCriteria, error) {
	var c BadgeCriteria
	err := json.Unmarshal(b.Criteria, &c)
	if err != nil {
		return c, fmt.Errorf("badge %s: invalid criteria: %w", b.Code, err)
	}
	if c.Metric == "" || c.Threshold <= 0 {
		return c, fmt.Errorf("badge %s: incomplete criteria", b.Code)
	}
	return c, nil
}

type UserBadge struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	BadgeID    string    `db:"badge_id" json:"badge_id"`
	UnlockedAt time.Time `db:"unlocked_at" json:"unlocked_at"`
}

type UserStats struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Points    int       `db:"points" json:"points"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (s *UserStats) Level() int {
	return s.Points/100 + 1
}
