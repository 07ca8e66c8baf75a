package model

import "time"

const (
	FocusKindWork       = "work"
	FocusKindShortBreak = "short_break"
	FocusKindLongBreak  = "long_break"
)

const (
	FocusStatusActive      = "active"
	FocusStatusCompleted   = "completed"
	FocusStatusInterrupted = "interrupted"
)

// MaxFocusMinutes caps a single session.
const MaxFocusMinutes = 600

func ValidFocusKind(k string) bool {
	return k == FocusKindWork || k == FocusKindShortBreak || k == FocusKindLongBreak
}

type FocusSession struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	TaskID         *string    `db:"task_id" json:"task_id,omitempty"`
	Kind           string     `db:"kind" json:"kind"`
	PlannedMinutes int        `db:"planned_minutes" json:"planned_minutes"`
	ActualMinutes  int        `db:"actual_minutes" json:"actual_minutes"`
	Status         string     `db:"status" json:"status"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	EndedAt        *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	Note           string     `db:"note" json:"note"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type FocusFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
}

type FocusStats struct {
	TotalSessions     int `json:"total_sessions"`
	CompletedSessions int `json:"completed_sessions"`
	CompletedToday    int `json:"completed_today"`
	TotalFocusMinutes int `json:"total_focus_minutes"`
	CurrentStreak     int `json:"current_streak"`
	LongestStreak     int `json:"longest_streak"`
}
