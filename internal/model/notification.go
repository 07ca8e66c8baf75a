package model

import "time"

const (
	NotificationBadgeUnlocked      = "badge.unlocked"
	NotificationChallengeCompleted = "challenge.completed"
	NotificationChallengeJoined    = "challenge.joined"
	NotificationChallengeFinished  = "challenge.finished"
	NotificationGoalCompleted      = "goal.completed"
	NotificationSystem             = "system"
)

type Notification struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Type      string     `db:"type" json:"type"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	Data      JSON       `db:"data" json:"data"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
