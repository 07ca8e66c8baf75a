package model

import (
	"time"
)

// GoalEntry records one progress contribution towards a goal.
type GoalEntry struct {
	ID        string    `db:"id" json:"id"`
	GoalID    string    `db:"goal_id" json:"goal_id"`
	Value     float64   `db:"value" json:"value"`
	Note      string    `db:"note" json:"note"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
