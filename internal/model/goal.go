package model

import (
	"time"
)

const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
	GoalStatusArchived  = "archived"
)

type Goal struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	TargetValue  float64    `db:"target_value" json:"target_value"`
	CurrentValue float64    `db:"current_value" json:"current_value"`
	Unit         string     `db:"unit" json:"unit"`
	Status       string     `db:"status" json:"status"`
	Deadline     *time.Time `db:"deadline" json:"deadline,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Progress returns completion as a percentage in [0, 100].
func (g *Goal) Progress() int {
	if g.TargetValue <= 0 {
		return 0
	}
	p := int(g.CurrentValue / g.TargetValue * 100)
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

func ValidGoalStatus(s string) bool {
	return s == GoalStatusActive || s == GoalStatusCompleted || s == GoalStatusArchived
}
