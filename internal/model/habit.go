package model

import "time"

const (
	HabitFrequencyDaily  = "daily"
	HabitFrequencyWeekly = "weekly"
)

// DateLayout is the format of calendar dates such as habit check days.
const DateLayout = "2006-01-02"

type Habit struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	Frequency       string    `db:"frequency" json:"frequency"`
	TargetPerPeriod int       `db:"target_per_period" json:"target_per_period"`
	Archived        bool      `db:"archived" json:"archived"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	CurrentStreak int `db:"-" json:"current_streak"`
	LongestStreak int `db:"-" json:"longest_streak"`
}

type HabitCheck struct {
	ID        string    `db:"id" json:"id"`
	HabitID   string    `db:"habit_id" json:"habit_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CheckDate string    `db:"check_date" json:"check_date"`
	Note      string    `db:"note" json:"note"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func ValidHabitFrequency(f string) bool {
	return f == HabitFrequencyDaily || f == HabitFrequencyWeekly
}
