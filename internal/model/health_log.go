package model

import "time"

const (
	HealthTypeWeight    = "weight"
	HealthTypeSleep     = "sleep"
	HealthTypeWater     = "water"
	HealthTypeSteps     = "steps"
	HealthTypeHeartRate = "heart_rate"
	HealthTypeMood      = "mood"
	HealthTypeExercise  = "exercise"
	HealthTypeNutrition = "nutrition"
)

// defaultHealthUnits is used when a log omits its unit.
var defaultHealthUnits = map[string]string{
	HealthTypeWeight:    "kg",
	HealthTypeSleep:     "hours",
	HealthTypeWater:     "ml",
	HealthTypeSteps:     "steps",
	HealthTypeHeartRate: "bpm",
	HealthTypeMood:      "score",
	HealthTypeExercise:  "minutes",
	HealthTypeNutrition: "kcal",
}

func ValidHealthType(t string) bool {
	_, ok := defaultHealthUnits[t]
	return ok
}

func DefaultHealthUnit(t string) string {
	return defaultHealthUnits[t]
}

type HealthLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Value     float64   `db:"value" json:"value"`
	Unit      string    `db:"unit" json:"unit"`
	Payload   JSON      `db:"payload" json:"payload"`
	Note      string    `db:"note" json:"note"`
	LoggedAt  time.Time `db:"logged_at" json:"logged_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type HealthLogFilter struct {
	Type  string
	From  *time.Time
	To    *time.Time
	Limit int
}

// HealthDay aggregates one calendar day of logs of a single type.
type HealthDay struct {
	Date  string  `json:"date"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Total float64 `json:"total"`
}

type HealthSummary struct {
	Type    string      `json:"type"`
	Unit    string      `json:"unit"`
	From    time.Time   `json:"from"`
	To      time.Time   `json:"to"`
	Count   int         `json:"count"`
	Average float64     `json:"average"`
	Days    []HealthDay `json:"days"`
}
