package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

var ErrUnknownMetric = errors.New("unknown activity metric")

// metricSource describes where a metric is counted. Only metrics listed
// here can be queried, which keeps criteria from reaching arbitrary SQL.
type metricSource struct {
	table   string
	filter  string
	timeCol string
	amount  string
}

var metricSources = map[string]metricSource{
	model.MetricTasksCompleted:         {table: "tasks", filter: "status = 'done'", timeCol: "completed_at", amount: "1"},
	model.MetricTasksCreated:           {table: "tasks", timeCol: "created_at", amount: "1"},
	model.MetricFocusSessionsCompleted: {table: "focus_sessions", filter: "status = 'completed'", timeCol: "ended_at", amount: "1"},
	model.MetricFocusMinutes:           {table: "focus_sessions", filter: "status = 'completed' AND kind = 'work'", timeCol: "ended_at", amount: "actual_minutes"},
	model.MetricHealthLogs:             {table: "health_logs", timeCol: "logged_at", amount: "1"},
	model.MetricHabitChecks:            {table: "habit_checks", timeCol: "created_at", amount: "1"},
	model.MetricChallengesJoined:       {table: "challenge_participants", timeCol: "joined_at", amount: "1"},
	model.MetricChallengesCompleted:    {table: "challenge_participants", filter: "completed_at IS NOT NULL", timeCol: "completed_at", amount: "1"},
	model.MetricGoalsCompleted:         {table: "goals", filter: "status = 'completed'", timeCol: "updated_at", amount: "1"},
}

// ActivityPoint is one contribution to a metric at a point in time.
type ActivityPoint struct {
	At     time.Time `db:"at"`
	Amount int       `db:"amount"`
}

type ActivityRepository interface {
	// Count runs a single COUNT (or SUM) query for the metric.
	Count(ctx context.Context, userID, metric string) (int, error)
	// Points lists contributions inside [from, to).
	Points(ctx context.Context, userID, metric string, from, to time.Time) ([]ActivityPoint, error)
	// ActiveUsers lists users with any recorded activity since the given time.
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

type activityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (src metricSource) where() *where {
	w := &where{}
	if src.filter != "" {
		w.clauses = append(w.clauses, src.filter)
	}
	return w
}

func (r *activityRepository) Count(ctx context.Context, userID, metric string) (int, error) {
	src, ok := metricSources[metric]
	if !ok {
		return 0, ErrUnknownMetric
	}

	w := src.where()
	w.add("user_id = ?", userID)

	agg := "COUNT(*)"
	if src.amount != "1" {
		agg = "COALESCE(SUM(" + src.amount + "), 0)"
	}

	var n int
	err := r.db.GetContext(ctx, &n, `SELECT `+agg+` FROM `+src.table+w.String(), w.args...)
	return n, err
}

func (r *activityRepository) Points(ctx context.Context, userID, metric string, from, to time.Time) ([]ActivityPoint, error) {
	src, ok := metricSources[metric]
	if !ok {
		return nil, ErrUnknownMetric
	}

	w := src.where()
	w.add("user_id = ?", userID)
	w.add(src.timeCol+" >= ?", from.UTC())
	w.add(src.timeCol+" < ?", to.UTC())

	points := []ActivityPoint{}
	query := `SELECT ` + src.timeCol + ` AS at, ` + src.amount + ` AS amount FROM ` + src.table + w.String() + ` ORDER BY ` + src.timeCol
	err := r.db.SelectContext(ctx, &points, query, w.args...)
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (r *activityRepository) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM tasks WHERE updated_at >= $1
		UNION SELECT user_id FROM focus_sessions WHERE updated_at >= $1
		UNION SELECT user_id FROM health_logs WHERE created_at >= $1
		UNION SELECT user_id FROM habit_checks WHERE created_at >= $1
		UNION SELECT user_id FROM challenge_participants WHERE updated_at >= $1
		UNION SELECT user_id FROM goals WHERE updated_at >= $1
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	return ids, nil
}
