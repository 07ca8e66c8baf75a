package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

var ErrHealthLogNotFound = errors.New("health log not found")

type HealthLogRepository interface {
	Create(ctx context.Context, log *model.HealthLog) error
	ByID(ctx context.Context, userID, logID string) (*model.HealthLog, error)
	Logs(ctx context.Context, userID string, filter model.HealthLogFilter) ([]*model.HealthLog, error)
	Update(ctx context.Context, log *model.HealthLog) error
	Delete(ctx context.Context, userID, logID string) error
}

type healthLogRepository struct {
	db *sqlx.DB
}

func NewHealthLogRepository(db *sqlx.DB) HealthLogRepository {
	return &healthLogRepository{db: db}
}

func (r *healthLogRepository) Create(ctx context.Context, log *model.HealthLog) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO health_logs (id, user_id, type, value, unit, payload, note, logged_at, created_at, updated_at)
		VALUES (:id, :user_id, :type, :value, :unit, :payload, :note, :logged_at, :created_at, :updated_at)
	`, log)
	return err
}

func (r *healthLogRepository) ByID(ctx context.Context, userID, logID string) (*model.HealthLog, error) {
	log := &model.HealthLog{}
	err := r.db.GetContext(ctx, log, `SELECT * FROM health_logs WHERE id = $1 AND user_id = $2`, logID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHealthLogNotFound
	}
	if err != nil {
		return nil, err
	}
	return log, nil
}

// Logs returns logs newest first.
func (r *healthLogRepository) Logs(ctx context.Context, userID string, filter model.HealthLogFilter) ([]*model.HealthLog, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if filter.Type != "" {
		w.add("type = ?", filter.Type)
	}
	if filter.From != nil {
		w.add("logged_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		w.add("logged_at < ?", filter.To.UTC())
	}

	query := `SELECT * FROM health_logs` + w.String() + ` ORDER BY logged_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + w.next(filter.Limit)
	}

	logs := []*model.HealthLog{}
	err := r.db.SelectContext(ctx, &logs, query, w.args...)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *healthLogRepository) Update(ctx context.Context, log *model.HealthLog) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE health_logs
		SET type = :type, value = :value, unit = :unit, payload = :payload, note = :note,
		    logged_at = :logged_at, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`, log)
	if err != nil {
		return err
	}
	return expectRows(result, ErrHealthLogNotFound)
}

func (r *healthLogRepository) Delete(ctx context.Context, userID, logID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM health_logs WHERE id = $1 AND user_id = $2`, logID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrHealthLogNotFound)
}
