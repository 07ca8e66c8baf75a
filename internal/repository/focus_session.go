package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

var (
	ErrFocusSessionNotFound = errors.New("focus session not found")
	ErrNoActiveSession      = errors.New("no active focus session")
	ErrSessionAlreadyActive = errors.New("a focus session is already active")
)

type FocusSessionRepository interface {
	Create(ctx context.Context, session *model.FocusSession) error
	ByID(ctx context.Context, userID, sessionID string) (*model.FocusSession, error)
	Active(ctx context.Context, userID string) (*model.FocusSession, error)
	Sessions(ctx context.Context, userID string, filter model.FocusFilter) ([]*model.FocusSession, error)
	Update(ctx context.Context, session *model.FocusSession) error
	Delete(ctx context.Context, userID, sessionID string) error
	Totals(ctx context.Context, userID string) (total, completed, minutes int, err error)
	CompletedTimes(ctx context.Context, userID string, since time.Time) ([]time.Time, error)
}

type focusSessionRepository struct {
	db *sqlx.DB
}

func NewFocusSessionRepository(db *sqlx.DB) FocusSessionRepository {
	return &focusSessionRepository{db: db}
}

func (r *focusSessionRepository) Create(ctx context.Context, session *model.FocusSession) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO focus_sessions (id, user_id, task_id, kind, planned_minutes, actual_minutes, status, started_at, ended_at, note, created_at, updated_at)
		VALUES (:id, :user_id, :task_id, :kind, :planned_minutes, :actual_minutes, :status, :started_at, :ended_at, :note, :created_at, :updated_at)
	`, session)
	if isUniqueViolation(err) {
		return ErrSessionAlreadyActive
	}
	return err
}

func (r *focusSessionRepository) ByID(ctx context.Context, userID, sessionID string) (*model.FocusSession, error) {
	s := &model.FocusSession{}
	err := r.db.GetContext(ctx, s, `SELECT * FROM focus_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFocusSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *focusSessionRepository) Active(ctx context.Context, userID string) (*model.FocusSession, error) {
	s := &model.FocusSession{}
	err := r.db.GetContext(ctx, s, `
		SELECT * FROM focus_sessions WHERE user_id = $1 AND status = $2 ORDER BY started_at DESC LIMIT 1
	`, userID, model.FocusStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *focusSessionRepository) Sessions(ctx context.Context, userID string, filter model.FocusFilter) ([]*model.FocusSession, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.From != nil {
		w.add("started_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		w.add("started_at < ?", filter.To.UTC())
	}

	query := `SELECT * FROM focus_sessions` + w.String() + ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + w.next(filter.Limit)
	}

	sessions := []*model.FocusSession{}
	err := r.db.SelectContext(ctx, &sessions, query, w.args...)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *focusSessionRepository) Update(ctx context.Context, session *model.FocusSession) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE focus_sessions
		SET actual_minutes = :actual_minutes, status = :status, ended_at = :ended_at, note = :note, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`, session)
	if err != nil {
		return err
	}
	return expectRows(result, ErrFocusSessionNotFound)
}

func (r *focusSessionRepository) Delete(ctx context.Context, userID, sessionID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM focus_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrFocusSessionNotFound)
}

// Totals returns the session count, the completed count and completed work minutes.
func (r *focusSessionRepository) Totals(ctx context.Context, userID string) (total, completed, minutes int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = $2 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = $2 AND kind = $3 THEN actual_minutes ELSE 0 END), 0)
		FROM focus_sessions WHERE user_id = $1
	`, userID, model.FocusStatusCompleted, model.FocusKindWork).Scan(&total, &completed, &minutes)
	return total, completed, minutes, err
}

// CompletedTimes returns start times of completed work sessions since the given time.
func (r *focusSessionRepository) CompletedTimes(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	times := []time.Time{}
	err := r.db.SelectContext(ctx, &times, `
		SELECT started_at FROM focus_sessions
		WHERE user_id = $1 AND status = $2 AND kind = $3 AND started_at >= $4
		ORDER BY started_at ASC
	`, userID, model.FocusStatusCompleted, model.FocusKindWork, since.UTC())
	if err != nil {
		return nil, err
	}
	return times, nil
}
