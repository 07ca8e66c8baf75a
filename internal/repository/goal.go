package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

const (
	GoalSortRecent   = "recent"
	GoalSortProgress = "progress"
	GoalSortTitle    = "title"
	GoalSortDeadline = "deadline"
)

var ErrGoalNotFound = errors.New("goal not found")

type GoalRepository interface {
	Create(ctx context.Context, goal *model.Goal) error
	ByID(ctx context.Context, userID, goalID string) (*model.Goal, error)
	Goals(ctx context.Context, userID, status, sortBy string) ([]*model.Goal, error)
	CountActive(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, goal *model.Goal) error
	Delete(ctx context.Context, userID, goalID string) error
}

type goalRepository struct {
	db *sqlx.DB
}

func NewGoalRepository(db *sqlx.DB) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO goals (id, user_id, title, description, target_value, current_value, unit, status, deadline, created_at, updated_at)
		VALUES (:id, :user_id, :title, :description, :target_value, :current_value, :unit, :status, :deadline, :created_at, :updated_at)
	`, goal)
	return err
}

func (r *goalRepository) ByID(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	goal := &model.Goal{}
	err := r.db.GetContext(ctx, goal, `SELECT * FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func (r *goalRepository) Goals(ctx context.Context, userID, status, sortBy string) ([]*model.Goal, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if status != "" {
		w.add("status = ?", status)
	}

	var orderBy string
	switch sortBy {
	case GoalSortProgress:
		orderBy = "ORDER BY CASE WHEN target_value > 0 THEN current_value / target_value ELSE 0 END DESC, updated_at DESC"
	case GoalSortTitle:
		orderBy = "ORDER BY LOWER(title) ASC"
	case GoalSortDeadline:
		orderBy = "ORDER BY CASE WHEN deadline IS NULL THEN 1 ELSE 0 END, deadline ASC"
	default:
		orderBy = "ORDER BY updated_at DESC"
	}

	goals := []*model.Goal{}
	err := r.db.SelectContext(ctx, &goals, `SELECT * FROM goals`+w.String()+" "+orderBy, w.args...)
	if err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *goalRepository) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM goals WHERE user_id = $1 AND status = $2`, userID, model.GoalStatusActive)
	return count, err
}

func (r *goalRepository) Update(ctx context.Context, goal *model.Goal) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE goals
		SET title = :title, description = :description, target_value = :target_value, current_value = :current_value,
		    unit = :unit, status = :status, deadline = :deadline, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`, goal)
	if err != nil {
		return err
	}
	return expectRows(result, ErrGoalNotFound)
}

func (r *goalRepository) Delete(ctx context.Context, userID, goalID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrGoalNotFound)
}
