package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

type GoalEntryRepository interface {
	// AddProgress stores the entry and the goal's new value in one transaction.
	AddProgress(ctx context.Context, goal *model.Goal, entry *model.GoalEntry) error
	Entries(ctx context.Context, goalID string) ([]*model.GoalEntry, error)
}

type goalEntryRepository struct {
	db *sqlx.DB
}

func NewGoalEntryRepository(db *sqlx.DB) GoalEntryRepository {
	return &goalEntryRepository{db: db}
}

func (r *goalEntryRepository) AddProgress(ctx context.Context, goal *model.Goal, entry *model.GoalEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO goal_entries (id, goal_id, value, note, created_at) VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.GoalID, entry.Value, entry.Note, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert goal entry: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE goals SET current_value = $1, status = $2, updated_at = $3 WHERE id = $4 AND user_id = $5
	`, goal.CurrentValue, goal.Status, goal.UpdatedAt, goal.ID, goal.UserID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	err = expectRows(result, ErrGoalNotFound)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *goalEntryRepository) Entries(ctx context.Context, goalID string) ([]*model.GoalEntry, error) {
	entries := []*model.GoalEntry{}
	err := r.db.SelectContext(ctx, &entries, `SELECT * FROM goal_entries WHERE goal_id = $1 ORDER BY created_at DESC`, goalID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
