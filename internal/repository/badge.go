package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

type BadgeRepository interface {
	Active(ctx context.Context) ([]*model.Badge, error)
	Unlocked(ctx context.Context, userID string) ([]*model.UserBadge, error)
	// Unlock records the badge for the user and credits its points.
	// It reports false when the badge was already unlocked; points are credited once.
	Unlock(ctx context.Context, userID string, badge *model.Badge, at time.Time) (bool, error)
	Stats(ctx context.Context, userID string) (*model.UserStats, error)
}

type badgeRepository struct {
	db *sqlx.DB
}

func NewBadgeRepository(db *sqlx.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) Active(ctx context.Context) ([]*model.Badge, error) {
	badges := []*model.Badge{}
	err := r.db.SelectContext(ctx, &badges, `SELECT * FROM badges WHERE active = $1 ORDER BY points ASC, code ASC`, true)
	if err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *badgeRepository) Unlocked(ctx context.Context, userID string) ([]*model.UserBadge, error) {
	unlocked := []*model.UserBadge{}
	err := r.db.SelectContext(ctx, &unlocked, `SELECT * FROM user_badges WHERE user_id = $1 ORDER BY unlocked_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

func (r *badgeRepository) Unlock(ctx context.Context, userID string, badge *model.Badge, at time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO user_badges (id, user_id, badge_id, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`, uuid.New().String(), userID, badge.ID, at)
	if err != nil {
		return false, fmt.Errorf("failed to insert user badge: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, points, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET points = user_stats.points + excluded.points, updated_at = excluded.updated_at
	`, userID, badge.Points, at)
	if err != nil {
		return false, fmt.Errorf("failed to credit points: %w", err)
	}

	return true, tx.Commit()
}

func (r *badgeRepository) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	stats := &model.UserStats{}
	err := r.db.GetContext(ctx, stats, `SELECT * FROM user_stats WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}
