package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, data, read_at, created_at)
		VALUES (:id, :user_id, :type, :title, :body, :data, :read_at, :created_at)
	`, n)
	return err
}

func (r *notificationRepository) Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if unreadOnly {
		w.clauses = append(w.clauses, "read_at IS NULL")
	}

	query := `SELECT * FROM notifications` + w.String() + ` ORDER BY created_at DESC LIMIT ` + w.next(limit)

	list := []*model.Notification{}
	err := r.db.SelectContext(ctx, &list, query, w.args...)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID)
	return n, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $1) WHERE id = $2 AND user_id = $3
	`, at, id, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrNotificationNotFound)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read_at = $1 WHERE user_id = $2 AND read_at IS NULL`, at, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrNotificationNotFound)
}
