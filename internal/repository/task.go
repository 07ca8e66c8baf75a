package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

const (
	TaskSortDue      = "due"
	TaskSortPriority = "priority"
	TaskSortCreated  = "created"
	TaskSortUpdated  = "updated"
)

var ErrTaskNotFound = errors.New("task not found")

// taskOrder maps sort keys to ORDER BY clauses. Unknown keys fall back to updated.
var taskOrder = map[string]string{
	TaskSortDue: "ORDER BY CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC, created_at DESC",
	TaskSortPriority: `ORDER BY CASE priority
		WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, updated_at DESC`,
	TaskSortCreated: "ORDER BY created_at DESC",
	TaskSortUpdated: "ORDER BY updated_at DESC",
}

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	ByID(ctx context.Context, userID, taskID string) (*model.Task, error)
	Tasks(ctx context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, userID, taskID string) error
}

type taskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, completed_at, tags, created_at, updated_at)
		VALUES (:id, :user_id, :title, :description, :status, :priority, :due_date, :completed_at, :tags, :created_at, :updated_at)
	`, task)
	return err
}

func (r *taskRepository) ByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.GetContext(ctx, task, `SELECT * FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Tasks(ctx context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		w.add("priority = ?", filter.Priority)
	}
	if filter.DueFrom != nil {
		w.add("due_date >= ?", filter.DueFrom.UTC())
	}
	if filter.DueTo != nil {
		w.add("due_date <= ?", filter.DueTo.UTC())
	}
	if filter.Tag != "" {
		w.add(jsonArrayContains(r.db, "tags"), filter.Tag)
	}

	order, ok := taskOrder[filter.Sort]
	if !ok {
		order = taskOrder[TaskSortUpdated]
	}

	query := `SELECT * FROM tasks` + w.String() + " " + order
	if filter.Limit > 0 {
		query += " LIMIT " + w.next(filter.Limit) + " OFFSET " + w.next(filter.Offset)
	}

	tasks := []*model.Task{}
	err := r.db.SelectContext(ctx, &tasks, query, w.args...)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE tasks
		SET title = :title, description = :description, status = :status, priority = :priority,
		    due_date = :due_date, completed_at = :completed_at, tags = :tags, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`, task)
	if err != nil {
		return err
	}
	return expectRows(result, ErrTaskNotFound)
}

func (r *taskRepository) Delete(ctx context.Context, userID, taskID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrTaskNotFound)
}
