package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

const (
	maxTaskTitle       = 200
	maxTaskDescription = 5000
	maxTaskTags        = 20
	maxTaskListLimit   = 500
)

// TaskInput is a partial task write. Nil fields are left unchanged on update.
type TaskInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ClearDue    bool       `json:"clear_due_date"`
	Tags        []string   `json:"tags"`
}

type TaskService struct {
	repo      repository.TaskRepository
	recorder  ActivityRecorder
	publisher realtime.Publisher
	now       func() time.Time
}

func NewTaskService(repo repository.TaskRepository, recorder ActivityRecorder, publisher realtime.Publisher) *TaskService {
	return &TaskService{
		repo:      repo,
		recorder:  recorderOrNoop(recorder),
		publisher: publisher,
		now:       time.Now,
	}
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		if err := validation.MaxLength("tags", t, 50); err != nil {
			return nil, err
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTaskTags {
		return nil, validation.New("tags", "at most %d tags allowed", maxTaskTags)
	}
	return out, nil
}

// apply copies the set fields of in onto task and validates the result.
func (in TaskInput) apply(task *model.Task) error {
	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if err := validation.Required("title", task.Title, maxTaskTitle); err != nil {
		return err
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if err := validation.MaxLength("description", task.Description, maxTaskDescription); err != nil {
		return err
	}
	if in.Status != nil {
		if !model.ValidTaskStatus(*in.Status) {
			return validation.New("status", "invalid status %q", *in.Status)
		}
		task.Status = *in.Status
	}
	if in.Priority != nil {
		if !model.ValidTaskPriority(*in.Priority) {
			return validation.New("priority", "invalid priority %q", *in.Priority)
		}
		task.Priority = *in.Priority
	}
	if in.ClearDue {
		task.DueDate = nil
	} else if in.DueDate != nil {
		due := in.DueDate.UTC()
		task.DueDate = &due
	}
	if in.Tags != nil {
		tags, err := cleanTags(in.Tags)
		if err != nil {
			return err
		}
		task.Tags = tags
	}
	return nil
}

func (s *TaskService) Create(ctx context.Context, userID string, in TaskInput) (*model.Task, error) {
	now := s.now().UTC()
	task := &model.Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    model.TaskStatusTodo,
		Priority:  model.TaskPriorityMedium,
		Tags:      model.StringList{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(task); err != nil {
		return nil, err
	}
	if task.Status == model.TaskStatusDone {
		task.CompletedAt = &now
	}

	err := s.repo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	realtime.Emit(ctx, s.publisher, userID, realtime.EventTaskCreated, task)
	metrics := []string{model.MetricTasksCreated}
	if task.CompletedAt != nil {
		metrics = append(metrics, model.MetricTasksCompleted)
	}
	s.recorder.Record(ctx, userID, metrics...)
	return task, nil
}

func (s *TaskService) ByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return s.repo.ByID(ctx, userID, taskID)
}

func (s *TaskService) Tasks(ctx context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error) {
	if filter.Status != "" && !model.ValidTaskStatus(filter.Status) {
		return nil, validation.New("status", "invalid status %q", filter.Status)
	}
	if filter.Priority != "" && !model.ValidTaskPriority(filter.Priority) {
		return nil, validation.New("priority", "invalid priority %q", filter.Priority)
	}
	if filter.DueFrom != nil && filter.DueTo != nil {
		if err := validation.ValidateRange("due_to", *filter.DueFrom, *filter.DueTo); err != nil {
			return nil, err
		}
	}
	if filter.Limit > maxTaskListLimit {
		filter.Limit = maxTaskListLimit
	}
	filter.Tag = normalizeTag(filter.Tag)
	return s.repo.Tasks(ctx, userID, filter)
}

// Update applies a partial change. Moving a task into done stamps
// completed_at; moving it out clears it.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, in TaskInput) (*model.Task, error) {
	task, err := s.repo.ByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	wasDone := task.Status == model.TaskStatusDone

	if err := in.apply(task); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	completedNow, reopened := false, false
	switch {
	case task.Status == model.TaskStatusDone && !wasDone:
		task.CompletedAt = &now
		completedNow = true
	case task.Status != model.TaskStatusDone:
		task.CompletedAt = nil
		reopened = wasDone
	}
	task.UpdatedAt = now

	err = s.repo.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	realtime.Emit(ctx, s.publisher, userID, realtime.EventTaskUpdated, task)
	switch {
	case completedNow:
		s.completed(ctx, task)
	case reopened:
		s.recorder.Record(ctx, userID, model.MetricTasksCompleted)
	}
	return task, nil
}

// Complete marks the task done. Completing a done task is a no-op.
func (s *TaskService) Complete(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.repo.ByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.TaskStatusDone {
		return task, nil
	}

	now := s.now().UTC()
	task.Status = model.TaskStatusDone
	task.CompletedAt = &now
	task.UpdatedAt = now

	err = s.repo.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	s.completed(ctx, task)
	return task, nil
}

func (s *TaskService) completed(ctx context.Context, task *model.Task) {
	slog.Debug("task completed", "task_id", task.ID, "user_id", task.UserID)
	realtime.Emit(ctx, s.publisher, task.UserID, realtime.EventTaskCompleted, task)
	s.recorder.Record(ctx, task.UserID, model.MetricTasksCompleted)
}

// Delete removes the task. Deleting a done task lowers the completed count,
// so challenge progress is recomputed.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	task, err := s.repo.ByID(ctx, userID, taskID)
	if err != nil {
		return err
	}
	err = s.repo.Delete(ctx, userID, taskID)
	if err != nil {
		return err
	}
	realtime.Emit(ctx, s.publisher, userID, realtime.EventTaskDeleted, map[string]string{"id": taskID})
	if task.Status == model.TaskStatusDone {
		s.recorder.Record(ctx, userID, model.MetricTasksCompleted)
	}
	return nil
}
