package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

func newTaskService() (*TaskService, *fakeTasks, *fakeRecorder, *fakePublisher) {
	repo := newFakeTasks()
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	s := NewTaskService(repo, rec, pub)
	s.now = fixedNow
	return s, repo, rec, pub
}

func TestTaskCreateDefaults(t *testing.T) {
	ctx := context.Background()
	s, _, rec, pub := newTaskService()

	task, err := s.Create(ctx, "u1", TaskInput{
		Title: ptr("  Write report "),
		Tags:  []string{"Work", "work", " deep "},
	})
	require.NoError(t, err)
	require.Equal(t, "Write report", task.Title)
	require.Equal(t, model.TaskStatusTodo, task.Status)
	require.Equal(t, model.TaskPriorityMedium, task.Priority)
	require.Equal(t, model.StringList{"work", "deep"}, task.Tags)
	require.Nil(t, task.CompletedAt)
	require.Equal(t, []string{realtime.EventTaskCreated}, pub.types())
	require.Equal(t, []string{model.MetricTasksCreated}, rec.metrics)
}

func TestTaskCreateValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTaskService()

	tests := []struct {
		name string
		in   TaskInput
	}{
		{"missing title", TaskInput{}},
		{"blank title", TaskInput{Title: ptr("   ")}},
		{"bad status", TaskInput{Title: ptr("x"), Status: ptr("later")}},
		{"bad priority", TaskInput{Title: ptr("x"), Priority: ptr("critical")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, "u1", tt.in)
			require.True(t, validation.IsValidation(err), "got %v", err)
		})
	}
}

func TestTaskComplete(t *testing.T) {
	ctx := context.Background()
	s, repo, rec, pub := newTaskService()

	task, err := s.Create(ctx, "u1", TaskInput{Title: ptr("Stretch")})
	require.NoError(t, err)

	done, err := s.Complete(ctx, "u1", task.ID)
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusDone, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.True(t, done.CompletedAt.Equal(testNow))
	require.Equal(t, model.TaskStatusDone, repo.tasks[task.ID].Status)
	require.Contains(t, pub.types(), realtime.EventTaskCompleted)
	require.Contains(t, rec.metrics, model.MetricTasksCompleted)

	// completing again changes nothing
	n := len(pub.types())
	_, err = s.Complete(ctx, "u1", task.ID)
	require.NoError(t, err)
	require.Len(t, pub.types(), n)
}

func TestTaskUpdateReopenClearsCompletion(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTaskService()

	task, err := s.Create(ctx, "u1", TaskInput{Title: ptr("Read"), Status: ptr(model.TaskStatusDone)})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)

	task, err = s.Update(ctx, "u1", task.ID, TaskInput{Status: ptr(model.TaskStatusInProgress)})
	require.NoError(t, err)
	require.Nil(t, task.CompletedAt)
	require.Equal(t, "Read", task.Title)
}

func TestTaskOwnership(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTaskService()

	task, err := s.Create(ctx, "u1", TaskInput{Title: ptr("Private")})
	require.NoError(t, err)

	_, err = s.ByID(ctx, "u2", task.ID)
	require.ErrorIs(t, err, repository.ErrTaskNotFound)
	require.ErrorIs(t, s.Delete(ctx, "u2", task.ID), repository.ErrTaskNotFound)
	require.NoError(t, s.Delete(ctx, "u1", task.ID))
}

func TestTaskUpdateAdvancesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s, repo, _, _ := newTaskService()

	task, err := s.Create(ctx, "u1", TaskInput{Title: ptr("Plan")})
	require.NoError(t, err)
	require.True(t, task.UpdatedAt.Equal(testNow))

	later := testNow.Add(90 * time.Minute)
	s.now = func() time.Time { return later }

	task, err = s.Update(ctx, "u1", task.ID, TaskInput{Title: ptr("Plan week")})
	require.NoError(t, err)
	require.True(t, task.UpdatedAt.Equal(later))
	require.True(t, task.CreatedAt.Equal(testNow))
	require.True(t, repo.tasks[task.ID].UpdatedAt.Equal(later))
}

func TestTaskTagFilterIsNormalized(t *testing.T) {
	ctx := context.Background()
	s, repo, _, _ := newTaskService()

	_, err := s.Tasks(ctx, "u1", model.TaskFilter{Tag: "  Work "})
	require.NoError(t, err)
	require.Equal(t, "work", repo.lastFilter.Tag)
}

func TestTaskUncompleteRecordsProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("reopen", func(t *testing.T) {
		s, _, rec, _ := newTaskService()
		task, err := s.Create(ctx, "u1", TaskInput{Title: ptr("Read")})
		require.NoError(t, err)
		_, err = s.Complete(ctx, "u1", task.ID)
		require.NoError(t, err)
		rec.metrics = nil

		_, err = s.Update(ctx, "u1", task.ID, TaskInput{Status: ptr(model.TaskStatusTodo)})
		require.NoError(t, err)
		require.Equal(t, []string{model.MetricTasksCompleted}, rec.metrics)

		// edits that leave the task open do not recompute
		rec.metrics = nil
		_, err = s.Update(ctx, "u1", task.ID, TaskInput{Title: ptr("Read more")})
		require.NoError(t, err)
		require.Empty(t, rec.metrics)
	})

	t.Run("delete done task", func(t *testing.T) {
		s, _, rec, pub := newTaskService()
		task, err := s.Create(ctx, "u1", TaskInput{Title: ptr("Ship"), Status: ptr(model.TaskStatusDone)})
		require.NoError(t, err)
		rec.metrics = nil

		require.NoError(t, s.Delete(ctx, "u1", task.ID))
		require.Equal(t, []string{model.MetricTasksCompleted}, rec.metrics)
		require.Contains(t, pub.types(), realtime.EventTaskDeleted)
	})

	t.Run("delete open task", func(t *testing.T) {
		s, _, rec, _ := newTaskService()
		task, err := s.Create(ctx, "u1", TaskInput{Title: ptr("Draft")})
		require.NoError(t, err)
		rec.metrics = nil

		require.NoError(t, s.Delete(ctx, "u1", task.ID))
		require.Empty(t, rec.metrics)
	})
}
