package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
)

// AccountExport is the portable copy of a user's data.
type AccountExport struct {
	ExportedAt    time.Time             `json:"exported_at"`
	User          *model.User           `json:"user"`
	Profile       *model.Profile        `json:"profile,omitempty"`
	Tasks         []*model.Task         `json:"tasks"`
	HealthLogs    []*model.HealthLog    `json:"health_logs"`
	FocusSessions []*model.FocusSession `json:"focus_sessions"`
	Goals         []*model.Goal         `json:"goals"`
	Habits        []*model.Habit        `json:"habits"`
}

// ExportResult carries either a download URL for a stored export or the
// export itself when no object storage is configured.
type ExportResult struct {
	URL    string         `json:"url,omitempty"`
	Export *AccountExport `json:"export,omitempty"`
}

type ExportService struct {
	users         repository.UserRepository
	profiles      repository.ProfileRepository
	tasks         repository.TaskRepository
	health        repository.HealthLogRepository
	focus         repository.FocusSessionRepository
	goals         repository.GoalRepository
	habits        repository.HabitRepository
	subscriptions *SubscriptionService
	files         *FileService
	now           func() time.Time
}

func NewExportService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	tasks repository.TaskRepository,
	health repository.HealthLogRepository,
	focus repository.FocusSessionRepository,
	goals repository.GoalRepository,
	habits repository.HabitRepository,
	subscriptions *SubscriptionService,
	files *FileService,
) *ExportService {
	return &ExportService{
		users:         users,
		profiles:      profiles,
		tasks:         tasks,
		health:        health,
		focus:         focus,
		goals:         goals,
		habits:        habits,
		subscriptions: subscriptions,
		files:         files,
		now:           time.Now,
	}
}

// Build collects everything the user owns.
func (s *ExportService) Build(ctx context.Context, userID string) (*AccountExport, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &AccountExport{ExportedAt: s.now().UTC(), User: user}

	if profile, err := s.profiles.ByUserID(ctx, userID); err == nil {
		out.Profile = profile
	}
	if out.Tasks, err = s.tasks.Tasks(ctx, userID, model.TaskFilter{Sort: repository.TaskSortCreated}); err != nil {
		return nil, fmt.Errorf("failed to export tasks: %w", err)
	}
	if out.HealthLogs, err = s.health.Logs(ctx, userID, model.HealthLogFilter{}); err != nil {
		return nil, fmt.Errorf("failed to export health logs: %w", err)
	}
	if out.FocusSessions, err = s.focus.Sessions(ctx, userID, model.FocusFilter{}); err != nil {
		return nil, fmt.Errorf("failed to export focus sessions: %w", err)
	}
	if out.Goals, err = s.goals.Goals(ctx, userID, "", repository.GoalSortRecent); err != nil {
		return nil, fmt.Errorf("failed to export goals: %w", err)
	}
	if out.Habits, err = s.habits.Habits(ctx, userID, true); err != nil {
		return nil, fmt.Errorf("failed to export habits: %w", err)
	}
	return out, nil
}

// Export requires the export feature. With storage configured the JSON is
// uploaded and a link returned; otherwise it is returned inline.
func (s *ExportService) Export(ctx context.Context, userID string) (*ExportResult, error) {
	if err := s.subscriptions.RequireFeature(ctx, userID, model.FeatureExport); err != nil {
		return nil, err
	}

	export, err := s.Build(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.files == nil || !s.files.Enabled() {
		return &ExportResult{Export: export}, nil
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, err
	}
	url, err := s.files.StoreExport(ctx, userID, data)
	if err != nil {
		slog.Warn("failed to store export, returning inline", "error", err, "user_id", userID)
		return &ExportResult{Export: export}, nil
	}
	return &ExportResult{URL: url}, nil
}
