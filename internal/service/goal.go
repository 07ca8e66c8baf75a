package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

var (
	ErrGoalLimitReached = errors.New("goal limit reached for current plan")
	ErrGoalNotActive    = errors.New("goal is not active")
)

type GoalInput struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	TargetValue   *float64   `json:"target_value"`
	Unit          *string    `json:"unit"`
	Status        *string    `json:"status"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
}

type GoalService struct {
	repo          repository.GoalRepository
	entryRepo     repository.GoalEntryRepository
	subscriptions *SubscriptionService
	notifications *NotificationService
	recorder      ActivityRecorder
	publisher     realtime.Publisher
	now           func() time.Time
}

func NewGoalService(
	repo repository.GoalRepository,
	entryRepo repository.GoalEntryRepository,
	subscriptions *SubscriptionService,
	notifications *NotificationService,
	recorder ActivityRecorder,
	publisher realtime.Publisher,
) *GoalService {
	return &GoalService{
		repo:          repo,
		entryRepo:     entryRepo,
		subscriptions: subscriptions,
		notifications: notifications,
		recorder:      recorderOrNoop(recorder),
		publisher:     publisher,
		now:           time.Now,
	}
}

func (in GoalInput) apply(goal *model.Goal) error {
	if in.Title != nil {
		goal.Title = strings.TrimSpace(*in.Title)
	}
	if err := validation.Required("title", goal.Title, 200); err != nil {
		return err
	}
	if in.Description != nil {
		goal.Description = *in.Description
	}
	if err := validation.MaxLength("description", goal.Description, 2000); err != nil {
		return err
	}
	if in.TargetValue != nil {
		goal.TargetValue = *in.TargetValue
	}
	if goal.TargetValue <= 0 || math.IsInf(goal.TargetValue, 0) || math.IsNaN(goal.TargetValue) {
		return validation.New("target_value", "target_value must be positive")
	}
	if in.Unit != nil {
		goal.Unit = strings.TrimSpace(*in.Unit)
	}
	if err := validation.MaxLength("unit", goal.Unit, 30); err != nil {
		return err
	}
	if in.Status != nil {
		if !model.ValidGoalStatus(*in.Status) {
			return validation.New("status", "invalid status %q", *in.Status)
		}
		goal.Status = *in.Status
	}
	if in.ClearDeadline {
		goal.Deadline = nil
	} else if in.Deadline != nil {
		d := in.Deadline.UTC()
		goal.Deadline = &d
	}
	return nil
}

// checkLimit enforces the plan's cap on active goals.
func (s *GoalService) checkLimit(ctx context.Context, userID string) error {
	sub, err := s.subscriptions.Subscription(ctx, userID)
	if err != nil {
		return err
	}
	limit := sub.GoalLimit()
	if limit == -1 {
		return nil
	}
	count, err := s.repo.CountActive(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count goals: %w", err)
	}
	if count >= limit {
		return ErrGoalLimitReached
	}
	return nil
}

func (s *GoalService) Create(ctx context.Context, userID string, in GoalInput) (*model.Goal, error) {
	now := s.now().UTC()
	goal := &model.Goal{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    model.GoalStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.Status = nil
	if err := in.apply(goal); err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, userID); err != nil {
		return nil, err
	}

	err := s.repo.Create(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}
	return goal, nil
}

func (s *GoalService) ByID(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	return s.repo.ByID(ctx, userID, goalID)
}

func (s *GoalService) Goals(ctx context.Context, userID, status, sortBy string) ([]*model.Goal, error) {
	if status != "" && !model.ValidGoalStatus(status) {
		return nil, validation.New("status", "invalid status %q", status)
	}
	return s.repo.Goals(ctx, userID, status, sortBy)
}

func (s *GoalService) GoalWithEntries(ctx context.Context, userID, goalID string) (*model.Goal, []*model.GoalEntry, error) {
	goal, err := s.repo.ByID(ctx, userID, goalID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.entryRepo.Entries(ctx, goalID)
	if err != nil {
		return nil, nil, err
	}
	return goal, entries, nil
}

// Update applies a partial change. Reactivating an archived or completed
// goal counts against the plan limit again.
func (s *GoalService) Update(ctx context.Context, userID, goalID string, in GoalInput) (*model.Goal, error) {
	goal, err := s.repo.ByID(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	wasActive := goal.Status == model.GoalStatusActive

	if err := in.apply(goal); err != nil {
		return nil, err
	}
	if !wasActive && goal.Status == model.GoalStatusActive {
		if err := s.checkLimit(ctx, userID); err != nil {
			return nil, err
		}
	}
	goal.UpdatedAt = s.now().UTC()

	err = s.repo.Update(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	return goal, nil
}

// AddProgress appends an entry and advances the goal. The goal completes
// when current_value reaches target_value.
func (s *GoalService) AddProgress(ctx context.Context, userID, goalID string, value float64, note string) (*model.Goal, *model.GoalEntry, error) {
	if value == 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, nil, validation.New("value", "value must be a non-zero number")
	}
	if err := validation.MaxLength("note", note, 1000); err != nil {
		return nil, nil, err
	}

	goal, err := s.repo.ByID(ctx, userID, goalID)
	if err != nil {
		return nil, nil, err
	}
	if goal.Status != model.GoalStatusActive {
		return nil, nil, ErrGoalNotActive
	}

	now := s.now().UTC()
	entry := &model.GoalEntry{
		ID:        uuid.New().String(),
		GoalID:    goal.ID,
		Value:     value,
		Note:      note,
		CreatedAt: now,
	}
	goal.CurrentValue = math.Max(0, goal.CurrentValue+value)
	completed := goal.CurrentValue >= goal.TargetValue
	if completed {
		goal.Status = model.GoalStatusCompleted
	}
	goal.UpdatedAt = now

	err = s.entryRepo.AddProgress(ctx, goal, entry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record progress: %w", err)
	}

	realtime.Emit(ctx, s.publisher, userID, realtime.EventGoalProgress, map[string]any{
		"goal_id":       goal.ID,
		"current_value": goal.CurrentValue,
		"target_value":  goal.TargetValue,
		"progress":      goal.Progress(),
	})
	if completed {
		s.completed(ctx, goal)
	}
	return goal, entry, nil
}

func (s *GoalService) completed(ctx context.Context, goal *model.Goal) {
	slog.Info("goal completed", "goal_id", goal.ID, "user_id", goal.UserID)
	realtime.Emit(ctx, s.publisher, goal.UserID, realtime.EventGoalCompleted, goal)

	if s.notifications != nil {
		_, err := s.notifications.Notify(ctx, goal.UserID, Notice{
			Type:     model.NotificationGoalCompleted,
			TitleKey: "notification.goal_completed.title",
			BodyKey:  "notification.goal_completed.body",
			Args:     []any{"goal", goal.Title},
			Data:     map[string]string{"goal_id": goal.ID},
		})
		if err != nil {
			slog.Warn("failed to notify goal completion", "error", err, "goal_id", goal.ID)
		}
	}
	s.recorder.Record(ctx, goal.UserID, model.MetricGoalsCompleted)
}

func (s *GoalService) Delete(ctx context.Context, userID, goalID string) error {
	return s.repo.Delete(ctx, userID, goalID)
}
