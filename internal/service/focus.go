package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

var ErrSessionNotActive = errors.New("focus session is not active")

// streakWindow bounds how far back day streaks are computed.
const streakWindow = 366 * 24 * time.Hour

type FocusStart struct {
	TaskID         *string `json:"task_id"`
	Kind           string  `json:"kind"`
	PlannedMinutes int     `json:"planned_minutes"`
	Note           string  `json:"note"`
}

type FocusService struct {
	repo      repository.FocusSessionRepository
	tasks     repository.TaskRepository
	recorder  ActivityRecorder
	publisher realtime.Publisher
	now       func() time.Time
}

func NewFocusService(
	repo repository.FocusSessionRepository,
	tasks repository.TaskRepository,
	recorder ActivityRecorder,
	publisher realtime.Publisher,
) *FocusService {
	return &FocusService{
		repo:      repo,
		tasks:     tasks,
		recorder:  recorderOrNoop(recorder),
		publisher: publisher,
		now:       time.Now,
	}
}

// Start opens a session. A user has at most one active session.
func (s *FocusService) Start(ctx context.Context, userID string, in FocusStart) (*model.FocusSession, error) {
	if in.Kind == "" {
		in.Kind = model.FocusKindWork
	}
	if !model.ValidFocusKind(in.Kind) {
		return nil, validation.New("kind", "invalid kind %q", in.Kind)
	}
	if in.PlannedMinutes == 0 {
		in.PlannedMinutes = defaultPlannedMinutes(in.Kind)
	}
	if in.PlannedMinutes < 1 || in.PlannedMinutes > model.MaxFocusMinutes {
		return nil, validation.New("planned_minutes", "planned_minutes must be between 1 and %d", model.MaxFocusMinutes)
	}
	if err := validation.MaxLength("note", in.Note, 1000); err != nil {
		return nil, err
	}
	if in.TaskID != nil && *in.TaskID != "" {
		if _, err := s.tasks.ByID(ctx, userID, *in.TaskID); err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return nil, validation.New("task_id", "task not found")
			}
			return nil, err
		}
	} else {
		in.TaskID = nil
	}

	_, err := s.repo.Active(ctx, userID)
	if err == nil {
		return nil, repository.ErrSessionAlreadyActive
	}
	if !errors.Is(err, repository.ErrNoActiveSession) {
		return nil, fmt.Errorf("failed to check active session: %w", err)
	}

	now := s.now().UTC()
	session := &model.FocusSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		TaskID:         in.TaskID,
		Kind:           in.Kind,
		PlannedMinutes: in.PlannedMinutes,
		Status:         model.FocusStatusActive,
		StartedAt:      now,
		Note:           in.Note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.repo.Create(ctx, session)
	if err != nil {
		return nil, err
	}

	realtime.Emit(ctx, s.publisher, userID, realtime.EventFocusStarted, session)
	return session, nil
}

func defaultPlannedMinutes(kind string) int {
	switch kind {
	case model.FocusKindShortBreak:
		return 5
	case model.FocusKindLongBreak:
		return 15
	}
	return 25
}

// elapsedMinutes rounds down, with a floor of one minute and a cap of MaxFocusMinutes.
func elapsedMinutes(start, end time.Time) int {
	m := int(end.Sub(start) / time.Minute)
	if m < 1 {
		m = 1
	}
	if m > model.MaxFocusMinutes {
		m = model.MaxFocusMinutes
	}
	return m
}

// Complete ends the session. actualMinutes defaults to the elapsed time.
func (s *FocusService) Complete(ctx context.Context, userID, sessionID string, actualMinutes *int) (*model.FocusSession, error) {
	session, err := s.repo.ByID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.FocusStatusActive {
		return nil, ErrSessionNotActive
	}

	now := s.now().UTC()
	minutes := elapsedMinutes(session.StartedAt, now)
	if actualMinutes != nil {
		if *actualMinutes < 0 {
			return nil, validation.New("actual_minutes", "actual_minutes must not be negative")
		}
		minutes = min(*actualMinutes, model.MaxFocusMinutes)
	}

	session.Status = model.FocusStatusCompleted
	session.ActualMinutes = minutes
	session.EndedAt = &now
	session.UpdatedAt = now

	err = s.repo.Update(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	slog.Debug("focus session completed", "session_id", session.ID, "user_id", userID, "minutes", minutes)
	realtime.Emit(ctx, s.publisher, userID, realtime.EventFocusCompleted, session)
	s.recorder.Record(ctx, userID, model.MetricFocusSessionsCompleted, model.MetricFocusMinutes)
	return session, nil
}

func (s *FocusService) Interrupt(ctx context.Context, userID, sessionID string) (*model.FocusSession, error) {
	session, err := s.repo.ByID(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.FocusStatusActive {
		return nil, ErrSessionNotActive
	}

	now := s.now().UTC()
	session.Status = model.FocusStatusInterrupted
	session.ActualMinutes = elapsedMinutes(session.StartedAt, now)
	session.EndedAt = &now
	session.UpdatedAt = now

	err = s.repo.Update(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to interrupt session: %w", err)
	}

	realtime.Emit(ctx, s.publisher, userID, realtime.EventFocusInterrupted, session)
	return session, nil
}

func (s *FocusService) ByID(ctx context.Context, userID, sessionID string) (*model.FocusSession, error) {
	return s.repo.ByID(ctx, userID, sessionID)
}

func (s *FocusService) Active(ctx context.Context, userID string) (*model.FocusSession, error) {
	return s.repo.Active(ctx, userID)
}

func (s *FocusService) Sessions(ctx context.Context, userID string, filter model.FocusFilter) ([]*model.FocusSession, error) {
	switch filter.Status {
	case "", model.FocusStatusActive, model.FocusStatusCompleted, model.FocusStatusInterrupted:
	default:
		return nil, validation.New("status", "invalid status %q", filter.Status)
	}
	if filter.From != nil && filter.To != nil {
		if err := validation.ValidateRange("to", *filter.From, *filter.To); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.repo.Sessions(ctx, userID, filter)
}

func (s *FocusService) Delete(ctx context.Context, userID, sessionID string) error {
	return s.repo.Delete(ctx, userID, sessionID)
}

// Stats summarises focus history. Streaks count UTC days with at least one
// completed work session.
func (s *FocusService) Stats(ctx context.Context, userID string) (*model.FocusStats, error) {
	total, completed, minutes, err := s.repo.Totals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load focus totals: %w", err)
	}

	now := s.now().UTC()
	times, err := s.repo.CompletedTimes(ctx, userID, now.Add(-streakWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load focus history: %w", err)
	}

	today := now.Format(model.DateLayout)
	completedToday := 0
	for _, t := range times {
		if t.UTC().Format(model.DateLayout) == today {
			completedToday++
		}
	}
	current, longest := model.DailyStreaks(times, now)

	return &model.FocusStats{
		TotalSessions:     total,
		CompletedSessions: completed,
		CompletedToday:    completedToday,
		TotalFocusMinutes: minutes,
		CurrentStreak:     current,
		LongestStreak:     longest,
	}, nil
}
