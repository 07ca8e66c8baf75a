package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

type HabitInput struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Frequency       *string `json:"frequency"`
	TargetPerPeriod *int    `json:"target_per_period"`
	Archived        *bool   `json:"archived"`
}

type HabitService struct {
	repo      repository.HabitRepository
	profiles  repository.ProfileRepository
	recorder  ActivityRecorder
	publisher realtime.Publisher
	now       func() time.Time
}

func NewHabitService(
	repo repository.HabitRepository,
	profiles repository.ProfileRepository,
	recorder ActivityRecorder,
	publisher realtime.Publisher,
) *HabitService {
	return &HabitService{
		repo:      repo,
		profiles:  profiles,
		recorder:  recorderOrNoop(recorder),
		publisher: publisher,
		now:       time.Now,
	}
}

func (in HabitInput) apply(h *model.Habit) error {
	if in.Name != nil {
		h.Name = strings.TrimSpace(*in.Name)
	}
	if err := validation.Required("name", h.Name, 100); err != nil {
		return err
	}
	if in.Description != nil {
		h.Description = *in.Description
	}
	if err := validation.MaxLength("description", h.Description, 1000); err != nil {
		return err
	}
	if in.Frequency != nil {
		if !model.ValidHabitFrequency(*in.Frequency) {
			return validation.New("frequency", "frequency must be daily or weekly")
		}
		h.Frequency = *in.Frequency
	}
	if in.TargetPerPeriod != nil {
		h.TargetPerPeriod = *in.TargetPerPeriod
	}
	maxTarget := 1
	if h.Frequency == model.HabitFrequencyWeekly {
		maxTarget = 7
	}
	if h.TargetPerPeriod < 1 || h.TargetPerPeriod > maxTarget {
		return validation.New("target_per_period", "target_per_period must be between 1 and %d", maxTarget)
	}
	if in.Archived != nil {
		h.Archived = *in.Archived
	}
	return nil
}

func (s *HabitService) Create(ctx context.Context, userID string, in HabitInput) (*model.Habit, error) {
	now := s.now().UTC()
	habit := &model.Habit{
		ID:              uuid.New().String(),
		UserID:          userID,
		Frequency:       model.HabitFrequencyDaily,
		TargetPerPeriod: 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := in.apply(habit); err != nil {
		return nil, err
	}
	err := s.repo.Create(ctx, habit)
	if err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}
	return habit, nil
}

// ByID returns the habit with its streaks filled in.
func (s *HabitService) ByID(ctx context.Context, userID, habitID string) (*model.Habit, error) {
	habit, err := s.repo.ByID(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if err := s.fillStreaks(ctx, habit); err != nil {
		return nil, err
	}
	return habit, nil
}

func (s *HabitService) Habits(ctx context.Context, userID string, includeArchived bool) ([]*model.Habit, error) {
	habits, err := s.repo.Habits(ctx, userID, includeArchived)
	if err != nil {
		return nil, err
	}
	for _, h := range habits {
		if err := s.fillStreaks(ctx, h); err != nil {
			return nil, err
		}
	}
	return habits, nil
}

func (s *HabitService) Update(ctx context.Context, userID, habitID string, in HabitInput) (*model.Habit, error) {
	habit, err := s.repo.ByID(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if in.Frequency != nil && *in.Frequency == model.HabitFrequencyDaily && in.TargetPerPeriod == nil {
		habit.TargetPerPeriod = 1
	}
	if err := in.apply(habit); err != nil {
		return nil, err
	}
	habit.UpdatedAt = s.now().UTC()

	err = s.repo.Update(ctx, habit)
	if err != nil {
		return nil, fmt.Errorf("failed to update habit: %w", err)
	}
	if err := s.fillStreaks(ctx, habit); err != nil {
		return nil, err
	}
	return habit, nil
}

func (s *HabitService) Delete(ctx context.Context, userID, habitID string) error {
	return s.repo.Delete(ctx, userID, habitID)
}

// today is the current date in the user's timezone.
func (s *HabitService) today(ctx context.Context, userID string) time.Time {
	loc := time.UTC
	if s.profiles != nil {
		if profile, err := s.profiles.ByUserID(ctx, userID); err == nil {
			loc = profile.Location()
		}
	}
	now := s.now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Check records the habit as done on date (today when empty). A day can
// only be checked once.
func (s *HabitService) Check(ctx context.Context, userID, habitID, date, note string) (*model.HabitCheck, error) {
	habit, err := s.repo.ByID(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if habit.Archived {
		return nil, validation.New("habit", "archived habits cannot be checked")
	}
	if err := validation.MaxLength("note", note, 500); err != nil {
		return nil, err
	}

	today := s.today(ctx, userID)
	day := today
	if date != "" {
		day, err = time.Parse(model.DateLayout, date)
		if err != nil {
			return nil, validation.New("date", "date must be YYYY-MM-DD")
		}
		if day.After(today) {
			return nil, validation.New("date", "date cannot be in the future")
		}
	}

	check := &model.HabitCheck{
		ID:        uuid.New().String(),
		HabitID:   habit.ID,
		UserID:    userID,
		CheckDate: day.Format(model.DateLayout),
		Note:      note,
		CreatedAt: s.now().UTC(),
	}
	err = s.repo.CreateCheck(ctx, check)
	if err != nil {
		return nil, err
	}

	realtime.Emit(ctx, s.publisher, userID, realtime.EventHabitChecked, check)
	s.recorder.Record(ctx, userID, model.MetricHabitChecks)
	return check, nil
}

func (s *HabitService) Uncheck(ctx context.Context, userID, habitID, date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return validation.New("date", "date must be YYYY-MM-DD")
	}
	err := s.repo.DeleteCheck(ctx, userID, habitID, date)
	if err != nil {
		return err
	}
	s.recorder.Record(ctx, userID, model.MetricHabitChecks)
	return nil
}

func (s *HabitService) fillStreaks(ctx context.Context, h *model.Habit) error {
	dates, err := s.repo.CheckDates(ctx, h.ID)
	if err != nil {
		return fmt.Errorf("failed to load habit checks: %w", err)
	}
	h.CurrentStreak, h.LongestStreak = habitStreaks(h, dates, s.today(ctx, h.UserID))
	return nil
}

// habitStreaks counts consecutive periods meeting the habit's target.
// Weekly habits need target_per_period checks inside one ISO week.
func habitStreaks(h *model.Habit, dates []string, today time.Time) (current, longest int) {
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(model.DateLayout, d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}

	if h.Frequency != model.HabitFrequencyWeekly {
		return model.DailyStreaks(days, today)
	}

	perWeek := map[string]int{}
	for _, d := range days {
		y, w := d.ISOWeek()
		perWeek[fmt.Sprintf("%d-%d", y, w)]++
	}
	met := make([]time.Time, 0, len(days))
	for _, d := range days {
		y, w := d.ISOWeek()
		if perWeek[fmt.Sprintf("%d-%d", y, w)] >= h.TargetPerPeriod {
			met = append(met, d)
		}
	}
	return model.WeeklyStreaks(met, today)
}
