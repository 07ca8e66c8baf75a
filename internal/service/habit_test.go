package service

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

func newHabitService(profiles map[string]*model.Profile) (*HabitService, *fakeHabits, *fakeRecorder) {
	repo := newFakeHabits()
	rec := &fakeRecorder{}
	s := NewHabitService(repo, fakeProfiles{profiles: profiles}, rec, &fakePublisher{})
	s.now = fixedNow
	return s, repo, rec
}

func TestHabitCheckOncePerDay(t *testing.T) {
	ctx := context.Background()
	s, _, rec := newHabitService(nil)

	habit, err := s.Create(ctx, "u1", HabitInput{Name: ptr("Meditate")})
	require.NoError(t, err)
	require.Equal(t, model.HabitFrequencyDaily, habit.Frequency)

	check, err := s.Check(ctx, "u1", habit.ID, "", "")
	require.NoError(t, err)
	require.Equal(t, "2026-03-10", check.CheckDate)
	require.Equal(t, []string{model.MetricHabitChecks}, rec.metrics)

	_, err = s.Check(ctx, "u1", habit.ID, "2026-03-10", "")
	require.ErrorIs(t, err, repository.ErrDuplicateCheck)

	_, err = s.Check(ctx, "u1", habit.ID, "2026-03-11", "")
	require.True(t, validation.IsValidation(err), "future dates are rejected")

	_, err = s.Check(ctx, "u1", habit.ID, "10/03/2026", "")
	require.True(t, validation.IsValidation(err))
}

func TestHabitCheckUsesProfileTimezone(t *testing.T) {
	// 15:30 UTC on 2026-03-10 is already 2026-03-11 in Auckland.
	s, _, _ := newHabitService(map[string]*model.Profile{
		"u1": {UserID: "u1", Timezone: "Pacific/Auckland"},
	})
	ctx := context.Background()

	habit, err := s.Create(ctx, "u1", HabitInput{Name: ptr("Walk")})
	require.NoError(t, err)

	check, err := s.Check(ctx, "u1", habit.ID, "", "")
	require.NoError(t, err)
	require.Equal(t, "2026-03-11", check.CheckDate)
}

func TestHabitStreaks(t *testing.T) {
	ctx := context.Background()
	s, _, rec := newHabitService(nil)

	habit, err := s.Create(ctx, "u1", HabitInput{Name: ptr("Journal")})
	require.NoError(t, err)
	for _, d := range []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04", "2026-03-08", "2026-03-09", "2026-03-10"} {
		_, err := s.Check(ctx, "u1", habit.ID, d, "")
		require.NoError(t, err)
	}

	got, err := s.ByID(ctx, "u1", habit.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.CurrentStreak)
	require.Equal(t, 4, got.LongestStreak)

	rec.metrics = nil
	require.NoError(t, s.Uncheck(ctx, "u1", habit.ID, "2026-03-10"))
	require.Equal(t, []string{model.MetricHabitChecks}, rec.metrics, "unchecking recomputes challenge progress")
	got, err = s.ByID(ctx, "u1", habit.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.CurrentStreak, "a streak ending yesterday is still current")

	rec.metrics = nil
	require.ErrorIs(t, s.Uncheck(ctx, "u1", habit.ID, "2026-03-10"), repository.ErrHabitCheckNotFound)
	require.Empty(t, rec.metrics)
}

func TestWeeklyHabitStreaks(t *testing.T) {
	habit := &model.Habit{Frequency: model.HabitFrequencyWeekly, TargetPerPeriod: 2}
	today := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)

	// Week of 03-02 has one check (missed), weeks of 03-09 and 03-16 meet the target.
	dates := []string{"2026-03-03", "2026-03-09", "2026-03-12", "2026-03-16", "2026-03-17"}
	current, longest := habitStreaks(habit, dates, today)
	require.Equal(t, 2, current)
	require.Equal(t, 2, longest)
}

func TestHabitValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newHabitService(nil)

	_, err := s.Create(ctx, "u1", HabitInput{Name: ptr("Run"), Frequency: ptr("monthly")})
	require.True(t, validation.IsValidation(err))

	_, err = s.Create(ctx, "u1", HabitInput{Name: ptr("Run"), TargetPerPeriod: ptr(3)})
	require.True(t, validation.IsValidation(err), "daily habits allow one check per period")

	h, err := s.Create(ctx, "u1", HabitInput{Name: ptr("Run"), Frequency: ptr(model.HabitFrequencyWeekly), TargetPerPeriod: ptr(3)})
	require.NoError(t, err)

	h, err = s.Update(ctx, "u1", h.ID, HabitInput{Frequency: ptr(model.HabitFrequencyDaily)})
	require.NoError(t, err)
	require.Equal(t, 1, h.TargetPerPeriod)

	h, err = s.Update(ctx, "u1", h.ID, HabitInput{Archived: ptr(true)})
	require.NoError(t, err)
	_, err = s.Check(ctx, "u1", h.ID, "", "")
	require.True(t, validation.IsValidation(err))
}
