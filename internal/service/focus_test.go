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

func newFocusService() (*FocusService, *fakeFocus, *fakeTasks, *fakeRecorder, *fakePublisher) {
	repo := newFakeFocus()
	tasks := newFakeTasks()
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	s := NewFocusService(repo, tasks, rec, pub)
	s.now = fixedNow
	return s, repo, tasks, rec, pub
}

func TestFocusStartDefaults(t *testing.T) {
	s, _, _, _, pub := newFocusService()

	session, err := s.Start(context.Background(), "u1", FocusStart{})
	require.NoError(t, err)
	require.Equal(t, model.FocusKindWork, session.Kind)
	require.Equal(t, 25, session.PlannedMinutes)
	require.Equal(t, model.FocusStatusActive, session.Status)
	require.Equal(t, []string{realtime.EventFocusStarted}, pub.types())

	brk, err := s.Start(context.Background(), "u2", FocusStart{Kind: model.FocusKindShortBreak})
	require.NoError(t, err)
	require.Equal(t, 5, brk.PlannedMinutes)
}

func TestFocusSingleActiveSession(t *testing.T) {
	ctx := context.Background()
	s, _, _, _, _ := newFocusService()

	first, err := s.Start(ctx, "u1", FocusStart{})
	require.NoError(t, err)

	_, err = s.Start(ctx, "u1", FocusStart{})
	require.ErrorIs(t, err, repository.ErrSessionAlreadyActive)

	_, err = s.Interrupt(ctx, "u1", first.ID)
	require.NoError(t, err)

	_, err = s.Start(ctx, "u1", FocusStart{})
	require.NoError(t, err)
}

func TestFocusStartValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _, _, _ := newFocusService()

	_, err := s.Start(ctx, "u1", FocusStart{Kind: "nap"})
	require.True(t, validation.IsValidation(err))

	_, err = s.Start(ctx, "u1", FocusStart{PlannedMinutes: model.MaxFocusMinutes + 1})
	require.True(t, validation.IsValidation(err))

	_, err = s.Start(ctx, "u1", FocusStart{TaskID: ptr("missing")})
	require.True(t, validation.IsValidation(err))
}

func TestFocusCompleteElapsedAndCap(t *testing.T) {
	ctx := context.Background()
	s, repo, _, rec, pub := newFocusService()

	s.now = func() time.Time { return testNow.Add(-40 * time.Minute) }
	session, err := s.Start(ctx, "u1", FocusStart{})
	require.NoError(t, err)

	s.now = fixedNow
	done, err := s.Complete(ctx, "u1", session.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 40, done.ActualMinutes)
	require.Equal(t, model.FocusStatusCompleted, repo.sessions[session.ID].Status)
	require.Contains(t, pub.types(), realtime.EventFocusCompleted)
	require.Equal(t, []string{model.MetricFocusSessionsCompleted, model.MetricFocusMinutes}, rec.metrics)

	_, err = s.Complete(ctx, "u1", session.ID, nil)
	require.ErrorIs(t, err, ErrSessionNotActive)

	other, err := s.Start(ctx, "u1", FocusStart{})
	require.NoError(t, err)
	done, err = s.Complete(ctx, "u1", other.ID, ptr(5000))
	require.NoError(t, err)
	require.Equal(t, model.MaxFocusMinutes, done.ActualMinutes)
}

func TestElapsedMinutes(t *testing.T) {
	start := testNow
	require.Equal(t, 1, elapsedMinutes(start, start.Add(10*time.Second)))
	require.Equal(t, 25, elapsedMinutes(start, start.Add(25*time.Minute+59*time.Second)))
	require.Equal(t, model.MaxFocusMinutes, elapsedMinutes(start, start.Add(24*time.Hour)))
}

func TestFocusStats(t *testing.T) {
	ctx := context.Background()
	s, repo, _, _, _ := newFocusService()

	repo.sessions["a"] = &model.FocusSession{ID: "a", UserID: "u1", Status: model.FocusStatusCompleted, ActualMinutes: 25}
	repo.sessions["b"] = &model.FocusSession{ID: "b", UserID: "u1", Status: model.FocusStatusCompleted, ActualMinutes: 30}
	repo.sessions["c"] = &model.FocusSession{ID: "c", UserID: "u1", Status: model.FocusStatusInterrupted, ActualMinutes: 3}
	repo.times = []time.Time{
		testNow.Add(-2 * time.Hour),
		testNow.Add(-26 * time.Hour),
		testNow.Add(-5 * 24 * time.Hour),
	}

	stats, err := s.Stats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalSessions)
	require.Equal(t, 2, stats.CompletedSessions)
	require.Equal(t, 55, stats.TotalFocusMinutes)
	require.Equal(t, 1, stats.CompletedToday)
	require.Equal(t, 2, stats.CurrentStreak)
	require.Equal(t, 2, stats.LongestStreak)
}
