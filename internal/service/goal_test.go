package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/validation"
)

func newGoalService(plan string) (*GoalService, *fakeGoals, *fakeRecorder, *fakePublisher) {
	repo := newFakeGoals()
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	subs := NewSubscriptionService(&fakeSubscriptions{plan: plan})
	s := NewGoalService(repo, repo, subs, nil, rec, pub)
	s.now = fixedNow
	return s, repo, rec, pub
}

func TestGoalPlanLimit(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newGoalService(model.PlanFree)

	var ids []string
	for range 3 {
		g, err := s.Create(ctx, "u1", GoalInput{Title: ptr("Read books"), TargetValue: ptr(12.0)})
		require.NoError(t, err)
		ids = append(ids, g.ID)
	}
	_, err := s.Create(ctx, "u1", GoalInput{Title: ptr("One more"), TargetValue: ptr(1.0)})
	require.ErrorIs(t, err, ErrGoalLimitReached)

	// archiving frees a slot, reactivating takes it back
	_, err = s.Update(ctx, "u1", ids[0], GoalInput{Status: ptr(model.GoalStatusArchived)})
	require.NoError(t, err)
	_, err = s.Create(ctx, "u1", GoalInput{Title: ptr("One more"), TargetValue: ptr(1.0)})
	require.NoError(t, err)
	_, err = s.Update(ctx, "u1", ids[0], GoalInput{Status: ptr(model.GoalStatusActive)})
	require.ErrorIs(t, err, ErrGoalLimitReached)
}

func TestGoalTeamPlanIsUnlimited(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newGoalService(model.PlanTeam)
	for range 30 {
		_, err := s.Create(ctx, "u1", GoalInput{Title: ptr("Goal"), TargetValue: ptr(1.0)})
		require.NoError(t, err)
	}
}

func TestGoalProgressCompletes(t *testing.T) {
	ctx := context.Background()
	s, repo, rec, pub := newGoalService(model.PlanFree)

	goal, err := s.Create(ctx, "u1", GoalInput{Title: ptr("Run 10k"), TargetValue: ptr(10.0), Unit: ptr("km")})
	require.NoError(t, err)

	goal, entry, err := s.AddProgress(ctx, "u1", goal.ID, 4, "easy")
	require.NoError(t, err)
	require.Equal(t, 4.0, goal.CurrentValue)
	require.Equal(t, model.GoalStatusActive, goal.Status)
	require.Equal(t, "easy", entry.Note)

	goal, _, err = s.AddProgress(ctx, "u1", goal.ID, 7, "")
	require.NoError(t, err)
	require.Equal(t, model.GoalStatusCompleted, goal.Status)
	require.Equal(t, 100, goal.Progress())
	require.Len(t, repo.entries, 2)
	require.Contains(t, pub.types(), realtime.EventGoalCompleted)
	require.Equal(t, []string{model.MetricGoalsCompleted}, rec.metrics)

	_, _, err = s.AddProgress(ctx, "u1", goal.ID, 1, "")
	require.ErrorIs(t, err, ErrGoalNotActive)
}

func TestGoalProgressNeverNegative(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newGoalService(model.PlanFree)

	goal, err := s.Create(ctx, "u1", GoalInput{Title: ptr("Save"), TargetValue: ptr(100.0)})
	require.NoError(t, err)

	goal, _, err = s.AddProgress(ctx, "u1", goal.ID, -20, "refund")
	require.NoError(t, err)
	require.Zero(t, goal.CurrentValue)

	_, _, err = s.AddProgress(ctx, "u1", goal.ID, 0, "")
	require.True(t, validation.IsValidation(err))
}

func TestGoalInputValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newGoalService(model.PlanFree)

	_, err := s.Create(ctx, "u1", GoalInput{Title: ptr("No target")})
	require.True(t, validation.IsValidation(err))

	_, err = s.Create(ctx, "u1", GoalInput{Title: ptr("x"), TargetValue: ptr(1.0), Status: ptr(model.GoalStatusCompleted)})
	require.NoError(t, err, "status is ignored on create")
}
