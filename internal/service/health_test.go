package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

type fakeHealth struct {
	logs map[string]*model.HealthLog
}

func (f *fakeHealth) Create(_ context.Context, l *model.HealthLog) error {
	cp := *l
	f.logs[l.ID] = &cp
	return nil
}

func (f *fakeHealth) ByID(_ context.Context, userID, id string) (*model.HealthLog, error) {
	l, ok := f.logs[id]
	if !ok || l.UserID != userID {
		return nil, repository.ErrHealthLogNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeHealth) Logs(_ context.Context, userID string, filter model.HealthLogFilter) ([]*model.HealthLog, error) {
	var out []*model.HealthLog
	for _, l := range f.logs {
		if l.UserID != userID || (filter.Type != "" && l.Type != filter.Type) {
			continue
		}
		if filter.From != nil && l.LoggedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && l.LoggedAt.After(*filter.To) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeHealth) Update(_ context.Context, l *model.HealthLog) error {
	cp := *l
	f.logs[l.ID] = &cp
	return nil
}

func (f *fakeHealth) Delete(_ context.Context, userID, id string) error {
	if _, err := f.ByID(context.Background(), userID, id); err != nil {
		return err
	}
	delete(f.logs, id)
	return nil
}

func newHealthService() (*HealthService, *fakeHealth, *fakeRecorder) {
	repo := &fakeHealth{logs: map[string]*model.HealthLog{}}
	rec := &fakeRecorder{}
	s := NewHealthService(repo, rec)
	s.now = fixedNow
	return s, repo, rec
}

func TestHealthCreate(t *testing.T) {
	ctx := context.Background()
	s, _, rec := newHealthService()

	log, err := s.Create(ctx, "u1", HealthLogInput{Type: ptr(model.HealthTypeWeight), Value: ptr(72.4)})
	require.NoError(t, err)
	require.Equal(t, "kg", log.Unit)
	require.Equal(t, model.JSON("{}"), log.Payload)
	require.True(t, log.LoggedAt.Equal(testNow))
	require.Equal(t, []string{model.MetricHealthLogs}, rec.metrics)

	// switching type without a unit resets to the new default
	log, err = s.Update(ctx, "u1", log.ID, HealthLogInput{Type: ptr(model.HealthTypeSleep)})
	require.NoError(t, err)
	require.Equal(t, "hours", log.Unit)
}

func TestHealthCreateValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newHealthService()
	future := testNow.Add(3 * time.Hour)

	tests := []struct {
		name string
		in   HealthLogInput
	}{
		{"missing value", HealthLogInput{Type: ptr(model.HealthTypeWater)}},
		{"missing type", HealthLogInput{Value: ptr(1.0)}},
		{"unknown type", HealthLogInput{Type: ptr("blood_sugar"), Value: ptr(1.0)}},
		{"negative value", HealthLogInput{Type: ptr(model.HealthTypeSteps), Value: ptr(-5.0)}},
		{"array payload", HealthLogInput{Type: ptr(model.HealthTypeMood), Value: ptr(3.0), Payload: model.JSON(`[1,2]`)}},
		{"future", HealthLogInput{Type: ptr(model.HealthTypeMood), Value: ptr(3.0), LoggedAt: &future}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, "u1", tt.in)
			require.True(t, validation.IsValidation(err), "got %v", err)
		})
	}
}

func TestHealthSummary(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newHealthService()

	add := func(id, typ string, value float64, at time.Time) {
		repo.logs[id] = &model.HealthLog{ID: id, UserID: "u1", Type: typ, Value: value, LoggedAt: at}
	}
	add("a", model.HealthTypeSleep, 7, testNow.Add(-time.Hour))
	add("b", model.HealthTypeSleep, 8, testNow.Add(-2*time.Hour))
	add("c", model.HealthTypeSleep, 6, testNow.Add(-48*time.Hour))
	add("d", model.HealthTypeSleep, 9, testNow.Add(-10*24*time.Hour)) // outside the window
	add("e", model.HealthTypeWater, 500, testNow.Add(-time.Hour))

	summary, err := s.Summary(ctx, "u1", model.HealthTypeSleep, 0)
	require.NoError(t, err)
	require.Equal(t, "hours", summary.Unit)
	require.Equal(t, 3, summary.Count)
	require.Equal(t, 7.0, summary.Average)
	require.Len(t, summary.Days, 2)

	require.Equal(t, "2026-03-08", summary.Days[0].Date)
	require.Equal(t, 1, summary.Days[0].Count)

	today := summary.Days[1]
	require.Equal(t, "2026-03-10", today.Date)
	require.Equal(t, 2, today.Count)
	require.Equal(t, 7.5, today.Avg)
	require.Equal(t, 7.0, today.Min)
	require.Equal(t, 8.0, today.Max)

	_, err = s.Summary(ctx, "u1", "", 7)
	require.True(t, validation.IsValidation(err))
}
