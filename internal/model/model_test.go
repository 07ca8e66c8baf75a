package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDailyStreaks(t *testing.T) {
	days := []time.Time{
		day("2026-03-01"), day("2026-03-02"), day("2026-03-03"),
		day("2026-03-05"),
		day("2026-03-08"), day("2026-03-09"), day("2026-03-09"),
	}

	current, longest := DailyStreaks(days, day("2026-03-10"))
	require.Equal(t, 2, current)
	require.Equal(t, 3, longest)

	current, _ = DailyStreaks(days, day("2026-03-12"))
	require.Equal(t, 0, current)

	current, longest = DailyStreaks(nil, day("2026-03-12"))
	require.Zero(t, current)
	require.Zero(t, longest)
}

func TestWeeklyStreaks(t *testing.T) {
	// Weeks starting 2026-03-02, 2026-03-09 and 2026-03-16.
	days := []time.Time{day("2026-03-03"), day("2026-03-09"), day("2026-03-22")}

	current, longest := WeeklyStreaks(days, day("2026-03-23"))
	require.Equal(t, 3, current)
	require.Equal(t, 3, longest)
}

func TestSubscriptionLimits(t *testing.T) {
	free := &Subscription{PlanID: PlanFree, Status: SubscriptionStatusActive}
	premium := &Subscription{PlanID: PlanPremium, Status: SubscriptionStatusActive}
	team := &Subscription{PlanID: PlanTeam, Status: SubscriptionStatusActive}
	lapsed := &Subscription{PlanID: PlanPremium, Status: SubscriptionStatusCancelled}

	require.Equal(t, 3, free.GoalLimit())
	require.Equal(t, 25, premium.GoalLimit())
	require.Equal(t, -1, team.GoalLimit())
	require.Equal(t, 3, lapsed.GoalLimit())

	require.False(t, free.HasFeature(FeatureExport))
	require.True(t, premium.HasFeature(FeatureExport))
	require.False(t, lapsed.HasFeature(FeatureExport))
	require.True(t, premium.IsPaid())
	require.False(t, lapsed.IsPaid())
}

func TestJSONColumn(t *testing.T) {
	var j JSON
	require.NoError(t, j.Scan(`{"a":1}`))
	require.JSONEq(t, `{"a":1}`, string(j))
	require.True(t, j.IsObject())

	require.NoError(t, j.Scan(nil))
	v, err := j.Value()
	require.NoError(t, err)
	require.Equal(t, "{}", v)

	require.False(t, JSON(`[1,2]`).IsObject())

	out, err := json.Marshal(struct {
		P JSON `json:"p"`
	}{})
	require.NoError(t, err)
	require.JSONEq(t, `{"p":{}}`, string(out))
}

func TestStringList(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["home","work"]`)))
	require.Equal(t, StringList{"home", "work"}, l)

	v, err := StringList(nil).Value()
	require.NoError(t, err)
	require.Equal(t, "[]", v)
}

func TestBadgeRule(t *testing.T) {
	b := &Badge{Code: "x", Criteria: JSON(`{"metric":"tasks_completed","threshold":3}`)}
	rule, err := b.Rule()
	require.NoError(t, err)
	require.Equal(t, MetricTasksCompleted, rule.Metric)
	require.Equal(t, 3, rule.Threshold)

	b.Criteria = JSON(`{"metric":"tasks_completed"}`)
	_, err = b.Rule()
	require.Error(t, err)
}

func TestGoalProgress(t *testing.T) {
	g := &Goal{TargetValue: 10, CurrentValue: 4}
	require.Equal(t, 40, g.Progress())
	g.CurrentValue = 12
	require.Equal(t, 100, g.Progress())
	require.Equal(t, 0, (&Goal{}).Progress())
}
