package model

import (
	"sort"
	"time"
)

// DailyStreaks computes the current and longest run of consecutive days.
// The current run counts only if it ends today or yesterday.
func DailyStreaks(days []time.Time, today time.Time) (current, longest int) {
	keys := uniqueSorted(days, func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	})
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return runs(keys, 24*time.Hour, today)
}

// WeeklyStreaks works like DailyStreaks on ISO weeks (starting Monday).
func WeeklyStreaks(days []time.Time, today time.Time) (current, longest int) {
	keys := uniqueSorted(days, weekStart)
	return runs(keys, 7*24*time.Hour, weekStart(today))
}

func weekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func uniqueSorted(in []time.Time, key func(time.Time) time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(in))
	out := make([]time.Time, 0, len(in))
	for _, t := range in {
		k := key(t)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func runs(keys []time.Time, step time.Duration, now time.Time) (current, longest int) {
	if len(keys) == 0 {
		return 0, 0
	}

	run := 1
	longest = 1
	for i := 1; i < len(keys); i++ {
		if keys[i].Sub(keys[i-1]) == step {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	last := keys[len(keys)-1]
	if last.Equal(now) || last.Equal(now.Add(-step)) {
		current = run
	}
	return current, longest
}
