package model

// Activity metrics shared by badge criteria and challenges.
const (
	MetricTasksCompleted         = "tasks_completed"
	MetricTasksCreated           = "tasks_created"
	MetricFocusSessionsCompleted = "focus_sessions_completed"
	MetricFocusMinutes           = "focus_minutes"
	MetricHealthLogs             = "health_logs"
	MetricHabitChecks            = "habit_checks"
	MetricChallengesJoined       = "challenges_joined"
	MetricChallengesCompleted    = "challenges_completed"
	MetricGoalsCompleted         = "goals_completed"
)

// ChallengeMetric reports whether a metric can drive a challenge.
func ChallengeMetric(m string) bool {
	switch m {
	case MetricTasksCompleted, MetricFocusMinutes, MetricHealthLogs, MetricHabitChecks:
		return true
	}
	return false
}
