package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types pushed to connected clients.
const (
	EventTaskCreated         = "task.created"
	EventTaskUpdated         = "task.updated"
	EventTaskDeleted         = "task.deleted"
	EventTaskCompleted       = "task.completed"
	EventFocusStarted        = "focus.started"
	EventFocusCompleted      = "focus.completed"
	EventFocusInterrupted    = "focus.interrupted"
	EventGoalProgress        = "goal.progress"
	EventGoalCompleted       = "goal.completed"
	EventHabitChecked        = "habit.checked"
	EventChallengeProgress   = "challenge.progress"
	EventChallengeFinished   = "challenge.finished"
	EventBadgeUnlocked       = "badge.unlocked"
	EventNotificationCreated = "notification.created"
	EventCalendarSynced      = "calendar.synced"
)

// Event is a single message addressed to one user.
type Event struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	UserID string          `json:"user_id"`
	Data   json.RawMessage `json:"data,omitempty"`
	At     time.Time       `json:"at"`
}

// NewEvent builds an event with a fresh ID, encoding data as JSON.
func NewEvent(userID, eventType string, data any) (Event, error) {
	ev := Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		UserID: userID,
		At:     time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, err
		}
		ev.Data = raw
	}
	return ev, nil
}

// matchType reports whether eventType passes the filter list.
// An empty filter matches everything; "task.*" matches any task event.
func matchType(filters []string, eventType string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f == "*" || f == eventType {
			return true
		}
		if prefix, ok := strings.CutSuffix(f, ".*"); ok && strings.HasPrefix(eventType, prefix+".") {
			return true
		}
	}
	return false
}
