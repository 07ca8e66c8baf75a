package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
)

var testNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type recordedEvent struct {
	userID string
	typ    string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{userID: ev.UserID, typ: ev.Type})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.typ
	}
	return out
}

type fakeRecorder struct {
	metrics []string
}

func (r *fakeRecorder) Record(_ context.Context, _ string, metrics ...string) {
	r.metrics = append(r.metrics, metrics...)
}

type fakeTasks struct {
	tasks      map[string]*model.Task
	lastFilter model.TaskFilter
}

func newFakeTasks() *fakeTasks { return &fakeTasks{tasks: map[string]*model.Task{}} }

func (f *fakeTasks) Create(_ context.Context, task *model.Task) error {
	cp := *task
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeTasks) ByID(_ context.Context, userID, taskID string) (*model.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) Tasks(_ context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error) {
	f.lastFilter = filter
	var out []*model.Task
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTasks) Update(_ context.Context, task *model.Task) error {
	if _, ok := f.tasks[task.ID]; !ok {
		return repository.ErrTaskNotFound
	}
	cp := *task
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeTasks) Delete(_ context.Context, userID, taskID string) error {
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return repository.ErrTaskNotFound
	}
	delete(f.tasks, taskID)
	return nil
}

type fakeFocus struct {
	sessions map[string]*model.FocusSession
	times    []time.Time
}

func newFakeFocus() *fakeFocus { return &fakeFocus{sessions: map[string]*model.FocusSession{}} }

func (f *fakeFocus) Create(_ context.Context, s *model.FocusSession) error {
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeFocus) ByID(_ context.Context, userID, id string) (*model.FocusSession, error) {
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return nil, repository.ErrFocusSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeFocus) Active(_ context.Context, userID string) (*model.FocusSession, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.Status == model.FocusStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNoActiveSession
}

func (f *fakeFocus) Sessions(_ context.Context, userID string, _ model.FocusFilter) ([]*model.FocusSession, error) {
	var out []*model.FocusSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeFocus) Update(_ context.Context, s *model.FocusSession) error {
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeFocus) Delete(_ context.Context, userID, id string) error {
	if _, err := f.ByID(context.Background(), userID, id); err != nil {
		return err
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeFocus) Totals(_ context.Context, userID string) (total, completed, minutes int, err error) {
	for _, s := range f.sessions {
		if s.UserID != userID {
			continue
		}
		total++
		if s.Status == model.FocusStatusCompleted {
			completed++
			minutes += s.ActualMinutes
		}
	}
	return total, completed, minutes, nil
}

func (f *fakeFocus) CompletedTimes(_ context.Context, _ string, since time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, t := range f.times {
		if !t.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeHabits struct {
	habits map[string]*model.Habit
	checks map[string]*model.HabitCheck // habit_id|date
}

func newFakeHabits() *fakeHabits {
	return &fakeHabits{habits: map[string]*model.Habit{}, checks: map[string]*model.HabitCheck{}}
}

func (f *fakeHabits) Create(_ context.Context, h *model.Habit) error {
	cp := *h
	f.habits[h.ID] = &cp
	return nil
}

func (f *fakeHabits) ByID(_ context.Context, userID, id string) (*model.Habit, error) {
	h, ok := f.habits[id]
	if !ok || h.UserID != userID {
		return nil, repository.ErrHabitNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeHabits) Habits(_ context.Context, userID string, includeArchived bool) ([]*model.Habit, error) {
	var out []*model.Habit
	for _, h := range f.habits {
		if h.UserID == userID && (includeArchived || !h.Archived) {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeHabits) Update(_ context.Context, h *model.Habit) error {
	cp := *h
	f.habits[h.ID] = &cp
	return nil
}

func (f *fakeHabits) Delete(_ context.Context, userID, id string) error {
	if _, err := f.ByID(context.Background(), userID, id); err != nil {
		return err
	}
	delete(f.habits, id)
	return nil
}

func (f *fakeHabits) CreateCheck(_ context.Context, c *model.HabitCheck) error {
	key := c.HabitID + "|" + c.CheckDate
	if _, ok := f.checks[key]; ok {
		return repository.ErrDuplicateCheck
	}
	cp := *c
	f.checks[key] = &cp
	return nil
}

func (f *fakeHabits) DeleteCheck(_ context.Context, userID, habitID, date string) error {
	key := habitID + "|" + date
	c, ok := f.checks[key]
	if !ok || c.UserID != userID {
		return repository.ErrHabitCheckNotFound
	}
	delete(f.checks, key)
	return nil
}

func (f *fakeHabits) CheckDates(_ context.Context, habitID string) ([]string, error) {
	var out []string
	for _, c := range f.checks {
		if c.HabitID == habitID {
			out = append(out, c.CheckDate)
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakeGoals struct {
	goals   map[string]*model.Goal
	entries []*model.GoalEntry
}

func newFakeGoals() *fakeGoals { return &fakeGoals{goals: map[string]*model.Goal{}} }

func (f *fakeGoals) Create(_ context.Context, g *model.Goal) error {
	cp := *g
	f.goals[g.ID] = &cp
	return nil
}

func (f *fakeGoals) ByID(_ context.Context, userID, id string) (*model.Goal, error) {
	g, ok := f.goals[id]
	if !ok || g.UserID != userID {
		return nil, repository.ErrGoalNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGoals) Goals(_ context.Context, userID, status, _ string) ([]*model.Goal, error) {
	var out []*model.Goal
	for _, g := range f.goals {
		if g.UserID == userID && (status == "" || g.Status == status) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGoals) CountActive(_ context.Context, userID string) (int, error) {
	n := 0
	for _, g := range f.goals {
		if g.UserID == userID && g.Status == model.GoalStatusActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeGoals) Update(_ context.Context, g *model.Goal) error {
	cp := *g
	f.goals[g.ID] = &cp
	return nil
}

func (f *fakeGoals) Delete(_ context.Context, userID, id string) error {
	if _, err := f.ByID(context.Background(), userID, id); err != nil {
		return err
	}
	delete(f.goals, id)
	return nil
}

func (f *fakeGoals) AddProgress(_ context.Context, g *model.Goal, e *model.GoalEntry) error {
	cp := *g
	f.goals[g.ID] = &cp
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeGoals) Entries(_ context.Context, goalID string) ([]*model.GoalEntry, error) {
	var out []*model.GoalEntry
	for _, e := range f.entries {
		if e.GoalID == goalID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSubscriptions struct {
	plan string
}

func (f *fakeSubscriptions) Create(context.Context, *model.Subscription) error { return nil }

func (f *fakeSubscriptions) ByUserID(_ context.Context, userID string) (*model.Subscription, error) {
	plan := f.plan
	if plan == "" {
		plan = model.PlanFree
	}
	return &model.Subscription{
		ID:     "sub-" + userID,
		UserID: userID,
		PlanID: plan,
		Status: model.SubscriptionStatusActive,
	}, nil
}

func (f *fakeSubscriptions) ByProviderSubscriptionID(context.Context, string) (*model.Subscription, error) {
	return nil, repository.ErrSubscriptionNotFound
}

func (f *fakeSubscriptions) ByProviderCustomerID(context.Context, string) (*model.Subscription, error) {
	return nil, repository.ErrSubscriptionNotFound
}

func (f *fakeSubscriptions) Update(context.Context, *model.Subscription) error { return nil }

type fakeProfiles struct {
	profiles map[string]*model.Profile
}

func (f fakeProfiles) ByUserID(_ context.Context, userID string) (*model.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p, nil
}

func (f fakeProfiles) Create(context.Context, *model.Profile) error { return nil }
func (f fakeProfiles) Update(context.Context, *model.Profile) error { return nil }

func ptr[T any](v T) *T { return &v }
