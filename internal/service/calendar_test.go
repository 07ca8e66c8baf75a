package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/templui/thrive/internal/cache"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

type fakeCalendar struct {
	events      map[string]*model.CalendarEvent
	connections map[string]*model.CalendarConnection
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		events:      map[string]*model.CalendarEvent{},
		connections: map[string]*model.CalendarConnection{},
	}
}

func (f *fakeCalendar) CreateEvent(_ context.Context, e *model.CalendarEvent) error {
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeCalendar) EventByID(_ context.Context, userID, id string) (*model.CalendarEvent, error) {
	e, ok := f.events[id]
	if !ok || e.UserID != userID {
		return nil, repository.ErrCalendarEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeCalendar) Events(_ context.Context, userID string, _, _ *time.Time) ([]*model.CalendarEvent, error) {
	var out []*model.CalendarEvent
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, e *model.CalendarEvent) error {
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, userID, id string) error {
	if _, err := f.EventByID(context.Background(), userID, id); err != nil {
		return err
	}
	delete(f.events, id)
	return nil
}

// UpsertExternalEvent keys on (connection_id, external_id) like the unique
// index in the schema.
func (f *fakeCalendar) UpsertExternalEvent(_ context.Context, e *model.CalendarEvent) error {
	for _, existing := range f.events {
		if existing.ConnectionID != nil && existing.ExternalID != nil &&
			*existing.ConnectionID == *e.ConnectionID && *existing.ExternalID == *e.ExternalID {
			existing.Title = e.Title
			existing.StartsAt = e.StartsAt
			existing.EndsAt = e.EndsAt
			existing.UpdatedAt = e.UpdatedAt
			return nil
		}
	}
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeCalendar) SaveConnection(_ context.Context, c *model.CalendarConnection) error {
	cp := *c
	f.connections[c.ID] = &cp
	return nil
}

func (f *fakeCalendar) ConnectionByID(_ context.Context, userID, id string) (*model.CalendarConnection, error) {
	c, ok := f.connections[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrCalendarConnectionNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCalendar) Connections(_ context.Context, userID string) ([]*model.CalendarConnection, error) {
	var out []*model.CalendarConnection
	for _, c := range f.connections {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCalendar) UpdateConnection(_ context.Context, c *model.CalendarConnection) error {
	cp := *c
	f.connections[c.ID] = &cp
	return nil
}

func (f *fakeCalendar) DeleteConnection(_ context.Context, userID, id string) error {
	if _, err := f.ConnectionByID(context.Background(), userID, id); err != nil {
		return err
	}
	delete(f.connections, id)
	return nil
}

type fakeProvider struct {
	name      string
	events    []ExternalEvent
	exchanges int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	p.exchanges++
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh"}, nil
}

func (p *fakeProvider) AccountEmail(context.Context, *oauth2.Token) (string, error) {
	return "me@example.com", nil
}

func (p *fakeProvider) Events(_ context.Context, token *oauth2.Token, _, _ time.Time) ([]ExternalEvent, *oauth2.Token, error) {
	return p.events, token, nil
}

func newCalendarService(plan string) (*CalendarService, *fakeCalendar, *fakeProvider, *fakePublisher) {
	repo := newFakeCalendar()
	provider := &fakeProvider{name: model.CalendarSourceGoogle}
	pub := &fakePublisher{}
	subs := NewSubscriptionService(&fakeSubscriptions{plan: plan})
	s := NewCalendarService(repo, subs, cache.NewMemoryStore(), pub, provider)
	s.now = fixedNow
	return s, repo, provider, pub
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestCalendarEventRange(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newCalendarService(model.PlanFree)

	start := testNow.Add(time.Hour)
	_, err := s.CreateEvent(ctx, "u1", CalendarEventInput{
		Title:    ptr("Standup"),
		StartsAt: ptr(start),
		EndsAt:   ptr(start.Add(-time.Minute)),
	})
	require.True(t, validation.IsValidation(err), "got %v", err)

	event, err := s.CreateEvent(ctx, "u1", CalendarEventInput{Title: ptr("Standup"), StartsAt: ptr(start)})
	require.NoError(t, err)
	require.True(t, event.EndsAt.Equal(start), "missing ends_at defaults to starts_at")
	require.Equal(t, model.CalendarSourceLocal, event.Source)

	_, err = s.UpdateEvent(ctx, "u1", event.ID, CalendarEventInput{EndsAt: ptr(start.Add(-time.Hour))})
	require.True(t, validation.IsValidation(err), "got %v", err)
}

func TestCalendarImportedEventsAreReadOnly(t *testing.T) {
	ctx := context.Background()
	s, repo, _, _ := newCalendarService(model.PlanPremium)

	repo.events["ext"] = &model.CalendarEvent{ID: "ext", UserID: "u1", Title: "Imported", Source: model.CalendarSourceGoogle}

	_, err := s.UpdateEvent(ctx, "u1", "ext", CalendarEventInput{Title: ptr("Mine now")})
	require.ErrorIs(t, err, ErrExternalEventReadOnly)
	require.Equal(t, "Imported", repo.events["ext"].Title)
}

func TestCalendarConnectRequiresFeature(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newCalendarService(model.PlanFree)

	_, err := s.ConnectURL(ctx, "u1", model.CalendarSourceGoogle)
	require.ErrorIs(t, err, ErrFeatureNotAvailable)

	_, err = s.ConnectURL(ctx, "u1", "fax")
	require.ErrorIs(t, err, ErrUnknownCalendarProvider)
}

func TestCalendarCallbackState(t *testing.T) {
	ctx := context.Background()
	s, repo, provider, _ := newCalendarService(model.PlanPremium)

	authURL, err := s.ConnectURL(ctx, "u1", model.CalendarSourceGoogle)
	require.NoError(t, err)
	state := stateFrom(t, authURL)

	tests := []struct {
		name  string
		state string
		code  string
	}{
		{"empty state", "", "code"},
		{"empty code", state, ""},
		{"unknown state", "forged", "code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Callback(ctx, model.CalendarSourceGoogle, tt.state, tt.code)
			require.ErrorIs(t, err, ErrInvalidOAuthState)
		})
	}
	require.Zero(t, provider.exchanges)

	conn, err := s.Callback(ctx, model.CalendarSourceGoogle, state, "code")
	require.NoError(t, err)
	require.Equal(t, "u1", conn.UserID)
	require.Equal(t, "me@example.com", conn.AccountEmail)
	require.Len(t, repo.connections, 1)

	_, err = s.Callback(ctx, model.CalendarSourceGoogle, state, "code")
	require.ErrorIs(t, err, ErrInvalidOAuthState, "state is single-use")
	require.Equal(t, 1, provider.exchanges)
}

func TestCalendarCallbackProviderMismatch(t *testing.T) {
	ctx := context.Background()
	repo := newFakeCalendar()
	google := &fakeProvider{name: model.CalendarSourceGoogle}
	microsoft := &fakeProvider{name: model.CalendarSourceMicrosoft}
	subs := NewSubscriptionService(&fakeSubscriptions{plan: model.PlanPremium})
	s := NewCalendarService(repo, subs, cache.NewMemoryStore(), nil, google, microsoft)

	authURL, err := s.ConnectURL(ctx, "u1", model.CalendarSourceGoogle)
	require.NoError(t, err)

	_, err = s.Callback(ctx, model.CalendarSourceMicrosoft, stateFrom(t, authURL), "code")
	require.ErrorIs(t, err, ErrInvalidOAuthState)
	require.Zero(t, microsoft.exchanges)
}

func TestCalendarSyncUpsertsByExternalID(t *testing.T) {
	ctx := context.Background()
	s, repo, provider, pub := newCalendarService(model.PlanPremium)

	repo.connections["c1"] = &model.CalendarConnection{ID: "c1", UserID: "u1", Provider: model.CalendarSourceGoogle, AccessToken: "a"}
	start := testNow.Add(2 * time.Hour)
	provider.events = []ExternalEvent{
		{ID: "g1", Title: "Review", StartsAt: start, EndsAt: start.Add(time.Hour)},
		{ID: "g2", Title: "  ", StartsAt: start, EndsAt: start.Add(-time.Hour)},
		{ID: "", Title: "no id"},
	}

	result, err := s.Sync(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)
	require.Len(t, repo.events, 2)

	provider.events[0].Title = "Review (moved)"
	_, err = s.Sync(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, repo.events, 2, "a second sync updates instead of duplicating")

	titles := map[string]string{}
	for _, e := range repo.events {
		titles[*e.ExternalID] = e.Title
		require.False(t, e.EndsAt.Before(e.StartsAt))
		require.Equal(t, "c1", *e.ConnectionID)
	}
	require.Equal(t, map[string]string{"g1": "Review (moved)", "g2": "(no title)"}, titles)

	require.NotNil(t, repo.connections["c1"].LastSyncedAt)
	require.True(t, repo.connections["c1"].LastSyncedAt.Equal(testNow))
	require.Contains(t, pub.types(), realtime.EventCalendarSynced)
}
