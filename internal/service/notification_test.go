package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/templui/thrive/internal/cache"
	"github.com/templui/thrive/internal/i18n"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
)

type fakeNotifications struct {
	items     []*model.Notification
	lastLimit int
}

func (f *fakeNotifications) Create(_ context.Context, n *model.Notification) error {
	cp := *n
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeNotifications) Notifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	f.lastLimit = limit
	var out []*model.Notification
	for _, n := range f.items {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) UnreadCount(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range f.items {
		if n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, userID, id string, at time.Time) error {
	for _, n := range f.items {
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				n.ReadAt = &at
			}
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	var marked int64
	for _, n := range f.items {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			marked++
		}
	}
	return marked, nil
}

func (f *fakeNotifications) Delete(_ context.Context, userID, id string) error {
	for i, n := range f.items {
		if n.ID == id && n.UserID == userID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func newNotificationService(t *testing.T, profiles map[string]*model.Profile) (*NotificationService, *fakeNotifications, *fakePublisher) {
	t.Helper()
	translator, err := i18n.New(cache.NewMemoryStore(), "en", time.Minute)
	require.NoError(t, err)

	repo := &fakeNotifications{}
	pub := &fakePublisher{}
	return NewNotificationService(repo, fakeProfiles{profiles: profiles}, translator, pub), repo, pub
}

func joinedNotice() Notice {
	return Notice{
		Type:     model.NotificationChallengeJoined,
		TitleKey: "notification.challenge_joined.title",
		BodyKey:  "notification.challenge_joined.body",
		Args:     []any{"name", "Ana", "challenge", "Spring Steps"},
		Data:     map[string]string{"challenge_id": "ch1"},
	}
}

func TestNotifyUsesRecipientLocale(t *testing.T) {
	ctx := context.Background()
	s, repo, pub := newNotificationService(t, map[string]*model.Profile{
		"es-user": {UserID: "es-user", Locale: "es"},
		"fr-user": {UserID: "fr-user", Locale: "fr"},
	})

	tests := []struct {
		userID string
		title  string
		body   string
	}{
		{"es-user", "Nuevo participante", "Ana se unió a Spring Steps."},
		{"fr-user", "New challenger", "Ana joined Spring Steps."},
		{"no-profile", "New challenger", "Ana joined Spring Steps."},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			n, err := s.Notify(ctx, tt.userID, joinedNotice())
			require.NoError(t, err)
			require.Equal(t, tt.title, n.Title)
			require.Equal(t, tt.body, n.Body)
			require.Nil(t, n.ReadAt)

			var data map[string]string
			require.NoError(t, json.Unmarshal(n.Data, &data))
			require.Equal(t, "ch1", data["challenge_id"])
		})
	}
	require.Len(t, repo.items, 3)
	require.Equal(t, []string{
		realtime.EventNotificationCreated,
		realtime.EventNotificationCreated,
		realtime.EventNotificationCreated,
	}, pub.types())
}

func TestNotificationReadState(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newNotificationService(t, nil)

	first, err := s.Notify(ctx, "u1", joinedNotice())
	require.NoError(t, err)
	_, err = s.Notify(ctx, "u1", joinedNotice())
	require.NoError(t, err)
	_, err = s.Notify(ctx, "u1", joinedNotice())
	require.NoError(t, err)
	_, err = s.Notify(ctx, "u2", joinedNotice())
	require.NoError(t, err)

	count, err := s.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	require.NoError(t, s.MarkRead(ctx, "u1", first.ID))
	require.ErrorIs(t, s.MarkRead(ctx, "u2", first.ID), repository.ErrNotificationNotFound)

	count, err = s.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	unread, err := s.Notifications(ctx, "u1", true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 2)

	marked, err := s.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 2, marked)

	count, err = s.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, count)

	count, err = s.UnreadCount(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, 1, count, "other users are untouched")
}

func TestNotificationsLimit(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newNotificationService(t, nil)

	tests := []struct {
		limit int
		want  int
	}{
		{0, 50},
		{-1, 50},
		{10, 10},
		{500, 200},
	}
	for _, tt := range tests {
		_, err := s.Notifications(ctx, "u1", false, tt.limit)
		require.NoError(t, err)
		require.Equal(t, tt.want, repo.lastLimit, "limit %d", tt.limit)
	}
}
