package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/templui/thrive/internal/cache"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

const (
	calendarStateTTL = 10 * time.Minute
	syncLookBack     = 24 * time.Hour
	syncLookAhead    = 30 * 24 * time.Hour
)

var (
	ErrUnknownCalendarProvider = errors.New("calendar provider not configured")
	ErrInvalidOAuthState       = errors.New("invalid or expired oauth state")
	ErrExternalEventReadOnly   = errors.New("imported events cannot be modified")
)

type CalendarEventInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	AllDay      *bool      `json:"all_day"`
}

// SyncResult reports one connection sync.
type SyncResult struct {
	ConnectionID string    `json:"connection_id"`
	Imported     int       `json:"imported"`
	SyncedAt     time.Time `json:"synced_at"`
}

type calendarState struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
}

type CalendarService struct {
	repo          repository.CalendarRepository
	subscriptions *SubscriptionService
	providers     map[string]CalendarProvider
	states        cache.Store
	publisher     realtime.Publisher
	now           func() time.Time
}

// NewCalendarService wires the configured providers. Providers may be
// empty, in which case only local events are available.
func NewCalendarService(
	repo repository.CalendarRepository,
	subscriptions *SubscriptionService,
	states cache.Store,
	publisher realtime.Publisher,
	providers ...CalendarProvider,
) *CalendarService {
	byName := make(map[string]CalendarProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &CalendarService{
		repo:          repo,
		subscriptions: subscriptions,
		providers:     byName,
		states:        states,
		publisher:     publisher,
		now:           time.Now,
	}
}

func (in CalendarEventInput) apply(e *model.CalendarEvent) error {
	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if err := validation.Required("title", e.Title, 200); err != nil {
		return err
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if err := validation.MaxLength("description", e.Description, 5000); err != nil {
		return err
	}
	if in.Location != nil {
		e.Location = strings.TrimSpace(*in.Location)
	}
	if err := validation.MaxLength("location", e.Location, 300); err != nil {
		return err
	}
	if in.StartsAt != nil {
		e.StartsAt = in.StartsAt.UTC()
	}
	if in.EndsAt != nil {
		e.EndsAt = in.EndsAt.UTC()
	}
	if e.StartsAt.IsZero() {
		return validation.New("starts_at", "starts_at is required")
	}
	if e.EndsAt.IsZero() {
		e.EndsAt = e.StartsAt
	}
	if err := validation.ValidateRange("ends_at", e.StartsAt, e.EndsAt); err != nil {
		return err
	}
	if in.AllDay != nil {
		e.AllDay = *in.AllDay
	}
	return nil
}

func (s *CalendarService) CreateEvent(ctx context.Context, userID string, in CalendarEventInput) (*model.CalendarEvent, error) {
	now := s.now().UTC()
	event := &model.CalendarEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Source:    model.CalendarSourceLocal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(event); err != nil {
		return nil, err
	}
	err := s.repo.CreateEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

func (s *CalendarService) Event(ctx context.Context, userID, eventID string) (*model.CalendarEvent, error) {
	return s.repo.EventByID(ctx, userID, eventID)
}

func (s *CalendarService) Events(ctx context.Context, userID string, from, to *time.Time) ([]*model.CalendarEvent, error) {
	if from != nil && to != nil {
		if err := validation.ValidateRange("to", *from, *to); err != nil {
			return nil, err
		}
	}
	return s.repo.Events(ctx, userID, from, to)
}

// UpdateEvent edits a local event. Imported events are owned by their
// provider and are overwritten on the next sync.
func (s *CalendarService) UpdateEvent(ctx context.Context, userID, eventID string, in CalendarEventInput) (*model.CalendarEvent, error) {
	event, err := s.repo.EventByID(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if event.Source != model.CalendarSourceLocal {
		return nil, ErrExternalEventReadOnly
	}
	if err := in.apply(event); err != nil {
		return nil, err
	}
	event.UpdatedAt = s.now().UTC()

	err = s.repo.UpdateEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return event, nil
}

func (s *CalendarService) DeleteEvent(ctx context.Context, userID, eventID string) error {
	return s.repo.DeleteEvent(ctx, userID, eventID)
}

func (s *CalendarService) Connections(ctx context.Context, userID string) ([]*model.CalendarConnection, error) {
	return s.repo.Connections(ctx, userID)
}

func (s *CalendarService) DeleteConnection(ctx context.Context, userID, id string) error {
	return s.repo.DeleteConnection(ctx, userID, id)
}

func (s *CalendarService) provider(name string) (CalendarProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, ErrUnknownCalendarProvider
	}
	return p, nil
}

func stateKey(state string) string {
	return "calendar:oauth_state:" + state
}

// ConnectURL starts the OAuth flow for provider. The returned state is
// remembered so the callback can be tied back to the user.
func (s *CalendarService) ConnectURL(ctx context.Context, userID, providerName string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	if err := s.subscriptions.RequireFeature(ctx, userID, model.FeatureCalendarSync); err != nil {
		return "", err
	}

	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	err = cache.SetJSON(ctx, s.states, stateKey(state), calendarState{UserID: userID, Provider: providerName}, calendarStateTTL)
	if err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return p.AuthCodeURL(state), nil
}

// Callback completes the OAuth flow and stores the connection.
func (s *CalendarService) Callback(ctx context.Context, providerName, state, code string) (*model.CalendarConnection, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	if state == "" || code == "" {
		return nil, ErrInvalidOAuthState
	}

	var st calendarState
	found, err := cache.GetJSON(ctx, s.states, stateKey(state), &st)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth state: %w", err)
	}
	if !found || st.Provider != providerName {
		return nil, ErrInvalidOAuthState
	}
	if err := s.states.Delete(ctx, stateKey(state)); err != nil {
		slog.Warn("failed to delete oauth state", "error", err)
	}

	token, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	email, err := p.AccountEmail(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}

	now := s.now().UTC()
	conn := &model.CalendarConnection{
		ID:           uuid.New().String(),
		UserID:       st.UserID,
		Provider:     providerName,
		AccountEmail: email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	setToken(conn, token)

	err = s.repo.SaveConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to save connection: %w", err)
	}

	slog.Info("calendar connected", "user_id", st.UserID, "provider", providerName)

	conns, err := s.repo.Connections(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	for _, c := range conns {
		if c.Provider == providerName {
			return c, nil
		}
	}
	return conn, nil
}

func setToken(conn *model.CalendarConnection, token *oauth2.Token) {
	conn.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		conn.RefreshToken = token.RefreshToken
	}
	conn.TokenExpiry = nil
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		conn.TokenExpiry = &expiry
	}
}

func connectionToken(conn *model.CalendarConnection) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		TokenType:    "Bearer",
	}
	if conn.TokenExpiry != nil {
		token.Expiry = *conn.TokenExpiry
	}
	return token
}

// Sync imports upcoming provider events, upserting by external id.
func (s *CalendarService) Sync(ctx context.Context, userID, connectionID string) (*SyncResult, error) {
	conn, err := s.repo.ConnectionByID(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	if err := s.subscriptions.RequireFeature(ctx, userID, model.FeatureCalendarSync); err != nil {
		return nil, err
	}
	p, err := s.provider(conn.Provider)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	external, token, err := p.Events(ctx, connectionToken(conn), now.Add(-syncLookBack), now.Add(syncLookAhead))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s events: %w", conn.Provider, err)
	}

	imported := 0
	for _, ext := range external {
		if ext.ID == "" {
			continue
		}
		extID := ext.ID
		connID := conn.ID
		title := strings.TrimSpace(ext.Title)
		if title == "" {
			title = "(no title)"
		}
		end := ext.EndsAt
		if end.Before(ext.StartsAt) {
			end = ext.StartsAt
		}
		event := &model.CalendarEvent{
			ID:           uuid.New().String(),
			UserID:       userID,
			ConnectionID: &connID,
			ExternalID:   &extID,
			Title:        title,
			Description:  ext.Description,
			Location:     ext.Location,
			StartsAt:     ext.StartsAt.UTC(),
			EndsAt:       end.UTC(),
			AllDay:       ext.AllDay,
			Source:       conn.Provider,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.UpsertExternalEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("failed to store event: %w", err)
		}
		imported++
	}

	setToken(conn, token)
	conn.LastSyncedAt = &now
	conn.UpdatedAt = now
	err = s.repo.UpdateConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}

	result := &SyncResult{ConnectionID: conn.ID, Imported: imported, SyncedAt: now}
	slog.Info("calendar synced", "user_id", userID, "provider", conn.Provider, "imported", imported)
	realtime.Emit(ctx, s.publisher, userID, realtime.EventCalendarSynced, result)
	return result, nil
}
