package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

var (
	ErrCalendarEventNotFound      = errors.New("calendar event not found")
	ErrCalendarConnectionNotFound = errors.New("calendar connection not found")
)

type CalendarRepository interface {
	CreateEvent(ctx context.Context, event *model.CalendarEvent) error
	EventByID(ctx context.Context, userID, eventID string) (*model.CalendarEvent, error)
	Events(ctx context.Context, userID string, from, to *time.Time) ([]*model.CalendarEvent, error)
	UpdateEvent(ctx context.Context, event *model.CalendarEvent) error
	DeleteEvent(ctx context.Context, userID, eventID string) error
	// UpsertExternalEvent inserts or refreshes an event imported from a provider.
	UpsertExternalEvent(ctx context.Context, event *model.CalendarEvent) error

	SaveConnection(ctx context.Context, conn *model.CalendarConnection) error
	ConnectionByID(ctx context.Context, userID, id string) (*model.CalendarConnection, error)
	Connections(ctx context.Context, userID string) ([]*model.CalendarConnection, error)
	UpdateConnection(ctx context.Context, conn *model.CalendarConnection) error
	DeleteConnection(ctx context.Context, userID, id string) error
}

type calendarRepository struct {
	db *sqlx.DB
}

func NewCalendarRepository(db *sqlx.DB) CalendarRepository {
	return &calendarRepository{db: db}
}

func (r *calendarRepository) CreateEvent(ctx context.Context, event *model.CalendarEvent) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO calendar_events (id, user_id, connection_id, external_id, title, description, location, starts_at, ends_at, all_day, source, created_at, updated_at)
		VALUES (:id, :user_id, :connection_id, :external_id, :title, :description, :location, :starts_at, :ends_at, :all_day, :source, :created_at, :updated_at)
	`, event)
	return err
}

func (r *calendarRepository) EventByID(ctx context.Context, userID, eventID string) (*model.CalendarEvent, error) {
	event := &model.CalendarEvent{}
	err := r.db.GetContext(ctx, event, `SELECT * FROM calendar_events WHERE id = $1 AND user_id = $2`, eventID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCalendarEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Events returns events overlapping [from, to).
func (r *calendarRepository) Events(ctx context.Context, userID string, from, to *time.Time) ([]*model.CalendarEvent, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if from != nil {
		w.add("ends_at > ?", from.UTC())
	}
	if to != nil {
		w.add("starts_at < ?", to.UTC())
	}

	events := []*model.CalendarEvent{}
	err := r.db.SelectContext(ctx, &events, `SELECT * FROM calendar_events`+w.String()+` ORDER BY starts_at ASC`, w.args...)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *calendarRepository) UpdateEvent(ctx context.Context, event *model.CalendarEvent) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE calendar_events
		SET title = :title, description = :description, location = :location,
		    starts_at = :starts_at, ends_at = :ends_at, all_day = :all_day, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`, event)
	if err != nil {
		return err
	}
	return expectRows(result, ErrCalendarEventNotFound)
}

func (r *calendarRepository) DeleteEvent(ctx context.Context, userID, eventID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrCalendarEventNotFound)
}

func (r *calendarRepository) UpsertExternalEvent(ctx context.Context, event *model.CalendarEvent) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO calendar_events (id, user_id, connection_id, external_id, title, description, location, starts_at, ends_at, all_day, source, created_at, updated_at)
		VALUES (:id, :user_id, :connection_id, :external_id, :title, :description, :location, :starts_at, :ends_at, :all_day, :source, :created_at, :updated_at)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			location = excluded.location,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			all_day = excluded.all_day,
			updated_at = excluded.updated_at
	`, event)
	return err
}

// SaveConnection creates the connection or replaces the tokens of the
// user's existing connection to the same provider.
func (r *calendarRepository) SaveConnection(ctx context.Context, conn *model.CalendarConnection) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO calendar_connections (id, user_id, provider, account_email, access_token, refresh_token, token_expiry, last_synced_at, created_at, updated_at)
		VALUES (:id, :user_id, :provider, :account_email, :access_token, :refresh_token, :token_expiry, :last_synced_at, :created_at, :updated_at)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			account_email = excluded.account_email,
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN calendar_connections.refresh_token ELSE excluded.refresh_token END,
			token_expiry = excluded.token_expiry,
			updated_at = excluded.updated_at
	`, conn)
	return err
}

func (r *calendarRepository) ConnectionByID(ctx context.Context, userID, id string) (*model.CalendarConnection, error) {
	conn := &model.CalendarConnection{}
	err := r.db.GetContext(ctx, conn, `SELECT * FROM calendar_connections WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCalendarConnectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *calendarRepository) Connections(ctx context.Context, userID string) ([]*model.CalendarConnection, error) {
	conns := []*model.CalendarConnection{}
	err := r.db.SelectContext(ctx, &conns, `SELECT * FROM calendar_connections WHERE user_id = $1 ORDER BY provider`, userID)
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *calendarRepository) UpdateConnection(ctx context.Context, conn *model.CalendarConnection) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE calendar_connections
		SET access_token = :access_token, refresh_token = :refresh_token, token_expiry = :token_expiry,
		    last_synced_at = :last_synced_at, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`, conn)
	if err != nil {
		return err
	}
	return expectRows(result, ErrCalendarConnectionNotFound)
}

func (r *calendarRepository) DeleteConnection(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM calendar_connections WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrCalendarConnectionNotFound)
}
