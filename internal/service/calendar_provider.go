package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/templui/thrive/internal/model"
)

// ExternalEvent is an event as read from a provider calendar.
type ExternalEvent struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	AllDay      bool
}

// CalendarProvider is a remote calendar reachable through OAuth.
type CalendarProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	AccountEmail(ctx context.Context, token *oauth2.Token) (string, error)
	// Events reads events in [from, to). The returned token is the one
	// actually used, which differs from the input after a refresh.
	Events(ctx context.Context, token *oauth2.Token, from, to time.Time) ([]ExternalEvent, *oauth2.Token, error)
}

type oauthCalendar struct {
	name     string
	config   *oauth2.Config
	emailURL string
	email    func(body []byte) (string, error)
	events   func(ctx context.Context, client *http.Client, from, to time.Time) ([]ExternalEvent, error)
}

// NewGoogleCalendar reads the primary calendar of a Google account.
func NewGoogleCalendar(clientID, clientSecret, appURL string) CalendarProvider {
	return &oauthCalendar{
		name: model.CalendarSourceGoogle,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  appURL + "/api/calendar/callback/google",
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/calendar.readonly",
			},
			Endpoint: google.Endpoint,
		},
		emailURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		email: func(body []byte) (string, error) {
			var info struct {
				Email string `json:"email"`
			}
			err := json.Unmarshal(body, &info)
			return info.Email, err
		},
		events: googleEvents,
	}
}

// NewMicrosoftCalendar reads the default calendar of a Microsoft account.
func NewMicrosoftCalendar(clientID, clientSecret, appURL string) CalendarProvider {
	return &oauthCalendar{
		name: model.CalendarSourceMicrosoft,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  appURL + "/api/calendar/callback/microsoft",
			Scopes:       []string{"offline_access", "User.Read", "Calendars.Read"},
			Endpoint:     microsoft.AzureADEndpoint("common"),
		},
		emailURL: "https://graph.microsoft.com/v1.0/me",
		email: func(body []byte) (string, error) {
			var me struct {
				Mail              string `json:"mail"`
				UserPrincipalName string `json:"userPrincipalName"`
			}
			if err := json.Unmarshal(body, &me); err != nil {
				return "", err
			}
			if me.Mail != "" {
				return me.Mail, nil
			}
			return me.UserPrincipalName, nil
		},
		events: microsoftEvents,
	}
}

func (p *oauthCalendar) Name() string { return p.name }

func (p *oauthCalendar) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *oauthCalendar) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

func (p *oauthCalendar) AccountEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	body, err := getJSON(ctx, p.config.Client(ctx, token), p.emailURL)
	if err != nil {
		return "", err
	}
	return p.email(body)
}

func (p *oauthCalendar) Events(ctx context.Context, token *oauth2.Token, from, to time.Time) ([]ExternalEvent, *oauth2.Token, error) {
	source := p.config.TokenSource(ctx, token)
	current, err := source.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	events, err := p.events(ctx, oauth2.NewClient(ctx, oauth2.StaticTokenSource(current)), from, to)
	if err != nil {
		return nil, nil, err
	}
	return events, current, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar api returned %d", resp.StatusCode)
	}
	return body, nil
}

type googleTime struct {
	DateTime time.Time `json:"dateTime"`
	Date     string    `json:"date"`
}

func (t googleTime) value() (time.Time, bool) {
	if t.Date != "" {
		d, err := time.Parse(model.DateLayout, t.Date)
		return d, err == nil
	}
	return t.DateTime.UTC(), !t.DateTime.IsZero()
}

func googleEvents(ctx context.Context, client *http.Client, from, to time.Time) ([]ExternalEvent, error) {
	q := url.Values{}
	q.Set("timeMin", from.UTC().Format(time.RFC3339))
	q.Set("timeMax", to.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", "250")

	body, err := getJSON(ctx, client, "https://www.googleapis.com/calendar/v3/calendars/primary/events?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var page struct {
		Items []struct {
			ID          string     `json:"id"`
			Status      string     `json:"status"`
			Summary     string     `json:"summary"`
			Description string     `json:"description"`
			Location    string     `json:"location"`
			Start       googleTime `json:"start"`
			End         googleTime `json:"end"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode google events: %w", err)
	}

	events := make([]ExternalEvent, 0, len(page.Items))
	for _, it := range page.Items {
		if it.Status == "cancelled" {
			continue
		}
		start, ok1 := it.Start.value()
		end, ok2 := it.End.value()
		if !ok1 || !ok2 {
			continue
		}
		events = append(events, ExternalEvent{
			ID:          it.ID,
			Title:       it.Summary,
			Description: it.Description,
			Location:    it.Location,
			StartsAt:    start,
			EndsAt:      end,
			AllDay:      it.Start.Date != "",
		})
	}
	return events, nil
}

// graphTime is a Microsoft Graph dateTimeTimeZone; calendarView is
// requested in UTC so the zone is not consulted.
type graphTime struct {
	DateTime string `json:"dateTime"`
}

func (t graphTime) value() (time.Time, bool) {
	v, err := time.Parse("2006-01-02T15:04:05.9999999", t.DateTime)
	return v.UTC(), err == nil
}

func microsoftEvents(ctx context.Context, client *http.Client, from, to time.Time) ([]ExternalEvent, error) {
	q := url.Values{}
	q.Set("startDateTime", from.UTC().Format(time.RFC3339))
	q.Set("endDateTime", to.UTC().Format(time.RFC3339))
	q.Set("$top", "250")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://graph.microsoft.com/v1.0/me/calendarView?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar api returned %d", resp.StatusCode)
	}

	var page struct {
		Value []struct {
			ID          string    `json:"id"`
			Subject     string    `json:"subject"`
			BodyPreview string    `json:"bodyPreview"`
			IsAllDay    bool      `json:"isAllDay"`
			IsCancelled bool      `json:"isCancelled"`
			Start       graphTime `json:"start"`
			End         graphTime `json:"end"`
			Location    struct {
				DisplayName string `json:"displayName"`
			} `json:"location"`
		} `json:"value"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode microsoft events: %w", err)
	}

	events := make([]ExternalEvent, 0, len(page.Value))
	for _, it := range page.Value {
		if it.IsCancelled {
			continue
		}
		start, ok1 := it.Start.value()
		end, ok2 := it.End.value()
		if !ok1 || !ok2 {
			continue
		}
		events = append(events, ExternalEvent{
			ID:          it.ID,
			Title:       it.Subject,
			Description: it.BodyPreview,
			Location:    it.Location.DisplayName,
			StartsAt:    start,
			EndsAt:      end,
			AllDay:      it.IsAllDay,
		})
	}
	return events, nil
}
