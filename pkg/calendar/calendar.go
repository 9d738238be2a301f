// Package calendar turns persisted tasks into calendar events, best effort:
// one task failing to schedule never fails the run or the other tasks.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
)

// Event is a provider-neutral calendar entry.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	ColorID     string
	Attendees   []string
}

// Calendar creates events on an external calendar.
type Calendar interface {
	// CreateEvent creates the event and returns the provider's event ID.
	CreateEvent(ctx context.Context, event *Event) (string, error)
}

// GoogleConfig configures the hosted calendar client.
type GoogleConfig struct {
	// AccessToken is the OAuth bearer token.
	AccessToken string

	// CalendarID selects the target calendar. Empty means the primary one.
	CalendarID string

	// BaseURL overrides the API root. Empty uses the public endpoint.
	BaseURL string

	// Timezone is the IANA zone written on events.
	Timezone string

	// HTTPTimeout bounds one API call.
	HTTPTimeout time.Duration
}

// DefaultGoogleConfig returns settings for the public calendar API.
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		CalendarID:  "primary",
		BaseURL:     "https://www.googleapis.com/calendar/v3",
		Timezone:    "UTC",
		HTTPTimeout: 30 * time.Second,
	}
}

// GoogleCalendar creates events through the hosted calendar REST API.
type GoogleCalendar struct {
	client *http.Client
	config GoogleConfig
	logger logging.Logger
}

// NewGoogleCalendar creates a client for the hosted calendar API.
func NewGoogleCalendar(cfg GoogleConfig, logger logging.Logger) *GoogleCalendar {
	defaults := DefaultGoogleConfig()
	if cfg.CalendarID == "" {
		cfg.CalendarID = defaults.CalendarID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaults.Timezone
	}
	return &GoogleCalendar{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		config: cfg,
		logger: logger.With(logging.F("component", "calendar")),
	}
}

type googleEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type googleAttendee struct {
	Email string `json:"email"`
}

type googleReminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type googleReminders struct {
	UseDefault bool             `json:"useDefault"`
	Overrides  []googleReminder `json:"overrides,omitempty"`
}

type googleEvent struct {
	Summary     string           `json:"summary"`
	Description string           `json:"description,omitempty"`
	Start       googleEventTime  `json:"start"`
	End         googleEventTime  `json:"end"`
	ColorID     string           `json:"colorId,omitempty"`
	Attendees   []googleAttendee `json:"attendees,omitempty"`
	Reminders   *googleReminders `json:"reminders,omitempty"`
}

type googleEventResponse struct {
	ID string `json:"id"`
}

// CreateEvent inserts the event into the configured calendar.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, event *Event) (string, error) {
	if g.config.AccessToken == "" {
		return "", fmt.Errorf("calendar: %w", mderrors.ErrNotConfigured)
	}

	body := googleEvent{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       googleEventTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: g.config.Timezone},
		End:         googleEventTime{DateTime: event.End.Format(time.RFC3339), TimeZone: g.config.Timezone},
		ColorID:     event.ColorID,
		Reminders: &googleReminders{
			Overrides: []googleReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
		},
	}
	for _, email := range event.Attendees {
		body.Attendees = append(body.Attendees, googleAttendee{Email: email})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	url := fmt.Sprintf("%s/calendars/%s/events", g.config.BaseURL, g.config.CalendarID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", mderrors.Classify(err, "scheduling")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", mderrors.Classify(err, "scheduling")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", mderrors.NewStageError(mderrors.ErrProvider, "scheduling",
			"calendar returned HTTP %d", resp.StatusCode)
	}

	var parsed googleEventResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.ID == "" {
		return "", mderrors.NewStageError(mderrors.ErrMalformedResponse, "scheduling",
			"calendar response missing event id")
	}

	g.logger.Debug("Calendar event created", logging.F("event_id", parsed.ID))
	return parsed.ID, nil
}
