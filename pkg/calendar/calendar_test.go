package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
)

func TestGoogleCalendar_CreateEvent(t *testing.T) {
	var got googleEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"id": "evt-123"})
	}))
	defer srv.Close()

	cfg := DefaultGoogleConfig()
	cfg.AccessToken = "tok"
	cfg.BaseURL = srv.URL
	cal := NewGoogleCalendar(cfg, logging.NewNopLogger())

	start := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	id, err := cal.CreateEvent(context.Background(), &Event{
		Summary:   "Update the docs",
		Start:     start,
		End:       start.Add(2 * time.Hour),
		ColorID:   "11",
		Attendees: []string{"alice@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-123", id)
	assert.Equal(t, "Update the docs", got.Summary)
	assert.Equal(t, "11", got.ColorID)
	require.Len(t, got.Attendees, 1)
	assert.Equal(t, "alice@example.com", got.Attendees[0].Email)
}

func TestGoogleCalendar_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := DefaultGoogleConfig()
	cfg.AccessToken = "tok"
	cfg.BaseURL = srv.URL
	cal := NewGoogleCalendar(cfg, logging.NewNopLogger())

	_, err := cal.CreateEvent(context.Background(), &Event{Summary: "x"})
	require.Error(t, err)
	se, ok := mderrors.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, mderrors.ErrProvider, se.Code)
}

func TestGoogleCalendar_NotConfigured(t *testing.T) {
	cal := NewGoogleCalendar(GoogleConfig{}, logging.NewNopLogger())
	_, err := cal.CreateEvent(context.Background(), &Event{Summary: "x"})
	assert.True(t, mderrors.IsNotConfigured(err))
}
