// Package server exposes the HTTP surface: the processing trigger, the
// status probe, health, and metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minutedapp/minuted/pkg/buildinfo"
	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/meeting"
	"github.com/minutedapp/minuted/pkg/queue"
)

// MeetingReader is the read surface the server needs.
type MeetingReader interface {
	Get(ctx context.Context, id string) (*meeting.Meeting, error)
}

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds the graceful drain.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns server settings for local development.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Server is the HTTP front of the pipeline.
type Server struct {
	config      Config
	meetings    MeetingReader
	jobs        queue.Queue
	taskCounter TaskCounter
	registry    *prometheus.Registry
	logger      logging.Logger
	httpSrv     *http.Server
}

// New creates a Server. registry may be nil to disable the metrics endpoint's
// custom collectors.
func New(cfg Config, meetings MeetingReader, jobs queue.Queue, registry *prometheus.Registry, logger logging.Logger) *Server {
	s := &Server{
		config:   cfg,
		meetings: meetings,
		jobs:     jobs,
		registry: registry,
		logger:   logger.With(logging.F("component", "http_server")),
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /transcribe/{meetingID}", s.withRequestID(s.handleTrigger))
	mux.HandleFunc("GET /transcribe/{meetingID}/status", s.withRequestID(s.handleStatus))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /version", buildinfo.Handler("minuted"))
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then drains.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.F("addr", s.config.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// triggerResponse is the 202 body for an accepted processing request.
type triggerResponse struct {
	MeetingID string `json:"meeting_id"`
	Status    string `json:"status"`
}

// handleTrigger accepts a processing request for a meeting. The authoritative
// double-run guard is the conditional status update inside the pipeline; the
// status check here just gives honest HTTP responses for the common cases.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("meetingID")
	if meetingID == "" {
		s.writeError(w, http.StatusBadRequest, "meeting id is required", "Provide the meeting ID in the URL path.")
		return
	}

	m, err := s.meetings.Get(r.Context(), meetingID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if !m.Status.Runnable() {
		if m.Status == meeting.StatusProcessed {
			s.writeError(w, http.StatusConflict, "meeting is already processed",
				"Only uploaded or failed meetings can be triggered.")
			return
		}
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("meeting is %s", string(m.Status)),
			"Wait for the current run to finish.")
		return
	}

	if err := s.jobs.Enqueue(queue.Job{MeetingID: m.ID, UserID: m.UserID}); err != nil {
		s.logger.Error("Failed to enqueue job", logging.Err(err), logging.F("meeting_id", m.ID))
		s.writeError(w, http.StatusServiceUnavailable, "processing queue unavailable",
			"Retry once the queue backend is reachable.")
		return
	}

	s.logger.Info("Processing triggered",
		logging.F("meeting_id", m.ID),
		logging.F("from_status", string(m.Status)))
	s.writeJSON(w, http.StatusAccepted, triggerResponse{
		MeetingID: m.ID,
		Status:    string(meeting.StatusTranscribing),
	})
}

// statusResponse is the status probe body. TranscriptLength stands in for the
// transcript itself, which can be hundreds of kilobytes.
type statusResponse struct {
	MeetingID        string `json:"meeting_id"`
	Status           string `json:"status"`
	FileName         string `json:"file_name,omitempty"`
	DurationSeconds  *int   `json:"duration_seconds,omitempty"`
	TranscriptLength int    `json:"transcript_length"`
	TaskCount        *int   `json:"task_count,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	CanRetry         bool   `json:"can_retry"`
}

// TaskCounter enriches the status probe with a task count when wired.
type TaskCounter interface {
	CountByMeeting(ctx context.Context, meetingID string) (int, error)
}

// WithTaskCounter wires the optional task count into the status probe.
func (s *Server) WithTaskCounter(tc TaskCounter) *Server {
	s.taskCounter = tc
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("meetingID")
	m, err := s.meetings.Get(r.Context(), meetingID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := statusResponse{
		MeetingID:        m.ID,
		Status:           string(m.Status),
		FileName:         m.FileName,
		DurationSeconds:  m.Duration,
		TranscriptLength: m.TranscriptLength(),
		CanRetry:         m.CanRetry(),
	}
	if m.ErrorMessage != nil {
		resp.ErrorMessage = *m.ErrorMessage
	}
	if s.taskCounter != nil && m.Status == meeting.StatusProcessed {
		if count, err := s.taskCounter.CountByMeeting(r.Context(), m.ID); err == nil {
			resp.TaskCount = &count
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withRequestID stamps a correlation ID onto the request context and the
// response.
func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		next(w, r.WithContext(logging.WithRequestID(r.Context(), requestID)))
	}
}

// errorResponse is the failure body shared by every non-2xx response.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case mderrors.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, "meeting not found", "Check the meeting ID.")
	case mderrors.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
	case mderrors.IsConflict(err):
		s.writeError(w, http.StatusConflict, err.Error(), "Wait for the current run to finish.")
	default:
		s.logger.Error("Request failed", logging.Err(err))
		if se, ok := mderrors.AsStageError(err); ok {
			s.writeError(w, http.StatusInternalServerError, se.Message, mderrors.GetSuggestedAction(se.Code))
			return
		}
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, details string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: message, Details: details})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to write response", logging.Err(err))
	}
}
