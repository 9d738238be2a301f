package meeting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
)

// Repository provides database operations over the meetings relation.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new meeting repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "meeting_repository")),
	}
}

const meetingColumns = `id, title, transcript, timeline, file_path, file_name, file_size,
	duration, language, confidence, status, error_message, user_id, created_at, updated_at`

// Create inserts a new meeting record in the uploaded state.
func (r *Repository) Create(ctx context.Context, m *Meeting) error {
	if m.Status == "" {
		m.Status = StatusUploaded
	}
	if !m.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", mderrors.ErrValidation, string(m.Status))
	}

	query := `
		INSERT INTO meetings (
			id, title, file_path, file_name, file_size, status, user_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		m.ID, m.Title, m.FilePath, m.FileName, m.FileSize, string(m.Status), m.UserID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create meeting", logging.Err(err), logging.F("meeting_id", m.ID))
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	r.logger.Debug("Meeting created", logging.F("meeting_id", m.ID), logging.F("user_id", m.UserID))
	return nil
}

// Get fetches a meeting by ID. Returns ErrNotFound when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	m, err := scanMeeting(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("meeting %s: %w", id, mderrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// ListByUser returns a user's meetings, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]*Meeting, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + meetingColumns + `
		FROM meetings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Delete removes a meeting. The tasks foreign key cascades, so derived tasks
// go with it. Returns ErrNotFound when the meeting does not exist.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s: %w", id, mderrors.ErrNotFound)
	}
	r.logger.Info("Meeting deleted", logging.F("meeting_id", id))
	return nil
}

// UpdateTitle applies a user edit to the title. Orchestrator-owned columns are
// untouched.
func (r *Repository) UpdateTitle(ctx context.Context, id, title string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meetings SET title = $2, updated_at = NOW() WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s: %w", id, mderrors.ErrNotFound)
	}
	return nil
}

// TransitionStatus atomically moves a meeting from one status to another:
// "update status to next where current status = from". A concurrent run that
// already claimed the meeting makes the conditional update match zero rows,
// which surfaces as ErrConflict. This is the race-free double-run guard.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from, to Status) error {
	if err := from.CheckTransition(to); err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to transition status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s is no longer in status %q: %w", id, string(from), mderrors.ErrConflict)
	}

	r.logger.Debug("Status transition",
		logging.F("meeting_id", id),
		logging.F("from", string(from)),
		logging.F("to", string(to)))
	return nil
}

// SetTranscribed stores the transcript and provider metadata and advances the
// status, in one logical update. The conditional status check keeps a raced or
// aborted run from overwriting another run's output.
func (r *Repository) SetTranscribed(ctx context.Context, id string, detail *TranscriptionDetail) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings
		SET transcript = $2, duration = $3, language = $4, confidence = $5,
		    status = $6, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $7
	`, id, detail.Transcript, detail.Duration, detail.Language, detail.Confidence,
		string(StatusTranscribed), string(StatusTranscribing))
	if err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s is no longer transcribing: %w", id, mderrors.ErrConflict)
	}
	return nil
}

// SetProcessed stores the timeline and advances the status to the terminal
// success state, in one logical update.
func (r *Repository) SetProcessed(ctx context.Context, id string, timeline *Timeline) error {
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings
		SET timeline = $2, status = $3, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, timelineJSON, string(StatusProcessed), string(StatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to store timeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s is no longer processing: %w", id, mderrors.ErrConflict)
	}
	return nil
}

// SetFailed records a stage failure: the stage-specific error status plus a
// human-readable message a status poller can display. Stage outputs are not
// touched, so the meeting keeps its pre-stage data.
func (r *Repository) SetFailed(ctx context.Context, id string, from, to Status, message string) error {
	if err := from.CheckTransition(to); err != nil {
		return err
	}
	if !to.Failed() {
		return fmt.Errorf("%w: %q is not an error status", mderrors.ErrValidation, string(to))
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings SET status = $3, error_message = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), message)
	if err != nil {
		return fmt.Errorf("failed to record stage failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s is no longer in status %q: %w", id, string(from), mderrors.ErrConflict)
	}

	r.logger.Warn("Stage failure recorded",
		logging.F("meeting_id", id),
		logging.F("status", string(to)),
		logging.F("error_message", message))
	return nil
}

// scanMeeting reads one meeting row.
func scanMeeting(row pgx.Row) (*Meeting, error) {
	var (
		m            Meeting
		status       string
		timelineJSON []byte
	)
	err := row.Scan(
		&m.ID, &m.Title, &m.Transcript, &timelineJSON, &m.FilePath, &m.FileName,
		&m.FileSize, &m.Duration, &m.Language, &m.Confidence, &status,
		&m.ErrorMessage, &m.UserID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Status = Status(status)
	if len(timelineJSON) > 0 {
		var tl Timeline
		if err := json.Unmarshal(timelineJSON, &tl); err != nil {
			return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
		}
		m.Timeline = &tl
	}
	return &m, nil
}
