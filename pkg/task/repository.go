package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
)

// Repository provides database operations over the tasks relation.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new task repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "task_repository")),
	}
}

const taskColumns = `id, name, description, owner, status, priority, category, deadline,
	completed_at, meeting_id, user_id, calendar_event_id, effort, dependencies, tags,
	context, created_at, updated_at`

// CreateBatch persists resolved drafts as tasks for one meeting and user
// inside a single transaction, replacing any tasks from a previous run of the
// same meeting. Either the replacement completes whole or the previous tasks
// survive untouched. Deadlines must already be resolved to absolute
// timestamps by the caller.
func (r *Repository) CreateBatch(ctx context.Context, meetingID, userID string, drafts []Draft, deadlines []*time.Time) ([]*Task, error) {
	if len(drafts) != len(deadlines) {
		return nil, fmt.Errorf("%w: %d drafts but %d deadlines", mderrors.ErrValidation, len(drafts), len(deadlines))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, &mderrors.StageError{
			Code:    mderrors.ErrPersistence,
			Message: fmt.Sprintf("failed to begin transaction: %v", err),
			Cause:   err,
		}
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return nil, &mderrors.StageError{
			Code:    mderrors.ErrPersistence,
			Message: fmt.Sprintf("failed to replace previous tasks: %v", err),
			Cause:   err,
		}
	}
	if replaced := tag.RowsAffected(); replaced > 0 {
		r.logger.Info("Replacing tasks from a previous run",
			logging.F("meeting_id", meetingID),
			logging.F("replaced", replaced))
	}

	now := time.Now().UTC()
	tasks := make([]*Task, 0, len(drafts))
	for i, d := range drafts {
		t := &Task{
			ID:           uuid.New().String(),
			Name:         d.Name,
			Description:  d.Description,
			Owner:        d.Owner,
			Status:       d.initialStatus(),
			Priority:     d.Priority,
			Category:     d.Category,
			Deadline:     deadlines[i],
			MeetingID:    meetingID,
			UserID:       userID,
			Effort:       ClampEffort(d.Effort),
			Dependencies: d.Dependencies,
			Tags:         d.Tags,
			Context:      d.Context,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if t.Status == StatusCompleted {
			completed := now
			t.CompletedAt = &completed
		}

		if err := insertTask(ctx, tx, t); err != nil {
			r.logger.Error("Task insert failed, rolling back batch",
				logging.Err(err),
				logging.F("meeting_id", meetingID),
				logging.F("task_name", t.Name))
			return nil, &mderrors.StageError{
				Code:    mderrors.ErrPersistence,
				Message: fmt.Sprintf("failed to insert task %q: %v", t.Name, err),
				Cause:   err,
			}
		}
		tasks = append(tasks, t)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &mderrors.StageError{
			Code:    mderrors.ErrPersistence,
			Message: fmt.Sprintf("failed to commit task batch: %v", err),
			Cause:   err,
		}
	}

	r.logger.Info("Task batch persisted",
		logging.F("meeting_id", meetingID),
		logging.F("count", len(tasks)))
	return tasks, nil
}

func insertTask(ctx context.Context, tx pgx.Tx, t *Task) error {
	depsJSON, err := json.Marshal(emptyIfNil(t.Dependencies))
	if err != nil {
		return fmt.Errorf("failed to marshal dependencies: %w", err)
	}
	tagsJSON, err := json.Marshal(emptyIfNil(t.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tasks (
			id, name, description, owner, status, priority, category, deadline,
			completed_at, meeting_id, user_id, effort, dependencies, tags, context,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, t.ID, t.Name, t.Description, t.Owner, string(t.Status), string(t.Priority),
		string(t.Category), t.Deadline, t.CompletedAt, t.MeetingID, t.UserID,
		t.Effort, depsJSON, tagsJSON, t.Context, t.CreatedAt, t.UpdatedAt)
	return err
}

// ListByMeeting returns all tasks derived from one meeting.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID string) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE meeting_id = $1 ORDER BY created_at`
	return r.queryTasks(ctx, query, meetingID)
}

// ListByUser returns a user's tasks, soonest deadline first.
func (r *Repository) ListByUser(ctx context.Context, userID string, status Status) ([]*Task, error) {
	if status != "" {
		query := `SELECT ` + taskColumns + `
			FROM tasks WHERE user_id = $1 AND status = $2
			ORDER BY deadline NULLS LAST, created_at`
		return r.queryTasks(ctx, query, userID, string(status))
	}
	query := `SELECT ` + taskColumns + `
		FROM tasks WHERE user_id = $1 ORDER BY deadline NULLS LAST, created_at`
	return r.queryTasks(ctx, query, userID)
}

// CountByMeeting returns the number of tasks derived from one meeting.
func (r *Repository) CountByMeeting(ctx context.Context, meetingID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE meeting_id = $1`, meetingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// DeleteByMeeting removes all tasks derived from one meeting. Used when the
// meeting itself is deleted; the pipeline replaces tasks through CreateBatch
// instead.
func (r *Repository) DeleteByMeeting(ctx context.Context, meetingID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetStatus transitions a task's lifecycle state, stamping completed_at when
// it completes and clearing it otherwise.
func (r *Repository) SetStatus(ctx context.Context, id string, status Status) error {
	var completedAt *time.Time
	if status == StatusCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $2, completed_at = $3, updated_at = NOW() WHERE id = $1
	`, id, string(status), completedAt)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, mderrors.ErrNotFound)
	}
	return nil
}

// SetCalendarEventID writes back the scheduler's event identifier.
func (r *Repository) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET calendar_event_id = $2, updated_at = NOW() WHERE id = $1
	`, id, eventID)
	if err != nil {
		return fmt.Errorf("failed to update calendar event id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, mderrors.ErrNotFound)
	}
	return nil
}

func (r *Repository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t        Task
		status   string
		priority string
		category string
		depsJSON []byte
		tagsJSON []byte
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Owner, &status, &priority, &category,
		&t.Deadline, &t.CompletedAt, &t.MeetingID, &t.UserID, &t.CalendarEventID,
		&t.Effort, &depsJSON, &tagsJSON, &t.Context, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Priority = Priority(priority)
	t.Category = Category(category)
	if len(depsJSON) > 0 {
		if err := json.Unmarshal(depsJSON, &t.Dependencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dependencies: %w", err)
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &t, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
