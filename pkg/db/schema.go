package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates the meetings and tasks relations. Tasks carry a
// cascade-delete foreign key to meetings: deleting a meeting is an explicit
// user action that removes its derived tasks with it.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS meetings (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		transcript    TEXT,
		timeline      JSONB,
		file_path     TEXT,
		file_name     TEXT,
		file_size     BIGINT,
		duration      INTEGER,
		language      TEXT,
		confidence    DOUBLE PRECISION,
		status        TEXT NOT NULL DEFAULT 'uploaded',
		error_message TEXT,
		user_id       TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		description       TEXT,
		owner             TEXT,
		status            TEXT NOT NULL DEFAULT 'pending',
		priority          TEXT NOT NULL DEFAULT 'medium',
		category          TEXT NOT NULL,
		deadline          TIMESTAMPTZ,
		completed_at      TIMESTAMPTZ,
		meeting_id        TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		user_id           TEXT NOT NULL,
		calendar_event_id TEXT,
		effort            INTEGER NOT NULL DEFAULT 1,
		dependencies      JSONB NOT NULL DEFAULT '[]',
		tags              JSONB NOT NULL DEFAULT '[]',
		context           TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings(status)`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_user ON meetings(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_meeting ON tasks(meeting_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status)`,
}

// EnsureSchema creates the tables and indexes minuted needs if they do not
// already exist. It is safe to call on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
