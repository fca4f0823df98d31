package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements bootstrap the tables the service needs. Statements are
// idempotent so they can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		code              TEXT NOT NULL DEFAULT '',
		teacher_id        TEXT NOT NULL,
		class_group       TEXT NOT NULL,
		sessions_per_week INTEGER NOT NULL DEFAULT 1,
		duration_minutes  INTEGER NOT NULL DEFAULT 50,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subjects_teacher_id ON subjects (teacher_id)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		room_type  TEXT NOT NULL DEFAULT 'classroom',
		capacity   INTEGER NOT NULL DEFAULT 40,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS time_slots (
		id         TEXT PRIMARY KEY,
		day        TEXT NOT NULL,
		period     INTEGER NOT NULL,
		start_time TEXT NOT NULL DEFAULT '',
		end_time   TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_time_slots_day_period ON time_slots (day, period)`,
	`CREATE TABLE IF NOT EXISTS timetable_entries (
		id           TEXT PRIMARY KEY,
		subject_id   TEXT NOT NULL,
		teacher_id   TEXT NOT NULL,
		room_id      TEXT NOT NULL,
		time_slot_id TEXT NOT NULL,
		class_group  TEXT NOT NULL,
		position     INTEGER NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_entries_slot ON timetable_entries (time_slot_id)`,
	`CREATE TABLE IF NOT EXISTS export_jobs (
		id            TEXT PRIMARY KEY,
		format        TEXT NOT NULL,
		status        TEXT NOT NULL,
		attempts      INTEGER NOT NULL DEFAULT 0,
		max_attempts  INTEGER NOT NULL DEFAULT 3,
		file_path     TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		requested_by  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at    TIMESTAMPTZ,
		finished_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON export_jobs (status)`,
}

// EnsureSchema creates missing tables and indexes on startup.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
