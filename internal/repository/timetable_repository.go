package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amdraipt/timetable-api/internal/models"
)

// TimetableRepository stores the generated schedule entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ReplaceAll atomically swaps the stored timetable for the given entries.
// Position preserves the generator's commit order across reads.
func (r *TimetableRepository) ReplaceAll(ctx context.Context, entries []models.ScheduleEntry) error {
	now := time.Now().UTC()
	for i := range entries {
		entries[i].Position = i
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace timetable: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_entries`); err != nil {
		return fmt.Errorf("clear timetable: %w", err)
	}

	if len(entries) > 0 {
		const insert = `INSERT INTO timetable_entries (id, subject_id, teacher_id, room_id, time_slot_id, class_group, position, created_at)
			VALUES (:id, :subject_id, :teacher_id, :room_id, :time_slot_id, :class_group, :position, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, entries); err != nil {
			return fmt.Errorf("insert timetable entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace timetable: %w", err)
	}
	return nil
}

// ListAll returns the stored entries in commit order.
func (r *TimetableRepository) ListAll(ctx context.Context) ([]models.ScheduleEntry, error) {
	const query = `SELECT id, subject_id, teacher_id, room_id, time_slot_id, class_group, position, created_at
		FROM timetable_entries ORDER BY position ASC`
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}
