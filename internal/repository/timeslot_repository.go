package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amdraipt/timetable-api/internal/models"
)

// TimeSlotRepository manages persistence for the weekly slot grid.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs a TimeSlotRepository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// slotOrder sorts Monday before Friday; plain ORDER BY day would be
// alphabetical.
const slotOrder = `CASE day
	WHEN 'Monday' THEN 1
	WHEN 'Tuesday' THEN 2
	WHEN 'Wednesday' THEN 3
	WHEN 'Thursday' THEN 4
	WHEN 'Friday' THEN 5
	ELSE 6 END, period ASC`

// ListAll returns every time slot in grid order.
func (r *TimeSlotRepository) ListAll(ctx context.Context) ([]models.TimeSlot, error) {
	query := fmt.Sprintf("SELECT id, day, period, start_time, end_time, created_at FROM time_slots ORDER BY %s", slotOrder)
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// Create inserts a new time slot record.
func (r *TimeSlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO time_slots (id, day, period, start_time, end_time, created_at)
		VALUES (:id, :day, :period, :start_time, :end_time, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create time slot: %w", err)
	}
	return nil
}

// ReplaceAll swaps the whole grid for the provided slots in one transaction,
// so repeated default-grid generation stays deterministic.
func (r *TimeSlotRepository) ReplaceAll(ctx context.Context, slots []models.TimeSlot) error {
	now := time.Now().UTC()
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		if slots[i].CreatedAt.IsZero() {
			slots[i].CreatedAt = now
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace time slots: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM time_slots`); err != nil {
		return fmt.Errorf("clear time slots: %w", err)
	}

	if len(slots) > 0 {
		const insert = `INSERT INTO time_slots (id, day, period, start_time, end_time, created_at)
			VALUES (:id, :day, :period, :start_time, :end_time, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, slots); err != nil {
			return fmt.Errorf("insert time slots: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace time slots: %w", err)
	}
	return nil
}

// Delete removes a time slot.
func (r *TimeSlotRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM time_slots WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete time slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete time slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
