package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/amdraipt/timetable-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregation queries over the
// generated timetable.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// TotalEntries counts all scheduled sessions.
func (r *AnalyticsRepository) TotalEntries(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM timetable_entries"); err != nil {
		return 0, fmt.Errorf("count timetable entries: %w", err)
	}
	return total, nil
}

// TeacherWorkload aggregates scheduled sessions per teacher, busiest first.
// Teachers without any session still appear with a zero count.
func (r *AnalyticsRepository) TeacherWorkload(ctx context.Context) ([]models.TeacherWorkload, error) {
	const query = `SELECT t.id AS teacher_id,
        t.name AS teacher_name,
        COUNT(te.id) AS sessions
        FROM teachers t
        LEFT JOIN timetable_entries te ON te.teacher_id = t.id
        GROUP BY t.id, t.name
        ORDER BY sessions DESC, t.name ASC`

	var workload []models.TeacherWorkload
	if err := r.db.SelectContext(ctx, &workload, query); err != nil {
		return nil, fmt.Errorf("query teacher workload: %w", err)
	}
	return workload, nil
}

// RoomUsage aggregates scheduled sessions per room, busiest first, idle rooms
// included. The utilisation percentage is derived by the caller from the
// slot count.
func (r *AnalyticsRepository) RoomUsage(ctx context.Context) ([]models.RoomUtilization, error) {
	const query = `SELECT rm.id AS room_id,
        rm.name AS room_name,
        COUNT(te.id) AS sessions
        FROM rooms rm
        LEFT JOIN timetable_entries te ON te.room_id = rm.id
        GROUP BY rm.id, rm.name
        ORDER BY sessions DESC, rm.name ASC`

	var usage []models.RoomUtilization
	if err := r.db.SelectContext(ctx, &usage, query); err != nil {
		return nil, fmt.Errorf("query room usage: %w", err)
	}
	return usage, nil
}

// PeakHours lists the busiest slots ordered by concurrent session count.
func (r *AnalyticsRepository) PeakHours(ctx context.Context, limit int) ([]models.PeakHour, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT ts.day, ts.period, COUNT(*) AS sessions
        FROM timetable_entries te
        JOIN time_slots ts ON ts.id = te.time_slot_id
        GROUP BY ts.day, ts.period
        ORDER BY sessions DESC, %s
        LIMIT $1`, slotOrder)

	var peaks []models.PeakHour
	if err := r.db.SelectContext(ctx, &peaks, query, limit); err != nil {
		return nil, fmt.Errorf("query peak hours: %w", err)
	}
	return peaks, nil
}

// CountRooms returns the number of registered rooms.
func (r *AnalyticsRepository) CountRooms(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM rooms"); err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return total, nil
}

// CountSlots returns the number of registered time slots.
func (r *AnalyticsRepository) CountSlots(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM time_slots"); err != nil {
		return 0, fmt.Errorf("count time slots: %w", err)
	}
	return total, nil
}
