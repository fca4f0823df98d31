package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amdraipt/timetable-api/internal/models"
)

// RoomRepository manages persistence for rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms matching filters along with total count.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	base := "FROM rooms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.RoomType != "" {
		conditions = append(conditions, fmt.Sprintf("room_type = $%d", len(args)+1))
		args = append(args, filter.RoomType)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]string{
		"name":       "name",
		"room_type":  "room_type",
		"capacity":   "capacity",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, name, room_type, capacity, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", base, column, order, size, offset)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}

	return rooms, total, nil
}

// ListAll returns every room in creation order. Input order matters: the
// generator breaks room-load ties by it.
func (r *RoomRepository) ListAll(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, room_type, capacity, created_at, updated_at FROM rooms ORDER BY created_at ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list all rooms: %w", err)
	}
	return rooms, nil
}

// FindByID fetches a room by ID.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, name, room_type, capacity, created_at, updated_at FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// Create inserts a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, name, room_type, capacity, created_at, updated_at)
		VALUES (:id, :name, :room_type, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies an existing room record.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET name = :name, room_type = :room_type, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// Delete removes a room.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM rooms WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete room rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
