package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/models"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
)

type roomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
}

// CreateRoomRequest represents payload for creating rooms.
type CreateRoomRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	RoomType string `json:"room_type" validate:"omitempty,max=50"`
	Capacity int    `json:"capacity" validate:"omitempty,min=1,max=1000"`
}

// UpdateRoomRequest represents payload for updating rooms. Nil fields keep
// their stored value.
type UpdateRoomRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	RoomType *string `json:"room_type" validate:"omitempty,max=50"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=1,max=1000"`
}

// RoomService orchestrates room operations.
type RoomService struct {
	repo      roomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService constructs a RoomService.
func NewRoomService(repo roomRepository, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, validator: validate, logger: logger}
}

// List returns rooms plus pagination data.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rooms, pagination, nil
}

// Get returns a room by id.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create registers a new room record.
func (s *RoomService) Create(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room := &models.Room{
		Name:     strings.TrimSpace(req.Name),
		RoomType: strings.TrimSpace(req.RoomType),
		Capacity: req.Capacity,
	}
	if room.RoomType == "" {
		room.RoomType = "classroom"
	}
	if room.Capacity == 0 {
		room.Capacity = 40
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return room, nil
}

// Update modifies an existing room.
func (s *RoomService) Update(ctx context.Context, id string, req UpdateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	if req.Name != nil {
		room.Name = strings.TrimSpace(*req.Name)
	}
	if req.RoomType != nil {
		room.RoomType = strings.TrimSpace(*req.RoomType)
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	return room, nil
}

// Delete removes a room.
func (s *RoomService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	return nil
}
