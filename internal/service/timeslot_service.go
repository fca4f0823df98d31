package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/dto"
	"github.com/amdraipt/timetable-api/internal/models"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
)

type timeSlotRepository interface {
	ListAll(ctx context.Context) ([]models.TimeSlot, error)
	Create(ctx context.Context, slot *models.TimeSlot) error
	ReplaceAll(ctx context.Context, slots []models.TimeSlot) error
	Delete(ctx context.Context, id string) error
}

// CreateTimeSlotRequest represents payload for creating time slots.
type CreateTimeSlotRequest struct {
	Day       string `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday"`
	Period    int    `json:"period" validate:"required,min=1,max=12"`
	StartTime string `json:"start_time" validate:"omitempty,max=20"`
	EndTime   string `json:"end_time" validate:"omitempty,max=20"`
}

// defaultPeriodTimes carries the display times of the standard school day:
// three morning periods, a half-hour break, three more before close.
var defaultPeriodTimes = [6][2]string{
	{"08:00 AM", "08:50 AM"},
	{"08:50 AM", "09:40 AM"},
	{"09:40 AM", "10:30 AM"},
	{"11:00 AM", "11:50 AM"},
	{"11:50 AM", "12:40 PM"},
	{"12:40 PM", "01:30 PM"},
}

// TimeSlotService orchestrates the weekly slot grid.
type TimeSlotService struct {
	repo      timeSlotRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimeSlotService constructs a TimeSlotService.
func NewTimeSlotService(repo timeSlotRepository, validate *validator.Validate, logger *zap.Logger) *TimeSlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeSlotService{repo: repo, validator: validate, logger: logger}
}

// List returns all slots in grid order (Monday first, then period).
func (s *TimeSlotService) List(ctx context.Context) ([]models.TimeSlot, error) {
	slots, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	return slots, nil
}

// Create registers a single slot.
func (s *TimeSlotService) Create(ctx context.Context, req CreateTimeSlotRequest) (*models.TimeSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot payload")
	}

	slot := &models.TimeSlot{
		Day:       req.Day,
		Period:    req.Period,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create time slot")
	}
	return slot, nil
}

// Delete removes a slot.
func (s *TimeSlotService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete time slot")
	}
	return nil
}

// GenerateDefault replaces the entire grid with the standard Monday to
// Friday, six periods a day layout. Calling it repeatedly always yields the
// same 30 slots.
func (s *TimeSlotService) GenerateDefault(ctx context.Context) (*dto.GenerateDefaultSlotsResponse, error) {
	slots := make([]models.TimeSlot, 0, len(models.Weekdays)*len(defaultPeriodTimes))
	for _, day := range models.Weekdays {
		for period, times := range defaultPeriodTimes {
			slots = append(slots, models.TimeSlot{
				Day:       day,
				Period:    period + 1,
				StartTime: times[0],
				EndTime:   times[1],
			})
		}
	}

	if err := s.repo.ReplaceAll(ctx, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace time slots")
	}

	s.logger.Info("default time slot grid generated", zap.Int("count", len(slots)))
	return &dto.GenerateDefaultSlotsResponse{Count: len(slots), Slots: slots}, nil
}
