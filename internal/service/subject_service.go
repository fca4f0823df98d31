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

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type teacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CreateSubjectRequest represents payload for creating subjects.
type CreateSubjectRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	Code            string `json:"code" validate:"omitempty,max=20"`
	TeacherID       string `json:"teacher_id" validate:"required"`
	ClassGroup      string `json:"class_group" validate:"required,max=50"`
	SessionsPerWeek int    `json:"sessions_per_week" validate:"required,min=1,max=30"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
}

// UpdateSubjectRequest represents payload for updating subjects. Nil fields
// keep their stored value.
type UpdateSubjectRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=200"`
	Code            *string `json:"code" validate:"omitempty,max=20"`
	TeacherID       *string `json:"teacher_id" validate:"omitempty,min=1"`
	ClassGroup      *string `json:"class_group" validate:"omitempty,min=1,max=50"`
	SessionsPerWeek *int    `json:"sessions_per_week" validate:"omitempty,min=1,max=30"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
}

// SubjectService orchestrates subject operations.
type SubjectService struct {
	repo      subjectRepository
	teachers  teacherFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, teachers teacherFinder, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// List returns subjects plus pagination data.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
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
	return subjects, pagination, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create registers a new subject. The referenced teacher must exist at
// creation time; it may be deleted later.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if err := s.ensureTeacherExists(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		Name:            strings.TrimSpace(req.Name),
		Code:            strings.ToUpper(strings.TrimSpace(req.Code)),
		TeacherID:       req.TeacherID,
		ClassGroup:      strings.TrimSpace(req.ClassGroup),
		SessionsPerWeek: req.SessionsPerWeek,
		DurationMinutes: req.DurationMinutes,
	}
	if subject.DurationMinutes == 0 {
		subject.DurationMinutes = 50
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update modifies an existing subject, re-checking the teacher when changed.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if req.TeacherID != nil && *req.TeacherID != subject.TeacherID {
		if err := s.ensureTeacherExists(ctx, *req.TeacherID); err != nil {
			return nil, err
		}
		subject.TeacherID = *req.TeacherID
	}
	if req.Name != nil {
		subject.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		subject.Code = strings.ToUpper(strings.TrimSpace(*req.Code))
	}
	if req.ClassGroup != nil {
		subject.ClassGroup = strings.TrimSpace(*req.ClassGroup)
	}
	if req.SessionsPerWeek != nil {
		subject.SessionsPerWeek = *req.SessionsPerWeek
	}
	if req.DurationMinutes != nil {
		subject.DurationMinutes = *req.DurationMinutes
	}

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a subject.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

func (s *SubjectService) ensureTeacherExists(ctx context.Context, teacherID string) error {
	if s.teachers == nil {
		return nil
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "referenced teacher does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify teacher")
	}
	return nil
}
