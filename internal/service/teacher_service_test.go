package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/models"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
)

type mockTeacherRepo struct {
	items      map[string]*models.Teacher
	listResult []models.Teacher
	listTotal  int
	listErr    error
	deleted    []string
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	now := time.Now()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	teacher, err := service.Create(context.Background(), CreateTeacherRequest{
		Name:       "  Ms. Carter  ",
		Email:      "carter@example.com",
		Department: "Science",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ms. Carter", teacher.Name)
	assert.Equal(t, "Science", teacher.Department)
	assert.Len(t, repo.items, 1)
}

func TestTeacherServiceCreateRequiresName(t *testing.T) {
	repo := &mockTeacherRepo{}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateTeacherRequest{Email: "carter@example.com"})
	require.Error(t, err)
	assert.Empty(t, repo.items)
}

func TestTeacherServiceGetNotFound(t *testing.T) {
	repo := &mockTeacherRepo{}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	_, err := service.Get(context.Background(), "missing")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestTeacherServiceUpdatePartial(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", Name: "Ms. Carter", Email: "carter@example.com", Department: "Science"},
		},
	}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	name := "Dr. Carter"
	teacher, err := service.Update(context.Background(), "t1", UpdateTeacherRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Carter", teacher.Name)
	assert.Equal(t, "carter@example.com", teacher.Email)
	assert.Equal(t, "Science", teacher.Department)
}

func TestTeacherServiceDeleteNotFound(t *testing.T) {
	repo := &mockTeacherRepo{}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	err := service.Delete(context.Background(), "missing")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestTeacherServiceList(t *testing.T) {
	repo := &mockTeacherRepo{
		listResult: []models.Teacher{{ID: "t1", Name: "Ms. Carter"}},
		listTotal:  1,
	}
	service := NewTeacherService(repo, validator.New(), zap.NewNop())

	teachers, pagination, err := service.List(context.Background(), models.TeacherFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.TotalCount)
}
