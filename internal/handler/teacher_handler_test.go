package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/internal/service"
)

type teacherRepoStub struct {
	items map[string]*models.Teacher
	seq   int
}

func newTeacherRepoStub() *teacherRepoStub {
	return &teacherRepoStub{items: make(map[string]*models.Teacher)}
}

func (s *teacherRepoStub) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	out := make([]models.Teacher, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (s *teacherRepoStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	t, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (s *teacherRepoStub) Create(ctx context.Context, teacher *models.Teacher) error {
	s.seq++
	teacher.ID = fmt.Sprintf("t-%d", s.seq)
	copied := *teacher
	s.items[teacher.ID] = &copied
	return nil
}

func (s *teacherRepoStub) Update(ctx context.Context, teacher *models.Teacher) error {
	if _, ok := s.items[teacher.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *teacher
	s.items[teacher.ID] = &copied
	return nil
}

func (s *teacherRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestTeacherHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newTeacherRepoStub()
	repo.items["t-1"] = &models.Teacher{ID: "t-1", Name: "Ms. Carter"}
	repo.items["t-2"] = &models.Teacher{ID: "t-2", Name: "Mr. Okafor"}
	handler := NewTeacherHandler(service.NewTeacherService(repo, nil, nil))

	c, w := newGinContext(http.MethodGet, "/teachers?page=1&limit=10", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data       []models.Teacher   `json:"data"`
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 2, envelope.Pagination.TotalCount)
}

func TestTeacherHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newTeacherRepoStub()
	handler := NewTeacherHandler(service.NewTeacherService(repo, nil, nil))

	payload, _ := json.Marshal(service.CreateTeacherRequest{Name: "Ms. Carter", Email: "carter@school.test"})
	c, w := newGinContext(http.MethodPost, "/teachers", payload)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Teacher `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.ID)
	assert.Equal(t, "Ms. Carter", envelope.Data.Name)
}

func TestTeacherHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTeacherHandler(service.NewTeacherService(newTeacherRepoStub(), nil, nil))

	c, w := newGinContext(http.MethodPost, "/teachers", []byte(`not-json`))
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTeacherHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTeacherHandler(service.NewTeacherService(newTeacherRepoStub(), nil, nil))

	c, w := newGinContext(http.MethodGet, "/teachers/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeacherHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newTeacherRepoStub()
	repo.items["t-1"] = &models.Teacher{ID: "t-1", Name: "Ms. Carter"}
	handler := NewTeacherHandler(service.NewTeacherService(repo, nil, nil))

	c, w := newGinContext(http.MethodDelete, "/teachers/t-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	handler.Delete(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.items)
}
