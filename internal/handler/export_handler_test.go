package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdraipt/timetable-api/internal/dto"
	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/internal/repository"
	"github.com/amdraipt/timetable-api/internal/service"
	"github.com/amdraipt/timetable-api/pkg/jobs"
	"github.com/amdraipt/timetable-api/pkg/storage"
)

type exportJobRepoStub struct {
	jobs map[string]*models.ExportJob
	seq  int
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: make(map[string]*models.ExportJob)}
}

func (s *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	s.seq++
	if job.ID == "" {
		job.ID = "job-" + strconv.Itoa(s.seq)
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *exportJobRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Attempts != nil {
		job.Attempts = *params.Attempts
	}
	if params.FilePath != nil {
		job.FilePath = *params.FilePath
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = *params.ErrorMessage
	}
	if params.StartedAt != nil {
		job.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *exportJobRepoStub) ListUnfinished(ctx context.Context, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

func (s *exportJobRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

func (s *exportJobRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.jobs, id)
	return nil
}

type exportQueueStubHandler struct{ enqueued []jobs.Job }

func (s *exportQueueStubHandler) Enqueue(job jobs.Job) error {
	s.enqueued = append(s.enqueued, job)
	return nil
}

func newExportHandlerForTest(t *testing.T) (*ExportHandler, *exportJobRepoStub, *storage.LocalStorage) {
	t.Helper()
	repo := newExportJobRepoStub()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := service.NewExportJobService(repo, &exportQueueStubHandler{}, store, signer, nil, nil, service.ExportJobServiceConfig{})
	return NewExportHandler(svc), repo, store
}

func TestExportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, _ := newExportHandlerForTest(t)

	payload, _ := json.Marshal(dto.CreateExportRequest{Format: models.ExportFormatPDF})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)

	var envelope struct {
		Data dto.ExportJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.ExportFormatPDF, envelope.Data.Format)
	assert.Equal(t, models.ExportStatusPending, envelope.Data.Status)
	assert.Len(t, repo.jobs, 1)
}

func TestExportHandlerCreateUnknownFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newExportHandlerForTest(t)

	c, w := newGinContext(http.MethodPost, "/exports", []byte(`{"format":"xlsx"}`))
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newExportHandlerForTest(t)

	c, w := newGinContext(http.MethodGet, "/exports/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, store := newExportHandlerForTest(t)
	_, err := store.Save("timetable_job-1.csv", []byte("Day,Period\nMonday,1\n"))
	require.NoError(t, err)
	now := time.Now().UTC()
	repo.jobs["job-1"] = &models.ExportJob{
		ID:         "job-1",
		Format:     models.ExportFormatCSV,
		Status:     models.ExportStatusCompleted,
		FilePath:   "timetable_job-1.csv",
		FinishedAt: &now,
	}

	// The signed link comes from the job response.
	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.ExportJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.DownloadURL)

	parsed, err := url.Parse(envelope.Data.DownloadURL)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	expires := parsed.Query().Get("expires")

	c, w = newGinContext(http.MethodGet, "/exports/job-1/download?token="+token+"&expires="+expires, nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable_job-1.csv")
	assert.Contains(t, w.Body.String(), "Day,Period")
}

func TestExportHandlerDownloadBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, store := newExportHandlerForTest(t)
	_, err := store.Save("timetable_job-1.csv", []byte("data"))
	require.NoError(t, err)
	repo.jobs["job-1"] = &models.ExportJob{
		ID:       "job-1",
		Format:   models.ExportFormatCSV,
		Status:   models.ExportStatusCompleted,
		FilePath: "timetable_job-1.csv",
	}

	expires := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
	c, w := newGinContext(http.MethodGet, "/exports/job-1/download?token=deadbeef&expires="+expires, nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerDownloadMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newExportHandlerForTest(t)

	c, w := newGinContext(http.MethodGet, "/exports/job-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.Download(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
