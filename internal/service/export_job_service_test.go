package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/dto"
	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/internal/repository"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
	"github.com/amdraipt/timetable-api/pkg/jobs"
	"github.com/amdraipt/timetable-api/pkg/storage"
)

type exportRepoStub struct {
	jobs map[string]*models.ExportJob
}

func newExportRepoStub() *exportRepoStub {
	return &exportRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *job
	return &cp, nil
}

func (r *exportRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := r.jobs[id]
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

func (r *exportRepoStub) ListUnfinished(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var unfinished []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusPending || job.Status == models.ExportStatusProcessing {
			unfinished = append(unfinished, *job)
		}
	}
	return unfinished, nil
}

func (r *exportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	var finished []models.ExportJob
	for _, job := range r.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, *job)
		}
	}
	return finished, nil
}

func (r *exportRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.jobs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.jobs, id)
	return nil
}

type exportQueueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *exportQueueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type timetableSourceStub struct {
	entries []models.EnrichedScheduleEntry
	err     error
}

func (s timetableSourceStub) Enriched(ctx context.Context) ([]models.EnrichedScheduleEntry, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return s.entries, false, nil
}

func sampleEnrichedEntries() []models.EnrichedScheduleEntry {
	return []models.EnrichedScheduleEntry{
		{
			ID:          "e1",
			SubjectName: "Mathematics",
			SubjectCode: "MATH",
			TeacherName: "Ms. Carter",
			RoomName:    "Room 101",
			Day:         "Monday",
			Period:      1,
			StartTime:   "08:00 AM",
			EndTime:     "08:50 AM",
			ClassGroup:  "Class A",
		},
	}
}

func newExportJobServiceForTest(t *testing.T) (*ExportJobService, *exportRepoStub, *exportQueueStub, *storage.LocalStorage) {
	t.Helper()
	repo := newExportRepoStub()
	queue := &exportQueueStub{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	service := NewExportJobService(repo, queue, store, signer, nil, zap.NewNop(), ExportJobServiceConfig{
		BasePath:        "/api/v1/exports",
		Retention:       time.Hour,
		CleanupInterval: time.Hour,
		MaxAttempts:     3,
	})
	return service, repo, queue, store
}

func TestExportJobServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), dto.CreateExportRequest{Format: models.ExportFormatCSV}, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, models.ExportStatusPending, resp.Status)
	assert.Empty(t, resp.DownloadURL)
	require.Len(t, queue.jobs, 1)
	assert.Contains(t, repo.jobs, resp.ID)
}

func TestExportJobServiceCreateJobDefaultsToCSV(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), dto.CreateExportRequest{}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, repo.jobs[resp.ID].Format)
}

func TestExportJobServiceCreateJobRejectsUnknownFormat(t *testing.T) {
	svc, _, queue, _ := newExportJobServiceForTest(t)

	_, err := svc.CreateJob(context.Background(), dto.CreateExportRequest{Format: "xlsx"}, "admin")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, queue.jobs)
}

func TestExportJobServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	queue.err = errors.New("queue full")

	_, err := svc.CreateJob(context.Background(), dto.CreateExportRequest{Format: models.ExportFormatCSV}, "admin")
	require.Error(t, err)

	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
		assert.NotNil(t, job.FinishedAt)
	}
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	svc, repo, _, store := newExportJobServiceForTest(t)
	job := &models.ExportJob{ID: "job-1", Format: models.ExportFormatCSV, Status: models.ExportStatusPending, MaxAttempts: 3}
	repo.jobs[job.ID] = job

	source := timetableSourceStub{entries: sampleEnrichedEntries()}
	worker := NewExportWorker(repo, source, store, nil, nil, nil, zap.NewNop(), 3)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "timetable_job-1.csv", job.FilePath)
	require.NotNil(t, job.FinishedAt)

	file, err := store.Open(job.FilePath)
	require.NoError(t, err)
	defer file.Close()
	payload, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Mathematics")

	// A completed job exposes a signed download URL.
	resp, err := svc.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotEmpty(t, resp.DownloadURL)
	assert.Contains(t, resp.DownloadURL, "/api/v1/exports/job-1/download?token=")
	require.NotNil(t, resp.ExpiresAt)
}

func TestExportWorkerRendersPDF(t *testing.T) {
	_, repo, _, store := newExportJobServiceForTest(t)
	job := &models.ExportJob{ID: "job-pdf", Format: models.ExportFormatPDF, Status: models.ExportStatusPending, MaxAttempts: 3}
	repo.jobs[job.ID] = job

	source := timetableSourceStub{entries: sampleEnrichedEntries()}
	worker := NewExportWorker(repo, source, store, nil, nil, nil, zap.NewNop(), 3)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-pdf"})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, job.Status)
	assert.Equal(t, "timetable_job-pdf.pdf", job.FilePath)
}

func TestExportWorkerFailureResetsForRetry(t *testing.T) {
	_, repo, _, store := newExportJobServiceForTest(t)
	job := &models.ExportJob{ID: "job-1", Format: models.ExportFormatCSV, Status: models.ExportStatusPending, MaxAttempts: 3}
	repo.jobs[job.ID] = job

	source := timetableSourceStub{err: errors.New("db down")}
	worker := NewExportWorker(repo, source, store, nil, nil, nil, zap.NewNop(), 3)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusPending, job.Status)
	assert.Contains(t, job.ErrorMessage, "db down")
	assert.Nil(t, job.FinishedAt)
}

func TestExportWorkerFailureExhaustsRetries(t *testing.T) {
	_, repo, _, store := newExportJobServiceForTest(t)
	job := &models.ExportJob{ID: "job-1", Format: models.ExportFormatCSV, Status: models.ExportStatusPending, MaxAttempts: 3}
	repo.jobs[job.ID] = job

	source := timetableSourceStub{err: errors.New("db down")}
	worker := NewExportWorker(repo, source, store, nil, nil, nil, zap.NewNop(), 3)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusFailed, job.Status)
	require.NotNil(t, job.FinishedAt)
}

func TestExportJobServiceDownload(t *testing.T) {
	svc, repo, _, store := newExportJobServiceForTest(t)
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

	resp, err := svc.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotEmpty(t, resp.DownloadURL)

	parsed, err := url.Parse(resp.DownloadURL)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	expires, err := strconv.ParseInt(parsed.Query().Get("expires"), 10, 64)
	require.NoError(t, err)

	download, err := svc.Download(context.Background(), "job-1", token, expires)
	require.NoError(t, err)
	assert.Equal(t, "timetable_job-1.csv", download.Filename)
	assert.Equal(t, "text/csv", download.MimeType)
	assert.Greater(t, download.SizeBytes, int64(0))
	download.File.Close()

	// A tampered token must not pass.
	_, err = svc.Download(context.Background(), "job-1", token, expires+1)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidSignature.Code, appErr.Code)
}

func TestExportJobServiceDownloadNotReady(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Format: models.ExportFormatCSV, Status: models.ExportStatusPending}

	_, err := svc.Download(context.Background(), "job-1", "token", time.Now().Add(time.Hour).Unix())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrExportNotReady.Code, appErr.Code)
}

func TestExportJobServiceRecoverUnfinished(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	repo.jobs["a"] = &models.ExportJob{ID: "a", Status: models.ExportStatusPending}
	repo.jobs["b"] = &models.ExportJob{ID: "b", Status: models.ExportStatusProcessing, Attempts: 1}
	repo.jobs["c"] = &models.ExportJob{ID: "c", Status: models.ExportStatusCompleted}

	svc.RecoverUnfinished(context.Background())
	assert.Len(t, queue.jobs, 2)
}

func TestExportJobServiceCleanupExpired(t *testing.T) {
	svc, repo, _, store := newExportJobServiceForTest(t)
	_, err := store.Save("timetable_old.csv", []byte("stale"))
	require.NoError(t, err)
	finished := time.Now().UTC().Add(-2 * time.Hour)
	repo.jobs["old"] = &models.ExportJob{
		ID:         "old",
		Format:     models.ExportFormatCSV,
		Status:     models.ExportStatusCompleted,
		FilePath:   "timetable_old.csv",
		FinishedAt: &finished,
	}

	svc.cleanupExpired(context.Background())

	assert.NotContains(t, repo.jobs, "old")
	_, err = store.Open("timetable_old.csv")
	require.Error(t, err)
}
