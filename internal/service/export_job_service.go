package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/dto"
	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/internal/repository"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
	"github.com/amdraipt/timetable-api/pkg/export"
	"github.com/amdraipt/timetable-api/pkg/jobs"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListUnfinished(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
	Delete(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Sign(jobID, relPath string) (string, int64, error)
	Verify(jobID, relPath, token string, expires int64) error
}

type timetableSource interface {
	Enriched(ctx context.Context) ([]models.EnrichedScheduleEntry, bool, error)
}

type pdfRenderer interface {
	Render(table export.Table, title string) ([]byte, error)
}

// ExportJobServiceConfig governs download links, recovery and cleanup.
type ExportJobServiceConfig struct {
	BasePath        string
	Retention       time.Duration
	CleanupInterval time.Duration
	MaxAttempts     int
}

// ExportJobService orchestrates the asynchronous export lifecycle. Download
// URLs are signed on read, never persisted with the job row.
type ExportJobService struct {
	repo    exportJobStore
	queue   jobDispatcher
	storage fileStorage
	signer  downloadSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportJobServiceConfig
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	SizeBytes int64
	MimeType  string
}

// NewExportJobService constructs the export job service.
func NewExportJobService(repo exportJobStore, queue jobDispatcher, storage fileStorage, signer downloadSigner, metrics *MetricsService, logger *zap.Logger, cfg ExportJobServiceConfig) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/api/v1/exports"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 72 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &ExportJobService{
		repo:    repo,
		queue:   queue,
		storage: storage,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// CreateJob persists a new export job and enqueues it for processing.
func (s *ExportJobService) CreateJob(ctx context.Context, req dto.CreateExportRequest, requestedBy string) (*dto.ExportJobResponse, error) {
	format := req.Format
	if format == "" {
		format = models.ExportFormatCSV
	}
	if !isValidExportFormat(format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	job := &models.ExportJob{
		Format:      format,
		Status:      models.ExportStatusPending,
		MaxAttempts: s.cfg.MaxAttempts,
		RequestedBy: requestedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		if s.metrics != nil {
			s.metrics.RecordExportJob("failed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return s.toResponse(job), nil
}

// GetJob exposes job metadata, attaching a freshly signed download URL once
// the job has completed.
func (s *ExportJobService) GetJob(ctx context.Context, id string) (*dto.ExportJobResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return s.toResponse(job), nil
}

// Download validates the signed token and opens the stored export file.
func (s *ExportJobService) Download(ctx context.Context, id, token string, expires int64) (*ExportDownload, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusCompleted || job.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrExportNotReady, "export is not ready for download")
	}
	if err := s.signer.Verify(job.ID, job.FilePath, token, expires); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidSignature, "invalid or expired download token")
	}

	file, err := s.storage.Open(job.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(job.FilePath),
		SizeBytes: info.Size(),
		MimeType:  exportMimeType(job.Format),
	}, nil
}

func exportMimeType(format models.ExportFormat) string {
	switch format {
	case models.ExportFormatPDF:
		return "application/pdf"
	case models.ExportFormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// RecoverUnfinished replays jobs left pending or processing by a previous
// process, e.g. after a restart.
func (s *ExportJobService) RecoverUnfinished(ctx context.Context) {
	unfinished, err := s.repo.ListUnfinished(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover unfinished export jobs", "error", err)
		return
	}
	for _, job := range unfinished {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Attempt: job.Attempts}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue export job", "job_id", job.ID, "error", err)
		}
	}
	if len(unfinished) > 0 {
		s.logger.Info("requeued unfinished export jobs", zap.Int("count", len(unfinished)))
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportJobService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 50)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup list failed", "error", err)
			return
		}
		if len(expired) == 0 {
			break
		}
		for _, job := range expired {
			if job.FilePath != "" {
				if err := s.storage.Delete(job.FilePath); err != nil {
					s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
				}
			}
			if err := s.repo.Delete(ctx, job.ID); err != nil {
				s.logger.Sugar().Warnw("cleanup job delete failed", "job_id", job.ID, "error", err)
			}
		}
		if len(expired) < 50 {
			break
		}
	}
	// Sweep files whose job rows are already gone.
	if _, err := s.storage.CleanupOlderThan(s.cfg.Retention); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *ExportJobService) toResponse(job *models.ExportJob) *dto.ExportJobResponse {
	resp := &dto.ExportJobResponse{
		ID:         job.ID,
		Format:     job.Format,
		Status:     job.Status,
		Attempts:   job.Attempts,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	if job.Status == models.ExportStatusCompleted && job.FilePath != "" {
		token, expires, err := s.signer.Sign(job.ID, job.FilePath)
		if err != nil {
			s.logger.Warn("failed to sign download url", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			expiresAt := time.Unix(expires, 0).UTC()
			resp.DownloadURL = fmt.Sprintf("%s/%s/download?token=%s&expires=%d", s.cfg.BasePath, job.ID, token, expires)
			resp.ExpiresAt = &expiresAt
		}
	}
	return resp
}

func isValidExportFormat(f models.ExportFormat) bool {
	return f == models.ExportFormatCSV || f == models.ExportFormatPDF
}

// ExportWorker bridges queue jobs to the renderers and storage.
type ExportWorker struct {
	repo       exportJobStore
	timetable  timetableSource
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker. Nil renderers fall back to the
// built-in CSV and PDF exporters.
func NewExportWorker(repo exportJobStore, timetable timetableSource, storage fileStorage, csv csvRenderer, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger, maxRetries int) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		repo:       repo,
		timetable:  timetable,
		storage:    storage,
		csv:        csv,
		pdf:        pdf,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}

	processing := models.ExportStatusProcessing
	attempts := job.Attempt + 1
	startedAt := time.Now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:    &processing,
		Attempts:  &attempts,
		StartedAt: &startedAt,
	}); err != nil {
		return err
	}

	payload, err := w.render(ctx, record)
	if err == nil {
		_, err = w.storage.Save(exportFilename(record), payload)
		if err != nil {
			err = fmt.Errorf("save export file: %w", err)
		}
	}
	if err != nil {
		w.markFailure(ctx, job, err)
		return err
	}

	completed := models.ExportStatusCompleted
	filePath := exportFilename(record)
	clear := ""
	finishedAt := time.Now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &completed,
		FilePath:     &filePath,
		ErrorMessage: &clear,
		FinishedAt:   &finishedAt,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job completed", "job_id", job.ID, "error", err)
		return err
	}

	if w.metrics != nil {
		w.metrics.RecordExportJob("completed")
	}
	w.logger.Info("export job completed",
		zap.String("job_id", job.ID),
		zap.String("format", string(record.Format)),
		zap.Duration("duration", time.Since(startedAt)))
	return nil
}

func (w *ExportWorker) render(ctx context.Context, record *models.ExportJob) ([]byte, error) {
	enriched, _, err := w.timetable.Enriched(ctx)
	if err != nil {
		return nil, fmt.Errorf("load timetable: %w", err)
	}
	table := buildTimetableTable(enriched)

	switch record.Format {
	case models.ExportFormatCSV:
		return w.csv.Render(table)
	case models.ExportFormatPDF:
		return w.pdf.Render(table, "Weekly Timetable")
	default:
		return nil, fmt.Errorf("unsupported export format %q", record.Format)
	}
}

func (w *ExportWorker) markFailure(ctx context.Context, job jobs.Job, cause error) {
	msg := cause.Error()
	if job.Attempt >= w.maxRetries {
		failed := models.ExportStatusFailed
		now := time.Now().UTC()
		if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", updateErr)
		}
		if w.metrics != nil {
			w.metrics.RecordExportJob("failed")
		}
		return
	}

	pending := models.ExportStatusPending
	if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &pending,
		ErrorMessage: &msg,
	}); updateErr != nil {
		w.logger.Sugar().Warnw("failed to reset job for retry", "job_id", job.ID, "error", updateErr)
	}
}

func exportFilename(job *models.ExportJob) string {
	return fmt.Sprintf("timetable_%s.%s", job.ID, job.Format)
}
