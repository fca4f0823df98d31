package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amdraipt/timetable-api/internal/models"
)

// ExportRepository persists export job metadata.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

const exportColumns = "id, format, status, attempts, max_attempts, file_path, error_message, requested_by, created_at, started_at, finished_at"

// Create inserts a new export job row with generated defaults.
func (r *ExportRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO export_jobs (id, format, status, attempts, max_attempts, file_path, error_message, requested_by, created_at, started_at, finished_at)
VALUES (:id, :format, :status, :attempts, :max_attempts, :file_path, :error_message, :requested_by, :created_at, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *ExportRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE id = $1", exportColumns)
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateExportJobParams defines the mutable fields of a job row.
type UpdateExportJobParams struct {
	Status       *models.ExportStatus
	Attempts     *int
	FilePath     *string
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *ExportRepository) Update(ctx context.Context, id string, params UpdateExportJobParams) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.Attempts != nil {
		set = append(set, fmt.Sprintf("attempts = $%d", argPos))
		args = append(args, *params.Attempts)
		argPos++
	}
	if params.FilePath != nil {
		set = append(set, fmt.Sprintf("file_path = $%d", argPos))
		args = append(args, *params.FilePath)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.StartedAt != nil {
		set = append(set, fmt.Sprintf("started_at = $%d", argPos))
		args = append(args, *params.StartedAt)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE export_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}

// ListUnfinished fetches jobs still pending or processing, oldest first.
// Used for cold start recovery after a crash.
func (r *ExportRepository) ListUnfinished(ctx context.Context, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE status IN ('PENDING', 'PROCESSING') ORDER BY created_at ASC LIMIT $1`, exportColumns)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list unfinished export jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves terminal jobs older than cutoff for cleanup.
func (r *ExportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE status IN ('COMPLETED', 'FAILED') AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`, exportColumns)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished export jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job row.
func (r *ExportRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM export_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete export job: %w", err)
	}
	return nil
}
