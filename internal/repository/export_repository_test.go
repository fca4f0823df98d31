package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/amdraipt/timetable-api/internal/models"
)

func newExportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newExportRepoMock(t)
	defer cleanup()

	repo := NewExportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO export_jobs")).
		WithArgs(sqlmock.AnyArg(), "csv", "PENDING", 0, 3, "", "", "admin", sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{
		Format:      models.ExportFormatCSV,
		MaxAttempts: 3,
		RequestedBy: "admin",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.ExportStatusPending, job.Status)

	rows := sqlmock.NewRows([]string{"id", "format", "status", "attempts", "max_attempts", "file_path", "error_message", "requested_by", "created_at", "started_at", "finished_at"}).
		AddRow(job.ID, "csv", "PENDING", 0, 3, "", "", "admin", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, format, status, attempts, max_attempts, file_path, error_message, requested_by, created_at, started_at, finished_at FROM export_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newExportRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	now := time.Now()
	status := models.ExportStatusCompleted
	attempts := 1
	path := "exports/job-1.csv"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $1, attempts = $2, file_path = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, attempts, path, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateExportJobParams{
		Status:     &status,
		Attempts:   &attempts,
		FilePath:   &path,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRepositoryUpdateNoFieldsIsNoop(t *testing.T) {
	db, mock, cleanup := newExportRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateExportJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRepositoryListUnfinished(t *testing.T) {
	db, mock, cleanup := newExportRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "format", "status", "attempts", "max_attempts", "file_path", "error_message", "requested_by", "created_at", "started_at", "finished_at"}).
		AddRow("job-1", "pdf", "PROCESSING", 1, 3, "", "", "admin", time.Now(), time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE status IN ('PENDING', 'PROCESSING') ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(rows)

	jobs, err := repo.ListUnfinished(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRepositoryListFinishedBefore(t *testing.T) {
	db, mock, cleanup := newExportRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "format", "status", "attempts", "max_attempts", "file_path", "error_message", "requested_by", "created_at", "started_at", "finished_at"}).
		AddRow("job-1", "csv", "COMPLETED", 1, 3, "exports/job-1.csv", "", "admin", time.Now().Add(-80*time.Hour), time.Now().Add(-80*time.Hour), time.Now().Add(-79*time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE status IN ('COMPLETED', 'FAILED') AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2")).
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(rows)

	jobs, err := repo.ListFinishedBefore(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
