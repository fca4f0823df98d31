package dto

import (
	"time"

	"github.com/amdraipt/timetable-api/internal/models"
)

// CreateExportRequest captures POST /exports payload.
type CreateExportRequest struct {
	Format models.ExportFormat `json:"format"`
}

// ExportJobResponse exposes job state to clients. DownloadURL is only set
// once the job has completed.
type ExportJobResponse struct {
	ID          string              `json:"id"`
	Format      models.ExportFormat `json:"format"`
	Status      models.ExportStatus `json:"status"`
	Attempts    int                 `json:"attempts"`
	Error       string              `json:"error,omitempty"`
	DownloadURL string              `json:"download_url,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}
