package models

import "time"

// ExportFormat enumerates supported timetable export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "PENDING"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusCompleted  ExportStatus = "COMPLETED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is the persisted metadata of one asynchronous timetable export.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	Format       ExportFormat `db:"format" json:"format"`
	Status       ExportStatus `db:"status" json:"status"`
	Attempts     int          `db:"attempts" json:"attempts"`
	MaxAttempts  int          `db:"max_attempts" json:"max_attempts"`
	FilePath     string       `db:"file_path" json:"-"`
	ErrorMessage string       `db:"error_message" json:"error_message,omitempty"`
	RequestedBy  string       `db:"requested_by" json:"requested_by,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	StartedAt    *time.Time   `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}
