package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ExportJobStatus enumerates the export job lifecycle.
type ExportJobStatus string

const (
	ExportJobQueued     ExportJobStatus = "queued"
	ExportJobProcessing ExportJobStatus = "processing"
	ExportJobCompleted  ExportJobStatus = "completed"
	ExportJobFailed     ExportJobStatus = "failed"
)

// ExportFormat enumerates supported export file formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportJob tracks an asynchronous schedule export. Request holds the
// simulation payload the worker replays when rendering.
type ExportJob struct {
	ID          string          `db:"id" json:"id"`
	Status      ExportJobStatus `db:"status" json:"status"`
	Format      ExportFormat    `db:"format" json:"format"`
	Request     types.JSONText  `db:"request" json:"-"`
	FilePath    string          `db:"file_path" json:"-"`
	DownloadURL string          `db:"download_url" json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time      `db:"expires_at" json:"expiresAt,omitempty"`
	Error       string          `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}
