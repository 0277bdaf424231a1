package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/planfab/planfab-api/internal/models"
)

const exportJobColumns = `id, status, format, request, file_path, download_url, expires_at, error, created_at, updated_at`

// ExportJobRepository persists asynchronous export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs an export job repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a queued job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportJobQueued
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	const query = `INSERT INTO export_jobs (id, status, format, request, file_path, download_url, expires_at, error, created_at, updated_at)
VALUES (:id, :status, :format, :request, :file_path, :download_url, :expires_at, :error, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID fetches one job.
func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE id = $1", exportJobColumns)
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("find export job %s: %w", id, err)
	}
	return &job, nil
}

// MarkProcessing transitions a job to processing.
func (r *ExportJobRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, models.ExportJobProcessing, "")
}

// MarkFailed records the failure reason.
func (r *ExportJobRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.setStatus(ctx, id, models.ExportJobFailed, reason)
}

// MarkCompleted stores the rendered file location and its signed download URL.
func (r *ExportJobRepository) MarkCompleted(ctx context.Context, id, filePath, downloadURL string, expiresAt time.Time) error {
	const query = `UPDATE export_jobs
SET status = $2, file_path = $3, download_url = $4, expires_at = $5, error = '', updated_at = $6
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		id, string(models.ExportJobCompleted), filePath, downloadURL, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete export job %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("complete export job %s: no rows", id)
	}
	return nil
}

// DeleteExpired removes job rows whose download links have lapsed.
func (r *ExportJobRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM export_jobs WHERE expires_at IS NOT NULL AND expires_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired export jobs: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (r *ExportJobRepository) setStatus(ctx context.Context, id string, status models.ExportJobStatus, reason string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE export_jobs SET status = $2, error = $3, updated_at = $4 WHERE id = $1",
		id, string(status), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update export job %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update export job %s: no rows", id)
	}
	return nil
}
