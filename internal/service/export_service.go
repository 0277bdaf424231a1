package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	"github.com/planfab/planfab-api/pkg/config"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/jobs"
	"github.com/planfab/planfab-api/pkg/storage"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	MarkCompleted(ctx context.Context, id, filePath, downloadURL string, expiresAt time.Time) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type scheduleRenderer interface {
	Export(ctx context.Context, req dto.SimulateScheduleRequest, format string) ([]byte, string, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportService renders schedule exports in the background. Jobs are
// persisted, picked up by a worker pool and served back through signed
// download links that work without an Authorization header.
type ExportService struct {
	repo      exportJobRepository
	schedules scheduleRenderer
	storage   exportFileStorage
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	apiPrefix string
	cfg       config.ExportConfig
	logger    *zap.Logger

	cancel  context.CancelFunc
	cleaned chan struct{}
}

// NewExportService constructs an ExportService with its own worker queue.
func NewExportService(repo exportJobRepository, schedules scheduleRenderer, store exportFileStorage, signer *storage.SignedURLSigner, apiPrefix string, cfg config.ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		repo:      repo,
		schedules: schedules,
		storage:   store,
		signer:    signer,
		apiPrefix: apiPrefix,
		cfg:       cfg,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("schedule-exports", s.process, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the workers and the periodic cleanup loop. The loop runs
// on a derived context so Stop can end it regardless of the parent.
func (s *ExportService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.cleaned = make(chan struct{})
	s.queue.Start(ctx)
	go func() {
		defer close(s.cleaned)
		s.cleanupLoop(ctx)
	}()
}

// Stop ends the cleanup loop and waits for in-flight jobs to finish.
func (s *ExportService) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.cleaned
	}
	s.queue.Stop()
}

// Enqueue persists a new export job and hands it to the workers.
func (s *ExportService) Enqueue(ctx context.Context, req dto.SimulateScheduleRequest, format string) (*models.ExportJob, error) {
	if format != string(models.ExportFormatCSV) && format != string(models.ExportFormatPDF) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode export request")
	}

	job := &models.ExportJob{
		Format:  models.ExportFormat(format),
		Request: payload,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create export job")
	}
	if err := s.queue.Enqueue(jobs.Task{ID: job.ID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enqueue export job")
	}
	return job, nil
}

// Get returns the current job state.
func (s *ExportService) Get(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find export job")
	}
	return job, nil
}

// Download validates the signed token and opens the rendered file.
func (s *ExportService) Download(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.ExportJobCompleted {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export not ready")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file missing")
	}
	return file, job, nil
}

func (s *ExportService) process(ctx context.Context, task jobs.Task) error {
	job, err := s.repo.FindByID(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("load export job: %w", err)
	}
	if job.Status == models.ExportJobCompleted {
		return nil
	}
	if err := s.repo.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}

	var req dto.SimulateScheduleRequest
	if err := json.Unmarshal(job.Request, &req); err != nil {
		return s.fail(ctx, job.ID, fmt.Errorf("decode export request: %w", err))
	}

	payload, _, err := s.schedules.Export(ctx, req, string(job.Format))
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Status < 500 {
			// validation failures are terminal, skip retries
			return s.fail(ctx, job.ID, err)
		}
		if markErr := s.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.Warn("mark export failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return err
	}

	filename := fmt.Sprintf("schedules/%s.%s", job.ID, job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.Warn("mark export failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return s.fail(ctx, job.ID, err)
	}
	url := fmt.Sprintf("%s/export/%s", strings.TrimRight(s.apiPrefix, "/"), token)

	if err := s.repo.MarkCompleted(ctx, job.ID, relPath, url, expiresAt); err != nil {
		return err
	}
	s.logger.Info("export rendered",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Format)),
		zap.String("path", relPath))
	return nil
}

func (s *ExportService) fail(ctx context.Context, id string, cause error) error {
	if err := s.repo.MarkFailed(ctx, id, cause.Error()); err != nil {
		s.logger.Warn("mark export failed", zap.String("job_id", id), zap.Error(err))
	}
	return nil
}

func (s *ExportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
			if err != nil {
				s.logger.Warn("export file cleanup", zap.Error(err))
			} else if len(deleted) > 0 {
				s.logger.Info("export files removed", zap.Int("count", len(deleted)))
			}
			if rows, err := s.repo.DeleteExpired(ctx, time.Now().UTC()); err != nil {
				s.logger.Warn("export job cleanup", zap.Error(err))
			} else if rows > 0 {
				s.logger.Info("export jobs removed", zap.Int64("count", rows))
			}
		}
	}
}
