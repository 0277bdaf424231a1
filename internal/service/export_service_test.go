package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	"github.com/planfab/planfab-api/pkg/config"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/jobs"
	"github.com/planfab/planfab-api/pkg/storage"
)

type fakeExportRepo struct {
	jobs map[string]*models.ExportJob
}

func newFakeExportRepo() *fakeExportRepo {
	return &fakeExportRepo{jobs: make(map[string]*models.ExportJob)}
}

func (f *fakeExportRepo) Create(_ context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	if job.Status == "" {
		job.Status = models.ExportJobQueued
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeExportRepo) FindByID(_ context.Context, id string) (*models.ExportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (f *fakeExportRepo) MarkProcessing(_ context.Context, id string) error {
	f.jobs[id].Status = models.ExportJobProcessing
	return nil
}

func (f *fakeExportRepo) MarkFailed(_ context.Context, id string, reason string) error {
	f.jobs[id].Status = models.ExportJobFailed
	f.jobs[id].Error = reason
	return nil
}

func (f *fakeExportRepo) MarkCompleted(_ context.Context, id, filePath, downloadURL string, expiresAt time.Time) error {
	job := f.jobs[id]
	job.Status = models.ExportJobCompleted
	job.FilePath = filePath
	job.DownloadURL = downloadURL
	job.ExpiresAt = &expiresAt
	return nil
}

func (f *fakeExportRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeRenderer struct {
	payload []byte
	err     error
}

func (f *fakeRenderer) Export(_ context.Context, _ dto.SimulateScheduleRequest, format string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	contentType := "text/csv"
	if format == "pdf" {
		contentType = "application/pdf"
	}
	return f.payload, contentType, nil
}

func newTestExportService(t *testing.T, repo *fakeExportRepo, renderer *fakeRenderer) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(repo, renderer, store, signer, "/api/v1", config.ExportConfig{Workers: 1}, nil)
}

func TestExportEnqueueRejectsUnknownFormat(t *testing.T) {
	svc := newTestExportService(t, newFakeExportRepo(), &fakeRenderer{})

	_, err := svc.Enqueue(context.Background(), dto.SimulateScheduleRequest{}, "xlsx")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportProcessRendersAndSigns(t *testing.T) {
	repo := newFakeExportRepo()
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{
		ID:      "job-1",
		Format:  models.ExportFormatCSV,
		Request: []byte(`{"quantity":1}`),
	}))
	svc := newTestExportService(t, repo, &fakeRenderer{payload: []byte("Machine,Unit\nLathe,1\n")})

	require.NoError(t, svc.process(context.Background(), jobs.Task{ID: "job-1"}))

	job := repo.jobs["job-1"]
	require.Equal(t, models.ExportJobCompleted, job.Status)
	require.Equal(t, "schedules/job-1.csv", job.FilePath)
	require.True(t, strings.HasPrefix(job.DownloadURL, "/api/v1/export/"))
	require.NotNil(t, job.ExpiresAt)
}

func TestExportProcessMarksValidationFailures(t *testing.T) {
	repo := newFakeExportRepo()
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{
		ID:      "job-1",
		Format:  models.ExportFormatCSV,
		Request: []byte(`{"quantity":0}`),
	}))
	renderer := &fakeRenderer{err: appErrors.Clone(appErrors.ErrInvalidSchedule, "quantity must be positive")}
	svc := newTestExportService(t, repo, renderer)

	require.NoError(t, svc.process(context.Background(), jobs.Task{ID: "job-1"}))

	job := repo.jobs["job-1"]
	require.Equal(t, models.ExportJobFailed, job.Status)
	require.Contains(t, job.Error, "quantity must be positive")
}

func TestExportDownloadRoundTrip(t *testing.T) {
	repo := newFakeExportRepo()
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{
		ID:      "job-1",
		Format:  models.ExportFormatCSV,
		Request: []byte(`{"quantity":1}`),
	}))
	svc := newTestExportService(t, repo, &fakeRenderer{payload: []byte("Machine,Unit\nLathe,1\n")})
	require.NoError(t, svc.process(context.Background(), jobs.Task{ID: "job-1"}))

	token := strings.TrimPrefix(repo.jobs["job-1"].DownloadURL, "/api/v1/export/")
	file, job, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()

	require.Equal(t, "job-1", job.ID)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "Machine,Unit\nLathe,1\n", string(data))
}

func TestExportStopEndsCleanupLoop(t *testing.T) {
	svc := newTestExportService(t, newFakeExportRepo(), &fakeRenderer{})
	svc.Start(context.Background())

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not terminate the cleanup loop")
	}
}

func TestExportDownloadRejectsForgedToken(t *testing.T) {
	svc := newTestExportService(t, newFakeExportRepo(), &fakeRenderer{})

	_, _, err := svc.Download(context.Background(), "job-1.123.abc.def")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
