package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/response"
)

type exportServiceMock struct {
	job        *models.ExportJob
	enqueueErr error
	getErr     error
}

func (m *exportServiceMock) Enqueue(context.Context, dto.SimulateScheduleRequest, string) (*models.ExportJob, error) {
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	return m.job, nil
}

func (m *exportServiceMock) Get(context.Context, string) (*models.ExportJob, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.job, nil
}

func (m *exportServiceMock) Download(context.Context, string) (*os.File, *models.ExportJob, error) {
	return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
}

func TestExportHandlerCreateJob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &exportServiceMock{job: &models.ExportJob{ID: "job-1", Status: models.ExportJobQueued, Format: models.ExportFormatCSV}}
	handler := NewExportHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/schedule/export-jobs?format=csv", bytes.NewReader(simulateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CreateJob(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	var envelope struct {
		Data models.ExportJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data.ID)
	assert.Equal(t, models.ExportJobQueued, envelope.Data.Status)
}

func TestExportHandlerCreateJobRejectsBadFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &exportServiceMock{enqueueErr: appErrors.Clone(appErrors.ErrValidation, `unsupported export format "xlsx"`)}
	handler := NewExportHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/schedule/export-jobs?format=xlsx", bytes.NewReader(simulateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CreateJob(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestExportHandlerGetJobNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &exportServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "export job not found")}
	handler := NewExportHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	req, _ := http.NewRequest(http.MethodGet, "/schedule/export-jobs/missing", nil)
	c.Request = req

	handler.GetJob(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerDownloadInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "token", Value: "forged"}}
	req, _ := http.NewRequest(http.MethodGet, "/export/forged", nil)
	c.Request = req

	handler.Download(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
