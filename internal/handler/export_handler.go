package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/response"
)

type exportService interface {
	Enqueue(ctx context.Context, req dto.SimulateScheduleRequest, format string) (*models.ExportJob, error)
	Get(ctx context.Context, id string) (*models.ExportJob, error)
	Download(ctx context.Context, token string) (*os.File, *models.ExportJob, error)
}

// ExportHandler exposes the asynchronous export job endpoints.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// CreateJob godoc
// @Summary Queue a schedule export for background rendering
// @Tags Schedule
// @Accept json
// @Produce json
// @Param format query string true "Export format" Enums(csv, pdf)
// @Param payload body dto.SimulateScheduleRequest true "Simulation parameters"
// @Success 202 {object} response.Envelope
// @Router /schedule/export-jobs [post]
func (h *ExportHandler) CreateJob(c *gin.Context) {
	var req dto.SimulateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid simulation payload"))
		return
	}
	job, err := h.service.Enqueue(c.Request.Context(), req, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// GetJob godoc
// @Summary Poll an export job
// @Tags Schedule
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /schedule/export-jobs/{id} [get]
func (h *ExportHandler) GetJob(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a rendered export via signed token
// @Tags Schedule
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, job, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "text/csv"
	if job.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	filename := fmt.Sprintf("schedule-%s.%s", job.ID, job.Format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stat export file"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
