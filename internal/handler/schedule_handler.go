package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	"github.com/planfab/planfab-api/internal/service"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/response"
)

type scheduleService interface {
	Simulate(ctx context.Context, req dto.SimulateScheduleRequest) (*dto.ScheduleReport, error)
	SimulateForCompany(ctx context.Context, companyID string) (*dto.ScheduleReport, error)
	DailyBreakdown(ctx context.Context, orderID string) ([]models.DayPlan, error)
	Export(ctx context.Context, req dto.SimulateScheduleRequest, format string) ([]byte, string, error)
}

// ScheduleHandler exposes the flow-shop simulation endpoints.
type ScheduleHandler struct {
	service scheduleService
	metrics *service.MetricsService
}

// NewScheduleHandler builds a new handler.
func NewScheduleHandler(svc scheduleService, metrics *service.MetricsService) *ScheduleHandler {
	return &ScheduleHandler{service: svc, metrics: metrics}
}

// Simulate godoc
// @Summary Simulate a production schedule
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.SimulateScheduleRequest true "Simulation parameters"
// @Success 200 {object} response.Envelope
// @Router /schedule/simulate [post]
func (h *ScheduleHandler) Simulate(c *gin.Context) {
	var req dto.SimulateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid simulation payload"))
		return
	}
	report, err := h.service.Simulate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSimulation(report.Success)
	response.JSON(c, http.StatusOK, report, nil)
}

// SimulateForCompany godoc
// @Summary Simulate using a stored company's run parameters
// @Tags Schedule
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} response.Envelope
// @Router /companies/{id}/schedule [post]
func (h *ScheduleHandler) SimulateForCompany(c *gin.Context) {
	report, err := h.service.SimulateForCompany(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSimulation(report.Success)
	response.JSON(c, http.StatusOK, report, nil)
}

// DailyPlan godoc
// @Summary Per-day unit breakdown for an order
// @Tags Schedule
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/daily-plan [get]
func (h *ScheduleHandler) DailyPlan(c *gin.Context) {
	plans, err := h.service.DailyBreakdown(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, nil)
}

// Export godoc
// @Summary Export a simulated schedule as CSV or PDF
// @Tags Schedule
// @Accept json
// @Produce octet-stream
// @Param format query string true "Export format" Enums(csv, pdf)
// @Param payload body dto.SimulateScheduleRequest true "Simulation parameters"
// @Success 200 {file} binary
// @Router /schedule/export [post]
func (h *ScheduleHandler) Export(c *gin.Context) {
	var req dto.SimulateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid simulation payload"))
		return
	}
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.service.Export(c.Request.Context(), req, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("schedule-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
