package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/response"
)

type holidayService interface {
	List(ctx context.Context) ([]models.Holiday, error)
	Save(ctx context.Context, req dto.SaveHolidayRequest) (*models.Holiday, error)
	Delete(ctx context.Context, id string) error
}

// HolidayHandler exposes the non-working-day calendar endpoints.
type HolidayHandler struct {
	service holidayService
}

// NewHolidayHandler builds a new handler.
func NewHolidayHandler(svc holidayService) *HolidayHandler {
	return &HolidayHandler{service: svc}
}

// List godoc
// @Summary List holidays
// @Tags Holidays
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /holidays [get]
func (h *HolidayHandler) List(c *gin.Context) {
	holidays, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holidays, nil)
}

// Save godoc
// @Summary Create or update a holiday by date
// @Tags Holidays
// @Accept json
// @Produce json
// @Param payload body dto.SaveHolidayRequest true "Holiday payload"
// @Success 201 {object} response.Envelope
// @Router /holidays [post]
func (h *HolidayHandler) Save(c *gin.Context) {
	var req dto.SaveHolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid holiday payload"))
		return
	}
	holiday, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

// Delete godoc
// @Summary Delete a holiday
// @Tags Holidays
// @Param id path string true "Holiday ID"
// @Success 204
// @Router /holidays/{id} [delete]
func (h *HolidayHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
