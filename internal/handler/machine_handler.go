package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/response"
)

type machineService interface {
	List(ctx context.Context, filter models.MachineFilter) ([]models.Machine, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Machine, error)
	Create(ctx context.Context, req dto.SaveMachineRequest) (*models.Machine, error)
	Update(ctx context.Context, id string, req dto.SaveMachineRequest) (*models.Machine, error)
	Delete(ctx context.Context, id string) error
}

// MachineHandler exposes machine master endpoints.
type MachineHandler struct {
	service machineService
}

// NewMachineHandler builds a new handler.
func NewMachineHandler(svc machineService) *MachineHandler {
	return &MachineHandler{service: svc}
}

// List godoc
// @Summary List machines
// @Tags Machines
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /machines [get]
func (h *MachineHandler) List(c *gin.Context) {
	filter := models.MachineFilter{Search: c.Query("search")}
	if raw := c.Query("status"); raw != "" {
		status := models.MachineStatus(raw)
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	machines, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, machines, pagination)
}

// Get godoc
// @Summary Get machine by id
// @Tags Machines
// @Produce json
// @Param id path string true "Machine ID"
// @Success 200 {object} response.Envelope
// @Router /machines/{id} [get]
func (h *MachineHandler) Get(c *gin.Context) {
	machine, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, machine, nil)
}

// Create godoc
// @Summary Create a machine
// @Tags Machines
// @Accept json
// @Produce json
// @Param payload body dto.SaveMachineRequest true "Machine payload"
// @Success 201 {object} response.Envelope
// @Router /machines [post]
func (h *MachineHandler) Create(c *gin.Context) {
	var req dto.SaveMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid machine payload"))
		return
	}
	machine, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, machine)
}

// Update godoc
// @Summary Update a machine
// @Tags Machines
// @Accept json
// @Produce json
// @Param id path string true "Machine ID"
// @Param payload body dto.SaveMachineRequest true "Machine payload"
// @Success 200 {object} response.Envelope
// @Router /machines/{id} [put]
func (h *MachineHandler) Update(c *gin.Context) {
	var req dto.SaveMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid machine payload"))
		return
	}
	machine, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, machine, nil)
}

// Delete godoc
// @Summary Delete a machine
// @Tags Machines
// @Param id path string true "Machine ID"
// @Success 204
// @Router /machines/{id} [delete]
func (h *MachineHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
