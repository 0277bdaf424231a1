package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/response"
)

type orderService interface {
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, req dto.CreateOrderRequest) (*models.Order, error)
	ResolveAndCreate(ctx context.Context, req dto.ResolveConflictRequest) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
}

// OrderHandler exposes order booking endpoints.
type OrderHandler struct {
	service orderService
}

// NewOrderHandler builds a new handler.
func NewOrderHandler(svc orderService) *OrderHandler {
	return &OrderHandler{service: svc}
}

// List godoc
// @Summary List orders
// @Tags Orders
// @Produce json
// @Param companyId query string false "Filter by company"
// @Param machineId query string false "Filter by machine"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	filter := models.OrderFilter{
		CompanyID: c.Query("companyId"),
		MachineID: c.Query("machineId"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.OrderStatus(raw)
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	orders, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, pagination)
}

// Get godoc
// @Summary Get order by id
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// Create godoc
// @Summary Create an order
// @Tags Orders
// @Accept json
// @Produce json
// @Param payload body dto.CreateOrderRequest true "Order payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Conflicting orders on the machine"
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid order payload"))
		return
	}
	order, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, order)
}

// ResolveConflicts godoc
// @Summary Resolve conflicts and create the order atomically
// @Tags Orders
// @Accept json
// @Produce json
// @Param payload body dto.ResolveConflictRequest true "Resolutions plus the candidate order"
// @Success 201 {object} response.Envelope
// @Router /orders/resolve-conflicts [post]
func (h *OrderHandler) ResolveConflicts(c *gin.Context) {
	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}
	order, err := h.service.ResolveAndCreate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, order)
}

// UpdateStatus godoc
// @Summary Update an order's lifecycle status
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body dto.UpdateOrderStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	order, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// respondError attaches the conflict payload when present so the client can
// drive the resolution workflow.
func (h *OrderHandler) respondError(c *gin.Context, err error) {
	var detail *models.MachineConflictError
	if errors.As(err, &detail) {
		response.ErrorWithData(c, err, dto.ConflictPayload{
			MachineID: detail.MachineID,
			Candidate: detail.Candidate,
			Conflicts: detail.Conflicts,
		})
		return
	}
	response.Error(c, err)
}
