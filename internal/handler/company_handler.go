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

type companyService interface {
	List(ctx context.Context) ([]models.Company, error)
	Get(ctx context.Context, id string) (*models.Company, error)
	Create(ctx context.Context, req dto.SaveCompanyRequest) (*models.Company, error)
	Update(ctx context.Context, id string, req dto.SaveCompanyRequest) (*models.Company, error)
	Delete(ctx context.Context, id string) error
}

// CompanyHandler exposes production run configuration endpoints.
type CompanyHandler struct {
	service companyService
}

// NewCompanyHandler builds a new handler.
func NewCompanyHandler(svc companyService) *CompanyHandler {
	return &CompanyHandler{service: svc}
}

// List godoc
// @Summary List companies
// @Tags Companies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /companies [get]
func (h *CompanyHandler) List(c *gin.Context) {
	companies, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, companies, nil)
}

// Get godoc
// @Summary Get company by id
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} response.Envelope
// @Router /companies/{id} [get]
func (h *CompanyHandler) Get(c *gin.Context) {
	company, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, company, nil)
}

// Create godoc
// @Summary Create a company
// @Tags Companies
// @Accept json
// @Produce json
// @Param payload body dto.SaveCompanyRequest true "Company payload"
// @Success 201 {object} response.Envelope
// @Router /companies [post]
func (h *CompanyHandler) Create(c *gin.Context) {
	var req dto.SaveCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid company payload"))
		return
	}
	company, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, company)
}

// Update godoc
// @Summary Update a company
// @Tags Companies
// @Accept json
// @Produce json
// @Param id path string true "Company ID"
// @Param payload body dto.SaveCompanyRequest true "Company payload"
// @Success 200 {object} response.Envelope
// @Router /companies/{id} [put]
func (h *CompanyHandler) Update(c *gin.Context) {
	var req dto.SaveCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid company payload"))
		return
	}
	company, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, company, nil)
}

// Delete godoc
// @Summary Delete a company
// @Tags Companies
// @Param id path string true "Company ID"
// @Success 204
// @Router /companies/{id} [delete]
func (h *CompanyHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
