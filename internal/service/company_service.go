package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

type companyRepository interface {
	List(ctx context.Context) ([]models.Company, error)
	FindByID(ctx context.Context, id string) (*models.Company, error)
	Create(ctx context.Context, company *models.Company) error
	Update(ctx context.Context, company *models.Company) error
	Delete(ctx context.Context, id string) error
}

// CompanyService manages production run configurations: the customer order
// book entries that carry schedule parameters and machine pipelines.
type CompanyService struct {
	repo      companyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(repo companyRepository, validate *validator.Validate, logger *zap.Logger) *CompanyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{repo: repo, validator: validate, logger: logger}
}

// List returns all companies, newest first.
func (s *CompanyService) List(ctx context.Context) ([]models.Company, error) {
	companies, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list companies")
	}
	return companies, nil
}

// Get fetches one company.
func (s *CompanyService) Get(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find company")
	}
	return company, nil
}

// Create registers a new production run configuration.
func (s *CompanyService) Create(ctx context.Context, req dto.SaveCompanyRequest) (*models.Company, error) {
	company, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, company); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create company")
	}
	s.logger.Info("company created", zap.String("companyId", company.ID), zap.String("name", company.Name))
	return company, nil
}

// Update modifies an existing production run configuration.
func (s *CompanyService) Update(ctx context.Context, id string, req dto.SaveCompanyRequest) (*models.Company, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	company, err := s.build(req)
	if err != nil {
		return nil, err
	}
	company.ID = existing.ID
	company.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, company); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update company")
	}
	return company, nil
}

// Delete removes a company.
func (s *CompanyService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "company not found")
	}
	return nil
}

func (s *CompanyService) build(req dto.SaveCompanyRequest) (*models.Company, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid company payload")
	}
	pipeline := make([]models.CompanyMachine, 0, len(req.Machines))
	for _, m := range req.Machines {
		pipeline = append(pipeline, models.CompanyMachine{Name: m.Name, TimePerUnit: m.TimePerUnit})
	}
	machines, err := json.Marshal(pipeline)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode machine pipeline")
	}
	return &models.Company{
		Name:          req.Name,
		Address:       req.Address,
		GST:           req.GST,
		Quantity:      req.Quantity,
		StartDateTime: req.StartDateTime,
		EndDateTime:   req.EndDateTime,
		DailyHours:    req.DailyHours,
		Machines:      machines,
	}, nil
}
