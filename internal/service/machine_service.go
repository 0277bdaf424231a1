package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

type machineRepository interface {
	List(ctx context.Context, filter models.MachineFilter) ([]models.Machine, int, error)
	FindByID(ctx context.Context, id string) (*models.Machine, error)
	Create(ctx context.Context, machine *models.Machine) error
	Update(ctx context.Context, machine *models.Machine) error
	Delete(ctx context.Context, id string) error
}

// MachineService manages the machine master list.
type MachineService struct {
	repo      machineRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMachineService constructs a MachineService.
func NewMachineService(repo machineRepository, validate *validator.Validate, logger *zap.Logger) *MachineService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MachineService{repo: repo, validator: validate, logger: logger}
}

// List returns machines with pagination metadata.
func (s *MachineService) List(ctx context.Context, filter models.MachineFilter) ([]models.Machine, *models.Pagination, error) {
	machines, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list machines")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return machines, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches one machine.
func (s *MachineService) Get(ctx context.Context, id string) (*models.Machine, error) {
	machine, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "machine not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find machine")
	}
	return machine, nil
}

// Create registers a new machine.
func (s *MachineService) Create(ctx context.Context, req dto.SaveMachineRequest) (*models.Machine, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid machine payload")
	}
	machine := &models.Machine{
		Name:        req.Name,
		Status:      req.Status,
		Units:       req.Units,
		TimePerUnit: req.TimePerUnit,
	}
	if machine.Status == "" {
		machine.Status = models.MachineStatusActive
	}
	if err := s.repo.Create(ctx, machine); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create machine")
	}
	s.logger.Info("machine created", zap.String("machineId", machine.ID), zap.String("name", machine.Name))
	return machine, nil
}

// Update modifies an existing machine.
func (s *MachineService) Update(ctx context.Context, id string, req dto.SaveMachineRequest) (*models.Machine, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid machine payload")
	}
	machine, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	machine.Name = req.Name
	machine.Units = req.Units
	machine.TimePerUnit = req.TimePerUnit
	if req.Status != "" {
		machine.Status = req.Status
	}
	if err := s.repo.Update(ctx, machine); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update machine")
	}
	return machine, nil
}

// Delete removes a machine.
func (s *MachineService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "machine not found")
	}
	return nil
}
