package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

type shiftRepository interface {
	List(ctx context.Context) ([]models.Shift, error)
	Save(ctx context.Context, shift *models.Shift) error
	Delete(ctx context.Context, id string) error
}

// ShiftService manages named working windows.
type ShiftService struct {
	repo      shiftRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewShiftService constructs a ShiftService.
func NewShiftService(repo shiftRepository, validate *validator.Validate, logger *zap.Logger) *ShiftService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShiftService{repo: repo, validator: validate, logger: logger}
}

// List returns all shifts.
func (s *ShiftService) List(ctx context.Context) ([]models.Shift, error) {
	shifts, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list shifts")
	}
	return shifts, nil
}

// Save creates a shift, or updates it when id is set.
func (s *ShiftService) Save(ctx context.Context, id string, req dto.SaveShiftRequest) (*models.Shift, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shift payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endTime must be after startTime")
	}
	shift := &models.Shift{ID: id, Name: req.Name, StartTime: req.StartTime, EndTime: req.EndTime}
	if err := s.repo.Save(ctx, shift); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "save shift")
	}
	return shift, nil
}

// Delete removes a shift.
func (s *ShiftService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "shift not found")
	}
	return nil
}
