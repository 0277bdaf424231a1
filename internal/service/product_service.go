package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

type productRepository interface {
	List(ctx context.Context) ([]models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	ExistsByPartNumber(ctx context.Context, partNumber, excludeID string) (bool, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

// ProductService manages the product master list.
type ProductService struct {
	repo      productRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProductService constructs a ProductService.
func NewProductService(repo productRepository, validate *validator.Validate, logger *zap.Logger) *ProductService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{repo: repo, validator: validate, logger: logger}
}

// List returns all products.
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list products")
	}
	return products, nil
}

// Get fetches one product.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find product")
	}
	return product, nil
}

// Create registers a product. A missing part number is generated.
func (s *ProductService) Create(ctx context.Context, req dto.SaveProductRequest) (*models.Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}
	partNumber := strings.TrimSpace(req.PartNumber)
	if partNumber == "" {
		partNumber = generatePartNumber()
	}
	exists, err := s.repo.ExistsByPartNumber(ctx, partNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check part number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("part number %s already exists", partNumber))
	}
	product := &models.Product{Name: req.Name, PartNumber: partNumber, Description: req.Description}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create product")
	}
	s.logger.Info("product created", zap.String("productId", product.ID), zap.String("partNumber", partNumber))
	return product, nil
}

// Update modifies a product.
func (s *ProductService) Update(ctx context.Context, id string, req dto.SaveProductRequest) (*models.Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	partNumber := strings.TrimSpace(req.PartNumber)
	if partNumber == "" {
		partNumber = product.PartNumber
	}
	exists, err := s.repo.ExistsByPartNumber(ctx, partNumber, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check part number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("part number %s already exists", partNumber))
	}
	product.Name = req.Name
	product.PartNumber = partNumber
	product.Description = req.Description
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update product")
	}
	return product, nil
}

// Delete removes a product.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "product not found")
	}
	return nil
}

func generatePartNumber() string {
	return fmt.Sprintf("PN-%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
}
