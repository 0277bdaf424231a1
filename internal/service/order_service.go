package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

type orderRepository interface {
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	FindByID(ctx context.Context, id string) (*models.Order, error)
	ListActiveByMachine(ctx context.Context, machineID string) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error
	UpdateEndDateTx(ctx context.Context, tx *sqlx.Tx, id string, endDate time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
}

type machineFinder interface {
	FindByID(ctx context.Context, id string) (*models.Machine, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// OrderService commits machine bookings, guarding every write with the
// interval conflict check.
type OrderService struct {
	orders   orderRepository
	machines machineFinder
	tx       txProvider
	cache    cacheInvalidator
	logger   *zap.Logger
}

// NewOrderService constructs an OrderService.
func NewOrderService(orders orderRepository, machines machineFinder, tx txProvider, cache cacheInvalidator, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{orders: orders, machines: machines, tx: tx, cache: cache, logger: logger}
}

// rangesOverlap tests two closed date ranges. Boundaries count: a range
// ending the same day another starts is a conflict, which is what flags
// same-day machine handoffs.
func rangesOverlap(s1, e1, s2, e2 time.Time) bool {
	return !s1.After(e2) && !e1.Before(s2)
}

// detectConflicts returns every blocking order on the candidate's machine
// whose date range intersects the candidate's. Completed and cancelled
// orders never block.
func detectConflicts(existing []models.Order, candidate models.Order) []models.Order {
	var conflicts []models.Order
	for _, order := range existing {
		if order.MachineID != candidate.MachineID || order.ID == candidate.ID {
			continue
		}
		if !order.Blocking() {
			continue
		}
		if rangesOverlap(candidate.StartDate, candidate.EndDate, order.StartDate, order.EndDate) {
			conflicts = append(conflicts, order)
		}
	}
	return conflicts
}

// List returns orders with pagination metadata.
func (s *OrderService) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, *models.Pagination, error) {
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list orders")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return orders, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches one order.
func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find order")
	}
	return order, nil
}

// Create commits a new booking after the conflict check. On conflict the
// returned error wraps a MachineConflictError carrying the candidate and
// the conflicting orders for the resolution workflow.
func (s *OrderService) Create(ctx context.Context, req dto.CreateOrderRequest) (*models.Order, error) {
	order, err := s.buildOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	existing, err := s.orders.ListActiveByMachine(ctx, order.MachineID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load machine orders")
	}
	if conflicts := detectConflicts(existing, *order); len(conflicts) > 0 {
		return nil, s.conflictError(*order, conflicts)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create order")
	}
	s.invalidateDashboard(ctx)
	s.logger.Info("order created",
		zap.String("orderId", order.ID),
		zap.String("machineId", order.MachineID),
		zap.Time("startDate", order.StartDate),
		zap.Time("endDate", order.EndDate))
	return order, nil
}

// ResolveAndCreate shortens the named conflicting orders and commits the
// candidate in a single transaction. Every prospective range is validated in
// memory first so no write happens unless the whole resolution is clean.
func (s *OrderService) ResolveAndCreate(ctx context.Context, req dto.ResolveConflictRequest) (*models.Order, error) {
	order, err := s.buildOrder(ctx, req.Order)
	if err != nil {
		return nil, err
	}

	existing, err := s.orders.ListActiveByMachine(ctx, order.MachineID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load machine orders")
	}

	adjusted, err := applyResolutions(existing, req.Resolutions)
	if err != nil {
		return nil, err
	}
	if conflicts := detectConflicts(adjusted, *order); len(conflicts) > 0 {
		return nil, s.conflictError(*order, conflicts)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, res := range req.Resolutions {
		if err := s.orders.UpdateEndDateTx(ctx, tx, res.OrderID, res.NewEndDate); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "apply resolution")
		}
	}
	if err := s.orders.CreateTx(ctx, tx, order); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create order")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "commit resolution")
	}

	s.invalidateDashboard(ctx)
	s.logger.Info("conflict resolved",
		zap.String("orderId", order.ID),
		zap.String("machineId", order.MachineID),
		zap.Int("resolutions", len(req.Resolutions)))
	return order, nil
}

// UpdateStatus moves an order through its lifecycle.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
	}
	s.invalidateDashboard(ctx)
	return s.Get(ctx, id)
}

func (s *OrderService) buildOrder(ctx context.Context, req dto.CreateOrderRequest) (*models.Order, error) {
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate precedes startDate")
	}
	machine, err := s.machines.FindByID(ctx, req.MachineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "machine not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find machine")
	}
	return &models.Order{
		CompanyID:   req.CompanyID,
		ProductName: req.ProductName,
		PartNumber:  req.PartNumber,
		ProcessName: req.ProcessName,
		MachineID:   machine.ID,
		MachineName: machine.Name,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Units:       req.Units,
		Status:      models.OrderStatusPending,
	}, nil
}

func (s *OrderService) conflictError(candidate models.Order, conflicts []models.Order) error {
	detail := &models.MachineConflictError{
		MachineID: candidate.MachineID,
		Candidate: candidate,
		Conflicts: conflicts,
	}
	return appErrors.Wrap(detail, appErrors.ErrMachineConflict.Code, appErrors.ErrMachineConflict.Status,
		fmt.Sprintf("machine %s already has %d order(s) in the requested range", candidate.MachineName, len(conflicts)))
}

// applyResolutions returns a copy of the order set with the requested end
// dates applied. Unknown order ids and end dates before an order's start
// reject the whole resolution.
func applyResolutions(existing []models.Order, resolutions []dto.ResolutionInput) ([]models.Order, error) {
	byID := make(map[string]int, len(existing))
	for i, order := range existing {
		byID[order.ID] = i
	}
	adjusted := append([]models.Order(nil), existing...)
	for _, res := range resolutions {
		idx, ok := byID[res.OrderID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("order %s not found on this machine", res.OrderID))
		}
		if res.NewEndDate.Before(adjusted[idx].StartDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("new end date for order %s precedes its start date", res.OrderID))
		}
		adjusted[idx].EndDate = res.NewEndDate
	}
	return adjusted, nil
}

func (s *OrderService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
