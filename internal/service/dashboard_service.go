package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	"github.com/planfab/planfab-api/pkg/config"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

type orderStatsRepository interface {
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error)
	SumActiveUnits(ctx context.Context) (int, error)
}

type machineStatsRepository interface {
	CountByStatus(ctx context.Context) (map[models.MachineStatus]int, error)
}

type companyCounter interface {
	Count(ctx context.Context) (int, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const dashboardOverviewKey = "dashboard:overview"

// DashboardService aggregates shop floor counts for the landing screen,
// served from Redis when warm.
type DashboardService struct {
	orders    orderStatsRepository
	machines  machineStatsRepository
	companies companyCounter
	cache     dashboardCache
	metrics   *MetricsService
	cfg       config.DashboardConfig
	logger    *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(orders orderStatsRepository, machines machineStatsRepository, companies companyCounter, cache dashboardCache, metrics *MetricsService, cfg config.DashboardConfig, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	return &DashboardService{
		orders:    orders,
		machines:  machines,
		companies: companies,
		cache:     cache,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Overview returns aggregated counts, preferring the cache.
func (s *DashboardService) Overview(ctx context.Context) (*dto.DashboardOverview, error) {
	if s.cache != nil {
		started := time.Now()
		var cached dto.DashboardOverview
		err := s.cache.Get(ctx, dashboardOverviewKey, &cached)
		if err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(started))
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false, time.Since(started))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	overview, err := s.buildOverview(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		started := time.Now()
		if err := s.cache.Set(ctx, dashboardOverviewKey, overview, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(started))
	}
	return overview, nil
}

func (s *DashboardService) buildOverview(ctx context.Context) (*dto.DashboardOverview, error) {
	started := time.Now()
	orderCounts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count orders")
	}
	machineCounts, err := s.machines.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count machines")
	}
	unitsInFlight, err := s.orders.SumActiveUnits(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sum active units")
	}
	companies, err := s.companies.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count companies")
	}
	s.metrics.ObserveDBQuery("dashboard_overview", time.Since(started))

	return &dto.DashboardOverview{
		Orders: dto.OrderStatusCounts{
			Pending:    orderCounts[models.OrderStatusPending],
			InProgress: orderCounts[models.OrderStatusInProgress],
			Completed:  orderCounts[models.OrderStatusCompleted],
			Cancelled:  orderCounts[models.OrderStatusCancelled],
		},
		Machines: dto.MachineStatusCounts{
			Active:      machineCounts[models.MachineStatusActive],
			Maintenance: machineCounts[models.MachineStatusMaintenance],
			Inactive:    machineCounts[models.MachineStatusInactive],
		},
		UnitsInFlight: unitsInFlight,
		Companies:     companies,
	}, nil
}
