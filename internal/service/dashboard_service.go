package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yisusc1/fleetops-api/internal/dto"
	"github.com/yisusc1/fleetops-api/internal/models"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type dashboardVehicleRepo interface {
	CountByStatus(ctx context.Context) (map[models.VehicleStatus]int, error)
	ListLowFuel(ctx context.Context, cutoff int, limit int) ([]models.Vehicle, error)
}

type dashboardFaultRepo interface {
	CountOpenByPriority(ctx context.Context) (map[models.FaultPriority]int, error)
}

type fuelSpendReader interface {
	SpendSince(ctx context.Context, since time.Time) (float64, error)
}

type dueAlertLister interface {
	ListDueAlerts(ctx context.Context, vehicleID string) ([]models.DueAlert, error)
}

// DashboardService aggregates the operations landing view. The summary is
// cached briefly; due alerts are recomputed on every cache refresh so a
// completed service or promoted alert surfaces within the TTL.
type DashboardService struct {
	vehicles    dashboardVehicleRepo
	faults      dashboardFaultRepo
	fuel        fuelSpendReader
	maintenance dueAlertLister
	cache       *CacheService
	metrics     *MetricsService
	cacheTTL    time.Duration
	lowFuelCut  int
	logger      *zap.Logger
	now         func() time.Time
}

// NewDashboardService wires the dashboard aggregate.
func NewDashboardService(vehicles dashboardVehicleRepo, faults dashboardFaultRepo, fuel fuelSpendReader, maintenance dueAlertLister, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, lowFuelCutoff int, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if lowFuelCutoff <= 0 {
		lowFuelCutoff = 25
	}
	return &DashboardService{
		vehicles:    vehicles,
		faults:      faults,
		fuel:        fuel,
		maintenance: maintenance,
		cache:       cache,
		metrics:     metrics,
		cacheTTL:    cacheTTL,
		lowFuelCut:  lowFuelCutoff,
		logger:      logger,
		now:         time.Now,
	}
}

// Summary returns the dashboard aggregate and whether it was served from
// cache.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardSummary, bool, error) {
	var cached dto.DashboardSummary
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, false, nil
}

// Invalidate drops the cached summary. Called after writes that should be
// visible immediately.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*dto.DashboardSummary, error) {
	statusCounts, err := s.vehicles.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count vehicles")
	}
	faultCounts, err := s.faults.CountOpenByPriority(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count faults")
	}
	lowFuel, err := s.vehicles.ListLowFuel(ctx, s.lowFuelCut, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list low fuel vehicles")
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	spend, err := s.fuel.SpendSince(ctx, monthStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum fuel spend")
	}

	alerts, err := s.maintenance.ListDueAlerts(ctx, "")
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SetDueAlerts(len(alerts))
	}

	fleet := dto.FleetStatusCounts{
		Available:  statusCounts[models.VehicleStatusAvailable],
		OnTrip:     statusCounts[models.VehicleStatusOnTrip],
		InWorkshop: statusCounts[models.VehicleStatusInWorkshop],
		Inactive:   statusCounts[models.VehicleStatusInactive],
	}
	fleet.Total = fleet.Available + fleet.OnTrip + fleet.InWorkshop + fleet.Inactive

	faults := dto.OpenFaultCounts{
		Low:      faultCounts[models.FaultPriorityLow],
		Medium:   faultCounts[models.FaultPriorityMedium],
		High:     faultCounts[models.FaultPriorityHigh],
		Critical: faultCounts[models.FaultPriorityCritical],
	}
	faults.Total = faults.Low + faults.Medium + faults.High + faults.Critical

	return &dto.DashboardSummary{
		Fleet:            fleet,
		OpenFaults:       faults,
		DueAlerts:        alerts,
		DueAlertCount:    len(alerts),
		LowFuelVehicles:  lowFuel,
		MonthlyFuelSpend: spend,
		GeneratedAt:      now,
	}, nil
}
