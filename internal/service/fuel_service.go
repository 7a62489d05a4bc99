package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/yisusc1/fleetops-api/internal/models"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
)

type fuelLogRepo interface {
	List(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelLog, int, error)
	Summary(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelSummary, error)
}

type fuelSubmitter interface {
	SubmitFuelReading(ctx context.Context, req SubmitFuelReadingRequest) (*SubmitResult, error)
}

// FuelService covers the fuel ledger: registering fill-ups through the
// odometer gate plus listing and aggregation.
type FuelService struct {
	logs     fuelLogRepo
	odometer fuelSubmitter
	logger   *zap.Logger
}

// NewFuelService wires the fuel ledger.
func NewFuelService(logs fuelLogRepo, odometer fuelSubmitter, logger *zap.Logger) *FuelService {
	return &FuelService{logs: logs, odometer: odometer, logger: logger}
}

// Register submits a fill-up. All validation and the mileage gate live in
// the odometer engine; a rejection comes back as a result, not an error.
func (s *FuelService) Register(ctx context.Context, req SubmitFuelReadingRequest) (*SubmitResult, error) {
	return s.odometer.SubmitFuelReading(ctx, req)
}

// List returns fuel logs matching the filter.
func (s *FuelService) List(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelLog, *models.Pagination, error) {
	logs, total, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fuel logs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary aggregates consumption per vehicle over the filter period.
func (s *FuelService) Summary(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelSummary, error) {
	summaries, err := s.logs.Summary(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build fuel summary")
	}
	return summaries, nil
}
