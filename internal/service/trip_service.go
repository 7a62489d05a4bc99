package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yisusc1/fleetops-api/internal/models"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
)

type tripRepo interface {
	List(ctx context.Context, filter models.TripFilter) ([]models.TripReport, int, error)
	FindByID(ctx context.Context, id string) (*models.TripReport, error)
	FindOpenByVehicle(ctx context.Context, vehicleID string) (*models.TripReport, error)
	Create(ctx context.Context, trip *models.TripReport) error
}

type vehicleStatusUpdater interface {
	FindByID(ctx context.Context, id string) (*models.VehicleDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.VehicleStatus) error
}

type tripCloser interface {
	Resolve(ctx context.Context, vehicleID string) (int, error)
	CloseTrip(ctx context.Context, req CloseTripRequest) (*SubmitResult, error)
}

// OpenTripRequest dispatches a vehicle.
type OpenTripRequest struct {
	VehicleID   string `json:"vehicle_id" validate:"required"`
	DriverID    string `json:"driver_id" validate:"required"`
	Destination string `json:"destination" validate:"required"`
	Purpose     string `json:"purpose"`
}

// TripService manages the dispatch lifecycle. A vehicle carries at most one
// open trip; closures run through the odometer gate.
type TripService struct {
	trips    tripRepo
	vehicles vehicleStatusUpdater
	odometer tripCloser
	validate *validator.Validate
	logger   *zap.Logger
}

// NewTripService wires the dispatch lifecycle.
func NewTripService(trips tripRepo, vehicles vehicleStatusUpdater, odometer tripCloser, logger *zap.Logger) *TripService {
	return &TripService{
		trips:    trips,
		vehicles: vehicles,
		odometer: odometer,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns trip reports matching the filter.
func (s *TripService) List(ctx context.Context, filter models.TripFilter) ([]models.TripReport, *models.Pagination, error) {
	trips, total, err := s.trips.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trip reports")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return trips, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one trip report.
func (s *TripService) Get(ctx context.Context, id string) (*models.TripReport, error) {
	trip, err := s.trips.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trip report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trip report")
	}
	return trip, nil
}

// Open dispatches a vehicle. The start reading snapshots the resolved
// mileage so the closing reading can be checked against a trustworthy base.
func (s *TripService) Open(ctx context.Context, req OpenTripRequest) (*models.TripReport, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid trip dispatch")
	}

	vehicle, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}
	if vehicle.Status != models.VehicleStatusAvailable {
		return nil, appErrors.Clone(appErrors.ErrConflict, "vehicle is not available for dispatch")
	}

	open, err := s.trips.FindOpenByVehicle(ctx, req.VehicleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open trips")
	}
	if open != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "vehicle already has an open trip")
	}

	startKM, err := s.odometer.Resolve(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}

	trip := &models.TripReport{
		VehicleID:   req.VehicleID,
		DriverID:    req.DriverID,
		Destination: req.Destination,
		Purpose:     req.Purpose,
		StartKM:     startKM,
	}
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create trip report")
	}
	if err := s.vehicles.UpdateStatus(ctx, req.VehicleID, models.VehicleStatusOnTrip); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dispatch vehicle")
	}

	s.logger.Info("trip opened",
		zap.String("trip_id", trip.ID),
		zap.String("vehicle_id", req.VehicleID),
		zap.Int("start_km", startKM))
	return trip, nil
}

// Close submits the closing odometer reading through the consistency gate.
func (s *TripService) Close(ctx context.Context, req CloseTripRequest) (*SubmitResult, error) {
	return s.odometer.CloseTrip(ctx, req)
}
