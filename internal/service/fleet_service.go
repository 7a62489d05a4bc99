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

type vehicleRepo interface {
	List(ctx context.Context, filter models.VehicleFilter) ([]models.VehicleDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.VehicleDetail, error)
	ExistsByPlate(ctx context.Context, plate string, excludeID string) (bool, error)
	Create(ctx context.Context, vehicle *models.Vehicle) error
	Update(ctx context.Context, vehicle *models.Vehicle) error
	Deactivate(ctx context.Context, id string) error
}

// CreateVehicleRequest registers a new fleet unit.
type CreateVehicleRequest struct {
	Plate     string  `json:"plate" validate:"required"`
	Model     string  `json:"model" validate:"required"`
	Type      string  `json:"type" validate:"required,oneof=car motorcycle truck"`
	DriverID  *string `json:"driver_id"`
	MileageKM int     `json:"mileage_km" validate:"gte=0"`
	FuelLevel int     `json:"fuel_level" validate:"gte=0,lte=100"`
}

// UpdateVehicleRequest applies partial changes to a vehicle.
type UpdateVehicleRequest struct {
	Plate     *string `json:"plate"`
	Model     *string `json:"model"`
	Type      *string `json:"type" validate:"omitempty,oneof=car motorcycle truck"`
	Status    *string `json:"status" validate:"omitempty,oneof=available on_trip in_workshop inactive"`
	DriverID  *string `json:"driver_id"`
	FuelLevel *int    `json:"fuel_level" validate:"omitempty,gte=0,lte=100"`
}

// FleetService manages the vehicle registry. Read paths carry the resolved
// mileage so clients never see a stale denormalized value.
type FleetService struct {
	vehicles vehicleRepo
	odometer mileageResolver
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFleetService wires the vehicle registry.
func NewFleetService(vehicles vehicleRepo, odometer mileageResolver, logger *zap.Logger) *FleetService {
	return &FleetService{
		vehicles: vehicles,
		odometer: odometer,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns vehicles matching the filter with resolved mileage attached.
func (s *FleetService) List(ctx context.Context, filter models.VehicleFilter) ([]models.VehicleDetail, *models.Pagination, error) {
	vehicles, total, err := s.vehicles.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vehicles")
	}
	for i := range vehicles {
		current, err := s.odometer.Resolve(ctx, vehicles[i].ID)
		if err != nil {
			return nil, nil, err
		}
		vehicles[i].CurrentKM = current
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return vehicles, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one vehicle with resolved mileage.
func (s *FleetService) Get(ctx context.Context, id string) (*models.VehicleDetail, error) {
	vehicle, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}
	current, err := s.odometer.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	vehicle.CurrentKM = current
	return vehicle, nil
}

// Create registers a vehicle after checking plate uniqueness.
func (s *FleetService) Create(ctx context.Context, req CreateVehicleRequest) (*models.Vehicle, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vehicle")
	}
	exists, err := s.vehicles.ExistsByPlate(ctx, req.Plate, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check plate")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "plate is already registered")
	}

	vehicle := &models.Vehicle{
		Plate:     req.Plate,
		Model:     req.Model,
		Type:      models.VehicleType(req.Type),
		Status:    models.VehicleStatusAvailable,
		DriverID:  req.DriverID,
		MileageKM: req.MileageKM,
		FuelLevel: req.FuelLevel,
	}
	if err := s.vehicles.Create(ctx, vehicle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create vehicle")
	}
	s.logger.Info("vehicle registered", zap.String("vehicle_id", vehicle.ID), zap.String("plate", vehicle.Plate))
	return vehicle, nil
}

// Update applies partial changes. The denormalized mileage is deliberately
// not updatable here; it only moves through odometer submissions.
func (s *FleetService) Update(ctx context.Context, id string, req UpdateVehicleRequest) (*models.Vehicle, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vehicle update")
	}
	detail, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}
	vehicle := detail.Vehicle

	if req.Plate != nil && *req.Plate != vehicle.Plate {
		exists, err := s.vehicles.ExistsByPlate(ctx, *req.Plate, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check plate")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "plate is already registered")
		}
		vehicle.Plate = *req.Plate
	}
	if req.Model != nil {
		vehicle.Model = *req.Model
	}
	if req.Type != nil {
		vehicle.Type = models.VehicleType(*req.Type)
	}
	if req.Status != nil {
		vehicle.Status = models.VehicleStatus(*req.Status)
	}
	if req.DriverID != nil {
		vehicle.DriverID = req.DriverID
	}
	if req.FuelLevel != nil {
		vehicle.FuelLevel = *req.FuelLevel
	}

	if err := s.vehicles.Update(ctx, &vehicle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update vehicle")
	}
	return &vehicle, nil
}

// Deactivate retires a vehicle from the active fleet.
func (s *FleetService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.vehicles.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}
	if err := s.vehicles.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate vehicle")
	}
	return nil
}
