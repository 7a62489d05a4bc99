package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yisusc1/fleetops-api/internal/models"
	"github.com/yisusc1/fleetops-api/internal/repository"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
)

type odometerRepo interface {
	LatestFuelKM(ctx context.Context, vehicleID string) (int, error)
	LatestTripKM(ctx context.Context, vehicleID string) (int, error)
	VehicleKM(ctx context.Context, vehicleID string) (int, error)
	LocateSource(ctx context.Context, vehicleID string, targetKM int) (*models.OdometerEventRef, error)
	ApplyFuelReading(ctx context.Context, params repository.ApplyFuelParams) error
	ApplyTripClose(ctx context.Context, params repository.ApplyTripCloseParams) error
}

type vehicleFinder interface {
	FindByID(ctx context.Context, id string) (*models.VehicleDetail, error)
}

type openTripFinder interface {
	FindByID(ctx context.Context, id string) (*models.TripReport, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type odometerMetrics interface {
	RecordMileageSubmission(source, outcome string)
	RecordMileageCorrection(source string)
}

// SubmitFuelReadingRequest carries a fill-up submission. ForceCorrection
// switches a rejected reading into the supervised correction path.
type SubmitFuelReadingRequest struct {
	VehicleID       string  `json:"vehicle_id" validate:"required"`
	MileageKM       int     `json:"mileage_km" validate:"required,gt=0"`
	Liters          float64 `json:"liters" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	Station         string  `json:"station"`
	Notes           string  `json:"notes"`
	ForceCorrection bool    `json:"force_correction"`

	ActorID   string          `json:"-"`
	ActorRole models.UserRole `json:"-"`
}

// CloseTripRequest carries a trip closure submission.
type CloseTripRequest struct {
	TripID          string `json:"-"`
	EndKM           int    `json:"end_km" validate:"required,gt=0"`
	ForceCorrection bool   `json:"force_correction"`

	ActorID   string          `json:"-"`
	ActorRole models.UserRole `json:"-"`
}

// SubmitResult is the outcome of an odometer submission. A rejected reading
// is not an error: the caller receives the resolved mileage so the operator
// can either fix a typo or escalate to a forced correction.
type SubmitResult struct {
	Success            bool               `json:"success"`
	Message            string             `json:"message,omitempty"`
	RequiresCorrection bool               `json:"requires_correction,omitempty"`
	CurrentKM          int                `json:"current_km"`
	Corrected          bool               `json:"corrected,omitempty"`
	FuelLog            *models.FuelLog    `json:"fuel_log,omitempty"`
	Trip               *models.TripReport `json:"trip,omitempty"`
}

// OdometerService is the consistency gate for every mileage-bearing write.
// It resolves the authoritative mileage, validates strictly increasing
// submissions, and drives the supervised correction protocol.
type OdometerService struct {
	odometer odometerRepo
	vehicles vehicleFinder
	trips    openTripFinder
	audit    auditWriter
	metrics  odometerMetrics
	locks    *vehicleLocker
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewOdometerService wires the odometer engine.
func NewOdometerService(odometer odometerRepo, vehicles vehicleFinder, trips openTripFinder, audit auditWriter, metrics odometerMetrics, logger *zap.Logger) *OdometerService {
	return &OdometerService{
		odometer: odometer,
		vehicles: vehicles,
		trips:    trips,
		audit:    audit,
		metrics:  metrics,
		locks:    newVehicleLocker(),
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve computes the authoritative current mileage for a vehicle: the
// maximum across the latest fuel log, the latest closed trip, and the
// denormalized vehicle field. Sources never shrink the result, so a stale
// denormalized value cannot hide newer event data and vice versa.
func (s *OdometerService) Resolve(ctx context.Context, vehicleID string) (int, error) {
	vehicleKM, err := s.odometer.VehicleKM(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve mileage")
	}
	fuelKM, err := s.odometer.LatestFuelKM(ctx, vehicleID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve mileage")
	}
	tripKM, err := s.odometer.LatestTripKM(ctx, vehicleID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve mileage")
	}

	current := vehicleKM
	if fuelKM > current {
		current = fuelKM
	}
	if tripKM > current {
		current = tripKM
	}
	return current, nil
}

// SubmitFuelReading validates and commits a fill-up. Readings at or below
// the resolved mileage are rejected with the current value unless
// ForceCorrection is set by a supervisor or admin, in which case the single
// source event holding the maximum is rewritten and the new reading becomes
// authoritative. Registering fuel resets the tank level to full.
func (s *OdometerService) SubmitFuelReading(ctx context.Context, req SubmitFuelReadingRequest) (*SubmitResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fuel reading")
	}

	s.locks.Lock(req.VehicleID)
	defer s.locks.Unlock(req.VehicleID)

	vehicle, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}

	current, err := s.Resolve(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}

	correction, reject, err := s.gate(ctx, vehicle, current, req.MileageKM, req.ForceCorrection, req.ActorRole)
	if err != nil {
		s.recordSubmission(string(models.OdometerSourceFuel), "error")
		return nil, err
	}
	if reject != nil {
		s.recordSubmission(string(models.OdometerSourceFuel), "rejected")
		return reject, nil
	}

	now := s.now().UTC()
	log := &models.FuelLog{
		VehicleID:  req.VehicleID,
		MileageKM:  req.MileageKM,
		Liters:     req.Liters,
		UnitPrice:  req.UnitPrice,
		TotalCost:  req.Liters * req.UnitPrice,
		Station:    req.Station,
		Notes:      req.Notes,
		RecordedBy: req.ActorID,
		RecordedAt: now,
	}
	params := repository.ApplyFuelParams{
		Log:        log,
		Correction: correction,
		VehicleKM:  req.MileageKM,
		FuelLevel:  100,
	}
	if err := s.odometer.ApplyFuelReading(ctx, params); err != nil {
		s.recordSubmission(string(models.OdometerSourceFuel), "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register fuel reading")
	}

	s.recordSubmission(string(models.OdometerSourceFuel), "accepted")
	if correction != nil {
		s.recordCorrection(string(correction.Ref.Source))
		s.auditCorrection(ctx, req.ActorID, req.VehicleID, correction)
		s.logger.Info("odometer corrected",
			zap.String("vehicle_id", req.VehicleID),
			zap.String("source", string(correction.Ref.Source)),
			zap.Int("old_km", correction.Ref.MileageKM),
			zap.Int("new_km", correction.NewKM))
	}

	return &SubmitResult{Success: true, CurrentKM: req.MileageKM, Corrected: correction != nil, FuelLog: log}, nil
}

// CloseTrip validates and commits a trip closure under the same gate as fuel
// readings. The vehicle returns to the available pool on success.
func (s *OdometerService) CloseTrip(ctx context.Context, req CloseTripRequest) (*SubmitResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid trip closure")
	}

	trip, err := s.trips.FindByID(ctx, req.TripID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trip report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trip report")
	}
	if trip.Status != models.TripStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "trip report is already closed")
	}

	s.locks.Lock(trip.VehicleID)
	defer s.locks.Unlock(trip.VehicleID)

	vehicle, err := s.vehicles.FindByID(ctx, trip.VehicleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}

	current, err := s.Resolve(ctx, trip.VehicleID)
	if err != nil {
		return nil, err
	}

	correction, reject, err := s.gate(ctx, vehicle, current, req.EndKM, req.ForceCorrection, req.ActorRole)
	if err != nil {
		s.recordSubmission(string(models.OdometerSourceTrip), "error")
		return nil, err
	}
	if reject != nil {
		s.recordSubmission(string(models.OdometerSourceTrip), "rejected")
		return reject, nil
	}

	returnedAt := s.now().UTC()
	params := repository.ApplyTripCloseParams{
		TripID:     trip.ID,
		VehicleID:  trip.VehicleID,
		EndKM:      req.EndKM,
		ReturnedAt: returnedAt,
		Correction: correction,
		VehicleKM:  req.EndKM,
	}
	if err := s.odometer.ApplyTripClose(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "trip report is already closed")
		}
		s.recordSubmission(string(models.OdometerSourceTrip), "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close trip report")
	}

	s.recordSubmission(string(models.OdometerSourceTrip), "accepted")
	if correction != nil {
		s.recordCorrection(string(correction.Ref.Source))
		s.auditCorrection(ctx, req.ActorID, trip.VehicleID, correction)
		s.logger.Info("odometer corrected",
			zap.String("vehicle_id", trip.VehicleID),
			zap.String("source", string(correction.Ref.Source)),
			zap.Int("old_km", correction.Ref.MileageKM),
			zap.Int("new_km", correction.NewKM))
	}

	trip.Status = models.TripStatusClosed
	trip.EndKM = &req.EndKM
	trip.ReturnedAt = &returnedAt
	return &SubmitResult{Success: true, CurrentKM: req.EndKM, Corrected: correction != nil, Trip: trip}, nil
}

// gate applies the monotonicity rule. It returns either a correction patch
// for the apply path (nil when the reading simply advances the odometer) or
// a rejection result, never both.
func (s *OdometerService) gate(ctx context.Context, vehicle *models.VehicleDetail, current, newKM int, force bool, role models.UserRole) (*repository.CorrectionPatch, *SubmitResult, error) {
	if newKM > current {
		return nil, nil, nil
	}

	if !force {
		return nil, &SubmitResult{
			Success:            false,
			RequiresCorrection: true,
			CurrentKM:          current,
			Message:            fmt.Sprintf("mileage %d does not exceed the current odometer %d", newKM, current),
		}, nil
	}

	if role != models.RoleSupervisor && role != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "mileage corrections require a supervisor")
	}

	ref, err := s.odometer.LocateSource(ctx, vehicle.ID, current)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to locate odometer source")
	}
	if ref == nil {
		// The maximum lives only in the denormalized vehicle field. The
		// write-through of the apply path rewrites it, so there is no
		// historical event to patch.
		if vehicle.MileageKM == current {
			return nil, nil, nil
		}
		return nil, nil, appErrors.ErrCorrectionTarget
	}
	return &repository.CorrectionPatch{Ref: *ref, NewKM: newKM}, nil, nil
}

func (s *OdometerService) auditCorrection(ctx context.Context, actorID, vehicleID string, patch *repository.CorrectionPatch) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]interface{}{"mileage_km": patch.Ref.MileageKM, "source": patch.Ref.Source})
	newValues, _ := json.Marshal(map[string]interface{}{"mileage_km": patch.NewKM})
	entry := &models.AuditLog{
		Action:     models.AuditActionMileageCorrection,
		Resource:   "vehicle",
		ResourceID: &vehicleID,
		OldValues:  oldValues,
		NewValues:  newValues,
		CreatedAt:  s.now().UTC(),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist correction audit entry", zap.Error(err))
	}
}

func (s *OdometerService) recordSubmission(source, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordMileageSubmission(source, outcome)
	}
}

func (s *OdometerService) recordCorrection(source string) {
	if s.metrics != nil {
		s.metrics.RecordMileageCorrection(source)
	}
}
