package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yisusc1/fleetops-api/internal/models"
)

// OdometerRepository owns every query that reads or advances a vehicle's
// odometer trail: the latest readings per event table, source-record lookup
// for corrections, and the transactional apply paths that keep the
// denormalized vehicle mileage in step with the event tables.
type OdometerRepository struct {
	db *sqlx.DB
}

// NewOdometerRepository constructs an OdometerRepository.
func NewOdometerRepository(db *sqlx.DB) *OdometerRepository {
	return &OdometerRepository{db: db}
}

// CorrectionPatch rewrites one historical odometer event to NewKM.
type CorrectionPatch struct {
	Ref   models.OdometerEventRef
	NewKM int
}

// ApplyFuelParams describes an accepted fuel reading to commit.
type ApplyFuelParams struct {
	Log        *models.FuelLog
	Correction *CorrectionPatch
	VehicleKM  int
	FuelLevel  int
}

// ApplyTripCloseParams describes an accepted trip closure to commit.
type ApplyTripCloseParams struct {
	TripID     string
	VehicleID  string
	EndKM      int
	ReturnedAt time.Time
	Correction *CorrectionPatch
	VehicleKM  int
}

// LatestFuelKM returns the mileage of the most recent fuel log for the
// vehicle, or 0 when none exists.
func (r *OdometerRepository) LatestFuelKM(ctx context.Context, vehicleID string) (int, error) {
	const query = `SELECT mileage_km FROM fuel_logs WHERE vehicle_id = $1 ORDER BY recorded_at DESC LIMIT 1`
	var km int
	if err := r.db.GetContext(ctx, &km, query, vehicleID); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("latest fuel mileage: %w", err)
	}
	return km, nil
}

// LatestTripKM returns the closing mileage of the most recent closed trip
// report for the vehicle, or 0 when none exists.
func (r *OdometerRepository) LatestTripKM(ctx context.Context, vehicleID string) (int, error) {
	const query = `SELECT end_km FROM trip_reports WHERE vehicle_id = $1 AND status = $2 AND end_km IS NOT NULL ORDER BY returned_at DESC LIMIT 1`
	var km int
	if err := r.db.GetContext(ctx, &km, query, vehicleID, models.TripStatusClosed); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("latest trip mileage: %w", err)
	}
	return km, nil
}

// VehicleKM returns the denormalized mileage field for the vehicle.
func (r *OdometerRepository) VehicleKM(ctx context.Context, vehicleID string) (int, error) {
	const query = `SELECT mileage_km FROM vehicles WHERE id = $1`
	var km int
	if err := r.db.GetContext(ctx, &km, query, vehicleID); err != nil {
		return 0, err
	}
	return km, nil
}

// LocateSource finds the single odometer event whose mileage equals
// targetKM for the vehicle. When several events share that value the most
// recent by timestamp wins; on a timestamp tie, fuel logs take precedence
// over trip reports. Returns nil when no event holds the value.
func (r *OdometerRepository) LocateSource(ctx context.Context, vehicleID string, targetKM int) (*models.OdometerEventRef, error) {
	type candidate struct {
		ID         string    `db:"id"`
		RecordedAt time.Time `db:"recorded_at"`
	}

	var fuel candidate
	fuelFound := true
	const fuelQuery = `SELECT id, recorded_at FROM fuel_logs WHERE vehicle_id = $1 AND mileage_km = $2 ORDER BY recorded_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &fuel, fuelQuery, vehicleID, targetKM); err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("locate fuel source: %w", err)
		}
		fuelFound = false
	}

	var trip candidate
	tripFound := true
	const tripQuery = `SELECT id, returned_at AS recorded_at FROM trip_reports WHERE vehicle_id = $1 AND end_km = $2 AND status = $3 ORDER BY returned_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &trip, tripQuery, vehicleID, targetKM, models.TripStatusClosed); err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("locate trip source: %w", err)
		}
		tripFound = false
	}

	switch {
	case !fuelFound && !tripFound:
		return nil, nil
	case fuelFound && (!tripFound || !trip.RecordedAt.After(fuel.RecordedAt)):
		return &models.OdometerEventRef{Source: models.OdometerSourceFuel, RecordID: fuel.ID, MileageKM: targetKM, RecordedAt: fuel.RecordedAt}, nil
	default:
		return &models.OdometerEventRef{Source: models.OdometerSourceTrip, RecordID: trip.ID, MileageKM: targetKM, RecordedAt: trip.RecordedAt}, nil
	}
}

// ApplyFuelReading commits an accepted fuel reading in one transaction:
// optional correction of the prior source event, insert of the new log, and
// write-through of the vehicle's mileage and fuel level.
func (r *OdometerRepository) ApplyFuelReading(ctx context.Context, params ApplyFuelParams) error {
	if params.Log == nil {
		return fmt.Errorf("fuel log required")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fuel apply: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if params.Correction != nil {
		if err := applyCorrection(ctx, tx, *params.Correction); err != nil {
			return err
		}
	}

	log := params.Log
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if log.RecordedAt.IsZero() {
		log.RecordedAt = now
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	const insertQuery = `INSERT INTO fuel_logs (id, vehicle_id, mileage_km, liters, unit_price, total_cost, station, notes, recorded_by, recorded_at, created_at, corrected)
        VALUES (:id, :vehicle_id, :mileage_km, :liters, :unit_price, :total_cost, :station, :notes, :recorded_by, :recorded_at, :created_at, :corrected)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, log); err != nil {
		return fmt.Errorf("insert fuel log: %w", err)
	}

	const vehicleQuery = `UPDATE vehicles SET mileage_km = $2, fuel_level = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, vehicleQuery, log.VehicleID, params.VehicleKM, params.FuelLevel, now); err != nil {
		return fmt.Errorf("write through vehicle mileage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fuel apply: %w", err)
	}
	return nil
}

// ApplyTripClose commits an accepted trip closure in one transaction:
// optional correction, close of the open trip, and write-through of the
// vehicle's mileage and status.
func (r *OdometerRepository) ApplyTripClose(ctx context.Context, params ApplyTripCloseParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trip close: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if params.Correction != nil {
		if err := applyCorrection(ctx, tx, *params.Correction); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	returnedAt := params.ReturnedAt
	if returnedAt.IsZero() {
		returnedAt = now
	}
	const closeQuery = `UPDATE trip_reports SET end_km = $2, status = $3, returned_at = $4 WHERE id = $1 AND status = $5`
	res, err := tx.ExecContext(ctx, closeQuery, params.TripID, params.EndKM, models.TripStatusClosed, returnedAt, models.TripStatusOpen)
	if err != nil {
		return fmt.Errorf("close trip report: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	const vehicleQuery = `UPDATE vehicles SET mileage_km = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, vehicleQuery, params.VehicleID, params.VehicleKM, models.VehicleStatusAvailable, now); err != nil {
		return fmt.Errorf("write through vehicle mileage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trip close: %w", err)
	}
	return nil
}

func applyCorrection(ctx context.Context, tx *sqlx.Tx, patch CorrectionPatch) error {
	var query string
	switch patch.Ref.Source {
	case models.OdometerSourceFuel:
		query = `UPDATE fuel_logs SET mileage_km = $2, corrected = true WHERE id = $1`
	case models.OdometerSourceTrip:
		query = `UPDATE trip_reports SET end_km = $2, corrected = true WHERE id = $1`
	default:
		return fmt.Errorf("unknown odometer source %q", patch.Ref.Source)
	}
	res, err := tx.ExecContext(ctx, query, patch.Ref.RecordID, patch.NewKM)
	if err != nil {
		return fmt.Errorf("correct odometer event: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("odometer event %s vanished during correction", patch.Ref.RecordID)
	}
	return nil
}
