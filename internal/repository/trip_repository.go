package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yisusc1/fleetops-api/internal/models"
)

// TripRepository manages trip report dispatch records. Trip closures go
// through OdometerRepository so the mileage write-through stays
// transactional.
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository constructs a TripRepository.
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// List returns trip reports matching the provided filters.
func (r *TripRepository) List(ctx context.Context, filter models.TripFilter) ([]models.TripReport, int, error) {
	base := "FROM trip_reports"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.VehicleID != "" {
		conditions = append(conditions, fmt.Sprintf("vehicle_id = $%d", len(args)+1))
		args = append(args, filter.VehicleID)
	}
	if filter.DriverID != "" {
		conditions = append(conditions, fmt.Sprintf("driver_id = $%d", len(args)+1))
		args = append(args, filter.DriverID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, vehicle_id, driver_id, destination, purpose, status, start_km, end_km, departed_at, returned_at, created_at, corrected
        %s ORDER BY departed_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var trips []models.TripReport
	if err := r.db.SelectContext(ctx, &trips, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list trip reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count trip reports: %w", err)
	}
	return trips, total, nil
}

// FindByID fetches a trip report by ID.
func (r *TripRepository) FindByID(ctx context.Context, id string) (*models.TripReport, error) {
	const query = `SELECT id, vehicle_id, driver_id, destination, purpose, status, start_km, end_km, departed_at, returned_at, created_at, corrected
        FROM trip_reports WHERE id = $1`
	var trip models.TripReport
	if err := r.db.GetContext(ctx, &trip, query, id); err != nil {
		return nil, err
	}
	return &trip, nil
}

// FindOpenByVehicle returns the open trip for a vehicle, if any.
func (r *TripRepository) FindOpenByVehicle(ctx context.Context, vehicleID string) (*models.TripReport, error) {
	const query = `SELECT id, vehicle_id, driver_id, destination, purpose, status, start_km, end_km, departed_at, returned_at, created_at, corrected
        FROM trip_reports WHERE vehicle_id = $1 AND status = $2 ORDER BY departed_at DESC LIMIT 1`
	var trip models.TripReport
	if err := r.db.GetContext(ctx, &trip, query, vehicleID, models.TripStatusOpen); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open trip: %w", err)
	}
	return &trip, nil
}

// Create inserts a new open trip report.
func (r *TripRepository) Create(ctx context.Context, trip *models.TripReport) error {
	if trip.ID == "" {
		trip.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if trip.DepartedAt.IsZero() {
		trip.DepartedAt = now
	}
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = now
	}
	trip.Status = models.TripStatusOpen
	const query = `INSERT INTO trip_reports (id, vehicle_id, driver_id, destination, purpose, status, start_km, departed_at, created_at, corrected)
        VALUES (:id, :vehicle_id, :driver_id, :destination, :purpose, :status, :start_km, :departed_at, :created_at, :corrected)`
	if _, err := r.db.NamedExecContext(ctx, query, trip); err != nil {
		return fmt.Errorf("create trip report: %w", err)
	}
	return nil
}
