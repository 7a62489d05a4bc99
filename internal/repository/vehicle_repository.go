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

// VehicleRepository manages persistence for fleet vehicles.
type VehicleRepository struct {
	db *sqlx.DB
}

// NewVehicleRepository constructs a VehicleRepository.
func NewVehicleRepository(db *sqlx.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// List returns vehicles matching the provided filters.
func (r *VehicleRepository) List(ctx context.Context, filter models.VehicleFilter) ([]models.VehicleDetail, int, error) {
	base := "FROM vehicles v LEFT JOIN users u ON u.id = v.driver_id"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(v.plate) LIKE $%d OR LOWER(v.model) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("v.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("v.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DriverID != "" {
		conditions = append(conditions, fmt.Sprintf("v.driver_id = $%d", len(args)+1))
		args = append(args, filter.DriverID)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"plate":      "v.plate",
		"model":      "v.model",
		"mileage":    "v.mileage_km",
		"created_at": "v.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "v.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT v.id, v.plate, v.model, v.type, v.status, v.driver_id, v.mileage_km, v.fuel_level, v.created_at, v.updated_at,
        u.full_name AS driver_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var vehicles []models.VehicleDetail
	if err := r.db.SelectContext(ctx, &vehicles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list vehicles: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(v.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count vehicles: %w", err)
	}
	return vehicles, total, nil
}

// FindByID fetches a vehicle detail by ID.
func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*models.VehicleDetail, error) {
	const query = `SELECT v.id, v.plate, v.model, v.type, v.status, v.driver_id, v.mileage_km, v.fuel_level, v.created_at, v.updated_at,
        u.full_name AS driver_name
        FROM vehicles v
        LEFT JOIN users u ON u.id = v.driver_id
        WHERE v.id = $1`
	var detail models.VehicleDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByPlate checks if a vehicle with the given plate exists, optionally excluding an ID.
func (r *VehicleRepository) ExistsByPlate(ctx context.Context, plate string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM vehicles WHERE plate = $1"
	args := []interface{}{plate}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check plate: %w", err)
	}
	return true, nil
}

// Create inserts a new vehicle record.
func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	if vehicle.ID == "" {
		vehicle.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = now
	}
	vehicle.UpdatedAt = now
	const query = `INSERT INTO vehicles (id, plate, model, type, status, driver_id, mileage_km, fuel_level, created_at, updated_at)
        VALUES (:id, :plate, :model, :type, :status, :driver_id, :mileage_km, :fuel_level, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, vehicle); err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

// Update modifies an existing vehicle.
func (r *VehicleRepository) Update(ctx context.Context, vehicle *models.Vehicle) error {
	vehicle.UpdatedAt = time.Now().UTC()
	const query = `UPDATE vehicles SET plate = :plate, model = :model, type = :type, status = :status, driver_id = :driver_id, mileage_km = :mileage_km, fuel_level = :fuel_level, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, vehicle); err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	return nil
}

// UpdateStatus changes a vehicle's operational status.
func (r *VehicleRepository) UpdateStatus(ctx context.Context, id string, status models.VehicleStatus) error {
	const query = `UPDATE vehicles SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update vehicle status: %w", err)
	}
	return nil
}

// Deactivate marks a vehicle as inactive.
func (r *VehicleRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE vehicles SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.VehicleStatusInactive, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate vehicle: %w", err)
	}
	return nil
}

// CountByStatus aggregates vehicles per status for dashboards.
func (r *VehicleRepository) CountByStatus(ctx context.Context) (map[models.VehicleStatus]int, error) {
	const query = `SELECT status, COUNT(id) AS total FROM vehicles GROUP BY status`
	rows := []struct {
		Status models.VehicleStatus `db:"status"`
		Total  int                  `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count vehicles by status: %w", err)
	}
	counts := make(map[models.VehicleStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// ListLowFuel returns active vehicles at or below the fuel cutoff.
func (r *VehicleRepository) ListLowFuel(ctx context.Context, cutoff int, limit int) ([]models.Vehicle, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT id, plate, model, type, status, driver_id, mileage_km, fuel_level, created_at, updated_at
        FROM vehicles WHERE status <> $1 AND fuel_level <= $2 ORDER BY fuel_level ASC LIMIT %d`, limit)
	var vehicles []models.Vehicle
	if err := r.db.SelectContext(ctx, &vehicles, query, models.VehicleStatusInactive, cutoff); err != nil {
		return nil, fmt.Errorf("list low fuel vehicles: %w", err)
	}
	return vehicles, nil
}
