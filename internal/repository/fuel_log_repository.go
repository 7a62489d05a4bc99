package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yisusc1/fleetops-api/internal/models"
)

// FuelLogRepository provides read access to fuel logs. Writes go through
// OdometerRepository so the mileage write-through stays transactional.
type FuelLogRepository struct {
	db *sqlx.DB
}

// NewFuelLogRepository constructs a FuelLogRepository.
func NewFuelLogRepository(db *sqlx.DB) *FuelLogRepository {
	return &FuelLogRepository{db: db}
}

// List returns fuel logs matching the provided filters.
func (r *FuelLogRepository) List(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelLog, int, error) {
	base := "FROM fuel_logs"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.VehicleID != "" {
		conditions = append(conditions, fmt.Sprintf("vehicle_id = $%d", len(args)+1))
		args = append(args, filter.VehicleID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("recorded_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("recorded_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
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

	query := fmt.Sprintf(`SELECT id, vehicle_id, mileage_km, liters, unit_price, total_cost, station, notes, recorded_by, recorded_at, created_at, corrected
        %s ORDER BY recorded_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var logs []models.FuelLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fuel logs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fuel logs: %w", err)
	}
	return logs, total, nil
}

// Summary aggregates fill-ups, liters and spend per vehicle for a period.
func (r *FuelLogRepository) Summary(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelSummary, error) {
	base := `FROM fuel_logs f JOIN vehicles v ON v.id = f.vehicle_id`
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.VehicleID != "" {
		conditions = append(conditions, fmt.Sprintf("f.vehicle_id = $%d", len(args)+1))
		args = append(args, filter.VehicleID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("f.recorded_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("f.recorded_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	query := fmt.Sprintf(`SELECT f.vehicle_id, v.plate, COUNT(f.id) AS fill_ups, COALESCE(SUM(f.liters), 0) AS total_liters,
        COALESCE(SUM(f.total_cost), 0) AS total_spend, COALESCE(MIN(f.mileage_km), 0) AS first_km, COALESCE(MAX(f.mileage_km), 0) AS last_km
        %s WHERE %s GROUP BY f.vehicle_id, v.plate ORDER BY v.plate ASC`, base, strings.Join(conditions, " AND "))

	var summaries []models.FuelSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("fuel summary: %w", err)
	}
	return summaries, nil
}

// ListForExport returns all fuel logs matching the filter, oldest first,
// without pagination. Used by the report pipeline.
func (r *FuelLogRepository) ListForExport(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelLog, error) {
	base := "FROM fuel_logs"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.VehicleID != "" {
		conditions = append(conditions, fmt.Sprintf("vehicle_id = $%d", len(args)+1))
		args = append(args, filter.VehicleID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("recorded_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("recorded_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	query := fmt.Sprintf(`SELECT id, vehicle_id, mileage_km, liters, unit_price, total_cost, station, notes, recorded_by, recorded_at, created_at, corrected
        %s WHERE %s ORDER BY recorded_at ASC`, base, strings.Join(conditions, " AND "))

	var logs []models.FuelLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list fuel logs for export: %w", err)
	}
	return logs, nil
}

// SpendSince sums fuel spend recorded at or after the given time.
func (r *FuelLogRepository) SpendSince(ctx context.Context, since time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(total_cost), 0) FROM fuel_logs WHERE recorded_at >= $1`
	var spend float64
	if err := r.db.GetContext(ctx, &spend, query, since); err != nil {
		return 0, fmt.Errorf("monthly fuel spend: %w", err)
	}
	return spend, nil
}
