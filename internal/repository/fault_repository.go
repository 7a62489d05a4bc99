package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yisusc1/fleetops-api/internal/models"
)

// FaultRepository manages persisted vehicle faults.
type FaultRepository struct {
	db *sqlx.DB
}

// NewFaultRepository constructs a FaultRepository.
func NewFaultRepository(db *sqlx.DB) *FaultRepository {
	return &FaultRepository{db: db}
}

const faultColumns = `id, vehicle_id, description, category, priority, status, service_type, plan_id, reported_by, resolved_at, created_at, updated_at`

// List returns faults matching the provided filters.
func (r *FaultRepository) List(ctx context.Context, filter models.FaultFilter) ([]models.Fault, int, error) {
	base := "FROM faults"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.VehicleID != "" {
		conditions = append(conditions, fmt.Sprintf("vehicle_id = $%d", len(args)+1))
		args = append(args, filter.VehicleID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, *filter.Priority)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", faultColumns, base, size, offset)

	var faults []models.Fault
	if err := r.db.SelectContext(ctx, &faults, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list faults: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count faults: %w", err)
	}
	return faults, total, nil
}

// FindByID fetches a fault by ID.
func (r *FaultRepository) FindByID(ctx context.Context, id string) (*models.Fault, error) {
	query := fmt.Sprintf("SELECT %s FROM faults WHERE id = $1", faultColumns)
	var fault models.Fault
	if err := r.db.GetContext(ctx, &fault, query, id); err != nil {
		return nil, err
	}
	return &fault, nil
}

// ListActiveMaintenance returns pending or in-review maintenance faults,
// scoped to a vehicle when vehicleID is non-empty. These are the rows that
// suppress duplicate due alerts.
func (r *FaultRepository) ListActiveMaintenance(ctx context.Context, vehicleID string) ([]models.Fault, error) {
	query := fmt.Sprintf(`SELECT %s FROM faults WHERE category = $1 AND status IN ($2, $3)`, faultColumns)
	args := []interface{}{models.FaultCategoryMaintenance, models.FaultStatusPending, models.FaultStatusInReview}
	if vehicleID != "" {
		query += " AND vehicle_id = $4"
		args = append(args, vehicleID)
	}
	var faults []models.Fault
	if err := r.db.SelectContext(ctx, &faults, query, args...); err != nil {
		return nil, fmt.Errorf("list active maintenance faults: %w", err)
	}
	return faults, nil
}

// Create inserts a new fault record.
func (r *FaultRepository) Create(ctx context.Context, fault *models.Fault) error {
	if fault.ID == "" {
		fault.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fault.CreatedAt.IsZero() {
		fault.CreatedAt = now
	}
	fault.UpdatedAt = now
	const query = `INSERT INTO faults (id, vehicle_id, description, category, priority, status, service_type, plan_id, reported_by, created_at, updated_at)
        VALUES (:id, :vehicle_id, :description, :category, :priority, :status, :service_type, :plan_id, :reported_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fault); err != nil {
		return fmt.Errorf("create fault: %w", err)
	}
	return nil
}

// UpdateStatus transitions a fault and stamps resolution when terminal.
func (r *FaultRepository) UpdateStatus(ctx context.Context, id string, status models.FaultStatus, resolvedAt *time.Time) error {
	const query = `UPDATE faults SET status = $2, resolved_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, resolvedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update fault status: %w", err)
	}
	return nil
}

// CountOpenByPriority aggregates pending and in-review faults per priority.
func (r *FaultRepository) CountOpenByPriority(ctx context.Context) (map[models.FaultPriority]int, error) {
	const query = `SELECT priority, COUNT(id) AS total FROM faults WHERE status IN ($1, $2) GROUP BY priority`
	rows := []struct {
		Priority models.FaultPriority `db:"priority"`
		Total    int                  `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, models.FaultStatusPending, models.FaultStatusInReview); err != nil {
		return nil, fmt.Errorf("count open faults: %w", err)
	}
	counts := make(map[models.FaultPriority]int, len(rows))
	for _, row := range rows {
		counts[row.Priority] = row.Total
	}
	return counts, nil
}
