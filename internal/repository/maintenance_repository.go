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

// MaintenanceRepository manages maintenance plans and service logs.
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository constructs a MaintenanceRepository.
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// CompleteServiceParams pairs the writes that advance a plan: the performed
// service log, the plan's new last-service point, and (when the work was
// tracked as a fault) the fault resolution.
type CompleteServiceParams struct {
	Log           *models.MaintenanceLog
	PlanID        string
	LastServiceKM *int
	LastServiceAt *time.Time
	FaultID       *string
}

const planColumns = `id, vehicle_id, service_type, custom_label, kind, interval_km, interval_days, last_service_km, last_service_at, active, created_at, updated_at`

// ListPlans returns active maintenance plans, scoped to a vehicle when
// vehicleID is non-empty.
func (r *MaintenanceRepository) ListPlans(ctx context.Context, vehicleID string) ([]models.MaintenancePlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM maintenance_plans WHERE active = true`, planColumns)
	var args []interface{}
	if vehicleID != "" {
		query += " AND vehicle_id = $1"
		args = append(args, vehicleID)
	}
	query += " ORDER BY created_at ASC"

	var plans []models.MaintenancePlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, fmt.Errorf("list maintenance plans: %w", err)
	}
	return plans, nil
}

// FindPlanByID fetches a maintenance plan by ID.
func (r *MaintenanceRepository) FindPlanByID(ctx context.Context, id string) (*models.MaintenancePlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM maintenance_plans WHERE id = $1`, planColumns)
	var plan models.MaintenancePlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// CreatePlan inserts a new maintenance plan.
func (r *MaintenanceRepository) CreatePlan(ctx context.Context, plan *models.MaintenancePlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	const query = `INSERT INTO maintenance_plans (id, vehicle_id, service_type, custom_label, kind, interval_km, interval_days, last_service_km, last_service_at, active, created_at, updated_at)
        VALUES (:id, :vehicle_id, :service_type, :custom_label, :kind, :interval_km, :interval_days, :last_service_km, :last_service_at, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create maintenance plan: %w", err)
	}
	return nil
}

// UpdatePlan modifies an existing maintenance plan.
func (r *MaintenanceRepository) UpdatePlan(ctx context.Context, plan *models.MaintenancePlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE maintenance_plans SET service_type = :service_type, custom_label = :custom_label, kind = :kind, interval_km = :interval_km, interval_days = :interval_days, last_service_km = :last_service_km, last_service_at = :last_service_at, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("update maintenance plan: %w", err)
	}
	return nil
}

// ListLogs returns service logs for a vehicle, newest first.
func (r *MaintenanceRepository) ListLogs(ctx context.Context, vehicleID string, page, pageSize int) ([]models.MaintenanceLog, int, error) {
	base := "FROM maintenance_logs"
	var args []interface{}
	if vehicleID != "" {
		base += " WHERE vehicle_id = $1"
		args = append(args, vehicleID)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT id, vehicle_id, plan_id, service_type, description, mileage_km, cost, performed_by, performed_at, created_at
        %s ORDER BY performed_at DESC LIMIT %d OFFSET %d`, base, pageSize, offset)

	var logs []models.MaintenanceLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list maintenance logs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count maintenance logs: %w", err)
	}
	return logs, total, nil
}

// ListLogsForExport returns all service logs in a window, oldest first,
// without pagination. Used by the report pipeline.
func (r *MaintenanceRepository) ListLogsForExport(ctx context.Context, vehicleID string, from, to *time.Time) ([]models.MaintenanceLog, error) {
	base := "FROM maintenance_logs"
	var args []interface{}
	conditions := []string{"1=1"}

	if vehicleID != "" {
		conditions = append(conditions, fmt.Sprintf("vehicle_id = $%d", len(args)+1))
		args = append(args, vehicleID)
	}
	if from != nil {
		conditions = append(conditions, fmt.Sprintf("performed_at >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		conditions = append(conditions, fmt.Sprintf("performed_at <= $%d", len(args)+1))
		args = append(args, *to)
	}

	query := fmt.Sprintf(`SELECT id, vehicle_id, plan_id, service_type, description, mileage_km, cost, performed_by, performed_at, created_at
        %s WHERE %s ORDER BY performed_at ASC`, base, strings.Join(conditions, " AND "))

	var logs []models.MaintenanceLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list maintenance logs for export: %w", err)
	}
	return logs, nil
}

// CompleteService atomically records a performed service: inserts the log,
// advances the plan's last-service point, resolves the linked fault when
// present, and lifts the vehicle's denormalized mileage if the service
// reading exceeds it.
func (r *MaintenanceRepository) CompleteService(ctx context.Context, params CompleteServiceParams) error {
	if params.Log == nil {
		return fmt.Errorf("maintenance log required")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete service: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	log := params.Log
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if log.PerformedAt.IsZero() {
		log.PerformedAt = now
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	const insertQuery = `INSERT INTO maintenance_logs (id, vehicle_id, plan_id, service_type, description, mileage_km, cost, performed_by, performed_at, created_at)
        VALUES (:id, :vehicle_id, :plan_id, :service_type, :description, :mileage_km, :cost, :performed_by, :performed_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, log); err != nil {
		return fmt.Errorf("insert maintenance log: %w", err)
	}

	if params.PlanID != "" {
		const planQuery = `UPDATE maintenance_plans SET last_service_km = $2, last_service_at = $3, updated_at = $4 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, planQuery, params.PlanID, params.LastServiceKM, params.LastServiceAt, now); err != nil {
			return fmt.Errorf("advance maintenance plan: %w", err)
		}
	}

	if params.FaultID != nil {
		const faultQuery = `UPDATE faults SET status = $2, resolved_at = $3, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, faultQuery, *params.FaultID, models.FaultStatusRepaired, now); err != nil {
			return fmt.Errorf("resolve maintenance fault: %w", err)
		}
	}

	const vehicleQuery = `UPDATE vehicles SET mileage_km = GREATEST(mileage_km, $2), updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, vehicleQuery, log.VehicleID, log.MileageKM, now); err != nil {
		return fmt.Errorf("lift vehicle mileage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete service: %w", err)
	}
	return nil
}
