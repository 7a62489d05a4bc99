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

type maintenanceRepo interface {
	ListPlans(ctx context.Context, vehicleID string) ([]models.MaintenancePlan, error)
	FindPlanByID(ctx context.Context, id string) (*models.MaintenancePlan, error)
	CreatePlan(ctx context.Context, plan *models.MaintenancePlan) error
	UpdatePlan(ctx context.Context, plan *models.MaintenancePlan) error
	ListLogs(ctx context.Context, vehicleID string, page, pageSize int) ([]models.MaintenanceLog, int, error)
	CompleteService(ctx context.Context, params repository.CompleteServiceParams) error
}

type maintenanceFaultRepo interface {
	ListActiveMaintenance(ctx context.Context, vehicleID string) ([]models.Fault, error)
	FindByID(ctx context.Context, id string) (*models.Fault, error)
	Create(ctx context.Context, fault *models.Fault) error
}

type mileageResolver interface {
	Resolve(ctx context.Context, vehicleID string) (int, error)
}

// CreateMaintenancePlanRequest defines a recurring service rule.
type CreateMaintenancePlanRequest struct {
	VehicleID    string `json:"vehicle_id" validate:"required"`
	ServiceType  string `json:"service_type" validate:"required,oneof=oil_change timing_belt chain_kit wash custom"`
	CustomLabel  string `json:"custom_label" validate:"required_if=ServiceType custom"`
	Kind         string `json:"kind" validate:"required,oneof=distance time"`
	IntervalKM   *int   `json:"interval_km" validate:"omitempty,gt=0"`
	IntervalDays *int   `json:"interval_days" validate:"omitempty,gt=0"`
}

// UpdateMaintenancePlanRequest modifies an existing rule.
type UpdateMaintenancePlanRequest struct {
	CustomLabel  *string `json:"custom_label"`
	IntervalKM   *int    `json:"interval_km" validate:"omitempty,gt=0"`
	IntervalDays *int    `json:"interval_days" validate:"omitempty,gt=0"`
	Active       *bool   `json:"active"`
}

// CompleteServiceRequest records a performed service against a vehicle and,
// optionally, the plan and fault it settles.
type CompleteServiceRequest struct {
	VehicleID   string  `json:"vehicle_id" validate:"required"`
	PlanID      *string `json:"plan_id"`
	ServiceType string  `json:"service_type" validate:"required,oneof=oil_change timing_belt chain_kit wash custom"`
	Description string  `json:"description"`
	MileageKM   int     `json:"mileage_km" validate:"required,gt=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
	FaultID     *string `json:"fault_id"`

	ActorID string `json:"-"`
}

// MaintenanceService owns the due calculator: plans, computed alerts, alert
// promotion into faults, and service completion.
type MaintenanceService struct {
	plans         maintenanceRepo
	faults        maintenanceFaultRepo
	vehicles      vehicleFinder
	odometer      mileageResolver
	audit         auditWriter
	approachRatio float64
	validate      *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewMaintenanceService wires the maintenance calculator. approachRatio is
// the fraction of an interval at which an alert surfaces as approaching
// (0.9 unless configured otherwise).
func NewMaintenanceService(plans maintenanceRepo, faults maintenanceFaultRepo, vehicles vehicleFinder, odometer mileageResolver, audit auditWriter, approachRatio float64, logger *zap.Logger) *MaintenanceService {
	if approachRatio <= 0 || approachRatio >= 1 {
		approachRatio = 0.9
	}
	return &MaintenanceService{
		plans:         plans,
		faults:        faults,
		vehicles:      vehicles,
		odometer:      odometer,
		audit:         audit,
		approachRatio: approachRatio,
		validate:      validator.New(),
		logger:        logger,
		now:           time.Now,
	}
}

// CreatePlan registers a new maintenance plan after checking the vehicle
// exists and the interval matches the plan kind.
func (s *MaintenanceService) CreatePlan(ctx context.Context, req CreateMaintenancePlanRequest) (*models.MaintenancePlan, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid maintenance plan")
	}
	kind := models.IntervalKind(req.Kind)
	if kind == models.IntervalKindDistance && req.IntervalKM == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "interval_km is required for distance plans")
	}
	if kind == models.IntervalKindTime && req.IntervalDays == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "interval_days is required for time plans")
	}

	if _, err := s.vehicles.FindByID(ctx, req.VehicleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}

	plan := &models.MaintenancePlan{
		VehicleID:   req.VehicleID,
		ServiceType: models.ServiceType(req.ServiceType),
		CustomLabel: req.CustomLabel,
		Kind:        kind,
		Active:      true,
	}
	if kind == models.IntervalKindDistance {
		plan.IntervalKM = req.IntervalKM
	} else {
		plan.IntervalDays = req.IntervalDays
	}
	if err := s.plans.CreatePlan(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create maintenance plan")
	}
	return plan, nil
}

// UpdatePlan applies partial changes to a plan.
func (s *MaintenanceService) UpdatePlan(ctx context.Context, id string, req UpdateMaintenancePlanRequest) (*models.MaintenancePlan, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid maintenance plan update")
	}
	plan, err := s.plans.FindPlanByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "maintenance plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load maintenance plan")
	}

	if req.CustomLabel != nil {
		plan.CustomLabel = *req.CustomLabel
	}
	if req.IntervalKM != nil {
		if plan.Kind != models.IntervalKindDistance {
			return nil, appErrors.Clone(appErrors.ErrValidation, "interval_km only applies to distance plans")
		}
		plan.IntervalKM = req.IntervalKM
	}
	if req.IntervalDays != nil {
		if plan.Kind != models.IntervalKindTime {
			return nil, appErrors.Clone(appErrors.ErrValidation, "interval_days only applies to time plans")
		}
		plan.IntervalDays = req.IntervalDays
	}
	if req.Active != nil {
		plan.Active = *req.Active
	}
	if err := s.plans.UpdatePlan(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update maintenance plan")
	}
	return plan, nil
}

// ListPlans returns active plans, scoped to a vehicle when vehicleID is set.
func (s *MaintenanceService) ListPlans(ctx context.Context, vehicleID string) ([]models.MaintenancePlan, error) {
	plans, err := s.plans.ListPlans(ctx, vehicleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list maintenance plans")
	}
	return plans, nil
}

// ListLogs returns performed services for a vehicle.
func (s *MaintenanceService) ListLogs(ctx context.Context, vehicleID string, page, pageSize int) ([]models.MaintenanceLog, *models.Pagination, error) {
	logs, total, err := s.plans.ListLogs(ctx, vehicleID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list maintenance logs")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return logs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListDueAlerts recomputes maintenance-due alerts across active plans.
// Alerts are never stored: a plan surfaces an alert while its usage is at or
// past the approach threshold, and the alert disappears as soon as an active
// maintenance fault for the same vehicle and service type exists.
func (s *MaintenanceService) ListDueAlerts(ctx context.Context, vehicleID string) ([]models.DueAlert, error) {
	plans, err := s.plans.ListPlans(ctx, vehicleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list maintenance plans")
	}
	active, err := s.faults.ListActiveMaintenance(ctx, vehicleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active maintenance faults")
	}

	tracked := make(map[string]struct{}, len(active))
	for _, fault := range active {
		if fault.ServiceType != nil {
			tracked[dedupKey(fault.VehicleID, *fault.ServiceType)] = struct{}{}
		}
	}

	now := s.now().UTC()
	mileages := make(map[string]int)
	plates := make(map[string]string)
	alerts := make([]models.DueAlert, 0)

	for _, plan := range plans {
		current, ok := mileages[plan.VehicleID]
		if !ok {
			current, err = s.odometer.Resolve(ctx, plan.VehicleID)
			if err != nil {
				return nil, err
			}
			mileages[plan.VehicleID] = current
			if vehicle, err := s.vehicles.FindByID(ctx, plan.VehicleID); err == nil {
				plates[plan.VehicleID] = vehicle.Plate
			}
		}

		alert := s.evaluatePlan(plan, current, now)
		if alert == nil {
			continue
		}
		if _, exists := tracked[dedupKey(plan.VehicleID, plan.ServiceType)]; exists {
			continue
		}
		alert.Plate = plates[plan.VehicleID]
		alerts = append(alerts, *alert)
	}
	return alerts, nil
}

// PromoteAlert converts a computed due alert into a persisted maintenance
// fault, opened in review so the workshop can track the work. The fault
// carries the plan and service type, which is what suppresses the alert on
// subsequent reads.
func (s *MaintenanceService) PromoteAlert(ctx context.Context, planID, actorID string) (*models.Fault, error) {
	plan, err := s.plans.FindPlanByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "maintenance plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load maintenance plan")
	}

	current, err := s.odometer.Resolve(ctx, plan.VehicleID)
	if err != nil {
		return nil, err
	}
	alert := s.evaluatePlan(*plan, current, s.now().UTC())
	if alert == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "plan is not due for service")
	}

	active, err := s.faults.ListActiveMaintenance(ctx, plan.VehicleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active maintenance faults")
	}
	for _, fault := range active {
		if fault.ServiceType != nil && *fault.ServiceType == plan.ServiceType {
			return nil, appErrors.Clone(appErrors.ErrConflict, "service is already tracked by an open fault")
		}
	}

	serviceType := plan.ServiceType
	fault := &models.Fault{
		VehicleID:   plan.VehicleID,
		Description: fmt.Sprintf("%s due: %s", plan.Label(), alert.UsageText),
		Category:    models.FaultCategoryMaintenance,
		Priority:    alert.Priority,
		Status:      models.FaultStatusInReview,
		ServiceType: &serviceType,
		PlanID:      &plan.ID,
		ReportedBy:  actorID,
	}
	if err := s.faults.Create(ctx, fault); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create maintenance fault")
	}

	s.auditPromotion(ctx, actorID, fault)
	s.logger.Info("maintenance alert promoted",
		zap.String("vehicle_id", plan.VehicleID),
		zap.String("plan_id", plan.ID),
		zap.String("fault_id", fault.ID))
	return fault, nil
}

// CompleteService records a performed service. When a plan is referenced its
// last-service point advances, which clears the computed alert; when a fault
// is referenced it transitions to repaired in the same transaction.
func (s *MaintenanceService) CompleteService(ctx context.Context, req CompleteServiceRequest) (*models.MaintenanceLog, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid service completion")
	}

	params := repository.CompleteServiceParams{
		Log: &models.MaintenanceLog{
			VehicleID:   req.VehicleID,
			PlanID:      req.PlanID,
			ServiceType: models.ServiceType(req.ServiceType),
			Description: req.Description,
			MileageKM:   req.MileageKM,
			Cost:        req.Cost,
			PerformedBy: req.ActorID,
			PerformedAt: s.now().UTC(),
		},
		FaultID: req.FaultID,
	}

	if req.PlanID != nil {
		plan, err := s.plans.FindPlanByID(ctx, *req.PlanID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "maintenance plan not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load maintenance plan")
		}
		if plan.VehicleID != req.VehicleID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "plan belongs to a different vehicle")
		}
		params.PlanID = plan.ID
		km := req.MileageKM
		at := params.Log.PerformedAt
		params.LastServiceKM = &km
		params.LastServiceAt = &at
	}

	if req.FaultID != nil {
		fault, err := s.faults.FindByID(ctx, *req.FaultID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "fault not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fault")
		}
		if fault.VehicleID != req.VehicleID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "fault belongs to a different vehicle")
		}
		if !fault.IsActive() {
			return nil, appErrors.Clone(appErrors.ErrConflict, "fault is already resolved")
		}
	}

	if err := s.plans.CompleteService(ctx, params); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record service")
	}

	s.auditCompletion(ctx, req.ActorID, params.Log)
	return params.Log, nil
}

// evaluatePlan applies the due thresholds to one plan. Usage at or past the
// full interval is critical; usage at or past approachRatio of the interval
// is high. Time plans measure whole elapsed days, truncated.
func (s *MaintenanceService) evaluatePlan(plan models.MaintenancePlan, currentKM int, now time.Time) *models.DueAlert {
	if !plan.Active {
		return nil
	}

	var used, interval int
	var usageText string

	switch plan.Kind {
	case models.IntervalKindDistance:
		if plan.IntervalKM == nil || *plan.IntervalKM <= 0 {
			return nil
		}
		interval = *plan.IntervalKM
		base := 0
		if plan.LastServiceKM != nil {
			base = *plan.LastServiceKM
		}
		used = currentKM - base
		usageText = fmt.Sprintf("%d of %d km since last service", used, interval)
	case models.IntervalKindTime:
		if plan.IntervalDays == nil || *plan.IntervalDays <= 0 {
			return nil
		}
		interval = *plan.IntervalDays
		base := plan.CreatedAt
		if plan.LastServiceAt != nil {
			base = *plan.LastServiceAt
		}
		used = int(now.Sub(base).Hours() / 24)
		usageText = fmt.Sprintf("%d of %d days since last service", used, interval)
	default:
		return nil
	}

	var priority models.FaultPriority
	switch {
	case used >= interval:
		priority = models.FaultPriorityCritical
	case float64(used) >= s.approachRatio*float64(interval):
		priority = models.FaultPriorityHigh
	default:
		return nil
	}

	return &models.DueAlert{
		ID:           "maint-" + plan.ID,
		PlanID:       plan.ID,
		VehicleID:    plan.VehicleID,
		ServiceType:  plan.ServiceType,
		ServiceLabel: plan.Label(),
		Priority:     priority,
		UsageText:    usageText,
	}
}

func dedupKey(vehicleID string, serviceType models.ServiceType) string {
	return vehicleID + "|" + string(serviceType)
}

func (s *MaintenanceService) auditPromotion(ctx context.Context, actorID string, fault *models.Fault) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(fault)
	entry := &models.AuditLog{
		Action:     models.AuditActionAlertPromotion,
		Resource:   "fault",
		ResourceID: &fault.ID,
		NewValues:  newValues,
		CreatedAt:  s.now().UTC(),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist promotion audit entry", zap.Error(err))
	}
}

func (s *MaintenanceService) auditCompletion(ctx context.Context, actorID string, log *models.MaintenanceLog) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(log)
	entry := &models.AuditLog{
		Action:     models.AuditActionServiceCompleted,
		Resource:   "maintenance_log",
		ResourceID: &log.ID,
		NewValues:  newValues,
		CreatedAt:  s.now().UTC(),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist completion audit entry", zap.Error(err))
	}
}
