package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yisusc1/fleetops-api/internal/models"
	"github.com/yisusc1/fleetops-api/internal/repository"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
)

type mockPlanRepo struct {
	plans     map[string]*models.MaintenancePlan
	completed []repository.CompleteServiceParams
}

func (m *mockPlanRepo) ListPlans(ctx context.Context, vehicleID string) ([]models.MaintenancePlan, error) {
	result := make([]models.MaintenancePlan, 0, len(m.plans))
	for _, plan := range m.plans {
		if vehicleID != "" && plan.VehicleID != vehicleID {
			continue
		}
		result = append(result, *plan)
	}
	return result, nil
}

func (m *mockPlanRepo) FindPlanByID(ctx context.Context, id string) (*models.MaintenancePlan, error) {
	if plan, ok := m.plans[id]; ok {
		cp := *plan
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPlanRepo) CreatePlan(ctx context.Context, plan *models.MaintenancePlan) error {
	if m.plans == nil {
		m.plans = make(map[string]*models.MaintenancePlan)
	}
	if plan.ID == "" {
		plan.ID = "generated"
	}
	cp := *plan
	m.plans[plan.ID] = &cp
	return nil
}

func (m *mockPlanRepo) UpdatePlan(ctx context.Context, plan *models.MaintenancePlan) error {
	cp := *plan
	m.plans[plan.ID] = &cp
	return nil
}

func (m *mockPlanRepo) ListLogs(ctx context.Context, vehicleID string, page, pageSize int) ([]models.MaintenanceLog, int, error) {
	return nil, 0, nil
}

func (m *mockPlanRepo) CompleteService(ctx context.Context, params repository.CompleteServiceParams) error {
	m.completed = append(m.completed, params)
	return nil
}

type mockMaintFaultRepo struct {
	active  []models.Fault
	faults  map[string]*models.Fault
	created []*models.Fault
}

func (m *mockMaintFaultRepo) ListActiveMaintenance(ctx context.Context, vehicleID string) ([]models.Fault, error) {
	result := make([]models.Fault, 0, len(m.active))
	for _, fault := range m.active {
		if vehicleID != "" && fault.VehicleID != vehicleID {
			continue
		}
		result = append(result, fault)
	}
	return result, nil
}

func (m *mockMaintFaultRepo) FindByID(ctx context.Context, id string) (*models.Fault, error) {
	if fault, ok := m.faults[id]; ok {
		cp := *fault
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMaintFaultRepo) Create(ctx context.Context, fault *models.Fault) error {
	if fault.ID == "" {
		fault.ID = "fault-generated"
	}
	m.created = append(m.created, fault)
	return nil
}

type stubResolver struct {
	km map[string]int
}

func (s *stubResolver) Resolve(ctx context.Context, vehicleID string) (int, error) {
	return s.km[vehicleID], nil
}

func intRef(v int) *int { return &v }

func timeRef(v time.Time) *time.Time { return &v }

func distancePlan(lastKM, intervalKM int) *models.MaintenancePlan {
	return &models.MaintenancePlan{
		ID:            "p1",
		VehicleID:     "v1",
		ServiceType:   models.ServiceTypeOilChange,
		Kind:          models.IntervalKindDistance,
		IntervalKM:    intRef(intervalKM),
		LastServiceKM: intRef(lastKM),
		Active:        true,
	}
}

func newMaintenanceFixture(plans *mockPlanRepo, faults *mockMaintFaultRepo, resolver *stubResolver, at time.Time) (*MaintenanceService, *mockAuditSink) {
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", Plate: "AB123CD"}},
	}}
	audit := &mockAuditSink{}
	svc := NewMaintenanceService(plans, faults, vehicles, resolver, audit, 0.9, zap.NewNop())
	svc.now = func() time.Time { return at }
	return svc, audit
}

func TestDueAlertsDistanceBelowApproach(t *testing.T) {
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{km: map[string]int{"v1": 14499}}, time.Now())

	alerts, err := svc.ListDueAlerts(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDueAlertsDistanceApproaching(t *testing.T) {
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{km: map[string]int{"v1": 14500}}, time.Now())

	alerts, err := svc.ListDueAlerts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "maint-p1", alerts[0].ID)
	assert.Equal(t, models.FaultPriorityHigh, alerts[0].Priority)
	assert.Equal(t, "AB123CD", alerts[0].Plate)
	assert.Equal(t, "4500 of 5000 km since last service", alerts[0].UsageText)
}

func TestDueAlertsDistanceOverdue(t *testing.T) {
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{km: map[string]int{"v1": 15000}}, time.Now())

	alerts, err := svc.ListDueAlerts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.FaultPriorityCritical, alerts[0].Priority)
}

func TestDueAlertsTimeThresholds(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		elapsed  time.Duration
		priority models.FaultPriority
		due      bool
	}{
		{"overdue", 15 * 24 * time.Hour, models.FaultPriorityCritical, true},
		{"approaching", 14 * 24 * time.Hour, models.FaultPriorityHigh, true},
		{"fresh", 10 * 24 * time.Hour, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := &models.MaintenancePlan{
				ID:            "p1",
				VehicleID:     "v1",
				ServiceType:   models.ServiceTypeWash,
				Kind:          models.IntervalKindTime,
				IntervalDays:  intRef(15),
				LastServiceAt: timeRef(now.Add(-tc.elapsed)),
				Active:        true,
			}
			plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": plan}}
			svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{km: map[string]int{"v1": 5000}}, now)

			alerts, err := svc.ListDueAlerts(context.Background(), "")
			require.NoError(t, err)
			if !tc.due {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, tc.priority, alerts[0].Priority)
		})
	}
}

func TestDueAlertsTimeFallsBackToPlanCreation(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	plan := &models.MaintenancePlan{
		ID:           "p1",
		VehicleID:    "v1",
		ServiceType:  models.ServiceTypeWash,
		Kind:         models.IntervalKindTime,
		IntervalDays: intRef(15),
		Active:       true,
		CreatedAt:    now.Add(-20 * 24 * time.Hour),
	}
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": plan}}
	svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{km: map[string]int{"v1": 5000}}, now)

	alerts, err := svc.ListDueAlerts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.FaultPriorityCritical, alerts[0].Priority)
}

func TestDueAlertsSuppressedByTrackedFault(t *testing.T) {
	oilChange := models.ServiceTypeOilChange
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	faults := &mockMaintFaultRepo{active: []models.Fault{
		{ID: "f1", VehicleID: "v1", Status: models.FaultStatusPending, ServiceType: &oilChange},
	}}
	svc, _ := newMaintenanceFixture(plans, faults, &stubResolver{km: map[string]int{"v1": 15000}}, time.Now())

	alerts, err := svc.ListDueAlerts(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDueAlertsNotSuppressedByOtherServiceType(t *testing.T) {
	wash := models.ServiceTypeWash
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	faults := &mockMaintFaultRepo{active: []models.Fault{
		{ID: "f1", VehicleID: "v1", Status: models.FaultStatusPending, ServiceType: &wash},
	}}
	svc, _ := newMaintenanceFixture(plans, faults, &stubResolver{km: map[string]int{"v1": 15000}}, time.Now())

	alerts, err := svc.ListDueAlerts(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestDueAlertsSkipInactivePlan(t *testing.T) {
	plan := distancePlan(10000, 5000)
	plan.Active = false
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": plan}}
	svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{km: map[string]int{"v1": 20000}}, time.Now())

	alerts, err := svc.ListDueAlerts(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestPromoteAlertCreatesInReviewFault(t *testing.T) {
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	faults := &mockMaintFaultRepo{}
	svc, audit := newMaintenanceFixture(plans, faults, &stubResolver{km: map[string]int{"v1": 15200}}, time.Now())

	fault, err := svc.PromoteAlert(context.Background(), "p1", "sup1")
	require.NoError(t, err)
	assert.Equal(t, models.FaultStatusInReview, fault.Status)
	assert.Equal(t, models.FaultCategoryMaintenance, fault.Category)
	assert.Equal(t, models.FaultPriorityCritical, fault.Priority)
	require.NotNil(t, fault.ServiceType)
	assert.Equal(t, models.ServiceTypeOilChange, *fault.ServiceType)
	require.NotNil(t, fault.PlanID)
	assert.Equal(t, "p1", *fault.PlanID)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionAlertPromotion, audit.entries[0].Action)
}

func TestPromoteAlertNotDue(t *testing.T) {
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{km: map[string]int{"v1": 12000}}, time.Now())

	_, err := svc.PromoteAlert(context.Background(), "p1", "sup1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestPromoteAlertAlreadyTracked(t *testing.T) {
	oilChange := models.ServiceTypeOilChange
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	faults := &mockMaintFaultRepo{active: []models.Fault{
		{ID: "f1", VehicleID: "v1", Status: models.FaultStatusInReview, ServiceType: &oilChange},
	}}
	svc, _ := newMaintenanceFixture(plans, faults, &stubResolver{km: map[string]int{"v1": 15200}}, time.Now())

	_, err := svc.PromoteAlert(context.Background(), "p1", "sup1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, faults.created)
}

func TestCompleteServiceAdvancesPlan(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": distancePlan(10000, 5000)}}
	svc, audit := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{km: map[string]int{"v1": 15200}}, now)

	planID := "p1"
	log, err := svc.CompleteService(context.Background(), CompleteServiceRequest{
		VehicleID:   "v1",
		PlanID:      &planID,
		ServiceType: "oil_change",
		MileageKM:   15200,
		Cost:        120,
		ActorID:     "tech1",
	})
	require.NoError(t, err)
	assert.Equal(t, 15200, log.MileageKM)

	require.Len(t, plans.completed, 1)
	params := plans.completed[0]
	assert.Equal(t, "p1", params.PlanID)
	require.NotNil(t, params.LastServiceKM)
	assert.Equal(t, 15200, *params.LastServiceKM)
	require.NotNil(t, params.LastServiceAt)
	assert.Equal(t, now, *params.LastServiceAt)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionServiceCompleted, audit.entries[0].Action)
}

func TestCompleteServicePlanVehicleMismatch(t *testing.T) {
	plan := distancePlan(10000, 5000)
	plan.VehicleID = "other"
	plans := &mockPlanRepo{plans: map[string]*models.MaintenancePlan{"p1": plan}}
	svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{}, time.Now())

	planID := "p1"
	_, err := svc.CompleteService(context.Background(), CompleteServiceRequest{
		VehicleID:   "v1",
		PlanID:      &planID,
		ServiceType: "oil_change",
		MileageKM:   15200,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, plans.completed)
}

func TestCompleteServiceResolvedFaultRejected(t *testing.T) {
	resolved := time.Now()
	plans := &mockPlanRepo{}
	faults := &mockMaintFaultRepo{faults: map[string]*models.Fault{
		"f1": {ID: "f1", VehicleID: "v1", Status: models.FaultStatusRepaired, ResolvedAt: &resolved},
	}}
	svc, _ := newMaintenanceFixture(plans, faults, &stubResolver{}, time.Now())

	faultID := "f1"
	_, err := svc.CompleteService(context.Background(), CompleteServiceRequest{
		VehicleID:   "v1",
		ServiceType: "oil_change",
		MileageKM:   15200,
		FaultID:     &faultID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreatePlanRequiresMatchingInterval(t *testing.T) {
	plans := &mockPlanRepo{}
	svc, _ := newMaintenanceFixture(plans, &mockMaintFaultRepo{}, &stubResolver{}, time.Now())

	_, err := svc.CreatePlan(context.Background(), CreateMaintenancePlanRequest{
		VehicleID:   "v1",
		ServiceType: "oil_change",
		Kind:        "distance",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	plan, err := svc.CreatePlan(context.Background(), CreateMaintenancePlanRequest{
		VehicleID:   "v1",
		ServiceType: "oil_change",
		Kind:        "distance",
		IntervalKM:  intRef(5000),
	})
	require.NoError(t, err)
	assert.True(t, plan.Active)
	require.NotNil(t, plan.IntervalKM)
	assert.Equal(t, 5000, *plan.IntervalKM)
}
