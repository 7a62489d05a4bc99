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
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
)

type mockFaultLifecycleRepo struct {
	faults  map[string]*models.Fault
	created []*models.Fault
	updated []models.FaultStatus
}

func (m *mockFaultLifecycleRepo) List(ctx context.Context, filter models.FaultFilter) ([]models.Fault, int, error) {
	result := make([]models.Fault, 0, len(m.faults))
	for _, fault := range m.faults {
		result = append(result, *fault)
	}
	return result, len(result), nil
}

func (m *mockFaultLifecycleRepo) FindByID(ctx context.Context, id string) (*models.Fault, error) {
	if fault, ok := m.faults[id]; ok {
		cp := *fault
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFaultLifecycleRepo) Create(ctx context.Context, fault *models.Fault) error {
	if m.faults == nil {
		m.faults = make(map[string]*models.Fault)
	}
	if fault.ID == "" {
		fault.ID = "generated"
	}
	cp := *fault
	m.faults[fault.ID] = &cp
	m.created = append(m.created, fault)
	return nil
}

func (m *mockFaultLifecycleRepo) UpdateStatus(ctx context.Context, id string, status models.FaultStatus, resolvedAt *time.Time) error {
	m.updated = append(m.updated, status)
	if fault, ok := m.faults[id]; ok {
		fault.Status = status
		fault.ResolvedAt = resolvedAt
	}
	return nil
}

func newFaultFixture(repo *mockFaultLifecycleRepo) *FaultService {
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1"}},
	}}
	return NewFaultService(repo, vehicles, zap.NewNop())
}

func TestFaultServiceReport(t *testing.T) {
	repo := &mockFaultLifecycleRepo{}
	svc := newFaultFixture(repo)

	fault, err := svc.Report(context.Background(), ReportFaultRequest{
		VehicleID:   "v1",
		Description: "front brake squeal",
		Category:    "mechanical",
		Priority:    "medium",
		ActorID:     "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.FaultStatusPending, fault.Status)
	assert.Equal(t, "u1", fault.ReportedBy)
	assert.Len(t, repo.created, 1)
}

func TestFaultServiceReportUnknownVehicle(t *testing.T) {
	svc := newFaultFixture(&mockFaultLifecycleRepo{})

	_, err := svc.Report(context.Background(), ReportFaultRequest{
		VehicleID:   "ghost",
		Description: "whatever",
		Category:    "mechanical",
		Priority:    "low",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFaultServiceTransitionLifecycle(t *testing.T) {
	repo := &mockFaultLifecycleRepo{faults: map[string]*models.Fault{
		"f1": {ID: "f1", VehicleID: "v1", Status: models.FaultStatusPending},
	}}
	svc := newFaultFixture(repo)

	fault, err := svc.Transition(context.Background(), "f1", models.FaultStatusInReview)
	require.NoError(t, err)
	assert.Equal(t, models.FaultStatusInReview, fault.Status)
	assert.Nil(t, fault.ResolvedAt)

	fault, err = svc.Transition(context.Background(), "f1", models.FaultStatusRepaired)
	require.NoError(t, err)
	assert.Equal(t, models.FaultStatusRepaired, fault.Status)
	assert.NotNil(t, fault.ResolvedAt)
}

func TestFaultServiceTransitionIllegal(t *testing.T) {
	cases := []struct {
		name   string
		from   models.FaultStatus
		target models.FaultStatus
	}{
		{"pending to repaired", models.FaultStatusPending, models.FaultStatusRepaired},
		{"repaired is terminal", models.FaultStatusRepaired, models.FaultStatusInReview},
		{"discarded is terminal", models.FaultStatusDiscarded, models.FaultStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockFaultLifecycleRepo{faults: map[string]*models.Fault{
				"f1": {ID: "f1", VehicleID: "v1", Status: tc.from},
			}}
			svc := newFaultFixture(repo)

			_, err := svc.Transition(context.Background(), "f1", tc.target)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrFaultTransition.Code, appErrors.FromError(err).Code)
			assert.Empty(t, repo.updated)
		})
	}
}
