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

type mockOdometerRepo struct {
	fuelKM    int
	tripKM    int
	vehicleKM int
	vehicleOK bool

	locateRef *models.OdometerEventRef

	appliedFuel []repository.ApplyFuelParams
	appliedTrip []repository.ApplyTripCloseParams
	applyErr    error
}

func (m *mockOdometerRepo) LatestFuelKM(ctx context.Context, vehicleID string) (int, error) {
	return m.fuelKM, nil
}

func (m *mockOdometerRepo) LatestTripKM(ctx context.Context, vehicleID string) (int, error) {
	return m.tripKM, nil
}

func (m *mockOdometerRepo) VehicleKM(ctx context.Context, vehicleID string) (int, error) {
	if !m.vehicleOK {
		return 0, sql.ErrNoRows
	}
	return m.vehicleKM, nil
}

func (m *mockOdometerRepo) LocateSource(ctx context.Context, vehicleID string, targetKM int) (*models.OdometerEventRef, error) {
	return m.locateRef, nil
}

func (m *mockOdometerRepo) ApplyFuelReading(ctx context.Context, params repository.ApplyFuelParams) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.appliedFuel = append(m.appliedFuel, params)
	return nil
}

func (m *mockOdometerRepo) ApplyTripClose(ctx context.Context, params repository.ApplyTripCloseParams) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.appliedTrip = append(m.appliedTrip, params)
	return nil
}

type mockVehicleReader struct {
	vehicles map[string]*models.VehicleDetail
}

func (m *mockVehicleReader) FindByID(ctx context.Context, id string) (*models.VehicleDetail, error) {
	if v, ok := m.vehicles[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockTripReader struct {
	trips map[string]*models.TripReport
}

func (m *mockTripReader) FindByID(ctx context.Context, id string) (*models.TripReport, error) {
	if t, ok := m.trips[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockAuditSink struct {
	entries []*models.AuditLog
}

func (m *mockAuditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

type mockSubmissionMetrics struct {
	submissions map[string]int
	corrections []string
}

func (m *mockSubmissionMetrics) RecordMileageSubmission(source, outcome string) {
	if m.submissions == nil {
		m.submissions = make(map[string]int)
	}
	m.submissions[source+"/"+outcome]++
}

func (m *mockSubmissionMetrics) RecordMileageCorrection(source string) {
	m.corrections = append(m.corrections, source)
}

func newOdometerFixture(repo *mockOdometerRepo, vehicles *mockVehicleReader, trips *mockTripReader) (*OdometerService, *mockAuditSink, *mockSubmissionMetrics) {
	audit := &mockAuditSink{}
	metrics := &mockSubmissionMetrics{}
	svc := NewOdometerService(repo, vehicles, trips, audit, metrics, zap.NewNop())
	return svc, audit, metrics
}

func TestOdometerResolveTakesMaximum(t *testing.T) {
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 9000, fuelKM: 10000, tripKM: 9800}
	svc, _, _ := newOdometerFixture(repo, &mockVehicleReader{}, &mockTripReader{})

	current, err := svc.Resolve(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 10000, current)
}

func TestOdometerResolveUnknownVehicle(t *testing.T) {
	repo := &mockOdometerRepo{}
	svc, _, _ := newOdometerFixture(repo, &mockVehicleReader{}, &mockTripReader{})

	_, err := svc.Resolve(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmitFuelReadingAccepted(t *testing.T) {
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 10000}
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", MileageKM: 10000}},
	}}
	svc, _, metrics := newOdometerFixture(repo, vehicles, &mockTripReader{})

	result, err := svc.SubmitFuelReading(context.Background(), SubmitFuelReadingRequest{
		VehicleID: "v1",
		MileageKM: 10250,
		Liters:    30,
		UnitPrice: 2,
		ActorID:   "u1",
		ActorRole: models.RoleTechnician,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Corrected)
	assert.Equal(t, 10250, result.CurrentKM)

	require.Len(t, repo.appliedFuel, 1)
	applied := repo.appliedFuel[0]
	assert.Nil(t, applied.Correction)
	assert.Equal(t, 10250, applied.VehicleKM)
	assert.Equal(t, 100, applied.FuelLevel)
	assert.Equal(t, 60.0, applied.Log.TotalCost)
	assert.Equal(t, 1, metrics.submissions["fuel_log/accepted"])
}

func TestSubmitFuelReadingRejectedWithoutForce(t *testing.T) {
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 9000, fuelKM: 10000}
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", MileageKM: 9000}},
	}}
	svc, audit, metrics := newOdometerFixture(repo, vehicles, &mockTripReader{})

	result, err := svc.SubmitFuelReading(context.Background(), SubmitFuelReadingRequest{
		VehicleID: "v1",
		MileageKM: 10000,
		Liters:    25,
		ActorRole: models.RoleTechnician,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.RequiresCorrection)
	assert.Equal(t, 10000, result.CurrentKM)
	assert.Empty(t, repo.appliedFuel)
	assert.Empty(t, audit.entries)
	assert.Equal(t, 1, metrics.submissions["fuel_log/rejected"])
}

func TestSubmitFuelReadingForcedCorrectionRequiresSupervisor(t *testing.T) {
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 10000}
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", MileageKM: 10000}},
	}}
	svc, _, _ := newOdometerFixture(repo, vehicles, &mockTripReader{})

	_, err := svc.SubmitFuelReading(context.Background(), SubmitFuelReadingRequest{
		VehicleID:       "v1",
		MileageKM:       9500,
		Liters:          25,
		ForceCorrection: true,
		ActorRole:       models.RoleTechnician,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.appliedFuel)
}

func TestSubmitFuelReadingForcedCorrectionRewritesSource(t *testing.T) {
	recordedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockOdometerRepo{
		vehicleOK: true,
		vehicleKM: 10000,
		fuelKM:    10000,
		locateRef: &models.OdometerEventRef{
			Source:     models.OdometerSourceFuel,
			RecordID:   "f1",
			MileageKM:  10000,
			RecordedAt: recordedAt,
		},
	}
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", MileageKM: 10000}},
	}}
	svc, audit, metrics := newOdometerFixture(repo, vehicles, &mockTripReader{})

	result, err := svc.SubmitFuelReading(context.Background(), SubmitFuelReadingRequest{
		VehicleID:       "v1",
		MileageKM:       9500,
		Liters:          25,
		ForceCorrection: true,
		ActorID:         "sup1",
		ActorRole:       models.RoleSupervisor,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Corrected)
	assert.Equal(t, 9500, result.CurrentKM)

	require.Len(t, repo.appliedFuel, 1)
	applied := repo.appliedFuel[0]
	require.NotNil(t, applied.Correction)
	assert.Equal(t, "f1", applied.Correction.Ref.RecordID)
	assert.Equal(t, 9500, applied.Correction.NewKM)
	assert.Equal(t, 9500, applied.VehicleKM)
	assert.Equal(t, 100, applied.FuelLevel)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionMileageCorrection, audit.entries[0].Action)
	require.NotNil(t, audit.entries[0].UserID)
	assert.Equal(t, "sup1", *audit.entries[0].UserID)
	assert.Equal(t, []string{"fuel_log"}, metrics.corrections)
}

func TestSubmitFuelReadingCorrectionWithoutSourceEvent(t *testing.T) {
	// The resolved maximum lives only in the denormalized vehicle field, so
	// there is no historical event to patch and the write-through suffices.
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 10000}
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", MileageKM: 10000}},
	}}
	svc, _, _ := newOdometerFixture(repo, vehicles, &mockTripReader{})

	result, err := svc.SubmitFuelReading(context.Background(), SubmitFuelReadingRequest{
		VehicleID:       "v1",
		MileageKM:       9500,
		Liters:          25,
		ForceCorrection: true,
		ActorRole:       models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, repo.appliedFuel, 1)
	assert.Nil(t, repo.appliedFuel[0].Correction)
}

func TestSubmitFuelReadingCorrectionTargetMissing(t *testing.T) {
	// Maximum cannot be attributed to any source: the vehicle field disagrees
	// and no event row holds it.
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 10000}
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", MileageKM: 9000}},
	}}
	svc, _, _ := newOdometerFixture(repo, vehicles, &mockTripReader{})

	_, err := svc.SubmitFuelReading(context.Background(), SubmitFuelReadingRequest{
		VehicleID:       "v1",
		MileageKM:       9500,
		Liters:          25,
		ForceCorrection: true,
		ActorRole:       models.RoleSupervisor,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCorrectionTarget.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.appliedFuel)
}

func TestCloseTripAccepted(t *testing.T) {
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 10000}
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", MileageKM: 10000}},
	}}
	trips := &mockTripReader{trips: map[string]*models.TripReport{
		"t1": {ID: "t1", VehicleID: "v1", Status: models.TripStatusOpen, StartKM: 10000},
	}}
	svc, _, metrics := newOdometerFixture(repo, vehicles, trips)

	result, err := svc.CloseTrip(context.Background(), CloseTripRequest{
		TripID:    "t1",
		EndKM:     10180,
		ActorRole: models.RoleTechnician,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.Trip)
	assert.Equal(t, models.TripStatusClosed, result.Trip.Status)
	require.NotNil(t, result.Trip.EndKM)
	assert.Equal(t, 10180, *result.Trip.EndKM)

	require.Len(t, repo.appliedTrip, 1)
	assert.Equal(t, 10180, repo.appliedTrip[0].VehicleKM)
	assert.Equal(t, 1, metrics.submissions["trip_report/accepted"])
}

func TestCloseTripRejectedBelowCurrent(t *testing.T) {
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 10000, tripKM: 10200}
	vehicles := &mockVehicleReader{vehicles: map[string]*models.VehicleDetail{
		"v1": {Vehicle: models.Vehicle{ID: "v1", MileageKM: 10000}},
	}}
	trips := &mockTripReader{trips: map[string]*models.TripReport{
		"t1": {ID: "t1", VehicleID: "v1", Status: models.TripStatusOpen, StartKM: 10000},
	}}
	svc, _, _ := newOdometerFixture(repo, vehicles, trips)

	result, err := svc.CloseTrip(context.Background(), CloseTripRequest{
		TripID:    "t1",
		EndKM:     10100,
		ActorRole: models.RoleTechnician,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.RequiresCorrection)
	assert.Equal(t, 10200, result.CurrentKM)
	assert.Empty(t, repo.appliedTrip)
}

func TestCloseTripAlreadyClosed(t *testing.T) {
	repo := &mockOdometerRepo{vehicleOK: true, vehicleKM: 10000}
	end := 10100
	trips := &mockTripReader{trips: map[string]*models.TripReport{
		"t1": {ID: "t1", VehicleID: "v1", Status: models.TripStatusClosed, StartKM: 10000, EndKM: &end},
	}}
	svc, _, _ := newOdometerFixture(repo, &mockVehicleReader{}, trips)

	_, err := svc.CloseTrip(context.Background(), CloseTripRequest{
		TripID:    "t1",
		EndKM:     10200,
		ActorRole: models.RoleTechnician,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
