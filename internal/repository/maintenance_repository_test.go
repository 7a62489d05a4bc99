package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yisusc1/fleetops-api/internal/models"
)

func TestMaintenanceRepositoryListPlans(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "vehicle_id", "service_type", "custom_label", "kind", "interval_km", "interval_days", "last_service_km", "last_service_at", "active", "created_at", "updated_at"}).
		AddRow("p1", "v1", "oil_change", "", "distance", 5000, nil, 10000, nil, true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM maintenance_plans WHERE active = true AND vehicle_id").
		WithArgs("v1").
		WillReturnRows(rows)

	plans, err := repo.ListPlans(context.Background(), "v1")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, models.ServiceTypeOilChange, plans[0].ServiceType)
	require.NotNil(t, plans[0].IntervalKM)
	assert.Equal(t, 5000, *plans[0].IntervalKM)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryCompleteService(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	lastKM := 15200
	lastAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	faultID := "f1"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO maintenance_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE maintenance_plans SET last_service_km = $2, last_service_at = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("p1", 15200, lastAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE faults SET status").
		WithArgs("f1", models.FaultStatusRepaired, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vehicles SET mileage_km = GREATEST(mileage_km, $2), updated_at = $3 WHERE id = $1")).
		WithArgs("v1", 15200, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CompleteService(context.Background(), CompleteServiceParams{
		Log: &models.MaintenanceLog{
			VehicleID:   "v1",
			ServiceType: models.ServiceTypeOilChange,
			MileageKM:   15200,
			Cost:        120,
			PerformedBy: "tech1",
			PerformedAt: lastAt,
		},
		PlanID:        "p1",
		LastServiceKM: &lastKM,
		LastServiceAt: &lastAt,
		FaultID:       &faultID,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryCompleteServiceWithoutPlan(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO maintenance_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE vehicles SET mileage_km = GREATEST").
		WithArgs("v1", 8000, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CompleteService(context.Background(), CompleteServiceParams{
		Log: &models.MaintenanceLog{
			VehicleID:   "v1",
			ServiceType: models.ServiceTypeWash,
			MileageKM:   8000,
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
