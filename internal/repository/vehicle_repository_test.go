package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yisusc1/fleetops-api/internal/models"
)

func vehicleColumns() []string {
	return []string{"id", "plate", "model", "type", "status", "driver_id", "mileage_km", "fuel_level", "created_at", "updated_at", "driver_name"}
}

func TestVehicleRepositoryList(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewVehicleRepository(db)

	rows := sqlmock.NewRows(vehicleColumns()).
		AddRow("v1", "AB123CD", "Hilux", "truck", "available", nil, 10000, 80, time.Now(), time.Now(), nil)
	mock.ExpectQuery(`(?s)SELECT v.id, v.plate, .+ FROM vehicles v LEFT JOIN users u ON u.id = v.driver_id WHERE 1=1 ORDER BY v.created_at DESC LIMIT 20 OFFSET 0`).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(v.id) FROM vehicles v LEFT JOIN users u ON u.id = v.driver_id WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	vehicles, total, err := repo.List(context.Background(), models.VehicleFilter{})
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "AB123CD", vehicles[0].Plate)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleRepositoryListFilterByStatus(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewVehicleRepository(db)

	mock.ExpectQuery("FROM vehicles v LEFT JOIN users u ON u.id = v.driver_id WHERE 1=1 AND v.status").
		WithArgs(models.VehicleStatusAvailable).
		WillReturnRows(sqlmock.NewRows(vehicleColumns()))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(models.VehicleStatusAvailable).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	status := models.VehicleStatusAvailable
	vehicles, total, err := repo.List(context.Background(), models.VehicleFilter{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, vehicles)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewVehicleRepository(db)

	mock.ExpectQuery("SELECT v.id, v.plate").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewVehicleRepository(db)

	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("available", 7).
		AddRow("on_trip", 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(id) AS total FROM vehicles GROUP BY status")).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, counts[models.VehicleStatusAvailable])
	assert.Equal(t, 2, counts[models.VehicleStatusOnTrip])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewVehicleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE vehicles SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("v1", models.VehicleStatusInactive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "v1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
