package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yisusc1/fleetops-api/internal/models"
)

func newOdometerRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOdometerRepositoryLatestFuelKM(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT mileage_km FROM fuel_logs WHERE vehicle_id = $1 ORDER BY recorded_at DESC LIMIT 1")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"mileage_km"}).AddRow(10250))

	km, err := repo.LatestFuelKM(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 10250, km)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOdometerRepositoryLatestFuelKMNoRows(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	mock.ExpectQuery("SELECT mileage_km FROM fuel_logs").
		WithArgs("v1").
		WillReturnError(sql.ErrNoRows)

	km, err := repo.LatestFuelKM(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 0, km)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOdometerRepositoryLocateSourceFuelWinsTie(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, recorded_at FROM fuel_logs").
		WithArgs("v1", 10000).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow("f1", at))
	mock.ExpectQuery("SELECT id, returned_at AS recorded_at FROM trip_reports").
		WithArgs("v1", 10000, models.TripStatusClosed).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow("t1", at))

	ref, err := repo.LocateSource(context.Background(), "v1", 10000)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, models.OdometerSourceFuel, ref.Source)
	assert.Equal(t, "f1", ref.RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOdometerRepositoryLocateSourceNewerTripWins(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	fuelAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tripAt := fuelAt.Add(time.Hour)
	mock.ExpectQuery("SELECT id, recorded_at FROM fuel_logs").
		WithArgs("v1", 10000).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow("f1", fuelAt))
	mock.ExpectQuery("SELECT id, returned_at AS recorded_at FROM trip_reports").
		WithArgs("v1", 10000, models.TripStatusClosed).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow("t1", tripAt))

	ref, err := repo.LocateSource(context.Background(), "v1", 10000)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, models.OdometerSourceTrip, ref.Source)
	assert.Equal(t, "t1", ref.RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOdometerRepositoryLocateSourceNone(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	mock.ExpectQuery("SELECT id, recorded_at FROM fuel_logs").
		WithArgs("v1", 10000).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, returned_at AS recorded_at FROM trip_reports").
		WithArgs("v1", 10000, models.TripStatusClosed).
		WillReturnError(sql.ErrNoRows)

	ref, err := repo.LocateSource(context.Background(), "v1", 10000)
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOdometerRepositoryApplyFuelReadingWithCorrection(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fuel_logs SET mileage_km = $2, corrected = true WHERE id = $1")).
		WithArgs("f1", 9500).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fuel_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vehicles SET mileage_km = $2, fuel_level = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("v1", 9500, 100, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyFuelReading(context.Background(), ApplyFuelParams{
		Log: &models.FuelLog{VehicleID: "v1", MileageKM: 9500, Liters: 25},
		Correction: &CorrectionPatch{
			Ref:   models.OdometerEventRef{Source: models.OdometerSourceFuel, RecordID: "f1", MileageKM: 10000},
			NewKM: 9500,
		},
		VehicleKM: 9500,
		FuelLevel: 100,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOdometerRepositoryApplyFuelReadingCorrectionTargetGone(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE fuel_logs SET mileage_km").
		WithArgs("f1", 9500).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyFuelReading(context.Background(), ApplyFuelParams{
		Log: &models.FuelLog{VehicleID: "v1", MileageKM: 9500, Liters: 25},
		Correction: &CorrectionPatch{
			Ref:   models.OdometerEventRef{Source: models.OdometerSourceFuel, RecordID: "f1"},
			NewKM: 9500,
		},
		VehicleKM: 9500,
		FuelLevel: 100,
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOdometerRepositoryApplyTripClose(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	returnedAt := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE trip_reports SET end_km = $2, status = $3, returned_at = $4 WHERE id = $1 AND status = $5")).
		WithArgs("t1", 10180, models.TripStatusClosed, returnedAt, models.TripStatusOpen).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vehicles SET mileage_km = $2, status = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("v1", 10180, models.VehicleStatusAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyTripClose(context.Background(), ApplyTripCloseParams{
		TripID:     "t1",
		VehicleID:  "v1",
		EndKM:      10180,
		ReturnedAt: returnedAt,
		VehicleKM:  10180,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOdometerRepositoryApplyTripCloseAlreadyClosed(t *testing.T) {
	db, mock, cleanup := newOdometerRepoMock(t)
	defer cleanup()
	repo := NewOdometerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trip_reports SET end_km").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyTripClose(context.Background(), ApplyTripCloseParams{
		TripID:     "t1",
		VehicleID:  "v1",
		EndKM:      10180,
		ReturnedAt: time.Now(),
		VehicleKM:  10180,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
