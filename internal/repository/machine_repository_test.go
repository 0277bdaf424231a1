package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planfab/planfab-api/internal/models"
)

func newMachineMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMachineRepositoryList(t *testing.T) {
	db, mock, cleanup := newMachineMock(t)
	defer cleanup()
	repo := NewMachineRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "status", "units", "time_per_unit", "created_at", "updated_at"}).
		AddRow("m1", "VMC-1", "active", 0, 120, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, status, units, time_per_unit, created_at, updated_at\nFROM machines WHERE 1=1 ORDER BY name ASC LIMIT 50 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM machines WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	machines, total, err := repo.List(context.Background(), models.MachineFilter{})
	require.NoError(t, err)
	assert.Len(t, machines, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newMachineMock(t)
	defer cleanup()
	repo := NewMachineRepository(db)

	status := models.MachineStatusMaintenance
	rows := sqlmock.NewRows([]string{"id", "name", "status", "units", "time_per_unit", "created_at", "updated_at"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, status, units, time_per_unit, created_at, updated_at\nFROM machines WHERE 1=1 AND status = $1 ORDER BY name ASC LIMIT 50 OFFSET 0")).
		WithArgs("maintenance").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM machines WHERE 1=1 AND status = $1")).
		WithArgs("maintenance").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	machines, total, err := repo.List(context.Background(), models.MachineFilter{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, machines)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMachineMock(t)
	defer cleanup()
	repo := NewMachineRepository(db)

	mock.ExpectExec("INSERT INTO machines").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	machine := &models.Machine{Name: "VMC-1", Status: models.MachineStatusActive, TimePerUnit: 120}
	err := repo.Create(context.Background(), machine)
	require.NoError(t, err)
	assert.NotEmpty(t, machine.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMachineMock(t)
	defer cleanup()
	repo := NewMachineRepository(db)

	mock.ExpectExec("DELETE FROM machines WHERE id = \\$1").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
