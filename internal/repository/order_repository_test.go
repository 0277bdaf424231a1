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

func newOrderMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func orderRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "product_name", "part_number", "process_name", "machine_id", "machine_name", "start_date", "end_date", "units", "status", "created_at", "updated_at"})
}

func TestOrderRepositoryListActiveByMachine(t *testing.T) {
	db, mock, cleanup := newOrderMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	rows := orderRows().
		AddRow("o1", "c1", "Bracket", "PN-1", "Milling", "m1", "VMC-1", time.Now(), time.Now().Add(24*time.Hour), 10, "pending", time.Now(), time.Now())
	mock.ExpectQuery("SELECT .* FROM orders\nWHERE machine_id = \\$1 AND status NOT IN \\('completed', 'cancelled'\\) ORDER BY start_date ASC").
		WithArgs("m1").
		WillReturnRows(rows)

	orders, err := repo.ListActiveByMachine(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
	assert.True(t, orders[0].Blocking())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newOrderMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	order := &models.Order{CompanyID: "c1", MachineID: "m1", MachineName: "VMC-1", StartDate: time.Now(), EndDate: time.Now().Add(48 * time.Hour), Units: 5}
	err := repo.Create(context.Background(), order)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryResolveInsideTransaction(t *testing.T) {
	db, mock, cleanup := newOrderMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET end_date = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("o1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateEndDateTx(context.Background(), tx, "o1", time.Now()))
	order := &models.Order{CompanyID: "c1", MachineID: "m1", StartDate: time.Now(), EndDate: time.Now().Add(time.Hour)}
	require.NoError(t, repo.CreateTx(context.Background(), tx, order))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newOrderMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("pending", 3).
		AddRow("completed", 7)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS total FROM orders GROUP BY status")).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.OrderStatusPending])
	assert.Equal(t, 7, counts[models.OrderStatusCompleted])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newOrderMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("missing", "completed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.OrderStatusCompleted)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
