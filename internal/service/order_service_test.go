package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return ts
}

func TestDetectConflictsBoundaryTouch(t *testing.T) {
	existing := []models.Order{{
		ID:        "a",
		MachineID: "M1",
		StartDate: day(t, "2025-01-01"),
		EndDate:   day(t, "2025-01-10"),
		Status:    models.OrderStatusPending,
	}}
	candidate := models.Order{
		MachineID: "M1",
		StartDate: day(t, "2025-01-10"),
		EndDate:   day(t, "2025-01-15"),
	}

	conflicts := detectConflicts(existing, candidate)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "a", conflicts[0].ID)
}

func TestDetectConflictsDifferentMachine(t *testing.T) {
	existing := []models.Order{{
		ID:        "a",
		MachineID: "M1",
		StartDate: day(t, "2025-01-01"),
		EndDate:   day(t, "2025-01-10"),
		Status:    models.OrderStatusPending,
	}}
	candidate := models.Order{
		MachineID: "M2",
		StartDate: day(t, "2025-01-10"),
		EndDate:   day(t, "2025-01-15"),
	}

	assert.Empty(t, detectConflicts(existing, candidate))
}

func TestDetectConflictsIgnoresFinishedOrders(t *testing.T) {
	for _, status := range []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled} {
		existing := []models.Order{{
			ID:        "a",
			MachineID: "M1",
			StartDate: day(t, "2025-01-01"),
			EndDate:   day(t, "2025-01-10"),
			Status:    status,
		}}
		candidate := models.Order{
			MachineID: "M1",
			StartDate: day(t, "2025-01-05"),
			EndDate:   day(t, "2025-01-07"),
		}
		assert.Empty(t, detectConflicts(existing, candidate), string(status))
	}
}

func TestDetectConflictsSymmetric(t *testing.T) {
	a := models.Order{ID: "a", MachineID: "M1", StartDate: day(t, "2025-01-01"), EndDate: day(t, "2025-01-10"), Status: models.OrderStatusPending}
	b := models.Order{ID: "b", MachineID: "M1", StartDate: day(t, "2025-01-08"), EndDate: day(t, "2025-01-20"), Status: models.OrderStatusPending}

	forward := detectConflicts([]models.Order{a}, b)
	backward := detectConflicts([]models.Order{b}, a)
	assert.Equal(t, len(forward) > 0, len(backward) > 0)
	assert.NotEmpty(t, forward)
}

type fakeOrderRepo struct {
	active    []models.Order
	created   *models.Order
	txCreated *models.Order
	resolved  map[string]time.Time
	statuses  map[string]models.OrderStatus
	byID      map[string]*models.Order
}

func (f *fakeOrderRepo) List(context.Context, models.OrderFilter) ([]models.Order, int, error) {
	return f.active, len(f.active), nil
}

func (f *fakeOrderRepo) FindByID(_ context.Context, id string) (*models.Order, error) {
	if order, ok := f.byID[id]; ok {
		return order, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeOrderRepo) ListActiveByMachine(context.Context, string) ([]models.Order, error) {
	return f.active, nil
}

func (f *fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	f.created = order
	return nil
}

func (f *fakeOrderRepo) CreateTx(_ context.Context, _ *sqlx.Tx, order *models.Order) error {
	f.txCreated = order
	return nil
}

func (f *fakeOrderRepo) UpdateEndDateTx(_ context.Context, _ *sqlx.Tx, id string, endDate time.Time) error {
	if f.resolved == nil {
		f.resolved = make(map[string]time.Time)
	}
	f.resolved[id] = endDate
	return nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id string, status models.OrderStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]models.OrderStatus)
	}
	f.statuses[id] = status
	return nil
}

type fakeMachineFinder struct {
	machine *models.Machine
	err     error
}

func (f *fakeMachineFinder) FindByID(context.Context, string) (*models.Machine, error) {
	return f.machine, f.err
}

func newMockTx(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func validCreateRequest(t *testing.T) dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		CompanyID:   "c1",
		ProductName: "Bracket",
		ProcessName: "Milling",
		MachineID:   "m1",
		StartDate:   day(t, "2025-02-01"),
		EndDate:     day(t, "2025-02-10"),
		Units:       10,
	}
}

func TestOrderCreateRejectsConflict(t *testing.T) {
	repo := &fakeOrderRepo{active: []models.Order{{
		ID:        "existing",
		MachineID: "m1",
		StartDate: day(t, "2025-02-05"),
		EndDate:   day(t, "2025-02-15"),
		Status:    models.OrderStatusInProgress,
	}}}
	svc := NewOrderService(repo, &fakeMachineFinder{machine: &models.Machine{ID: "m1", Name: "VMC-1"}}, nil, nil, nil)

	_, err := svc.Create(context.Background(), validCreateRequest(t))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMachineConflict.Code, appErrors.FromError(err).Code)

	var detail *models.MachineConflictError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, "m1", detail.MachineID)
	require.Len(t, detail.Conflicts, 1)
	assert.Equal(t, "existing", detail.Conflicts[0].ID)
	assert.Nil(t, repo.created)
}

func TestOrderCreateCommitsWhenClear(t *testing.T) {
	repo := &fakeOrderRepo{active: []models.Order{{
		ID:        "existing",
		MachineID: "m1",
		StartDate: day(t, "2025-03-01"),
		EndDate:   day(t, "2025-03-10"),
		Status:    models.OrderStatusPending,
	}}}
	svc := NewOrderService(repo, &fakeMachineFinder{machine: &models.Machine{ID: "m1", Name: "VMC-1"}}, nil, nil, nil)

	order, err := svc.Create(context.Background(), validCreateRequest(t))
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "VMC-1", order.MachineName)
}

func TestOrderResolveAndCreateAtomic(t *testing.T) {
	db, mock, cleanup := newMockTx(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeOrderRepo{active: []models.Order{{
		ID:        "existing",
		MachineID: "m1",
		StartDate: day(t, "2025-01-20"),
		EndDate:   day(t, "2025-02-05"),
		Status:    models.OrderStatusPending,
	}}}
	svc := NewOrderService(repo, &fakeMachineFinder{machine: &models.Machine{ID: "m1", Name: "VMC-1"}}, db, nil, nil)

	req := dto.ResolveConflictRequest{
		Resolutions: []dto.ResolutionInput{{OrderID: "existing", NewEndDate: day(t, "2025-01-31")}},
		Order:       validCreateRequest(t),
	}

	order, err := svc.ResolveAndCreate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, repo.txCreated)
	assert.Equal(t, order, repo.txCreated)
	assert.Equal(t, day(t, "2025-01-31"), repo.resolved["existing"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderResolveRejectsInsufficientResolution(t *testing.T) {
	db, _, cleanup := newMockTx(t)
	defer cleanup()

	repo := &fakeOrderRepo{active: []models.Order{{
		ID:        "existing",
		MachineID: "m1",
		StartDate: day(t, "2025-01-20"),
		EndDate:   day(t, "2025-02-05"),
		Status:    models.OrderStatusPending,
	}}}
	svc := NewOrderService(repo, &fakeMachineFinder{machine: &models.Machine{ID: "m1", Name: "VMC-1"}}, db, nil, nil)

	// New end date still touches the candidate's start, inclusive ranges
	// keep it a conflict and nothing is written.
	req := dto.ResolveConflictRequest{
		Resolutions: []dto.ResolutionInput{{OrderID: "existing", NewEndDate: day(t, "2025-02-01")}},
		Order:       validCreateRequest(t),
	}

	_, err := svc.ResolveAndCreate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMachineConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.txCreated)
	assert.Empty(t, repo.resolved)
}

func TestOrderResolveUnknownOrder(t *testing.T) {
	db, _, cleanup := newMockTx(t)
	defer cleanup()

	repo := &fakeOrderRepo{}
	svc := NewOrderService(repo, &fakeMachineFinder{machine: &models.Machine{ID: "m1", Name: "VMC-1"}}, db, nil, nil)

	req := dto.ResolveConflictRequest{
		Resolutions: []dto.ResolutionInput{{OrderID: "ghost", NewEndDate: day(t, "2025-01-31")}},
		Order:       validCreateRequest(t),
	}

	_, err := svc.ResolveAndCreate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOrderUpdateStatus(t *testing.T) {
	order := &models.Order{ID: "o1", Status: models.OrderStatusPending}
	repo := &fakeOrderRepo{byID: map[string]*models.Order{"o1": order}}
	svc := NewOrderService(repo, &fakeMachineFinder{}, nil, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "o1", models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, repo.statuses["o1"])
}
