package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/planfab/planfab-api/internal/models"
)

// OrderRepository persists committed machine bookings.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs an order repository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, company_id, product_name, part_number, process_name, machine_id, machine_name, start_date, end_date, units, status, created_at, updated_at`

// List returns orders matching the filter plus the matching total.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CompanyID != "" {
		where = append(where, fmt.Sprintf("company_id = $%d", len(args)+1))
		args = append(args, filter.CompanyID)
	}
	if filter.MachineID != "" {
		where = append(where, fmt.Sprintf("machine_id = $%d", len(args)+1))
		args = append(args, filter.MachineID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(*filter.Status))
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY start_date ASC LIMIT %d OFFSET %d`,
		orderColumns, whereClause, size, offset)
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return orders, total, nil
}

// FindByID fetches one order.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE id = $1", orderColumns)
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListActiveByMachine returns the orders that participate in conflict checks
// for one machine: everything except completed and cancelled.
func (r *OrderRepository) ListActiveByMachine(ctx context.Context, machineID string) ([]models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders
WHERE machine_id = $1 AND status NOT IN ('completed', 'cancelled') ORDER BY start_date ASC`, orderColumns)
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, machineID); err != nil {
		return nil, fmt.Errorf("list active orders for machine %s: %w", machineID, err)
	}
	return orders, nil
}

// Create inserts an order outside a transaction.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	prepareOrder(order)
	if _, err := r.db.NamedExecContext(ctx, insertOrderQuery, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// CreateTx inserts an order inside the supplied transaction.
func (r *OrderRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	prepareOrder(order)
	if _, err := tx.NamedExecContext(ctx, insertOrderQuery, order); err != nil {
		return fmt.Errorf("create order in tx: %w", err)
	}
	return nil
}

// UpdateEndDateTx shortens an order's end date inside the supplied transaction.
func (r *OrderRepository) UpdateEndDateTx(ctx context.Context, tx *sqlx.Tx, id string, endDate time.Time) error {
	res, err := tx.ExecContext(ctx, "UPDATE orders SET end_date = $2, updated_at = $3 WHERE id = $1",
		id, endDate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update order end date: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update order %s: no rows", id)
	}
	return nil
}

// UpdateStatus moves an order to a new lifecycle state.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1",
		id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update order %s: no rows", id)
	}
	return nil
}

// CountByStatus returns order counts grouped by status.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) AS total FROM orders GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.OrderStatus]int)
	for rows.Next() {
		var status string
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan order status count: %w", err)
		}
		counts[models.OrderStatus(status)] = total
	}
	return counts, rows.Err()
}

// SumActiveUnits totals units on orders still in flight.
func (r *OrderRepository) SumActiveUnits(ctx context.Context) (int, error) {
	var total int
	const query = `SELECT COALESCE(SUM(units), 0) FROM orders WHERE status IN ('pending', 'in-progress')`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("sum active units: %w", err)
	}
	return total, nil
}

const insertOrderQuery = `INSERT INTO orders (id, company_id, product_name, part_number, process_name, machine_id, machine_name, start_date, end_date, units, status, created_at, updated_at)
VALUES (:id, :company_id, :product_name, :part_number, :process_name, :machine_id, :machine_name, :start_date, :end_date, :units, :status, :created_at, :updated_at)`

func prepareOrder(order *models.Order) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
}
