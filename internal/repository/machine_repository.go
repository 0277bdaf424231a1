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

// MachineRepository persists shop floor machines.
type MachineRepository struct {
	db *sqlx.DB
}

// NewMachineRepository constructs a machine repository.
func NewMachineRepository(db *sqlx.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

// List returns machines matching the filter plus the unfiltered total.
func (r *MachineRepository) List(ctx context.Context, filter models.MachineFilter) ([]models.Machine, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(*filter.Status))
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
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

	query := fmt.Sprintf(`SELECT id, name, status, units, time_per_unit, created_at, updated_at
FROM machines WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`, whereClause, size, offset)
	var machines []models.Machine
	if err := r.db.SelectContext(ctx, &machines, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list machines: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM machines WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count machines: %w", err)
	}
	return machines, total, nil
}

// CountByStatus returns machine counts grouped by status.
func (r *MachineRepository) CountByStatus(ctx context.Context) (map[models.MachineStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) AS total FROM machines GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count machines by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.MachineStatus]int)
	for rows.Next() {
		var status string
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan machine status count: %w", err)
		}
		counts[models.MachineStatus(status)] = total
	}
	return counts, rows.Err()
}

// FindByID fetches one machine.
func (r *MachineRepository) FindByID(ctx context.Context, id string) (*models.Machine, error) {
	const query = `SELECT id, name, status, units, time_per_unit, created_at, updated_at
FROM machines WHERE id = $1`
	var machine models.Machine
	if err := r.db.GetContext(ctx, &machine, query, id); err != nil {
		return nil, err
	}
	return &machine, nil
}

// Create inserts a machine.
func (r *MachineRepository) Create(ctx context.Context, machine *models.Machine) error {
	if machine.ID == "" {
		machine.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if machine.CreatedAt.IsZero() {
		machine.CreatedAt = now
	}
	machine.UpdatedAt = now
	const query = `INSERT INTO machines (id, name, status, units, time_per_unit, created_at, updated_at)
VALUES (:id, :name, :status, :units, :time_per_unit, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, machine); err != nil {
		return fmt.Errorf("create machine: %w", err)
	}
	return nil
}

// Update modifies a machine.
func (r *MachineRepository) Update(ctx context.Context, machine *models.Machine) error {
	machine.UpdatedAt = time.Now().UTC()
	const query = `UPDATE machines SET name = :name, status = :status, units = :units,
time_per_unit = :time_per_unit, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, machine); err != nil {
		return fmt.Errorf("update machine: %w", err)
	}
	return nil
}

// Delete removes a machine.
func (r *MachineRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM machines WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete machine: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("delete machine %s: no rows", id)
	}
	return nil
}
