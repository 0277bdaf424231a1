package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/planfab/planfab-api/internal/models"
)

// ShiftRepository persists shift settings.
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository constructs a shift repository.
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// List returns all shifts ordered by start time.
func (r *ShiftRepository) List(ctx context.Context) ([]models.Shift, error) {
	const query = `SELECT id, name, start_time, end_time, created_at, updated_at FROM shifts ORDER BY start_time ASC`
	var shifts []models.Shift
	if err := r.db.SelectContext(ctx, &shifts, query); err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return shifts, nil
}

// Save inserts or updates a shift.
func (r *ShiftRepository) Save(ctx context.Context, shift *models.Shift) error {
	now := time.Now().UTC()
	shift.UpdatedAt = now
	if shift.ID == "" {
		shift.ID = uuid.NewString()
		shift.CreatedAt = now
		const insert = `INSERT INTO shifts (id, name, start_time, end_time, created_at, updated_at)
VALUES (:id, :name, :start_time, :end_time, :created_at, :updated_at)`
		if _, err := r.db.NamedExecContext(ctx, insert, shift); err != nil {
			return fmt.Errorf("create shift: %w", err)
		}
		return nil
	}
	const update = `UPDATE shifts SET name = :name, start_time = :start_time, end_time = :end_time,
updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, update, shift); err != nil {
		return fmt.Errorf("update shift: %w", err)
	}
	return nil
}

// Delete removes a shift.
func (r *ShiftRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM shifts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("delete shift %s: no rows", id)
	}
	return nil
}
