package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/planfab/planfab-api/internal/models"
)

// CompanyRepository persists production run configurations.
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository constructs a company repository.
func NewCompanyRepository(db *sqlx.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// List returns all companies, newest first.
func (r *CompanyRepository) List(ctx context.Context) ([]models.Company, error) {
	const query = `SELECT id, name, address, gst, quantity, start_date_time, end_date_time, daily_hours, machines, created_at, updated_at
FROM companies ORDER BY created_at DESC`
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

// Count returns the number of companies.
func (r *CompanyRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM companies"); err != nil {
		return 0, fmt.Errorf("count companies: %w", err)
	}
	return total, nil
}

// FindByID fetches one company.
func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*models.Company, error) {
	const query = `SELECT id, name, address, gst, quantity, start_date_time, end_date_time, daily_hours, machines, created_at, updated_at
FROM companies WHERE id = $1`
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		return nil, err
	}
	return &company, nil
}

// Create inserts a company.
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now
	const query = `INSERT INTO companies (id, name, address, gst, quantity, start_date_time, end_date_time, daily_hours, machines, created_at, updated_at)
VALUES (:id, :name, :address, :gst, :quantity, :start_date_time, :end_date_time, :daily_hours, :machines, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, company); err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	return nil
}

// Update modifies a company.
func (r *CompanyRepository) Update(ctx context.Context, company *models.Company) error {
	company.UpdatedAt = time.Now().UTC()
	const query = `UPDATE companies SET name = :name, address = :address, gst = :gst, quantity = :quantity,
start_date_time = :start_date_time, end_date_time = :end_date_time, daily_hours = :daily_hours,
machines = :machines, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, company); err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

// Delete removes a company.
func (r *CompanyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM companies WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	return nil
}
