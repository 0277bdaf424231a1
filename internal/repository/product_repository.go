package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/planfab/planfab-api/internal/models"
)

// ProductRepository persists the product master.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository constructs a product repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	const query = `SELECT id, name, part_number, description, created_at, updated_at FROM products ORDER BY created_at DESC`
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// FindByID fetches one product.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	const query = `SELECT id, name, part_number, description, created_at, updated_at FROM products WHERE id = $1`
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		return nil, err
	}
	return &product, nil
}

// ExistsByPartNumber reports whether a part number is already taken.
func (r *ProductRepository) ExistsByPartNumber(ctx context.Context, partNumber, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM products WHERE part_number = $1 AND id <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, partNumber, excludeID); err != nil {
		return false, fmt.Errorf("check part number: %w", err)
	}
	return exists, nil
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	const query = `INSERT INTO products (id, name, part_number, description, created_at, updated_at)
VALUES (:id, :name, :part_number, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// Update modifies a product.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	const query = `UPDATE products SET name = :name, part_number = :part_number, description = :description,
updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("delete product %s: no rows", id)
	}
	return nil
}
