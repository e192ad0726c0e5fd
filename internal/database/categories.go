package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

var categoryQueryColumns = columnSet{
	"id":         "id",
	"profile_id": "profile_id",
	"name":       "name",
	"order":      `"order"`,
}

// CategoryRepository handles category database operations
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Select returns categories matching q
func (r *CategoryRepository) Select(ctx context.Context, q Query) ([]models.Category, error) {
	clause, args, err := q.build(categoryQueryColumns, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build category query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, name, color, "order", created_at
		FROM categories WHERE TRUE`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer closeRows(rows)

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.ProfileID, &c.Name, &c.Color, &c.Order, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

// ListByProfile returns a profile's categories by display order
func (r *CategoryRepository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.Category, error) {
	return r.Select(ctx, Query{
		Filters: []Filter{Eq("profile_id", profileID)},
		OrderBy: []Order{{Column: "order"}},
	})
}

// Create inserts a category
func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO categories (id, profile_id, name, color, "order", created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.ProfileID, c.Name, c.Color, c.Order, time.Now()).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// Update writes the category's name, color and order
func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = $2, color = $3, "order" = $4 WHERE id = $1
	`, c.ID, c.Name, c.Color, c.Order)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return expectAffected(result, "category "+c.ID.String())
}

// Delete removes a category; its tasks become uncategorized
func (r *CategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return expectAffected(result, "category "+id.String())
}
