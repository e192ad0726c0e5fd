package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

var profileQueryColumns = columnSet{
	"id":      "id",
	"user_id": "user_id",
	"name":    "name",
	"order":   `"order"`,
}

// ProfileRepository handles profile database operations
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Select returns profiles matching q
func (r *ProfileRepository) Select(ctx context.Context, q Query) ([]models.Profile, error) {
	clause, args, err := q.build(profileQueryColumns, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, color, "order", created_at, updated_at
		FROM profiles WHERE TRUE`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer closeRows(rows)

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Color, &p.Order, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

// List returns a user's profiles by display order
func (r *ProfileRepository) List(ctx context.Context, userID uuid.UUID) ([]models.Profile, error) {
	return r.Select(ctx, Query{
		Filters: []Filter{Eq("user_id", userID)},
		OrderBy: []Order{{Column: "order"}},
	})
}

// Create inserts a profile
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO profiles (id, user_id, name, color, "order", created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.Name, p.Color, p.Order, now, now).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Update writes the profile's name, color and order
func (r *ProfileRepository) Update(ctx context.Context, p *models.Profile) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE profiles SET name = $2, color = $3, "order" = $4, updated_at = $5
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Name, p.Color, p.Order, time.Now()).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("profile %s: %w", p.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// Delete removes a profile with its categories and tasks
func (r *ProfileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return expectAffected(result, "profile "+id.String())
}
