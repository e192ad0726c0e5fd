package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

const userColumns = `id, email, provider_id, name, email_verified, created_at, updated_at`

// UserRepository mirrors identity provider subjects into the users table
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) getBy(ctx context.Context, column string, value any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value).Scan(
		&user.ID,
		&user.Email,
		&user.ProviderID,
		&user.Name,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return user, nil
}

// Upsert creates the user for a provider subject on first sign-in and keeps
// email and name in sync on later ones. The stored row is written back to user.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.ProviderID == nil || *user.ProviderID == "" {
		return fmt.Errorf("provider id is required")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, provider_id, name, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (provider_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = COALESCE(EXCLUDED.name, users.name),
			email_verified = EXCLUDED.email_verified,
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		user.ID,
		user.Email,
		user.ProviderID,
		user.Name,
		user.EmailVerified,
		now,
	).Scan(
		&user.ID,
		&user.Email,
		&user.ProviderID,
		&user.Name,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// Delete deletes a user and, by cascade, everything the user owns
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(result, "user "+id.String())
}
