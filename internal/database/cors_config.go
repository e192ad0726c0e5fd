package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/benvon/taskboard/internal/models"
)

const defaultCorsConfigKey = "default"

// CorsConfigRepository handles CORS configuration in the database
type CorsConfigRepository struct {
	db *DB
}

// NewCorsConfigRepository creates a new CORS config repository
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get retrieves the default CORS config, or nil when none was stored
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	c := &models.CorsConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, defaultCorsConfigKey).Scan(
		&c.ConfigKey,
		pq.Array(&c.AllowedOrigins),
		&c.AllowCredentials,
		&c.MaxAge,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cors config: %w", err)
	}
	return c, nil
}

// Set validates and upserts the default CORS config
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid cors config: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = NOW()
	`, defaultCorsConfigKey, pq.Array(c.AllowedOrigins), c.AllowCredentials, c.MaxAge)
	if err != nil {
		return fmt.Errorf("failed to set cors config: %w", err)
	}
	return nil
}
