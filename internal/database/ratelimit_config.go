package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/taskboard/internal/models"
)

// RatelimitConfigRepository handles per-scope rate limit configuration
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new ratelimit config repository
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get retrieves the config for a scope; a missing row yields nil, nil
func (r *RatelimitConfigRepository) Get(ctx context.Context, scope string) (*models.RatelimitConfig, error) {
	c := &models.RatelimitConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1
	`, scope).Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ratelimit config %s: %w", scope, err)
	}
	return c, nil
}

// List returns every configured scope
func (r *RatelimitConfigRepository) List(ctx context.Context) ([]models.RatelimitConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT config_key, rate, created_at, updated_at FROM ratelimit_config ORDER BY config_key
	`)
	if err != nil {
		return nil, fmt.Errorf("list ratelimit configs: %w", err)
	}
	defer closeRows(rows)

	var out []models.RatelimitConfig
	for rows.Next() {
		var c models.RatelimitConfig
		if err := rows.Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ratelimit config: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratelimit configs: %w", err)
	}
	return out, nil
}

// Set upserts the config for c.ConfigKey (the api scope when empty)
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	rate := strings.TrimSpace(c.Rate)
	if rate == "" {
		return fmt.Errorf("rate cannot be empty")
	}
	scope := c.ConfigKey
	if scope == "" {
		scope = models.RatelimitScopeAPI
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
	`, scope, rate, now, now)
	if err != nil {
		return fmt.Errorf("set ratelimit config %s: %w", scope, err)
	}
	return nil
}
