package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

const oidcColumns = `id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url,
	recovery_url, account_url, created_at, updated_at`

// OIDCConfigRepository handles identity provider registrations
type OIDCConfigRepository struct {
	db *DB
}

// NewOIDCConfigRepository creates a new OIDC config repository
func NewOIDCConfigRepository(db *DB) *OIDCConfigRepository {
	return &OIDCConfigRepository{db: db}
}

// Set creates or replaces the registration for config.Provider
func (r *OIDCConfigRepository) Set(ctx context.Context, config *models.OIDCConfig) error {
	if config.Provider == "" || config.Issuer == "" || config.ClientID == "" || config.RedirectURI == "" {
		return fmt.Errorf("provider, issuer, client_id and redirect_uri are required")
	}
	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO oidc_config (`+oidcColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (provider) DO UPDATE SET
			issuer = EXCLUDED.issuer,
			domain = EXCLUDED.domain,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			redirect_uri = EXCLUDED.redirect_uri,
			jwks_url = EXCLUDED.jwks_url,
			recovery_url = EXCLUDED.recovery_url,
			account_url = EXCLUDED.account_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`,
		config.ID,
		config.Provider,
		config.Issuer,
		config.Domain,
		config.ClientID,
		config.ClientSecret,
		config.RedirectURI,
		config.JWKSUrl,
		config.RecoveryURL,
		config.AccountURL,
		now,
	).Scan(&config.ID, &config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set OIDC config: %w", err)
	}
	return nil
}

// GetByProvider retrieves the registration for a provider name
func (r *OIDCConfigRepository) GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+oidcColumns+` FROM oidc_config WHERE provider = $1`, provider)
	config, err := scanOIDCConfig(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("OIDC config for provider %s: %w", provider, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// GetAll retrieves every registration ordered by provider name
func (r *OIDCConfigRepository) GetAll(ctx context.Context) ([]*models.OIDCConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+oidcColumns+` FROM oidc_config ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query OIDC configs: %w", err)
	}
	defer closeRows(rows)

	var configs []*models.OIDCConfig
	for rows.Next() {
		config, err := scanOIDCConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan OIDC config: %w", err)
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating OIDC configs: %w", err)
	}
	return configs, nil
}

// Delete removes a provider registration
func (r *OIDCConfigRepository) Delete(ctx context.Context, provider string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oidc_config WHERE provider = $1`, provider)
	if err != nil {
		return fmt.Errorf("failed to delete OIDC config: %w", err)
	}
	return expectAffected(result, "OIDC config "+provider)
}

func scanOIDCConfig(row rowScanner) (*models.OIDCConfig, error) {
	config := &models.OIDCConfig{}
	err := row.Scan(
		&config.ID,
		&config.Provider,
		&config.Issuer,
		&config.Domain,
		&config.ClientID,
		&config.ClientSecret,
		&config.RedirectURI,
		&config.JWKSUrl,
		&config.RecoveryURL,
		&config.AccountURL,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return config, nil
}
