package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/benvon/taskboard/internal/models"
)

// SettingsRepository handles per-user settings
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves a user's settings, or ErrNotFound when none exist yet
func (r *SettingsRepository) Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	var (
		s            models.UserSettings
		columnsOrder []string
		lastSummary  nullDate
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, theme, auto_archive_days, default_profile_id, columns_order,
			last_daily_summary, created_at, updated_at
		FROM user_settings WHERE user_id = $1
	`, userID).Scan(
		&s.UserID,
		&s.Theme,
		&s.AutoArchiveDays,
		&s.DefaultProfileID,
		pq.Array(&columnsOrder),
		&lastSummary,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settings for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	s.ColumnsOrder = make([]models.TaskStatus, len(columnsOrder))
	for i, c := range columnsOrder {
		s.ColumnsOrder[i] = models.TaskStatus(c)
	}
	s.LastDailySummary = lastSummary.ptr()
	return &s, nil
}

// Create inserts a settings row, leaving an existing one untouched
func (r *SettingsRepository) Create(ctx context.Context, s *models.UserSettings) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, theme, auto_archive_days, default_profile_id, columns_order,
			last_daily_summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING
	`, s.UserID, s.Theme, s.AutoArchiveDays, s.DefaultProfileID, pq.Array(statusStrings(s.ColumnsOrder)),
		dateValue(s.LastDailySummary), now, now)
	if err != nil {
		return fmt.Errorf("failed to create settings: %w", err)
	}
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// Update writes every settings column
func (r *SettingsRepository) Update(ctx context.Context, s *models.UserSettings) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE user_settings
		SET theme = $2, auto_archive_days = $3, default_profile_id = $4, columns_order = $5,
			last_daily_summary = $6, updated_at = $7
		WHERE user_id = $1
		RETURNING updated_at
	`, s.UserID, s.Theme, s.AutoArchiveDays, s.DefaultProfileID, pq.Array(statusStrings(s.ColumnsOrder)),
		dateValue(s.LastDailySummary), time.Now()).Scan(&s.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("settings for user %s: %w", s.UserID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

func statusStrings(in []models.TaskStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
