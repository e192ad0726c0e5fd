package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Theme is the UI color scheme preference
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// DefaultAutoArchiveDays is the auto-archive threshold given to new users
const DefaultAutoArchiveDays = 2

// UserSettings holds per-user preferences persisted in the database
type UserSettings struct {
	UserID           uuid.UUID    `json:"user_id"`
	Theme            Theme        `json:"theme"`
	AutoArchiveDays  int          `json:"auto_archive_days"`
	DefaultProfileID *uuid.UUID   `json:"default_profile_id,omitempty"`
	ColumnsOrder     []TaskStatus `json:"columns_order"`
	LastDailySummary *civil.Date  `json:"last_daily_summary,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// DefaultUserSettings returns the settings row created alongside a user's first profile
func DefaultUserSettings(userID uuid.UUID) *UserSettings {
	return &UserSettings{
		UserID:          userID,
		Theme:           ThemeSystem,
		AutoArchiveDays: DefaultAutoArchiveDays,
		ColumnsOrder:    append([]TaskStatus(nil), AllStatuses...),
	}
}

// ViewMode selects between the column board and the calendar
type ViewMode string

const (
	ViewModeColumns  ViewMode = "columns"
	ViewModeCalendar ViewMode = "calendar"
)

// Preferences is the small client-only state that survives across sessions
type Preferences struct {
	ViewMode      ViewMode   `json:"view_mode"`
	LastProfileID *uuid.UUID `json:"last_profile_id,omitempty"`
}
