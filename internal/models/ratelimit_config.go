package models

import "time"

// Rate limit scopes. Each scope has its own row and its own limiter
const (
	RatelimitScopeAPI     = "api"
	RatelimitScopeAuth    = "auth"
	RatelimitScopeUploads = "uploads"
)

// RatelimitConfig holds the limiter rate for one scope in ulule format ("5-S", "100-M")
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
