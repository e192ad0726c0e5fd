package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL     string
	ServerPort      string
	BaseURL         string
	FrontendURL     string
	EnableHSTS      bool
	OIDCProvider    string
	RedisURL        string
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
	OTELInsecure    bool
	OTELSampleRatio float64

	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobUseSSL    bool

	// Location is the zone whose calendar date decides "today" on the board
	Location       *time.Location
	EditDebounce   time.Duration
	GatewayTimeout time.Duration
	SessionTTL     time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		OIDCProvider:    getEnv("OIDC_PROVIDER", "cognito"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),

		BlobEndpoint:  getEnv("BLOB_ENDPOINT", ""),
		BlobAccessKey: getEnv("BLOB_ACCESS_KEY", ""),
		BlobSecretKey: getEnv("BLOB_SECRET_KEY", ""),
		BlobBucket:    getEnv("BLOB_BUCKET", "attachments"),
		BlobUseSSL:    getEnvBool("BLOB_USE_SSL", true),

		EditDebounce:   getEnvDuration("EDIT_DEBOUNCE", 500*time.Millisecond),
		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		SessionTTL:     getEnvDuration("SESSION_TTL", 7*24*time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.OTELSampleRatio <= 0 || cfg.OTELSampleRatio > 1 {
		return nil, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be greater than 0 and at most 1")
	}

	if cfg.EditDebounce <= 0 || cfg.GatewayTimeout <= 0 || cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("EDIT_DEBOUNCE, GATEWAY_TIMEOUT and SESSION_TTL must be positive")
	}

	return cfg, nil
}

// BlobConfigured reports whether attachment storage is set up
func (c *Config) BlobConfigured() bool {
	return c.BlobEndpoint != "" && c.BlobAccessKey != "" && c.BlobSecretKey != ""
}

// SecureCookies reports whether session cookies need the Secure flag
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("500ms") or plain milliseconds ("500")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms := getEnvInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
