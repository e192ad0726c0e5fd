package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MaxCorsMaxAge caps how long browsers may cache a preflight
const MaxCorsMaxAge = 86400

// CorsConfig lists the browser origins allowed to call the API and open
// notification websockets.
type CorsConfig struct {
	ConfigKey        string    `json:"config_key"`
	AllowedOrigins   []string  `json:"allowed_origins"`
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate checks that every origin is a bare scheme://host[:port] and that
// a wildcard is not combined with credentials, which browsers refuse.
func (c *CorsConfig) Validate() error {
	if len(c.AllowedOrigins) == 0 {
		return errors.New("allowed_origins cannot be empty")
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			if c.AllowCredentials {
				return errors.New("a wildcard origin cannot be used with credentials")
			}
			continue
		}
		u, err := url.Parse(o)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("origin %q must be an absolute http(s) origin", o)
		}
		if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
			return fmt.Errorf("origin %q must not carry a path, query or credentials", o)
		}
	}
	if c.MaxAge < 0 || c.MaxAge > MaxCorsMaxAge {
		return fmt.Errorf("max_age must be between 0 and %d", MaxCorsMaxAge)
	}
	return nil
}

// ParseOrigins splits a comma-separated origin list, trimming blanks and
// trailing slashes and dropping duplicates. Scheme and host are lowercased
// the way browsers send them in the Origin header.
func ParseOrigins(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := NormalizeOrigin(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// NormalizeOrigin trims an origin to the form compared against the Origin header
func NormalizeOrigin(o string) string {
	o = strings.TrimSuffix(strings.TrimSpace(o), "/")
	if i := strings.Index(o, "://"); i > 0 {
		o = strings.ToLower(o)
	}
	return o
}
