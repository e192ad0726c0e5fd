package models

import (
	"slices"
	"testing"
)

func TestParseOrigins(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "https://board.example.com", []string{"https://board.example.com"}},
		{"comma", "https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"dedup after normalizing", "https://A.com/, https://a.com", []string{"https://a.com"}},
		{"blanks", " , https://a.com ,, ", []string{"https://a.com"}},
		{"wildcard kept", "*", []string{"*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseOrigins(tt.raw); !slices.Equal(got, tt.want) {
				t.Errorf("ParseOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCorsConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     CorsConfig
		wantErr bool
	}{
		{"frontend with cookies", CorsConfig{AllowedOrigins: []string{"https://board.example.com", "http://localhost:3000"}, AllowCredentials: true, MaxAge: 600}, false},
		{"empty", CorsConfig{}, true},
		{"wildcard with credentials", CorsConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, true},
		{"wildcard without credentials", CorsConfig{AllowedOrigins: []string{"*"}}, false},
		{"path", CorsConfig{AllowedOrigins: []string{"https://board.example.com/app"}}, true},
		{"no scheme", CorsConfig{AllowedOrigins: []string{"board.example.com"}}, true},
		{"ftp", CorsConfig{AllowedOrigins: []string{"ftp://board.example.com"}}, true},
		{"max age too long", CorsConfig{AllowedOrigins: []string{"https://a.com"}, MaxAge: MaxCorsMaxAge + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
