package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      Options
		wantLevel zapcore.Level
		wantKeys  []string
	}{
		{"info with service", Options{Service: "taskboard"}, zapcore.InfoLevel, []string{"service"}},
		{"debug with version", Options{Service: "taskboard", Version: "1.2.0", Debug: true}, zapcore.DebugLevel, []string{"service", "version"}},
		{"bare", Options{}, zapcore.InfoLevel, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := buildConfig(tt.opts)
			if got := cfg.Level.Level(); got != tt.wantLevel {
				t.Errorf("level = %v, want %v", got, tt.wantLevel)
			}
			if cfg.Encoding != "json" {
				t.Errorf("encoding = %q, want json", cfg.Encoding)
			}
			if cfg.Sampling != nil {
				t.Error("sampling should be disabled")
			}
			if len(cfg.InitialFields) != len(tt.wantKeys) {
				t.Fatalf("initial fields = %v, want keys %v", cfg.InitialFields, tt.wantKeys)
			}
			for _, k := range tt.wantKeys {
				if _, ok := cfg.InitialFields[k]; !ok {
					t.Errorf("missing initial field %q", k)
				}
			}
		})
	}
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	l, err := NewProductionLogger(Options{Service: "taskboard"})
	if err != nil {
		t.Fatalf("NewProductionLogger() error = %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled by default")
	}
}

func TestForUser(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ForUser(zap.New(core), "user-1\x1b").Info("board_session_loaded")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["user_id"]; got != "user-1" {
		t.Errorf("user_id = %v", got)
	}

	// nil base falls back to a no-op logger
	ForUser(nil, "user-2").Info("ignored")
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"unix directories", "../../etc/passwd", "passwd"},
		{"windows directories", `C:\Users\me\notes.txt`, "notes.txt"},
		{"newline forging", "a.txt\nlevel=error", "a.txt level=error"},
		{"empty", "", ""},
		{"only slash", "/", ""},
		{"control bytes", "in\x00voice.pdf", "invoice.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeFileName(tt.in); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", MaxFileNameLength)
	got := SanitizeString(long, MaxFileNameLength)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	body := strings.TrimSuffix(got, "...")
	if len(body) > MaxFileNameLength {
		t.Errorf("truncated length = %d, want <= %d", len(body), MaxFileNameLength)
	}
	if strings.ContainsRune(body, '\uFFFD') || !strings.HasPrefix(long, body) {
		t.Errorf("truncation split a rune: %q", body)
	}

	if got := SanitizeString("bad\xffutf8", 0); got != "badutf8" {
		t.Errorf("invalid utf-8 = %q, want badutf8", got)
	}
	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q", got)
	}
	if got := SanitizePath("/api/v1/tasks\x07"); got != "/api/v1/tasks" {
		t.Errorf("SanitizePath = %q", got)
	}
}
