package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Pinger is a dependency the extended health check probes
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker handles health check requests
type HealthChecker struct {
	deps    map[string]Pinger
	timeout time.Duration
}

// NewHealthChecker creates a new health checker probing deps by name
func NewHealthChecker(deps map[string]Pinger) *HealthChecker {
	return &HealthChecker{deps: deps, timeout: 5 * time.Second}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = h.runChecks(r.Context())
		for _, result := range response.Checks {
			if result != "healthy" && result != "not configured" {
				response.Status = "unhealthy"
				statusCode = http.StatusServiceUnavailable
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		dep := h.deps[name]
		if dep == nil {
			checks[name] = "not configured"
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			checks[name] = "unhealthy: " + err.Error()
			continue
		}
		checks[name] = "healthy"
	}
	return checks
}
