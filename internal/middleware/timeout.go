package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultRequestTimeout is the default request timeout (30 seconds)
	DefaultRequestTimeout = 30 * time.Second
)

// Timeout creates a middleware that enforces a timeout on request handlers.
// Websocket upgrades are passed through untouched since they outlive any
// request deadline and need the raw connection.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		limited := http.TimeoutHandler(next, timeout, "Request Timeout")
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			limited.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
