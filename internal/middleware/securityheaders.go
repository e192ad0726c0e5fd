package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeaders sets security headers on all responses. Board, auth and
// notification responses carry per-user state and are never cached.
func SecurityHeaders(enableHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// JSON and file downloads only; nothing here renders as a page
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			if !cacheable(r) {
				h.Set("Cache-Control", "no-store")
			}

			// Only over HTTPS, directly or via the TLS-terminating proxy
			if enableHSTS && isHTTPS(r) {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// cacheable reports whether the response is the same for every caller
func cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	switch r.URL.Path {
	case "/version", "/api/v1/openapi.yaml", "/api/v1/openapi.json":
		return true
	}
	return false
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
