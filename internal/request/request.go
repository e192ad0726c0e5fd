package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/benvon/taskboard/internal/models"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// UserContextKey returns the context key used for the user. Exposed for tests that inject non-user values
func UserContextKey() contextKey { return userContextKey }

// ClientIP returns the caller's address for logs: the first valid address in
// X-Forwarded-For, then X-Real-IP, then the connection's host without port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

// WithUser returns a context with the user attached
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user from the request context, or nil if missing or wrong type
func UserFromContext(r *http.Request) *models.User {
	u, _ := r.Context().Value(userContextKey).(*models.User)
	return u
}

// WithSession returns a context with the signed-in session attached
func WithSession(ctx context.Context, sess *models.AuthSession) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext returns the session from the request context, or nil
func SessionFromContext(r *http.Request) *models.AuthSession {
	s, _ := r.Context().Value(sessionContextKey).(*models.AuthSession)
	return s
}
