package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/request"
)

// Audit logs security-relevant outcomes: rejected sessions, rate limit
// hits and oversized uploads.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &auditResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			event := auditEvent(wrapped.statusCode)
			if event == "" {
				return
			}
			logger.Warn(event,
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("scope", limitScope(r)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxIdentifierLength)),
			)
		})
	}
}

func auditEvent(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "security_event"
	case http.StatusTooManyRequests:
		return "rate_limit_violation"
	case http.StatusRequestEntityTooLarge:
		return "upload_rejected"
	}
	return ""
}

// limitScope names the rate limit scope a request falls under
func limitScope(r *http.Request) string {
	switch {
	case isMultipart(r):
		return models.RatelimitScopeUploads
	case strings.HasPrefix(r.URL.Path, "/auth/"),
		r.URL.Path == "/api/v1/auth/password/reset":
		return models.RatelimitScopeAuth
	}
	return models.RatelimitScopeAPI
}

// auditResponseWriter wraps http.ResponseWriter to capture status code
type auditResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (aw *auditResponseWriter) WriteHeader(code int) {
	aw.statusCode = code
	aw.ResponseWriter.WriteHeader(code)
}

func (aw *auditResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return hijack(aw.ResponseWriter)
}

func (aw *auditResponseWriter) Unwrap() http.ResponseWriter {
	return aw.ResponseWriter
}
