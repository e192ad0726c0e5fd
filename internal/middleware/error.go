package middleware

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/benvon/taskboard/internal/logger"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// ErrorHandler recovers panics. The JSON error is only written when the
// handler had not started its response: a half-sent attachment download
// or an upgraded notification socket is closed instead.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &trackingWriter{ResponseWriter: w}
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("panic_recovered",
					zap.Any("error", err),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("method", r.Method),
					zap.Bool("response_started", tw.started),
					zap.Stack("panic_stack"),
				)
				if tw.started {
					return
				}
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
			}()

			next.ServeHTTP(tw, r)
		})
	}
}

// respondErrorJSON sends an error JSON response
func respondErrorJSON(w http.ResponseWriter, r *http.Request, status int, errorType, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := ErrorResponse{
		Success:   false,
		Error:     errorType,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
		)
	}
}

// trackingWriter notes whether any part of the response went out
type trackingWriter struct {
	http.ResponseWriter
	started bool
}

func (tw *trackingWriter) WriteHeader(code int) {
	tw.started = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.started = true
	return tw.ResponseWriter.Write(b)
}

func (tw *trackingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	tw.started = true
	return hijack(tw.ResponseWriter)
}

func (tw *trackingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
