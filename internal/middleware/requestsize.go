package middleware

import (
	"net/http"
)

const (
	// DefaultMaxRequestSize is the default maximum request body size (1MB)
	DefaultMaxRequestSize int64 = 1 << 20 // 1MB
)

// MaxRequestSize limits the size of request bodies to prevent DoS attacks.
// Multipart uploads are held to uploadBytes instead, plus room for the
// multipart framing.
func MaxRequestSize(maxBytes, uploadBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	if uploadBytes < maxBytes {
		uploadBytes = maxBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := maxBytes
			if isMultipart(r) {
				limit = uploadBytes + maxBytes
			}

			// Check Content-Length header early if present
			if r.ContentLength > limit {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
