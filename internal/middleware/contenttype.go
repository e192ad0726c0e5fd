package middleware

import (
	"net/http"
	"strings"
)

// ContentType validates Content-Type headers for requests with bodies.
// JSON is required everywhere except multipart uploads; bodiless actions
// such as POST /complete need no header at all.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && r.ContentLength != 0 {
			contentType := r.Header.Get("Content-Type")

			if contentType == "" {
				http.Error(w, "Content-Type header is required", http.StatusBadRequest)
				return
			}

			contentTypeLower := strings.ToLower(contentType)
			isJSON := strings.HasPrefix(contentTypeLower, "application/json")

			if !isJSON && !isMultipart(r) {
				http.Error(w, "Content-Type must be application/json or multipart/form-data", http.StatusUnsupportedMediaType)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// Uploads applies mw to multipart requests only, so file uploads can be held
// to their own limits without touching the rest of a router.
func Uploads(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isMultipart(r) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
