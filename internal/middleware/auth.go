package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/request"
	"github.com/benvon/taskboard/internal/services/auth"
)

// SessionCookie is the cookie carrying the opaque session token
const SessionCookie = "taskboard_session"

// SessionResolver looks up the session behind a cookie token
type SessionResolver interface {
	Session(ctx context.Context, token string) (*models.AuthSession, *models.User, error)
}

// Auth requires a signed-in session. API requests without one get a 401;
// browser requests are redirected to the login page.
func Auth(sessions SessionResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(SessionCookie); err == nil {
				token = c.Value
			}

			sess, user, err := sessions.Session(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrUnauthenticated) {
					logger.Error("session_lookup_failed", zap.Error(err))
					respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to load session", logger)
					return
				}
				if isAPIRequest(r) {
					respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Sign in required", logger)
					return
				}
				http.Redirect(w, r, "/auth/login?return_to="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
				return
			}

			ctx := request.WithUser(r.Context(), user)
			ctx = request.WithSession(ctx, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.Contains(r.Header.Get("Accept"), "application/json")
}
