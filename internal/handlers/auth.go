package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/middleware"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/request"
	"github.com/benvon/taskboard/internal/services/auth"
)

// AuthService signs users in and out
type AuthService interface {
	SignIn(ctx context.Context, flow models.LoginFlow, returnTo string) (string, error)
	ExchangeCode(ctx context.Context, state, code string) (*auth.Result, error)
	SignOut(ctx context.Context, token, postLogoutURL string) (string, error)
	PasswordResetURL(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, change auth.PasswordChange) (string, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	svc           AuthService
	frontendURL   string
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandler creates a new auth handler. Browsers are sent to
// frontendURL after signing in or out.
func NewAuthHandler(svc AuthService, frontendURL string, secureCookies bool, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		svc:           svc,
		frontendURL:   strings.TrimSuffix(frontendURL, "/"),
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// RegisterBrowserRoutes registers the redirect-based routes at the root
func (h *AuthHandler) RegisterBrowserRoutes(r *mux.Router) {
	r.HandleFunc("/auth/login", h.Login).Methods("GET")
	r.HandleFunc("/auth/callback", h.Callback).Methods("GET")
	r.HandleFunc("/auth/callback/recovery", h.Callback).Methods("GET")
	r.HandleFunc("/auth/logout", h.Logout).Methods("POST")
}

// RegisterPublicRoutes registers API routes that need no session.
// The router should already have the /api/v1 prefix.
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/password/reset", h.PasswordReset).Methods("POST")
}

// RegisterRoutes registers API routes that require a session.
// The router should already have the /api/v1 prefix.
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/me", h.GetMe).Methods("GET")
	r.HandleFunc("/auth/password", h.UpdatePassword).Methods("POST")
}

// Login redirects to the identity provider
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	flow := models.LoginFlowSignIn
	if r.URL.Query().Get("flow") == string(models.LoginFlowRecovery) {
		flow = models.LoginFlowRecovery
	}
	target, err := h.svc.SignIn(r.Context(), flow, safeReturnTo(r.URL.Query().Get("return_to")))
	if err != nil {
		h.logger.Error("sign_in_start_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to start sign-in")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback completes the login, sets the session cookie and sends the
// browser back to the page it came from
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Warn("sign_in_rejected_by_provider",
			zap.String("error", providerErr),
			zap.String("description", q.Get("error_description")),
		)
		http.Redirect(w, r, h.frontendURL+"/?auth_error="+url.QueryEscape(providerErr), http.StatusFound)
		return
	}

	res, err := h.svc.ExchangeCode(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		status, errorType := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("sign_in_failed", zap.Error(err))
			respondJSONError(w, status, errorType, "Sign-in failed")
			return
		}
		respondJSONError(w, status, errorType, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.Session.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	returnTo := res.ReturnTo
	if returnTo == "" {
		returnTo = "/"
		if res.Flow == models.LoginFlowRecovery {
			returnTo = "/settings/password"
		}
	}
	http.Redirect(w, r, h.frontendURL+returnTo, http.StatusFound)
}

// Logout ends the session and returns the provider logout URL, if any
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(middleware.SessionCookie); err == nil {
		token = c.Value
	}
	var logoutURL string
	if token != "" {
		var err error
		logoutURL, err = h.svc.SignOut(r.Context(), token, h.frontendURL+"/")
		if err != nil {
			h.logger.Error("sign_out_failed", zap.Error(err))
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to sign out")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"logout_url": logoutURL})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	respondJSON(w, http.StatusOK, meResponse{User: user, DisplayName: user.DisplayName()})
}

type meResponse struct {
	*models.User
	DisplayName string `json:"display_name"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// PasswordReset returns the provider page where a forgotten password is reset
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, nil, err)
		return
	}
	target, err := h.svc.PasswordResetURL(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		respondError(w, h.logger, nil, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": target})
}

// UpdatePassword checks the new password and returns the provider page
// where the change is completed
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordChange
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, nil, err)
		return
	}
	target, err := h.svc.UpdatePassword(r.Context(), req)
	if err != nil {
		respondError(w, h.logger, nil, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": target})
}

// safeReturnTo keeps only same-site relative paths
func safeReturnTo(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return raw
}
