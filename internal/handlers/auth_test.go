package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/benvon/taskboard/internal/middleware"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/request"
	"github.com/benvon/taskboard/internal/services/auth"
)

// mockAuthService is a mock implementation of AuthService
type mockAuthService struct {
	signInFlow     models.LoginFlow
	signInReturnTo string
	result         *auth.Result
	exchangeErr    error
	signedOut      string
}

var _ AuthService = (*mockAuthService)(nil)

func (m *mockAuthService) SignIn(_ context.Context, flow models.LoginFlow, returnTo string) (string, error) {
	m.signInFlow = flow
	m.signInReturnTo = returnTo
	return "https://idp.test/authorize?state=abc", nil
}

func (m *mockAuthService) ExchangeCode(_ context.Context, state, code string) (*auth.Result, error) {
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	if state != "abc" || code != "xyz" {
		return nil, auth.ErrInvalidState
	}
	return m.result, nil
}

func (m *mockAuthService) SignOut(_ context.Context, token, _ string) (string, error) {
	m.signedOut = token
	return "https://idp.test/logout", nil
}

func (m *mockAuthService) PasswordResetURL(_ context.Context, email string) (string, error) {
	return "https://idp.test/forgot?login_hint=" + url.QueryEscape(email), nil
}

func (m *mockAuthService) UpdatePassword(_ context.Context, change auth.PasswordChange) (string, error) {
	if err := change.Check(); err != nil {
		return "", err
	}
	return "https://idp.test/account", nil
}

func newAuthRouter(svc AuthService) *mux.Router {
	h := NewAuthHandler(svc, "https://app.test/", true, nil)
	r := mux.NewRouter()
	h.RegisterBrowserRoutes(r)
	api := r.PathPrefix("/api/v1").Subrouter()
	h.RegisterPublicRoutes(api)
	h.RegisterRoutes(api)
	return r
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		query            string
		expectedFlow     models.LoginFlow
		expectedReturnTo string
	}{
		{name: "default flow", query: "?return_to=/board", expectedFlow: models.LoginFlowSignIn, expectedReturnTo: "/board"},
		{name: "recovery flow", query: "?flow=recovery", expectedFlow: models.LoginFlowRecovery},
		{name: "absolute return_to is dropped", query: "?return_to=https://evil.test/", expectedFlow: models.LoginFlowSignIn},
		{name: "protocol-relative return_to is dropped", query: "?return_to=//evil.test/x", expectedFlow: models.LoginFlowSignIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockAuthService{}
			rr := httptest.NewRecorder()
			newAuthRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/login"+tt.query, nil))

			if rr.Code != http.StatusFound {
				t.Fatalf("Expected status 302, got %d", rr.Code)
			}
			if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "https://idp.test/authorize") {
				t.Errorf("Expected redirect to the provider, got %q", loc)
			}
			if svc.signInFlow != tt.expectedFlow {
				t.Errorf("Expected flow %s, got %s", tt.expectedFlow, svc.signInFlow)
			}
			if svc.signInReturnTo != tt.expectedReturnTo {
				t.Errorf("Expected return_to %q, got %q", tt.expectedReturnTo, svc.signInReturnTo)
			}
		})
	}
}

func TestCallback(t *testing.T) {
	t.Parallel()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	session := models.AuthSession{Token: "session-token", ExpiresAt: expires}

	tests := []struct {
		name             string
		path             string
		result           *auth.Result
		expectedStatus   int
		expectedLocation string
		expectCookie     bool
	}{
		{
			name:             "sign in returns to the page",
			path:             "/auth/callback?state=abc&code=xyz",
			result:           &auth.Result{Session: session, Flow: models.LoginFlowSignIn, ReturnTo: "/board"},
			expectedStatus:   http.StatusFound,
			expectedLocation: "https://app.test/board",
			expectCookie:     true,
		},
		{
			name:             "recovery lands on the password page",
			path:             "/auth/callback/recovery?state=abc&code=xyz",
			result:           &auth.Result{Session: session, Flow: models.LoginFlowRecovery},
			expectedStatus:   http.StatusFound,
			expectedLocation: "https://app.test/settings/password",
			expectCookie:     true,
		},
		{
			name:           "unknown state",
			path:           "/auth/callback?state=other&code=xyz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:             "provider error",
			path:             "/auth/callback?error=access_denied",
			expectedStatus:   http.StatusFound,
			expectedLocation: "https://app.test/?auth_error=access_denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockAuthService{result: tt.result}
			rr := httptest.NewRecorder()
			newAuthRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.expectedLocation != "" && rr.Header().Get("Location") != tt.expectedLocation {
				t.Errorf("Expected Location %q, got %q", tt.expectedLocation, rr.Header().Get("Location"))
			}

			var cookie *http.Cookie
			for _, c := range rr.Result().Cookies() {
				if c.Name == middleware.SessionCookie {
					cookie = c
				}
			}
			if !tt.expectCookie {
				if cookie != nil {
					t.Error("Expected no session cookie")
				}
				return
			}
			if cookie == nil {
				t.Fatal("Expected a session cookie")
			}
			if cookie.Value != "session-token" || !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
				t.Errorf("Unexpected cookie %+v", cookie)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()
	svc := &mockAuthService{}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "session-token"})
	rr := httptest.NewRecorder()
	newAuthRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if svc.signedOut != "session-token" {
		t.Errorf("Expected the session to be ended, got %q", svc.signedOut)
	}
	if got := decodeEnvelope[map[string]string](t, rr).Data["logout_url"]; got != "https://idp.test/logout" {
		t.Errorf("Expected the provider logout URL, got %q", got)
	}
	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("Expected the session cookie to be cleared")
	}
}

func TestGetMe(t *testing.T) {
	t.Parallel()
	r := newAuthRouter(&mockAuthService{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a user, got %d", rr.Code)
	}

	user := &models.User{ID: uuid.New(), Email: "me@example.com"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req = req.WithContext(request.WithUser(req.Context(), user))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	got := decodeEnvelope[meResponse](t, rr).Data
	if got.User == nil || got.ID != user.ID {
		t.Fatalf("Expected user %s, got %+v", user.ID, got)
	}
	if got.DisplayName != "me" {
		t.Errorf("Expected display name 'me', got %q", got.DisplayName)
	}
}

func TestPasswordEndpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		body           string
		expectedStatus int
		expectedURL    string
	}{
		{
			name:           "reset",
			path:           "/api/v1/auth/password/reset",
			body:           `{"email":" me@example.com "}`,
			expectedStatus: http.StatusOK,
			expectedURL:    "https://idp.test/forgot?login_hint=me%40example.com",
		},
		{
			name:           "change",
			path:           "/api/v1/auth/password",
			body:           `{"password":"correct horse","confirmation":"correct horse"}`,
			expectedStatus: http.StatusOK,
			expectedURL:    "https://idp.test/account",
		},
		{
			name:           "change with mismatch",
			path:           "/api/v1/auth/password",
			body:           `{"password":"correct horse","confirmation":"battery staple"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "change too short",
			path:           "/api/v1/auth/password",
			body:           `{"password":"short","confirmation":"short"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			newAuthRouter(&mockAuthService{}).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.expectedURL != "" {
				if got := decodeEnvelope[map[string]string](t, rr).Data["url"]; got != tt.expectedURL {
					t.Errorf("Expected url %q, got %q", tt.expectedURL, got)
				}
			}
		})
	}
}

func TestSafeReturnTo(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                   "",
		"/board?view=cal":    "/board?view=cal",
		"board":              "",
		"//evil.test":        "",
		`/\evil.test`:        "",
		"https://evil.test/": "",
	}
	for in, want := range tests {
		if got := safeReturnTo(in); got != want {
			t.Errorf("safeReturnTo(%q) = %q, want %q", in, got, want)
		}
	}
}
