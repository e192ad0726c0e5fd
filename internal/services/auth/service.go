// Package auth signs users in through the configured OIDC provider and
// keeps their browser sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/benvon/taskboard/internal/cache"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/services/oidc"
)

const (
	// DefaultSessionTTL is how long a sign-in lasts
	DefaultSessionTTL = 7 * 24 * time.Hour
	// loginStateTTL bounds the time between the redirect and the callback
	loginStateTTL = 10 * time.Minute
	// MinPasswordLength is the shortest password accepted
	MinPasswordLength = 8
)

var (
	// ErrUnauthenticated is returned when a request has no valid session
	ErrUnauthenticated = errors.New("not signed in")
	// ErrInvalidState is returned for callbacks that do not match a pending login
	ErrInvalidState = errors.New("invalid or expired login state")
	// ErrInvalidPassword is returned when a new password fails local checks
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNotConfigured is returned when the provider lacks a hosted page
	ErrNotConfigured = errors.New("not configured for this provider")
)

// SessionStore keeps sessions and pending logins
type SessionStore interface {
	Save(ctx context.Context, sess models.AuthSession) error
	Get(ctx context.Context, token string) (*models.AuthSession, error)
	Delete(ctx context.Context, token string) error
	SaveState(ctx context.Context, st models.LoginState, ttl time.Duration) error
	TakeState(ctx context.Context, state string) (*models.LoginState, error)
}

// UserStore mirrors provider identities locally
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

// Config configures the service
type Config struct {
	ProviderName string
	// BaseURL is the public URL of this service; callbacks are built from it
	BaseURL    string
	SessionTTL time.Duration
}

// Service runs sign-in, sign-out and session lookups
type Service struct {
	cfg      Config
	provider *oidc.Provider
	jwks     *oidc.JWKSManager
	sessions SessionStore
	users    UserStore
	logger   *zap.Logger
	now      func() time.Time

	onSignOut func(userID uuid.UUID)
}

// NewService creates an auth service
func NewService(cfg Config, provider *oidc.Provider, jwks *oidc.JWKSManager, sessions SessionStore, users UserStore, logger *zap.Logger) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		provider: provider,
		jwks:     jwks,
		sessions: sessions,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// OnSignOut registers fn to run after a user's session is deleted
func (s *Service) OnSignOut(fn func(userID uuid.UUID)) {
	s.onSignOut = fn
}

type providerSetup struct {
	config    *models.OIDCConfig
	endpoints oidc.Endpoints
	client    *oidc.Client
}

func (s *Service) setup(ctx context.Context, flow models.LoginFlow) (*providerSetup, error) {
	config, err := s.provider.GetConfig(ctx, s.cfg.ProviderName)
	if err != nil {
		return nil, err
	}
	ep := s.provider.Endpoints(ctx, config)
	client := oidc.NewClient(config, ep)
	if flow == models.LoginFlowRecovery {
		client = client.WithRedirect(s.callbackURL(flow))
	}
	return &providerSetup{config: config, endpoints: ep, client: client}, nil
}

func (s *Service) callbackURL(flow models.LoginFlow) string {
	if flow == models.LoginFlowRecovery {
		return s.cfg.BaseURL + "/auth/callback/recovery"
	}
	return s.cfg.BaseURL + "/auth/callback"
}

// SignIn starts a login and returns the provider URL to redirect to.
// returnTo is where the browser goes after the callback.
func (s *Service) SignIn(ctx context.Context, flow models.LoginFlow, returnTo string) (string, error) {
	if flow == "" {
		flow = models.LoginFlowSignIn
	}
	p, err := s.setup(ctx, flow)
	if err != nil {
		return "", err
	}
	st := models.LoginState{
		State:    randomToken(24),
		Verifier: oauth2.GenerateVerifier(),
		Nonce:    randomToken(16),
		Flow:     flow,
		ReturnTo: returnTo,
	}
	if err := s.sessions.SaveState(ctx, st, loginStateTTL); err != nil {
		return "", fmt.Errorf("failed to start sign-in: %w", err)
	}
	return p.client.AuthCodeURL(st.State, st.Verifier, st.Nonce), nil
}

// Result is the outcome of a completed login
type Result struct {
	Session  models.AuthSession
	User     *models.User
	Flow     models.LoginFlow
	ReturnTo string
}

// ExchangeCode completes a login: it trades the code for tokens, verifies
// the id token, mirrors the user locally and opens a session.
func (s *Service) ExchangeCode(ctx context.Context, state, code string) (*Result, error) {
	st, err := s.sessions.TakeState(ctx, state)
	if errors.Is(err, cache.ErrStateNotFound) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}

	p, err := s.setup(ctx, st.Flow)
	if err != nil {
		return nil, err
	}
	_, rawIDToken, err := p.client.ExchangeCode(ctx, code, st.Verifier)
	if err != nil {
		return nil, err
	}

	verifier := oidc.NewVerifier(s.jwks, p.endpoints.Issuer, p.config.ClientID)
	claims, err := verifier.Verify(ctx, rawIDToken, p.endpoints.JWKS, st.Nonce)
	if err != nil {
		s.logger.Warn("id_token_verification_failed", zap.String("issuer", p.endpoints.Issuer), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user := models.UserFromClaims(claims)
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	now := s.now()
	sess := models.AuthSession{
		Token:     randomToken(32),
		UserID:    user.ID,
		IDToken:   rawIDToken,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("user_signed_in", zap.String("user_id", user.ID.String()), zap.String("flow", string(st.Flow)))
	return &Result{Session: sess, User: user, Flow: st.Flow, ReturnTo: st.ReturnTo}, nil
}

// Session returns the session for a cookie token and its user
func (s *Service) Session(ctx context.Context, token string) (*models.AuthSession, *models.User, error) {
	if token == "" {
		return nil, nil, ErrUnauthenticated
	}
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, cache.ErrSessionNotFound) {
		return nil, nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, nil, err
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	return sess, user, nil
}

// SignOut ends the session. It returns the provider's logout URL when the
// provider has one, or an empty string.
func (s *Service) SignOut(ctx context.Context, token, postLogoutURL string) (string, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil && !errors.Is(err, cache.ErrSessionNotFound) {
		return "", err
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return "", err
	}

	idToken := ""
	if sess != nil {
		idToken = sess.IDToken
		if s.onSignOut != nil {
			s.onSignOut(sess.UserID)
		}
	}
	return s.endSessionURL(ctx, idToken, postLogoutURL), nil
}

// endSessionURL builds the provider logout URL, or "" when there is none
func (s *Service) endSessionURL(ctx context.Context, idToken, postLogoutURL string) string {
	p, err := s.setup(ctx, models.LoginFlowSignIn)
	if err != nil || p.endpoints.EndSession == "" {
		return ""
	}
	u, err := url.Parse(p.endpoints.EndSession)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("client_id", p.config.ClientID)
	if postLogoutURL != "" {
		q.Set("post_logout_redirect_uri", postLogoutURL)
		q.Set("logout_uri", postLogoutURL)
	}
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// PasswordResetURL returns the provider-hosted recovery page for email
func (s *Service) PasswordResetURL(ctx context.Context, email string) (string, error) {
	config, err := s.provider.GetConfig(ctx, s.cfg.ProviderName)
	if err != nil {
		return "", err
	}
	if config.RecoveryURL == nil || *config.RecoveryURL == "" {
		return "", fmt.Errorf("password recovery: %w", ErrNotConfigured)
	}
	u, err := url.Parse(*config.RecoveryURL)
	if err != nil {
		return "", fmt.Errorf("invalid recovery url: %w", err)
	}
	q := u.Query()
	q.Set("client_id", config.ClientID)
	q.Set("redirect_uri", s.callbackURL(models.LoginFlowRecovery))
	if email != "" {
		q.Set("login_hint", email)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PasswordChange is a new password and its confirmation
type PasswordChange struct {
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

// Check applies the local password rules
func (c PasswordChange) Check() error {
	switch {
	case c.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidPassword)
	case len([]rune(c.Password)) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidPassword, MinPasswordLength)
	case c.Password != c.Confirmation:
		return fmt.Errorf("%w: passwords do not match", ErrInvalidPassword)
	}
	return nil
}

// UpdatePassword checks the new password locally, then returns the
// provider-hosted page where the change is made. Passwords are never sent
// to the provider from here.
func (s *Service) UpdatePassword(ctx context.Context, change PasswordChange) (string, error) {
	if err := change.Check(); err != nil {
		return "", err
	}
	config, err := s.provider.GetConfig(ctx, s.cfg.ProviderName)
	if err != nil {
		return "", err
	}
	if config.AccountURL == nil || *config.AccountURL == "" {
		return "", fmt.Errorf("password change: %w", ErrNotConfigured)
	}
	return *config.AccountURL, nil
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
