package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benvon/taskboard/internal/models"
)

// ConfigSource loads provider registrations
type ConfigSource interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Endpoints are the provider URLs used during sign-in
type Endpoints struct {
	Issuer        string `json:"issuer"`
	Authorization string `json:"authorization_endpoint"`
	Token         string `json:"token_endpoint"`
	JWKS          string `json:"jwks_uri"`
	EndSession    string `json:"end_session_endpoint,omitempty"`
}

// Provider manages OIDC provider configuration
type Provider struct {
	source     ConfigSource
	httpClient *http.Client

	mu        sync.Mutex
	endpoints map[string]cachedEndpoints
	ttl       time.Duration
}

type cachedEndpoints struct {
	endpoints Endpoints
	expires   time.Time
}

// NewProvider creates a new OIDC provider manager
func NewProvider(source ConfigSource) *Provider {
	return &Provider{
		source:     source,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		endpoints:  make(map[string]cachedEndpoints),
		ttl:        time.Hour,
	}
}

// GetConfig retrieves OIDC configuration for a provider
func (p *Provider) GetConfig(ctx context.Context, providerName string) (*models.OIDCConfig, error) {
	config, err := p.source.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// Endpoints resolves the provider's endpoints from its discovery document,
// falling back to URLs derived from the issuer when discovery fails.
func (p *Provider) Endpoints(ctx context.Context, config *models.OIDCConfig) Endpoints {
	p.mu.Lock()
	cached, ok := p.endpoints[config.Issuer]
	p.mu.Unlock()
	if ok && time.Now().Before(cached.expires) {
		return cached.endpoints
	}

	ep, err := p.discover(ctx, config.Issuer)
	if err != nil {
		ep = fallbackEndpoints(config)
	} else {
		p.mu.Lock()
		p.endpoints[config.Issuer] = cachedEndpoints{endpoints: ep, expires: time.Now().Add(p.ttl)}
		p.mu.Unlock()
	}

	// Cognito hosted-UI flows require the domain-based endpoints
	if base := cognitoBaseURL(config); base != "" {
		ep.Authorization = base + "/oauth2/authorize"
		ep.Token = base + "/oauth2/token"
		ep.EndSession = base + "/logout"
	}
	if config.JWKSUrl != nil && *config.JWKSUrl != "" {
		ep.JWKS = *config.JWKSUrl
	}
	return ep
}

func (p *Provider) discover(ctx context.Context, issuer string) (Endpoints, error) {
	discoveryURL := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to create discovery request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Endpoints{}, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}
	var ep Endpoints
	if err := json.NewDecoder(resp.Body).Decode(&ep); err != nil {
		return Endpoints{}, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if ep.Authorization == "" || ep.Token == "" {
		return Endpoints{}, fmt.Errorf("discovery document is missing endpoints")
	}
	if ep.Issuer == "" {
		ep.Issuer = issuer
	}
	return ep, nil
}

func fallbackEndpoints(config *models.OIDCConfig) Endpoints {
	base := strings.TrimSuffix(config.Issuer, "/")
	return Endpoints{
		Issuer:        config.Issuer,
		Authorization: base + "/oauth2/authorize",
		Token:         base + "/oauth2/token",
		JWKS:          base + "/.well-known/jwks.json",
	}
}

// cognitoBaseURL returns the hosted-UI base URL for Cognito issuers with a domain
func cognitoBaseURL(config *models.OIDCConfig) string {
	if config.Domain == nil || *config.Domain == "" || !strings.Contains(config.Issuer, "cognito-idp.") {
		return ""
	}
	domain := strings.TrimSuffix(*config.Domain, "/")
	if strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
