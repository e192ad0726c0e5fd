package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

const (
	defaultJWKSTTL = time.Hour
	// minJWKSRefresh stops tokens with made-up key ids from forcing a fetch per request
	minJWKSRefresh = 30 * time.Second
)

type cachedKeys struct {
	keys    jwk.Set
	fetched time.Time
}

// JWKSManager fetches and caches provider key sets. Concurrent misses for
// the same URL share one fetch.
type JWKSManager struct {
	mu         sync.RWMutex
	cache      map[string]cachedKeys
	fetches    singleflight.Group
	ttl        time.Duration
	minRefresh time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// NewJWKSManager creates a new JWKS manager
func NewJWKSManager() *JWKSManager {
	return &JWKSManager{
		cache:      make(map[string]cachedKeys),
		ttl:        defaultJWKSTTL,
		minRefresh: minJWKSRefresh,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// GetJWKS retrieves JWKS for a given JWKS URL, with caching
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	c, ok := m.cache[jwksURL]
	m.mu.RUnlock()
	if ok && m.now().Sub(c.fetched) < m.ttl {
		return c.keys, nil
	}

	v, err, _ := m.fetches.Do(jwksURL, func() (any, error) {
		keys, err := jwk.Fetch(context.WithoutCancel(ctx), jwksURL, jwk.WithHTTPClient(m.httpClient))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
		}
		m.mu.Lock()
		m.cache[jwksURL] = cachedKeys{keys: keys, fetched: m.now()}
		m.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(jwk.Set), nil
}

// Invalidate drops a cached key set so the next lookup refetches it. A set
// fetched less than minRefresh ago is kept and false is returned.
func (m *JWKSManager) Invalidate(jwksURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cache[jwksURL]
	if !ok {
		return true
	}
	if m.now().Sub(c.fetched) < m.minRefresh {
		return false
	}
	delete(m.cache, jwksURL)
	return true
}
