package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/models"
)

// CorsConfigStore loads the CORS config row
type CorsConfigStore interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// CORSReloader wraps rs/cors and periodically reloads CORS config from the database
type CORSReloader struct {
	repo     CorsConfigStore
	fallback string // e.g. FRONTEND_URL
	log      *zap.Logger
	interval time.Duration
	once     sync.Once
	mu       sync.RWMutex
	current  *cors.Cors
	origins  map[string]bool
}

// NewCORSReloader creates a CORS middleware that loads config from the DB and hot-reloads it
func NewCORSReloader(repo CorsConfigStore, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	return &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with the CORS handler
// current at request time.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.ensureLoaded(req.Context())
			r.mu.RLock()
			c := r.current
			r.mu.RUnlock()
			c.Handler(next).ServeHTTP(w, req)
		})
	}
}

func (r *CORSReloader) ensureLoaded(ctx context.Context) {
	r.once.Do(func() { r.load(context.WithoutCancel(ctx)) })
}

// Start loads the config and then reloads it every interval until ctx is cancelled
func (r *CORSReloader) Start(ctx context.Context) {
	r.ensureLoaded(ctx)
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

func (r *CORSReloader) load(ctx context.Context) {
	cfg, err := r.repo.Get(ctx)
	var origins []string
	var allowCreds bool
	var maxAge int
	if err != nil {
		r.log.Warn("failed_to_load_cors_config", zap.Error(err))
	}
	if err != nil || cfg == nil {
		origins = models.ParseOrigins(r.fallback)
		allowCreds = true
		maxAge = models.MaxCorsMaxAge
	} else {
		origins = cfg.AllowedOrigins
		allowCreds = cfg.AllowCredentials
		maxAge = cfg.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	}
	c := cors.New(opts)
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[models.NormalizeOrigin(o)] = true
	}
	r.mu.Lock()
	r.current = c
	r.origins = allowed
	r.mu.Unlock()
}

// AllowedOrigin reports whether origin may call the API. Websocket upgrades
// bypass the CORS handler and are checked with this instead.
func (r *CORSReloader) AllowedOrigin(origin string) bool {
	r.ensureLoaded(context.Background())
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.origins["*"] || r.origins[models.NormalizeOrigin(origin)]
}
