package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/request"
)

// DefaultRates are the limits written for scopes that have no config row yet
var DefaultRates = map[string]string{
	models.RatelimitScopeAPI:     "20-S",
	models.RatelimitScopeAuth:    "10-M",
	models.RatelimitScopeUploads: "30-M",
}

const fallbackRate = "5-S"

// RatelimitConfigStore loads and saves per-scope rates
type RatelimitConfigStore interface {
	Get(ctx context.Context, scope string) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// RateLimitReloader wraps ulule/limiter for one scope and periodically reloads
// its rate from the database.
type RateLimitReloader struct {
	store       limiter.Store
	repo        RatelimitConfigStore
	scope       string
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	once        sync.Once
	mu          sync.RWMutex
	current     *stdlibmw.Middleware
	rate        string
}

// NewRateLimitReloader creates a rate limit middleware for scope that loads config from the DB and hot-reloads it
func NewRateLimitReloader(redisClient *redis.Client, repo RatelimitConfigStore, scope string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	defaultRate, ok := DefaultRates[scope]
	if !ok {
		defaultRate = fallbackRate
	}
	// Each scope counts in its own key space
	store, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
		Prefix: "taskboard:ratelimit:" + scope,
	})
	if err != nil {
		log.Error("failed_to_create_redis_store_for_rate_limiter",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return nil
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		scope:       scope,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware returns a middleware that limits next with the rate current at
// request time.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.once.Do(func() { r.load(context.WithoutCancel(req.Context())) })
			r.mu.RLock()
			mw := r.current
			r.mu.RUnlock()
			if mw == nil {
				next.ServeHTTP(w, req)
				return
			}
			mw.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start loads the rate and then reloads it every interval until ctx is cancelled
func (r *RateLimitReloader) Start(ctx context.Context) {
	r.once.Do(func() { r.load(ctx) })
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

func (r *RateLimitReloader) load(ctx context.Context) {
	cfg, err := r.repo.Get(ctx, r.scope)
	rateStr := r.defaultRate
	if err != nil {
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.String("scope", r.scope),
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	} else if cfg != nil && cfg.Rate != "" {
		rateStr = cfg.Rate
	} else {
		if err = r.repo.Set(ctx, &models.RatelimitConfig{ConfigKey: r.scope, Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.String("scope", r.scope),
				zap.Error(err),
			)
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.String("scope", r.scope),
			zap.Error(err),
			zap.String("rate_str", rateStr),
		)
		rateStr = r.defaultRate
		rate, err = limiter.NewRateFromFormatted(rateStr)
		if err != nil {
			r.log.Error("failed_to_parse_default_rate_limit",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
			return
		}
	}

	r.mu.RLock()
	unchanged := r.current != nil && r.rate == rateStr
	r.mu.RUnlock()
	if unchanged {
		return
	}

	instance := limiter.New(r.store, rate)
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(limitKey))

	r.mu.Lock()
	r.current = mw
	r.rate = rateStr
	r.mu.Unlock()
	r.log.Info("ratelimit_config_loaded", zap.String("scope", r.scope), zap.String("rate", rateStr))
}

// limitKey counts signed-in users by id and everyone else by address
func limitKey(req *http.Request) string {
	if user := request.UserFromContext(req); user != nil {
		return "user:" + user.ID.String()
	}
	return "ip:" + request.ClientIP(req)
}
