package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	// Bundled zone data so TIMEZONE works in scratch images
	_ "time/tzdata"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/cache"
	"github.com/benvon/taskboard/internal/config"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/handlers"
	"github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/middleware"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/realtime"
	"github.com/benvon/taskboard/internal/services/auth"
	"github.com/benvon/taskboard/internal/services/oidc"
	"github.com/benvon/taskboard/internal/storage"
	"github.com/benvon/taskboard/internal/telemetry"
)

const (
	serviceName    = "taskboard"
	reloadInterval = 1 * time.Minute
	// maxUploadBytes bounds a single multipart attachment upload
	maxUploadBytes int64 = 25 << 20
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.NewProductionLogger(logger.Options{
		Service: serviceName,
		Version: handlers.Version,
		Debug:   debugMode,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("timezone", cfg.Location.String()),
		zap.Duration("edit_debounce", cfg.EditDebounce),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider *sdktrace.TracerProvider
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.Options{
				ServiceName:    serviceName,
				ServiceVersion: handlers.Version,
				Endpoint:       cfg.OTELEndpoint,
				Insecure:       cfg.OTELInsecure,
				SampleRatio:    cfg.OTELSampleRatio,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	migrateCancel()
	zapLogger.Info("database_migrated")

	repos := database.NewRepositories(db)

	// Connect to Redis for sessions, preferences and rate limiting
	cacheClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := cacheClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	gateway := board.Gateway{
		Tasks:       repos.Tasks,
		Profiles:    repos.Profiles,
		Categories:  repos.Categories,
		Comments:    repos.Comments,
		Attachments: repos.Attachments,
		Settings:    repos.Settings,
		Preferences: cache.NewPreferenceStore(cacheClient),
	}
	healthDeps := map[string]handlers.Pinger{
		"database":   db,
		"redis":      cacheClient,
		"blob_store": nil,
	}

	// Object storage is optional; without it attachment calls answer 501
	if cfg.BlobConfigured() {
		blobCtx, blobCancel := context.WithTimeout(context.Background(), 30*time.Second)
		blobs, err := storage.NewMinioStore(blobCtx, storage.Config{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
		}, zapLogger)
		blobCancel()
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_blob_store", zap.Error(err))
		}
		gateway.Blobs = blobs
		healthDeps["blob_store"] = blobs
		zapLogger.Info("connected_to_blob_store", zap.String("bucket", cfg.Blob.Bucket))
	} else {
		zapLogger.Warn("blob_store_not_configured_attachments_disabled")
	}

	// Initialize services
	oidcProvider := oidc.NewProvider(repos.OIDCConfig)
	jwksManager := oidc.NewJWKSManager()
	authService := auth.NewService(auth.Config{
		ProviderName: cfg.OIDCProvider,
		BaseURL:      cfg.BaseURL,
		SessionTTL:   cfg.SessionTTL,
	}, oidcProvider, jwksManager, cache.NewSessionStore(cacheClient), repos.Users, zapLogger)

	hub := realtime.NewHub(zapLogger)
	manager := board.NewManager(gateway, board.Options{
		Clock:          board.NewClock(cfg.Location),
		Logger:         zapLogger,
		Publisher:      hub,
		GatewayTimeout: cfg.GatewayTimeout,
		EditDebounce:   cfg.EditDebounce,
	})
	// A signed-out user's board is flushed and dropped
	authService.OnSignOut(manager.Evict)

	// Setup router
	r := mux.NewRouter()

	// Apply middleware (order matters - gorilla/mux wraps in registration
	// order, so the first one registered is the outermost)
	zapLogger.Info("setting_up_middleware")

	// 0. OpenTelemetry tracing (if enabled)
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName))
		zapLogger.Info("otel_middleware_enabled")
	}
	// 1. Security headers (should be set on all responses)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// 2. CORS (load from DB, hot-reload; fallback to FRONTEND_URL)
	corsReloader := middleware.NewCORSReloader(repos.CorsConfig, cfg.FrontendURL, zapLogger, reloadInterval)
	r.Use(corsReloader.Middleware())
	// 3. Request size limits (multipart uploads get their own ceiling)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, maxUploadBytes))
	// 4. Content-Type validation for POST/PATCH/PUT requests
	r.Use(middleware.ContentType)
	// 5. Request timeout (websocket upgrades are exempt)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	// 6. Error handler (catches panics)
	r.Use(middleware.ErrorHandler(zapLogger))
	// 7. Audit logging (for security events)
	r.Use(middleware.Audit(zapLogger))
	// 8. Logging (innermost, executes last before handler)
	r.Use(middleware.Logging(zapLogger))

	// Rate limits are applied per route group, each scope with its own hot-reloaded rate
	limiters := make(map[string]*middleware.RateLimitReloader)
	for _, scope := range []string{models.RatelimitScopeAPI, models.RatelimitScopeAuth, models.RatelimitScopeUploads} {
		l := middleware.NewRateLimitReloader(cacheClient.Redis(), repos.RatelimitConfig, scope, zapLogger, reloadInterval)
		if l == nil {
			zapLogger.Fatal("failed_to_create_rate_limit_reloader", zap.String("scope", scope))
		}
		limiters[scope] = l
	}

	// Public routes (no rate limiting for health checks)
	healthChecker := handlers.NewHealthChecker(healthDeps)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", handlers.VersionInfo).Methods("GET")

	// OpenAPI spec (public)
	openAPIHandler := handlers.NewOpenAPIHandler(filepath.Join("api", "openapi", "openapi.yaml"), cfg.BaseURL)
	openAPIHandler.RegisterRoutes(r)

	// Browser sign-in flow (redirects, cookie based)
	authHandler := handlers.NewAuthHandler(authService, cfg.FrontendURL, cfg.SecureCookies(), zapLogger)
	browserRouter := r.PathPrefix("").Subrouter()
	browserRouter.Use(limiters[models.RatelimitScopeAuth].Middleware())
	authHandler.RegisterBrowserRoutes(browserRouter)

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// Public API routes
	publicAPI := apiRouter.PathPrefix("").Subrouter()
	publicAPI.Use(limiters[models.RatelimitScopeAuth].Middleware())
	authHandler.RegisterPublicRoutes(publicAPI)

	// Protected API routes
	wsHandler := realtime.NewHandler(hub, corsReloader.AllowedOrigin, zapLogger)
	protected := apiRouter.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(authService, zapLogger))
	protected.Use(limiters[models.RatelimitScopeAPI].Middleware())
	protected.Use(middleware.Uploads(limiters[models.RatelimitScopeUploads].Middleware()))
	authHandler.RegisterRoutes(protected)
	handlers.NewBoardHandler(manager, zapLogger).RegisterRoutes(protected)
	handlers.NewTaskHandler(manager, zapLogger).RegisterRoutes(protected)
	handlers.NewProfileHandler(manager, zapLogger).RegisterRoutes(protected)
	handlers.NewSettingsHandler(manager, zapLogger).RegisterRoutes(protected)
	handlers.NewNotificationHandler(manager, wsHandler, zapLogger).RegisterRoutes(protected)

	// Catch-all OPTIONS handler for preflight requests
	// The CORS middleware will handle setting headers before this is called
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server; WriteTimeout is left to the Timeout middleware so
	// websockets and downloads are not cut off
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	// CORS and rate limit hot-reload loops
	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	go corsReloader.Start(reloadCtx)
	for _, l := range limiters {
		go l.Start(reloadCtx)
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	// Flushes pending debounced edits before the stores close
	manager.Close()

	zapLogger.Info("server_exited")
}
