package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/tutorgrid/memory-api/internal/cache"
	"github.com/tutorgrid/memory-api/internal/config"
	"github.com/tutorgrid/memory-api/internal/database"
	"github.com/tutorgrid/memory-api/internal/handlers"
	"github.com/tutorgrid/memory-api/internal/logger"
	"github.com/tutorgrid/memory-api/internal/memory"
	"github.com/tutorgrid/memory-api/internal/middleware"
	"github.com/tutorgrid/memory-api/internal/queue"
	"github.com/tutorgrid/memory-api/internal/services/ai"
	"github.com/tutorgrid/memory-api/internal/telemetry"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.Strings("frontend_origins", cfg.FrontendOrigins),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "memory-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
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

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
	}
	migrateCancel()

	zapLogger.Info("connected_to_database")

	// Connect to Redis for the profile cache and rate limiting. The API stays
	// up without Redis; cache reads fall through to Postgres and rate
	// limiting is disabled.
	cacheTTL := cache.DefaultTTL
	if cfg.Memory.CacheTTLMinutes > 0 {
		cacheTTL = time.Duration(cfg.Memory.CacheTTLMinutes) * time.Minute
	}
	var profileCache memory.ProfileCache
	var redisCache *cache.ProfileCache
	if c, err := cache.NewProfileCache(cfg.RedisURL, cacheTTL, zapLogger); err != nil {
		zapLogger.Warn("redis_unavailable_cache_disabled", zap.Error(err))
	} else {
		redisCache = c
		profileCache = c
		defer func() {
			if err := redisCache.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis", zap.Duration("cache_ttl", cacheTTL))
	}

	// Connect to RabbitMQ for the embedding job queue. Consolidation works
	// without it; summaries simply go unembedded until a worker catches up.
	var jobQueue queue.JobQueue
	var rabbitQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		rabbitQueue, err = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Warn("rabbitmq_unavailable_embedding_jobs_disabled", zap.Error(err))
		} else {
			jobQueue = rabbitQueue
			defer func() {
				if err := rabbitQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
			zapLogger.Info("connected_to_rabbitmq")
		}
	} else {
		zapLogger.Warn("rabbitmq_not_configured_embedding_jobs_disabled")
	}

	// Initialize AI provider
	var aiProvider ai.Provider
	if cfg.OpenAIKey != "" {
		aiProvider = ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:         cfg.OpenAIKey,
			BaseURL:        cfg.AIBaseURL,
			Model:          cfg.AIModel,
			EmbeddingModel: cfg.AIEmbeddingModel,
			Logger:         zapLogger,
			DebugMode:      debugMode,
		})
	} else {
		zapLogger.Warn("openai_key_not_configured_running_in_fallback_mode")
	}

	// Initialize the consolidation engine
	store := database.NewStore(db)
	engine := memory.NewEngine(store, aiProvider, jobQueue, profileCache, memory.Config{
		TriggerRounds: cfg.Memory.TriggerRounds,
		TriggerTokens: cfg.Memory.TriggerTokens,
		KeepRecent:    cfg.Memory.KeepRecent,
		LookbackDays:  cfg.Memory.LookbackDays,
		MaxSummaries:  cfg.Memory.MaxSummaries,
	}, zapLogger)

	// Initialize handlers
	memoryHandler := handlers.NewMemoryHandler(engine)
	var cachePinger handlers.Pinger
	if redisCache != nil {
		cachePinger = redisCache
	}
	var queueChecker handlers.QueueChecker
	if rabbitQueue != nil {
		queueChecker = rabbitQueue
	}
	healthChecker := handlers.NewHealthChecker(db, cachePinger, queueChecker)

	// Setup router
	r := mux.NewRouter()

	// Middleware executes in registration order in gorilla/mux; outermost first.
	zapLogger.Info("setting_up_middleware")

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("memory-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendOrigins, true))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Rate limiting needs Redis; skip when unavailable
	var rateLimitMW func(http.Handler) http.Handler
	if redisCache != nil {
		rateLimitMW, err = middleware.RateLimit(redisCache.Client(), cfg.RateLimitRate)
		if err != nil {
			zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
		}
	}

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	memoryRouter := apiRouter.PathPrefix("/memory").Subrouter()
	if rateLimitMW != nil {
		memoryRouter.Use(rateLimitMW)
	}
	memoryHandler.RegisterRoutes(memoryRouter)

	// Catch-all OPTIONS handler for preflight requests; CORS middleware has
	// already set the headers by the time this runs.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries the connection with exponential backoff to handle
// RabbitMQ startup delays.
func connectRabbitMQ(amqpURL string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(amqpURL)
		if err == nil {
			return q, nil
		}
		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// Only expose minimal version info (sanitized for security)
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
