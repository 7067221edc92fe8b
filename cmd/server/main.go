package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/secretsanta/internal/handler"
	"github.com/aryan0dhankhar/secretsanta/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/secretsanta/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/secretsanta/internal/observability/metrics"
	"github.com/aryan0dhankhar/secretsanta/internal/observability/tracing"
	"github.com/aryan0dhankhar/secretsanta/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/secretsanta/internal/repository"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
	"github.com/aryan0dhankhar/secretsanta/internal/security/ratelimit"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
	"github.com/aryan0dhankhar/secretsanta/internal/storage"
	"github.com/aryan0dhankhar/secretsanta/pkg/config"
)

func main() {
	// a missing .env is fine; the environment still applies
	_ = godotenv.Load()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting Secret Santa server",
		slog.String("environment", cfg.Environment),
		slog.String("data_dir", cfg.DataDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "secretsanta", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Data directory, activity log and record store
	if err := repository.EnsureDataDir(cfg.DataDir); err != nil {
		log.Error("failed to prepare data directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	activity := audit.NewLogger(log, cfg.ActivityLogPath())
	store := storage.New(storage.Options{
		Logger:        log,
		Events:        activity,
		Observer:      metrics.StoreObserver{},
		ReadAttempts:  cfg.Store.ReadAttempts,
		WriteAttempts: cfg.Store.WriteAttempts,
		RetryDelay:    cfg.Store.RetryDelay,
	})

	// 4. Initialize repositories
	users := repository.NewUserRepository(store, cfg.UsersPath(), log)
	draws := repository.NewDrawRepository(store, cfg.DrawsPath(), log)
	resets := repository.NewResetRequestRepository(store, cfg.ResetRequestsPath(), log)

	// 5. Login lockout, shared through Redis when configured
	var lockout ratelimit.Lockout = ratelimit.NewMemoryLockout(cfg.LoginMaxAttempts, cfg.LoginLockout)
	var pinger handler.Pinger
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, "secretsanta:", log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		pinger = redisClient

		breaker := circuitbreaker.NewCircuitBreaker("redis-lockout", 3, 1, 30*time.Second)
		breaker.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
			metrics.SetBreakerState(name, int(to))
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
		lockout = ratelimit.NewGuardedLockout(
			ratelimit.NewRedisLockout(redisClient, cfg.LoginMaxAttempts, cfg.LoginLockout),
			lockout,
			breaker,
			log,
		)
	}

	// 6. Initialize security components
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		log.Warn("JWT_SECRET not set, tokens will not survive a restart")
		jwtSecret = uuid.NewString() + uuid.NewString()
	}
	tokenManager := auth.NewTokenManager(jwtSecret, "secretsanta", cfg.TokenTTL)
	rateLimiter := ratelimit.NewLimiter(cfg.APIRateLimit, time.Minute)

	// 7. Initialize services
	authService := service.NewAuthService(users, tokenManager, lockout, activity, log)
	userService := service.NewUserService(users, activity, log)
	drawService := service.NewDrawService(draws, users, activity, log)
	resetService := service.NewResetService(resets, users, activity, log)

	// 8. Setup HTTP routes
	router := handler.NewRouter(handler.RouterConfig{
		Auth:           authService,
		Users:          userService,
		Draws:          drawService,
		Resets:         resetService,
		Activity:       activity,
		Tokens:         tokenManager,
		Limiter:        rateLimiter,
		Health:         handler.NewHealthHandler(cfg.DataDir, pinger, log),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		Logger:         log,
	})

	// 9. Start HTTP server
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:     otelhttp.NewHandler(router, "secretsanta"),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the activity websocket is long lived
		IdleTimeout: 60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.APIRateLimit),
		slog.String("rate_limit_window", "1m"),
		slog.Bool("redis_lockout", cfg.RedisURL != ""),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	log.Info("server stopped")
}
