package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/fergasdev/backend-fergas/internal/auth"
	"github.com/fergasdev/backend-fergas/internal/catalog"
	"github.com/fergasdev/backend-fergas/internal/common"
	"github.com/fergasdev/backend-fergas/internal/config"
	"github.com/fergasdev/backend-fergas/internal/db"
	"github.com/fergasdev/backend-fergas/internal/health"
	"github.com/fergasdev/backend-fergas/internal/obs"
	"github.com/fergasdev/backend-fergas/internal/ratelimit"
	"github.com/fergasdev/backend-fergas/internal/rentals"
	"github.com/fergasdev/backend-fergas/internal/reports"
	"github.com/fergasdev/backend-fergas/internal/sales"
)

const serviceName = "backend-fergas"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := obs.NewLogger("json", "info")
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("service", serviceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.OTELEndpoint,
			SamplingRatio: cfg.TraceSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("tracing disabled")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(shutdownCtx)
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, serviceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	if cfg.OTELEndpoint != "" {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Warn().Err(err).Msg("instrument redis tracing")
		}
	}

	metrics := obs.NewHTTPMetrics("fergas", obs.ParseBucketsCSV(cfg.MetricsBucketsCSV), nil)
	obs.MustRegisterDomainMetrics("fergas", nil)

	walkInID, err := uuid.Parse(cfg.WalkInClientID)
	if err != nil {
		logger.Fatal().Err(err).Str("walk_in_client_id", cfg.WalkInClientID).Msg("parse walk-in client id")
	}

	authService, err := auth.NewService(auth.Config{
		Store:          auth.PGStore{Pool: pool},
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init auth service")
	}
	authHandler := &auth.Handler{Service: authService}
	authMW := auth.Middleware{Service: authService}

	catalogService := catalog.NewService(
		catalog.PGStore{Pool: pool},
		catalog.Cache{R: redisClient, TTL: cfg.CatalogCacheTTL},
		logger,
	)
	catalogHandler := &catalog.Handler{
		Service:         catalogService,
		DefaultPageSize: cfg.CatalogDefaultLimit,
		MaxPageSize:     cfg.CatalogMaxLimit,
	}

	salesService := sales.NewService(sales.PGStore{Pool: pool}, logger, walkInID)
	salesHandler := &sales.Handler{
		Service:         salesService,
		DefaultPageSize: cfg.CatalogDefaultLimit,
		MaxPageSize:     cfg.CatalogMaxLimit,
	}

	rentalsHandler := &rentals.Handler{Service: rentals.NewService(rentals.PGStore{Pool: pool}, logger)}

	reportsHandler := &reports.Handler{Service: reports.NewService(
		reports.PGQueries{Pool: pool}, redisClient, cfg.ReportsCacheTTL, logger,
	)}

	healthHandler := &health.Handler{Checks: map[string]health.Checker{
		"db":    health.CheckerFunc(func(ctx context.Context) error { return pool.Ping(ctx) }),
		"redis": health.CheckerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	}}

	loginLimiter := ratelimit.Middleware{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		Key:     ratelimit.LoginKey,
		Window:  cfg.LoginRateWindow,
		Max:     cfg.LoginRateMax,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Use(obs.TracingMiddleware)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(loginLimiter.Handler).Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMW.RequireAuth)
			r.Get("/auth/me", authHandler.Me)
			catalogHandler.Routes(r, authMW.RequireRole("admin"))
			salesHandler.Routes(r, idem.Middleware)
			rentalsHandler.Routes(r)
			reportsHandler.Routes(r)
		})
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
