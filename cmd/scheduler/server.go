package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ehr/scheduler/internal/config"
	"github.com/ehr/scheduler/internal/domain/clinical"
	"github.com/ehr/scheduler/internal/domain/scheduling"
	"github.com/ehr/scheduler/internal/platform/auth"
	"github.com/ehr/scheduler/internal/platform/db"
	"github.com/ehr/scheduler/internal/platform/events"
	"github.com/ehr/scheduler/internal/platform/identifier"
	"github.com/ehr/scheduler/internal/platform/middleware"
)

const version = "0.1.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// resolveSigningKey returns JWT_SIGNING_KEY, or a random key when it is unset.
// A random key only makes sense in development, where Validate allows it.
func resolveSigningKey(raw string) ([]byte, bool, error) {
	if raw != "" {
		return []byte(raw), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, error) {
	if !cfg.KafkaEnabled() {
		logger.Info().Msg("KAFKA_BROKERS not set, appointment events are discarded")
		return events.NopPublisher{}, nil
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

// newEcho builds the server with global middleware and the unauthenticated
// endpoints. The API group is mounted separately.
func newEcho(cfg *config.Config, logger zerolog.Logger, reg *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.TenantHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if cfg.MetricsEnabled && reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	return e
}

type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

// mountAPI registers /api/v1 behind body limit, timeout, auth, tenant
// resolution and rate limiting, in that order.
func mountAPI(e *echo.Echo, cfg *config.Config, authMW, tenantMW echo.MiddlewareFunc, handlers ...routeRegistrar) *echo.Group {
	rl := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}

	api := e.Group("/api/v1",
		middleware.BodyLimit(cfg.BodyLimit),
		middleware.RequestTimeout(cfg.RequestTimeout),
		authMW,
		tenantMW,
		middleware.RateLimit(rl),
	)
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}
	return api
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := scheduling.NewMetrics(reg)

	// Events
	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	// Auth
	key, random, err := resolveSigningKey(cfg.JWTSigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if random {
		logger.Warn().Msg("JWT_SIGNING_KEY not set, using a random key; issued tokens will not survive a restart")
	}
	jwtMW := auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: key,
	})
	authMW := jwtMW
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(cfg.DefaultTenant, jwtMW)
	}

	// Scheduling
	appointments := scheduling.NewAppointmentRepoPG(pool)
	tenantConfigs := scheduling.NewCachedTenantConfigs(scheduling.NewTenantConfigRepoPG(pool), cfg.TenantConfigTTL)
	svc := scheduling.NewService(appointments, tenantConfigs, identifier.New(), publisher, metrics,
		logger.With().Str("component", "scheduling").Logger())

	e := newEcho(cfg, logger, reg)
	e.GET("/health/db", db.HealthHandler(pool, func() db.PoolStats { return db.GetPoolStats(pool) }))
	mountAPI(e, cfg, authMW, db.TenantMiddleware(pool, cfg.DefaultTenant, logger),
		scheduling.NewHandler(svc),
		clinical.NewHandler(),
	)

	// Start server
	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting scheduler")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
		return err
	}
	return nil
}
