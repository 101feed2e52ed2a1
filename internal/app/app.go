// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pocketbudget/entitlement-engine/internal/bootstrap"
	"github.com/pocketbudget/entitlement-engine/internal/config"
	"github.com/pocketbudget/entitlement-engine/internal/server"
	"github.com/pocketbudget/entitlement-engine/pkg/catalog"
	"github.com/pocketbudget/entitlement-engine/pkg/clock"
	"github.com/pocketbudget/entitlement-engine/pkg/handler"
	"github.com/pocketbudget/entitlement-engine/pkg/session"
	"github.com/pocketbudget/entitlement-engine/pkg/store"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
	"github.com/sirupsen/logrus"
)

const sweepInterval = time.Minute

// App holds all application dependencies and manages the application lifecycle.
type App struct {
	cfg               *config.Config
	clock             clock.Clock
	httpServer        *server.HTTPServer
	grpcServer        *server.GRPCServer
	metricsServer     *server.MetricsServer
	manager           *session.Manager
	sweeper           clock.Stopper
	redisClient       *redis.Client
	db                *sql.DB
	shutdownTelemetry func(context.Context) error
}

// New creates and initializes a new application instance.
//
// Components are initialized in dependency order:
// 1. Telemetry (so every later span is exported)
// 2. Redis (optional: sessions, installations, analytics stream)
// 3. Budget data store (optional: usage counts)
// 4. Catalog (YAML engine definition)
// 5. Engine components and session manager
// 6. Servers (HTTP API, gRPC health, metrics)
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logrus.Info("initializing application...")

	app := &App{cfg: cfg, clock: clock.Real()}

	// ============================================================
	// Step 1: Setup telemetry
	// ============================================================
	shutdownTelemetry, err := server.SetupTelemetry(ctx, server.TelemetryConfig{
		Enabled:        cfg.OtelEnabled,
		ZipkinEndpoint: cfg.OtelZipkinEndpoint,
		ServiceName:    cfg.ServiceName,
		Environment:    cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup telemetry: %w", err)
	}
	app.shutdownTelemetry = shutdownTelemetry

	// ============================================================
	// Step 2: Initialize Redis
	// ============================================================
	if cfg.RedisEnabled {
		if err := app.initRedis(ctx); err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
	}

	// ============================================================
	// Step 3: Initialize the budget data store
	// ============================================================
	var usageSource usage.Source
	if cfg.DatabaseURL != "" {
		db, err := usage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open budget data store: %w", err)
		}
		app.db = db
		usageSource = usage.NewPostgresSource(db)
		logrus.Info("usage counts read from the budget data store")
	} else {
		logrus.Info("no DATABASE_URL set, using client-reported usage counts")
	}

	// ============================================================
	// Step 4: Load the catalog
	// ============================================================
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog from %s: %w", cfg.CatalogPath, err)
	}
	logrus.Infof("loaded catalog from %s", cfg.CatalogPath)

	// ============================================================
	// Step 5: Bootstrap engine components
	// ============================================================
	sink := bootstrap.InitAnalytics(app.redisUniversal(), bootstrap.AnalyticsConfig{
		Stream:    cfg.AnalyticsStream,
		RateLimit: cfg.AnalyticsRateLimit,
	})

	deps, err := bootstrap.InitEngine(cat, sink, app.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}

	sessions, installations := app.initStores()
	app.manager = session.NewManager(deps, sessions, installations, session.ManagerConfig{
		StableBucketing: cfg.StableBucketing,
		ResumeSessions:  cfg.ResumeSessions,
		IdleTimeout:     cfg.SessionIdleTimeout,
	})
	if cfg.SessionIdleTimeout > 0 {
		app.sweeper = app.manager.StartSweeper(sweepInterval)
	}

	// ============================================================
	// Step 6: Setup servers
	// ============================================================
	healthChecker := store.NewHealthChecker(app.redisUniversal())

	h := handler.New(handler.Options{
		Manager: app.manager,
		Usage:   usageSource,
		Claims:  handler.NewClaimsParser(cfg.JWTSecret),
		Health:  healthChecker,
	})

	app.httpServer = server.NewHTTPServer(cfg.HTTPPort, h, cfg.CORSAllowedOrigins)
	if err := app.httpServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup HTTP server: %w", err)
	}

	app.grpcServer = server.NewGRPCServer(cfg.GRPCPort, healthChecker, app.clock, 0)
	if err := app.grpcServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup gRPC server: %w", err)
	}

	app.metricsServer = server.NewMetricsServer(cfg.MetricsPort, "/metrics")
	if err := app.metricsServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup metrics server: %w", err)
	}

	logrus.Info("application initialized successfully")

	return app, nil
}

// initRedis connects with exponential backoff.
func (a *App) initRedis(ctx context.Context) error {
	client, err := store.Connect(ctx, store.Options{
		Host:       a.cfg.RedisHost,
		Port:       a.cfg.RedisPort,
		Password:   a.cfg.RedisPassword,
		MaxRetries: a.cfg.RedisMaxRetries,
		RetryDelay: a.cfg.RedisRetryDelay(),
	})
	if err != nil {
		return err
	}

	a.redisClient = client
	logrus.Info("Redis client initialized")
	return nil
}

// redisUniversal returns the client as an interface, nil when Redis is disabled.
func (a *App) redisUniversal() redis.UniversalClient {
	if a.redisClient == nil {
		return nil
	}
	return a.redisClient
}

// initStores picks Redis-backed stores when Redis is enabled, memory otherwise.
func (a *App) initStores() (store.SessionStore, store.InstallationStore) {
	if a.redisClient == nil {
		logrus.Info("session snapshots kept in memory")
		return store.NewMemorySessionStore(), store.NewMemoryInstallationStore(uuid.NewString)
	}

	logrus.Infof("session snapshots kept in Redis (ttl %s)", a.cfg.SessionTTL)
	return store.NewRedisSessionStore(a.redisClient, store.RedisSessionStoreConfig{TTL: a.cfg.SessionTTL}),
		store.NewRedisInstallationStore(a.redisClient, uuid.NewString)
}
