// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import "time"

// Config holds all application configuration loaded from environment variables.
// Fields are parsed with github.com/caarlos0/env; defaults are set through envDefault.
type Config struct {
	// ============================================================
	// Server configuration
	// ============================================================
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8000"`
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"6565"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"entitlement-engine"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// ============================================================
	// Redis configuration
	// ============================================================
	RedisEnabled      bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost         string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort         string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisMaxRetries   int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`
	RedisRetryDelayMs int    `env:"REDIS_RETRY_DELAY_MS" envDefault:"1000"`

	// ============================================================
	// Budget data store
	// ============================================================
	// Empty means usage counts are taken from the client.
	DatabaseURL string `env:"DATABASE_URL"`

	// ============================================================
	// Engine configuration
	// ============================================================
	CatalogPath        string        `env:"CATALOG_PATH" envDefault:"config/catalog.yaml"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	StableBucketing    bool          `env:"STABLE_BUCKETING" envDefault:"false"`
	ResumeSessions     bool          `env:"RESUME_SESSIONS" envDefault:"false"`

	// ============================================================
	// HTTP API
	// ============================================================
	JWTSecret          string   `env:"JWT_SECRET"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// ============================================================
	// Analytics
	// ============================================================
	AnalyticsStream    string  `env:"ANALYTICS_STREAM" envDefault:"entitlement_engine:analytics"`
	AnalyticsRateLimit float64 `env:"ANALYTICS_RATE_LIMIT" envDefault:"200"`

	// ============================================================
	// Telemetry configuration
	// ============================================================
	OtelEnabled        bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OtelZipkinEndpoint string `env:"OTEL_EXPORTER_ZIPKIN_ENDPOINT"`
}

// RedisRetryDelay returns the configured retry delay as a duration.
func (c *Config) RedisRetryDelay() time.Duration {
	return time.Duration(c.RedisRetryDelayMs) * time.Millisecond
}
