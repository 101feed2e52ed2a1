// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("no .env file loaded: %v", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	ports := []struct {
		name string
		port int
	}{
		{"HTTP_PORT", c.HTTPPort},
		{"GRPC_PORT", c.GRPCPort},
		{"METRICS_PORT", c.MetricsPort},
	}
	seen := make(map[int]string, len(ports))
	for _, p := range ports {
		if p.port < 1 || p.port > 65535 {
			return fmt.Errorf("invalid %s: %d (must be 1-65535)", p.name, p.port)
		}
		if other, ok := seen[p.port]; ok {
			return fmt.Errorf("%s and %s share port %d", other, p.name, p.port)
		}
		seen[p.port] = p.name
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if c.CatalogPath == "" {
		return fmt.Errorf("CATALOG_PATH is required")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid SESSION_TTL: %s (must be positive)", c.SessionTTL)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("invalid SESSION_IDLE_TIMEOUT: %s (must not be negative)", c.SessionIdleTimeout)
	}

	if c.RedisEnabled {
		if c.RedisMaxRetries < 0 {
			return fmt.Errorf("invalid REDIS_MAX_RETRIES: %d", c.RedisMaxRetries)
		}
		if c.RedisRetryDelayMs < 0 {
			return fmt.Errorf("invalid REDIS_RETRY_DELAY_MS: %d", c.RedisRetryDelayMs)
		}
	}
	if c.ResumeSessions && !c.RedisEnabled {
		logrus.Warn("RESUME_SESSIONS without REDIS_ENABLED only survives within this process")
	}

	if c.AnalyticsRateLimit < 0 {
		return fmt.Errorf("invalid ANALYTICS_RATE_LIMIT: %v", c.AnalyticsRateLimit)
	}

	return nil
}
