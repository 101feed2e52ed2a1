// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.HTTPPort != 8000 || cfg.GRPCPort != 6565 || cfg.MetricsPort != 8080 {
		t.Errorf("ports = %d/%d/%d", cfg.HTTPPort, cfg.GRPCPort, cfg.MetricsPort)
	}
	if cfg.CatalogPath != "config/catalog.yaml" {
		t.Errorf("CatalogPath = %q", cfg.CatalogPath)
	}
	if cfg.StableBucketing || cfg.ResumeSessions {
		t.Error("bucketing and resume must default to off")
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %s", cfg.SessionTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestParse_FromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("STABLE_BUCKETING", "true")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example,https://admin.example")
	t.Setenv("REDIS_RETRY_DELAY_MS", "250")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d", cfg.HTTPPort)
	}
	if !cfg.StableBucketing {
		t.Error("StableBucketing not parsed")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %s", cfg.SessionTTL)
	}
	want := []string{"https://app.example", "https://admin.example"}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RedisRetryDelay() != 250*time.Millisecond {
		t.Errorf("RedisRetryDelay() = %s", cfg.RedisRetryDelay())
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")

	if _, err := Parse(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port out of range", func(c *Config) { c.HTTPPort = 0 }, "HTTP_PORT"},
		{"shared port", func(c *Config) { c.MetricsPort = c.GRPCPort }, "share port"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"empty catalog", func(c *Config) { c.CatalogPath = "" }, "CATALOG_PATH"},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"negative idle", func(c *Config) { c.SessionIdleTimeout = -time.Second }, "SESSION_IDLE_TIMEOUT"},
		{"negative retries", func(c *Config) { c.RedisEnabled = true; c.RedisMaxRetries = -1 }, "REDIS_MAX_RETRIES"},
		{"negative rate", func(c *Config) { c.AnalyticsRateLimit = -1 }, "ANALYTICS_RATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse()
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
