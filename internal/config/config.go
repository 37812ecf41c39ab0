// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the portal configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Entitlement cache TTL bounds. Cached entitlements may lag a decision by at
// most the TTL.
const (
	MinEntitlementTTL = 5 * time.Second
	MaxEntitlementTTL = 30 * time.Second
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"SVCP_DB_PATH" envDefault:"./data/svcportal.db"`
	SessionSecret string `env:"SVCP_SESSION_SECRET,required"`
	ServerHost    string `env:"SVCP_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"SVCP_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"SVCP_ENV" envDefault:"development"`
	LogLevel      string `env:"SVCP_LOG_LEVEL" envDefault:"info"`

	// Entitlement cache
	RedisURL       string        `env:"SVCP_REDIS_URL"`
	CachePrefix    string        `env:"SVCP_CACHE_PREFIX" envDefault:"svcp:"`
	EntitlementTTL time.Duration `env:"SVCP_ENTITLEMENT_TTL" envDefault:"15s"`

	// Lifecycle event webhooks
	WebhookURLs    []string `env:"SVCP_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret  string   `env:"SVCP_WEBHOOK_SECRET"`
	WebhookWorkers int      `env:"SVCP_WEBHOOK_WORKERS" envDefault:"3"`

	EventRetentionDays int     `env:"SVCP_EVENT_RETENTION_DAYS" envDefault:"90"` // 0 keeps events forever
	APIRateLimit       float64 `env:"SVCP_API_RATE_LIMIT" envDefault:"10"`       // requests per second per user

	// Seeding configuration
	DoSeed        bool   `env:"SVCP_DO_SEED" envDefault:"false"`
	AdminEmail    string `env:"SVCP_ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"SVCP_ADMIN_PASSWORD"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// WebhooksEnabled returns true if at least one webhook endpoint is configured.
func (c Config) WebhooksEnabled() bool {
	return len(c.WebhookURLs) > 0
}

// EventRetention returns the audit event retention window.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("SVCP_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("SVCP_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("SVCP_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if cfg.EntitlementTTL < MinEntitlementTTL || cfg.EntitlementTTL > MaxEntitlementTTL {
		return nil, fmt.Errorf("SVCP_ENTITLEMENT_TTL must be between %s and %s, got %s",
			MinEntitlementTTL, MaxEntitlementTTL, cfg.EntitlementTTL)
	}
	if cfg.EventRetentionDays < 0 {
		return nil, fmt.Errorf("SVCP_EVENT_RETENTION_DAYS must not be negative, got %d", cfg.EventRetentionDays)
	}
	if cfg.APIRateLimit <= 0 {
		return nil, fmt.Errorf("SVCP_API_RATE_LIMIT must be positive, got %v", cfg.APIRateLimit)
	}
	if cfg.WebhooksEnabled() && cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("SVCP_WEBHOOK_SECRET is required when SVCP_WEBHOOK_URLS is set")
	}

	urls := cfg.WebhookURLs[:0]
	for _, u := range cfg.WebhookURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	cfg.WebhookURLs = urls

	if cfg.DoSeed && cfg.AdminPassword == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("SVCP_ADMIN_PASSWORD is required to seed outside development")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
