package cache

import (
	"log/slog"
	"time"
)

// Config selects and configures a cache backend.
type Config struct {
	// RedisURL selects the Redis backend when set.
	RedisURL string
	// Prefix is the Redis key prefix.
	Prefix     string
	DefaultTTL time.Duration
}

// New creates a Redis cache when RedisURL is set and reachable, and an
// in-memory cache otherwise.
func New(cfg Config, logger *slog.Logger) Cache {
	if cfg.RedisURL != "" {
		opts := DefaultRedisOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}

		rc, err := NewRedisCache(opts)
		if err == nil {
			logger.Info("using redis cache", "prefix", opts.Prefix)
			return rc
		}
		logger.Warn("redis unavailable, falling back to memory cache", "error", err)
	}

	return NewMemoryCache(cfg.DefaultTTL, time.Minute)
}
