package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/weatherfortune/internal/config"
	"github.com/ManuGH/weatherfortune/internal/metrics"
	"github.com/rs/zerolog"
)

// New builds the cache backend selected in cfg.
func New(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (Cache, error) {
	switch cfg.Backend {
	case config.CacheBackendMemory, "":
		return NewMemoryCache(), nil
	case config.CacheBackendNone:
		return NewNoOpCache(), nil
	case config.CacheBackendRedis:
		c, err := NewRedisCache(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "wf:",
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.CacheBackendBadger:
		c, err := OpenBadgerCache(cfg.BadgerDir, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

// RunJanitor sweeps expired entries every interval until ctx is done.
// Backends without an Expirer are left alone.
func RunJanitor(ctx context.Context, c Cache, interval time.Duration, logger zerolog.Logger) error {
	exp, ok := c.(Expirer)
	if !ok || interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n := exp.DeleteExpired()
			metrics.AddCacheEvictions("l1", n)
			if n > 0 {
				logger.Debug().Int("evicted", n).Msg("cache janitor sweep")
			}
		}
	}
}
