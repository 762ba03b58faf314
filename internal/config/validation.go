// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Validate checks a resolved configuration. All problems are reported at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			add("logLevel: %q is not a valid level", cfg.LogLevel)
		}
	}
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			add("timezone: %v", err)
		}
	}

	if strings.TrimSpace(cfg.API.ListenAddr) == "" {
		add("api.listenAddr: must not be empty")
	}
	if cfg.API.RateLimitRPM < 0 {
		add("api.rateLimitRPM: must be >= 0")
	}
	for _, origin := range cfg.API.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			add("api.allowedOrigins: %q is not an origin", origin)
		}
	}

	if u, err := url.Parse(cfg.Forecast.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("forecast.baseURL: %q must be an http(s) URL", cfg.Forecast.BaseURL)
	}
	if cfg.Forecast.Timeout <= 0 {
		add("forecast.timeout: must be positive")
	}
	if cfg.Forecast.CacheTTL < 0 {
		add("forecast.cacheTTL: must be >= 0")
	}
	if cfg.Forecast.RequestsPerSecond <= 0 {
		add("forecast.requestsPerSecond: must be positive")
	}
	if cfg.Forecast.Burst < 1 {
		add("forecast.burst: must be >= 1")
	}

	switch cfg.Cache.Backend {
	case CacheBackendMemory, CacheBackendNone:
	case CacheBackendRedis:
		if cfg.Cache.RedisAddr == "" {
			add("cache.redisAddr: required for redis backend")
		}
	case CacheBackendBadger:
		if cfg.Cache.BadgerDir == "" {
			add("cache.badgerDir: required for badger backend")
		}
	default:
		add("cache.backend: %q is not one of memory, redis, badger, none", cfg.Cache.Backend)
	}

	if cfg.Storage.Enabled && cfg.Storage.Path == "" {
		add("storage.path: required when storage is enabled")
	}
	if cfg.Climatology.GridStep <= 0 {
		add("climatology.gridStep: must be positive")
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Exporter != "grpc" && cfg.Telemetry.Exporter != "http" {
			add("telemetry.exporter: %q is not one of grpc, http", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint: required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate: must be within [0, 1]")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
