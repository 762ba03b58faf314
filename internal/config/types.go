// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"
)

// AppConfig is the fully resolved runtime configuration.
// Field tags describe the YAML file layout; env overrides use the WF_ prefix.
type AppConfig struct {
	Version string `yaml:"-"`

	DataDir    string `yaml:"dataDir"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	Timezone   string `yaml:"timezone"`

	API         APIConfig         `yaml:"api"`
	Forecast    ForecastConfig    `yaml:"forecast"`
	Cache       CacheConfig       `yaml:"cache"`
	Storage     StorageConfig     `yaml:"storage"`
	Climatology ClimatologyConfig `yaml:"climatology"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	ListenAddr        string   `yaml:"listenAddr"`
	MetricsListenAddr string   `yaml:"metricsListenAddr"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`
	// RateLimitRPM is the per-IP request budget for /api/predict. 0 disables it.
	RateLimitRPM int `yaml:"rateLimitRPM"`
}

// ForecastConfig configures the upstream forecast provider.
type ForecastConfig struct {
	BaseURL           string        `yaml:"baseURL"`
	Timeout           time.Duration `yaml:"timeout"`
	CacheTTL          time.Duration `yaml:"cacheTTL"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	BreakerThreshold  int           `yaml:"breakerThreshold"`
	BreakerReset      time.Duration `yaml:"breakerReset"`
}

// CacheConfig selects the L1 forecast cache backend.
type CacheConfig struct {
	Backend         string        `yaml:"backend"` // memory | redis | badger | none
	RedisAddr       string        `yaml:"redisAddr"`
	RedisPassword   string        `yaml:"redisPassword"`
	RedisDB         int           `yaml:"redisDB"`
	BadgerDir       string        `yaml:"badgerDir"`
	JanitorInterval time.Duration `yaml:"janitorInterval"`
}

// StorageConfig configures the SQLite database.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ClimatologyConfig configures the climatology lookup grid.
type ClimatologyConfig struct {
	// GridStep is the lat/lon resolution (degrees) used for stored normals.
	GridStep float64 `yaml:"gridStep"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc | http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendBadger = "badger"
	CacheBackendNone   = "none"
)

// Location resolves the configured time zone, falling back to the local zone.
func (c AppConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Clone returns a deep copy (slices included).
func (c AppConfig) Clone() AppConfig {
	out := c
	if c.API.AllowedOrigins != nil {
		out.API.AllowedOrigins = append([]string(nil), c.API.AllowedOrigins...)
	}
	return out
}
