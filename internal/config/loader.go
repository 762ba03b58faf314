// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values shared by the loader and `config init`.
const (
	DefaultListenAddr      = ":8080"
	DefaultForecastBaseURL = "https://api.open-meteo.com"
	DefaultForecastTimeout = 10 * time.Second
	DefaultForecastTTL     = time.Hour
	DefaultDBFile          = "weatherfortune.db"
	DefaultFrontendOrigin  = "http://localhost:3000"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty path skips the file stage.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file path the loader reads, if any.
func (l *Loader) Path() string { return l.configPath }

// Load resolves the configuration: defaults, then the strict YAML file, then env, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.DataDir, DefaultDBFile)
	}
	if cfg.Cache.Backend == CacheBackendBadger && cfg.Cache.BadgerDir == "" {
		cfg.Cache.BadgerDir = filepath.Join(cfg.DataDir, "badger")
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:    "/tmp/weatherfortune",
		LogLevel:   "info",
		LogService: "weatherfortune",
		Timezone:   "Local",
		API: APIConfig{
			ListenAddr:     DefaultListenAddr,
			AllowedOrigins: []string{DefaultFrontendOrigin},
			RateLimitRPM:   120,
		},
		Forecast: ForecastConfig{
			BaseURL:           DefaultForecastBaseURL,
			Timeout:           DefaultForecastTimeout,
			CacheTTL:          DefaultForecastTTL,
			RequestsPerSecond: 5,
			Burst:             10,
			BreakerThreshold:  5,
			BreakerReset:      30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:         CacheBackendMemory,
			JanitorInterval: 10 * time.Minute,
		},
		Storage: StorageConfig{
			Enabled: true,
		},
		Climatology: ClimatologyConfig{
			GridStep: 0.25,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}

func (l *Loader) loadFile(path string, dst *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString("WF_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = ParseString("WF_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("WF_LOG_SERVICE", cfg.LogService)
	cfg.Timezone = ParseString("WF_TIMEZONE", cfg.Timezone)

	cfg.API.ListenAddr = ParseString("WF_LISTEN", cfg.API.ListenAddr)
	cfg.API.MetricsListenAddr = ParseString("WF_METRICS_LISTEN", cfg.API.MetricsListenAddr)
	cfg.API.AllowedOrigins = ParseList("WF_CORS_ORIGINS", cfg.API.AllowedOrigins)
	cfg.API.RateLimitRPM = ParseInt("WF_RATE_LIMIT_RPM", cfg.API.RateLimitRPM)

	cfg.Forecast.BaseURL = ParseString("WF_FORECAST_BASE_URL", cfg.Forecast.BaseURL)
	cfg.Forecast.Timeout = ParseDuration("WF_FORECAST_TIMEOUT", cfg.Forecast.Timeout)
	cfg.Forecast.CacheTTL = ParseDuration("WF_FORECAST_CACHE_TTL", cfg.Forecast.CacheTTL)
	cfg.Forecast.RequestsPerSecond = ParseFloat("WF_FORECAST_RPS", cfg.Forecast.RequestsPerSecond)
	cfg.Forecast.Burst = ParseInt("WF_FORECAST_BURST", cfg.Forecast.Burst)
	cfg.Forecast.BreakerThreshold = ParseInt("WF_FORECAST_BREAKER_THRESHOLD", cfg.Forecast.BreakerThreshold)
	cfg.Forecast.BreakerReset = ParseDuration("WF_FORECAST_BREAKER_RESET", cfg.Forecast.BreakerReset)

	cfg.Cache.Backend = strings.ToLower(ParseString("WF_CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.RedisAddr = ParseString("WF_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString("WF_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt("WF_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.BadgerDir = ParseString("WF_BADGER_DIR", cfg.Cache.BadgerDir)
	cfg.Cache.JanitorInterval = ParseDuration("WF_CACHE_JANITOR_INTERVAL", cfg.Cache.JanitorInterval)

	cfg.Storage.Enabled = ParseBool("WF_STORAGE_ENABLED", cfg.Storage.Enabled)
	cfg.Storage.Path = ParseString("WF_DB_PATH", cfg.Storage.Path)

	cfg.Climatology.GridStep = ParseFloat("WF_CLIMO_GRID_STEP", cfg.Climatology.GridStep)

	cfg.Telemetry.Enabled = ParseBool("WF_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("WF_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("WF_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat("WF_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString("WF_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
}
