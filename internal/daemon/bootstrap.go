// Package daemon wires the service components together and owns the process
// lifecycle.
package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ManuGH/weatherfortune/internal/api"
	"github.com/ManuGH/weatherfortune/internal/cache"
	"github.com/ManuGH/weatherfortune/internal/climatology"
	"github.com/ManuGH/weatherfortune/internal/config"
	"github.com/ManuGH/weatherfortune/internal/forecast"
	"github.com/ManuGH/weatherfortune/internal/health"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/persistence/sqlite"
	"github.com/ManuGH/weatherfortune/internal/prediction"
	"github.com/ManuGH/weatherfortune/internal/residuals"
	"github.com/ManuGH/weatherfortune/internal/telemetry"
	"github.com/ManuGH/weatherfortune/internal/version"
	"github.com/rs/zerolog"
)

// Runtime holds the constructed components for one process.
type Runtime struct {
	Config    config.AppConfig
	DB        *sql.DB
	Cache     cache.Cache
	Client    *forecast.Client
	Forecasts *forecast.Provider
	Predictor *prediction.Service
	Health    *health.Manager
	API       *api.Server
	Tracing   *telemetry.Provider

	logger  zerolog.Logger
	closers []namedHook
}

// Bootstrap builds every component from cfg. On error, whatever was already
// opened is closed again.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg, logger: xglog.WithComponent("bootstrap")}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	rt.Tracing, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose("telemetry", rt.Tracing.Shutdown)

	if cfg.Storage.Enabled {
		rt.DB, err = sqlite.Open(ctx, cfg.Storage.Path, sqlite.DefaultConfig())
		if err != nil {
			return nil, err
		}
		db := rt.DB
		rt.onClose("sqlite", func(context.Context) error { return db.Close() })
	}

	rt.Cache, err = cache.New(ctx, cfg.Cache, xglog.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c := rt.Cache
	rt.onClose("cache", func(context.Context) error { return c.Close() })

	rt.Client = forecast.NewClient(forecast.ClientOptions{
		BaseURL:           cfg.Forecast.BaseURL,
		Timeout:           cfg.Forecast.Timeout,
		RequestsPerSecond: cfg.Forecast.RequestsPerSecond,
		Burst:             cfg.Forecast.Burst,
		BreakerThreshold:  cfg.Forecast.BreakerThreshold,
		BreakerReset:      cfg.Forecast.BreakerReset,
		UserAgent:         "weatherfortune/" + version.Version,
	})

	providerOpts := []forecast.Option{
		forecast.WithCache(rt.Cache),
		forecast.WithTTL(cfg.Forecast.CacheTTL),
	}
	var (
		climo  climatology.Provider = climatology.Model{}
		svcOpt                      = []prediction.Option{prediction.WithLocation(cfg.Location())}
	)
	if rt.DB != nil {
		providerOpts = append(providerOpts, forecast.WithStore(forecast.NewStore(rt.DB)))
		climo = climatology.NewStore(rt.DB, cfg.Climatology.GridStep, xglog.WithComponent("climatology"))
		svcOpt = append(svcOpt,
			prediction.WithResiduals(residuals.NewStore(rt.DB)),
			prediction.WithRepository(prediction.NewSQLRepository(rt.DB)),
		)
	}
	rt.Forecasts = forecast.NewProvider(rt.Client, providerOpts...)
	rt.Predictor = prediction.NewService(rt.Forecasts, climo, svcOpt...)

	rt.Health = health.NewManager(version.Version)
	if rt.DB != nil {
		rt.Health.RegisterChecker(health.NewDatabaseChecker(rt.DB))
	}
	rt.Health.RegisterChecker(health.NewUpstreamChecker(rt.Client))
	if p, ok := rt.Cache.(health.Pinger); ok {
		rt.Health.RegisterChecker(health.NewCacheChecker(cfg.Cache.Backend, p))
	}

	rt.API, err = api.New(ctx, cfg, api.Deps{Predictor: rt.Predictor, Health: rt.Health})
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	rt.logger.Info().
		Str(xglog.FieldEvent, "bootstrap.done").
		Bool("storage", rt.DB != nil).
		Str("cache", cfg.Cache.Backend).
		Bool("tracing", cfg.Telemetry.Enabled).
		Msg("components ready")
	return rt, nil
}

func (rt *Runtime) onClose(name string, fn ShutdownHook) {
	rt.closers = append(rt.closers, namedHook{name: name, hook: fn})
}

// RegisterHooks hands the close functions to m so they run after the servers
// stop. Close must not be called afterwards.
func (rt *Runtime) RegisterHooks(m Manager) {
	for _, c := range rt.closers {
		m.RegisterShutdownHook(c.name, c.hook)
	}
	rt.closers = nil
}

// Close releases resources in reverse order. Used by one-shot commands that
// never start a Manager.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].hook(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rt.closers[i].name, err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
