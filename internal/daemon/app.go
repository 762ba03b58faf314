// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/weatherfortune/internal/cache"
	"github.com/ManuGH/weatherfortune/internal/config"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/rs/zerolog"
)

// App owns the long-lived runtime lifecycle (watchers, reload wiring, janitors)
// and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	rt           *Runtime
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. rt may be nil in tests.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, rt *Runtime) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		rt:           rt,
		reloadSignal: syscall.SIGHUP,
	}
}

// ApplyConfig pushes the reloadable settings into the running components.
func (a *App) ApplyConfig(cfg config.AppConfig) {
	if cfg.LogLevel != "" {
		if err := xglog.SetLevel(cfg.LogLevel); err != nil {
			a.logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
		}
	}
	if a.rt == nil {
		return
	}
	if a.rt.Forecasts != nil {
		a.rt.Forecasts.SetTTL(cfg.Forecast.CacheTTL)
	}
	if a.rt.API != nil {
		a.rt.API.ApplyConfig(cfg)
	}
	a.logger.Info().
		Str(xglog.FieldEvent, "config.applied").
		Str("log_level", cfg.LogLevel).
		Dur("forecast_ttl", cfg.Forecast.CacheTTL).
		Int("rate_limit_rpm", cfg.API.RateLimitRPM).
		Msg("configuration applied")
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.ApplyConfig(cfg)
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.rt != nil {
		interval := a.rt.Config.Cache.JanitorInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		if a.rt.Cache != nil {
			g.Go(func() error {
				return cache.RunJanitor(ctx, a.rt.Cache, interval, a.logger)
			})
		}
		if a.rt.Forecasts != nil {
			g.Go(func() error {
				return a.rt.Forecasts.RunJanitor(ctx, interval)
			})
		}
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
