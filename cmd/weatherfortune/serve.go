package main

import (
	"context"
	"fmt"

	"github.com/ManuGH/weatherfortune/internal/api"
	"github.com/ManuGH/weatherfortune/internal/config"
	"github.com/ManuGH/weatherfortune/internal/daemon"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/metrics"
	"github.com/ManuGH/weatherfortune/internal/validation"
	"github.com/ManuGH/weatherfortune/internal/version"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, loader, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := xglog.WithComponent("daemon")

	source := "env+defaults"
	if loader.Path() != "" {
		source = loader.Path()
	}
	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("config", source).
		Str("addr", cfg.API.ListenAddr).
		Msg("starting weatherfortune")
	logger.Info().Msgf("→ Forecast upstream: %s (ttl %s)", cfg.Forecast.BaseURL, cfg.Forecast.CacheTTL)
	logger.Info().Msgf("→ Cache: %s", cfg.Cache.Backend)
	if cfg.Storage.Enabled {
		logger.Info().Msgf("→ Storage: %s", cfg.Storage.Path)
	} else {
		logger.Warn().Msg("→ Storage: disabled (stored climatology, residuals and history unavailable)")
	}

	if err := validation.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}
	metrics.SetBuildInfo(version.Version, version.Commit)

	rt, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	mgr, err := daemon.NewManager(config.ParseServerConfig(cfg.API.ListenAddr), daemon.Deps{
		Logger:         logger,
		APIHandler:     rt.API.Handler(),
		MetricsHandler: api.MetricsHandler(),
		MetricsAddr:    cfg.API.MetricsListenAddr,
	})
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return fmt.Errorf("create manager: %w", err)
	}
	rt.RegisterHooks(mgr)

	holder := config.NewConfigHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder, rt)
	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	logger.Info().Msg("server exiting")
	return nil
}
