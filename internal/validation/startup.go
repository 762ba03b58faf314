// Package validation runs pre-flight checks before the server binds.
package validation

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ManuGH/weatherfortune/internal/config"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the server starts.
// It never contacts the forecast upstream; an unreachable upstream only
// degrades predictions.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if err := ctx.Err(); err != nil {
		return err
	}

	if cfg.Storage.Enabled {
		dir := filepath.Dir(cfg.Storage.Path)
		if err := checkWritableDir(logger, dir); err != nil {
			return fmt.Errorf("storage directory check failed: %w", err)
		}
	}

	if err := checkForecastURL(cfg.Forecast.BaseURL); err != nil {
		return fmt.Errorf("forecast upstream check failed: %w", err)
	}

	logger.Info().Msg("All startup checks passed")
	return nil
}

// checkWritableDir creates path when missing and proves it accepts writes.
func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	f, err := os.CreateTemp(path, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	logger.Info().Str("path", path).Msg("Data directory is writable")
	return nil
}

func checkForecastURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL %q must be an absolute http(s) URL", raw)
	}
	return nil
}
