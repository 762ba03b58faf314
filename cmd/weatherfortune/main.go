// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command weatherfortune serves temperature predictions over HTTP and ships
// the maintenance commands for its local store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/weatherfortune/internal/config"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "weatherfortune",
		Short:         "Daily temperature predictions blending forecasts with climatology",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML); defaults to $WF_CONFIG or $WF_DATA_DIR/config.yaml")

	root.AddCommand(
		newServeCmd(opts),
		newVersionCmd(),
		newPredictCmd(opts),
		newHealthcheckCmd(),
		newConfigCmd(opts),
		newClimatologyCmd(opts),
		newResidualsCmd(opts),
		newStorageCmd(opts),
	)
	return root
}

// resolveConfigPath picks --config, then WF_CONFIG, then an existing
// config.yaml in the data dir.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("WF_CONFIG")); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(config.ParseString("WF_DATA_DIR", config.Defaults().DataDir))
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

// loadConfig resolves and loads the configuration, then configures logging
// from it.
func loadConfig(opts *rootOptions) (config.AppConfig, *config.Loader, error) {
	loader := config.NewLoader(resolveConfigPath(opts.configPath), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return cfg, nil, err
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: version.Version,
	})
	return cfg, loader, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
