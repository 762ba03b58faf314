// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/weatherfortune/internal/climatology"
	"github.com/ManuGH/weatherfortune/internal/config"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/persistence/sqlite"
	"github.com/ManuGH/weatherfortune/internal/residuals"
	"github.com/spf13/cobra"
)

var errStorageDisabled = errors.New("storage is disabled (set storage.enabled or WF_STORAGE_ENABLED)")

// openStore loads the config and opens the SQLite database it names.
func openStore(ctx context.Context, opts *rootOptions) (config.AppConfig, *sql.DB, error) {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.Storage.Enabled {
		return cfg, nil, errStorageDisabled
	}
	db, err := sqlite.Open(ctx, cfg.Storage.Path, sqlite.DefaultConfig())
	if err != nil {
		return cfg, nil, err
	}
	return cfg, db, nil
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(opts.configPath)
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = filepath.Join(config.ParseString("WF_DATA_DIR", config.Defaults().DataDir), "config.yaml")
			}
			if err := config.WriteDefaultFile(path, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func newClimatologyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "climatology",
		Short: "Manage stored climatology normals",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.csv>",
		Short: "Upsert rows of lat,lon,doy,tmean[,tmin,tmax]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// #nosec G304 -- the operator names the file on the command line
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			rows, err := climatology.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			cfg, db, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			store := climatology.NewStore(db, cfg.Climatology.GridStep, xglog.WithComponent("climatology"))
			n, err := store.Upsert(cmd.Context(), rows)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d climatology rows into %s\n", n, cfg.Storage.Path)
			return nil
		},
	})
	return cmd
}

func newResidualsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "residuals",
		Short: "Manage forecast residuals",
	}

	var (
		month, lead int
		resid       float64
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Record one observed-minus-predicted residual",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := residuals.NewStore(db).Add(cmd.Context(), month, lead, resid); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added residual %.2f for month %d, lead %d\n", resid, month, lead)
			return nil
		},
	}
	add.Flags().IntVar(&month, "month", 0, "calendar month 1..12")
	add.Flags().IntVar(&lead, "lead", 0, fmt.Sprintf("lead time in days 0..%d", residuals.MaxLead))
	add.Flags().Float64Var(&resid, "resid", 0, "residual in °C")
	_ = add.MarkFlagRequired("month")
	_ = add.MarkFlagRequired("lead")
	_ = add.MarkFlagRequired("resid")
	cmd.AddCommand(add)
	return cmd
}

func newStorageCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the SQLite store",
	}

	var path, mode string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check database integrity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode = strings.ToLower(strings.TrimSpace(mode))
			if mode != "quick" && mode != "full" {
				return fmt.Errorf("invalid mode %q: use quick or full", mode)
			}
			if path == "" {
				cfg, _, err := loadConfig(opts)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				path = cfg.Storage.Path
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("database not found: %w", err)
			}

			issues, err := sqlite.VerifyIntegrity(cmd.Context(), path, mode)
			if err != nil {
				return err
			}
			if len(issues) > 0 {
				for _, issue := range issues {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", issue)
				}
				return fmt.Errorf("%s: integrity check found %d issue(s)", path, len(issues))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", path, mode)
			return nil
		},
	}
	verify.Flags().StringVar(&path, "path", "", "database file (defaults to the configured store)")
	verify.Flags().StringVar(&mode, "mode", "quick", "verification mode: quick or full")
	cmd.AddCommand(verify)
	return cmd
}
