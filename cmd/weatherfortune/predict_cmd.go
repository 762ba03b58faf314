package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/weatherfortune/internal/daemon"
	"github.com/spf13/cobra"
)

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var (
		lat, lon float64
		date     string
	)
	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Compute one prediction and print it as JSON",
		Example: `  weatherfortune predict --lat 59.33 --lon 18.07 --date 2026-06-14`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.Telemetry.Enabled = false

			rt, err := daemon.Bootstrap(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			defer func() { _ = rt.Close(context.WithoutCancel(cmd.Context())) }()

			res, err := rt.Predictor.Predict(cmd.Context(), lat, lon, date)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees (-90..90)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees (-180..180)")
	cmd.Flags().StringVar(&date, "date", "", "target date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newHealthcheckCmd() *cobra.Command {
	var (
		mode    string
		baseURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/healthz"
			switch mode {
			case "ready":
				path = "/readyz"
			case "live":
			default:
				return fmt.Errorf("invalid mode %q: use ready or live", mode)
			}

			client := http.Client{Timeout: timeout}
			resp, err := client.Get(strings.TrimRight(baseURL, "/") + path)
			if err != nil {
				return fmt.Errorf("healthcheck failed (network): %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Healthcheck successful (%s)\n", mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "ready", "healthcheck mode: ready or live")
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}
