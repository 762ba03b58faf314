// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// DefaultYAML is the commented starter file written by `config init`.
const DefaultYAML = `# Weather Fortune configuration.
# Environment variables (WF_*) override every value below.
dataDir: /var/lib/weatherfortune
logLevel: info
timezone: Local

api:
  listenAddr: ":8080"
  # metricsListenAddr: ":9090"
  allowedOrigins:
    - http://localhost:3000
  rateLimitRPM: 120

forecast:
  baseURL: https://api.open-meteo.com
  timeout: 10s
  cacheTTL: 1h
  requestsPerSecond: 5
  burst: 10
  breakerThreshold: 5
  breakerReset: 30s

cache:
  backend: memory # memory | redis | badger | none
  janitorInterval: 10m

storage:
  enabled: true

climatology:
  gridStep: 0.25

telemetry:
  enabled: false
  exporter: grpc
  endpoint: localhost:4317
  samplingRate: 1.0
`

// WriteDefaultFile atomically writes DefaultYAML to path.
// An existing file is only replaced when overwrite is set.
func WriteDefaultFile(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := renameio.WriteFile(path, []byte(DefaultYAML), 0o640); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
