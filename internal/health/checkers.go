// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"database/sql"

	"github.com/ManuGH/weatherfortune/internal/persistence/sqlite"
	"github.com/ManuGH/weatherfortune/internal/resilience"
)

// DatabaseChecker pings the SQLite database. Failure makes the service unready.
type DatabaseChecker struct {
	db *sql.DB
}

// NewDatabaseChecker creates a checker for db.
func NewDatabaseChecker(db *sql.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	if err := sqlite.Ping(ctx, c.db); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// BreakerSource exposes a circuit breaker state.
type BreakerSource interface {
	BreakerState() resilience.State
}

// UpstreamChecker reports the forecast upstream breaker. An open breaker is
// degraded: predictions still fall back to climatology.
type UpstreamChecker struct {
	src BreakerSource
}

// NewUpstreamChecker creates a checker for the forecast upstream.
func NewUpstreamChecker(src BreakerSource) *UpstreamChecker {
	return &UpstreamChecker{src: src}
}

func (c *UpstreamChecker) Name() string { return "forecast_upstream" }

func (c *UpstreamChecker) Check(context.Context) CheckResult {
	state := c.src.BreakerState()
	switch state {
	case resilience.StateOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit " + string(state) + ", serving climatology"}
	case resilience.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit " + string(state)}
	default:
		return CheckResult{Status: StatusHealthy, Message: "circuit " + string(state)}
	}
}

// Pinger is implemented by remote caches.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// CacheChecker reports the L1 cache backend. Cache failures only degrade
// the service.
type CacheChecker struct {
	name string
	p    Pinger
}

// NewCacheChecker creates a checker for a cache backend.
func NewCacheChecker(backend string, p Pinger) *CacheChecker {
	return &CacheChecker{name: "cache_" + backend, p: p}
}

func (c *CacheChecker) Name() string { return c.name }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	if err := c.p.HealthCheck(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
