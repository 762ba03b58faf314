// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherfortune_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weatherfortune_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weatherfortune_http_in_flight_requests",
		Help: "Requests currently being served",
	})

	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "weatherfortune_build_info",
		Help: "Build information; value is always 1",
	}, []string{"version", "commit"})
)

// ObserveHTTPRequest records a finished request.
// route must be the router pattern, never the raw path, to bound cardinality.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// IncInFlight marks a request as started.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight marks a request as finished.
func DecInFlight() { httpInFlight.Dec() }

// SetBuildInfo publishes the running version.
func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}
