package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherfortune_upstream_requests_total",
		Help: "Forecast provider requests by outcome",
	}, []string{"outcome"}) // outcome=success|http_error|decode_error|network_error|rejected

	upstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weatherfortune_upstream_request_duration_seconds",
		Help:    "Forecast provider round trip time",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	forecastCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherfortune_forecast_cache_total",
		Help: "Forecast cache lookups by layer and result",
	}, []string{"layer", "result"}) // layer=l1|l2 result=hit|miss|error

	cacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherfortune_cache_evictions_total",
		Help: "Expired entries removed by the cache janitor",
	}, []string{"layer"})
)

// RecordUpstreamRequest records one call to the forecast provider.
func RecordUpstreamRequest(outcome string, elapsed time.Duration) {
	upstreamRequestsTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		upstreamDuration.Observe(elapsed.Seconds())
	}
}

// RecordCacheLookup records a forecast cache lookup.
func RecordCacheLookup(layer, result string) {
	forecastCacheTotal.WithLabelValues(layer, result).Inc()
}

// AddCacheEvictions records entries removed by the janitor.
func AddCacheEvictions(layer string, n int) {
	if n <= 0 {
		return
	}
	cacheEvictionsTotal.WithLabelValues(layer).Add(float64(n))
}
