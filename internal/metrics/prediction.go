package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherfortune_predictions_total",
		Help: "Successful predictions by method",
	}, []string{"method"}) // method=forecast|blend|climatology

	predictionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherfortune_prediction_errors_total",
		Help: "Rejected or failed predictions by reason",
	}, []string{"reason"}) // reason=invalid_date|past_date|validation|internal

	predictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weatherfortune_prediction_duration_seconds",
		Help:    "Time spent computing a prediction including the upstream lookup",
		Buckets: prometheus.DefBuckets,
	})

	predictionDaysAhead = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weatherfortune_prediction_days_ahead",
		Help:    "Distribution of requested lead times in days",
		Buckets: []float64{0, 1, 3, 7, 10, 14, 30, 60, 120, 365},
	})

	persistenceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weatherfortune_persistence_failures_total",
		Help: "Storage writes that failed and were skipped",
	}, []string{"table"})
)

var predictionMethods = map[string]struct{}{
	"forecast":    {},
	"blend":       {},
	"climatology": {},
}

// RecordPrediction records a successful prediction.
func RecordPrediction(method string, daysAhead int, elapsed time.Duration) {
	if _, ok := predictionMethods[method]; !ok {
		method = "unknown"
	}
	predictionsTotal.WithLabelValues(method).Inc()
	predictionDaysAhead.Observe(float64(daysAhead))
	predictionDuration.Observe(elapsed.Seconds())
}

// IncPredictionError records a rejected or failed prediction.
func IncPredictionError(reason string) {
	predictionErrorsTotal.WithLabelValues(reason).Inc()
}

// IncPersistenceFailure records a storage write that was dropped.
func IncPersistenceFailure(table string) {
	persistenceFailuresTotal.WithLabelValues(table).Inc()
}
