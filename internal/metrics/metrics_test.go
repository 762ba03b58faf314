package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func getCounterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	return getCounterValue(t, vec.WithLabelValues(labels...))
}

func getGaugeVecValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).Write(metric))
	return metric.GetGauge().GetValue()
}

func TestObserveHTTPRequest(t *testing.T) {
	before := getCounterVecValue(t, httpRequestsTotal, "POST", "/api/predict", "200")
	ObserveHTTPRequest("POST", "/api/predict", 200, 15*time.Millisecond)
	assert.Equal(t, before+1, getCounterVecValue(t, httpRequestsTotal, "POST", "/api/predict", "200"))
}

func TestObserveHTTPRequest_EmptyRouteIsUnmatched(t *testing.T) {
	before := getCounterVecValue(t, httpRequestsTotal, "GET", "unmatched", "404")
	ObserveHTTPRequest("GET", "", 404, time.Millisecond)
	assert.Equal(t, before+1, getCounterVecValue(t, httpRequestsTotal, "GET", "unmatched", "404"))
}

func TestRecordPrediction_NormalizesMethod(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"forecast", "forecast"},
		{"blend", "blend"},
		{"climatology", "climatology"},
		{"crystal-ball", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			before := getCounterVecValue(t, predictionsTotal, tt.want)
			RecordPrediction(tt.in, 3, time.Millisecond)
			assert.Equal(t, before+1, getCounterVecValue(t, predictionsTotal, tt.want))
		})
	}
}

func TestCircuitBreakerState_OneHot(t *testing.T) {
	SetCircuitBreakerState("forecast", "open")
	assert.Equal(t, 1.0, getGaugeVecValue(t, circuitBreakerState, "forecast", "open"))
	assert.Equal(t, 0.0, getGaugeVecValue(t, circuitBreakerState, "forecast", "closed"))

	SetCircuitBreakerState("forecast", "closed")
	assert.Equal(t, 0.0, getGaugeVecValue(t, circuitBreakerState, "forecast", "open"))
	assert.Equal(t, 1.0, getGaugeVecValue(t, circuitBreakerState, "forecast", "closed"))
}

func TestAddCacheEvictions_IgnoresZero(t *testing.T) {
	before := getCounterVecValue(t, cacheEvictionsTotal, "l2")
	AddCacheEvictions("l2", 0)
	AddCacheEvictions("l2", 4)
	assert.Equal(t, before+4, getCounterVecValue(t, cacheEvictionsTotal, "l2"))
}
