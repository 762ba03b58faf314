// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package forecast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/weatherfortune/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(ClientOptions{
		BaseURL:           srv.URL + "/",
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
		BreakerThreshold:  2,
		BreakerReset:      time.Minute,
	})
	return c, &calls
}

func TestClient_FetchDaily_BuildsOpenMeteoQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "59.3293", q.Get("latitude"))
		assert.Equal(t, "18.0686", q.Get("longitude"))
		assert.Equal(t, "temperature_2m_mean", q.Get("daily"))
		assert.Equal(t, "4", q.Get("forecast_days"))
		assert.Equal(t, "auto", q.Get("timezone"))
		assert.Equal(t, "weatherfortune", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"daily":{"time":["2026-01-01","2026-01-02","2026-01-03","2026-01-04"],"temperature_2m_mean":[1.5,null,-2.25,0]}}`))
	})

	series, err := c.FetchDaily(context.Background(), 59.3293, 18.0686, 4)
	require.NoError(t, err)
	require.Len(t, series.TMean, 4)

	v, ok := series.At(0)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = series.At(1)
	assert.False(t, ok, "null entries are absent")

	v, ok = series.At(3)
	assert.True(t, ok, "zero is a real value")
	assert.Equal(t, 0.0, v)

	_, ok = series.At(4)
	assert.False(t, ok, "index past the series is absent")
}

func TestClient_FetchDaily_MissingDailyBlock(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"latitude":1}`))
	})
	series, err := c.FetchDaily(context.Background(), 1, 1, 1)
	require.NoError(t, err)
	_, ok := series.At(0)
	assert.False(t, ok)
}

func TestClient_FetchDaily_StatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.FetchDaily(context.Background(), 1, 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestClient_FetchDaily_DecodeError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := c.FetchDaily(context.Background(), 1, 1, 1)
	assert.ErrorIs(t, err, ErrUpstreamDecode)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	_, _ = c.FetchDaily(ctx, 1, 1, 1)
	_, _ = c.FetchDaily(ctx, 1, 1, 1)
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	_, err := c.FetchDaily(ctx, 1, 1, 1)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "open breaker short-circuits")
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	for i := 0; i < 5; i++ {
		_, _ = c.FetchDaily(context.Background(), 1, 1, 1)
	}
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1})
	_, err := c.FetchDaily(context.Background(), 1, 1, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.FetchDaily(ctx, 1, 1, 1)
	assert.ErrorIs(t, err, ErrRateLimited)
}
