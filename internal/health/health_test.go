package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ManuGH/weatherfortune/internal/persistence/sqlite"
	"github.com/ManuGH/weatherfortune/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
	sawCtx bool
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	_, m.sawCtx = ctx.Deadline()
	return CheckResult{Status: m.status}
}

type breaker resilience.State

func (b breaker) BreakerState() resilience.State { return resilience.State(b) }

type pinger struct{ err error }

func (p pinger) HealthCheck(context.Context) error { return p.err }

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "ok", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "slow", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks, "checks only run when verbose")

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []Status
		wantReady bool
		want      Status
	}{
		{"no checkers", nil, true, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, true, StatusHealthy},
		{"degraded stays ready", []Status{StatusHealthy, StatusDegraded}, true, StatusDegraded},
		{"unhealthy wins", []Status{StatusUnhealthy, StatusDegraded}, false, StatusUnhealthy},
		{"unhealthy last", []Status{StatusDegraded, StatusUnhealthy}, false, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			for i, s := range tt.statuses {
				m.RegisterChecker(&mockChecker{name: string(rune('a' + i)), status: s})
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestManager_ChecksGetDeadline(t *testing.T) {
	c := &mockChecker{name: "x", status: StatusHealthy}
	m := NewManager("test")
	m.RegisterChecker(c)
	m.Ready(context.Background())
	assert.True(t, c.sawCtx)
}

func TestServeReady_StatusCodes(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(&mockChecker{name: "db", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, StatusUnhealthy, body.Checks["db"].Status)
}

func TestServeHealth_AlwaysOK(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(&mockChecker{name: "db", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Status)
}

func TestDatabaseChecker(t *testing.T) {
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "wf.db"), sqlite.DefaultConfig())
	require.NoError(t, err)

	c := NewDatabaseChecker(db)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	require.NoError(t, db.Close())
	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestUpstreamChecker(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewUpstreamChecker(breaker(resilience.StateClosed)).Check(context.Background()).Status)
	assert.Equal(t, StatusDegraded, NewUpstreamChecker(breaker(resilience.StateOpen)).Check(context.Background()).Status)
	assert.Equal(t, StatusDegraded, NewUpstreamChecker(breaker(resilience.StateHalfOpen)).Check(context.Background()).Status)
}

func TestCacheChecker(t *testing.T) {
	c := NewCacheChecker("redis", pinger{})
	assert.Equal(t, "cache_redis", c.Name())
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	res := NewCacheChecker("redis", pinger{err: errors.New("connection refused")}).Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "connection refused", res.Error)
}
