package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/weatherfortune/internal/config"
	"github.com/ManuGH/weatherfortune/internal/forecast"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     30 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 5 * time.Second,
	}
}

func textHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	})
}

func waitReady(t *testing.T, m Manager) *manager {
	t.Helper()
	mgr := m.(*manager)
	select {
	case <-mgr.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not bind in time")
	}
	return mgr
}

func fetch(t *testing.T, addr string) string {
	t.Helper()
	tr := &http.Transport{DisableKeepAlives: true}
	defer tr.CloseIdleConnections()
	resp, err := (&http.Client{Transport: tr, Timeout: 2 * time.Second}).Get("http://" + addr + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(testServerConfig(), Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()})
	assert.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewManager(testServerConfig(), Deps{Logger: xglog.WithComponent("test")})
	assert.ErrorIs(t, err, ErrMissingAPIHandler)

	m, err := NewManager(testServerConfig(), Deps{Logger: xglog.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestManager_ServesAndShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m, err := NewManager(testServerConfig(), Deps{
		Logger:         xglog.WithComponent("test"),
		APIHandler:     textHandler("api"),
		MetricsHandler: textHandler("metrics"),
		MetricsAddr:    "127.0.0.1:0",
	})
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"first", "second", "third"} {
		m.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	mgr := waitReady(t, m)
	assert.Equal(t, "api", fetch(t, mgr.Addr("api")))
	assert.Equal(t, "metrics", fetch(t, mgr.Addr("metrics")))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	assert.Equal(t, []string{"third", "second", "first"}, order, "hooks run LIFO")
	assert.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManager_MetricsServedByAPIWhenNoAddr(t *testing.T) {
	m, err := NewManager(testServerConfig(), Deps{
		Logger:         xglog.WithComponent("test"),
		APIHandler:     textHandler("api"),
		MetricsHandler: textHandler("metrics"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	mgr := waitReady(t, m)
	assert.Empty(t, mgr.Addr("metrics"))
	cancel()
	require.NoError(t, <-done)
}

func TestManager_PortConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	cfg := testServerConfig()
	cfg.ListenAddr = ln.Addr().String()

	hookRan := false
	m, err := NewManager(cfg, Deps{Logger: xglog.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)
	m.RegisterShutdownHook("db", func(context.Context) error {
		hookRan = true
		return nil
	})

	err = m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start API server")
	assert.True(t, hookRan, "resources are released when binding fails")
}

func TestManager_StartTwiceAndEarlyShutdown(t *testing.T) {
	m, err := NewManager(testServerConfig(), Deps{Logger: xglog.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	waitReady(t, m)

	assert.ErrorIs(t, m.Start(ctx), ErrManagerStarted)
	cancel()
	require.NoError(t, <-done)
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	m, err := NewManager(testServerConfig(), Deps{Logger: xglog.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)
	boom := errors.New("close failed")
	m.RegisterShutdownHook("db", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	waitReady(t, m)
	cancel()

	err = <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestApp_RequiresManager(t *testing.T) {
	assert.ErrorIs(t, NewApp(xglog.WithComponent("test"), nil, nil, nil).Run(context.Background()), ErrMissingManager)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	m, err := NewManager(testServerConfig(), Deps{Logger: xglog.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)

	provider := forecast.NewProvider(nil)
	app := NewApp(xglog.WithComponent("test"), m, nil, &Runtime{Forecasts: provider})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	waitReady(t, m)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_ApplyConfig(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	provider := forecast.NewProvider(nil)
	app := NewApp(xglog.WithComponent("test"), nil, nil, &Runtime{Forecasts: provider})

	cfg := config.Defaults()
	cfg.LogLevel = "warn"
	cfg.Forecast.CacheTTL = 5 * time.Minute
	app.ApplyConfig(cfg)

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Equal(t, 5*time.Minute, provider.TTL())

	cfg.LogLevel = "loud"
	app.ApplyConfig(cfg)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel(), "invalid levels are ignored")
}

func TestBootstrap_WiresComponents(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DataDir = dir
	cfg.Storage.Enabled = true
	cfg.Storage.Path = filepath.Join(dir, "wf.db")
	cfg.Cache.Backend = config.CacheBackendMemory
	cfg.Telemetry.Enabled = false

	rt, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, rt.DB)

	ready := rt.Health.Ready(context.Background())
	assert.True(t, ready.Ready)
	assert.Contains(t, ready.Checks, "database")
	assert.Contains(t, ready.Checks, "forecast_upstream")

	require.NoError(t, rt.Close(context.Background()))
	assert.Error(t, rt.DB.PingContext(context.Background()), "database is closed")
}

func TestBootstrap_WithoutStorage(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Enabled = false
	cfg.Cache.Backend = config.CacheBackendNone

	rt, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, rt.DB)
	assert.NotContains(t, rt.Health.Ready(context.Background()).Checks, "database")
	require.NoError(t, rt.Close(context.Background()))
}

func TestBootstrap_UnknownCacheBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Enabled = false
	cfg.Cache.Backend = "memcached"

	rt, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, rt)
	assert.Contains(t, err.Error(), "cache")
}
