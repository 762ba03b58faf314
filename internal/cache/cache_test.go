package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/weatherfortune/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache()

	c.Set("key1", []byte("value1"), 5*time.Minute)

	val, ok := c.Get("key1")
	require.True(t, ok, "expected to find key1")
	assert.Equal(t, []byte("value1"), val)

	_, ok = c.Get("nonexistent")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCache_CopiesValue(t *testing.T) {
	c := NewMemoryCache()
	buf := []byte("abc")
	c.Set("k", buf, time.Minute)
	buf[0] = 'z'

	val, _ := c.Get("k")
	assert.Equal(t, []byte("abc"), val)
}

func TestMemoryCache_ExpirationAndSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	c.Set("short", []byte("v"), time.Second)
	c.Set("long", []byte("v"), time.Hour)

	now = now.Add(2 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok, "expired entry must not be served")

	assert.Equal(t, 1, c.DeleteExpired())
	assert.Equal(t, 1, c.Stats().CurrentSize)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCache_NonPositiveTTLIgnored(t *testing.T) {
	c := NewMemoryCache()
	c.Set("k", []byte("v"), 0)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCache_DeleteClear(t *testing.T) {
	c := NewMemoryCache()
	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", []byte("v"), time.Minute)
				c.Get("k")
				c.DeleteExpired()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1600), c.Stats().Sets)
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("k", []byte("v"), time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, CacheStats{}, c.Stats())
	assert.NoError(t, c.Close())
}

func TestBadgerCache_InMemory(t *testing.T) {
	c, err := OpenBadgerCache("", zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	c.Set("forecast:1", []byte(`{"t":12.5}`), time.Minute)
	val, ok := c.Get("forecast:1")
	require.True(t, ok)
	assert.JSONEq(t, `{"t":12.5}`, string(val))
	assert.Equal(t, 1, c.Stats().CurrentSize)

	c.Delete("forecast:1")
	_, ok = c.Get("forecast:1")
	assert.False(t, ok)

	assert.NoError(t, c.HealthCheck(context.Background()))
	assert.Equal(t, 0, c.DeleteExpired())
}

func TestBadgerCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenBadgerCache(dir, zerolog.Nop())
	require.NoError(t, err)
	c.Set("k", []byte("v"), time.Hour)
	require.NoError(t, c.Close())

	c, err = OpenBadgerCache(dir, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	val, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{Backend: config.CacheBackendMemory}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(ctx, config.CacheConfig{Backend: config.CacheBackendNone}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, noOpCache{}, c)

	_, err = New(ctx, config.CacheConfig{Backend: "memcached"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunJanitor_SweepsUntilCancel(t *testing.T) {
	c := NewMemoryCache()
	c.Set("k", []byte("v"), time.Nanosecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunJanitor(ctx, c, 5*time.Millisecond, zerolog.Nop()) }()

	assert.Eventually(t, func() bool { return c.Stats().CurrentSize == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
