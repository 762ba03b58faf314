// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/weatherfortune/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "wf:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("forecast:a", []byte("payload"), 5*time.Minute)

	val, found := c.Get("forecast:a")
	require.True(t, found)
	assert.Equal(t, []byte("payload"), val)
	assert.True(t, mr.Exists("wf:forecast:a"), "key must be prefixed")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestRedisCache_GetMissing(t *testing.T) {
	_, c := setupMiniRedis(t)

	val, found := c.Get("nonexistent")
	assert.False(t, found)
	assert.Nil(t, val)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestRedisCache_Expiration(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)

	_, found := c.Get("k")
	assert.False(t, found)
}

func TestRedisCache_ClearOnlyTouchesPrefix(t *testing.T) {
	mr, c := setupMiniRedis(t)
	require.NoError(t, mr.Set("other:key", "keep"))

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Clear()

	_, found := c.Get("a")
	assert.False(t, found)
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), config.CacheConfig{Backend: config.CacheBackendRedis, RedisAddr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.IsType(t, &RedisCache{}, c)
}
