package forecast

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/weatherfortune/internal/cache"
	"github.com/ManuGH/weatherfortune/internal/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu     sync.Mutex
	calls  atomic.Int32
	days   []int
	series Series
	err    error
	gate   chan struct{}
}

func (f *fakeFetcher) FetchDaily(_ context.Context, _, _ float64, forecastDays int) (Series, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.days = append(f.days, forecastDays)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return f.series, f.err
}

func seriesOf(vals ...float64) Series {
	s := Series{}
	for i := range vals {
		v := vals[i]
		s.TMean = append(s.TMean, &v)
	}
	return s
}

var today = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "wf.db"), sqlite.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestAnchorDay(t *testing.T) {
	assert.Equal(t, 0, AnchorDay(0))
	assert.Equal(t, 7, AnchorDay(7))
	assert.Equal(t, 10, AnchorDay(10))
	assert.Equal(t, 10, AnchorDay(45))
}

func TestProvider_AnchorPicksAnchorDay(t *testing.T) {
	f := &fakeFetcher{series: seriesOf(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)}
	p := NewProvider(f, WithTTL(0))

	v, ok := p.Anchor(context.Background(), 59.3, 18.0, today, 3)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = p.Anchor(context.Background(), 59.3, 18.0, today, 40)
	require.True(t, ok)
	assert.Equal(t, 10.0, v, "beyond day 10 the day-10 value anchors")

	assert.Equal(t, []int{4, 11}, f.days, "forecast_days is anchor_day+1")
}

func TestProvider_FailureIsAbsent(t *testing.T) {
	f := &fakeFetcher{err: errors.New("network down")}
	p := NewProvider(f)

	_, ok := p.Anchor(context.Background(), 1, 1, today, 2)
	assert.False(t, ok)
}

func TestProvider_ShortSeriesIsAbsent(t *testing.T) {
	f := &fakeFetcher{series: seriesOf(5, 6)}
	p := NewProvider(f)

	_, ok := p.Anchor(context.Background(), 1, 1, today, 5)
	assert.False(t, ok)
}

func TestProvider_L1AvoidsRefetch(t *testing.T) {
	f := &fakeFetcher{series: seriesOf(1, 2, 3)}
	p := NewProvider(f, WithCache(cache.NewMemoryCache()), WithTTL(time.Hour))

	for i := 0; i < 3; i++ {
		v, ok := p.Anchor(context.Background(), 10, 20, today, 2)
		require.True(t, ok)
		assert.Equal(t, 3.0, v)
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestProvider_FailuresAreNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("timeout")}
	p := NewProvider(f, WithCache(cache.NewMemoryCache()))

	_, _ = p.Anchor(context.Background(), 1, 1, today, 1)
	_, _ = p.Anchor(context.Background(), 1, 1, today, 1)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestProvider_L2SharedAcrossProviders(t *testing.T) {
	store := openStore(t)
	now := today.Add(8 * time.Hour)
	clock := func() time.Time { return now }

	f1 := &fakeFetcher{series: seriesOf(4, 5)}
	p1 := NewProvider(f1, WithStore(store), WithClock(clock))
	v, ok := p1.Anchor(context.Background(), 59.33, 18.07, today, 1)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	f2 := &fakeFetcher{err: errors.New("should not be called")}
	p2 := NewProvider(f2, WithStore(store), WithClock(clock), WithCache(cache.NewMemoryCache()))
	v, ok = p2.Anchor(context.Background(), 59.33, 18.07, today, 1)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
	assert.Zero(t, f2.calls.Load())
}

func TestProvider_L2ExpiryAndPrune(t *testing.T) {
	store := openStore(t)
	now := today
	p := NewProvider(&fakeFetcher{series: seriesOf(1)}, WithStore(store), WithTTL(time.Hour),
		WithClock(func() time.Time { return now }))

	_, ok := p.Anchor(context.Background(), 1, 1, today, 0)
	require.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, found, err := store.Get(context.Background(), 1, 1, today.Format(dateLayout), now)
	require.NoError(t, err)
	assert.False(t, found, "expired rows are not served")

	n, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestProvider_SingleflightCollapsesConcurrentFetches(t *testing.T) {
	f := &fakeFetcher{series: seriesOf(1, 2), gate: make(chan struct{})}
	p := NewProvider(f, WithTTL(0))

	const n = 8
	var wg sync.WaitGroup
	results := make([]float64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = p.Anchor(context.Background(), 1, 1, today, 1)
		}(i)
	}

	assert.Eventually(t, func() bool { return f.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Less(t, f.calls.Load(), int32(n))
	for _, r := range results {
		assert.Equal(t, 2.0, r)
	}
}

func TestProvider_SetTTL(t *testing.T) {
	p := NewProvider(&fakeFetcher{})
	assert.Equal(t, time.Hour, p.TTL())
	p.SetTTL(time.Minute)
	assert.Equal(t, time.Minute, p.TTL())
}

func TestProvider_RunJanitorStops(t *testing.T) {
	p := NewProvider(&fakeFetcher{}, WithStore(openStore(t)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.RunJanitor(ctx, 5*time.Millisecond) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
