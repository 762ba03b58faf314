package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/ManuGH/weatherfortune/internal/cache"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/metrics"
	"github.com/ManuGH/weatherfortune/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// MaxAnchorDay is the furthest lead time the upstream forecast is trusted for.
const MaxAnchorDay = 10

const dateLayout = "2006-01-02"

// AnchorDay is min(daysAhead, MaxAnchorDay).
func AnchorDay(daysAhead int) int {
	if daysAhead > MaxAnchorDay {
		return MaxAnchorDay
	}
	return daysAhead
}

// Provider resolves forecast anchors through L1 cache, L2 store and upstream.
type Provider struct {
	fetcher Fetcher
	l1      cache.Cache
	l2      *Store
	ttl     atomic.Int64
	now     func() time.Time
	sf      singleflight.Group
	logger  zerolog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithCache sets the L1 cache.
func WithCache(c cache.Cache) Option { return func(p *Provider) { p.l1 = c } }

// WithStore sets the L2 SQLite store.
func WithStore(s *Store) Option { return func(p *Provider) { p.l2 = s } }

// WithTTL sets how long fetched anchors are reused. Zero disables caching.
func WithTTL(ttl time.Duration) Option { return func(p *Provider) { p.ttl.Store(int64(ttl)) } }

// WithClock replaces the wall clock used for cache expiry.
func WithClock(now func() time.Time) Option { return func(p *Provider) { p.now = now } }

// NewProvider creates a Provider around fetcher.
func NewProvider(fetcher Fetcher, opts ...Option) *Provider {
	p := &Provider{
		fetcher: fetcher,
		l1:      cache.NewNoOpCache(),
		now:     time.Now,
		logger:  xglog.WithComponent("forecast"),
	}
	p.ttl.Store(int64(time.Hour))
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetTTL changes the reuse window at runtime.
func (p *Provider) SetTTL(ttl time.Duration) {
	p.ttl.Store(int64(ttl))
}

// TTL returns the current reuse window.
func (p *Provider) TTL() time.Duration {
	return time.Duration(p.ttl.Load())
}

type cachedAnchor struct {
	Value *float64 `json:"v"`
}

// Anchor returns the forecast mean temperature for today+AnchorDay(daysAhead)
// at the point. Any failure is logged and reported as absent.
func (p *Provider) Anchor(ctx context.Context, lat, lon float64, today time.Time, daysAhead int) (float64, bool) {
	anchorDay := AnchorDay(daysAhead)
	runDate := today.Format(dateLayout)
	anchorDate := today.AddDate(0, 0, anchorDay).Format(dateLayout)
	klat, klon := keyCoord(lat), keyCoord(lon)
	key := fmt.Sprintf("forecast:%.4f:%.4f:%s", klat, klon, anchorDate)

	ctx, span := telemetry.Tracer("forecast").Start(ctx, "forecast.anchor")
	defer span.End()
	span.SetAttributes(telemetry.LocationAttributes(lat, lon)...)
	span.SetAttributes(attribute.Int(telemetry.DaysAheadKey, daysAhead))

	logger := xglog.WithContext(ctx, p.logger)

	if raw, ok := p.l1.Get(key); ok {
		var c cachedAnchor
		if err := json.Unmarshal(raw, &c); err == nil {
			metrics.RecordCacheLookup("l1", "hit")
			span.SetAttributes(telemetry.CacheAttributes("l1", true)...)
			return deref(c.Value)
		}
		p.l1.Delete(key)
	}
	metrics.RecordCacheLookup("l1", "miss")

	if p.l2 != nil && p.TTL() > 0 {
		e, ok, err := p.l2.Get(ctx, klat, klon, anchorDate, p.now())
		switch {
		case err != nil:
			metrics.RecordCacheLookup("l2", "error")
			logger.Warn().Err(err).Str("event", "forecast.l2_read_failed").Msg("forecast cache read failed")
		case ok:
			metrics.RecordCacheLookup("l2", "hit")
			span.SetAttributes(telemetry.CacheAttributes("l2", true)...)
			p.fillL1(key, e.TMean, e.ExpiresAt.Sub(p.now()))
			return deref(e.TMean)
		default:
			metrics.RecordCacheLookup("l2", "miss")
		}
	}

	// Waiters share one upstream call; it must outlive any single caller.
	v, err, shared := p.sf.Do(key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		series, err := p.fetcher.FetchDaily(fetchCtx, lat, lon, anchorDay+1)
		if err != nil {
			return nil, err
		}
		var value *float64
		if t, ok := series.At(anchorDay); ok {
			value = &t
		}
		p.store(fetchCtx, key, klat, klon, runDate, anchorDate, value, series)
		return value, nil
	})
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttributes("upstream")...)
		logger.Warn().Err(err).
			Str("event", "forecast.fetch_failed").
			Int(xglog.FieldDaysAhead, daysAhead).
			Msg("error fetching forecast, falling back to climatology")
		return 0, false
	}
	if shared {
		logger.Debug().Str("event", "forecast.fetch_shared").Msg("joined in-flight forecast fetch")
	}
	value, _ := v.(*float64)
	if value == nil {
		logger.Info().
			Str("event", "forecast.anchor_missing").
			Int("anchor_day", anchorDay).
			Msg("forecast series has no value for anchor day")
	}
	return deref(value)
}

func (p *Provider) store(ctx context.Context, key string, lat, lon float64, runDate, targetDate string, value *float64, series Series) {
	ttl := p.TTL()
	if ttl <= 0 {
		return
	}
	p.fillL1(key, value, ttl)
	if p.l2 == nil {
		return
	}
	err := p.l2.Put(ctx, Entry{
		Lat: lat, Lon: lon,
		RunDate: runDate, TargetDate: targetDate,
		TMean: value, Series: series,
		ExpiresAt: p.now().Add(ttl),
	})
	if err != nil {
		metrics.IncPersistenceFailure("forecast_cache")
		p.logger.Warn().Err(err).Str("event", "forecast.l2_write_failed").Msg("forecast cache write failed")
	}
}

func (p *Provider) fillL1(key string, value *float64, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(cachedAnchor{Value: value})
	if err != nil {
		return
	}
	p.l1.Set(key, raw, ttl)
}

// Prune drops expired forecast_cache rows.
func (p *Provider) Prune(ctx context.Context) (int64, error) {
	if p.l2 == nil {
		return 0, nil
	}
	n, err := p.l2.DeleteExpired(ctx, p.now())
	if err != nil {
		return 0, err
	}
	metrics.AddCacheEvictions("l2", int(n))
	return n, nil
}

// RunJanitor prunes the L2 store every interval until ctx is done.
func (p *Provider) RunJanitor(ctx context.Context, interval time.Duration) error {
	if p.l2 == nil || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.Prune(ctx)
			if err != nil {
				p.logger.Warn().Err(err).Str("event", "forecast.prune_failed").Msg("forecast cache prune failed")
				continue
			}
			if n > 0 {
				p.logger.Debug().Int64("deleted", n).Str("event", "forecast.pruned").Msg("pruned expired forecasts")
			}
		}
	}
}

func keyCoord(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
