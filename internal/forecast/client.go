// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package forecast fetches short-range daily mean temperatures from Open-Meteo
// and serves them through a two-level cache.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/weatherfortune/internal/metrics"
	"github.com/ManuGH/weatherfortune/internal/resilience"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

var (
	ErrUpstreamStatus = errors.New("forecast upstream returned an error status")
	ErrUpstreamDecode = errors.New("forecast upstream returned malformed data")
	ErrRateLimited    = errors.New("forecast upstream request budget exhausted")
)

// StatusError carries the upstream HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUpstreamStatus.Error(), e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUpstreamStatus }

// Series is the daily mean temperature series starting today. Entries are
// nil where the provider has no value.
type Series struct {
	Dates []string
	TMean []*float64
}

// At returns the value for day index i when present.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.TMean) || s.TMean[i] == nil {
		return 0, false
	}
	return *s.TMean[i], true
}

// Fetcher retrieves a daily series covering days 0..forecastDays-1.
type Fetcher interface {
	FetchDaily(ctx context.Context, lat, lon float64, forecastDays int) (Series, error)
}

// ClientOptions configures the Open-Meteo client.
type ClientOptions struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerThreshold  int
	BreakerReset      time.Duration
	UserAgent         string
	// Transport overrides the base transport, mainly for tests.
	Transport http.RoundTripper
}

const (
	defaultTimeout   = 10 * time.Second
	defaultRPS       = 5
	defaultBurst     = 10
	maxResponseBytes = 1 << 20
)

// Client talks to the Open-Meteo forecast API.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
	userAgent string
}

// NewClient creates a client with rate limiting, a circuit breaker and
// OpenTelemetry client spans.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "weatherfortune"
	}

	base := opts.Transport
	if base == nil {
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          16,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: opts.Timeout,
		}
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker: resilience.NewCircuitBreaker("forecast", opts.BreakerThreshold, opts.BreakerReset,
			resilience.WithFailurePredicate(countsAsOutage)),
		userAgent: opts.UserAgent,
	}
}

// countsAsOutage ignores client-side rejections that say nothing about upstream health.
func countsAsOutage(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, ErrUpstreamDecode)
}

// BreakerState reports the upstream circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

type dailyResponse struct {
	Daily *struct {
		Time            []string   `json:"time"`
		TemperatureMean []*float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
}

// FetchDaily implements Fetcher.
func (c *Client) FetchDaily(ctx context.Context, lat, lon float64, forecastDays int) (Series, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordUpstreamRequest("rejected", 0)
		return Series{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
	}

	var series Series
	start := time.Now()
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		series, err = c.fetch(ctx, lat, lon, forecastDays)
		return err
	})
	metrics.RecordUpstreamRequest(outcomeOf(err), time.Since(start))
	if err != nil {
		return Series{}, err
	}
	return series, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64, forecastDays int) (Series, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("daily", "temperature_2m_mean")
	q.Set("forecast_days", strconv.Itoa(forecastDays))
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return Series{}, fmt.Errorf("build forecast request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Series{}, fmt.Errorf("forecast request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return Series{}, &StatusError{Code: resp.StatusCode}
	}

	var body dailyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return Series{}, fmt.Errorf("%w: %w", ErrUpstreamDecode, err)
	}
	if body.Daily == nil {
		return Series{}, nil
	}
	return Series{Dates: body.Daily.Time, TMean: body.Daily.TemperatureMean}, nil
}

func outcomeOf(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "rejected"
	case errors.As(err, &se):
		return "http_error"
	case errors.Is(err, ErrUpstreamDecode):
		return "decode_error"
	default:
		return "network_error"
	}
}
