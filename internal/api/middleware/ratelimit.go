// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit is a per-IP sliding window limiter whose budget can be changed
// at runtime. A budget of 0 disables limiting.
type RateLimit struct {
	window  time.Duration
	current atomic.Pointer[httprate.RateLimiter]
	limit   atomic.Int64
}

// NewRateLimit creates a limiter allowing perWindow requests per window.
func NewRateLimit(perWindow int, window time.Duration) *RateLimit {
	l := &RateLimit{window: window}
	l.SetLimit(perWindow)
	return l
}

// SetLimit replaces the budget. Counters start over.
func (l *RateLimit) SetLimit(perWindow int) {
	if int64(perWindow) == l.limit.Load() && (perWindow <= 0 || l.current.Load() != nil) {
		return
	}
	l.limit.Store(int64(perWindow))
	if perWindow <= 0 {
		l.current.Store(nil)
		return
	}
	l.current.Store(httprate.NewRateLimiter(
		perWindow,
		l.window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(l.limited),
	))
}

// Limit returns the current budget.
func (l *RateLimit) Limit() int { return int(l.limit.Load()) }

// Handler applies the current limiter to next.
func (l *RateLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl := l.current.Load()
		if rl == nil {
			next.ServeHTTP(w, r)
			return
		}
		rl.Handler(next).ServeHTTP(w, r)
	})
}

func (l *RateLimit) limited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"detail":"Too many requests. Please try again later."}`))
}
