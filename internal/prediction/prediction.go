// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package prediction blends the short-range forecast with climatology and a
// learned residual offset into a temperature with uncertainty bands.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ManuGH/weatherfortune/internal/climatology"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/metrics"
	"github.com/ManuGH/weatherfortune/internal/residuals"
	"github.com/ManuGH/weatherfortune/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrInvalidDate        = errors.New("invalid date format")
	ErrPastDate           = errors.New("cannot predict for past dates")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrNonFinite          = errors.New("prediction inputs are not finite")
)

// Method names the source that dominates a prediction.
const (
	MethodForecast    = "forecast"
	MethodBlend       = "blend"
	MethodClimatology = "climatology"
)

const (
	// blendStartDay is the last lead time that uses the forecast as is.
	blendStartDay = 10
	// blendHalfLife is the number of days over which the anchor weight halves.
	blendHalfLife = 7.0

	minBand80     = 1.0
	band95Factor  = 1.6
	dateLayout    = "2006-01-02"
	lenientLayout = "2006-1-2"
)

// Explain exposes the inputs of a prediction.
type Explain struct {
	Anchor    *float64 `json:"anchor"`
	Climo     float64  `json:"climo"`
	WAnchor   float64  `json:"w_anchor"`
	AIOffset  float64  `json:"ai_offset"`
	DaysAhead int      `json:"days_ahead"`
	ClimoStd  float64  `json:"climo_std"`
	Method    string   `json:"method"`
}

// Result is a temperature prediction with 80% and 95% bands.
type Result struct {
	Temp    float64 `json:"temp"`
	Low80   float64 `json:"low80"`
	High80  float64 `json:"high80"`
	Low95   float64 `json:"low95"`
	High95  float64 `json:"high95"`
	Explain Explain `json:"explain"`
}

// AnchorSource returns the forecast value for today+min(daysAhead,10).
type AnchorSource interface {
	Anchor(ctx context.Context, lat, lon float64, today time.Time, daysAhead int) (float64, bool)
}

// Service computes predictions.
type Service struct {
	anchors   AnchorSource
	climo     climatology.Provider
	residuals residuals.Source
	repo      Repository
	now       func() time.Time
	loc       *time.Location
	logger    zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRepository persists every successful prediction.
func WithRepository(r Repository) Option { return func(s *Service) { s.repo = r } }

// WithResiduals sets the residual source. The default adds no offset.
func WithResiduals(r residuals.Source) Option { return func(s *Service) { s.residuals = r } }

// WithClock replaces the wall clock that defines "today".
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the time zone that defines "today" and parses dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService creates a prediction service.
func NewService(anchors AnchorSource, climo climatology.Provider, opts ...Option) *Service {
	s := &Service{
		anchors:   anchors,
		climo:     climo,
		residuals: residuals.None{},
		now:       time.Now,
		loc:       time.Local,
		logger:    xglog.WithComponent("prediction"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseDate parses YYYY-MM-DD in the service time zone.
func (s *Service) ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(lenientLayout, date, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// Today is the current calendar date in the service time zone.
func (s *Service) Today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

// DaysBetween counts calendar days from a to b, ignoring DST shifts.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// Predict computes the prediction for a point and YYYY-MM-DD date.
func (s *Service) Predict(ctx context.Context, lat, lon float64, date string) (Result, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer("prediction").Start(ctx, "prediction.predict")
	defer span.End()
	span.SetAttributes(telemetry.LocationAttributes(lat, lon)...)

	logger := xglog.WithContext(ctx, s.logger)

	res, target, err := s.predict(ctx, lat, lon, date)
	if err != nil {
		reason := errorReason(err)
		metrics.IncPredictionError(reason)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(reason)...)
		return Result{}, err
	}

	span.SetAttributes(telemetry.PredictionAttributes(date, res.Explain.DaysAhead, res.Explain.Method, res.Explain.WAnchor)...)
	metrics.RecordPrediction(res.Explain.Method, res.Explain.DaysAhead, time.Since(start))
	logger.Debug().
		Str(xglog.FieldEvent, "prediction.computed").
		Float64(xglog.FieldLat, lat).
		Float64(xglog.FieldLon, lon).
		Str(xglog.FieldDate, date).
		Int(xglog.FieldDaysAhead, res.Explain.DaysAhead).
		Str(xglog.FieldMethod, res.Explain.Method).
		Float64("temp", res.Temp).
		Msg("prediction computed")

	if s.repo != nil {
		if err := s.repo.Save(ctx, NewRecord(lat, lon, target, res)); err != nil {
			metrics.IncPersistenceFailure("predictions")
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "prediction.persist_failed").
				Msg("could not store prediction")
		}
	}
	return res, nil
}

// predict returns the result together with the parsed target date. "Today" is
// read once so a request spanning midnight stays consistent.
func (s *Service) predict(ctx context.Context, lat, lon float64, date string) (Result, time.Time, error) {
	target, err := s.ParseDate(date)
	if err != nil {
		return Result{}, time.Time{}, err
	}
	today := s.Today()
	daysAhead := DaysBetween(today, target)
	if daysAhead < 0 {
		return Result{}, time.Time{}, ErrPastDate
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Result{}, time.Time{}, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}

	anchor, hasAnchor := s.anchors.Anchor(ctx, lat, lon, today, daysAhead)

	normal, err := s.climo.Normal(ctx, lat, lon, target)
	if err != nil {
		return Result{}, time.Time{}, fmt.Errorf("climatology: %w", err)
	}

	offset, err := s.residuals.MeanOffset(ctx, int(target.Month()), min(daysAhead, residuals.MaxLead))
	if err != nil {
		return Result{}, time.Time{}, fmt.Errorf("residuals: %w", err)
	}

	var anchorPtr *float64
	if hasAnchor {
		anchorPtr = &anchor
	}
	res := Compute(Inputs{
		Anchor:    anchorPtr,
		Climo:     normal.Mean,
		ClimoStd:  normal.Std,
		AIOffset:  offset,
		DaysAhead: daysAhead,
	})
	if !res.finite() {
		return Result{}, time.Time{}, ErrNonFinite
	}
	return res, target, nil
}

func (r Result) finite() bool {
	for _, v := range []float64{r.Temp, r.Low80, r.High80, r.Low95, r.High95} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Inputs are the resolved components of a prediction.
type Inputs struct {
	Anchor    *float64
	Climo     float64
	ClimoStd  float64
	AIOffset  float64
	DaysAhead int
}

// AnchorWeight is 1 up to day 10, then halves every 7 days.
func AnchorWeight(daysAhead int) float64 {
	if daysAhead <= blendStartDay {
		return 1
	}
	return math.Pow(0.5, float64(daysAhead-blendStartDay)/blendHalfLife)
}

// Compute blends the inputs. It is pure.
func Compute(in Inputs) Result {
	w := 0.0
	pred := in.Climo
	if in.Anchor != nil {
		w = AnchorWeight(in.DaysAhead)
		pred = w*(*in.Anchor) + (1-w)*in.Climo
	}
	final := pred + in.AIOffset

	band80 := math.Max(minBand80, 0.6*in.ClimoStd+0.1*float64(in.DaysAhead))
	band95 := band95Factor * band80

	// A reading of exactly 0.0 is a real value and stays 0, never null.
	var anchor *float64
	if in.Anchor != nil {
		a := round(*in.Anchor, 1)
		anchor = &a
	}

	return Result{
		Temp:   round(final, 1),
		Low80:  round(final-band80, 1),
		High80: round(final+band80, 1),
		Low95:  round(final-band95, 1),
		High95: round(final+band95, 1),
		Explain: Explain{
			Anchor:    anchor,
			Climo:     round(in.Climo, 1),
			WAnchor:   round(w, 2),
			AIOffset:  round(in.AIOffset, 1),
			DaysAhead: in.DaysAhead,
			ClimoStd:  round(in.ClimoStd, 1),
			Method:    methodFor(w),
		},
	}
}

func methodFor(w float64) string {
	switch {
	case w >= 1:
		return MethodForecast
	case w <= 0:
		return MethodClimatology
	default:
		return MethodBlend
	}
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, ErrPastDate):
		return "past_date"
	case errors.Is(err, ErrInvalidCoordinates):
		return "validation"
	default:
		return "internal"
	}
}
