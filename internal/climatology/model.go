// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package climatology provides the long-term daily temperature normal for a
// location, either from imported station normals or from a seasonal model.
package climatology

import (
	"context"
	"math"
	"time"
)

// Normal is the climatological mean and spread for one day at one place.
type Normal struct {
	Mean   float64
	Std    float64
	Source string // "model" or "stored"
}

// Provider returns the normal for a location and calendar date.
type Provider interface {
	Normal(ctx context.Context, lat, lon float64, date time.Time) (Normal, error)
}

const (
	northPeakDOY = 196 // mid July
	southPeakDOY = 15  // mid January
	yearLength   = 365.25
)

// Model is the seasonal cosine model. It never fails.
type Model struct{}

// Normal implements Provider.
func (Model) Normal(_ context.Context, lat, lon float64, date time.Time) (Normal, error) {
	mean, std := Seasonal(lat, date.YearDay())
	return Normal{Mean: mean, Std: std, Source: "model"}, nil
}

// Seasonal evaluates the model for a latitude and day of year.
// Amplitude and spread grow with |lat|; the peak is in local summer.
func Seasonal(lat float64, doy int) (mean, std float64) {
	peak := northPeakDOY
	if lat < 0 {
		peak = southPeakDOY
	}
	phase := 2 * math.Pi * float64(doy-peak) / yearLength
	absLat := math.Abs(lat)

	amplitude := absLat * 0.4
	base := 25 - absLat*0.6
	mean = base + amplitude*math.Cos(phase)

	std = (2.0 + absLat*0.05) * (1.0 + 0.5*math.Abs(math.Cos(phase)))
	return mean, std
}
