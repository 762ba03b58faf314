package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across packages.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	LatitudeKey  = "geo.latitude"
	LongitudeKey = "geo.longitude"

	TargetDateKey = "prediction.target_date"
	DaysAheadKey  = "prediction.days_ahead"
	MethodKey     = "prediction.method"
	WeightKey     = "prediction.w_anchor"

	CacheLayerKey = "cache.layer"
	CacheHitKey   = "cache.hit"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// LocationAttributes describes the requested point.
func LocationAttributes(lat, lon float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(LatitudeKey, lat),
		attribute.Float64(LongitudeKey, lon),
	}
}

// PredictionAttributes describes a computed prediction.
func PredictionAttributes(targetDate string, daysAhead int, method string, wAnchor float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(TargetDateKey, targetDate),
		attribute.Int(DaysAheadKey, daysAhead),
	}
	if method != "" {
		attrs = append(attrs,
			attribute.String(MethodKey, method),
			attribute.Float64(WeightKey, wAnchor),
		)
	}
	return attrs
}

// CacheAttributes describes a cache lookup.
func CacheAttributes(layer string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CacheLayerKey, layer),
		attribute.Bool(CacheHitKey, hit),
	}
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
