// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Domain fields
	FieldLat       = "lat"
	FieldLon       = "lon"
	FieldDate      = "target_date"
	FieldDaysAhead = "days_ahead"
	FieldMethod    = "method"

	// HTTP fields
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
)
