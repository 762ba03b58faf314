// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/prediction"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

const (
	detailInvalidDate = "Invalid date format. Use YYYY-MM-DD"
	detailPastDate    = "Cannot predict for past dates"
)

// classify maps a prediction error onto an HTTP status and detail.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, prediction.ErrInvalidDate):
		return http.StatusBadRequest, detailInvalidDate
	case errors.Is(err, prediction.ErrPastDate):
		return http.StatusBadRequest, detailPastDate
	case errors.Is(err, prediction.ErrInvalidCoordinates):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "Prediction error: " + err.Error()
	}
}

// writeJSON encodes v before writing the status. A value that cannot be
// encoded (NaN or Inf) is answered with a 500 detail.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "api.encode_error").
			Int("status", status).
			Msg("failed to encode response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Detail: "Prediction error: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, r, status, ErrorResponse{Detail: detail})
}
