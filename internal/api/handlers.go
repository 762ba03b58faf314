package api

import (
	"net/http"
	"strconv"

	xglog "github.com/ManuGH/weatherfortune/internal/log"
)

// RootResponse is the GET /api banner.
type RootResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, RootResponse{Message: "Weather Fortune API"})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(OpenAPISpec())
}

// handlePredict serves GET /api/predict. Parameters were validated against
// the OpenAPI document before this runs.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeDetail(w, r, http.StatusUnprocessableEntity, validationDetail(err))
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeDetail(w, r, http.StatusUnprocessableEntity, validationDetail(err))
		return
	}
	date := q.Get("date")

	res, err := s.predictor.Predict(r.Context(), lat, lon, date)
	if err != nil {
		status, detail := classify(err)
		logger := xglog.WithContext(r.Context(), s.logger)
		evt := logger.Info()
		if status >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Err(err).
			Str(xglog.FieldEvent, "api.predict_failed").
			Float64(xglog.FieldLat, lat).
			Float64(xglog.FieldLon, lon).
			Str(xglog.FieldDate, date).
			Int(xglog.FieldStatus, status).
			Msg("prediction request failed")
		writeDetail(w, r, status, detail)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
