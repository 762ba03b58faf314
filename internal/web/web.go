// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package web serves the server-rendered pages. Every page goes through
// layout.Render.
package web

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/weatherfortune/internal/layout"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/prediction"
	"github.com/rs/zerolog"
	"golang.org/x/text/message"
)

// Predictor computes a prediction for a point and date.
type Predictor interface {
	Predict(ctx context.Context, lat, lon float64, date string) (prediction.Result, error)
}

// Handler renders the home and not-found pages.
type Handler struct {
	predictor Predictor
	printer   *message.Printer
	logger    zerolog.Logger
}

// NewHandler creates a page handler.
func NewHandler(p Predictor) *Handler {
	return &Handler{
		predictor: p,
		printer:   message.NewPrinter(layout.Language),
		logger:    xglog.WithComponent("web"),
	}
}

var homeTmpl = template.Must(template.New("home").Parse(`<main>
<h1>{{.Meta.Title}}</h1>
<p class="lead">{{.Meta.Description}}</p>
<form class="forecast" method="get" action="/">
<input name="lat" type="text" inputmode="decimal" placeholder="Latitude" aria-label="Latitude" value="{{.Lat}}" required>
<input name="lon" type="text" inputmode="decimal" placeholder="Longitude" aria-label="Longitude" value="{{.Lon}}" required>
<input name="date" type="date" placeholder="YYYY-MM-DD" aria-label="Date" value="{{.Date}}" required>
<button type="submit">Predict</button>
</form>
{{- with .Error}}
<p class="error" role="alert">{{.}}</p>
{{- end}}
{{- with .Card}}
<section class="card" aria-live="polite">
<div class="temp">{{.Temp}} °C</div>
<p>80%: {{.Low80}} to {{.High80}} °C, 95%: {{.Low95}} to {{.High95}} °C</p>
<table>
<tr><th>Method</th><td>{{.Method}}</td></tr>
<tr><th>Forecast anchor</th><td>{{.Anchor}}</td></tr>
<tr><th>Climatology</th><td>{{.Climo}} ± {{.ClimoStd}}</td></tr>
<tr><th>Anchor weight</th><td>{{.WAnchor}}</td></tr>
<tr><th>AI offset</th><td>{{.AIOffset}}</td></tr>
<tr><th>Days ahead</th><td>{{.DaysAhead}}</td></tr>
</table>
</section>
{{- end}}
</main>`))

var notFoundTmpl = template.Must(template.New("notfound").Parse(`<main>
<h1>Not found</h1>
<p class="lead">There is no page at {{.}}.</p>
<p><a href="/">Back to the forecast</a></p>
</main>`))

type homeData struct {
	Meta  layout.Metadata
	Lat   string
	Lon   string
	Date  string
	Error string
	Card  *card
}

type card struct {
	Temp, Low80, High80, Low95, High95 string
	Method                             string
	Anchor                             string
	Climo, ClimoStd                    string
	WAnchor                            string
	AIOffset                           string
	DaysAhead                          string
}

// Home renders the form and, when lat, lon and date are all given, the result.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := homeData{
		Meta: layout.SiteMetadata(),
		Lat:  strings.TrimSpace(q.Get("lat")),
		Lon:  strings.TrimSpace(q.Get("lon")),
		Date: strings.TrimSpace(q.Get("date")),
	}

	if data.Lat != "" && data.Lon != "" && data.Date != "" {
		res, err := h.predict(r.Context(), data.Lat, data.Lon, data.Date)
		if err != nil {
			data.Error = userMessage(err)
			logger := xglog.WithContext(r.Context(), h.logger)
			logger.Info().Err(err).
				Str(xglog.FieldEvent, "page.predict_failed").
				Msg("prediction from form failed")
		} else {
			data.Card = h.card(res)
		}
	}

	h.render(w, r, http.StatusOK, homeTmpl, data)
}

// NotFound renders the 404 page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, notFoundTmpl, r.URL.Path)
}

var errBadCoordinate = errors.New("latitude and longitude must be numbers")

func (h *Handler) predict(ctx context.Context, latStr, lonStr, date string) (prediction.Result, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return prediction.Result{}, errBadCoordinate
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return prediction.Result{}, errBadCoordinate
	}
	return h.predictor.Predict(ctx, lat, lon, date)
}

func (h *Handler) card(res prediction.Result) *card {
	num := func(v float64) string { return h.printer.Sprintf("%.1f", v) }
	c := &card{
		Temp:      num(res.Temp),
		Low80:     num(res.Low80),
		High80:    num(res.High80),
		Low95:     num(res.Low95),
		High95:    num(res.High95),
		Method:    res.Explain.Method,
		Anchor:    "none",
		Climo:     num(res.Explain.Climo),
		ClimoStd:  num(res.Explain.ClimoStd),
		WAnchor:   h.printer.Sprintf("%.2f", res.Explain.WAnchor),
		AIOffset:  num(res.Explain.AIOffset),
		DaysAhead: h.printer.Sprintf("%d", res.Explain.DaysAhead),
	}
	if res.Explain.Anchor != nil {
		c.Anchor = num(*res.Explain.Anchor)
	}
	return c
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tmpl *template.Template, data any) {
	var children bytes.Buffer
	if err := tmpl.Execute(&children, data); err != nil {
		h.fail(w, r, err)
		return
	}
	var page bytes.Buffer
	if err := layout.Render(&page, template.HTML(children.String())); err != nil { // #nosec G203 -- produced by html/template above
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = page.WriteTo(w)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := xglog.WithContext(r.Context(), h.logger)
	logger.Error().Err(err).
		Str(xglog.FieldEvent, "page.render_failed").
		Msg("page render failed")
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, errBadCoordinate):
		return "Latitude and longitude must be numbers."
	case errors.Is(err, prediction.ErrInvalidDate):
		return "Invalid date format. Use YYYY-MM-DD"
	case errors.Is(err, prediction.ErrPastDate):
		return "Cannot predict for past dates"
	case errors.Is(err, prediction.ErrInvalidCoordinates):
		return "Latitude must be within ±90 and longitude within ±180."
	default:
		return "Prediction error: " + err.Error()
	}
}
