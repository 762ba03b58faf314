// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api wires the HTTP surface: JSON API, pages, probes and metrics.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/weatherfortune/internal/api/middleware"
	"github.com/ManuGH/weatherfortune/internal/config"
	"github.com/ManuGH/weatherfortune/internal/health"
	"github.com/ManuGH/weatherfortune/internal/layout"
	xglog "github.com/ManuGH/weatherfortune/internal/log"
	"github.com/ManuGH/weatherfortune/internal/web"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Predictor web.Predictor
	Health    *health.Manager
}

// Server owns the router and runtime-tunable HTTP settings.
type Server struct {
	cfg       config.AppConfig
	predictor web.Predictor
	health    *health.Manager
	pages     *web.Handler
	limiter   *middleware.RateLimit
	validator *requestValidator
	router    chi.Router
	logger    zerolog.Logger
}

// New builds the server and its routes.
func New(ctx context.Context, cfg config.AppConfig, deps Deps) (*Server, error) {
	doc, err := LoadOpenAPI(ctx)
	if err != nil {
		return nil, err
	}
	validator, err := newRequestValidator(doc)
	if err != nil {
		return nil, err
	}
	hm := deps.Health
	if hm == nil {
		hm = health.NewManager(cfg.Version)
	}
	s := &Server{
		cfg:       cfg,
		predictor: deps.Predictor,
		health:    hm,
		pages:     web.NewHandler(deps.Predictor),
		limiter:   middleware.NewRateLimit(cfg.API.RateLimitRPM, time.Minute),
		validator: validator,
		logger:    xglog.WithComponent("api"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ApplyConfig takes over settings that can change without a restart.
func (s *Server) ApplyConfig(cfg config.AppConfig) {
	if cfg.API.RateLimitRPM != s.limiter.Limit() {
		s.logger.Info().
			Str(xglog.FieldEvent, "api.rate_limit_changed").
			Int("old_rpm", s.limiter.Limit()).
			Int("new_rpm", cfg.API.RateLimitRPM).
			Msg("rate limit updated")
		s.limiter.SetLimit(cfg.API.RateLimitRPM)
	}
}

func (s *Server) routes() chi.Router {
	tracing := ""
	if s.cfg.Telemetry.Enabled {
		tracing = s.cfg.LogService
		if tracing == "" {
			tracing = "weatherfortune"
		}
	}
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins:        s.cfg.API.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracing,
		EnableLogging:         true,
	})

	r.Get("/", s.pages.Home)
	r.Handle("/static/*", layout.StaticHandler())

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.API.MetricsListenAddr == "" {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleRoot)
		r.Get("/openapi.yaml", s.handleOpenAPI)
		r.With(s.limiter.Handler, s.validator.Handler).Get("/predict", s.handlePredict)
	})

	r.NotFound(s.notFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		writeDetail(w, r, http.StatusNotFound, "Not Found")
		return
	}
	s.pages.NotFound(w, r)
}

// MetricsHandler serves Prometheus metrics on a dedicated listener.
func MetricsHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
