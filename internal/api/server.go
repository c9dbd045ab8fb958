// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes frame extraction and the video listing over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/tempy/internal/api/middleware"
	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/library"
)

// Catalog is the part of the video library the handlers use.
// *library.Catalog implements it.
type Catalog interface {
	Resolve(filename string) (string, error)
	List(ctx context.Context) ([]library.Video, error)
}

// HealthHandlers serves the probe endpoints. *health.Manager implements it.
type HealthHandlers interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Config configures the HTTP surface.
type Config struct {
	AllowedOrigins []string
	RateLimitRPM   int
	// TracingService names the otelhttp spans. Empty disables HTTP tracing.
	TracingService string
	// Geometry is reported by the video listing so clients can size buffers.
	Geometry frames.Geometry
}

// Server holds the handler dependencies.
type Server struct {
	cfg       Config
	extractor frames.Extractor
	catalog   Catalog
	health    HealthHandlers
}

// New creates a server. health may be nil, in which case the probe
// endpoints answer 200 unconditionally.
func New(cfg Config, extractor frames.Extractor, catalog Catalog, health HealthHandlers) *Server {
	return &Server{
		cfg:       cfg,
		extractor: extractor,
		catalog:   catalog,
		health:    health,
	}
}

// Handler returns the routed handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		// Probes and scrapes stay outside the rate limit and access log.
		r.Use(middleware.Recoverer)
		r.Get("/healthz", s.handleHealthz)
		r.Get("/readyz", s.handleReadyz)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})

	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{
			AllowedOrigins: s.cfg.AllowedOrigins,
			EnableMetrics:  true,
			TracingService: s.cfg.TracingService,
			EnableLogging:  true,
			RateLimitRPM:   s.cfg.RateLimitRPM,
		})
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/api/frames", s.handleFrames)
		r.Get("/api/videos", s.handleVideos)
		r.Get("/api/openapi.yaml", handleOpenAPI)
	})

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		render.JSON(w, r, map[string]string{"status": "healthy"})
		return
	}
	s.health.ServeHealth(w, r)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		render.JSON(w, r, map[string]any{"ready": true, "status": "healthy"})
		return
	}
	s.health.ServeReady(w, r)
}
