// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the dialwatch control API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/dialwatch/internal/activity"
	"github.com/ManuGH/dialwatch/internal/api/middleware"
	"github.com/ManuGH/dialwatch/internal/health"
	xglog "github.com/ManuGH/dialwatch/internal/log"
	"github.com/ManuGH/dialwatch/internal/sink"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Engine is the part of the discovery engine the API drives.
type Engine interface {
	RegisterApp(appName string) error
	UnregisterApp(appName string)
	RegisteredApps() []string
	IsRunning() bool
	Scan(ctx context.Context)
	Snapshot(ctx context.Context) error
}

// SinkLister exposes the concrete sinks with their cached statuses.
type SinkLister interface {
	DialSinks() []*sink.DialSink
}

// ActivityStore is the mutable activity registry.
type ActivityStore interface {
	activity.Registry
	Add(a activity.Activity) error
}

// Deps wires the server to the running daemon.
type Deps struct {
	Engine     Engine
	Sinks      SinkLister
	Activities ActivityStore
	// Health defaults to a manager that only checks the engine is running.
	Health *health.Manager
	Logger zerolog.Logger
}

// Config holds HTTP settings.
type Config struct {
	ListenAddr         string
	RateLimitPerMinute int
	TracingService     string
	ShutdownTimeout    time.Duration
}

// Server is the HTTP control surface.
type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
	health *health.Manager
}

// New validates deps and builds a server.
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Engine == nil:
		return nil, errors.New("api: engine is required")
	case deps.Sinks == nil:
		return nil, errors.New("api: sink lister is required")
	case deps.Activities == nil:
		return nil, errors.New("api: activity store is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	hm := deps.Health
	if hm == nil {
		hm = health.NewManager("")
		hm.RegisterChecker(health.EngineChecker{IsRunning: deps.Engine.IsRunning})
	}
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str(xglog.FieldComponent, "api").Logger(),
		health: hm,
	}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimitPerMinute > 0 {
			r.Use(middleware.APIRateLimit(s.cfg.RateLimitPerMinute))
		}
		r.Get("/apps", s.handleListApps)
		r.Put("/apps/{name}", s.handleRegisterApp)
		r.Delete("/apps/{name}", s.handleUnregisterApp)

		r.Get("/sinks", s.handleListSinks)

		r.Get("/activities", s.handleListActivities)
		r.Post("/activities", s.handleAddActivity)
		r.Delete("/activities/{routeID}", s.handleRemoveActivity)

		r.Post("/scan", s.handleScan)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str(xglog.FieldEvent, "api.listening").
			Str("addr", s.cfg.ListenAddr).
			Msg("control API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info().Str(xglog.FieldEvent, "api.stopped").Msg("control API stopped")
	return nil
}
