// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up the HTTP routes and middleware chains of the
// sitesmith API.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sitesmith/internal/handlers"
	"sitesmith/internal/metrics"
	"sitesmith/internal/middleware"
)

// Options carries the optional parts of the router.
type Options struct {
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// RateLimiter guards the API group when set.
	RateLimiter *middleware.RateLimiter
	// Ready reports whether the backing services are reachable.
	Ready func(ctx context.Context) error
}

// New creates the chi router with all middleware and route groups wired
// up.
func New(api *handlers.API, gate middleware.Gate, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger(opts.Metrics))

	// Probes and metrics sit outside the gate.
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(opts.Ready))
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecureHeaders)
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Middleware)
		}

		r.With(middleware.RequireOperation(gate, middleware.OpExtract)).
			Post("/extract", api.Extract)
		r.With(middleware.RequireOperation(gate, middleware.OpGenerate)).
			Post("/generate", api.Generate)

		r.Route("/sites/{slug}", func(r chi.Router) {
			r.With(middleware.RequireOperation(gate, middleware.OpLeads)).Get("/", api.GetSite)
			r.With(middleware.RequireOperation(gate, middleware.OpEdit)).Post("/edits", api.Edit)
			r.With(middleware.RequireOperation(gate, middleware.OpEdit)).Get("/edits", api.EditHistory)
		})

		r.Route("/leads", func(r chi.Router) {
			r.Use(middleware.RequireOperation(gate, middleware.OpLeads))
			r.Post("/", api.CreateLead)
			r.Get("/", api.ListLeads)
			r.Post("/{slug}/redrive", api.Redrive)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readyHandler answers 503 while ready reports an error.
func readyHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				slog.Warn("readiness check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
