// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"sitesmith/internal/handlers"
	"sitesmith/internal/metrics"
	"sitesmith/internal/middleware"
	"sitesmith/internal/router"
	"sitesmith/internal/worker"
)

var (
	noMigrate bool
	withWork  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when enabled, the lead worker",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip running pending migrations on start")
	serveCmd.Flags().BoolVar(&withWork, "worker", false, "run the lead worker even if WORKER_ENABLED is false")
}

func runServe(cmd *cobra.Command, args []string) error {
	slog.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr())

	d := &deps{}
	defer d.close()
	if err := d.connectDB(cfg, !noMigrate); err != nil {
		return err
	}
	if err := d.connectValkey(cfg); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc, err := d.newService(cfg, m)
	if err != nil {
		return err
	}

	gate := middleware.NewKeyGate(cfg.APIKeys)
	if gate.Open() {
		slog.Warn("no API keys configured, the API is open")
	}
	limiter := middleware.NewRateLimiter(120, time.Minute)
	defer limiter.Stop()

	r := router.New(handlers.NewAPI(svc), gate, router.Options{
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RateLimiter:    limiter,
		Ready: func(ctx context.Context) error {
			if err := d.db.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := d.valkey.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("valkey: %w", err)
			}
			return nil
		},
	})

	// WriteTimeout must outlast the generation deadline.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.GenerateDeadline + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.WorkerEnabled || withWork {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.New(svc, cfg.WorkerInterval, 0).Run(ctx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	wg.Wait()

	slog.Info("server stopped gracefully")
	return nil
}
