// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package worker drives pending leads through extraction and generation
// in the background.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Processor is the lead queue the poller drains.
type Processor interface {
	ProcessNext(ctx context.Context) (bool, error)
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

const (
	DefaultInterval   = 30 * time.Second
	DefaultStaleAfter = 10 * time.Minute
	// maxBatch bounds one drain so a long queue cannot starve shutdown
	// checks and stale recovery.
	maxBatch = 100
)

// Poller processes leads one at a time on an interval.
type Poller struct {
	proc       Processor
	interval   time.Duration
	staleAfter time.Duration
}

// New creates a Poller. Zero durations take the defaults.
func New(proc Processor, interval, staleAfter time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Poller{proc: proc, interval: interval, staleAfter: staleAfter}
}

// Run polls until ctx is cancelled. It releases stale leads on start and
// then every staleAfter, and drains the queue on every tick.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("lead worker started", "interval", p.interval)
	defer slog.Info("lead worker stopped")

	p.releaseStale(ctx)
	lastRelease := time.Now()
	p.drain(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(lastRelease) >= p.staleAfter {
				p.releaseStale(ctx)
				lastRelease = time.Now()
			}
			p.drain(ctx)
		}
	}
}

// drain processes leads until the queue is empty, an error occurs or ctx
// is cancelled. It returns the number of leads handled.
func (p *Poller) drain(ctx context.Context) int {
	n := 0
	for n < maxBatch && ctx.Err() == nil {
		ok, err := p.proc.ProcessNext(ctx)
		if err != nil {
			slog.Error("lead worker: process next", "error", err)
			return n
		}
		if !ok {
			return n
		}
		n++
	}
	return n
}

func (p *Poller) releaseStale(ctx context.Context) {
	if _, err := p.proc.ReleaseStale(ctx, p.staleAfter); err != nil {
		slog.Error("lead worker: release stale", "error", err)
	}
}
