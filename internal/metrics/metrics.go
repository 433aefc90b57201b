// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics holds the Prometheus collectors for extraction,
// generation and edits. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service collectors.
type Metrics struct {
	fetches        *prometheus.CounterVec
	extractSeconds prometheus.Histogram
	phaseSeconds   *prometheus.HistogramVec
	phaseRetries   *prometheus.CounterVec
	runs           *prometheus.CounterVec
	edits          *prometheus.CounterVec
	leads          *prometheus.CounterVec
	requests       *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitesmith_source_fetches_total",
			Help: "Source fetches by source kind and outcome",
		}, []string{"source", "outcome"}),
		extractSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitesmith_extraction_duration_seconds",
			Help:    "Wall time of one extraction run",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		}),
		phaseSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitesmith_pipeline_phase_duration_seconds",
			Help:    "Duration of generation pipeline phases",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"phase"}),
		phaseRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitesmith_pipeline_phase_retries_total",
			Help: "Retries per generation pipeline phase",
		}, []string{"phase"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitesmith_pipeline_runs_total",
			Help: "Generation runs by final state and failed phase",
		}, []string{"state", "failed_phase"}),
		edits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitesmith_edits_total",
			Help: "Applied edits by type and mode",
		}, []string{"type", "mode"}),
		leads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitesmith_leads_processed_total",
			Help: "Leads processed by the background worker",
		}, []string{"outcome"}),
		requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitesmith_http_request_duration_seconds",
			Help:    "API request latency by route and status",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 180},
		}, []string{"method", "route", "status"}),
	}
}

// SourceFetched counts one source fetch. outcome is "ok" or a failure kind.
func (m *Metrics) SourceFetched(source, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ExtractionFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.extractSeconds.Observe(d.Seconds())
}

func (m *Metrics) PhaseFinished(phase string, d time.Duration, retries int) {
	if m == nil {
		return
	}
	m.phaseSeconds.WithLabelValues(phase).Observe(d.Seconds())
	if retries > 0 {
		m.phaseRetries.WithLabelValues(phase).Add(float64(retries))
	}
}

func (m *Metrics) RunFinished(state, failedPhase string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(state, failedPhase).Inc()
}

func (m *Metrics) EditApplied(editType, mode string) {
	if m == nil {
		return
	}
	m.edits.WithLabelValues(editType, mode).Inc()
}

func (m *Metrics) LeadProcessed(outcome string) {
	if m == nil {
		return
	}
	m.leads.WithLabelValues(outcome).Inc()
}

// RequestServed observes one HTTP request. route is the matched pattern,
// not the raw path.
func (m *Metrics) RequestServed(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
