// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SourceFetched("website", "ok")
	m.SourceFetched("website", "ok")
	m.SourceFetched("instagram", "rate-limited")
	m.PhaseFinished("generate", 3*time.Second, 1)
	m.PhaseFinished("research", time.Second, 0)
	m.RunFinished("succeeded", "")
	m.EditApplied("color", "deterministic")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues("website", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("instagram", "rate-limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.phaseRetries.WithLabelValues("generate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("succeeded", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.edits.WithLabelValues("color", "deterministic")))

	n, err := testutil.GatherAndCount(reg, "sitesmith_pipeline_phase_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "phases without retries must not create a series")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.SourceFetched("website", "ok")
	m.ExtractionFinished(time.Second)
	m.PhaseFinished("brief", time.Second, 1)
	m.RunFinished("failed", "generate")
	m.EditApplied("text", "deterministic")
	m.LeadProcessed("completed")
	m.RequestServed("GET", "/health", 200, time.Millisecond)
}

func TestMetrics_RequestServed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RequestServed("POST", "/api/v1/generate", 200, 2*time.Second)
	m.RequestServed("POST", "/api/v1/generate", 504, 3*time.Minute)

	n, err := testutil.GatherAndCount(reg, "sitesmith_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
