// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package extract fans out one fetch per declared brand source, joins them
// under a deadline and merges whatever arrived into a BrandProfile.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sitesmith/internal/brand"
	"sitesmith/internal/fetch"
	"sitesmith/internal/metrics"
)

const (
	DefaultDeadline        = 120 * time.Second
	DefaultSourceFraction  = 0.75
	StatusOK               = "ok"
	drainGrace             = 250 * time.Millisecond
	maxMergedCompetitorSet = 24
)

// Fetchers are the per-kind source fetchers. A nil fetcher disables that
// source kind.
type Fetchers struct {
	Website    fetch.Fetcher
	Instagram  fetch.Fetcher
	Competitor fetch.Fetcher
	Logo       fetch.Fetcher
}

// Options tunes an Orchestrator.
type Options struct {
	// SourceTimeoutFraction is the share of the run deadline each single
	// source may take. Must be in (0, 1].
	SourceTimeoutFraction float64
	MaxGallery            int
	// MaxCompetitors caps how many competitor URLs are fetched; zero
	// fetches all declared ones.
	MaxCompetitors int
	Metrics        *metrics.Metrics
}

// Orchestrator runs extractions. It is safe for concurrent use.
type Orchestrator struct {
	fetchers Fetchers
	opts     Options
}

// New creates an Orchestrator.
func New(f Fetchers, opts Options) *Orchestrator {
	if opts.SourceTimeoutFraction <= 0 || opts.SourceTimeoutFraction > 1 {
		opts.SourceTimeoutFraction = DefaultSourceFraction
	}
	return &Orchestrator{fetchers: f, opts: opts}
}

// SourceStatus reports how one source fared.
type SourceStatus struct {
	Kind       brand.SourceKind `json:"kind"`
	Ref        string           `json:"ref"`
	Status     string           `json:"status"`
	DurationMS int64            `json:"durationMs"`
}

// Summary describes one extraction run.
type Summary struct {
	Sources   []SourceStatus `json:"sources"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	TimedOut  bool           `json:"timedOut"`
	ElapsedMS int64          `json:"elapsedMs"`
}

// Result is the outcome of a run: always a complete profile.
type Result struct {
	Profile brand.Profile `json:"profile"`
	Summary Summary       `json:"summary"`
}

// job is one declared source.
type job struct {
	kind    brand.SourceKind
	ref     string
	fetcher fetch.Fetcher
}

// outcome is what a job reports back to the collector.
type outcome struct {
	idx      int
	analysis brand.SourceAnalysis
	status   string
	took     time.Duration
}

// Extract validates in, fetches every declared source concurrently and
// builds the profile. Sources still pending when deadline elapses are
// cancelled and recorded as timeouts. The only error returned is a
// validation error; source failures are reported in the summary.
func (o *Orchestrator) Extract(ctx context.Context, in brand.ExtractionInput, deadline time.Duration) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return o.run(ctx, in, deadline), nil
}

// ExtractForGeneration is Extract with the generation flow's validation,
// where location is optional.
func (o *Orchestrator) ExtractForGeneration(ctx context.Context, in brand.ExtractionInput, deadline time.Duration) (*Result, error) {
	if err := in.ValidateForGeneration(); err != nil {
		return nil, err
	}
	return o.run(ctx, in, deadline), nil
}

func (o *Orchestrator) run(ctx context.Context, in brand.ExtractionInput, deadline time.Duration) *Result {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	start := time.Now()
	jobs := o.plan(in)

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	perSource := time.Duration(float64(deadline) * o.opts.SourceTimeoutFraction)
	results := make(chan outcome, len(jobs))
	g, gctx := errgroup.WithContext(runCtx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			results <- o.fetchOne(gctx, i, j, perSource)
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	analyses := make([]brand.SourceAnalysis, len(jobs))
	statuses := make([]SourceStatus, len(jobs))
	received := make([]bool, len(jobs))
	timedOut := false

collect:
	for n := 0; n < len(jobs); n++ {
		select {
		case r := <-results:
			received[r.idx] = true
			analyses[r.idx] = r.analysis
			statuses[r.idx] = SourceStatus{Kind: jobs[r.idx].kind, Ref: jobs[r.idx].ref, Status: r.status, DurationMS: r.took.Milliseconds()}
		case <-runCtx.Done():
			timedOut = true
			break collect
		}
	}
	cancel()
	if timedOut {
		// Let cancelled fetchers unwind so their goroutines do not outlive the run.
		select {
		case <-done:
		case <-time.After(drainGrace):
			slog.Warn("extraction sources still unwinding after deadline", "business", in.BusinessName)
		}
	}

	for i, j := range jobs {
		if received[i] {
			continue
		}
		analyses[i] = brand.Empty(j.kind, j.ref, string(fetch.Timeout))
		statuses[i] = SourceStatus{Kind: j.kind, Ref: j.ref, Status: string(fetch.Timeout), DurationMS: time.Since(start).Milliseconds()}
	}

	src := assemble(jobs, analyses)
	profile := brand.Build(in, src, brand.BuildOptions{MaxGallery: o.opts.MaxGallery})

	elapsed := time.Since(start)
	sum := Summary{Sources: statuses, TimedOut: timedOut, ElapsedMS: elapsed.Milliseconds()}
	for _, s := range statuses {
		if s.Status == StatusOK {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	o.opts.Metrics.ExtractionFinished(elapsed)
	slog.Info("extraction finished",
		"business", in.BusinessName,
		"sources", len(jobs),
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"timed_out", timedOut,
		"elapsed", elapsed,
	)
	return &Result{Profile: profile, Summary: sum}
}

// plan lists the declared sources in a fixed order.
func (o *Orchestrator) plan(in brand.ExtractionInput) []job {
	var jobs []job
	if in.WebsiteURL != "" && o.fetchers.Website != nil {
		jobs = append(jobs, job{brand.SourceWebsite, in.WebsiteURL, o.fetchers.Website})
	}
	if in.InstagramHandle != "" && o.fetchers.Instagram != nil {
		jobs = append(jobs, job{brand.SourceInstagram, in.InstagramHandle, o.fetchers.Instagram})
	}
	if o.fetchers.Competitor != nil {
		n := 0
		for _, u := range in.CompetitorURLs {
			if o.opts.MaxCompetitors > 0 && n == o.opts.MaxCompetitors {
				break
			}
			if u = strings.TrimSpace(u); u != "" {
				jobs = append(jobs, job{brand.SourceCompetitor, u, o.fetchers.Competitor})
				n++
			}
		}
	}
	if in.LogoURL != "" && o.fetchers.Logo != nil {
		jobs = append(jobs, job{brand.SourceLogo, in.LogoURL, o.fetchers.Logo})
	}
	return jobs
}

// fetchOne runs a single fetch under its own timeout. It never panics and
// always yields an analysis, empty on failure.
func (o *Orchestrator) fetchOne(ctx context.Context, idx int, j job, timeout time.Duration) (out outcome) {
	start := time.Now()
	out = outcome{idx: idx}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("source fetcher panicked",
				"source", j.kind, "ref", j.ref, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			out.analysis = brand.Empty(j.kind, j.ref, string(fetch.ParseError))
			out.status = string(fetch.ParseError)
		}
		out.took = time.Since(start)
		o.opts.Metrics.SourceFetched(string(j.kind), out.status)
	}()

	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a, err := j.fetcher.Fetch(fctx, j.ref)
	if err != nil {
		kind := fetch.KindOf(err)
		if fctx.Err() != nil {
			kind = fetch.Timeout
		}
		slog.Warn("source fetch failed", "source", j.kind, "ref", j.ref, "kind", kind, "error", err)
		out.analysis = brand.Empty(j.kind, j.ref, string(kind))
		out.status = string(kind)
		return out
	}
	a.Kind, a.OK = j.kind, true
	if a.Ref == "" {
		a.Ref = j.ref
	}
	out.analysis = a
	out.status = StatusOK
	return out
}

// assemble places each analysis into its slot and merges the competitors
// into a single competitor-set analysis.
func assemble(jobs []job, analyses []brand.SourceAnalysis) brand.Sources {
	var src brand.Sources
	for i, j := range jobs {
		switch j.kind {
		case brand.SourceWebsite:
			src.Website = analyses[i]
		case brand.SourceInstagram:
			src.Instagram = analyses[i]
		case brand.SourceLogo:
			src.Logo = analyses[i]
		case brand.SourceCompetitor:
			src.Competitors = append(src.Competitors, analyses[i])
		}
	}
	src.Competitor = MergeCompetitors(src.Competitors)
	return src
}

// MergeCompetitors folds the competitor analyses into one. Signals keep
// competitor order and are de-duplicated; the set is OK when any single
// competitor succeeded.
func MergeCompetitors(list []brand.SourceAnalysis) brand.SourceAnalysis {
	set := brand.SourceAnalysis{Kind: brand.SourceCompetitor}
	var refs []string
	for _, a := range list {
		refs = append(refs, a.Ref)
		if !a.OK {
			continue
		}
		set.OK = true
		set.Colors = appendUnique(set.Colors, a.Colors...)
		set.Fonts = appendUnique(set.Fonts, a.Fonts...)
		set.ToneWords = appendUnique(set.ToneWords, a.ToneWords...)
		set.Images = appendUnique(set.Images, a.Images...)
		set.Snippets = appendUnique(set.Snippets, a.Snippets...)
		for _, h := range a.Layout {
			if !slices.Contains(set.Layout, h) {
				set.Layout = append(set.Layout, h)
			}
		}
		if set.Background == "" {
			set.Background = a.Background
		}
	}
	set.Ref = strings.Join(refs, ",")
	if len(list) > 0 && !set.OK {
		set.Failure = "all competitors failed"
	}
	return set
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		if len(dst) >= maxMergedCompetitorSet {
			break
		}
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
