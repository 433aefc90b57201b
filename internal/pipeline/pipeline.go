// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package pipeline turns a business and its brand profile into a complete
// HTML website in three sequential AI phases: research, brief and
// generate. Each phase gets its own timeout and at most one retry;
// research and brief degrade to deterministic fallbacks, generate does
// not.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"sitesmith/internal/ai"
	"sitesmith/internal/apperr"
	"sitesmith/internal/brand"
	"sitesmith/internal/metrics"
	"sitesmith/internal/models"
)

// Phase names one pipeline stage.
type Phase string

const (
	PhaseResearch Phase = "research"
	PhaseBrief    Phase = "brief"
	PhaseGenerate Phase = "generate"
	PhasePersist  Phase = "persist"
)

// State is the lifecycle of one run.
type State string

const (
	StatePending     State = "pending"
	StateResearching State = "researching"
	StateBriefing    State = "briefing"
	StateGenerating  State = "generating"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// maxRetries is the retry budget of every phase.
const maxRetries = 1

// Generator is the text-generation call the phases use.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Store persists a successful run.
type Store interface {
	SaveGeneration(ctx context.Context, g models.Generation) error
}

// Options tunes a Pipeline. Zero durations take the defaults.
type Options struct {
	ResearchTimeout time.Duration
	BriefTimeout    time.Duration
	GenerateTimeout time.Duration
	// RetryDelay is the pause before a phase's retry.
	RetryDelay time.Duration
	Metrics    *metrics.Metrics
}

const (
	DefaultResearchTimeout = 30 * time.Second
	DefaultBriefTimeout    = 30 * time.Second
	DefaultGenerateTimeout = 50 * time.Second
)

// Pipeline runs generations. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	gen   Generator
	store Store
	opts  Options
}

// New creates a Pipeline. store may be nil, in which case nothing is
// persisted.
func New(gen Generator, store Store, opts Options) *Pipeline {
	if opts.ResearchTimeout <= 0 {
		opts.ResearchTimeout = DefaultResearchTimeout
	}
	if opts.BriefTimeout <= 0 {
		opts.BriefTimeout = DefaultBriefTimeout
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultGenerateTimeout
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	return &Pipeline{gen: gen, store: store, opts: opts}
}

// Input is everything one run needs. It is not modified.
type Input struct {
	Slug     string                `json:"slug"`
	Business brand.ExtractionInput `json:"business"`
	Profile  brand.Profile         `json:"profile"`
}

// Timing records wall time per phase and in total, in milliseconds.
type Timing struct {
	Phases  map[Phase]int64 `json:"phases"`
	TotalMS int64           `json:"totalMs"`
}

// Result is the outcome of one run. HTML is empty unless Success.
type Result struct {
	Success     bool          `json:"success"`
	Slug        string        `json:"slug"`
	HTML        string        `json:"html,omitempty"`
	DesignBrief *DesignBrief  `json:"designBrief,omitempty"`
	Research    string        `json:"research,omitempty"`
	State       State         `json:"state"`
	FailedPhase Phase         `json:"failedPhase,omitempty"`
	Error       string        `json:"error,omitempty"`
	Err         error         `json:"-"`
	Retries     map[Phase]int `json:"retries"`
	Fallbacks   []Phase       `json:"fallbacks,omitempty"`
	Timing      Timing        `json:"timing"`
}

// Run executes research, brief and generate in order and persists the
// HTML on success. It never returns partially generated HTML.
func (p *Pipeline) Run(ctx context.Context, in Input) *Result {
	start := time.Now()
	res := &Result{
		Slug:    in.Slug,
		State:   StatePending,
		Retries: map[Phase]int{},
		Timing:  Timing{Phases: map[Phase]int64{}},
	}
	defer func() {
		res.Timing.TotalMS = time.Since(start).Milliseconds()
		p.opts.Metrics.RunFinished(string(res.State), string(res.FailedPhase))
		slog.Info("generation finished",
			"slug", in.Slug,
			"state", res.State,
			"failed_phase", res.FailedPhase,
			"retries", res.Retries,
			"fallbacks", res.Fallbacks,
			"total_ms", res.Timing.TotalMS,
		)
	}()

	if in.Slug == "" {
		return p.fail(res, "", apperr.Validation("slug is required"))
	}
	if err := in.Business.ValidateForGeneration(); err != nil {
		return p.fail(res, "", err)
	}

	res.State = StateResearching
	research, err := runPhase(ctx, p, res, PhaseResearch, p.opts.ResearchTimeout, func(ctx context.Context, prev error) (string, error) {
		return p.research(ctx, in, prev)
	})
	if err != nil {
		if ctx.Err() != nil {
			return p.fail(res, PhaseResearch, classify(PhaseResearch, err))
		}
		slog.Warn("research failed, using generic positioning", "slug", in.Slug, "error", err)
		research = genericPositioning(in)
		res.Fallbacks = append(res.Fallbacks, PhaseResearch)
	}
	res.Research = research

	res.State = StateBriefing
	brief, err := runPhase(ctx, p, res, PhaseBrief, p.opts.BriefTimeout, func(ctx context.Context, prev error) (*DesignBrief, error) {
		return p.brief(ctx, in, research, prev)
	})
	if err != nil {
		if ctx.Err() != nil {
			return p.fail(res, PhaseBrief, classify(PhaseBrief, err))
		}
		slog.Warn("brief failed, using templated brief", "slug", in.Slug, "error", err)
		brief = templatedBrief(in)
		res.Fallbacks = append(res.Fallbacks, PhaseBrief)
	}
	res.DesignBrief = brief

	res.State = StateGenerating
	html, err := runPhase(ctx, p, res, PhaseGenerate, p.opts.GenerateTimeout, func(ctx context.Context, prev error) (string, error) {
		return p.generate(ctx, in, brief, prev)
	})
	if err != nil {
		return p.fail(res, PhaseGenerate, err)
	}

	if p.store != nil {
		briefJSON, err := json.Marshal(brief)
		if err != nil {
			return p.fail(res, PhasePersist, apperr.Persistence(err, "encode design brief"))
		}
		err = p.store.SaveGeneration(ctx, models.Generation{
			Slug:    in.Slug,
			Input:   in.Business,
			HTML:    html,
			Brief:   briefJSON,
			Profile: in.Profile,
		})
		if err != nil {
			perr := apperr.Persistence(err, "save generated site")
			perr.Phase = string(PhasePersist)
			return p.fail(res, PhasePersist, perr)
		}
	}

	res.HTML = html
	res.Success = true
	res.State = StateSucceeded
	return res
}

func (p *Pipeline) fail(res *Result, phase Phase, err error) *Result {
	res.Success = false
	res.HTML = ""
	res.State = StateFailed
	res.FailedPhase = phase
	res.Err = err
	res.Error = err.Error()
	return res
}

// runPhase calls fn under the phase timeout, retrying once on any
// failure. prev carries the previous attempt's error so fn can add a
// corrective instruction. The returned error is classified.
func runPhase[T any](ctx context.Context, p *Pipeline, res *Result, phase Phase, timeout time.Duration, fn func(ctx context.Context, prev error) (T, error)) (T, error) {
	start := time.Now()
	var (
		out      T
		prev     error
		attempts int
	)
	delay := p.opts.RetryDelay
	backoff := retry.WithMaxRetries(maxRetries, retry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	}))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		v, err := fn(actx, prev)
		if err == nil {
			out = v
			return nil
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = apperr.PhaseTimeout(string(phase), err)
		}
		err = classify(phase, err)
		prev = err
		slog.Warn("phase attempt failed", "phase", phase, "attempt", attempts, "slug", res.Slug, "error", err)
		if ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})

	took := time.Since(start)
	res.Retries[phase] = max(attempts-1, 0)
	res.Timing.Phases[phase] = took.Milliseconds()
	p.opts.Metrics.PhaseFinished(string(phase), took, res.Retries[phase])
	if err != nil {
		var zero T
		return zero, classify(phase, err)
	}
	return out, nil
}

// classify maps a phase failure onto the error taxonomy.
func classify(phase Phase, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Phase == "" {
			ae.Phase = string(phase)
		}
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.PhaseTimeout(string(phase), err)
	}
	switch ai.KindOf(err) {
	case ai.KindTimeout:
		return apperr.PhaseTimeout(string(phase), err)
	case ai.KindBadResponse:
		e := apperr.Malformed(string(phase), "model returned an unusable response")
		e.Err = err
		return e
	default:
		e := apperr.Upstream(err, "text generation unavailable")
		e.Phase = string(phase)
		return e
	}
}
