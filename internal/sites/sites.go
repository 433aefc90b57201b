// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package sites composes extraction, generation, edits and lead storage
// into the operations the HTTP API, the CLI and the lead worker call.
package sites

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"sitesmith/internal/apperr"
	"sitesmith/internal/brand"
	"sitesmith/internal/edit"
	"sitesmith/internal/extract"
	"sitesmith/internal/metrics"
	"sitesmith/internal/models"
	"sitesmith/internal/pipeline"
	"sitesmith/internal/slug"
)

// LeadStore is the lead persistence the service needs.
type LeadStore interface {
	Create(ctx context.Context, slug string, in brand.ExtractionInput) (*models.Lead, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetBySlug(ctx context.Context, slug string) (*models.Lead, error)
	List(ctx context.Context, status models.LeadStatus, limit int) ([]models.Lead, error)
	EditHistory(ctx context.Context, slug string, limit int) ([]models.EditLogEntry, error)
	Requeue(ctx context.Context, slug string) (*models.Lead, error)
	ClaimNext(ctx context.Context) (*models.Lead, error)
	MarkCompleted(ctx context.Context, slug string) error
	MarkFailed(ctx context.Context, slug, phase, msg string) error
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Extractor builds brand profiles.
type Extractor interface {
	Extract(ctx context.Context, in brand.ExtractionInput, deadline time.Duration) (*extract.Result, error)
	ExtractForGeneration(ctx context.Context, in brand.ExtractionInput, deadline time.Duration) (*extract.Result, error)
}

// Generator runs the generation pipeline.
type Generator interface {
	Run(ctx context.Context, in pipeline.Input) *pipeline.Result
}

// Editor applies edits to stored sites.
type Editor interface {
	Apply(ctx context.Context, req edit.Request) (*edit.Outcome, error)
}

// Locker serializes writers of one slug. Acquire fails with a conflict
// error when the slug is busy.
type Locker interface {
	Acquire(ctx context.Context, slug string, ttl time.Duration) (func(), error)
}

// Options tunes a Service. Zero durations take the defaults.
type Options struct {
	ExtractDeadline         time.Duration
	GenerateDeadline        time.Duration
	GenerateExtractDeadline time.Duration
	Metrics                 *metrics.Metrics
}

const (
	DefaultGenerateDeadline        = 180 * time.Second
	DefaultGenerateExtractDeadline = 45 * time.Second

	// lockSlack keeps a slug lock alive a little past the operation
	// deadline.
	lockSlack = 15 * time.Second
	editLock  = 2 * time.Minute
)

// Service is safe for concurrent use.
type Service struct {
	leads   LeadStore
	extract Extractor
	gen     Generator
	editor  Editor
	locks   Locker
	opts    Options
}

// New creates a Service. locks may be nil, in which case writes to the
// same slug are not serialized.
func New(leads LeadStore, ext Extractor, gen Generator, editor Editor, locks Locker, opts Options) *Service {
	if opts.ExtractDeadline <= 0 {
		opts.ExtractDeadline = extract.DefaultDeadline
	}
	if opts.GenerateDeadline <= 0 {
		opts.GenerateDeadline = DefaultGenerateDeadline
	}
	if opts.GenerateExtractDeadline <= 0 {
		opts.GenerateExtractDeadline = DefaultGenerateExtractDeadline
	}
	return &Service{leads: leads, extract: ext, gen: gen, editor: editor, locks: locks, opts: opts}
}

// Extract builds a brand profile for in. Location is required.
func (s *Service) Extract(ctx context.Context, in brand.ExtractionInput) (*extract.Result, error) {
	return s.extract.Extract(ctx, in, s.opts.ExtractDeadline)
}

// GenerateRequest selects what to generate: an explicit input, optionally
// with a profile, or the stored lead named by Slug.
type GenerateRequest struct {
	Slug    string                 `json:"slug,omitempty"`
	Input   *brand.ExtractionInput `json:"input,omitempty"`
	Profile *brand.Profile         `json:"profile,omitempty"`
}

// Generate runs the pipeline for req. Pipeline failures are reported in
// the result; the error is for requests that could not start.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*pipeline.Result, error) {
	in, profile, siteSlug, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, siteSlug, s.opts.GenerateDeadline+lockSlack)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.GenerateDeadline)
	defer cancel()
	return s.run(ctx, siteSlug, in, profile), nil
}

func (s *Service) resolve(ctx context.Context, req GenerateRequest) (brand.ExtractionInput, *brand.Profile, string, error) {
	if req.Input == nil {
		if req.Slug == "" {
			return brand.ExtractionInput{}, nil, "", apperr.Validation("input or slug is required")
		}
		lead, err := s.leads.GetBySlug(ctx, req.Slug)
		if err != nil {
			return brand.ExtractionInput{}, nil, "", wrapStore(err, "load lead")
		}
		return lead.Input, storedProfile(lead, req.Profile), lead.Slug, nil
	}

	in := *req.Input
	if err := in.ValidateForGeneration(); err != nil {
		return in, nil, "", err
	}
	if req.Slug != "" {
		if !slug.Valid(req.Slug) {
			return in, nil, "", apperr.Validation("invalid slug %q", req.Slug)
		}
		return in, req.Profile, req.Slug, nil
	}
	siteSlug, err := slug.Unique(slug.Generate(in.BusinessName), func(c string) (bool, error) {
		return s.leads.SlugExists(ctx, c)
	})
	if err != nil {
		return in, nil, "", apperr.Persistence(err, "allocate slug")
	}
	return in, req.Profile, siteSlug, nil
}

// storedProfile prefers an explicit profile, then the lead's last one.
func storedProfile(lead *models.Lead, explicit *brand.Profile) *brand.Profile {
	if explicit != nil {
		return explicit
	}
	if len(lead.Profile) == 0 {
		return nil
	}
	var p brand.Profile
	if err := json.Unmarshal(lead.Profile, &p); err != nil {
		slog.Warn("stored profile unreadable, extracting again", "slug", lead.Slug, "error", err)
		return nil
	}
	return &p
}

// run extracts when no profile is given, then runs the pipeline.
func (s *Service) run(ctx context.Context, siteSlug string, in brand.ExtractionInput, profile *brand.Profile) *pipeline.Result {
	if profile == nil {
		res, err := s.extract.ExtractForGeneration(ctx, in, s.opts.GenerateExtractDeadline)
		if err != nil {
			return failedResult(siteSlug, err)
		}
		profile = &res.Profile
	}
	return s.gen.Run(ctx, pipeline.Input{Slug: siteSlug, Business: in, Profile: *profile})
}

func failedResult(siteSlug string, err error) *pipeline.Result {
	return &pipeline.Result{
		Slug:    siteSlug,
		State:   pipeline.StateFailed,
		Error:   err.Error(),
		Err:     err,
		Retries: map[pipeline.Phase]int{},
		Timing:  pipeline.Timing{Phases: map[pipeline.Phase]int64{}},
	}
}

// ApplyEdit applies one edit while holding the slug's lock.
func (s *Service) ApplyEdit(ctx context.Context, req edit.Request) (*edit.Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	release, err := s.lock(ctx, req.Slug, editLock)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.editor.Apply(ctx, req)
}

func (s *Service) lock(ctx context.Context, siteSlug string, ttl time.Duration) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	release, err := s.locks.Acquire(ctx, siteSlug, ttl)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeConflict {
			return nil, err
		}
		// A lock outage must not block edits and generations.
		slog.Warn("slug lock unavailable, continuing unlocked", "slug", siteSlug, "error", err)
		return func() {}, nil
	}
	return release, nil
}

// CreateLead stores in as a pending lead under a fresh slug.
func (s *Service) CreateLead(ctx context.Context, in brand.ExtractionInput) (*models.Lead, error) {
	if err := in.ValidateForGeneration(); err != nil {
		return nil, err
	}
	base := slug.Generate(in.BusinessName)
	for attempt := 0; ; attempt++ {
		siteSlug, err := slug.Unique(base, func(c string) (bool, error) {
			return s.leads.SlugExists(ctx, c)
		})
		if err != nil {
			return nil, apperr.Persistence(err, "allocate slug")
		}
		lead, err := s.leads.Create(ctx, siteSlug, in)
		// Another request may take the slug between the check and the insert.
		if apperr.CodeOf(err) == apperr.CodeConflict && attempt < 2 {
			continue
		}
		if err != nil {
			return nil, wrapStore(err, "create lead")
		}
		slog.Info("lead created", "slug", lead.Slug)
		return lead, nil
	}
}

// GetSite returns the lead behind slug.
func (s *Service) GetSite(ctx context.Context, siteSlug string) (*models.Lead, error) {
	lead, err := s.leads.GetBySlug(ctx, siteSlug)
	if err != nil {
		return nil, wrapStore(err, "load site")
	}
	return lead, nil
}

// ListLeads returns leads newest first; an empty status lists all.
func (s *Service) ListLeads(ctx context.Context, status models.LeadStatus, limit int) ([]models.Lead, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	leads, err := s.leads.List(ctx, status, limit)
	if err != nil {
		return nil, wrapStore(err, "list leads")
	}
	return leads, nil
}

// EditHistory returns recent edits of slug, newest first.
func (s *Service) EditHistory(ctx context.Context, siteSlug string, limit int) ([]models.EditLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.leads.EditHistory(ctx, siteSlug, limit)
	if err != nil {
		return nil, wrapStore(err, "load edit history")
	}
	return entries, nil
}

// Redrive puts a failed or completed lead back in the queue.
func (s *Service) Redrive(ctx context.Context, siteSlug string) (*models.Lead, error) {
	lead, err := s.leads.Requeue(ctx, siteSlug)
	if err != nil {
		return nil, wrapStore(err, "requeue lead")
	}
	slog.Info("lead re-driven", "slug", siteSlug)
	return lead, nil
}

// ProcessNext claims one pending lead and generates its site. It reports
// false when nothing was pending.
func (s *Service) ProcessNext(ctx context.Context) (bool, error) {
	lead, err := s.leads.ClaimNext(ctx)
	if err != nil {
		return false, wrapStore(err, "claim lead")
	}
	if lead == nil {
		return false, nil
	}

	log := slog.With("slug", lead.Slug, "attempt", lead.Attempts)
	log.Info("processing lead")

	res, err := s.generateLead(ctx, lead)
	if err != nil {
		res = failedResult(lead.Slug, err)
	}

	// The run may have been cut short by shutdown; record the outcome anyway.
	bg := context.WithoutCancel(ctx)
	if res.Success {
		s.opts.Metrics.LeadProcessed("completed")
		return true, wrapStore(s.leads.MarkCompleted(bg, lead.Slug), "mark lead completed")
	}
	s.opts.Metrics.LeadProcessed("failed")
	log.Warn("lead failed", "phase", res.FailedPhase, "error", res.Error)
	return true, wrapStore(s.leads.MarkFailed(bg, lead.Slug, string(res.FailedPhase), res.Error), "mark lead failed")
}

func (s *Service) generateLead(ctx context.Context, lead *models.Lead) (*pipeline.Result, error) {
	release, err := s.lock(ctx, lead.Slug, s.opts.GenerateDeadline+lockSlack)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.GenerateDeadline)
	defer cancel()
	return s.run(ctx, lead.Slug, lead.Input, storedProfile(lead, nil)), nil
}

// ReleaseStale re-queues leads whose worker died mid-run.
func (s *Service) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.leads.ReleaseStale(ctx, olderThan)
	if err != nil {
		return 0, wrapStore(err, "release stale leads")
	}
	if n > 0 {
		slog.Warn("released stale leads", "count", n)
	}
	return n, nil
}

// wrapStore classifies a raw store error as a persistence failure and
// passes domain errors through.
func wrapStore(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Persistence(err, msg)
}
