// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package edit applies post-generation edits to a stored site. Text,
// color and image edits are deterministic rewrites; everything else goes
// through a single model call.
package edit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sitesmith/internal/ai"
	"sitesmith/internal/aitext"
	"sitesmith/internal/apperr"
	"sitesmith/internal/metrics"
	"sitesmith/internal/models"
)

// Mode tells how an edit was applied.
type Mode string

const (
	ModeDeterministic Mode = "deterministic"
	ModeAI            Mode = "ai"
)

// DefaultAITimeout bounds the model rewrite.
const DefaultAITimeout = 60 * time.Second

// Store is the persistence the engine needs.
type Store interface {
	GetBySlug(ctx context.Context, slug string) (*models.Lead, error)
	UpsertGeneratedHTML(ctx context.Context, slug, html string) error
	AppendEditLog(ctx context.Context, entry models.EditLogEntry) error
}

// Rewriter is the model used for free-text edits.
type Rewriter interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CheckPrompt(ctx context.Context, text string) (*ai.ModerationResult, error)
}

// Options tunes an Engine.
type Options struct {
	Transformer Transformer
	AITimeout   time.Duration
	Metrics     *metrics.Metrics
}

// Engine applies edits. It is safe for concurrent use; edits to the same
// slug are last-writer-wins unless the caller serializes them.
type Engine struct {
	store       Store
	rewriter    Rewriter
	transformer Transformer
	aiTimeout   time.Duration
	metrics     *metrics.Metrics
}

// NewEngine creates an Engine. rewriter may be nil, in which case edits
// needing a model fail with an upstream error.
func NewEngine(store Store, rewriter Rewriter, opts Options) *Engine {
	if opts.Transformer == nil {
		opts.Transformer = RegexTransformer{}
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = DefaultAITimeout
	}
	return &Engine{
		store:       store,
		rewriter:    rewriter,
		transformer: opts.Transformer,
		aiTimeout:   opts.AITimeout,
		metrics:     opts.Metrics,
	}
}

// Outcome is the result of a successful edit.
type Outcome struct {
	Success bool   `json:"success"`
	Slug    string `json:"slug"`
	HTML    string `json:"html"`
	Mode    Mode   `json:"mode"`
	Changed bool   `json:"changed"`
}

// Apply loads the site for req.Slug, applies the edit, stores the new
// HTML and appends an edit-log entry. An edit that matches nothing
// succeeds and returns the HTML unchanged.
func (e *Engine) Apply(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lead, err := e.store.GetBySlug(ctx, req.Slug)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return nil, err
		}
		return nil, apperr.Persistence(err, "load site")
	}
	if lead == nil || !lead.HasSite() {
		return nil, apperr.NotFound("no generated site for %q", req.Slug)
	}
	current := lead.HTML()

	mode := ModeDeterministic
	updated, handled := e.transformer.Transform(current, req.Edit)
	if !handled {
		mode = ModeAI
		updated, err = e.rewrite(ctx, current, req.Edit)
		if err != nil {
			return nil, err
		}
	}

	changed := updated != current
	if changed {
		if err := e.store.UpsertGeneratedHTML(ctx, req.Slug, updated); err != nil {
			return nil, apperr.Persistence(err, "save edited site")
		}
	}

	e.appendLog(ctx, req, mode)
	e.metrics.EditApplied(string(req.Edit.Type()), string(mode))
	slog.Info("edit applied", "slug", req.Slug, "type", req.Edit.Type(), "mode", mode, "changed", changed)

	return &Outcome{Success: true, Slug: req.Slug, HTML: updated, Mode: mode, Changed: changed}, nil
}

func (e *Engine) appendLog(ctx context.Context, req Request, mode Mode) {
	raw, err := json.Marshal(req)
	if err != nil {
		slog.Warn("encode edit log entry", "slug", req.Slug, "error", err)
		return
	}
	err = e.store.AppendEditLog(ctx, models.EditLogEntry{
		Slug:     req.Slug,
		EditType: string(req.Edit.Type()),
		Mode:     string(mode),
		Request:  raw,
	})
	if err != nil {
		slog.Warn("append edit log", "slug", req.Slug, "error", err)
	}
}

const rewriteSystemPrompt = `You edit an existing single-file HTML website.
Apply exactly the requested change and keep everything else as it is: structure, styles, scripts, copy and images.
Return the complete updated HTML document only, starting with <!DOCTYPE html>. No explanations and no markdown fences.`

func (e *Engine) rewrite(ctx context.Context, html string, ed Edit) (string, error) {
	if e.rewriter == nil {
		return "", apperr.Upstream(errors.New("no text generation provider configured"), "edit needs a model")
	}
	note := strings.TrimSpace(ed.Instruction())
	if note == "" {
		return "", apperr.Validation("%s edit needs an instruction", ed.Type())
	}

	mod, err := e.rewriter.CheckPrompt(ctx, note)
	switch {
	case err != nil:
		slog.Warn("moderation unavailable, continuing", "error", err)
	case !mod.Safe:
		return "", apperr.Validation("instruction rejected by content moderation: %s", strings.Join(mod.Categories, ", "))
	}

	actx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	raw, err := e.rewriter.Generate(actx, rewriteSystemPrompt, rewritePrompt(html, ed))
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) || ai.KindOf(err) == ai.KindTimeout {
			return "", apperr.PhaseTimeout("edit", err)
		}
		ue := apperr.Upstream(err, "model rewrite failed")
		ue.Phase = "edit"
		return "", ue
	}
	out := aitext.StripFences(raw)
	if out == "" {
		return "", apperr.Malformed("edit", "model returned an empty document")
	}
	if !aitext.IsHTMLDocument(out) {
		return "", apperr.Malformed("edit", "model output is not a complete HTML document")
	}
	return out, nil
}

func rewritePrompt(html string, ed Edit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Edit type: %s\n", ed.Type())
	switch ed := ed.(type) {
	case TextEdit:
		if ed.New != "" {
			fmt.Fprintf(&b, "New text: %s\n", ed.New)
		}
	case ImageEdit:
		fmt.Fprintf(&b, "New image URL: %s\n", ed.URL)
		if ed.Section != "" {
			fmt.Fprintf(&b, "Section: %s\n", ed.Section)
		}
	}
	fmt.Fprintf(&b, "Instruction: %s\n\n", strings.TrimSpace(ed.Instruction()))
	b.WriteString("Current HTML:\n")
	b.WriteString(html)
	return b.String()
}
