// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides database access for leads, their generated sites
// and the edit log. Each store struct wraps a *sql.DB and exposes typed
// query methods.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"sitesmith/internal/apperr"
	"sitesmith/internal/brand"
	"sitesmith/internal/models"
)

const pgUniqueViolation = "23505"

// leadColumns is the column list every lead query selects, in scan order.
const leadColumns = `id, slug, input, status, failed_phase, last_error, attempts,
	generated_html, design_brief, profile, generated_at, created_at, updated_at`

// LeadStore handles lead and edit-log persistence.
type LeadStore struct {
	db *sql.DB
}

// NewLeadStore creates a new LeadStore with the given database connection.
func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var (
		l                     models.Lead
		input, brief, profile []byte
	)
	if err := row.Scan(
		&l.ID, &l.Slug, &input, &l.Status, &l.FailedPhase, &l.LastError, &l.Attempts,
		&l.GeneratedHTML, &brief, &profile, &l.GeneratedAt, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &l.Input); err != nil {
		return nil, fmt.Errorf("decode lead input: %w", err)
	}
	if len(brief) > 0 {
		l.DesignBrief = json.RawMessage(brief)
	}
	if len(profile) > 0 {
		l.Profile = json.RawMessage(profile)
	}
	return &l, nil
}

// Create inserts a pending lead. A taken slug is a conflict.
func (s *LeadStore) Create(ctx context.Context, slug string, in brand.ExtractionInput) (*models.Lead, error) {
	input, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode lead input: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO leads (slug, business_name, business_type, location, competitor_urls, input)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+leadColumns,
		slug, in.BusinessName, in.BusinessType, in.Location, pq.Array(nonNil(in.CompetitorURLs)), input,
	)
	l, err := scanLead(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("slug %q is already taken", slug)
		}
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return l, nil
}

// GetBySlug returns the lead with the given slug, including its HTML.
func (s *LeadStore) GetBySlug(ctx context.Context, slug string) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE slug = $1`, slug)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("lead %q not found", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("get lead by slug: %w", err)
	}
	return l, nil
}

// SlugExists reports whether a lead already uses slug.
func (s *LeadStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// List returns leads newest first, optionally filtered by status. The
// generated HTML is not loaded.
func (s *LeadStore) List(ctx context.Context, status models.LeadStatus, limit int) ([]models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, input, status, failed_phase, last_error, attempts,
		       NULL, NULL, NULL, generated_at, created_at, updated_at
		FROM leads
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// SaveGeneration stores a generated site. A lead that does not exist yet
// is created as completed.
func (s *LeadStore) SaveGeneration(ctx context.Context, g models.Generation) error {
	input, err := json.Marshal(g.Input)
	if err != nil {
		return fmt.Errorf("encode lead input: %w", err)
	}
	profile, err := json.Marshal(g.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	brief := []byte(g.Brief)
	if len(brief) == 0 {
		brief = nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leads (slug, business_name, business_type, location, competitor_urls, input,
		                   status, generated_html, design_brief, profile, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed', $7, $8, $9, NOW())
		ON CONFLICT (slug) DO UPDATE SET
			generated_html = EXCLUDED.generated_html,
			design_brief = EXCLUDED.design_brief,
			profile = EXCLUDED.profile,
			generated_at = NOW(),
			updated_at = NOW()
	`, g.Slug, g.Input.BusinessName, g.Input.BusinessType, g.Input.Location,
		pq.Array(nonNil(g.Input.CompetitorURLs)), input, g.HTML, brief, profile,
	)
	if err != nil {
		return fmt.Errorf("save generation: %w", err)
	}
	return nil
}

// UpsertGeneratedHTML replaces the stored HTML of an existing lead.
func (s *LeadStore) UpsertGeneratedHTML(ctx context.Context, slug, html string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET generated_html = $2, updated_at = NOW()
		WHERE slug = $1
	`, slug, html)
	if err != nil {
		return fmt.Errorf("update generated html: %w", err)
	}
	return requireRow(res, apperr.NotFound("lead %q not found", slug))
}

// AppendEditLog records an applied edit.
func (s *LeadStore) AppendEditLog(ctx context.Context, e models.EditLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edit_log (slug, edit_type, mode, request)
		VALUES ($1, $2, $3, $4)
	`, e.Slug, e.EditType, e.Mode, []byte(e.Request))
	if err != nil {
		return fmt.Errorf("append edit log: %w", err)
	}
	return nil
}

// EditHistory returns the most recent edits for slug, newest first.
func (s *LeadStore) EditHistory(ctx context.Context, slug string, limit int) ([]models.EditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, edit_type, mode, request, created_at
		FROM edit_log
		WHERE slug = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, slug, limit)
	if err != nil {
		return nil, fmt.Errorf("query edit log: %w", err)
	}
	defer rows.Close()

	var entries []models.EditLogEntry
	for rows.Next() {
		var (
			e   models.EditLogEntry
			req []byte
		)
		if err := rows.Scan(&e.ID, &e.Slug, &e.EditType, &e.Mode, &req, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edit log: %w", err)
		}
		e.Request = json.RawMessage(req)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClaimNext moves the oldest pending lead to processing and returns it.
// Concurrent workers never claim the same lead. It returns nil when no
// lead is pending.
func (s *LeadStore) ClaimNext(ctx context.Context) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE leads SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM leads
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+leadColumns)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim lead: %w", err)
	}
	return l, nil
}

// MarkCompleted finishes a processing lead.
func (s *LeadStore) MarkCompleted(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET status = 'completed', failed_phase = NULL, last_error = NULL, updated_at = NOW()
		WHERE slug = $1 AND status = 'processing'
	`, slug)
	if err != nil {
		return fmt.Errorf("mark lead completed: %w", err)
	}
	return requireRow(res, apperr.Conflict("lead %q is not processing", slug))
}

// MarkFailed records the failed phase and error of a processing lead.
func (s *LeadStore) MarkFailed(ctx context.Context, slug, phase, msg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET status = 'failed', failed_phase = $2, last_error = $3, updated_at = NOW()
		WHERE slug = $1 AND status = 'processing'
	`, slug, nullIfEmpty(phase), msg)
	if err != nil {
		return fmt.Errorf("mark lead failed: %w", err)
	}
	return requireRow(res, apperr.Conflict("lead %q is not processing", slug))
}

// Requeue moves a failed or completed lead back to pending.
func (s *LeadStore) Requeue(ctx context.Context, slug string) (*models.Lead, error) {
	l, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	from := l.Status
	if err := l.Transition(models.LeadPending); err != nil {
		return nil, apperr.Conflict("%v", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET status = 'pending', updated_at = NOW()
		WHERE slug = $1 AND status = $2
	`, slug, string(from))
	if err != nil {
		return nil, fmt.Errorf("requeue lead: %w", err)
	}
	if err := requireRow(res, apperr.Conflict("lead %q changed while requeueing", slug)); err != nil {
		return nil, err
	}
	return l, nil
}

// ReleaseStale returns leads stuck in processing for longer than
// olderThan to pending, for workers that died mid-run.
func (s *LeadStore) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("release stale leads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release stale leads: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
