// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package sites

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesmith/internal/apperr"
	"sitesmith/internal/brand"
	"sitesmith/internal/edit"
	"sitesmith/internal/extract"
	"sitesmith/internal/models"
	"sitesmith/internal/pipeline"
)

// memLeads is an in-memory LeadStore following the same transition rules
// as the SQL store.
type memLeads struct {
	mu        sync.Mutex
	leads     map[string]*models.Lead
	order     []string
	failWrite error
}

func newMemLeads() *memLeads { return &memLeads{leads: map[string]*models.Lead{}} }

func (m *memLeads) Create(_ context.Context, slug string, in brand.ExtractionInput) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return nil, m.failWrite
	}
	if _, ok := m.leads[slug]; ok {
		return nil, apperr.Conflict("slug %q is already taken", slug)
	}
	l := &models.Lead{Slug: slug, Input: in, Status: models.LeadPending, CreatedAt: time.Now()}
	m.leads[slug] = l
	m.order = append(m.order, slug)
	cp := *l
	return &cp, nil
}

func (m *memLeads) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.leads[slug]
	return ok, nil
}

func (m *memLeads) GetBySlug(_ context.Context, slug string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[slug]
	if !ok {
		return nil, apperr.NotFound("lead %q not found", slug)
	}
	cp := *l
	return &cp, nil
}

func (m *memLeads) List(_ context.Context, status models.LeadStatus, limit int) ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Lead
	for _, s := range m.order {
		if l := m.leads[s]; status == "" || l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memLeads) EditHistory(context.Context, string, int) ([]models.EditLogEntry, error) {
	return nil, nil
}

func (m *memLeads) Requeue(_ context.Context, slug string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[slug]
	if !ok {
		return nil, apperr.NotFound("lead %q not found", slug)
	}
	if err := l.Transition(models.LeadPending); err != nil {
		return nil, apperr.Conflict("%v", err)
	}
	cp := *l
	return &cp, nil
}

func (m *memLeads) ClaimNext(context.Context) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.order {
		l := m.leads[s]
		if l.Status == models.LeadPending {
			l.Status = models.LeadProcessing
			l.Attempts++
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLeads) MarkCompleted(_ context.Context, slug string) error {
	return m.finish(slug, models.LeadCompleted, "", "")
}

func (m *memLeads) MarkFailed(_ context.Context, slug, phase, msg string) error {
	return m.finish(slug, models.LeadFailed, phase, msg)
}

func (m *memLeads) finish(slug string, to models.LeadStatus, phase, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.leads[slug]
	if err := l.Transition(to); err != nil {
		return apperr.Conflict("%v", err)
	}
	if to == models.LeadFailed {
		l.FailedPhase, l.LastError = &phase, &msg
	}
	return nil
}

func (m *memLeads) ReleaseStale(context.Context, time.Duration) (int64, error) { return 0, nil }

type fakeExtractor struct {
	calls int
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, in brand.ExtractionInput, d time.Duration) (*extract.Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return f.ExtractForGeneration(ctx, in, d)
}

func (f *fakeExtractor) ExtractForGeneration(_ context.Context, in brand.ExtractionInput, _ time.Duration) (*extract.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &extract.Result{Profile: brand.Build(in, brand.Sources{}, brand.BuildOptions{})}, nil
}

type fakeGenerator struct {
	mu     sync.Mutex
	inputs []pipeline.Input
	fail   bool
}

func (f *fakeGenerator) Run(_ context.Context, in pipeline.Input) *pipeline.Result {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.fail {
		err := apperr.Malformed("generate", "output is not a complete HTML document")
		return &pipeline.Result{Slug: in.Slug, State: pipeline.StateFailed, FailedPhase: pipeline.PhaseGenerate, Error: err.Error(), Err: err}
	}
	return &pipeline.Result{Success: true, Slug: in.Slug, State: pipeline.StateSucceeded, HTML: "<!DOCTYPE html><html></html>"}
}

type fakeEditor struct{ calls int }

func (f *fakeEditor) Apply(_ context.Context, req edit.Request) (*edit.Outcome, error) {
	f.calls++
	return &edit.Outcome{Success: true, Slug: req.Slug, Mode: edit.ModeDeterministic}, nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (f *fakeLocks) Acquire(_ context.Context, slug string, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[slug] {
		return nil, apperr.Conflict("site %q is busy", slug)
	}
	f.held[slug] = true
	return func() {
		f.mu.Lock()
		delete(f.held, slug)
		f.mu.Unlock()
	}, nil
}

type fixture struct {
	svc    *Service
	leads  *memLeads
	ext    *fakeExtractor
	gen    *fakeGenerator
	editor *fakeEditor
	locks  *fakeLocks
}

func newFixture() *fixture {
	f := &fixture{
		leads:  newMemLeads(),
		ext:    &fakeExtractor{},
		gen:    &fakeGenerator{},
		editor: &fakeEditor{},
		locks:  &fakeLocks{},
	}
	f.svc = New(f.leads, f.ext, f.gen, f.editor, f.locks, Options{})
	return f
}

var bella = brand.ExtractionInput{BusinessName: "Bella Vista", BusinessType: "trattoria"}

func TestGenerate_ExtractsWhenNoProfile(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Generate(context.Background(), GenerateRequest{Input: &bella})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "bella-vista", res.Slug)
	assert.Equal(t, 1, f.ext.calls)
	require.Len(t, f.gen.inputs, 1)
	assert.Equal(t, "restaurant", f.gen.inputs[0].Profile.Industry)
	assert.Empty(t, f.locks.held)
}

func TestGenerate_UsesSuppliedProfile(t *testing.T) {
	f := newFixture()
	profile := brand.Build(bella, brand.Sources{}, brand.BuildOptions{})
	profile.Colors.Primary = "#123456"

	_, err := f.svc.Generate(context.Background(), GenerateRequest{Input: &bella, Profile: &profile})
	require.NoError(t, err)

	assert.Zero(t, f.ext.calls)
	assert.Equal(t, "#123456", f.gen.inputs[0].Profile.Colors.Primary)
}

func TestGenerate_AllocatesFreeSlug(t *testing.T) {
	f := newFixture()
	_, err := f.leads.Create(context.Background(), "bella-vista", bella)
	require.NoError(t, err)

	res, err := f.svc.Generate(context.Background(), GenerateRequest{Input: &bella})
	require.NoError(t, err)
	assert.Equal(t, "bella-vista-2", res.Slug)
}

func TestGenerate_FromLead(t *testing.T) {
	f := newFixture()
	lead, err := f.leads.Create(context.Background(), "bella-vista", bella)
	require.NoError(t, err)
	profile := brand.Build(bella, brand.Sources{}, brand.BuildOptions{})
	raw, _ := json.Marshal(profile)
	f.leads.leads[lead.Slug].Profile = raw

	res, err := f.svc.Generate(context.Background(), GenerateRequest{Slug: "bella-vista"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, f.ext.calls)
	assert.Equal(t, bella, f.gen.inputs[0].Business)
}

func TestGenerate_RequestErrors(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Generate(context.Background(), GenerateRequest{})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = f.svc.Generate(context.Background(), GenerateRequest{Slug: "missing"})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = f.svc.Generate(context.Background(), GenerateRequest{Input: &brand.ExtractionInput{BusinessName: "x"}})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = f.svc.Generate(context.Background(), GenerateRequest{Slug: "Bad Slug", Input: &bella})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Zero(t, f.ext.calls)
}

func TestGenerate_BusySlug(t *testing.T) {
	f := newFixture()
	release, err := f.locks.Acquire(context.Background(), "bella-vista", time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Generate(context.Background(), GenerateRequest{Slug: "bella-vista", Input: &bella})
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	assert.Empty(t, f.gen.inputs)
}

func TestGenerate_LockOutageDoesNotBlock(t *testing.T) {
	f := newFixture()
	f.locks.err = errors.New("valkey down")

	res, err := f.svc.Generate(context.Background(), GenerateRequest{Input: &bella})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestGenerate_ExtractionFailure(t *testing.T) {
	f := newFixture()
	f.ext.err = apperr.Validation("business name is required")

	res, err := f.svc.Generate(context.Background(), GenerateRequest{Input: &bella})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(res.Err))
	assert.Empty(t, f.gen.inputs)
}

func TestApplyEdit(t *testing.T) {
	f := newFixture()

	out, err := f.svc.ApplyEdit(context.Background(), edit.Request{Slug: "bella-vista", Edit: edit.TextEdit{Old: "a", New: "b"}})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, f.editor.calls)

	_, err = f.svc.ApplyEdit(context.Background(), edit.Request{Slug: "bella-vista"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Equal(t, 1, f.editor.calls)
}

func TestCreateLead(t *testing.T) {
	f := newFixture()

	first, err := f.svc.CreateLead(context.Background(), bella)
	require.NoError(t, err)
	second, err := f.svc.CreateLead(context.Background(), bella)
	require.NoError(t, err)

	assert.Equal(t, "bella-vista", first.Slug)
	assert.Equal(t, "bella-vista-2", second.Slug)
	assert.Equal(t, models.LeadPending, second.Status)

	_, err = f.svc.CreateLead(context.Background(), brand.ExtractionInput{BusinessName: "No Type"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestCreateLead_StoreFailure(t *testing.T) {
	f := newFixture()
	f.leads.failWrite = errors.New("connection reset")

	_, err := f.svc.CreateLead(context.Background(), bella)
	assert.Equal(t, apperr.CodePersistence, apperr.CodeOf(err))
}

func TestProcessNext(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.CreateLead(ctx, bella)
	require.NoError(t, err)

	ok, err := f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	lead, err := f.svc.GetSite(ctx, "bella-vista")
	require.NoError(t, err)
	assert.Equal(t, models.LeadCompleted, lead.Status)
	assert.Equal(t, 1, lead.Attempts)

	ok, err = f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessNext_FailureThenRedrive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.gen.fail = true
	_, err := f.svc.CreateLead(ctx, bella)
	require.NoError(t, err)

	_, err = f.svc.ProcessNext(ctx)
	require.NoError(t, err)

	lead, err := f.svc.GetSite(ctx, "bella-vista")
	require.NoError(t, err)
	assert.Equal(t, models.LeadFailed, lead.Status)
	require.NotNil(t, lead.FailedPhase)
	assert.Equal(t, "generate", *lead.FailedPhase)

	// A failed lead is not picked up again until re-driven.
	ok, err := f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Redrive(ctx, "bella-vista")
	require.NoError(t, err)

	f.gen.fail = false
	ok, err = f.svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	lead, _ = f.svc.GetSite(ctx, "bella-vista")
	assert.Equal(t, models.LeadCompleted, lead.Status)
	assert.Equal(t, 2, lead.Attempts)
}

func TestRedrive_RejectsPending(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateLead(context.Background(), bella)
	require.NoError(t, err)

	_, err = f.svc.Redrive(context.Background(), "bella-vista")
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestListLeads(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, _ = f.svc.CreateLead(ctx, bella)
	_, _ = f.svc.CreateLead(ctx, brand.ExtractionInput{BusinessName: "Casa Rosa", BusinessType: "cafe"})

	all, err := f.svc.ListLeads(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.ListLeads(ctx, "archived", 10)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}
