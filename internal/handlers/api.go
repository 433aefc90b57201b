// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON API: extraction, generation,
// edits and lead intake.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sitesmith/internal/apperr"
	"sitesmith/internal/brand"
	"sitesmith/internal/edit"
	"sitesmith/internal/extract"
	"sitesmith/internal/models"
	"sitesmith/internal/pipeline"
	"sitesmith/internal/sites"
)

// Service is what the API needs from the sites service.
type Service interface {
	Extract(ctx context.Context, in brand.ExtractionInput) (*extract.Result, error)
	Generate(ctx context.Context, req sites.GenerateRequest) (*pipeline.Result, error)
	ApplyEdit(ctx context.Context, req edit.Request) (*edit.Outcome, error)
	CreateLead(ctx context.Context, in brand.ExtractionInput) (*models.Lead, error)
	GetSite(ctx context.Context, slug string) (*models.Lead, error)
	ListLeads(ctx context.Context, status models.LeadStatus, limit int) ([]models.Lead, error)
	EditHistory(ctx context.Context, slug string, limit int) ([]models.EditLogEntry, error)
	Redrive(ctx context.Context, slug string) (*models.Lead, error)
}

// API groups the JSON endpoints.
type API struct {
	svc Service
}

// NewAPI creates the API handlers.
func NewAPI(svc Service) *API {
	return &API{svc: svc}
}

// Extract handles POST /api/v1/extract.
func (a *API) Extract(w http.ResponseWriter, r *http.Request) {
	var in brand.ExtractionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.svc.Extract(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Generate handles POST /api/v1/generate. A failed run answers with the
// status of its error and the full result as body.
func (a *API) Generate(w http.ResponseWriter, r *http.Request) {
	var req sites.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.svc.Generate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = apperr.HTTPStatus(res.Err)
	}
	writeJSON(w, status, res)
}

// Edit handles POST /api/v1/sites/{slug}/edits.
func (a *API) Edit(w http.ResponseWriter, r *http.Request) {
	siteSlug := chi.URLParam(r, "slug")
	if err := validateSlugParam(siteSlug); err != nil {
		writeError(w, r, err)
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := edit.ParseRequest(data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Slug != "" && req.Slug != siteSlug {
		writeError(w, r, apperr.Validation("body slug %q does not match path", req.Slug))
		return
	}
	req.Slug = siteSlug

	out, err := a.svc.ApplyEdit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// siteResponse is a lead with its HTML when asked for.
type siteResponse struct {
	*models.Lead
	HasSite bool   `json:"hasSite"`
	HTML    string `json:"html,omitempty"`
}

// GetSite handles GET /api/v1/sites/{slug}. The HTML is included only
// with ?include=html.
func (a *API) GetSite(w http.ResponseWriter, r *http.Request) {
	siteSlug := chi.URLParam(r, "slug")
	if err := validateSlugParam(siteSlug); err != nil {
		writeError(w, r, err)
		return
	}
	lead, err := a.svc.GetSite(r.Context(), siteSlug)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := siteResponse{Lead: lead, HasSite: lead.HasSite()}
	if r.URL.Query().Get("include") == "html" {
		resp.HTML = lead.HTML()
	}
	writeJSON(w, http.StatusOK, resp)
}

// EditHistory handles GET /api/v1/sites/{slug}/edits.
func (a *API) EditHistory(w http.ResponseWriter, r *http.Request) {
	siteSlug := chi.URLParam(r, "slug")
	if err := validateSlugParam(siteSlug); err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := a.svc.EditHistory(r.Context(), siteSlug, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.EditLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"edits": entries})
}

// CreateLead handles POST /api/v1/leads.
func (a *API) CreateLead(w http.ResponseWriter, r *http.Request) {
	var in brand.ExtractionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	lead, err := a.svc.CreateLead(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sites/"+lead.Slug)
	writeJSON(w, http.StatusCreated, lead)
}

// ListLeads handles GET /api/v1/leads?status=&limit=.
func (a *API) ListLeads(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := models.LeadStatus(r.URL.Query().Get("status"))
	leads, err := a.svc.ListLeads(r.Context(), status, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

// Redrive handles POST /api/v1/leads/{slug}/redrive.
func (a *API) Redrive(w http.ResponseWriter, r *http.Request) {
	siteSlug := chi.URLParam(r, "slug")
	if err := validateSlugParam(siteSlug); err != nil {
		writeError(w, r, err)
		return
	}
	lead, err := a.svc.Redrive(r.Context(), siteSlug)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, lead)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Phase   string `json:"phase,omitempty"`
	Message string `json:"message"`
}

// writeError maps err to a status and the error envelope. Causes of
// server-side failures are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: "BAD_REQUEST", Message: bad.msg}})
		return
	case errors.Is(err, errTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: errorDetail{Code: "BAD_REQUEST", Message: err.Error()}})
		return
	}

	status := apperr.HTTPStatus(err)
	detail := errorDetail{Code: string(apperr.CodeOf(err)), Phase: apperr.PhaseOf(err)}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		detail.Message = ae.Message
	} else {
		detail.Message = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: detail})
}
