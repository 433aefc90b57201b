// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sitesmith/internal/brand"
)

// LeadStatus is the processing state of a lead.
type LeadStatus string

const (
	LeadPending    LeadStatus = "pending"
	LeadProcessing LeadStatus = "processing"
	LeadCompleted  LeadStatus = "completed"
	LeadFailed     LeadStatus = "failed"
)

// leadTransitions lists the allowed moves. A failed lead goes back to
// pending only through an explicit re-drive. A completed lead may be
// re-queued for regeneration.
var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadPending:    {LeadProcessing},
	LeadProcessing: {LeadCompleted, LeadFailed},
	LeadFailed:     {LeadPending},
	LeadCompleted:  {LeadPending},
}

// CanTransition reports whether a lead may move from s to next.
func (s LeadStatus) CanTransition(next LeadStatus) bool {
	for _, allowed := range leadTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	_, ok := leadTransitions[s]
	return ok
}

// Lead is a business waiting for, or holding, a generated site. The
// generated HTML is the latest version only.
type Lead struct {
	ID            uuid.UUID             `json:"id"`
	Slug          string                `json:"slug"`
	Input         brand.ExtractionInput `json:"input"`
	Status        LeadStatus            `json:"status"`
	FailedPhase   *string               `json:"failed_phase,omitempty"`
	LastError     *string               `json:"last_error,omitempty"`
	Attempts      int                   `json:"attempts"`
	GeneratedHTML *string               `json:"-"`
	DesignBrief   json.RawMessage       `json:"design_brief,omitempty"`
	Profile       json.RawMessage       `json:"profile,omitempty"`
	GeneratedAt   *time.Time            `json:"generated_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// HasSite reports whether HTML has been generated for the lead.
func (l *Lead) HasSite() bool {
	return l.GeneratedHTML != nil && *l.GeneratedHTML != ""
}

// HTML returns the generated HTML or "".
func (l *Lead) HTML() string {
	if l.GeneratedHTML == nil {
		return ""
	}
	return *l.GeneratedHTML
}

// Transition moves the lead to next or reports why it cannot.
func (l *Lead) Transition(next LeadStatus) error {
	if !l.Status.CanTransition(next) {
		return fmt.Errorf("lead %s: cannot move from %s to %s", l.Slug, l.Status, next)
	}
	l.Status = next
	return nil
}

// Generation is what a successful pipeline run persists.
type Generation struct {
	Slug    string
	Input   brand.ExtractionInput
	HTML    string
	Brief   json.RawMessage
	Profile brand.Profile
}

// EditLogEntry is one applied edit request, kept for audit only.
type EditLogEntry struct {
	ID        uuid.UUID       `json:"id"`
	Slug      string          `json:"slug"`
	EditType  string          `json:"edit_type"`
	Mode      string          `json:"mode"`
	Request   json.RawMessage `json:"request"`
	CreatedAt time.Time       `json:"created_at"`
}
