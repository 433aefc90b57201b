// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package brand defines the business input, the per-source analyses and the
// merged BrandProfile, together with the pure merge that builds a profile
// from them.
package brand

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"sitesmith/internal/apperr"
)

// SourceKind identifies where a SourceAnalysis came from.
type SourceKind string

const (
	SourceUser       SourceKind = "user"
	SourceLogo       SourceKind = "logo"
	SourceWebsite    SourceKind = "website"
	SourceInstagram  SourceKind = "instagram"
	SourceCompetitor SourceKind = "competitor"
	SourceDefault    SourceKind = "default"
)

// Palette is a set of named color channels as #rrggbb strings.
type Palette struct {
	Primary    string `json:"primary,omitempty" yaml:"primary"`
	Accent     string `json:"accent,omitempty" yaml:"accent"`
	Background string `json:"background,omitempty" yaml:"background"`
	Text       string `json:"text,omitempty" yaml:"text"`
}

// Validation limits for business input fields.
const (
	maxNameLen      = 200
	maxTypeLen      = 100
	maxLocationLen  = 200
	maxNotesLen     = 4_000
	maxListItems    = 20
	maxListItemLen  = 300
	MaxCompetitors  = 5
	maxHandleLength = 64
)

// ExtractionInput is everything the caller knows about a business. It is
// passed by value and never mutated during a run.
type ExtractionInput struct {
	BusinessName    string   `json:"businessName"`
	BusinessType    string   `json:"businessType"`
	Location        string   `json:"location"`
	WebsiteURL      string   `json:"websiteUrl,omitempty"`
	InstagramHandle string   `json:"instagramHandle,omitempty"`
	FacebookURL     string   `json:"facebookUrl,omitempty"`
	CompetitorURLs  []string `json:"competitorUrls,omitempty"`
	LogoURL         string   `json:"logoUrl,omitempty"`

	Services        []string `json:"services,omitempty"`
	USPs            []string `json:"usps,omitempty"`
	TargetCustomers string   `json:"targetCustomers,omitempty"`
	PreferredColors Palette  `json:"preferredColors,omitempty"`
	Tone            string   `json:"tone,omitempty"`
	Notes           string   `json:"notes,omitempty"`

	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Validate checks the input for the extraction flow, which needs a name,
// a business type and a location.
func (in ExtractionInput) Validate() error {
	if strings.TrimSpace(in.Location) == "" {
		return apperr.Validation("location is required")
	}
	return in.ValidateForGeneration()
}

// ValidateForGeneration checks the input for the generation flow, where
// location is optional.
func (in ExtractionInput) ValidateForGeneration() error {
	if strings.TrimSpace(in.BusinessName) == "" {
		return apperr.Validation("business name is required")
	}
	if strings.TrimSpace(in.BusinessType) == "" {
		return apperr.Validation("business type is required")
	}
	if utf8.RuneCountInString(in.BusinessName) > maxNameLen {
		return apperr.Validation("business name is too long (max %d characters)", maxNameLen)
	}
	if utf8.RuneCountInString(in.BusinessType) > maxTypeLen {
		return apperr.Validation("business type is too long (max %d characters)", maxTypeLen)
	}
	if utf8.RuneCountInString(in.Location) > maxLocationLen {
		return apperr.Validation("location is too long (max %d characters)", maxLocationLen)
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLen {
		return apperr.Validation("notes are too long (max %d characters)", maxNotesLen)
	}
	if len(in.CompetitorURLs) > MaxCompetitors {
		return apperr.Validation("at most %d competitor URLs are allowed", MaxCompetitors)
	}
	for _, u := range append([]string{in.WebsiteURL, in.LogoURL, in.FacebookURL}, in.CompetitorURLs...) {
		if u != "" && !isHTTPURL(u) {
			return apperr.Validation("invalid URL %q", u)
		}
	}
	if len(in.InstagramHandle) > maxHandleLength {
		return apperr.Validation("instagram handle is too long")
	}
	for _, list := range [][]string{in.Services, in.USPs} {
		if len(list) > maxListItems {
			return apperr.Validation("too many list entries (max %d)", maxListItems)
		}
		for _, item := range list {
			if utf8.RuneCountInString(item) > maxListItemLen {
				return apperr.Validation("list entry is too long (max %d characters)", maxListItemLen)
			}
		}
	}
	p := in.PreferredColors
	for _, c := range []string{p.Primary, p.Accent, p.Background, p.Text} {
		if c != "" && NormalizeColor(c) == "" {
			return apperr.Validation("invalid color %q", c)
		}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// LayoutHint is a structural feature observed on a page.
type LayoutHint string

const (
	HintNavigation   LayoutHint = "navigation"
	HintHero         LayoutHint = "hero"
	HintGallery      LayoutHint = "gallery"
	HintTestimonials LayoutHint = "testimonials"
	HintContactForm  LayoutHint = "contact-form"
	HintMap          LayoutHint = "map"
	HintMenu         LayoutHint = "menu"
	HintPricing      LayoutHint = "pricing"
	HintBooking      LayoutHint = "booking"
	HintTeam         LayoutHint = "team"
	HintFAQ          LayoutHint = "faq"
	HintSocial       LayoutHint = "social-links"
)

// SourceAnalysis is the bag of signals extracted from one source. A failed
// source yields an analysis with OK false and no signals.
type SourceAnalysis struct {
	Kind        SourceKind   `json:"kind"`
	Ref         string       `json:"ref,omitempty"`
	OK          bool         `json:"ok"`
	Failure     string       `json:"failure,omitempty"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Colors      []string     `json:"colors,omitempty"`
	Fonts       []string     `json:"fonts,omitempty"`
	ToneWords   []string     `json:"toneWords,omitempty"`
	Images      []string     `json:"images,omitempty"`
	Snippets    []string     `json:"snippets,omitempty"`
	Layout      []LayoutHint `json:"layout,omitempty"`
	Background  string       `json:"background,omitempty"`
}

// Empty returns a failed analysis for the given source.
func Empty(kind SourceKind, ref, failure string) SourceAnalysis {
	return SourceAnalysis{Kind: kind, Ref: ref, Failure: failure}
}

// Sources groups every analysis collected for one run.
type Sources struct {
	Website     SourceAnalysis   `json:"website"`
	Instagram   SourceAnalysis   `json:"instagram"`
	Competitors []SourceAnalysis `json:"competitors,omitempty"`
	Competitor  SourceAnalysis   `json:"competitorSet"`
	Logo        SourceAnalysis   `json:"logo"`
}

// Fonts names the heading and body typefaces.
type Fonts struct {
	Heading string `json:"heading" yaml:"heading"`
	Body    string `json:"body" yaml:"body"`
}

// Layout describes the page structure the site should follow.
type Layout struct {
	Style    string   `json:"style" yaml:"style"`
	Sections []string `json:"sections" yaml:"sections"`
	Hints    []string `json:"hints,omitempty" yaml:"-"`
}

// Tone describes the copy voice.
type Tone struct {
	Voice    string   `json:"voice" yaml:"voice"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Images holds brand imagery.
type Images struct {
	Logo    string   `json:"logo,omitempty"`
	Hero    string   `json:"hero,omitempty"`
	Gallery []string `json:"gallery"`
}

// Content holds copy fragments gathered from sources and input.
type Content struct {
	Tagline     string   `json:"tagline,omitempty"`
	Description string   `json:"description,omitempty"`
	Services    []string `json:"services,omitempty"`
	Snippets    []string `json:"snippets,omitempty"`
}

// Profile is the merged brand description. Colors, Fonts, Layout and Tone
// are always populated.
type Profile struct {
	BusinessType string                `json:"businessType"`
	Industry     string                `json:"industry"`
	Colors       Palette               `json:"colors"`
	Fonts        Fonts                 `json:"fonts"`
	Layout       Layout                `json:"layout"`
	Tone         Tone                  `json:"tone"`
	Images       Images                `json:"images"`
	Content      Content               `json:"content"`
	Provenance   map[string]SourceKind `json:"provenance"`
	RawData      Sources               `json:"rawData"`
}
