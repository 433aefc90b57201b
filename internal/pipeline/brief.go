// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package pipeline

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"sitesmith/internal/aitext"
	"sitesmith/internal/brand"
)

//go:embed brief.schema.json
var briefSchemaJSON string

var briefSchema = mustCompileSchema(briefSchemaJSON)

func mustCompileSchema(doc string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("pipeline: invalid brief schema: %v", err))
	}
	return s
}

// DesignBrief is the structured plan the generate phase builds from.
type DesignBrief struct {
	Headline        string         `json:"headline"`
	Subheadline     string         `json:"subheadline,omitempty"`
	CopyAngle       string         `json:"copyAngle"`
	VisualDirection string         `json:"visualDirection"`
	Sections        []BriefSection `json:"sections"`
	Palette         brand.Palette  `json:"palette"`
	Typography      brand.Fonts    `json:"typography"`
	CallToAction    string         `json:"callToAction"`
	Imagery         []string       `json:"imagery,omitempty"`
	// Templated is set when the brief was derived from the profile
	// instead of the model.
	Templated bool `json:"templated,omitempty"`
}

// BriefSection is one must-have page section.
type BriefSection struct {
	ID      string `json:"id"`
	Purpose string `json:"purpose"`
	Content string `json:"content,omitempty"`
}

// parseBrief extracts, validates and decodes a brief from model output.
// Invalid output is reported with the first schema violations so the
// retry prompt can name them.
func parseBrief(raw string) (*DesignBrief, error) {
	doc := aitext.ExtractJSON(raw)
	if doc == "" {
		return nil, fmt.Errorf("response contains no JSON object")
	}
	result, err := briefSchema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("brief is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for i, e := range result.Errors() {
			if i == 3 {
				break
			}
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("brief does not match schema: %s", strings.Join(msgs, "; "))
	}
	var b DesignBrief
	if err := json.Unmarshal([]byte(doc), &b); err != nil {
		return nil, fmt.Errorf("decode brief: %w", err)
	}
	return &b, nil
}

// sectionPurposes describes the standard sections a templated brief may
// use.
var sectionPurposes = map[string]string{
	"hero":         "Introduce the business with its name, a one-line promise and the main call to action",
	"about":        "Tell the story of the business and what makes it different",
	"services":     "List the main services or products with short descriptions",
	"menu":         "Show highlights from the menu with prices where known",
	"gallery":      "Showcase the brand imagery",
	"testimonials": "Quote happy customers",
	"pricing":      "Present packages or price ranges",
	"team":         "Introduce the people behind the business",
	"faq":          "Answer common questions",
	"booking":      "Make it easy to book or reserve",
	"contact":      "Give contact details, opening hours and location",
}

// templatedBrief derives a minimal brief from the profile alone.
func templatedBrief(in Input) *DesignBrief {
	p := in.Profile
	f := in.Business

	headline := f.BusinessName
	if p.Content.Tagline != "" && !strings.EqualFold(p.Content.Tagline, f.BusinessName) {
		headline = p.Content.Tagline
	}
	sub := strings.TrimSpace(f.BusinessType)
	if f.Location != "" {
		sub += " in " + f.Location
	}

	var sections []BriefSection
	for _, id := range p.Layout.Sections {
		purpose, ok := sectionPurposes[id]
		if !ok {
			purpose = "Present the " + strings.ReplaceAll(id, "-", " ") + " of the business"
		}
		sections = append(sections, BriefSection{ID: id, Purpose: purpose})
	}
	for _, id := range []string{"hero", "services", "contact"} {
		if len(sections) >= 3 {
			break
		}
		if !hasSection(sections, id) {
			sections = append(sections, BriefSection{ID: id, Purpose: sectionPurposes[id]})
		}
	}

	cta := "Get in touch"
	if hasSection(sections, "booking") || hasSection(sections, "menu") {
		cta = "Book now"
	}

	imagery := p.Images.Gallery
	if len(imagery) > 6 {
		imagery = imagery[:6]
	}

	return &DesignBrief{
		Headline:        headline,
		Subheadline:     sub,
		CopyAngle:       fmt.Sprintf("Speak in a %s voice to people looking for a %s", p.Tone.Voice, strings.ToLower(f.BusinessType)),
		VisualDirection: fmt.Sprintf("%s layout led by %s with %s accents", p.Layout.Style, p.Colors.Primary, p.Colors.Accent),
		Sections:        sections,
		Palette:         p.Colors,
		Typography:      p.Fonts,
		CallToAction:    cta,
		Imagery:         imagery,
		Templated:       true,
	}
}

func hasSection(list []BriefSection, id string) bool {
	for _, s := range list {
		if s.ID == id {
			return true
		}
	}
	return false
}
