// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package edit

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"sitesmith/internal/apperr"
	"sitesmith/internal/brand"
)

// Type is the wire name of an edit kind.
type Type string

const (
	TypeText    Type = "text"
	TypeImage   Type = "image"
	TypeColor   Type = "color"
	TypeLayout  Type = "layout"
	TypeGeneral Type = "general"
)

const (
	maxInstructionLen = 2_000
	maxTextLen        = 10_000
)

// Edit is one of TextEdit, ImageEdit, ColorEdit, LayoutEdit or
// GeneralEdit.
type Edit interface {
	Type() Type
	// Instruction is the free text used when no deterministic transform
	// handles the edit.
	Instruction() string
	validate() error
}

// TextEdit replaces every occurrence of Old with New.
type TextEdit struct {
	Old, New string
	Note     string
}

// ImageEdit points an image at URL. OldURL, when set, selects the images
// whose src or srcset names it; otherwise the first image in Section is
// replaced. An edit with neither is a free-text rewrite guided by Note.
type ImageEdit struct {
	Section string
	URL     string
	OldURL  string
	Note    string
}

// ColorEdit sets a palette channel (primary, accent, ...) to Value.
type ColorEdit struct {
	Channel string
	Value   string
	Note    string
}

// LayoutEdit restructures the page according to a free-text instruction.
type LayoutEdit struct{ Note string }

// GeneralEdit is any other free-text change.
type GeneralEdit struct{ Note string }

func (TextEdit) Type() Type    { return TypeText }
func (ImageEdit) Type() Type   { return TypeImage }
func (ColorEdit) Type() Type   { return TypeColor }
func (LayoutEdit) Type() Type  { return TypeLayout }
func (GeneralEdit) Type() Type { return TypeGeneral }

func (e TextEdit) Instruction() string    { return e.Note }
func (e ImageEdit) Instruction() string   { return e.Note }
func (e ColorEdit) Instruction() string   { return e.Note }
func (e LayoutEdit) Instruction() string  { return e.Note }
func (e GeneralEdit) Instruction() string { return e.Note }

func (e TextEdit) validate() error {
	if e.Old == "" && strings.TrimSpace(e.Note) == "" {
		return apperr.Validation("text edit needs oldText or an instruction")
	}
	if len(e.Old) > maxTextLen || len(e.New) > maxTextLen {
		return apperr.Validation("text edit is too long (max %d bytes)", maxTextLen)
	}
	return validateNote(e.Note)
}

func (e ImageEdit) validate() error {
	if e.URL == "" {
		return apperr.Validation("image edit needs imageUrl")
	}
	if !isImageURL(e.URL) {
		return apperr.Validation("invalid imageUrl %q", e.URL)
	}
	if strings.ContainsAny(e.URL, `"'<> `) {
		return apperr.Validation("imageUrl contains forbidden characters")
	}
	if e.OldURL != "" {
		if !isImageURL(e.OldURL) {
			return apperr.Validation("invalid oldImageUrl %q", e.OldURL)
		}
		if strings.ContainsAny(e.OldURL, `"'<> `) {
			return apperr.Validation("oldImageUrl contains forbidden characters")
		}
	}
	if e.OldURL == "" && e.Section == "" && strings.TrimSpace(e.Note) == "" {
		return apperr.Validation("image edit needs oldImageUrl, section or an instruction")
	}
	return validateNote(e.Note)
}

func (e ColorEdit) validate() error {
	if !validChannels[e.Channel] {
		return apperr.Validation("unknown color channel %q", e.Channel)
	}
	if brand.NormalizeColor(e.Value) == "" {
		return apperr.Validation("invalid colorValue %q", e.Value)
	}
	return validateNote(e.Note)
}

func (e LayoutEdit) validate() error  { return requireNote(e.Note) }
func (e GeneralEdit) validate() error { return requireNote(e.Note) }

var validChannels = map[string]bool{
	"primary": true, "secondary": true, "accent": true, "background": true, "text": true,
}

func requireNote(note string) error {
	if strings.TrimSpace(note) == "" {
		return apperr.Validation("instruction is required")
	}
	return validateNote(note)
}

func validateNote(note string) error {
	if utf8.RuneCountInString(note) > maxInstructionLen {
		return apperr.Validation("instruction is too long (max %d characters)", maxInstructionLen)
	}
	return nil
}

func isImageURL(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "/")
}

// Request is one edit against the site stored under Slug.
type Request struct {
	Slug string
	Edit Edit
}

// Validate checks the slug and the variant's fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Slug) == "" {
		return apperr.Validation("slug is required")
	}
	if r.Edit == nil {
		return apperr.Validation("edit is required")
	}
	return r.Edit.validate()
}

// wireRequest is the flat JSON form of a Request.
type wireRequest struct {
	Slug        string `json:"slug"`
	EditType    Type   `json:"editType"`
	OldText     string `json:"oldText,omitempty"`
	NewText     string `json:"newText,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	OldImageURL string `json:"oldImageUrl,omitempty"`
	Section     string `json:"section,omitempty"`
	ColorType   string `json:"colorType,omitempty"`
	ColorValue  string `json:"colorValue,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

// ParseRequest decodes the flat wire JSON into a Request. Fields that do
// not belong to the edit type are ignored.
func ParseRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return Request{}, apperr.Validation("invalid edit request: %v", err)
	}
	return w.request()
}

func (w wireRequest) request() (Request, error) {
	var e Edit
	switch Type(strings.ToLower(string(w.EditType))) {
	case TypeText:
		e = TextEdit{Old: w.OldText, New: w.NewText, Note: w.Instruction}
	case TypeImage:
		e = ImageEdit{Section: strings.TrimSpace(w.Section), URL: strings.TrimSpace(w.ImageURL), OldURL: strings.TrimSpace(w.OldImageURL), Note: w.Instruction}
	case TypeColor:
		e = ColorEdit{Channel: strings.ToLower(strings.TrimSpace(w.ColorType)), Value: strings.TrimSpace(w.ColorValue), Note: w.Instruction}
	case TypeLayout:
		e = LayoutEdit{Note: w.Instruction}
	case TypeGeneral:
		e = GeneralEdit{Note: w.Instruction}
	default:
		return Request{}, apperr.Validation("unknown editType %q", w.EditType)
	}
	return Request{Slug: strings.TrimSpace(w.Slug), Edit: e}, nil
}

// UnmarshalJSON reads the flat wire form.
func (r *Request) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRequest(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalJSON writes the flat wire form.
func (r Request) MarshalJSON() ([]byte, error) {
	w := wireRequest{Slug: r.Slug}
	switch e := r.Edit.(type) {
	case TextEdit:
		w.EditType, w.OldText, w.NewText, w.Instruction = TypeText, e.Old, e.New, e.Note
	case ImageEdit:
		w.EditType, w.ImageURL, w.OldImageURL, w.Section, w.Instruction = TypeImage, e.URL, e.OldURL, e.Section, e.Note
	case ColorEdit:
		w.EditType, w.ColorType, w.ColorValue, w.Instruction = TypeColor, e.Channel, e.Value, e.Note
	case LayoutEdit:
		w.EditType, w.Instruction = TypeLayout, e.Note
	case GeneralEdit:
		w.EditType, w.Instruction = TypeGeneral, e.Note
	}
	return json.Marshal(w)
}
