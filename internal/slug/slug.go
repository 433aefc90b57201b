// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug derives URL-friendly site slugs from business names.
package slug

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength bounds a slug.
const MaxLength = 200

var (
	// nonAlphanumeric matches anything that isn't a letter, digit, space or hyphen.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s-]`)
	// whitespace matches runs of any whitespace.
	whitespace = regexp.MustCompile(`\s+`)
	// multipleHyphens collapses consecutive hyphens into one.
	multipleHyphens = regexp.MustCompile(`-{2,}`)

	validSlug = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Generate creates a URL-friendly slug from the given string. Accents are
// folded to their base letter.
// Example: "Café Rösti & Co." → "cafe-rosti-co"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(fold(s)))
	result = strings.ReplaceAll(result, "&", " ")
	result = nonAlphanumeric.ReplaceAllString(result, "")
	result = whitespace.ReplaceAllString(result, "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	if len(result) > MaxLength {
		result = strings.TrimRight(result[:MaxLength], "-")
	}
	return result
}

// fold strips combining marks after canonical decomposition.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Valid reports whether s is a well-formed slug.
func Valid(s string) bool {
	return len(s) <= MaxLength && validSlug.MatchString(s)
}

// Unique returns base, or base with the first free numeric suffix
// ("bella-vista-2", "bella-vista-3", ...). taken reports whether a
// candidate is in use.
func Unique(base string, taken func(string) (bool, error)) (string, error) {
	if base == "" {
		base = "site"
	}
	if len(base) > MaxLength-4 {
		base = strings.TrimRight(base[:MaxLength-4], "-")
	}
	candidate := base
	for i := 2; ; i++ {
		used, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		if i > 999 {
			return "", fmt.Errorf("slug: no free suffix for %q", base)
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
