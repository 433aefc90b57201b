// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package brand

import (
	"net/url"
	"slices"
	"strings"
)

// DefaultMaxGallery bounds the merged image gallery when no limit is set.
const DefaultMaxGallery = 12

const (
	maxToneKeywords = 8
	maxSnippets     = 8
)

// BuildOptions tunes the merge.
type BuildOptions struct {
	MaxGallery int
}

// candidate is one source's proposal for a profile field.
type candidate struct {
	kind  SourceKind
	value string
}

// pick returns the first non-empty candidate. Candidates are listed in
// precedence order.
func pick(cands ...candidate) (string, SourceKind) {
	for _, c := range cands {
		if c.value != "" {
			return c.value, c.kind
		}
	}
	return "", ""
}

// Build merges the user's input and the per-source analyses into a
// profile. It is deterministic and never returns a profile with empty
// colors, fonts, layout or tone.
//
// Precedence, highest first: user input, logo (colors only), website,
// Instagram, competitor set, industry defaults.
func Build(in ExtractionInput, src Sources, opts BuildOptions) Profile {
	if opts.MaxGallery <= 0 {
		opts.MaxGallery = DefaultMaxGallery
	}
	ind := IndustryFor(in.BusinessType)
	prov := make(map[string]SourceKind)

	p := Profile{
		BusinessType: in.BusinessType,
		Industry:     ind.Key,
		Provenance:   prov,
		RawData:      src,
	}

	// Colors.
	ordered := []SourceAnalysis{src.Logo, src.Website, src.Instagram, src.Competitor}
	primaryCands := []candidate{{SourceUser, NormalizeColor(in.PreferredColors.Primary)}}
	for _, a := range ordered {
		primaryCands = append(primaryCands, candidate{a.Kind, brandColor(a, "")})
	}
	primaryCands = append(primaryCands, candidate{SourceDefault, ind.Colors.Primary})
	p.Colors.Primary, prov["colors.primary"] = pick(primaryCands...)

	accentCands := []candidate{{SourceUser, NormalizeColor(in.PreferredColors.Accent)}}
	for _, a := range ordered {
		accentCands = append(accentCands, candidate{a.Kind, brandColor(a, p.Colors.Primary)})
	}
	defaultAccent := ind.Colors.Accent
	if defaultAccent == p.Colors.Primary {
		defaultAccent = ind.Colors.Primary
	}
	accentCands = append(accentCands, candidate{SourceDefault, defaultAccent})
	p.Colors.Accent, prov["colors.accent"] = pick(accentCands...)

	bgCands := []candidate{{SourceUser, NormalizeColor(in.PreferredColors.Background)}}
	for _, a := range ordered[1:] {
		bgCands = append(bgCands, candidate{a.Kind, NormalizeColor(a.Background)})
	}
	bgCands = append(bgCands, candidate{SourceDefault, ind.Colors.Background})
	p.Colors.Background, prov["colors.background"] = pick(bgCands...)

	textDefault := ind.Colors.Text
	if prov["colors.background"] != SourceDefault {
		textDefault = ReadableText(p.Colors.Background)
	}
	p.Colors.Text, prov["colors.text"] = pick(
		candidate{SourceUser, NormalizeColor(in.PreferredColors.Text)},
		candidate{SourceDefault, textDefault},
	)

	// Fonts. Instagram and logos carry no typography.
	p.Fonts.Heading, prov["fonts.heading"] = pick(
		candidate{SourceWebsite, fontAt(src.Website, 0)},
		candidate{SourceCompetitor, fontAt(src.Competitor, 0)},
		candidate{SourceDefault, ind.Fonts.Heading},
	)
	p.Fonts.Body, prov["fonts.body"] = pick(
		candidate{SourceWebsite, fontAt(src.Website, 1)},
		candidate{SourceCompetitor, fontAt(src.Competitor, 1)},
		candidate{SourceDefault, ind.Fonts.Body},
	)

	// Tone.
	p.Tone.Voice, prov["tone.voice"] = pick(
		candidate{SourceUser, strings.TrimSpace(in.Tone)},
		candidate{SourceWebsite, voiceFrom(src.Website.ToneWords)},
		candidate{SourceInstagram, voiceFrom(src.Instagram.ToneWords)},
		candidate{SourceCompetitor, voiceFrom(src.Competitor.ToneWords)},
		candidate{SourceDefault, ind.Tone.Voice},
	)
	p.Tone.Keywords = boundedUnion(maxToneKeywords, strings.ToLower,
		src.Website.ToneWords, src.Instagram.ToneWords, src.Competitor.ToneWords, ind.Tone.Keywords)

	// Layout.
	p.Layout = mergeLayout(ind.Layout, src.Website, src.Competitor)

	// Images.
	logo, logoKind := pick(
		candidate{SourceLogo, first(src.Logo.Images)},
		candidate{SourceUser, in.LogoURL},
	)
	p.Images.Logo = logo
	if logo != "" {
		prov["images.logo"] = logoKind
	}
	p.Images.Gallery = Gallery(opts.MaxGallery, logo, src.Website.Images, src.Instagram.Images, src.Competitor.Images)
	if len(p.Images.Gallery) > 0 {
		p.Images.Hero = p.Images.Gallery[0]
	}

	// Content.
	p.Content.Tagline, _ = pick(
		candidate{SourceWebsite, src.Website.Title},
		candidate{SourceInstagram, src.Instagram.Title},
	)
	p.Content.Description, _ = pick(
		candidate{SourceWebsite, src.Website.Description},
		candidate{SourceInstagram, src.Instagram.Description},
	)
	p.Content.Services = slices.Clone(in.Services)
	p.Content.Snippets = boundedUnion(maxSnippets, strings.TrimSpace, src.Website.Snippets, src.Instagram.Snippets)

	return p
}

// brandColor returns the first non-neutral color of a successful analysis
// that differs from exclude.
func brandColor(a SourceAnalysis, exclude string) string {
	if !a.OK {
		return ""
	}
	for _, c := range a.Colors {
		c = NormalizeColor(c)
		if c != "" && c != exclude && !IsNeutral(c) {
			return c
		}
	}
	return ""
}

func fontAt(a SourceAnalysis, i int) string {
	if !a.OK || len(a.Fonts) == 0 {
		return ""
	}
	if i >= len(a.Fonts) {
		i = len(a.Fonts) - 1
	}
	return strings.TrimSpace(a.Fonts[i])
}

func voiceFrom(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	default:
		return words[0] + " and " + words[1]
	}
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// boundedUnion concatenates lists, normalizing with norm and dropping
// empty and repeated values, until limit entries are collected.
func boundedUnion(limit int, norm func(string) string, lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, v := range list {
			v = norm(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// hintSections maps observed layout hints to site sections worth adding.
var hintSections = map[LayoutHint]string{
	HintGallery:      "gallery",
	HintTestimonials: "testimonials",
	HintMenu:         "menu",
	HintPricing:      "pricing",
	HintBooking:      "booking",
	HintTeam:         "team",
	HintFAQ:          "faq",
}

func mergeLayout(base Layout, sources ...SourceAnalysis) Layout {
	out := Layout{Style: base.Style, Sections: slices.Clone(base.Sections)}
	var hints []string
	for _, a := range sources {
		if !a.OK {
			continue
		}
		for _, h := range a.Layout {
			if !slices.Contains(hints, string(h)) {
				hints = append(hints, string(h))
			}
			sec, ok := hintSections[h]
			if !ok || slices.Contains(out.Sections, sec) {
				continue
			}
			if i := slices.Index(out.Sections, "contact"); i >= 0 {
				out.Sections = slices.Insert(out.Sections, i, sec)
			} else {
				out.Sections = append(out.Sections, sec)
			}
		}
	}
	out.Hints = hints
	return out
}

// Gallery merges image URL lists in order, removing the logo and
// duplicates, and truncates to limit.
func Gallery(limit int, exclude string, lists ...[]string) []string {
	seen := map[string]bool{}
	if exclude != "" {
		seen[imageKey(exclude)] = true
	}
	out := []string{}
	for _, list := range lists {
		for _, u := range list {
			k := imageKey(u)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, u)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// imageKey normalizes an image URL for de-duplication: scheme and host
// are lowercased and the fragment is dropped.
func imageKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}
