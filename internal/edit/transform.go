// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package edit

import (
	"regexp"
	"strings"

	"sitesmith/internal/brand"
)

// Transformer applies an edit without a model. handled is false when the
// edit needs a free-text rewrite instead.
type Transformer interface {
	Transform(html string, e Edit) (out string, handled bool)
}

// RegexTransformer handles text, color and image edits with string and
// regular-expression rewrites.
type RegexTransformer struct{}

func (RegexTransformer) Transform(html string, e Edit) (string, bool) {
	switch e := e.(type) {
	case TextEdit:
		if e.Old == "" {
			return html, false
		}
		return ReplaceText(html, e.Old, e.New), true
	case ColorEdit:
		return SetColor(html, e.Channel, brand.NormalizeColor(e.Value)), true
	case ImageEdit:
		switch {
		case e.OldURL != "":
			return ReplaceImageURL(html, e.OldURL, e.URL), true
		case e.Section != "":
			out, _ := ReplaceSectionImage(html, e.Section, e.URL)
			return out, true
		}
		return html, false
	default:
		return html, false
	}
}

// ReplaceText replaces every occurrence of old with new. A missing old
// leaves html unchanged.
func ReplaceText(html, old, new string) string {
	return strings.ReplaceAll(html, old, new)
}

// SetColor rewrites the CSS custom property --{channel} (or
// --{channel}-color) to value wherever it is declared. Applying the same
// value twice yields the same document.
func SetColor(html, channel, value string) string {
	re := regexp.MustCompile(`(--` + regexp.QuoteMeta(channel) + `(?:-color)?\s*:\s*)[^;}"]*?(\s*[;}"])`)
	return re.ReplaceAllString(html, "${1}"+value+"${2}")
}

var (
	imageTagRe  = regexp.MustCompile(`(?i)<(?:img|source)\b[^>]*>`)
	imageAttrRe = regexp.MustCompile(`(?i)(\s(src|srcset)\s*=\s*)("[^"]*"|'[^']*')`)
)

// ReplaceImageURL points every <img> or <source> whose src equals oldURL,
// or whose srcset lists oldURL as a candidate, at newURL. Only exact
// attribute values match; the rest of the document is left alone.
func ReplaceImageURL(html, oldURL, newURL string) string {
	return imageTagRe.ReplaceAllStringFunc(html, func(tag string) string {
		return imageAttrRe.ReplaceAllStringFunc(tag, func(attr string) string {
			m := imageAttrRe.FindStringSubmatch(attr)
			quote, value := m[3][:1], m[3][1:len(m[3])-1]
			if strings.EqualFold(m[2], "src") {
				if strings.TrimSpace(value) != oldURL {
					return attr
				}
				value = newURL
			} else {
				value = replaceSrcset(value, oldURL, newURL)
			}
			return m[1] + quote + value + quote
		})
	})
}

// replaceSrcset swaps candidates of a srcset list whose URL is oldURL and
// keeps their width or density descriptors.
func replaceSrcset(srcset, oldURL, newURL string) string {
	parts := strings.Split(srcset, ",")
	for i, p := range parts {
		rest := strings.TrimLeft(p, " \t\n\r\f")
		lead := p[:len(p)-len(rest)]
		u, desc := rest, ""
		if j := strings.IndexAny(rest, " \t\n\r\f"); j != -1 {
			u, desc = rest[:j], rest[j:]
		}
		if u == oldURL {
			parts[i] = lead + newURL + desc
		}
	}
	return strings.Join(parts, ",")
}

var imgSrcRe = regexp.MustCompile(`(?i)(<img\b[^>]*?\bsrc\s*=\s*["'])([^"']*)(["'])`)

// ReplaceSectionImage points the first <img> inside the element whose id
// is section at url. The element spans to the next closing </section>.
// ok is false when the section or its image is not found.
func ReplaceSectionImage(html, section, url string) (string, bool) {
	idRe := regexp.MustCompile(`(?i)\bid\s*=\s*["']` + regexp.QuoteMeta(section) + `["']`)
	loc := idRe.FindStringIndex(html)
	if loc == nil {
		return html, false
	}
	start := loc[0]
	end := len(html)
	if i := strings.Index(strings.ToLower(html[start:]), "</section>"); i != -1 {
		end = start + i
	}
	m := imgSrcRe.FindStringSubmatchIndex(html[start:end])
	if m == nil {
		return html, false
	}
	srcStart, srcEnd := start+m[4], start+m[5]
	return html[:srcStart] + url + html[srcEnd:], true
}
