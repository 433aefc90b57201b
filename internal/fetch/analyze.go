// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package fetch

import (
	"bytes"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"sitesmith/internal/brand"
)

const (
	maxColors      = 8
	maxFonts       = 4
	maxImages      = 24
	maxSnippets    = 12
	maxToneWords   = 6
	minParagraph   = 40
	maxSnippetRune = 280
)

var (
	cssColorRe     = regexp.MustCompile(`#[0-9a-fA-F]{3,8}\b|rgba?\([^)]*\)`)
	cssVarRe       = regexp.MustCompile(`--([a-zA-Z0-9_-]+)\s*:\s*([^;}]+)`)
	fontFamilyRe   = regexp.MustCompile(`font-family\s*:\s*([^;}]+)`)
	bodyBgRe       = regexp.MustCompile(`(?s)(?:^|[}\s,])(?:body|html)\s*\{[^}]*?background(?:-color)?\s*:\s*([^;}]+)`)
	inlineBgRe     = regexp.MustCompile(`background(?:-color)?\s*:\s*([^;]+)`)
	googleFamilyRe = regexp.MustCompile(`family=([^&:]+)`)
)

var genericFonts = map[string]bool{
	"serif": true, "sans-serif": true, "monospace": true, "cursive": true, "fantasy": true,
	"system-ui": true, "-apple-system": true, "blinkmacsystemfont": true, "inherit": true,
	"initial": true, "ui-sans-serif": true, "ui-serif": true, "segoe ui": true, "helvetica neue": true,
	"apple color emoji": true, "segoe ui emoji": true, "segoe ui symbol": true, "noto color emoji": true,
}

// toneLexicon maps words found in page copy to a canonical tone word.
var toneLexicon = map[string]string{
	"luxury": "luxurious", "luxurious": "luxurious", "elegant": "elegant", "elegance": "elegant",
	"friendly": "friendly", "family": "family-friendly", "modern": "modern", "contemporary": "modern",
	"traditional": "traditional", "authentic": "authentic", "cosy": "cosy", "cozy": "cosy",
	"professional": "professional", "affordable": "affordable", "premium": "premium",
	"artisan": "artisanal", "handmade": "artisanal", "handcrafted": "artisanal",
	"fresh": "fresh", "organic": "organic", "sustainable": "sustainable", "eco": "sustainable",
	"fun": "playful", "playful": "playful", "bold": "bold", "minimal": "minimal", "minimalist": "minimal",
	"vibrant": "vibrant", "relaxed": "relaxed", "relaxing": "relaxed", "calm": "calm",
	"trusted": "trusted", "reliable": "trusted", "trustworthy": "trusted",
	"expert": "expert", "experienced": "expert", "local": "local", "welcoming": "welcoming",
	"warm": "warm", "creative": "creative", "innovative": "innovative", "rustic": "rustic",
	"quality": "quality", "boutique": "boutique", "award": "award-winning",
}

// weighted counts signals by score and remembers first-seen order so the
// ranking is stable.
type weighted struct {
	score map[string]int
	order []string
}

func newWeighted() *weighted { return &weighted{score: map[string]int{}} }

func (w *weighted) add(v string, n int) {
	if v == "" {
		return
	}
	if _, ok := w.score[v]; !ok {
		w.order = append(w.order, v)
	}
	w.score[v] += n
}

func (w *weighted) top(limit int) []string {
	out := slices.Clone(w.order)
	sort.SliceStable(out, func(i, j int) bool { return w.score[out[i]] > w.score[out[j]] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// analyzer accumulates signals while walking one document.
type analyzer struct {
	base     *url.URL
	a        brand.SourceAnalysis
	colors   *weighted
	fonts    *weighted
	tone     *weighted
	images   []string
	seenImg  map[string]bool
	snippets []string
	hints    map[brand.LayoutHint]bool
}

// analyzeHTML extracts brand signals from an HTML document. base resolves
// relative URLs.
func analyzeHTML(kind brand.SourceKind, base *url.URL, body []byte) (brand.SourceAnalysis, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return brand.SourceAnalysis{}, err
	}

	z := &analyzer{
		base:    base,
		a:       brand.SourceAnalysis{Kind: kind, Ref: base.String(), OK: true},
		colors:  newWeighted(),
		fonts:   newWeighted(),
		tone:    newWeighted(),
		seenImg: map[string]bool{},
		hints:   map[brand.LayoutHint]bool{},
	}
	z.walk(doc)
	return z.finish(), nil
}

func (z *analyzer) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		z.element(n)
		switch n.DataAtom {
		case atom.Script, atom.Noscript, atom.Template:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		z.walk(c)
	}
}

func (z *analyzer) element(n *html.Node) {
	if style := getAttr(n, "style"); style != "" {
		z.css(style, 1)
		if n.DataAtom == atom.Body {
			if m := inlineBgRe.FindStringSubmatch(style); m != nil {
				z.setBackground(m[1])
			}
		}
	}
	z.classHints(n)

	switch n.DataAtom {
	case atom.Title:
		if z.a.Title == "" {
			z.a.Title = clip(textContent(n))
			z.toneFrom(z.a.Title)
		}
	case atom.Meta:
		z.meta(n)
	case atom.Link:
		rel := strings.ToLower(getAttr(n, "rel"))
		href := getAttr(n, "href")
		if strings.Contains(rel, "stylesheet") && strings.Contains(href, "fonts.googleapis.com") {
			z.googleFonts(href)
		}
	case atom.Style:
		css := textContent(n)
		z.css(css, 1)
		if m := bodyBgRe.FindStringSubmatch(css); m != nil {
			z.setBackground(m[1])
		}
	case atom.Img:
		z.image(n)
	case atom.H1, atom.H2, atom.H3:
		t := clip(textContent(n))
		z.snippet(t)
		z.toneFrom(t)
		z.headingHints(t)
		if n.DataAtom == atom.H1 {
			z.hints[brand.HintHero] = z.hints[brand.HintHero] || hasAncestor(n, atom.Header, atom.Section)
		}
	case atom.P:
		t := textContent(n)
		if len(t) >= minParagraph {
			z.snippet(clip(t))
			z.toneFrom(t)
		}
	case atom.Nav:
		z.hints[brand.HintNavigation] = true
	case atom.Blockquote:
		z.hints[brand.HintTestimonials] = true
	case atom.Form:
		if hasDescendant(n, func(c *html.Node) bool {
			return c.DataAtom == atom.Textarea || strings.EqualFold(getAttr(c, "type"), "email")
		}) {
			z.hints[brand.HintContactForm] = true
		}
	case atom.Iframe:
		src := getAttr(n, "src")
		if strings.Contains(src, "google.com/maps") || strings.Contains(src, "maps.google") {
			z.hints[brand.HintMap] = true
		}
	case atom.A:
		href := strings.ToLower(getAttr(n, "href"))
		if strings.Contains(href, "instagram.com") || strings.Contains(href, "facebook.com") || strings.Contains(href, "tiktok.com") {
			z.hints[brand.HintSocial] = true
		}
		label := strings.ToLower(textContent(n))
		if strings.Contains(label, "book") || strings.Contains(label, "reserve") || strings.Contains(label, "appointment") {
			z.hints[brand.HintBooking] = true
		}
	}
}

func (z *analyzer) meta(n *html.Node) {
	name := strings.ToLower(getAttr(n, "name"))
	prop := strings.ToLower(getAttr(n, "property"))
	content := strings.TrimSpace(getAttr(n, "content"))
	if content == "" {
		return
	}
	switch {
	case name == "theme-color" || name == "msapplication-tilecolor":
		z.colors.add(brand.NormalizeColor(content), 5)
	case name == "description" || prop == "og:description":
		if z.a.Description == "" {
			z.a.Description = clip(content)
			z.toneFrom(content)
		}
	case prop == "og:title":
		if z.a.Title == "" {
			z.a.Title = clip(content)
		}
	case prop == "og:image" || prop == "og:image:url" || name == "twitter:image":
		z.addImage(content)
	}
}

// css scans a stylesheet or style attribute for colors, custom properties
// and font families.
func (z *analyzer) css(css string, weight int) {
	for _, m := range cssVarRe.FindAllStringSubmatch(css, -1) {
		name := strings.ToLower(m[1])
		c := brand.NormalizeColor(m[2])
		if c == "" {
			continue
		}
		w := weight + 1
		if strings.Contains(name, "primary") || strings.Contains(name, "brand") || strings.Contains(name, "accent") {
			w = weight + 3
		}
		z.colors.add(c, w)
	}
	for _, m := range cssColorRe.FindAllString(css, -1) {
		z.colors.add(brand.NormalizeColor(m), weight)
	}
	for _, m := range fontFamilyRe.FindAllStringSubmatch(css, -1) {
		fam := strings.TrimSpace(strings.Split(m[1], ",")[0])
		fam = strings.Trim(fam, `"' `)
		if fam == "" || strings.HasPrefix(fam, "var(") || genericFonts[strings.ToLower(fam)] {
			continue
		}
		z.fonts.add(fam, 1)
	}
}

func (z *analyzer) googleFonts(href string) {
	u, err := url.Parse(href)
	if err != nil {
		return
	}
	for _, fam := range u.Query()["family"] {
		name, _, _ := strings.Cut(fam, ":")
		for _, part := range strings.Split(name, "|") {
			if part = strings.TrimSpace(strings.ReplaceAll(part, "+", " ")); part != "" {
				z.fonts.add(part, 3)
			}
		}
	}
	if len(u.Query()["family"]) == 0 {
		for _, m := range googleFamilyRe.FindAllStringSubmatch(href, -1) {
			z.fonts.add(strings.ReplaceAll(m[1], "+", " "), 3)
		}
	}
}

func (z *analyzer) setBackground(v string) {
	if z.a.Background != "" {
		return
	}
	c := brand.NormalizeColor(v)
	if c == "" {
		c = brand.NormalizeColor(cssColorRe.FindString(v))
	}
	z.a.Background = c
}

func (z *analyzer) image(n *html.Node) {
	src := getAttr(n, "src")
	if src == "" || strings.HasPrefix(src, "data:") {
		src = getAttr(n, "data-src")
	}
	if src == "" {
		if fields := strings.Fields(strings.Split(getAttr(n, "srcset"), ",")[0]); len(fields) > 0 {
			src = fields[0]
		}
	}
	w, h := getAttr(n, "width"), getAttr(n, "height")
	if w == "1" || h == "1" {
		return
	}
	z.addImage(src)
}

func (z *analyzer) addImage(src string) {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") || len(z.images) >= maxImages {
		return
	}
	ref, err := url.Parse(src)
	if err != nil {
		return
	}
	abs := z.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return
	}
	lower := strings.ToLower(abs.Path)
	if strings.HasSuffix(lower, ".svg") || strings.HasSuffix(lower, ".ico") {
		return
	}
	for _, skip := range []string{"pixel", "sprite", "favicon", "spacer", "tracking"} {
		if strings.Contains(lower, skip) {
			return
		}
	}
	s := abs.String()
	if z.seenImg[s] {
		return
	}
	z.seenImg[s] = true
	z.images = append(z.images, s)
}

func (z *analyzer) snippet(t string) {
	if t == "" || len(z.snippets) >= maxSnippets || slices.Contains(z.snippets, t) {
		return
	}
	z.snippets = append(z.snippets, t)
}

func (z *analyzer) toneFrom(text string) {
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if canon, ok := toneLexicon[w]; ok {
			z.tone.add(canon, 1)
		}
	}
}

func (z *analyzer) headingHints(t string) {
	l := strings.ToLower(t)
	switch {
	case strings.Contains(l, "menu"):
		z.hints[brand.HintMenu] = true
	case strings.Contains(l, "pricing") || strings.Contains(l, "prices") || strings.Contains(l, "price list"):
		z.hints[brand.HintPricing] = true
	case strings.Contains(l, "team") || strings.Contains(l, "our staff") || strings.Contains(l, "meet the"):
		z.hints[brand.HintTeam] = true
	case strings.Contains(l, "faq") || strings.Contains(l, "frequently asked"):
		z.hints[brand.HintFAQ] = true
	case strings.Contains(l, "testimonial") || strings.Contains(l, "reviews") || strings.Contains(l, "what our"):
		z.hints[brand.HintTestimonials] = true
	case strings.Contains(l, "gallery"):
		z.hints[brand.HintGallery] = true
	}
}

func (z *analyzer) classHints(n *html.Node) {
	cls := strings.ToLower(getAttr(n, "class") + " " + getAttr(n, "id"))
	if strings.TrimSpace(cls) == "" {
		return
	}
	if strings.Contains(cls, "hero") {
		z.hints[brand.HintHero] = true
	}
	if strings.Contains(cls, "gallery") || strings.Contains(cls, "carousel") {
		z.hints[brand.HintGallery] = true
	}
	if strings.Contains(cls, "testimonial") || strings.Contains(cls, "review") {
		z.hints[brand.HintTestimonials] = true
	}
	if strings.Contains(cls, "pricing") {
		z.hints[brand.HintPricing] = true
	}
}

// hintOrder fixes the output order of layout hints.
var hintOrder = []brand.LayoutHint{
	brand.HintNavigation, brand.HintHero, brand.HintGallery, brand.HintMenu, brand.HintPricing,
	brand.HintTeam, brand.HintTestimonials, brand.HintFAQ, brand.HintBooking,
	brand.HintContactForm, brand.HintMap, brand.HintSocial,
}

func (z *analyzer) finish() brand.SourceAnalysis {
	a := z.a
	a.Colors = z.colors.top(maxColors)
	a.Fonts = z.fonts.top(maxFonts)
	a.ToneWords = z.tone.top(maxToneWords)
	a.Images = z.images
	a.Snippets = z.snippets
	for _, h := range hintOrder {
		if z.hints[h] {
			a.Layout = append(a.Layout, h)
		}
	}
	return a
}

// getAttr returns the value of an attribute, or "" if absent.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// textContent returns the whitespace-collapsed text below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Noscript) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func hasAncestor(n *html.Node, atoms ...atom.Atom) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if slices.Contains(atoms, p.DataAtom) {
			return true
		}
	}
	return false
}

func hasDescendant(n *html.Node, match func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return true
		}
		if hasDescendant(c, match) {
			return true
		}
	}
	return false
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxSnippetRune {
		return s
	}
	return string(r[:maxSnippetRune]) + "..."
}
