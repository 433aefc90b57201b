// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sitesmith/internal/aitext"
	"sitesmith/internal/apperr"
	"sitesmith/internal/brand"
)

const (
	minResearchLen = 80
	maxResearchLen = 6000
)

// research asks for positioning text from the business facts and the raw
// per-source analyses.
func (p *Pipeline) research(ctx context.Context, in Input, prev error) (string, error) {
	user := buildResearchPrompt(in)
	if prev != nil {
		user += "\n\nYour previous answer was unusable (" + prev.Error() + "). Answer in plain prose, at least a few sentences."
	}
	out, err := p.gen.Generate(ctx, researchSystemPrompt, user)
	if err != nil {
		return "", err
	}
	text := aitext.StripFences(out)
	if len([]rune(text)) < minResearchLen {
		return "", apperr.Malformed(string(PhaseResearch), "positioning text is too short")
	}
	return aitext.Truncate(text, maxResearchLen), nil
}

// brief asks for a JSON design brief built from the research and profile.
func (p *Pipeline) brief(ctx context.Context, in Input, research string, prev error) (*DesignBrief, error) {
	user := buildBriefPrompt(in, research)
	if prev != nil {
		user += "\n\nYour previous answer was rejected: " + prev.Error() +
			"\nReturn ONLY a JSON object that matches the schema exactly. No prose, no code fences."
	}
	out, err := p.gen.Generate(ctx, briefSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	b, err := parseBrief(out)
	if err != nil {
		return nil, apperr.Malformed(string(PhaseBrief), err.Error())
	}
	return b, nil
}

// generate asks for the final HTML document.
func (p *Pipeline) generate(ctx context.Context, in Input, b *DesignBrief, prev error) (string, error) {
	user := buildGeneratePrompt(in, b)
	if prev != nil {
		user += "\n\nIMPORTANT: your previous answer was rejected (" + prev.Error() + "). " +
			"Return the COMPLETE document starting with <!DOCTYPE html> and ending with </html>. " +
			"Output only HTML, no explanations and no markdown fences."
	}
	out, err := p.gen.Generate(ctx, generateSystemPrompt, user)
	if err != nil {
		return "", err
	}
	html := aitext.StripFences(out)
	if !aitext.IsHTMLDocument(html) {
		return "", apperr.Malformed(string(PhaseGenerate), "output is not a complete HTML document")
	}
	return html, nil
}

const researchSystemPrompt = `You are a brand strategist for small local businesses.
Given facts about a business and signals scraped from its website, Instagram and competitors,
write a short positioning analysis: who the customers are, what the business should emphasise,
how it can stand out from the competitors, and the tone the website should take.
Write 2-4 short paragraphs of plain prose. Do not use markdown headings or lists.`

const briefSystemPrompt = `You are a senior web designer writing a design brief for a one-page marketing website.
You answer with a single JSON object and nothing else.`

const generateSystemPrompt = `You are an expert front-end developer building a complete, production-ready
one-page marketing website as a single HTML document.

Requirements:
- Output ONLY the HTML document, starting with <!DOCTYPE html> and ending with </html>.
- All CSS goes in one <style> element in <head>. Declare the palette as CSS custom properties on :root:
  --primary, --accent, --background and --text, and use them throughout.
- Load fonts from Google Fonts with a <link> element.
- No JavaScript frameworks; a small inline <script> for the mobile menu is fine.
- Responsive, accessible markup with semantic sections, each with an id matching the brief.
- Use the provided image URLs in <img> tags; never invent image URLs.
- Write real, specific copy for the business. No lorem ipsum, no placeholders.`

func buildResearchPrompt(in Input) string {
	var sb strings.Builder
	writeFacts(&sb, in.Business)
	raw := in.Profile.RawData
	sb.WriteString("\nSignals from sources:\n")
	writeSource(&sb, "Existing website", raw.Website)
	writeSource(&sb, "Instagram", raw.Instagram)
	for _, c := range raw.Competitors {
		writeSource(&sb, "Competitor "+c.Ref, c)
	}
	if !raw.Website.OK && !raw.Instagram.OK && !raw.Competitor.OK {
		sb.WriteString("(no external sources available; rely on the facts and the industry)\n")
	}
	fmt.Fprintf(&sb, "\nIndustry: %s\n", in.Profile.Industry)
	return sb.String()
}

func buildBriefPrompt(in Input, research string) string {
	var sb strings.Builder
	writeFacts(&sb, in.Business)
	sb.WriteString("\nPositioning research:\n")
	sb.WriteString(research)
	sb.WriteString("\n\n")
	writeProfile(&sb, in.Profile)
	sb.WriteString("\nWrite the design brief as JSON matching this JSON Schema:\n")
	sb.WriteString(briefSchemaJSON)
	sb.WriteString("\nUse the brand palette above unless it clearly clashes; colors must be #rrggbb. ")
	sb.WriteString("Section ids are lowercase words like hero, about, services, gallery, contact.")
	return sb.String()
}

func buildGeneratePrompt(in Input, b *DesignBrief) string {
	var sb strings.Builder
	writeFacts(&sb, in.Business)
	sb.WriteString("\n")
	writeProfile(&sb, in.Profile)
	briefJSON, _ := json.MarshalIndent(b, "", "  ")
	sb.WriteString("\nDesign brief:\n")
	sb.Write(briefJSON)
	sb.WriteString("\n")
	if img := in.Profile.Images; img.Logo != "" || len(img.Gallery) > 0 {
		sb.WriteString("\nImages you may use:\n")
		if img.Logo != "" {
			fmt.Fprintf(&sb, "- logo: %s\n", img.Logo)
		}
		if img.Hero != "" {
			fmt.Fprintf(&sb, "- hero: %s\n", img.Hero)
		}
		for _, u := range img.Gallery {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
	} else {
		sb.WriteString("\nNo images are available: use color blocks, gradients and typography instead of <img>.\n")
	}
	sb.WriteString("\nBuild the website now.")
	return sb.String()
}

func writeFacts(sb *strings.Builder, f brand.ExtractionInput) {
	fmt.Fprintf(sb, "Business: %s\nType: %s\n", f.BusinessName, f.BusinessType)
	optional := []struct{ label, value string }{
		{"Location", f.Location},
		{"Target customers", f.TargetCustomers},
		{"Desired tone", f.Tone},
		{"Notes", f.Notes},
		{"Phone", f.Phone},
		{"Email", f.Email},
		{"Address", f.Address},
	}
	for _, o := range optional {
		if v := strings.TrimSpace(o.value); v != "" {
			fmt.Fprintf(sb, "%s: %s\n", o.label, v)
		}
	}
	if len(f.Services) > 0 {
		fmt.Fprintf(sb, "Services: %s\n", strings.Join(f.Services, "; "))
	}
	if len(f.USPs) > 0 {
		fmt.Fprintf(sb, "What makes them different: %s\n", strings.Join(f.USPs, "; "))
	}
}

func writeSource(sb *strings.Builder, label string, a brand.SourceAnalysis) {
	if !a.OK {
		return
	}
	fmt.Fprintf(sb, "- %s:", label)
	if a.Title != "" {
		fmt.Fprintf(sb, " title %q;", a.Title)
	}
	if a.Description != "" {
		fmt.Fprintf(sb, " description %q;", aitext.Truncate(a.Description, 300))
	}
	if len(a.ToneWords) > 0 {
		fmt.Fprintf(sb, " tone %s;", strings.Join(a.ToneWords, ", "))
	}
	if len(a.Layout) > 0 {
		hints := make([]string, len(a.Layout))
		for i, h := range a.Layout {
			hints[i] = string(h)
		}
		fmt.Fprintf(sb, " sections %s;", strings.Join(hints, ", "))
	}
	sb.WriteString("\n")
	for i, s := range a.Snippets {
		if i == 4 {
			break
		}
		fmt.Fprintf(sb, "    \"%s\"\n", aitext.Truncate(s, 200))
	}
}

func writeProfile(sb *strings.Builder, p brand.Profile) {
	fmt.Fprintf(sb, "Brand palette: primary %s, accent %s, background %s, text %s\n",
		p.Colors.Primary, p.Colors.Accent, p.Colors.Background, p.Colors.Text)
	fmt.Fprintf(sb, "Fonts: headings %s, body %s\n", p.Fonts.Heading, p.Fonts.Body)
	fmt.Fprintf(sb, "Tone: %s", p.Tone.Voice)
	if len(p.Tone.Keywords) > 0 {
		fmt.Fprintf(sb, " (%s)", strings.Join(p.Tone.Keywords, ", "))
	}
	fmt.Fprintf(sb, "\nLayout: %s; sections %s\n", p.Layout.Style, strings.Join(p.Layout.Sections, ", "))
	if p.Content.Tagline != "" {
		fmt.Fprintf(sb, "Existing tagline: %s\n", p.Content.Tagline)
	}
	if p.Content.Description != "" {
		fmt.Fprintf(sb, "Existing description: %s\n", aitext.Truncate(p.Content.Description, 300))
	}
}

// genericPositioning is the research fallback.
func genericPositioning(in Input) string {
	f := in.Business
	where := ""
	if f.Location != "" {
		where = " in " + f.Location
	}
	voice := in.Profile.Tone.Voice
	if voice == "" {
		voice = "friendly and professional"
	}
	return fmt.Sprintf("%s is a %s%s. The website should make it immediately clear what the business offers, "+
		"build trust with genuine details and make contacting or visiting effortless. "+
		"Keep the copy %s, highlight what sets the business apart from other %s options nearby, "+
		"and end every section with a clear next step.",
		f.BusinessName, strings.ToLower(f.BusinessType), where, voice, strings.ToLower(f.BusinessType))
}
