// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"sitesmith/internal/brand"
)

var (
	igHandleRe = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)
	// "1,234 Followers, 56 Following, 78 Posts - See Instagram photos and videos from Name (@handle)"
	igStatsRe = regexp.MustCompile(`(?i)^([\d.,]+[KkMm]?) Followers, ([\d.,]+[KkMm]?) Following, ([\d.,]+[KkMm]?) Posts - See Instagram photos and videos from (.+?) \(@`)
)

// Renderer returns the HTML of a page after client-side rendering.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// InstagramOptions configures the Instagram fetcher.
type InstagramOptions struct {
	BaseURL  string   // defaults to https://www.instagram.com
	Renderer Renderer // optional; plain GET when nil
}

// Instagram reads a public profile page: display name, bio text, profile
// picture and, when rendered, recent post images. The profile picture is
// sampled for brand colors.
type Instagram struct {
	client   *http.Client
	baseURL  string
	renderer Renderer
}

// NewInstagram creates an Instagram fetcher.
func NewInstagram(client *http.Client, opts InstagramOptions) *Instagram {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.instagram.com"
	}
	return &Instagram{
		client:   client,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		renderer: opts.Renderer,
	}
}

func (ig *Instagram) Fetch(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
	handle, err := NormalizeHandle(ref)
	if err != nil {
		return brand.SourceAnalysis{}, &Failure{Kind: ParseError, Source: brand.SourceInstagram, Ref: ref, Err: err}
	}
	profileURL := ig.baseURL + "/" + handle + "/"

	body, finalURL, err := ig.load(ctx, profileURL)
	if err != nil {
		return brand.SourceAnalysis{}, err
	}
	if strings.Contains(finalURL, "/accounts/login") || strings.Contains(finalURL, "/challenge") {
		return brand.SourceAnalysis{}, &Failure{
			Kind: RateLimited, Source: brand.SourceInstagram, Ref: ref,
			Err: fmt.Errorf("redirected to login wall"),
		}
	}

	base, _ := url.Parse(finalURL)
	a, err := analyzeHTML(brand.SourceInstagram, base, body)
	if err != nil {
		return brand.SourceAnalysis{}, &Failure{Kind: ParseError, Source: brand.SourceInstagram, Ref: ref, Err: err}
	}
	a.Ref = handle
	// The page chrome belongs to Instagram, not the business.
	a.Colors, a.Fonts, a.Layout, a.Background = nil, nil, nil, ""

	if m := igStatsRe.FindStringSubmatch(a.Description); m != nil {
		a.Title = m[4]
		a.Snippets = append([]string{fmt.Sprintf("%s followers, %s posts", m[1], m[3])}, a.Snippets...)
		a.Description = ""
	}
	if a.Title == "" && len(a.Images) == 0 {
		return brand.SourceAnalysis{}, &Failure{
			Kind: ParseError, Source: brand.SourceInstagram, Ref: ref,
			Err: fmt.Errorf("no profile data in page"),
		}
	}

	if len(a.Images) > 0 {
		colors, err := samplePalette(ctx, ig.client, a.Images[0])
		if err != nil {
			slog.Debug("instagram profile picture not sampled", "handle", handle, "error", err)
		}
		a.Colors = colors
	}
	return a, nil
}

func (ig *Instagram) load(ctx context.Context, profileURL string) ([]byte, string, error) {
	if ig.renderer != nil {
		rendered, err := ig.renderer.Render(ctx, profileURL)
		if err == nil {
			return []byte(rendered), profileURL, nil
		}
		if ctx.Err() != nil {
			return nil, "", contextFailure(ctx, brand.SourceInstagram, profileURL)
		}
		slog.Warn("instagram render failed, falling back to plain fetch", "url", profileURL, "error", err)
	}
	pg, err := get(ctx, ig.client, brand.SourceInstagram, profileURL, "text/html", maxPageBytes)
	if err != nil {
		return nil, "", err
	}
	return pg.Body, pg.URL, nil
}

// NormalizeHandle accepts "@name", "name" or a profile URL and returns
// the bare handle.
func NormalizeHandle(ref string) (string, error) {
	h := strings.TrimSpace(ref)
	if strings.Contains(h, "instagram.com") {
		if !strings.Contains(h, "://") {
			h = "https://" + h
		}
		u, err := url.Parse(h)
		if err != nil {
			return "", err
		}
		h = strings.Split(strings.Trim(u.Path, "/"), "/")[0]
	}
	h = strings.TrimPrefix(h, "@")
	if !igHandleRe.MatchString(h) {
		return "", fmt.Errorf("invalid instagram handle %q", ref)
	}
	return strings.ToLower(h), nil
}
