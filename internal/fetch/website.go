// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sitesmith/internal/brand"
)

// Website fetches an HTML page and extracts colors, fonts, imagery, copy
// and layout hints. The same fetcher serves the business's own site and
// each competitor; only the reported source kind differs.
type Website struct {
	client *http.Client
	kind   brand.SourceKind
}

// NewWebsite returns a fetcher for the business's own website.
func NewWebsite(client *http.Client) *Website {
	return &Website{client: client, kind: brand.SourceWebsite}
}

// NewCompetitor returns a fetcher for one competitor site.
func NewCompetitor(client *http.Client) *Website {
	return &Website{client: client, kind: brand.SourceCompetitor}
}

func (w *Website) Fetch(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
	target, err := normalizeSiteURL(ref)
	if err != nil {
		return brand.SourceAnalysis{}, &Failure{Kind: Unreachable, Source: w.kind, Ref: ref, Err: err}
	}

	pg, err := get(ctx, w.client, w.kind, target, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5", maxPageBytes)
	if err != nil {
		return brand.SourceAnalysis{}, err
	}
	if !isHTML(pg.ContentType) {
		return brand.SourceAnalysis{}, &Failure{
			Kind: ParseError, Source: w.kind, Ref: ref,
			Err: fmt.Errorf("unexpected content type %q", pg.ContentType),
		}
	}

	base, err := url.Parse(pg.URL)
	if err != nil {
		return brand.SourceAnalysis{}, &Failure{Kind: ParseError, Source: w.kind, Ref: ref, Err: err}
	}
	a, err := analyzeHTML(w.kind, base, pg.Body)
	if err != nil {
		return brand.SourceAnalysis{}, &Failure{Kind: ParseError, Source: w.kind, Ref: ref, Err: err}
	}
	a.Ref = ref
	return a, nil
}

// normalizeSiteURL adds a scheme to bare domains and rejects anything that
// is not http(s).
func normalizeSiteURL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("unsupported url %q", ref)
	}
	return u.String(), nil
}
