// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package fetch

import (
	"context"
	"strings"

	"sitesmith/internal/brand"
)

// AnalysisCache stores successful analyses between runs.
type AnalysisCache interface {
	GetAnalysis(ctx context.Context, key string) (brand.SourceAnalysis, bool)
	SetAnalysis(ctx context.Context, key string, a brand.SourceAnalysis)
}

// Cached wraps f so successful analyses are served from cache. Failures
// are never cached.
func Cached(f Fetcher, cache AnalysisCache, kind brand.SourceKind) Fetcher {
	if cache == nil {
		return f
	}
	return FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		key := string(kind) + ":" + strings.ToLower(strings.TrimSpace(ref))
		if a, ok := cache.GetAnalysis(ctx, key); ok {
			return a, nil
		}
		a, err := f.Fetch(ctx, ref)
		if err != nil {
			return a, err
		}
		cache.SetAnalysis(ctx, key, a)
		return a, nil
	})
}
