// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sitesmith/internal/brand"
)

const (
	analysisKeyPrefix = "analysis:"

	// DefaultAnalysisTTL is how long a source analysis stays cached.
	DefaultAnalysisTTL = 6 * time.Hour
)

// AnalysisCache keeps successful source analyses in Valkey so repeated
// extractions for the same URL or handle skip the network. Cache errors
// are logged and treated as misses.
type AnalysisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAnalysisCache creates an analysis cache backed by the given client.
func NewAnalysisCache(client *redis.Client, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}
	return &AnalysisCache{client: client, ttl: ttl}
}

// GetAnalysis returns the cached analysis for key.
func (c *AnalysisCache) GetAnalysis(ctx context.Context, key string) (brand.SourceAnalysis, bool) {
	raw, err := c.client.Get(ctx, analysisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return brand.SourceAnalysis{}, false
	}
	if err != nil {
		slog.Warn("analysis cache get error", "key", key, "error", err)
		return brand.SourceAnalysis{}, false
	}
	var a brand.SourceAnalysis
	if err := json.Unmarshal(raw, &a); err != nil {
		slog.Warn("analysis cache entry unreadable", "key", key, "error", err)
		return brand.SourceAnalysis{}, false
	}
	slog.Debug("analysis cache hit", "key", key)
	return a, true
}

// SetAnalysis stores a for key with the configured TTL.
func (c *AnalysisCache) SetAnalysis(ctx context.Context, key string, a brand.SourceAnalysis) {
	raw, err := json.Marshal(a)
	if err != nil {
		slog.Warn("analysis cache encode error", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, analysisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		slog.Warn("analysis cache set error", "key", key, "error", err)
	}
}

// Purge drops every cached analysis.
func (c *AnalysisCache) Purge(ctx context.Context) (int, error) {
	n, err := deleteByPrefix(ctx, c.client, analysisKeyPrefix)
	if n > 0 {
		slog.Info("analysis cache cleared", "deleted", n)
	}
	return n, err
}
