// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"sitesmith/internal/ai"
	"sitesmith/internal/brand"
	"sitesmith/internal/cache"
	"sitesmith/internal/config"
	"sitesmith/internal/database"
	"sitesmith/internal/edit"
	"sitesmith/internal/extract"
	"sitesmith/internal/fetch"
	"sitesmith/internal/metrics"
	"sitesmith/internal/pipeline"
	"sitesmith/internal/sites"
	"sitesmith/internal/storage"
	"sitesmith/internal/store"
)

// deps holds the long-lived clients. close releases them in reverse
// order of creation.
type deps struct {
	db      *sql.DB
	valkey  *redis.Client
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// connectDB opens PostgreSQL and optionally runs pending migrations.
func (d *deps) connectDB(c *config.Config, migrate bool) error {
	db, err := database.Connect(c.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	d.db = db
	d.closers = append(d.closers, func() { db.Close() })

	if migrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	return nil
}

// connectValkey opens the cache and lock store.
func (d *deps) connectValkey(c *config.Config) error {
	client, err := cache.ConnectValkey(c.ValkeyHost, c.ValkeyPort, c.ValkeyPassword, 0)
	if err != nil {
		return fmt.Errorf("connect to valkey: %w", err)
	}
	d.valkey = client
	d.closers = append(d.closers, func() { client.Close() })
	return nil
}

// newRegistry builds the AI provider registry from the configured keys.
func newRegistry(c *config.Config) *ai.Registry {
	reg := ai.NewRegistry(c.AIProvider, map[string]ai.ProviderConfig{
		"openai":  {APIKey: c.OpenAIKey, Model: c.OpenAIModel, BaseURL: c.OpenAIBaseURL},
		"gemini":  {APIKey: c.GeminiKey, Model: c.GeminiModel, BaseURL: c.GeminiBaseURL},
		"claude":  {APIKey: c.ClaudeKey, Model: c.ClaudeModel, BaseURL: c.ClaudeBaseURL},
		"mistral": {APIKey: c.MistralKey, Model: c.MistralModel, BaseURL: c.MistralBaseURL},
	})
	slog.Info("ai providers initialized",
		"active", reg.ActiveName(),
		"available", reg.Available(),
	)
	return reg
}

// newOrchestrator builds the source fetchers and the extraction
// orchestrator. valkey may be nil, which disables the analysis cache.
func (d *deps) newOrchestrator(c *config.Config, m *metrics.Metrics) (*extract.Orchestrator, error) {
	client := fetch.NewHTTPClient(c.FetchAllowPrivate)
	if c.FetchAllowPrivate {
		slog.Warn("fetchers may reach private networks")
	}

	// A nil *storage.Client must not become a non-nil fetch.Uploader.
	var uploader fetch.Uploader
	s3, err := storage.New(c.S3Endpoint, c.S3Region, c.S3AccessKey, c.S3SecretKey, c.S3BucketPublic, c.S3PublicURL)
	if err != nil {
		return nil, fmt.Errorf("initialize S3 storage: %w", err)
	}
	if s3 != nil {
		uploader = s3
		slog.Info("s3 storage connected", "endpoint", c.S3Endpoint, "bucket", c.S3BucketPublic)
	} else {
		slog.Warn("s3 storage not configured, logos are not re-hosted")
	}

	var renderer fetch.Renderer
	if c.ChromeURL != "" {
		chrome := fetch.NewChromeRenderer(c.ChromeURL)
		d.closers = append(d.closers, chrome.Close)
		renderer = chrome
		slog.Info("instagram rendering enabled", "chrome", c.ChromeURL)
	}

	fetchers := extract.Fetchers{
		Website:    fetch.NewWebsite(client),
		Instagram:  fetch.NewInstagram(client, fetch.InstagramOptions{Renderer: renderer}),
		Competitor: fetch.NewCompetitor(client),
		Logo:       fetch.NewLogo(client, uploader),
	}
	if d.valkey != nil {
		analyses := cache.NewAnalysisCache(d.valkey, c.AnalysisCacheTTL)
		fetchers.Website = fetch.Cached(fetchers.Website, analyses, brand.SourceWebsite)
		fetchers.Competitor = fetch.Cached(fetchers.Competitor, analyses, brand.SourceCompetitor)
	}

	return extract.New(fetchers, extract.Options{
		SourceTimeoutFraction: c.SourceTimeoutFraction,
		MaxGallery:            c.GalleryMax,
		MaxCompetitors:        c.CompetitorMax,
		Metrics:               m,
	}), nil
}

// newService wires the complete sites service. It needs the database and
// Valkey connected.
func (d *deps) newService(c *config.Config, m *metrics.Metrics) (*sites.Service, error) {
	orchestrator, err := d.newOrchestrator(c, m)
	if err != nil {
		return nil, err
	}
	registry := newRegistry(c)
	leads := store.NewLeadStore(d.db)

	gen := pipeline.New(registry, leads, pipeline.Options{
		ResearchTimeout: c.ResearchTimeout,
		BriefTimeout:    c.BriefTimeout,
		GenerateTimeout: c.GenerateTimeout,
		Metrics:         m,
	})
	editor := edit.NewEngine(leads, registry, edit.Options{
		AITimeout: c.EditTimeout,
		Metrics:   m,
	})

	var locks sites.Locker
	if d.valkey != nil {
		locks = cache.NewSlugLocks(d.valkey)
	}

	return sites.New(leads, orchestrator, gen, editor, locks, sites.Options{
		ExtractDeadline:         c.ExtractDeadline,
		GenerateDeadline:        c.GenerateDeadline,
		GenerateExtractDeadline: c.GenerateExtractDeadline,
		Metrics:                 m,
	}), nil
}
