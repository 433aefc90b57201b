// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sitesmith/internal/brand"
	"sitesmith/internal/cache"
	"sitesmith/internal/database"
	"sitesmith/internal/sites"
	"sitesmith/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		d := &deps{}
		defer d.close()
		if err := d.connectDB(cfg, true); err != nil {
			return err
		}
		v, err := database.Version(d.db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", v)
		return nil
	},
}

var (
	extractInput   brand.ExtractionInput
	extractFile    string
	extractNoCache bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Build a brand profile once and print it as JSON",
	Long: `Runs the extraction against the declared sources and prints the profile
and per-source summary. Input comes from flags or from a JSON file
(--input, "-" for stdin) in the API request format.

Example:
  sitesmith extract --name "Bella Vista" --type trattoria --location Cluj \
    --website https://bellavista.example --instagram bellavista`,
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractFile, "input", "", "JSON file with the extraction input")
	f.StringVar(&extractInput.BusinessName, "name", "", "business name")
	f.StringVar(&extractInput.BusinessType, "type", "", "business type")
	f.StringVar(&extractInput.Location, "location", "", "business location")
	f.StringVar(&extractInput.WebsiteURL, "website", "", "existing website URL")
	f.StringVar(&extractInput.InstagramHandle, "instagram", "", "Instagram handle")
	f.StringSliceVar(&extractInput.CompetitorURLs, "competitor", nil, "competitor URL (repeatable)")
	f.StringVar(&extractInput.LogoURL, "logo", "", "logo image URL")
	f.StringVar(&extractInput.PreferredColors.Primary, "primary", "", "preferred primary color")
	f.BoolVar(&extractNoCache, "no-cache", false, "do not use the Valkey analysis cache")
}

func runExtract(cmd *cobra.Command, args []string) error {
	in := extractInput
	if extractFile != "" {
		data, err := readInput(extractFile)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return fmt.Errorf("parse %s: %w", extractFile, err)
		}
	}

	d := &deps{}
	defer d.close()
	if !extractNoCache {
		if err := d.connectValkey(cfg); err != nil {
			return err
		}
	}
	orchestrator, err := d.newOrchestrator(cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ExtractDeadline+5*time.Second)
	defer cancel()
	res, err := orchestrator.Extract(ctx, in, cfg.ExtractDeadline)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

var redriveCmd = &cobra.Command{
	Use:   "redrive <slug>...",
	Short: "Put failed or completed leads back in the generation queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := &deps{}
		defer d.close()
		if err := d.connectDB(cfg, false); err != nil {
			return err
		}
		svc := sites.New(store.NewLeadStore(d.db), nil, nil, nil, nil, sites.Options{})

		var failed int
		for _, slug := range args {
			lead, err := svc.Redrive(cmd.Context(), slug)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", slug, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", lead.Slug, lead.Status)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d leads not re-driven", failed, len(args))
		}
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the Valkey analysis cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every cached source analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := &deps{}
		defer d.close()
		if err := d.connectValkey(cfg); err != nil {
			return err
		}
		n, err := cache.NewAnalysisCache(d.valkey, cfg.AnalysisCacheTTL).Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d cached analyses\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
}
