// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sitesmith/internal/apperr"
	"sitesmith/internal/brand"
	"sitesmith/internal/fetch"
)

func input() brand.ExtractionInput {
	return brand.ExtractionInput{
		BusinessName: "Bella Vista",
		BusinessType: "Italian restaurant",
		Location:     "Leeds",
	}
}

func failing(kind fetch.Kind) fetch.Fetcher {
	return fetch.FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		return brand.SourceAnalysis{}, &fetch.Failure{Kind: kind, Ref: ref, Err: errors.New("boom")}
	})
}

// hanging blocks until its context ends.
func hanging() fetch.Fetcher {
	return fetch.FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		<-ctx.Done()
		return brand.SourceAnalysis{}, &fetch.Failure{Kind: fetch.Timeout, Ref: ref, Err: ctx.Err()}
	})
}

func TestExtract_NoReachableSourcesStillBuildsProfile(t *testing.T) {
	defer goleak.VerifyNone(t)

	o := New(Fetchers{
		Website:    failing(fetch.Unreachable),
		Instagram:  failing(fetch.RateLimited),
		Competitor: failing(fetch.ParseError),
		Logo:       failing(fetch.Unreachable),
	}, Options{})

	in := input()
	in.WebsiteURL = "https://bellavista.example"
	in.InstagramHandle = "bellavista"
	in.CompetitorURLs = []string{"https://a.example", "https://b.example"}
	in.LogoURL = "https://cdn.example/logo.png"

	res, err := o.Extract(context.Background(), in, 5*time.Second)
	require.NoError(t, err)

	p := res.Profile
	assert.NotEmpty(t, p.Colors.Primary)
	assert.NotEmpty(t, p.Colors.Accent)
	assert.NotEmpty(t, p.Colors.Background)
	assert.NotEmpty(t, p.Colors.Text)
	assert.NotEmpty(t, p.Fonts.Heading)
	assert.NotEmpty(t, p.Fonts.Body)
	assert.NotEmpty(t, p.Tone.Voice)
	assert.NotEmpty(t, p.Layout.Sections)
	assert.Equal(t, brand.SourceDefault, p.Provenance["colors.primary"])

	assert.Equal(t, 0, res.Summary.Succeeded)
	assert.Equal(t, 5, res.Summary.Failed)
	assert.False(t, res.Summary.TimedOut)

	want := map[brand.SourceKind]string{
		brand.SourceWebsite:   "unreachable",
		brand.SourceInstagram: "rate-limited",
		brand.SourceLogo:      "unreachable",
	}
	for _, s := range res.Summary.Sources {
		if s.Kind == brand.SourceCompetitor {
			assert.Equal(t, "parse-error", s.Status)
			continue
		}
		assert.Equal(t, want[s.Kind], s.Status, "source %s", s.Kind)
	}
	assert.False(t, p.RawData.Website.OK)
	assert.Equal(t, "unreachable", p.RawData.Website.Failure)
	assert.Len(t, p.RawData.Competitors, 2)
	assert.False(t, p.RawData.Competitor.OK)
}

func TestExtract_NoDeclaredSources(t *testing.T) {
	defer goleak.VerifyNone(t)

	res, err := New(Fetchers{}, Options{}).Extract(context.Background(), input(), time.Second)
	require.NoError(t, err)
	assert.Empty(t, res.Summary.Sources)
	assert.NotEmpty(t, res.Profile.Colors.Primary)
}

func TestExtract_HangingCompetitorsReturnWithinDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	o := New(Fetchers{Competitor: hanging()}, Options{SourceTimeoutFraction: 1})
	in := input()
	in.CompetitorURLs = []string{"https://1.example", "https://2.example", "https://3.example", "https://4.example", "https://5.example"}

	const deadline = 200 * time.Millisecond
	start := time.Now()
	res, err := o.Extract(context.Background(), in, deadline)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, deadline+time.Second, "extraction must respect its deadline")
	require.Len(t, res.Summary.Sources, 5)
	for _, s := range res.Summary.Sources {
		assert.Equal(t, "timeout", s.Status)
	}
	assert.NotEmpty(t, res.Profile.Colors.Primary)
}

func TestExtract_FetcherIgnoringContextIsAbandonedAtDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)
	release := make(chan struct{})
	defer close(release)

	stuck := fetch.FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		<-release
		return brand.SourceAnalysis{}, nil
	})
	ok := fetch.FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		return brand.SourceAnalysis{Colors: []string{"#2563eb"}}, nil
	})
	o := New(Fetchers{Website: ok, Competitor: stuck}, Options{})
	in := input()
	in.WebsiteURL = "https://bellavista.example"
	in.CompetitorURLs = []string{"https://stuck.example"}

	const deadline = 150 * time.Millisecond
	start := time.Now()
	res, err := o.Extract(context.Background(), in, deadline)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), deadline+drainGrace+time.Second)

	assert.True(t, res.Summary.TimedOut)
	assert.Equal(t, 1, res.Summary.Succeeded)
	assert.Equal(t, "ok", res.Summary.Sources[0].Status)
	assert.Equal(t, "timeout", res.Summary.Sources[1].Status)
	assert.Equal(t, "#2563eb", res.Profile.Colors.Primary)
}

func TestExtract_PerSourceTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	o := New(Fetchers{Website: hanging()}, Options{SourceTimeoutFraction: 0.1})
	in := input()
	in.WebsiteURL = "https://slow.example"

	start := time.Now()
	res, err := o.Extract(context.Background(), in, 2*time.Second)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "source should be cut at its own timeout")
	assert.False(t, res.Summary.TimedOut)
	assert.Equal(t, "timeout", res.Summary.Sources[0].Status)
}

func TestExtract_PanicBecomesParseError(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := fetch.FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		panic("nil map")
	})
	o := New(Fetchers{Instagram: boom}, Options{})
	in := input()
	in.InstagramHandle = "bellavista"

	res, err := o.Extract(context.Background(), in, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "parse-error", res.Summary.Sources[0].Status)
	assert.Equal(t, "parse-error", res.Profile.RawData.Instagram.Failure)
}

func TestExtract_UserColorBeatsWebsite(t *testing.T) {
	defer goleak.VerifyNone(t)

	site := fetch.FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		return brand.SourceAnalysis{Colors: []string{"#9b2c2c", "#d69e2e"}, Fonts: []string{"Lora", "Inter"}}, nil
	})
	o := New(Fetchers{Website: site}, Options{})
	in := input()
	in.WebsiteURL = "https://bellavista.example"
	in.PreferredColors.Primary = "#111111"

	res, err := o.Extract(context.Background(), in, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "#111111", res.Profile.Colors.Primary)
	assert.Equal(t, brand.SourceUser, res.Profile.Provenance["colors.primary"])
	assert.Equal(t, "Lora", res.Profile.Fonts.Heading)
	assert.Equal(t, brand.SourceWebsite, res.Profile.Provenance["fonts.heading"])
}

func TestExtract_ValidationErrorSkipsFetching(t *testing.T) {
	var calls atomic.Int32
	site := fetch.FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		calls.Add(1)
		return brand.SourceAnalysis{}, nil
	})
	o := New(Fetchers{Website: site}, Options{})
	in := input()
	in.Location = ""
	in.WebsiteURL = "https://bellavista.example"

	_, err := o.Extract(context.Background(), in, time.Second)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Zero(t, calls.Load())

	// Generation tolerates a missing location.
	res, err := o.ExtractForGeneration(context.Background(), in, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Succeeded)
}

func TestExtract_CompetitorCap(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	comp := fetch.FetcherFunc(func(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
		calls.Add(1)
		return brand.SourceAnalysis{Colors: []string{"#334455"}}, nil
	})
	o := New(Fetchers{Competitor: comp}, Options{MaxCompetitors: 2})
	in := input()
	in.CompetitorURLs = []string{"https://a.example", " ", "https://b.example", "https://c.example"}

	res, err := o.Extract(context.Background(), in, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, res.Summary.Succeeded)
}

func TestMergeCompetitors(t *testing.T) {
	merged := MergeCompetitors([]brand.SourceAnalysis{
		{Kind: brand.SourceCompetitor, Ref: "a", OK: true, Colors: []string{"#111827", "#e11d48"}, Images: []string{"https://a/1.jpg"}, Layout: []brand.LayoutHint{brand.HintMenu}},
		brand.Empty(brand.SourceCompetitor, "b", "timeout"),
		{Kind: brand.SourceCompetitor, Ref: "c", OK: true, Colors: []string{"#e11d48", "#0d9488"}, Fonts: []string{"Oswald"}, Background: "#fafafa", Layout: []brand.LayoutHint{brand.HintMenu, brand.HintMap}},
	})

	assert.True(t, merged.OK)
	assert.Equal(t, brand.SourceCompetitor, merged.Kind)
	assert.Equal(t, "a,b,c", merged.Ref)
	assert.Equal(t, []string{"#111827", "#e11d48", "#0d9488"}, merged.Colors)
	assert.Equal(t, []string{"Oswald"}, merged.Fonts)
	assert.Equal(t, []brand.LayoutHint{brand.HintMenu, brand.HintMap}, merged.Layout)
	assert.Equal(t, "#fafafa", merged.Background)

	none := MergeCompetitors([]brand.SourceAnalysis{brand.Empty(brand.SourceCompetitor, "x", "unreachable")})
	assert.False(t, none.OK)
	assert.NotEmpty(t, none.Failure)
}
