// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package brand

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed industries.yaml
var industriesYAML []byte

// Industry is one row of the static per-business-type defaults table.
type Industry struct {
	Key     string   `yaml:"key"`
	Aliases []string `yaml:"aliases"`
	Colors  Palette  `yaml:"colors"`
	Fonts   Fonts    `yaml:"fonts"`
	Tone    Tone     `yaml:"tone"`
	Layout  Layout   `yaml:"layout"`
}

// industries is parsed once at package load; the table is compiled into
// the binary so a parse failure is a build defect.
var industries = mustParseIndustries(industriesYAML)

func mustParseIndustries(data []byte) []Industry {
	list, err := parseIndustries(data)
	if err != nil {
		panic(err)
	}
	return list
}

func parseIndustries(data []byte) ([]Industry, error) {
	var list []Industry
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse industries: %w", err)
	}
	var hasDefault bool
	for i, ind := range list {
		if ind.Key == "" {
			return nil, fmt.Errorf("industry %d: missing key", i)
		}
		p := ind.Colors
		for _, c := range []string{p.Primary, p.Accent, p.Background, p.Text} {
			if NormalizeColor(c) == "" {
				return nil, fmt.Errorf("industry %q: invalid color %q", ind.Key, c)
			}
		}
		if ind.Fonts.Heading == "" || ind.Fonts.Body == "" || ind.Tone.Voice == "" || len(ind.Layout.Sections) == 0 {
			return nil, fmt.Errorf("industry %q: incomplete defaults", ind.Key)
		}
		if ind.Key == "default" {
			hasDefault = true
		}
	}
	if !hasDefault {
		return nil, fmt.Errorf("industries: missing default row")
	}
	return list, nil
}

// IndustryFor returns the defaults row matching a business type.
func IndustryFor(businessType string) Industry {
	words := tokenize(businessType)
	var fallback Industry
	for _, ind := range industries {
		if ind.Key == "default" {
			fallback = ind
			continue
		}
		if len(words) == 0 {
			continue
		}
		if matchAlias(words, ind.Key) {
			return ind
		}
		for _, alias := range ind.Aliases {
			if matchAlias(words, alias) {
				return ind
			}
		}
	}
	return fallback
}

// tokenize lowercases s and splits it into runs of letters and digits.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matchAlias reports whether the words of alias appear consecutively in
// words. A trailing "*" on alias lets its last word match a prefix.
func matchAlias(words []string, alias string) bool {
	stem := strings.HasSuffix(alias, "*")
	want := tokenize(strings.TrimSuffix(alias, "*"))
	if len(want) == 0 {
		return false
	}
	for i := 0; i+len(want) <= len(words); i++ {
		if phraseAt(words[i:i+len(want)], want, stem) {
			return true
		}
	}
	return false
}

func phraseAt(got, want []string, stem bool) bool {
	for j, w := range want {
		if got[j] == w {
			continue
		}
		if stem && j == len(want)-1 && strings.HasPrefix(got[j], w) {
			continue
		}
		return false
	}
	return true
}
