// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package brand

import "testing"

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#FFF", "#ffffff"},
		{"#1a2B3c", "#1a2b3c"},
		{"#11223344", "#112233"},
		{"rgb(255, 0, 10)", "#ff000a"},
		{"rgba(0,0,0,0.5)", "#000000"},
		{"rgb(300, 0, 0)", ""},
		{"Navy", "#000080"},
		{"var(--x)", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeColor(tt.in); got != tt.want {
			t.Errorf("NormalizeColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsNeutral(t *testing.T) {
	for _, c := range []string{"#ffffff", "#000000", "#777777", "#f5f5f4"} {
		if !IsNeutral(c) {
			t.Errorf("IsNeutral(%q) = false, want true", c)
		}
	}
	for _, c := range []string{"#c0392b", "#2563eb", "#9b2c2c"} {
		if IsNeutral(c) {
			t.Errorf("IsNeutral(%q) = true, want false", c)
		}
	}
}

func TestReadableText(t *testing.T) {
	if got := ReadableText("#ffffff"); got != "#1f2937" {
		t.Errorf("light background: got %q", got)
	}
	if got := ReadableText("#101010"); got != "#f9fafb" {
		t.Errorf("dark background: got %q", got)
	}
}

func TestIndustriesTableIsValid(t *testing.T) {
	list, err := parseIndustries(industriesYAML)
	if err != nil {
		t.Fatalf("parseIndustries: %v", err)
	}
	if len(list) < 2 {
		t.Fatalf("expected several industries, got %d", len(list))
	}
}

func TestParseIndustries_RejectsMissingDefault(t *testing.T) {
	data := []byte(`- key: cafe
  colors: {primary: "#111111", accent: "#222222", background: "#ffffff", text: "#000000"}
  fonts: {heading: A, body: B}
  tone: {voice: calm}
  layout: {sections: [hero]}
`)
	if _, err := parseIndustries(data); err == nil {
		t.Error("expected error for table without default row")
	}
}

func TestIndustryFor(t *testing.T) {
	tests := map[string]string{
		"Coffee shop":          "cafe",
		"family dentist":       "health",
		"Lawn care":            "trades",
		"Boutique":             "retail",
		"wedding photographer": "creative",
		"Plumbing & heating":   "trades",
		"hairdresser":          "salon",
		"day spa":              "salon",
		"coworking space":      "default",
		"party planner":        "default",
		"chair rental":         "default",
		"Tea room":             "cafe",
		"estate agents":        "realestate",
		"":                     "default",
	}
	for in, want := range tests {
		if got := IndustryFor(in).Key; got != want {
			t.Errorf("IndustryFor(%q) = %q, want %q", in, got, want)
		}
	}
}
