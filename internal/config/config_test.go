// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so defaults apply.
// envOrDefault treats an empty value the same as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_HOST", "APP_PORT", "APP_ENV",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"VALKEY_HOST", "VALKEY_PORT", "VALKEY_PASSWORD",
		"AI_PROVIDER", "OPENAI_API_KEY", "CLAUDE_API_KEY", "GEMINI_API_KEY", "MISTRAL_API_KEY",
		"EXTRACT_DEADLINE", "GENERATE_DEADLINE", "GENERATE_EXTRACT_DEADLINE",
		"RESEARCH_TIMEOUT", "BRIEF_TIMEOUT", "GENERATE_TIMEOUT", "EDIT_TIMEOUT",
		"ANALYSIS_CACHE_TTL", "WORKER_INTERVAL", "WORKER_ENABLED",
		"SOURCE_TIMEOUT_FRACTION", "COMPETITOR_MAX", "GALLERY_MAX", "API_KEYS", "CHROME_URL",
		"FETCH_ALLOW_PRIVATE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	check := func(field, got, want string) {
		t.Helper()
		if got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}
	check("Host", cfg.Host, "0.0.0.0")
	check("Port", cfg.Port, "8080")
	check("Env", cfg.Env, "development")
	check("DBUser", cfg.DBUser, "sitesmith")
	check("DBName", cfg.DBName, "sitesmith")
	check("AIProvider", cfg.AIProvider, "claude")
	check("ClaudeBaseURL", cfg.ClaudeBaseURL, "https://api.anthropic.com")

	if cfg.ExtractDeadline != 120*time.Second {
		t.Errorf("ExtractDeadline = %v, want 120s", cfg.ExtractDeadline)
	}
	if cfg.GenerateDeadline != 180*time.Second {
		t.Errorf("GenerateDeadline = %v, want 180s", cfg.GenerateDeadline)
	}
	if cfg.SourceTimeoutFraction != 0.75 {
		t.Errorf("SourceTimeoutFraction = %v, want 0.75", cfg.SourceTimeoutFraction)
	}
	if cfg.CompetitorMax != 5 {
		t.Errorf("CompetitorMax = %d, want 5", cfg.CompetitorMax)
	}
	if cfg.GalleryMax != 12 {
		t.Errorf("GalleryMax = %d, want 12", cfg.GalleryMax)
	}
	if cfg.WorkerEnabled {
		t.Error("WorkerEnabled should default to false")
	}
	if cfg.FetchAllowPrivate {
		t.Error("FetchAllowPrivate should default to false")
	}
	if len(cfg.APIKeys) != 0 {
		t.Errorf("APIKeys = %v, want empty", cfg.APIKeys)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("EXTRACT_DEADLINE", "30s")
	t.Setenv("SOURCE_TIMEOUT_FRACTION", "0.5")
	t.Setenv("GALLERY_MAX", "4")
	t.Setenv("WORKER_ENABLED", "true")
	t.Setenv("FETCH_ALLOW_PRIVATE", "1")
	t.Setenv("API_KEYS", "alpha=extract|generate, beta")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.ExtractDeadline != 30*time.Second {
		t.Errorf("ExtractDeadline = %v, want 30s", cfg.ExtractDeadline)
	}
	if cfg.SourceTimeoutFraction != 0.5 {
		t.Errorf("SourceTimeoutFraction = %v, want 0.5", cfg.SourceTimeoutFraction)
	}
	if cfg.GalleryMax != 4 {
		t.Errorf("GalleryMax = %d, want 4", cfg.GalleryMax)
	}
	if !cfg.WorkerEnabled {
		t.Error("WorkerEnabled should be true")
	}
	if !cfg.FetchAllowPrivate {
		t.Error("FetchAllowPrivate should be true")
	}
	if got := strings.Join(cfg.APIKeys["alpha"], ","); got != "extract,generate" {
		t.Errorf("APIKeys[alpha] = %q, want extract,generate", got)
	}
	if ops, ok := cfg.APIKeys["beta"]; !ok || len(ops) != 0 {
		t.Errorf("APIKeys[beta] = %v (present=%v), want empty grant-all entry", ops, ok)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"EXTRACT_DEADLINE", "soon"},
		{"GENERATE_TIMEOUT", "-5s"},
		{"SOURCE_TIMEOUT_FRACTION", "1.5"},
		{"COMPETITOR_MAX", "many"},
		{"WORKER_ENABLED", "perhaps"},
		{"FETCH_ALLOW_PRIVATE", "sometimes"},
		{"API_KEYS", "=extract"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_ProductionRequirements(t *testing.T) {
	t.Run("rejects default password", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("API_KEYS", "k")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "POSTGRES_PASSWORD") {
			t.Fatalf("expected POSTGRES_PASSWORD error, got %v", err)
		}
	})

	t.Run("rejects missing api keys", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("POSTGRES_PASSWORD", "s3cur3")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "API_KEYS") {
			t.Fatalf("expected API_KEYS error, got %v", err)
		}
	})

	t.Run("rejects private fetching", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("POSTGRES_PASSWORD", "s3cur3")
		t.Setenv("API_KEYS", "k")
		t.Setenv("FETCH_ALLOW_PRIVATE", "true")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "FETCH_ALLOW_PRIVATE") {
			t.Fatalf("expected FETCH_ALLOW_PRIVATE error, got %v", err)
		}
	})

	t.Run("accepts complete config", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("POSTGRES_PASSWORD", "s3cur3")
		t.Setenv("API_KEYS", "k=extract")

		if _, err := Load(); err != nil {
			t.Fatalf("Load() returned unexpected error: %v", err)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("GALLERY_MAX")

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("GALLERY_MAX=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("GALLERY_MAX") })

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GalleryMax != 7 {
		t.Errorf("GalleryMax = %d, want 7", cfg.GalleryMax)
	}
}

func TestLoadEnvFile_MissingIsIgnored(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "d"}
	want := "postgres://u:p@h:5432/d?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestAddr(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: "3000"}
	if got := cfg.Addr(); got != "127.0.0.1:3000" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:3000")
	}
}

func TestIsDev(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"production", false},
		{"Development", false},
		{"", false},
	}
	for _, tt := range tests {
		cfg := Config{Env: tt.env}
		if got := cfg.IsDev(); got != tt.want {
			t.Errorf("IsDev() = %v, want %v (env=%q)", got, tt.want, tt.env)
		}
	}
}
