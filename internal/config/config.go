// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// AI provider settings
	AIProvider     string // "openai", "gemini", "claude", "mistral"
	OpenAIKey      string
	OpenAIModel    string
	OpenAIBaseURL  string
	GeminiKey      string
	GeminiModel    string
	GeminiBaseURL  string
	ClaudeKey      string
	ClaudeModel    string
	ClaudeBaseURL  string
	MistralKey     string
	MistralModel   string
	MistralBaseURL string

	// S3-compatible object storage (optional, used for logo re-hosting)
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BucketPublic string
	S3PublicURL    string

	// Extraction
	ExtractDeadline       time.Duration
	SourceTimeoutFraction float64
	CompetitorMax         int
	GalleryMax            int
	AnalysisCacheTTL      time.Duration
	ChromeURL             string // remote Chrome DevTools endpoint; empty disables rendering
	FetchAllowPrivate     bool   // lets fetchers reach loopback and private networks

	// Generation
	GenerateDeadline        time.Duration
	GenerateExtractDeadline time.Duration
	ResearchTimeout         time.Duration
	BriefTimeout            time.Duration
	GenerateTimeout         time.Duration
	EditTimeout             time.Duration

	// Lead worker
	WorkerEnabled  bool
	WorkerInterval time.Duration

	// Access: API key -> allowed operations
	APIKeys map[string][]string
}

// LoadEnvFile populates the process environment from the given dotenv
// files. Missing files are ignored; variables already set are kept.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode or a value cannot be parsed.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "sitesmith"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "sitesmith"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		AIProvider:     envOrDefault("AI_PROVIDER", "claude"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    envOrDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:  envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    envOrDefault("GEMINI_MODEL", "gemini-2.5-pro"),
		GeminiBaseURL:  envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		ClaudeKey:      os.Getenv("CLAUDE_API_KEY"),
		ClaudeModel:    envOrDefault("CLAUDE_MODEL", "claude-sonnet-4-6"),
		ClaudeBaseURL:  envOrDefault("CLAUDE_BASE_URL", "https://api.anthropic.com"),
		MistralKey:     os.Getenv("MISTRAL_API_KEY"),
		MistralModel:   envOrDefault("MISTRAL_MODEL", "mistral-large-latest"),
		MistralBaseURL: envOrDefault("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),

		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       envOrDefault("S3_REGION", "fsn1"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3BucketPublic: envOrDefault("S3_BUCKET_PUBLIC", "sitesmith-public"),
		S3PublicURL:    os.Getenv("S3_PUBLIC_URL"),

		ChromeURL: os.Getenv("CHROME_URL"),
	}

	var err error
	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"EXTRACT_DEADLINE", 120 * time.Second, &cfg.ExtractDeadline},
		{"GENERATE_DEADLINE", 180 * time.Second, &cfg.GenerateDeadline},
		{"GENERATE_EXTRACT_DEADLINE", 45 * time.Second, &cfg.GenerateExtractDeadline},
		{"RESEARCH_TIMEOUT", 30 * time.Second, &cfg.ResearchTimeout},
		{"BRIEF_TIMEOUT", 30 * time.Second, &cfg.BriefTimeout},
		{"GENERATE_TIMEOUT", 50 * time.Second, &cfg.GenerateTimeout},
		{"EDIT_TIMEOUT", 60 * time.Second, &cfg.EditTimeout},
		{"ANALYSIS_CACHE_TTL", 6 * time.Hour, &cfg.AnalysisCacheTTL},
		{"WORKER_INTERVAL", 30 * time.Second, &cfg.WorkerInterval},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	if cfg.SourceTimeoutFraction, err = envFloat("SOURCE_TIMEOUT_FRACTION", 0.75); err != nil {
		return nil, err
	}
	if cfg.SourceTimeoutFraction <= 0 || cfg.SourceTimeoutFraction > 1 {
		return nil, fmt.Errorf("SOURCE_TIMEOUT_FRACTION must be in (0, 1], got %v", cfg.SourceTimeoutFraction)
	}
	if cfg.CompetitorMax, err = envInt("COMPETITOR_MAX", 5); err != nil {
		return nil, err
	}
	if cfg.GalleryMax, err = envInt("GALLERY_MAX", 12); err != nil {
		return nil, err
	}
	if cfg.WorkerEnabled, err = envBool("WORKER_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.FetchAllowPrivate, err = envBool("FETCH_ALLOW_PRIVATE", false); err != nil {
		return nil, err
	}
	if cfg.APIKeys, err = parseAPIKeys(os.Getenv("API_KEYS")); err != nil {
		return nil, err
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if len(cfg.APIKeys) == 0 {
			return nil, fmt.Errorf("API_KEYS must be set in production")
		}
		if cfg.FetchAllowPrivate {
			return nil, fmt.Errorf("FETCH_ALLOW_PRIVATE must not be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

// parseAPIKeys reads "key1=extract|generate,key2=edit". An entry without
// operations grants every operation.
func parseAPIKeys(raw string) (map[string][]string, error) {
	keys := make(map[string][]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, ops, _ := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("API_KEYS: empty key in %q", entry)
		}
		var list []string
		for _, op := range strings.Split(ops, "|") {
			if op = strings.TrimSpace(op); op != "" {
				list = append(list, op)
			}
		}
		keys[key] = list
	}
	return keys, nil
}
