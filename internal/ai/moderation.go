// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

const moderationTimeout = 15 * time.Second

// ModerationResult is the outcome of a safety check.
type ModerationResult struct {
	Safe       bool
	Categories []string // flagged categories, sorted; empty when safe
}

// Moderator checks free text before it reaches a generation prompt.
type Moderator interface {
	CheckSafety(ctx context.Context, text string) (*ModerationResult, error)
}

// openAIModerator uses POST /moderations, which is free for OpenAI keys.
type openAIModerator struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newOpenAIModerator(apiKey, baseURL string) *openAIModerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &openAIModerator{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient(moderationTimeout)}
}

func (m *openAIModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	var result moderationResponse
	err := postJSON(ctx, m.client, "openai-moderation", m.baseURL+"/moderations",
		map[string]string{"Authorization": "Bearer " + m.apiKey},
		moderationRequest{Model: "omni-moderation-latest", Input: text}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 || !result.Results[0].Flagged {
		return &ModerationResult{Safe: true}, nil
	}
	return &ModerationResult{Safe: false, Categories: flaggedCategories(result.Results[0].Categories)}, nil
}

// mistralModerator uses Mistral's POST /v1/moderations. Its results carry
// no top-level flag, so any flagged category marks the text unsafe.
type mistralModerator struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newMistralModerator(apiKey, baseURL string) *mistralModerator {
	if baseURL == "" {
		baseURL = "https://api.mistral.ai"
	}
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	return &mistralModerator{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient(moderationTimeout)}
}

func (m *mistralModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	var result moderationResponse
	err := postJSON(ctx, m.client, "mistral-moderation", m.baseURL+"/v1/moderations",
		map[string]string{"Authorization": "Bearer " + m.apiKey},
		moderationRequest{Model: "mistral-moderation-latest", Input: text}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return &ModerationResult{Safe: true}, nil
	}
	cats := flaggedCategories(result.Results[0].Categories)
	return &ModerationResult{Safe: len(cats) == 0, Categories: cats}, nil
}

// fallbackModerator asks primary first and secondary when primary errors,
// e.g. on project-scoped OpenAI keys that cannot call moderations.
type fallbackModerator struct {
	primary, secondary Moderator
}

func newFallbackModerator(primary, secondary Moderator) *fallbackModerator {
	return &fallbackModerator{primary: primary, secondary: secondary}
}

func (m *fallbackModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	res, err := m.primary.CheckSafety(ctx, text)
	if err == nil {
		return res, nil
	}
	slog.Warn("primary moderator failed, using fallback", "error", err)
	return m.secondary.CheckSafety(ctx, text)
}

// flaggedCategories renders "hate/threatening" as "hate (threatening)"
// and "self_harm" as "self harm".
func flaggedCategories(cats map[string]bool) []string {
	var out []string
	for cat, flagged := range cats {
		if !flagged {
			continue
		}
		display := cat
		if head, tail, ok := strings.Cut(cat, "/"); ok {
			display = head + " (" + tail + ")"
		}
		out = append(out, strings.ReplaceAll(display, "_", " "))
	}
	slices.Sort(out)
	return out
}

// --- Moderation request/response types (shared by both vendors) ---

type moderationRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []moderationResult `json:"results"`
}

type moderationResult struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
}
