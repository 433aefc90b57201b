// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"testing"
)

// mockProvider records calls and returns a fixed response.
type mockProvider struct {
	name      string
	response  string
	err       error
	mu        sync.Mutex
	callCount int
	lastUser  string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastUser = userPrompt
	return m.response, m.err
}

func TestRegistryGenerate_DelegatesToActive(t *testing.T) {
	a := &mockProvider{name: "a", response: "from a"}
	b := &mockProvider{name: "b", response: "from b"}
	reg := NewRegistry("a", nil)
	reg.Register("a", a)
	reg.Register("b", b)

	got, err := reg.Generate(context.Background(), "sys", "hello")
	if err != nil || got != "from a" {
		t.Fatalf("Generate: got %q, %v", got, err)
	}
	if err := reg.SetActive("b"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	got, _ = reg.Generate(context.Background(), "sys", "hello")
	if got != "from b" || b.lastUser != "hello" {
		t.Errorf("after switch: got %q, last user %q", got, b.lastUser)
	}
}

func TestRegistryGenerate_NoProviderIsUnavailable(t *testing.T) {
	reg := NewRegistry("claude", nil)
	_, err := reg.Generate(context.Background(), "s", "u")
	wantKind(t, err, KindUnavailable)
}

func TestRegistryGenerate_PassesProviderErrors(t *testing.T) {
	reg := NewRegistry("m", nil)
	reg.Register("m", &mockProvider{name: "m", err: &Error{Kind: KindRateLimited, Provider: "m", Err: errors.New("slow down")}})
	_, err := reg.Generate(context.Background(), "s", "u")
	wantKind(t, err, KindRateLimited)
}

func TestNewRegistry_ProvidersFromKeys(t *testing.T) {
	reg := NewRegistry("gemini", map[string]ProviderConfig{
		"openai":  {APIKey: "k"},
		"gemini":  {APIKey: "k"},
		"claude":  {APIKey: ""},
		"mistral": {APIKey: "k"},
		"unknown": {APIKey: "k"},
	})

	if got, want := reg.Available(), []string{"gemini", "mistral", "openai"}; !slices.Equal(got, want) {
		t.Errorf("Available: got %v, want %v", got, want)
	}
	if reg.HasProvider("claude") {
		t.Error("claude has no key and must be skipped")
	}
	if err := reg.SetActive("claude"); err == nil {
		t.Error("SetActive(claude) should fail")
	}
	if reg.ActiveName() != "gemini" {
		t.Errorf("ActiveName: got %q", reg.ActiveName())
	}
	if _, ok := reg.moderator.(*fallbackModerator); !ok {
		t.Errorf("openai+mistral keys should yield a fallback moderator, got %T", reg.moderator)
	}
}

func TestRegistryConcurrency(t *testing.T) {
	reg := NewRegistry("p0", nil)
	for i := 0; i < 4; i++ {
		reg.Register(fmt.Sprintf("p%d", i), &mockProvider{name: fmt.Sprintf("p%d", i), response: "ok"})
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Generate(context.Background(), "s", "u")
			reg.Available()
		}()
		go func() {
			defer wg.Done()
			reg.SetActive(fmt.Sprintf("p%d", i%4))
		}()
	}
	wg.Wait()
}

// ---------- Moderation ----------

type stubModerator struct {
	res *ModerationResult
	err error
	n   int
}

func (s *stubModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	s.n++
	return s.res, s.err
}

func TestCheckPrompt_NoModeratorIsSafe(t *testing.T) {
	res, err := NewRegistry("x", nil).CheckPrompt(context.Background(), "anything")
	if err != nil || !res.Safe {
		t.Fatalf("CheckPrompt: got %+v, %v", res, err)
	}
}

func TestFallbackModerator(t *testing.T) {
	primary := &stubModerator{err: errors.New("403 project key")}
	secondary := &stubModerator{res: &ModerationResult{Safe: false, Categories: []string{"violence"}}}
	reg := NewRegistry("x", nil)
	reg.SetModerator(newFallbackModerator(primary, secondary))

	res, err := reg.CheckPrompt(context.Background(), "text")
	if err != nil {
		t.Fatalf("CheckPrompt: %v", err)
	}
	if res.Safe || primary.n != 1 || secondary.n != 1 {
		t.Errorf("got %+v, primary=%d secondary=%d", res, primary.n, secondary.n)
	}

	primary.err, primary.res = nil, &ModerationResult{Safe: true}
	res, _ = reg.CheckPrompt(context.Background(), "text")
	if !res.Safe || secondary.n != 1 {
		t.Error("a healthy primary must not consult the fallback")
	}
}

func TestOpenAIModerator_Flagged(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, []byte(`{"results":[{"flagged":true,"categories":{"hate/threatening":true,"self_harm":true,"sexual":false}}]}`))
	res, err := newOpenAIModerator("k", srv.URL).CheckSafety(context.Background(), "bad")
	if err != nil {
		t.Fatalf("CheckSafety: %v", err)
	}
	want := []string{"hate (threatening)", "self harm"}
	if res.Safe || !slices.Equal(res.Categories, want) {
		t.Errorf("got %+v, want categories %v", res, want)
	}
}

func TestMistralModerator(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, []byte(`{"results":[{"categories":{"violence_and_threats":false,"pii":false}}]}`))
	res, err := newMistralModerator("k", srv.URL).CheckSafety(context.Background(), "fine")
	if err != nil || !res.Safe {
		t.Fatalf("CheckSafety: got %+v, %v", res, err)
	}

	srv = newTestServer(t, http.StatusTooManyRequests, []byte(`{}`))
	_, err = newMistralModerator("k", srv.URL).CheckSafety(context.Background(), "x")
	wantKind(t, err, KindRateLimited)
}
