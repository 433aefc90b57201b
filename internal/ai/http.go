// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// Page generation can take minutes; callers bound each call with ctx.
	generationClientTimeout = 5 * time.Minute
	maxResponseBytes        = 4 << 20
	maxErrorSnippet         = 512
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// postJSON sends body as JSON to url and decodes a 200 response into out.
// Every failure is returned as an *Error for provider.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	fail := func(kind ErrorKind, status int, err error) error {
		return &Error{Kind: kind, Provider: provider, Status: status, Err: err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fail(KindBadResponse, 0, fmt.Errorf("marshal: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fail(KindUnavailable, 0, fmt.Errorf("request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fail(kindForTransport(ctx, err), 0, fmt.Errorf("http: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(kindForTransport(ctx, err), resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(respBody)
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return fail(kindForStatus(resp.StatusCode), resp.StatusCode, fmt.Errorf("API error: %s", snippet))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fail(KindBadResponse, resp.StatusCode, fmt.Errorf("unmarshal: %w", err))
	}
	return nil
}

// errEmpty is wrapped when a provider answers 200 without usable text.
var errEmpty = errors.New("no text in response")

func emptyResponse(provider string) error {
	return &Error{Kind: KindBadResponse, Provider: provider, Status: http.StatusOK, Err: errEmpty}
}
