// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("generate: %w", PhaseTimeout("research", errors.New("deadline")))

	if got := CodeOf(err); got != CodePhaseTimeout {
		t.Errorf("CodeOf: got %q, want %q", got, CodePhaseTimeout)
	}
	if got := PhaseOf(err); got != "research" {
		t.Errorf("PhaseOf: got %q, want %q", got, "research")
	}
}

func TestCodeOf_Unclassified(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Errorf("CodeOf: got %q, want %q", got, CodeInternal)
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Malformed("generate", "missing doctype"))

	if !errors.Is(err, &Error{Code: CodeMalformedOutput}) {
		t.Error("expected errors.Is to match by code")
	}
	if !errors.Is(err, &Error{Code: CodeMalformedOutput, Phase: "generate"}) {
		t.Error("expected errors.Is to match by code and phase")
	}
	if errors.Is(err, &Error{Code: CodeMalformedOutput, Phase: "brief"}) {
		t.Error("expected phase mismatch to fail")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("business name is required"), http.StatusUnprocessableEntity},
		{NotFound("site %q", "x"), http.StatusNotFound},
		{Conflict("busy"), http.StatusConflict},
		{PhaseTimeout("brief", nil), http.StatusGatewayTimeout},
		{Malformed("generate", "bad"), http.StatusBadGateway},
		{Persistence(errors.New("db down"), "save"), http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v): got %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if Validation("x").Retryable() {
		t.Error("validation errors must not be retryable")
	}
	if !PhaseTimeout("generate", nil).Retryable() {
		t.Error("phase timeouts should be retryable")
	}
}
