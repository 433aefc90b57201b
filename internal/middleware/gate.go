// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// Operations a key can be granted.
const (
	OpExtract  = "extract"
	OpGenerate = "generate"
	OpEdit     = "edit"
	OpLeads    = "leads"
)

// Gate decides whether a caller may run an operation.
type Gate interface {
	Allow(key, op string) bool
}

// KeyGate is a static key to operations table. A key with no listed
// operations may run all of them. An empty gate allows every request and
// is meant for development only.
type KeyGate struct {
	keys map[string][]string
}

// NewKeyGate creates a gate from the configured API keys.
func NewKeyGate(keys map[string][]string) *KeyGate {
	return &KeyGate{keys: keys}
}

// Open reports whether the gate has no keys configured.
func (g *KeyGate) Open() bool { return len(g.keys) == 0 }

// Allow reports whether key may run op.
func (g *KeyGate) Allow(key, op string) bool {
	if g.Open() {
		return true
	}
	if key == "" {
		return false
	}
	for k, ops := range g.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) != 1 {
			continue
		}
		if len(ops) == 0 {
			return true
		}
		for _, allowed := range ops {
			if allowed == op {
				return true
			}
		}
		return false
	}
	return false
}

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// OperationKey holds the operation a request was authorized for.
const OperationKey contextKey = "operation"

// OperationFromCtx returns the operation set by RequireOperation, or "".
func OperationFromCtx(ctx context.Context) string {
	op, _ := ctx.Value(OperationKey).(string)
	return op
}

// RequireOperation rejects requests whose API key is not granted op. A
// missing key answers 401, a key without the grant 403.
func RequireOperation(gate Gate, op string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apiKey(r)
			if !gate.Allow(key, op) {
				if key == "" {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required")
					return
				}
				slog.Warn("operation denied", "operation", op, "path", r.URL.Path)
				writeError(w, http.StatusForbidden, "FORBIDDEN", "key is not allowed to "+op)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), OperationKey, op)))
		})
	}
}

// apiKey reads the key from "Authorization: Bearer <key>" or X-API-Key.
func apiKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
