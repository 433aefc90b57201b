// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"sitesmith/internal/apperr"
	"sitesmith/internal/slug"
)

// Request limits.
const (
	maxBodyBytes = 1 << 20
	defaultLimit = 50
	maxLimit     = 200
)

// errBadRequest marks bodies that are not readable JSON at all.
type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

// errTooLarge marks bodies over maxBodyBytes.
var errTooLarge = errors.New("request body too large")

// readBody reads at most maxBodyBytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errTooLarge
		}
		return nil, errBadRequest{msg: "cannot read request body"}
	}
	return data, nil
}

// decodeJSON reads the body into dst. Unknown fields are rejected so
// typos in optional fields do not pass silently.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errBadRequest{msg: "request body is required"}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadRequest{msg: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if dec.More() {
		return errBadRequest{msg: "invalid JSON: trailing data"}
	}
	return nil
}

// validateSlugParam checks a slug taken from the URL path.
func validateSlugParam(s string) error {
	if !slug.Valid(s) {
		return apperr.Validation("invalid slug %q", s)
	}
	return nil
}

// parseLimit reads the optional ?limit= query parameter.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return 0, apperr.Validation("limit must be between 1 and %d", maxLimit)
	}
	return n, nil
}
