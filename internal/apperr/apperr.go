// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apperr defines the error taxonomy shared by the extraction,
// generation and edit flows. Every error carries a Code that callers map
// to transport status and retry decisions.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodeValidation          Code = "VALIDATION_FAILED"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodePhaseTimeout        Code = "PHASE_TIMEOUT"
	CodeMalformedOutput     Code = "MALFORMED_OUTPUT"
	CodePersistence         Code = "PERSISTENCE_FAILED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeInternal            Code = "INTERNAL"
)

// Error is a classified application error. Phase is set for failures that
// happened inside a generation phase.
type Error struct {
	Code    Code   `json:"code"`
	Phase   string `json:"phase,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Phase != "" {
		msg = e.Phase + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code so errors.Is(err, &Error{Code: ...})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Phase == "" || t.Phase == e.Phase)
}

// Retryable reports whether the failure may succeed when re-run.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodePhaseTimeout, CodeMalformedOutput, CodeUpstreamUnavailable, CodePersistence:
		return true
	}
	return false
}

// Validation reports missing or malformed caller input. Never retried.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown slug or resource.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a concurrent mutation on the same resource.
func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a failed store write.
func Persistence(err error, msg string) *Error {
	return &Error{Code: CodePersistence, Message: msg, Err: err}
}

// Upstream wraps a failed call to an external dependency.
func Upstream(err error, msg string) *Error {
	return &Error{Code: CodeUpstreamUnavailable, Message: msg, Err: err}
}

// PhaseTimeout reports an AI phase that exceeded its budget.
func PhaseTimeout(phase string, err error) *Error {
	return &Error{Code: CodePhaseTimeout, Phase: phase, Message: "phase exceeded its time budget", Err: err}
}

// Malformed reports AI output that failed structural validation.
func Malformed(phase, msg string) *Error {
	return &Error{Code: CodeMalformedOutput, Phase: phase, Message: msg}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when err is not classified.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// PhaseOf returns the phase recorded on err, if any.
func PhaseOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}
	return ""
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodePhaseTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstreamUnavailable, CodeMalformedOutput:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
