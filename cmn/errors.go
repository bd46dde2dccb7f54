/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies an error into the §7 taxonomy so HTTP handlers and
// long-lived behaviour tasks can react uniformly without inspecting
// error strings.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindTransient
	// KindInternal is an unexpected per-request failure (e.g. an
	// embedder callback like AutoResolver returning an error): the
	// request fails 500, but the task that hit it keeps running.
	KindInternal
	// KindFatal is unrecoverable state in a long-lived task: core.Server
	// treats any task returning a KindFatal error as cause for a
	// controlled shutdown of every other supervised task too (§7).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindTransient:
		return "transient"
	case KindInternal:
		return "internal"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a Kind onto the status code the Query/Registration/
// Connection APIs respond with (§7).
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindInternal:
		return http.StatusInternalServerError
	case KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a kind-tagged, wrapped error. Debug carries extra context
// that mirrors the `{code, error, debug}` wire envelope from §6.2.
type Error struct {
	kind  Kind
	cause error
	Debug string
}

func (e *Error) Error() string {
	if e.Debug != "" {
		return e.cause.Error() + ": " + e.Debug
	}
	return e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }
func (e *Error) Kind() Kind    { return e.kind }

// New wraps msg as a Kind-tagged error with stack context.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, cause: errors.New(msg)}
}

// Newf wraps a formatted message as a Kind-tagged error.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap attaches a Kind and stack context to an existing error.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, cause: errors.Wrap(err, msg)}
}

// KindOf extracts the Kind of err, defaulting to KindFatal for errors
// that were never classified (an unclassified error escaping a
// long-lived task is itself a bug worth surfacing loudly).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindFatal
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsTransient(err error) bool    { return KindOf(err) == KindTransient }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

var (
	ErrAlreadyExists    = New(KindConflict, "resource already exists with different content")
	ErrReferentialError = New(KindConflict, "parent resource does not exist")
	ErrVersionRegressed = New(KindConflict, "version predates the stored version")
)
