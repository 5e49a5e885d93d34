// Package errs classifies every failure the pipeline can surface so the
// HTTP layer can map it to caller-facing behavior without inspecting the
// underlying provider or store error formats.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the failure class surfaced to callers.
type Kind int

const (
	// KindValidation is malformed or empty caller input. Never retried.
	KindValidation Kind = iota + 1
	// KindRateLimit is provider throttling that persisted through the
	// permitted retry.
	KindRateLimit
	// KindExtraction means document text extraction produced nothing
	// usable. A content problem, not a system problem.
	KindExtraction
	// KindConfig is missing or invalid required configuration.
	KindConfig
	// KindStorage is any other vector-store failure.
	KindStorage
	// KindProvider is any other embedding/generation provider failure.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	case KindExtraction:
		return "extraction"
	case KindConfig:
		return "config"
	case KindStorage:
		return "storage"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// Error carries a failure class alongside the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error. The cause stays reachable through
// errors.Is/errors.As.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the classification of err, or 0 if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRateLimit reports whether err is classified as provider throttling.
// The retry wrapper keys its single permitted retry off this.
func IsRateLimit(err error) bool {
	return KindOf(err) == KindRateLimit
}

// HTTPStatus maps a classified error to the status class callers expect:
// client errors for bad input, 429 for throttling, 422 for unreadable
// documents, server errors for everything else.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindExtraction:
		return http.StatusUnprocessableEntity
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the classified message of err, or its plain Error()
// text when unclassified.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
