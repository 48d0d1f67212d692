// Package errs defines the error taxonomy shared by the generation
// pipeline and its backing services. Every expected failure carries a
// Kind so callers can branch on category without string matching.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindExtraction   Kind = "extraction_failed"
	KindSynthesis    Kind = "synthesis_failed"
	KindStore        Kind = "store_failed"
	KindPersistence  Kind = "persistence_failed"
	KindDelete       Kind = "delete_failed"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind. A nil err yields a bare kind error.
func E(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Errorf is E with fmt.Errorf formatting for the cause.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether a retry could plausibly succeed. Caller
// errors are terminal; everything else in the taxonomy is transient
// from the runner's point of view.
func Retryable(err error) bool {
	switch KindOf(err) {
	case "", KindInvalidInput:
		return false
	}
	return true
}
