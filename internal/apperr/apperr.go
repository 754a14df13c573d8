// Package apperr classifies failures so the command boundary can decide what a user sees.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how they are surfaced.
type Kind int

const (
	// Internal is any failure that does not fit another kind.
	Internal Kind = iota
	// Validation covers bad input: malformed source, insufficient funds, cooldowns.
	Validation
	// Authorization means the actor lacks the privilege for the operation.
	Authorization
	// ExternalService covers timeouts and failures of AI, extraction, conversion and platform calls.
	ExternalService
	// ResourceCleanup covers temp files or records that could not be removed. Logged only.
	ResourceCleanup
	// StateCorruption means persisted state could not be decoded.
	StateCorruption
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case ExternalService:
		return "external_service"
	case ResourceCleanup:
		return "resource_cleanup"
	case StateCorruption:
		return "state_corruption"
	default:
		return "internal"
	}
}

// Error carries a kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with kind and op. A nil err yields a kind-only error described by op.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// New is shorthand for E with a message.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// KindOf returns the outermost classified kind in the chain, or Internal.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserVisible reports whether the error text may be shown to the requester as-is.
func UserVisible(err error) bool {
	switch KindOf(err) {
	case Validation, Authorization:
		return true
	default:
		return false
	}
}
