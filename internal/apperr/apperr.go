// Package apperr defines the error taxonomy shared by every layer of the
// retrieval core (parser, store, indexer, search engine, facade).
//
// Callers branch on kind, never on message text: use errors.Is against the
// sentinel Kind values, or errors.As to pull the *Error back out for its
// Details.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories from the error taxonomy.
type Kind string

const (
	// KindInput covers a missing required field or malformed request shape.
	KindInput Kind = "input"
	// KindNotFound covers an unknown collection, chunk id, or source file.
	KindNotFound Kind = "not_found"
	// KindParse covers bad magic, a truncated file, or a malformed chunk record.
	KindParse Kind = "parse"
	// KindDimMismatch covers a query vector length that disagrees with a
	// stored embedding length.
	KindDimMismatch Kind = "dim_mismatch"
	// KindDuplicate covers creating a collection whose name already exists.
	KindDuplicate Kind = "duplicate"
	// KindStore covers disk I/O failures and constraint violations inside a
	// transaction.
	KindStore Kind = "store"
	// KindEmbedder covers model load or inference failure.
	KindEmbedder Kind = "embedder"
)

// Error is the structured error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by Kind so errors.Is(err, apperr.New(apperr.KindNotFound, "", nil))
// and the package-level sentinels below both work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns the receiver for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons against a bare kind, e.g.
// errors.Is(err, apperr.ErrNotFound).
var (
	ErrInput       = &Error{Kind: KindInput}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrParse       = &Error{Kind: KindParse}
	ErrDimMismatch = &Error{Kind: KindDimMismatch}
	ErrDuplicate   = &Error{Kind: KindDuplicate}
	ErrStore       = &Error{Kind: KindStore}
	ErrEmbedder    = &Error{Kind: KindEmbedder}
)

// KindOf extracts the Kind from err, walking the cause chain. The zero Kind
// is returned if err does not wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
