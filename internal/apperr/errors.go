// Package apperr declares the error kinds shared by the coding engine and its adapters.
package apperr

import "errors"

var (
	// ErrValidation reports malformed input: bad offsets, self-merge, cycles,
	// identical or uncoded codes in reliability analysis.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports an unknown id reference.
	ErrNotFound = errors.New("not found")
	// ErrPattern reports an auto-coding pattern that does not compile.
	ErrPattern = errors.New("invalid pattern")
	// ErrAlreadyExists reports a duplicate id or span.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict reports a change that would invalidate existing codings,
	// such as editing the content of a coded transcript.
	ErrConflict = errors.New("conflict")
)

// Kind names used by adapters that surface errors to clients.
const (
	KindValidation    = "validation"
	KindNotFound      = "not_found"
	KindPattern       = "pattern"
	KindAlreadyExists = "already_exists"
	KindConflict      = "conflict"
	KindInternal      = "internal"
)

// KindOf returns the stable kind string for err.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPattern):
		return KindPattern
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}
