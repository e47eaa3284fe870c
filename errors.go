package defense

import (
	"errors"
	"fmt"
)

// ErrInvalidStep is returned by a CounterStore when Increase or Decrease is
// called with a step lower than 1.
//
// It is a programming error and is never suppressed by a Condition.
var ErrInvalidStep = errors.New("defense: step must be positive")

// Kind classifies a backend failure.
type Kind string

const (
	// KindUnavailable covers connectivity problems, timeouts and closed clients.
	KindUnavailable Kind = "unavailable"
	// KindProtocol covers malformed replies and values that cannot be decoded.
	KindProtocol Kind = "protocol"
)

// Sentinel values usable with errors.Is to match a BackendError by kind.
//
// Example:
//
//	if errors.Is(err, defense.ErrBackendUnavailable) {
//	    // the store could not be reached
//	}
var (
	ErrBackendUnavailable = &BackendError{Kind: KindUnavailable}
	ErrBackendProtocol    = &BackendError{Kind: KindProtocol}
)

// BackendError is the error type CounterStore implementations use to report
// storage failures. Conditions suppress errors of this type (and only this
// type); anything else is returned to the caller.
type BackendError struct {
	// Op is the store operation that failed, e.g. "increase" or "get".
	Op string
	// Key is the counter key the operation was applied to, if any.
	Key string
	// Kind tells connectivity failures apart from decoding failures.
	Kind Kind
	// Err is the underlying cause.
	Err error
}

// NewBackendError wraps err as a BackendError of the given kind.
func NewBackendError(kind Kind, op, key string, err error) *BackendError {
	return &BackendError{Op: op, Key: key, Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	msg := fmt.Sprintf("defense: backend %s", e.Kind)
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" of key %q", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a BackendError of the same kind.
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}
	return t.Kind == "" || e.Kind == t.Kind
}

// IsBackendError reports whether err (or anything it wraps) is a BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// KindOf returns the kind of the BackendError wrapped by err, or "" when
// err is not a backend error.
func KindOf(err error) Kind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
