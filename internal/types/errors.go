package types

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy of error categories the core surfaces to
// callers. New kinds are added here, never inferred from message text.
type Kind string

const (
	KindSessionNotFound          Kind = "session_not_found"
	KindNoPausedThreads          Kind = "no_paused_threads"
	KindInvalidAction            Kind = "invalid_action"
	KindAdapterConfigurationError Kind = "adapter_configuration_error"
	KindNoFrameworkDetected      Kind = "no_framework_detected"
	KindValidationError          Kind = "validation_error"
	KindTracerError              Kind = "tracer_error"
	KindTimeout                  Kind = "timeout"
	KindIoError                  Kind = "io_error"
	KindParseError                Kind = "parse_error"
)

// Error is the wrapper type carrying a closed Kind plus the operation
// that produced it. It wraps an underlying cause when one exists so
// errors.Is/errors.As chains still reach the root cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error for op/kind, optionally wrapping cause.
func NewError(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
