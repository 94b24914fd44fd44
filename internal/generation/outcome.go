package generation

import (
	"context"
	"errors"
)

// FallbackReason names why a deterministic fallback replaced a generated
// result.
type FallbackReason string

// Fallback reasons.
const (
	ReasonNone             FallbackReason = ""
	ReasonNotConfigured    FallbackReason = "not_configured"
	ReasonCallFailed       FallbackReason = "call_failed"
	ReasonTimeout          FallbackReason = "timeout"
	ReasonInvalidReply     FallbackReason = "invalid_reply"
	ReasonValidationFailed FallbackReason = "validation_failed"
)

// Outcome is either a generated value or a fallback value with a reason.
type Outcome[T any] struct {
	Value  T
	Reason FallbackReason
	Err    error
}

// Generated wraps a successfully generated value.
func Generated[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Fallback wraps a fallback value. The reason is derived from err when
// reason is empty.
func Fallback[T any](v T, reason FallbackReason, err error) Outcome[T] {
	if reason == ReasonNone {
		reason = ReasonFor(err)
	}
	return Outcome[T]{Value: v, Reason: reason, Err: err}
}

// IsFallback reports whether the value is a fallback.
func (o Outcome[T]) IsFallback() bool {
	return o.Reason != ReasonNone
}

// ReasonFor classifies a generation error.
func ReasonFor(err error) FallbackReason {
	switch {
	case err == nil:
		return ReasonCallFailed
	case errors.Is(err, ErrNotConfigured):
		return ReasonNotConfigured
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrInvalidReply):
		return ReasonInvalidReply
	default:
		return ReasonCallFailed
	}
}
