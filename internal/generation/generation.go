// Package generation wraps the structured-completion collaborator used for
// escalation augmentation, policy decisions and rewrite suggestions.
//
// Every call is single-attempt and best effort. Callers turn failures into
// an Outcome carrying their documented fallback and a FallbackReason.
package generation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no generation credential is set.
	ErrNotConfigured = errors.New("generation not configured")

	// ErrInvalidReply is returned when a reply cannot be parsed into the
	// expected shape.
	ErrInvalidReply = errors.New("invalid generation reply")
)

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...CallOption) (string, error)

	// Available returns true when the generator can make calls.
	Available() bool
}

// CallOptions tune a single call.
type CallOptions struct {
	Temperature float64
	MaxTokens   int
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) { o.Temperature = t }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) { o.MaxTokens = n }
}

// ApplyOptions resolves opts over defaults.
func ApplyOptions(defaults CallOptions, opts ...CallOption) CallOptions {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GeneratorFunc adapts a function to Generator. It is always available.
type GeneratorFunc func(ctx context.Context, prompt string, opts CallOptions) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	return f(ctx, prompt, ApplyOptions(CallOptions{}, opts...))
}

// Available implements Generator.
func (f GeneratorFunc) Available() bool { return f != nil }

// Disabled is a Generator that never makes calls.
type Disabled struct{}

// Generate always returns ErrNotConfigured.
func (Disabled) Generate(context.Context, string, ...CallOption) (string, error) {
	return "", ErrNotConfigured
}

// Available returns false.
func (Disabled) Available() bool { return false }

// IsAvailable reports whether g can be called.
func IsAvailable(g Generator) bool {
	return g != nil && g.Available()
}

// Complete runs one structured completion. The JSON schema of T is appended
// to prompt and the reply is parsed into T.
func Complete[T any](ctx context.Context, g Generator, prompt string, opts ...CallOption) (T, error) {
	var zero T
	if !IsAvailable(g) {
		return zero, ErrNotConfigured
	}

	full := prompt + "\n\nRespond ONLY with a JSON object matching this schema:\n" + SchemaFor[T]()
	reply, err := g.Generate(ctx, full, opts...)
	if err != nil {
		return zero, fmt.Errorf("generate: %w", err)
	}
	return ParseJSON[T](reply)
}
