// Package statestore provides keyed read-modify-write storage for per-room
// mediation state.
//
// Services receive a Store as a dependency instead of owning package-level
// maps. Memory is the single-process implementation; a shared backend can
// satisfy the same interface when state must survive across instances.
package statestore

import (
	"context"
	"errors"
	"sync"
)

// ErrEmptyKey is returned for operations on an empty key.
var ErrEmptyKey = errors.New("state key cannot be empty")

// Store is a keyed repository of T values.
type Store[T any] interface {
	// Get returns a copy of the value for key and whether it exists.
	Get(ctx context.Context, key string) (T, bool, error)

	// Update loads the value for key, creating it when absent, applies fn and
	// stores the result atomically. If fn returns an error nothing is stored.
	Update(ctx context.Context, key string, fn func(*T) error) (T, error)
}

// Memory is an in-process Store guarded by a RWMutex.
type Memory[T any] struct {
	mu      sync.RWMutex
	items   map[string]T
	newFunc func(key string) T
	clone   func(T) T
}

// NewMemory creates a Memory store. newFunc builds the initial value for a
// key on first use; clone deep-copies values crossing the store boundary and
// may be nil for values without reference fields.
func NewMemory[T any](newFunc func(key string) T, clone func(T) T) *Memory[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Memory[T]{
		items:   make(map[string]T),
		newFunc: newFunc,
		clone:   clone,
	}
}

// Get implements Store.
func (m *Memory[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if key == "" {
		return zero, false, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return zero, false, nil
	}
	return m.clone(v), true, nil
}

// Update implements Store.
func (m *Memory[T]) Update(ctx context.Context, key string, fn func(*T) error) (T, error) {
	var zero T
	if key == "" {
		return zero, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if ok {
		v = m.clone(v)
	} else {
		v = m.newFunc(key)
	}
	if err := fn(&v); err != nil {
		return zero, err
	}
	m.items[key] = v
	return m.clone(v), nil
}

// Len returns the number of stored keys.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
