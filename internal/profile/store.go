package profile

import (
	"context"
	"sync"
)

// Store reads and writes whole profiles keyed by normalized user ID.
//
// Put writes p only if the stored version equals expected; expected 0
// means the row must not exist yet. A stale expectation returns
// ErrVersionConflict.
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Put(ctx context.Context, p *Profile, expected int64) error
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Profile)}
}

// Get returns a copy of the stored profile or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, userID string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// Put stores a copy of p.
func (s *MemoryStore) Put(ctx context.Context, p *Profile, expected int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if old, ok := s.rows[p.UserID]; ok {
		current = old.ProfileVersion
	}
	if current != expected {
		return ErrVersionConflict
	}
	s.rows[p.UserID] = p.Clone()
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
