package statestore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Key  string
	N    int
	Tags []string
}

func newCounterStore() *Memory[counter] {
	return NewMemory(
		func(key string) counter { return counter{Key: key} },
		func(c counter) counter {
			c.Tags = append([]string(nil), c.Tags...)
			return c
		},
	)
}

func TestMemory_UpdateCreatesLazily(t *testing.T) {
	ctx := context.Background()
	s := newCounterStore()

	_, ok, err := s.Get(ctx, "room-1")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Update(ctx, "room-1", func(c *counter) error {
		c.N++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, counter{Key: "room-1", N: 1}, got)
	assert.Equal(t, 1, s.Len())
}

func TestMemory_UpdateErrorDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	s := newCounterStore()
	_, _ = s.Update(ctx, "r", func(c *counter) error { c.N = 5; return nil })

	boom := errors.New("boom")
	_, err := s.Update(ctx, "r", func(c *counter) error {
		c.N = 100
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _, _ := s.Get(ctx, "r")
	assert.Equal(t, 5, got.N)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := newCounterStore()
	got, _ := s.Update(ctx, "r", func(c *counter) error {
		c.Tags = append(c.Tags, "a")
		return nil
	})
	got.Tags[0] = "mutated"

	stored, _, _ := s.Get(ctx, "r")
	assert.Equal(t, []string{"a"}, stored.Tags)
}

func TestMemory_EmptyKeyAndCancelledContext(t *testing.T) {
	s := newCounterStore()

	_, err := s.Update(context.Background(), "", func(*counter) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyKey)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = s.Get(ctx, "r")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := newCounterStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, "r", func(c *counter) error {
				c.N++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _, _ := s.Get(ctx, "r")
	assert.Equal(t, 50, got.N)
}
