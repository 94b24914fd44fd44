package profile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "profiles.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func newTestPersister(t *testing.T, store Store) *Persister {
	t.Helper()
	p, err := NewPersister(store, nil, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return p
}

func TestNewPersister_RequiresStore(t *testing.T) {
	_, err := NewPersister(nil, nil)
	require.Error(t, err)
}

func TestPersister(t *testing.T) {
	ctx := context.Background()

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("get missing returns nil", func(t *testing.T) {
				p := newTestPersister(t, factory(t))
				got, err := p.Get(ctx, "nobody")
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("update creates then increments version", func(t *testing.T) {
				p := newTestPersister(t, factory(t))

				tone := Patterns{ToneTendencies: []string{"assertive"}}
				got, err := p.UpdateProfile(ctx, "Alex", Update{Patterns: &tone})
				require.NoError(t, err)
				assert.Equal(t, "alex", got.UserID)
				assert.Equal(t, int64(1), got.ProfileVersion)
				assert.True(t, got.LastProfileUpdate.Equal(testNow))

				triggers := Triggers{Topics: []string{"schedule"}, Phrases: []string{"you always"}, Intensity: 0.7}
				got, err = p.UpdateProfile(ctx, "ALEX", Update{Triggers: &triggers})
				require.NoError(t, err)
				assert.Equal(t, int64(2), got.ProfileVersion)

				stored, err := p.Get(ctx, "alex")
				require.NoError(t, err)
				require.NotNil(t, stored)
				assert.Equal(t, []string{"assertive"}, stored.Patterns.ToneTendencies, "untouched fields survive")
				assert.Equal(t, []string{"schedule"}, stored.Triggers.Topics)
				assert.Equal(t, 0.7, stored.Triggers.Intensity)
				assert.True(t, stored.LastProfileUpdate.Equal(testNow))
			})

			t.Run("empty update still bumps version", func(t *testing.T) {
				p := newTestPersister(t, factory(t))
				_, err := p.UpdateProfile(ctx, "alex", Update{})
				require.NoError(t, err)
				got, err := p.UpdateProfile(ctx, "alex", Update{})
				require.NoError(t, err)
				assert.Equal(t, int64(2), got.ProfileVersion)
			})

			t.Run("invalid intensity is rejected", func(t *testing.T) {
				p := newTestPersister(t, factory(t))
				bad := Triggers{Intensity: 1.5}
				_, err := p.UpdateProfile(ctx, "alex", Update{Triggers: &bad})
				require.ErrorIs(t, err, ErrInvalidProfile)
			})

			t.Run("record intervention", func(t *testing.T) {
				p := newTestPersister(t, factory(t))

				h, err := p.RecordIntervention(ctx, "alex", Intervention{OriginalMessage: strings.Repeat("x", 80)})
				require.NoError(t, err)
				assert.Equal(t, 1, h.TotalInterventions)
				require.Len(t, h.RecentInterventions, 1)
				assert.Equal(t, DefaultInterventionType, h.RecentInterventions[0].Type)
				assert.Equal(t, UnknownEscalationLevel, h.RecentInterventions[0].EscalationLevel)
				assert.Len(t, h.RecentInterventions[0].MessagePreview, MessagePreviewLength)
				require.NotNil(t, h.LastIntervention)

				for i := range 25 {
					h, err = p.RecordIntervention(ctx, "alex", Intervention{
						Type:            "reframing",
						EscalationLevel: "high",
						OriginalMessage: fmt.Sprintf("message %d", i),
					})
					require.NoError(t, err)
				}
				assert.Equal(t, 26, h.TotalInterventions)
				assert.Len(t, h.RecentInterventions, MaxRecentInterventions)
				assert.Equal(t, "message 24", h.RecentInterventions[0].MessagePreview, "newest first")
			})

			t.Run("accepted rewrite with no interventions", func(t *testing.T) {
				p := newTestPersister(t, factory(t))

				res, err := p.RecordAcceptedRewrite(ctx, "alex", AcceptedRewrite{Original: "you never", Rewrite: "I need help"})
				require.NoError(t, err)
				assert.Len(t, res.SuccessfulRewrites, 1)
				assert.Equal(t, 1, res.InterventionHistory.AcceptedCount)
				assert.Zero(t, res.InterventionHistory.AcceptanceRate)
			})

			t.Run("acceptance rate", func(t *testing.T) {
				p := newTestPersister(t, factory(t))
				for range 5 {
					_, err := p.RecordIntervention(ctx, "alex", Intervention{})
					require.NoError(t, err)
				}
				var res RewriteResult
				for range 3 {
					var err error
					res, err = p.RecordAcceptedRewrite(ctx, "alex", AcceptedRewrite{Original: "o", Rewrite: "r"})
					require.NoError(t, err)
				}
				assert.InDelta(t, 0.6, res.InterventionHistory.AcceptanceRate, 1e-9)

				h, err := p.RecordRejection(ctx, "alex")
				require.NoError(t, err)
				assert.Equal(t, 1, h.RejectedCount)
				assert.InDelta(t, 0.6, h.AcceptanceRate, 1e-9)
			})

			t.Run("rewrites are capped", func(t *testing.T) {
				p := newTestPersister(t, factory(t))
				var res RewriteResult
				for i := range 55 {
					var err error
					res, err = p.RecordAcceptedRewrite(ctx, "alex", AcceptedRewrite{Original: fmt.Sprintf("o%d", i), Rewrite: "r"})
					require.NoError(t, err)
				}
				assert.Len(t, res.SuccessfulRewrites, MaxSuccessfulRewrites)
				assert.Equal(t, "o54", res.SuccessfulRewrites[0].Original)
			})

			t.Run("decayed view", func(t *testing.T) {
				p := newTestPersister(t, factory(t))
				d, err := p.Decayed(ctx, "alex")
				require.NoError(t, err)
				assert.Nil(t, d)

				_, err = p.RecordAcceptedRewrite(ctx, "alex", AcceptedRewrite{Original: "o", Rewrite: "r"})
				require.NoError(t, err)
				d, err = p.Decayed(ctx, "alex")
				require.NoError(t, err)
				require.NotNil(t, d)
				assert.False(t, d.IsStale)
				assert.Len(t, d.SuccessfulRewrites, 1)
			})
		})
	}
}

func TestPersister_UpdateProfileEvictsPastCap(t *testing.T) {
	ctx := context.Background()
	p := newTestPersister(t, NewMemoryStore())

	rewrites := make([]SuccessfulRewrite, 60)
	for i := range rewrites {
		rewrites[i] = SuccessfulRewrite{Original: fmt.Sprintf("draft %d", i), Rewrite: "I need help.", AcceptedAt: testNow}
	}
	recent := make([]InterventionRecord, 25)
	for i := range recent {
		recent[i] = InterventionRecord{Timestamp: testNow, Type: DefaultInterventionType, MessagePreview: fmt.Sprintf("msg %d", i)}
	}
	hist := InterventionHistory{TotalInterventions: 25, AcceptedCount: 5, AcceptanceRate: 0.2, RecentInterventions: recent}

	got, err := p.UpdateProfile(ctx, "alex", Update{SuccessfulRewrites: &rewrites, InterventionHistory: &hist})
	require.NoError(t, err)
	require.Len(t, got.SuccessfulRewrites, MaxSuccessfulRewrites)
	assert.Equal(t, "draft 0", got.SuccessfulRewrites[0].Original)
	assert.Equal(t, "draft 49", got.SuccessfulRewrites[MaxSuccessfulRewrites-1].Original)
	require.Len(t, got.InterventionHistory.RecentInterventions, MaxRecentInterventions)
	assert.Equal(t, "msg 19", got.InterventionHistory.RecentInterventions[MaxRecentInterventions-1].MessagePreview)
	assert.Equal(t, 25, got.InterventionHistory.TotalInterventions)
	assert.Len(t, recent, 25, "caller's slice is untouched")

	stored, err := p.Get(ctx, "alex")
	require.NoError(t, err)
	assert.Len(t, stored.SuccessfulRewrites, MaxSuccessfulRewrites)
}

func TestPersister_EmptyUserID(t *testing.T) {
	ctx := context.Background()
	p := newTestPersister(t, NewMemoryStore())

	_, err := p.UpdateProfile(ctx, "  ", Update{})
	require.ErrorIs(t, err, ErrEmptyUserID)
	_, err = p.RecordIntervention(ctx, "", Intervention{})
	require.ErrorIs(t, err, ErrEmptyUserID)
	_, err = p.RecordAcceptedRewrite(ctx, "", AcceptedRewrite{})
	require.ErrorIs(t, err, ErrEmptyUserID)
	_, err = p.Get(ctx, "")
	require.ErrorIs(t, err, ErrEmptyUserID)
}

// racingStore bumps the stored version behind the writer's back for the
// first n writes.
type racingStore struct {
	*MemoryStore
	mu    sync.Mutex
	races int
}

func (s *racingStore) Put(ctx context.Context, p *Profile, expected int64) error {
	s.mu.Lock()
	race := s.races > 0
	if race {
		s.races--
	}
	s.mu.Unlock()

	if race {
		other := New(p.UserID)
		if cur, err := s.MemoryStore.Get(ctx, p.UserID); err == nil {
			other = cur
		}
		other.ProfileVersion++
		if err := s.MemoryStore.Put(ctx, other, other.ProfileVersion-1); err != nil {
			return err
		}
	}
	return s.MemoryStore.Put(ctx, p, expected)
}

func TestPersister_RetriesVersionConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after conflicts", func(t *testing.T) {
		store := &racingStore{MemoryStore: NewMemoryStore(), races: 2}
		p := newTestPersister(t, store)

		h, err := p.RecordIntervention(ctx, "alex", Intervention{})
		require.NoError(t, err)
		assert.Equal(t, 1, h.TotalInterventions)

		got, err := p.Get(ctx, "alex")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.ProfileVersion)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		store := &racingStore{MemoryStore: NewMemoryStore(), races: 10}
		p := newTestPersister(t, store)

		_, err := p.RecordIntervention(ctx, "alex", Intervention{})
		require.ErrorIs(t, err, ErrVersionConflict)
	})
}

func TestPersister_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	p, err := NewPersister(NewMemoryStore(), nil, WithMaxAttempts(100))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.RecordIntervention(ctx, "alex", Intervention{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := p.Get(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, 20, got.InterventionHistory.TotalInterventions)
	assert.Equal(t, int64(20), got.ProfileVersion)
}

func TestSQLiteStore_VersionCheck(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "nested", "profiles.db"))
	require.NoError(t, err)
	defer s.Close()

	p := New("alex")
	p.ProfileVersion = 1
	require.NoError(t, s.Put(ctx, p, 0))
	require.ErrorIs(t, s.Put(ctx, p, 0), ErrVersionConflict)

	p.ProfileVersion = 2
	require.ErrorIs(t, s.Put(ctx, p, 5), ErrVersionConflict)
	require.NoError(t, s.Put(ctx, p, 1))

	got, err := s.Get(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ProfileVersion)

	_, err = s.Get(ctx, "jordan")
	assert.True(t, errors.Is(err, ErrNotFound))
}
