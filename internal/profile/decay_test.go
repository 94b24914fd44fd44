package profile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * day)
}

func TestCalculateWeight(t *testing.T) {
	tests := []struct {
		name string
		ts   time.Time
		want float64
	}{
		{"today", testNow, WeightFull},
		{"15 days", daysAgo(15), WeightFull},
		{"45 days", daysAgo(45), WeightReduced},
		{"75 days", daysAgo(75), WeightMinimal},
		{"100 days", daysAgo(100), WeightExpired},
		{"zero", time.Time{}, WeightExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateWeight(tt.ts, testNow))
		})
	}
}

func TestApplyDecay(t *testing.T) {
	type item struct {
		value string
		at    time.Time
	}
	items := []item{
		{"old", daysAgo(50)},
		{"recent", daysAgo(5)},
		{"medium", daysAgo(40)},
		{"expired", daysAgo(100)},
	}

	got := ApplyDecay(items, func(i item) time.Time { return i.at }, testNow)
	require.Len(t, got, 3)
	assert.Equal(t, "recent", got[0].Item.value)
	assert.Equal(t, WeightFull, got[0].Weight)
	assert.Equal(t, "medium", got[1].Item.value)
	assert.Equal(t, "old", got[2].Item.value)
	assert.Equal(t, WeightReduced, got[2].Weight)

	assert.Empty(t, ApplyDecay[item](nil, func(i item) time.Time { return i.at }, testNow))
}

func TestDecayedPatterns(t *testing.T) {
	t.Run("nil profile", func(t *testing.T) {
		assert.Nil(t, DecayedPatterns(nil, testNow))
	})

	t.Run("expired profile", func(t *testing.T) {
		p := New("alex")
		p.LastProfileUpdate = daysAgo(100)
		p.Patterns.ToneTendencies = []string{"assertive"}

		got := DecayedPatterns(p, testNow)
		assert.True(t, got.IsStale)
		assert.Zero(t, got.RelevanceWeight)
		assert.Empty(t, got.ToneTendencies)
		assert.Equal(t, []string{"assertive"}, p.Patterns.ToneTendencies, "source profile is not modified")
	})

	t.Run("fresh profile", func(t *testing.T) {
		p := New("alex")
		p.LastProfileUpdate = testNow
		p.Patterns = Patterns{
			ToneTendencies:   []string{"assertive", "direct"},
			CommonPhrases:    []string{"I think"},
			AvgMessageLength: 150,
		}
		p.Triggers = Triggers{Topics: []string{"schedule", "money"}, Phrases: []string{"always late"}, Intensity: 0.8}

		got := DecayedPatterns(p, testNow)
		assert.False(t, got.IsStale)
		assert.Equal(t, 1.0, got.RelevanceWeight)
		assert.Equal(t, []string{"assertive", "direct"}, got.ToneTendencies)
		assert.Equal(t, 0.8, got.Triggers.Intensity)
		assert.Equal(t, 150, got.AvgMessageLength)
	})

	t.Run("intensity scales with freshness", func(t *testing.T) {
		p := New("alex")
		p.LastProfileUpdate = daysAgo(45)
		p.Triggers.Intensity = 1.0

		got := DecayedPatterns(p, testNow)
		assert.Equal(t, 0.7, got.Triggers.Intensity)
		assert.False(t, got.IsStale)
	})

	t.Run("stale beyond sixty days", func(t *testing.T) {
		p := New("alex")
		p.LastProfileUpdate = daysAgo(75)
		p.Triggers.Intensity = 1.0

		got := DecayedPatterns(p, testNow)
		assert.True(t, got.IsStale)
		assert.Equal(t, 0.3, got.Triggers.Intensity)
	})

	t.Run("rewrites decay and cap", func(t *testing.T) {
		p := New("alex")
		p.LastProfileUpdate = testNow
		p.SuccessfulRewrites = []SuccessfulRewrite{
			{Original: "test1", AcceptedAt: testNow},
			{Original: "test2", AcceptedAt: daysAgo(100)},
		}
		got := DecayedPatterns(p, testNow)
		require.Len(t, got.SuccessfulRewrites, 1)
		assert.Equal(t, "test1", got.SuccessfulRewrites[0].Original)

		p.SuccessfulRewrites = nil
		for i := range 15 {
			p.SuccessfulRewrites = append(p.SuccessfulRewrites, SuccessfulRewrite{Original: fmt.Sprintf("test%d", i), AcceptedAt: testNow})
		}
		assert.Len(t, DecayedPatterns(p, testNow).SuccessfulRewrites, 10)
	})
}

func TestNeedsRefresh(t *testing.T) {
	assert.True(t, NeedsRefresh(nil, testNow))
	assert.True(t, NeedsRefresh(New("alex"), testNow))

	p := New("alex")
	p.LastProfileUpdate = testNow
	assert.False(t, NeedsRefresh(p, testNow))

	p.LastProfileUpdate = daysAgo(35)
	assert.True(t, NeedsRefresh(p, testNow))
}
