package escalation

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/generation"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAssessor(t *testing.T, gen generation.Generator) (*Assessor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	a, err := NewAssessor(NewMemoryStore(), gen, nil, nil, WithClock(clock.Now))
	require.NoError(t, err)
	return a, clock
}

func TestNewAssessor_RequiresStore(t *testing.T) {
	_, err := NewAssessor(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestAssess_IncrementsPerPattern(t *testing.T) {
	a, _ := newTestAssessor(t, nil)
	ctx := context.Background()

	got, err := a.Assess(ctx, "room-1", "You always forget. It's your fault.", nil)
	require.NoError(t, err)

	assert.Equal(t, 20, got.Score)
	assert.Equal(t, []string{PatternAccusatory, PatternBlaming}, got.Signals)
	assert.Equal(t, 1, got.PatternCounts[PatternAccusatory])
	assert.Equal(t, 1, got.PatternCounts[PatternBlaming])
	assert.Equal(t, RiskLow, got.RiskLevel)
	assert.False(t, got.Generated)
	assert.Empty(t, got.Fallback)

	state, ok, err := a.Snapshot(ctx, "room-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, state.LastNegativeTime.IsZero())
	assert.Len(t, state.SentimentHistory, 1)
}

func TestAssess_UsesAnalyzerSignals(t *testing.T) {
	a, _ := newTestAssessor(t, nil)
	analysis := analyzer.Analyze("Tell your dad he needs to pay", analyzer.Options{})

	got, err := a.Assess(context.Background(), "room-1", "Tell your dad he needs to pay", &analysis)
	require.NoError(t, err)
	assert.Contains(t, got.Signals, PatternTriangulation)
}

func TestAssess_NeutralMessageLeavesScore(t *testing.T) {
	a, _ := newTestAssessor(t, nil)

	got, err := a.Assess(context.Background(), "room-1", "Pickup is at 5 on Friday.", nil)
	require.NoError(t, err)
	assert.Zero(t, got.Score)
	assert.Empty(t, got.Signals)
	assert.Equal(t, 50, got.Confidence)
}

func TestAssess_LazyDecay(t *testing.T) {
	a, clock := newTestAssessor(t, nil)
	ctx := context.Background()

	_, err := a.Assess(ctx, "room-1", "You never listen", nil)
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	got, err := a.Assess(ctx, "room-1", "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Score, "no decay inside the quiet period")

	clock.Advance(2 * time.Minute)
	got, err = a.Assess(ctx, "room-1", "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Score)

	clock.Advance(time.Minute)
	got, err = a.Assess(ctx, "room-1", "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Score, "decay advances only on evaluation")
}

func TestAssess_ClampsAtMax(t *testing.T) {
	a, _ := newTestAssessor(t, nil)
	ctx := context.Background()

	var got Assessment
	var err error
	for i := 0; i < 20; i++ {
		got, err = a.Assess(ctx, "room-1", "You always do this, it's your fault, she told me, at my house", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, MaxScore, got.Score)
	assert.Equal(t, RiskCritical, got.RiskLevel)
	assert.Equal(t, "high", got.Urgency)
}

func TestAssess_ScoreStaysInBounds(t *testing.T) {
	a, clock := newTestAssessor(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	messages := []string{"ok", "You never help", "your fault", "at your house it's fine with me", "she told me"}

	for i := 0; i < 500; i++ {
		clock.Advance(time.Duration(rng.Intn(600)) * time.Second)
		if rng.Intn(10) == 0 {
			st, err := a.Reset(ctx, "room-1")
			require.NoError(t, err)
			assert.GreaterOrEqual(t, st.Score, MinScore)
			continue
		}
		got, err := a.Assess(ctx, "room-1", messages[rng.Intn(len(messages))], nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Score, MinScore)
		assert.LessOrEqual(t, got.Score, MaxScore)
	}

	st, _, _ := a.Snapshot(ctx, "room-1")
	assert.LessOrEqual(t, len(st.SentimentHistory), 20)
}

func TestReset(t *testing.T) {
	a, _ := newTestAssessor(t, nil)
	ctx := context.Background()

	_, _ = a.Assess(ctx, "room-1", "You always do this, it's your fault, she told me", nil)
	st, err := a.Reset(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 10, st.Score)
	assert.True(t, st.LastNegativeTime.IsZero())

	st, err = a.Reset(ctx, "room-1")
	require.NoError(t, err)
	assert.Zero(t, st.Score, "reset floors at zero")

	_, err = a.Reset(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyRoomID)
}

func TestAssess_EmptyRoom(t *testing.T) {
	a, _ := newTestAssessor(t, nil)
	_, err := a.Assess(context.Background(), "", "hi", nil)
	assert.ErrorIs(t, err, ErrEmptyRoomID)
}

func TestAssess_GeneratedClassificationRaisesRisk(t *testing.T) {
	var prompt string
	gen := generation.GeneratorFunc(func(ctx context.Context, p string, opts generation.CallOptions) (string, error) {
		prompt = p
		return `{"riskLevel":"critical","confidence":90,"reasons":["Threat of legal action"],"urgency":"high"}`, nil
	})
	a, _ := newTestAssessor(t, gen)

	got, err := a.Assess(context.Background(), "room-1", "I'm calling my lawyer", nil)
	require.NoError(t, err)

	assert.True(t, got.Generated)
	assert.Equal(t, RiskCritical, got.RiskLevel)
	assert.Equal(t, "high", got.Urgency)
	assert.Equal(t, 90, got.Confidence)
	assert.Contains(t, got.Reasons, "Threat of legal action")
	assert.Contains(t, prompt, "Current escalation score: 0/100")
}

func TestAssess_GeneratorFailureFallsBackToLowRisk(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		err    error
		reason generation.FallbackReason
	}{
		{"call error", "", errors.New("connection refused"), generation.ReasonCallFailed},
		{"timeout", "", context.DeadlineExceeded, generation.ReasonTimeout},
		{"garbage", "I cannot help with that", nil, generation.ReasonInvalidReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := generation.GeneratorFunc(func(context.Context, string, generation.CallOptions) (string, error) {
				return tt.reply, tt.err
			})
			a, _ := newTestAssessor(t, gen)

			got, err := a.Assess(context.Background(), "room-1", "You never help", nil)
			require.NoError(t, err)
			assert.False(t, got.Generated)
			assert.Equal(t, tt.reason, got.Fallback)
			assert.Equal(t, RiskLow, got.RiskLevel)
			assert.Equal(t, 10, got.Score)
		})
	}
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevelFor(0))
	assert.Equal(t, RiskLow, RiskLevelFor(24))
	assert.Equal(t, RiskMedium, RiskLevelFor(25))
	assert.Equal(t, RiskHigh, RiskLevelFor(50))
	assert.Equal(t, RiskCritical, RiskLevelFor(75))
	assert.Equal(t, RiskCritical, RiskLevelFor(100))
}
