package profile

import (
	"math"
	"sort"
	"time"
)

// Decay thresholds in days.
const (
	FullDays    = 30
	ReducedDays = 60
	MinimalDays = 90
)

// Decay weights.
const (
	WeightFull    = 1.0
	WeightReduced = 0.7
	WeightMinimal = 0.3
	WeightExpired = 0.0
)

const (
	maxDecayedRewrites = 10
	day                = 24 * time.Hour
)

// CalculateWeight returns the step weight for a signal recorded at ts.
// A zero timestamp has no weight.
func CalculateWeight(ts, now time.Time) float64 {
	if ts.IsZero() {
		return WeightExpired
	}
	age := now.Sub(ts)
	switch {
	case age <= FullDays*day:
		return WeightFull
	case age <= ReducedDays*day:
		return WeightReduced
	case age <= MinimalDays*day:
		return WeightMinimal
	default:
		return WeightExpired
	}
}

// Weighted pairs an item with its decay weight.
type Weighted[T any] struct {
	Item   T       `json:"item"`
	Weight float64 `json:"weight"`
}

// ApplyDecay weighs items by the timestamp at returns, drops expired ones
// and sorts by weight then recency.
func ApplyDecay[T any](items []T, at func(T) time.Time, now time.Time) []Weighted[T] {
	out := make([]Weighted[T], 0, len(items))
	for _, it := range items {
		w := CalculateWeight(at(it), now)
		if w <= WeightExpired {
			continue
		}
		out = append(out, Weighted[T]{Item: it, Weight: w})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return at(out[i].Item).After(at(out[j].Item))
	})
	return out
}

// Decayed is a read-only view of a profile with aged signals discounted.
type Decayed struct {
	UserID             string              `json:"user_id"`
	IsStale            bool                `json:"is_stale"`
	RelevanceWeight    float64             `json:"relevance_weight"`
	ToneTendencies     []string            `json:"tone_tendencies"`
	CommonPhrases      []string            `json:"common_phrases"`
	AvgMessageLength   int                 `json:"avg_message_length,omitempty"`
	Triggers           Triggers            `json:"triggers"`
	SuccessfulRewrites []SuccessfulRewrite `json:"successful_rewrites"`
	AcceptanceRate     float64             `json:"acceptance_rate"`
	LastProfileUpdate  time.Time           `json:"last_profile_update"`
}

// DecayedPatterns derives the decayed view of p. It returns nil for a nil
// profile and never modifies p.
func DecayedPatterns(p *Profile, now time.Time) *Decayed {
	if p == nil {
		return nil
	}
	w := CalculateWeight(p.LastProfileUpdate, now)
	d := &Decayed{
		UserID:            p.UserID,
		IsStale:           p.LastProfileUpdate.IsZero() || now.Sub(p.LastProfileUpdate) > ReducedDays*day,
		RelevanceWeight:   w,
		ToneTendencies:    []string{},
		CommonPhrases:     []string{},
		Triggers:          Triggers{Topics: []string{}, Phrases: []string{}},
		AcceptanceRate:    p.InterventionHistory.AcceptanceRate,
		LastProfileUpdate: p.LastProfileUpdate,
	}
	if w > WeightExpired {
		d.ToneTendencies = cloneStrings(p.Patterns.ToneTendencies)
		d.CommonPhrases = cloneStrings(p.Patterns.CommonPhrases)
		d.AvgMessageLength = p.Patterns.AvgMessageLength
		d.Triggers = Triggers{
			Topics:    cloneStrings(p.Triggers.Topics),
			Phrases:   cloneStrings(p.Triggers.Phrases),
			Intensity: round2(p.Triggers.Intensity * w),
		}
		if d.ToneTendencies == nil {
			d.ToneTendencies = []string{}
		}
		if d.CommonPhrases == nil {
			d.CommonPhrases = []string{}
		}
		if d.Triggers.Topics == nil {
			d.Triggers.Topics = []string{}
		}
		if d.Triggers.Phrases == nil {
			d.Triggers.Phrases = []string{}
		}
	}

	weighted := ApplyDecay(p.SuccessfulRewrites, func(r SuccessfulRewrite) time.Time { return r.AcceptedAt }, now)
	d.SuccessfulRewrites = make([]SuccessfulRewrite, 0, min(len(weighted), maxDecayedRewrites))
	for _, wr := range weighted {
		if len(d.SuccessfulRewrites) == maxDecayedRewrites {
			break
		}
		d.SuccessfulRewrites = append(d.SuccessfulRewrites, wr.Item)
	}
	return d
}

// NeedsRefresh reports whether p is missing or has not been updated for
// more than FullDays.
func NeedsRefresh(p *Profile, now time.Time) bool {
	if p == nil || p.LastProfileUpdate.IsZero() {
		return true
	}
	return now.Sub(p.LastProfileUpdate) > FullDays*day
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
