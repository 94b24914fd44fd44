package escalation

import (
	"time"

	"github.com/fyrsmithlabs/mediatord/internal/statestore"
)

// Conflict pattern names tracked per room.
const (
	PatternAccusatory    = "accusatory"
	PatternTriangulation = "triangulation"
	PatternComparison    = "comparison"
	PatternBlaming       = "blaming"
)

// State is the running escalation state of one room.
type State struct {
	RoomID           string          `json:"room_id"`
	SentimentHistory []SentimentMark `json:"sentiment_history"`
	Score            int             `json:"escalation_score"`
	LastNegativeTime time.Time       `json:"last_negative_time,omitempty"`
	PatternCounts    map[string]int  `json:"pattern_counts"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SentimentMark records the score after one assessed message.
type SentimentMark struct {
	At      time.Time `json:"at"`
	Score   int       `json:"score"`
	Signals []string  `json:"signals,omitempty"`
}

// NewState returns the initial state for a room.
func NewState(roomID string) State {
	return State{
		RoomID: roomID,
		PatternCounts: map[string]int{
			PatternAccusatory:    0,
			PatternTriangulation: 0,
			PatternComparison:    0,
			PatternBlaming:       0,
		},
	}
}

// Clone deep-copies s.
func (s State) Clone() State {
	out := s
	out.SentimentHistory = make([]SentimentMark, len(s.SentimentHistory))
	for i, m := range s.SentimentHistory {
		m.Signals = append([]string(nil), m.Signals...)
		out.SentimentHistory[i] = m
	}
	out.PatternCounts = make(map[string]int, len(s.PatternCounts))
	for k, v := range s.PatternCounts {
		out.PatternCounts[k] = v
	}
	return out
}

// NewMemoryStore returns an in-process state store.
func NewMemoryStore() *statestore.Memory[State] {
	return statestore.NewMemory(NewState, State.Clone)
}
