package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/mediatord/internal/statestore"
)

// Intervention types.
const (
	TypeSuggestion    = "suggestion"
	TypeReframing     = "reframing"
	TypeToneSmoothing = "tone_smoothing"
	TypeDelayPrompt   = "delay_prompt"
	TypeNone          = "none"
)

// Intervention styles.
const (
	StyleGentle   = "gentle"
	StyleModerate = "moderate"
	StyleFirm     = "firm"
)

// Urgency levels.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Outcome is the user's verdict on an intervention.
type Outcome string

// Outcomes.
const (
	OutcomeHelpful   Outcome = "helpful"
	OutcomeUnhelpful Outcome = "unhelpful"
	OutcomeNeutral   Outcome = "neutral"
	OutcomeUnknown   Outcome = "unknown"
)

// ErrInvalidOutcome is returned by ParseOutcome for unrecognized values.
var ErrInvalidOutcome = errors.New("invalid outcome")

// ParseOutcome validates s. An empty string is OutcomeUnknown.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeHelpful, OutcomeUnhelpful, OutcomeNeutral, OutcomeUnknown:
		return o, nil
	case "":
		return OutcomeUnknown, nil
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidOutcome, s)
	}
}

// State is the adaptive policy of one room.
type State struct {
	RoomID                string                    `json:"room_id"`
	InterventionThreshold int                       `json:"intervention_threshold"`
	InterventionStyle     string                    `json:"intervention_style"`
	PreferredMethods      []string                  `json:"preferred_methods"`
	UserPreferences       map[string]UserPreference `json:"user_preferences"`
	LastIntervention      time.Time                 `json:"last_intervention,omitempty"`
	InterventionHistory   []HistoryEntry            `json:"intervention_history"`
}

// UserPreference tunes interventions for one participant.
type UserPreference struct {
	PreferredTone         string `json:"preferred_tone,omitempty"`
	InterventionFrequency string `json:"intervention_frequency,omitempty"`
}

// HistoryEntry is one recorded intervention outcome.
type HistoryEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           string    `json:"type"`
	Style          string    `json:"style"`
	Outcome        Outcome   `json:"outcome"`
	Feedback       string    `json:"feedback,omitempty"`
	EmotionalState string    `json:"emotional_state,omitempty"`
	EscalationRisk string    `json:"escalation_risk,omitempty"`
}

// Clone deep-copies s.
func (s State) Clone() State {
	out := s
	out.PreferredMethods = append([]string(nil), s.PreferredMethods...)
	out.InterventionHistory = append([]HistoryEntry(nil), s.InterventionHistory...)
	out.UserPreferences = make(map[string]UserPreference, len(s.UserPreferences))
	for k, v := range s.UserPreferences {
		out.UserPreferences[k] = v
	}
	return out
}

// NewStateFunc returns a constructor for the initial room policy.
func NewStateFunc(threshold int) func(roomID string) State {
	return func(roomID string) State {
		return State{
			RoomID:                roomID,
			InterventionThreshold: clampThreshold(threshold),
			InterventionStyle:     StyleModerate,
			PreferredMethods:      []string{TypeSuggestion, TypeReframing},
			UserPreferences:       map[string]UserPreference{},
			InterventionHistory:   []HistoryEntry{},
		}
	}
}

// NewMemoryStore returns an in-process policy store.
func NewMemoryStore(threshold int) *statestore.Memory[State] {
	return statestore.NewMemory(NewStateFunc(threshold), State.Clone)
}
