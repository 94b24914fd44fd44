// Package profile persists per-user communication profiles and derives
// time-decayed views of them.
//
// A profile is keyed by the lowercased user ID and created on first write.
// Every write increments ProfileVersion; stores reject writes whose
// expected version is stale so concurrent writers retry instead of
// silently overwriting each other.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Bounded list caps.
const (
	MaxSuccessfulRewrites   = 50
	MaxRecentInterventions  = 20
	MessagePreviewLength    = 50
	DefaultInterventionType = "suggestion"
	UnknownEscalationLevel  = "unknown"
)

var (
	// ErrEmptyUserID is returned when a user ID is blank.
	ErrEmptyUserID = errors.New("profile: user id is required")
	// ErrNotFound is returned by stores when no row exists for a user.
	ErrNotFound = errors.New("profile: not found")
	// ErrVersionConflict is returned when the stored version moved on
	// between read and write.
	ErrVersionConflict = errors.New("profile: version conflict")
	// ErrInvalidProfile wraps schema violations.
	ErrInvalidProfile = errors.New("profile: invalid")
)

// Profile is the stored communication profile of one user.
type Profile struct {
	UserID              string              `json:"user_id"`
	DisplayName         string              `json:"display_name,omitempty"`
	Patterns            Patterns            `json:"communication_patterns"`
	Triggers            Triggers            `json:"triggers"`
	SuccessfulRewrites  []SuccessfulRewrite `json:"successful_rewrites"`
	InterventionHistory InterventionHistory `json:"intervention_history"`
	ProfileVersion      int64               `json:"profile_version"`
	LastProfileUpdate   time.Time           `json:"last_profile_update"`
}

// Patterns are the user's tone tendencies.
type Patterns struct {
	ToneTendencies   []string `json:"tone_tendencies"`
	CommonPhrases    []string `json:"common_phrases,omitempty"`
	AvgMessageLength int      `json:"avg_message_length,omitempty"`
}

// Triggers are topics and phrases that provoke the user.
type Triggers struct {
	Topics    []string `json:"topics"`
	Phrases   []string `json:"phrases"`
	Intensity float64  `json:"intensity"`
}

// SuccessfulRewrite is an accepted suggestion.
type SuccessfulRewrite struct {
	Original   string    `json:"original"`
	Rewrite    string    `json:"rewrite"`
	Tip        string    `json:"tip,omitempty"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// InterventionHistory aggregates how the user responded to suggestions.
type InterventionHistory struct {
	TotalInterventions  int                  `json:"total_interventions"`
	AcceptedCount       int                  `json:"accepted_count"`
	RejectedCount       int                  `json:"rejected_count"`
	AcceptanceRate      float64              `json:"acceptance_rate"`
	LastIntervention    *time.Time           `json:"last_intervention"`
	RecentInterventions []InterventionRecord `json:"recent_interventions"`
}

// InterventionRecord is one entry of the recent intervention list.
type InterventionRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Type            string    `json:"type"`
	EscalationLevel string    `json:"escalation_level"`
	MessagePreview  string    `json:"message_preview"`
}

// NormalizeUserID returns the storage key for a user ID.
func NormalizeUserID(userID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(userID))
	if id == "" {
		return "", ErrEmptyUserID
	}
	return id, nil
}

// New returns an empty profile for a normalized user ID.
func New(userID string) *Profile {
	return &Profile{
		UserID:             userID,
		Patterns:           Patterns{ToneTendencies: []string{}},
		Triggers:           Triggers{Topics: []string{}, Phrases: []string{}},
		SuccessfulRewrites: []SuccessfulRewrite{},
		InterventionHistory: InterventionHistory{
			RecentInterventions: []InterventionRecord{},
		},
	}
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Patterns.ToneTendencies = cloneStrings(p.Patterns.ToneTendencies)
	out.Patterns.CommonPhrases = cloneStrings(p.Patterns.CommonPhrases)
	out.Triggers.Topics = cloneStrings(p.Triggers.Topics)
	out.Triggers.Phrases = cloneStrings(p.Triggers.Phrases)
	out.SuccessfulRewrites = append([]SuccessfulRewrite{}, p.SuccessfulRewrites...)
	out.InterventionHistory.RecentInterventions = append([]InterventionRecord{}, p.InterventionHistory.RecentInterventions...)
	if p.InterventionHistory.LastIntervention != nil {
		t := *p.InterventionHistory.LastIntervention
		out.InterventionHistory.LastIntervention = &t
	}
	return &out
}

// Validate checks the typed sub-entities against their bounds.
func (p *Profile) Validate() error {
	switch {
	case p.UserID == "":
		return fmt.Errorf("%w: %w", ErrInvalidProfile, ErrEmptyUserID)
	case p.ProfileVersion < 0:
		return fmt.Errorf("%w: negative version", ErrInvalidProfile)
	case p.Triggers.Intensity < 0 || p.Triggers.Intensity > 1:
		return fmt.Errorf("%w: trigger intensity %v out of [0,1]", ErrInvalidProfile, p.Triggers.Intensity)
	case len(p.SuccessfulRewrites) > MaxSuccessfulRewrites:
		return fmt.Errorf("%w: %d successful rewrites", ErrInvalidProfile, len(p.SuccessfulRewrites))
	}
	return p.InterventionHistory.Validate()
}

// Validate checks counters and the rate.
func (h InterventionHistory) Validate() error {
	switch {
	case h.TotalInterventions < 0 || h.AcceptedCount < 0 || h.RejectedCount < 0:
		return fmt.Errorf("%w: negative intervention counts", ErrInvalidProfile)
	case h.AcceptanceRate < 0 || h.AcceptanceRate > 1:
		return fmt.Errorf("%w: acceptance rate %v out of [0,1]", ErrInvalidProfile, h.AcceptanceRate)
	case len(h.RecentInterventions) > MaxRecentInterventions:
		return fmt.Errorf("%w: %d recent interventions", ErrInvalidProfile, len(h.RecentInterventions))
	}
	return nil
}

// recompute refreshes AcceptanceRate. It is 0 until an intervention has
// been recorded.
func (h *InterventionHistory) recompute() {
	if h.TotalInterventions <= 0 {
		h.AcceptanceRate = 0
		return
	}
	h.AcceptanceRate = min(1, float64(h.AcceptedCount)/float64(h.TotalInterventions))
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= MessagePreviewLength {
		return text
	}
	return string(r[:MessagePreviewLength])
}
