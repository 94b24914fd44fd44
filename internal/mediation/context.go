// Package mediation assembles the role-aware context handed to rewrite
// generation.
//
// The context is asymmetric. The sender is the person being coached and
// gets their full decayed profile, intervention stats, accepted rewrites
// and coaching notes. The receiver side only carries known triggers and
// communication style so the sender can avoid them; receiver intervention
// history is never included.
package mediation

import (
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/mediatord/internal/profile"
)

// ContextVersion identifies the context layout.
const ContextVersion = 1

const (
	maxAcceptedRewrites = 5
	maxRecentMessages   = 10
)

// Coaching notes.
const (
	NoteHighSensitivity  = "Sender has high sensitivity to conflict triggers"
	NoteReceptive        = "Sender typically accepts AI suggestions (receptive to coaching)"
	NoteOftenRejects     = "Sender often rejects AI suggestions (adjust approach)"
	NoteSuccessfulChange = "Sender has history of successful communication improvements"
	NoteStaleProfile     = "Profile data is older - patterns may have changed"
)

// Message is one entry of the conversation window.
type Message struct {
	ID        string    `json:"id,omitempty"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Params are the inputs of BuildContext. Profiles may be nil.
type Params struct {
	SenderID        string
	ReceiverID      string
	SenderProfile   *profile.Profile
	ReceiverProfile *profile.Profile
	MessageText     string
	RecentMessages  []Message
	Now             time.Time
}

// Context is the assembled mediation context.
type Context struct {
	Roles        Roles           `json:"roles"`
	Sender       SenderContext   `json:"sender"`
	Receiver     ReceiverContext `json:"receiver"`
	Message      MessageInfo     `json:"message"`
	Conversation Conversation    `json:"conversation"`
	Meta         Meta            `json:"meta"`
}

// Roles names both participants.
type Roles struct {
	Sender   Identity `json:"sender"`
	Receiver Identity `json:"receiver"`
}

// Identity is a participant's ID and display name.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SenderContext is the coaching side.
type SenderContext struct {
	Profile                *profile.Decayed            `json:"profile"`
	InterventionStats      InterventionStats           `json:"intervention_stats"`
	RecentAcceptedRewrites []profile.SuccessfulRewrite `json:"recent_accepted_rewrites"`
	CoachingNotes          []string                    `json:"coaching_notes"`
}

// InterventionStats summarizes how the sender responds to suggestions.
type InterventionStats struct {
	TotalInterventions int     `json:"total_interventions"`
	AcceptedCount      int     `json:"accepted_count"`
	RejectedCount      int     `json:"rejected_count"`
	AcceptanceRate     float64 `json:"acceptance_rate"`
}

// ReceiverContext is awareness-only.
type ReceiverContext struct {
	KnownTriggers      profile.Triggers `json:"known_triggers"`
	CommunicationStyle []string         `json:"communication_style"`
}

// MessageInfo describes the draft being mediated.
type MessageInfo struct {
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// Conversation is the recent window of the room.
type Conversation struct {
	RecentMessages []Message `json:"recent_messages"`
	MessageCount   int       `json:"message_count"`
}

// Meta records profile freshness.
type Meta struct {
	SenderProfileFresh   bool      `json:"sender_profile_fresh"`
	ReceiverProfileFresh bool      `json:"receiver_profile_fresh"`
	ContextVersion       int       `json:"context_version"`
	BuiltAt              time.Time `json:"built_at"`
}

// BuildContext decays both profiles and assembles the context.
func BuildContext(p Params) Context {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	senderView := profile.DecayedPatterns(p.SenderProfile, now)
	receiverView := profile.DecayedPatterns(p.ReceiverProfile, now)

	ctx := Context{
		Roles: Roles{
			Sender:   identity(p.SenderID, p.SenderProfile),
			Receiver: identity(p.ReceiverID, p.ReceiverProfile),
		},
		Sender: SenderContext{
			Profile:                senderView,
			RecentAcceptedRewrites: []profile.SuccessfulRewrite{},
			CoachingNotes:          BuildCoachingNotes(senderView),
		},
		Receiver: ReceiverContext{
			KnownTriggers:      profile.Triggers{Topics: []string{}, Phrases: []string{}},
			CommunicationStyle: []string{},
		},
		Message: MessageInfo{
			Text:   p.MessageText,
			Length: utf8.RuneCountInString(p.MessageText),
		},
		Conversation: Conversation{
			RecentMessages: lastN(p.RecentMessages, maxRecentMessages),
			MessageCount:   len(p.RecentMessages),
		},
		Meta: Meta{
			SenderProfileFresh:   senderView != nil && !senderView.IsStale,
			ReceiverProfileFresh: receiverView != nil && !receiverView.IsStale,
			ContextVersion:       ContextVersion,
			BuiltAt:              now,
		},
	}

	if p.SenderProfile != nil {
		h := p.SenderProfile.InterventionHistory
		ctx.Sender.InterventionStats = InterventionStats{
			TotalInterventions: h.TotalInterventions,
			AcceptedCount:      h.AcceptedCount,
			RejectedCount:      h.RejectedCount,
			AcceptanceRate:     h.AcceptanceRate,
		}
	}
	if senderView != nil {
		n := min(len(senderView.SuccessfulRewrites), maxAcceptedRewrites)
		ctx.Sender.RecentAcceptedRewrites = append(ctx.Sender.RecentAcceptedRewrites, senderView.SuccessfulRewrites[:n]...)
	}
	if receiverView != nil {
		ctx.Receiver.KnownTriggers = receiverView.Triggers
		ctx.Receiver.CommunicationStyle = receiverView.ToneTendencies
	}
	return ctx
}

// BuildCoachingNotes derives notes for the generation prompt from the
// sender's decayed profile.
func BuildCoachingNotes(d *profile.Decayed) []string {
	notes := []string{}
	if d == nil {
		return notes
	}
	if d.Triggers.Intensity > 0.7 {
		notes = append(notes, NoteHighSensitivity)
	}
	switch {
	case d.AcceptanceRate > 0.8:
		notes = append(notes, NoteReceptive)
	case d.AcceptanceRate > 0 && d.AcceptanceRate < 0.3:
		notes = append(notes, NoteOftenRejects)
	}
	if len(d.SuccessfulRewrites) > 5 {
		notes = append(notes, NoteSuccessfulChange)
	}
	if d.IsStale {
		notes = append(notes, NoteStaleProfile)
	}
	return notes
}

func identity(id string, p *profile.Profile) Identity {
	name := id
	if p != nil && p.DisplayName != "" {
		name = p.DisplayName
	}
	return Identity{ID: id, DisplayName: name}
}

func lastN(msgs []Message, n int) []Message {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]Message{}, msgs...)
}
