package mediation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/mediatord/internal/profile"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func senderProfile() *profile.Profile {
	p := profile.New("alex")
	p.DisplayName = "Alex"
	p.LastProfileUpdate = testNow
	p.Patterns = profile.Patterns{ToneTendencies: []string{"assertive", "direct"}}
	p.Triggers = profile.Triggers{
		Topics:    []string{"schedule", "money"},
		Phrases:   []string{"always late", "never listen"},
		Intensity: 0.7,
	}
	p.SuccessfulRewrites = []profile.SuccessfulRewrite{{
		Original:   "You never pick her up on time",
		Rewrite:    "I feel worried when pickup times vary",
		AcceptedAt: testNow,
	}}
	p.InterventionHistory = profile.InterventionHistory{
		TotalInterventions: 5,
		AcceptedCount:      3,
		AcceptanceRate:     0.6,
		RecentInterventions: []profile.InterventionRecord{
			{Timestamp: testNow, Type: "suggestion", EscalationLevel: "high"},
		},
	}
	return p
}

func receiverProfile() *profile.Profile {
	p := profile.New("jordan")
	p.DisplayName = "Jordan"
	p.LastProfileUpdate = testNow
	p.Patterns = profile.Patterns{ToneTendencies: []string{"defensive", "brief"}}
	p.Triggers = profile.Triggers{Topics: []string{"parenting decisions"}, Phrases: []string{"you should"}, Intensity: 0.5}
	p.InterventionHistory = profile.InterventionHistory{TotalInterventions: 9, AcceptedCount: 1, AcceptanceRate: 0.11}
	return p
}

func buildTestContext(msgs []Message) Context {
	return BuildContext(Params{
		SenderID:        "alex",
		ReceiverID:      "jordan",
		SenderProfile:   senderProfile(),
		ReceiverProfile: receiverProfile(),
		MessageText:     "This is a test message",
		RecentMessages:  msgs,
		Now:             testNow,
	})
}

func TestBuildContext_Roles(t *testing.T) {
	c := buildTestContext(nil)
	assert.Equal(t, "alex", c.Roles.Sender.ID)
	assert.Equal(t, "jordan", c.Roles.Receiver.ID)
	assert.Equal(t, "Alex", c.Roles.Sender.DisplayName)
	assert.Equal(t, "Jordan", c.Roles.Receiver.DisplayName)
}

func TestBuildContext_Asymmetry(t *testing.T) {
	c := buildTestContext(nil)

	require.NotNil(t, c.Sender.Profile)
	assert.Equal(t, 5, c.Sender.InterventionStats.TotalInterventions)
	assert.Equal(t, 0.6, c.Sender.InterventionStats.AcceptanceRate)
	assert.Len(t, c.Sender.RecentAcceptedRewrites, 1)

	assert.Equal(t, []string{"parenting decisions"}, c.Receiver.KnownTriggers.Topics)
	assert.Equal(t, []string{"defensive", "brief"}, c.Receiver.CommunicationStyle)

	receiver := FormatReceiverContext(&c)
	assert.NotContains(t, receiver, "interventions")
	assert.NotContains(t, receiver, "accepted")
}

func TestBuildContext_MessageAndConversation(t *testing.T) {
	c := buildTestContext(nil)
	assert.Equal(t, "This is a test message", c.Message.Text)
	assert.Equal(t, 22, c.Message.Length)
	assert.Empty(t, c.Conversation.RecentMessages)

	var msgs []Message
	for i := range 15 {
		msgs = append(msgs, Message{SenderID: "alex", Text: fmt.Sprintf("m%d", i)})
	}
	c = buildTestContext(msgs)
	require.Len(t, c.Conversation.RecentMessages, 10)
	assert.Equal(t, "m5", c.Conversation.RecentMessages[0].Text)
	assert.Equal(t, 15, c.Conversation.MessageCount)
}

func TestBuildContext_Meta(t *testing.T) {
	c := buildTestContext(nil)
	assert.Equal(t, 1, c.Meta.ContextVersion)
	assert.Equal(t, testNow, c.Meta.BuiltAt)
	assert.True(t, c.Meta.SenderProfileFresh)
	assert.True(t, c.Meta.ReceiverProfileFresh)
}

func TestBuildContext_NilProfiles(t *testing.T) {
	c := BuildContext(Params{SenderID: "alex", ReceiverID: "jordan", MessageText: "Test", Now: testNow})
	assert.Equal(t, "alex", c.Roles.Sender.DisplayName)
	assert.Equal(t, "jordan", c.Roles.Receiver.DisplayName)
	assert.Nil(t, c.Sender.Profile)
	assert.Empty(t, c.Sender.RecentAcceptedRewrites)
	assert.Empty(t, c.Sender.CoachingNotes)
	assert.False(t, c.Meta.SenderProfileFresh)

	assert.Contains(t, FormatSenderContext(&c), "SENDER: alex")
}

func TestBuildCoachingNotes(t *testing.T) {
	tests := []struct {
		name  string
		view  *profile.Decayed
		want  string
		empty bool
	}{
		{"nil", nil, "", true},
		{"high intensity", &profile.Decayed{Triggers: profile.Triggers{Intensity: 0.8}}, NoteHighSensitivity, false},
		{"receptive", &profile.Decayed{AcceptanceRate: 0.85}, NoteReceptive, false},
		{"rejects", &profile.Decayed{AcceptanceRate: 0.2}, NoteOftenRejects, false},
		{"history", &profile.Decayed{SuccessfulRewrites: make([]profile.SuccessfulRewrite, 6)}, NoteSuccessfulChange, false},
		{"stale", &profile.Decayed{IsStale: true}, NoteStaleProfile, false},
		{"zero rate is not rejection", &profile.Decayed{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := BuildCoachingNotes(tt.view)
			if tt.empty {
				assert.Empty(t, notes)
				assert.NotNil(t, notes)
				return
			}
			assert.Contains(t, notes, tt.want)
		})
	}
}

func TestFormatSenderContext(t *testing.T) {
	c := buildTestContext(nil)
	out := FormatSenderContext(&c)
	assert.Contains(t, out, "SENDER: Alex")
	assert.Contains(t, out, "Typical tone: assertive, direct")
	assert.Contains(t, out, "Sensitive topics for sender: schedule, money")
	assert.Contains(t, out, "AI interventions: 5 total, 60% accepted")
	assert.Contains(t, out, "Recent successful rewrite:")

	assert.Empty(t, FormatSenderContext(nil))
}

func TestFormatReceiverContext(t *testing.T) {
	c := buildTestContext(nil)
	out := FormatReceiverContext(&c)
	assert.Contains(t, out, "RECEIVER: Jordan")
	assert.Contains(t, out, "Receiver is sensitive to: parenting decisions")
	assert.Contains(t, out, "Receiver prefers: defensive, brief communication")

	assert.Empty(t, FormatReceiverContext(nil))
}

func TestFormatFullContext(t *testing.T) {
	c := buildTestContext([]Message{
		{SenderID: "jordan", Text: "Pickup is at 5."},
		{SenderID: "alex", Text: "You're always late."},
	})
	out := FormatFullContext(&c)
	assert.Contains(t, out, "ROLE-AWARE MEDIATION CONTEXT")
	assert.Contains(t, out, "helping Alex send a better message to Jordan")
	assert.Contains(t, out, "IMPORTANT:")
	assert.Contains(t, out, "coaching is for the SENDER only")
	assert.Contains(t, out, `Never use "we/us/our/both"`)
	assert.Contains(t, out, "SENDER:")
	assert.Contains(t, out, "RECEIVER:")

	conv := FormatConversation(&c)
	assert.Contains(t, conv, "- Jordan: Pickup is at 5.")
	assert.Contains(t, conv, "- Alex: You're always late.")

	assert.Empty(t, FormatFullContext(nil))
}
