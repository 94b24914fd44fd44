package mediation

import (
	"fmt"
	"strings"
)

// FormatSenderContext renders the coaching side for a prompt.
func FormatSenderContext(c *Context) string {
	if c == nil {
		return ""
	}
	s := c.Sender
	parts := []string{"SENDER: " + orDefault(c.Roles.Sender.DisplayName, "Unknown")}

	if v := s.Profile; v != nil {
		if len(v.ToneTendencies) > 0 {
			parts = append(parts, "Typical tone: "+strings.Join(v.ToneTendencies, ", "))
		}
		if len(v.Triggers.Topics) > 0 {
			parts = append(parts, "Sensitive topics for sender: "+strings.Join(v.Triggers.Topics, ", "))
		}
		if len(v.Triggers.Phrases) > 0 {
			parts = append(parts, "Triggering phrases for sender: "+strings.Join(firstN(v.Triggers.Phrases, 3), ", "))
		}
	}

	if st := s.InterventionStats; st.TotalInterventions > 0 {
		parts = append(parts, fmt.Sprintf("AI interventions: %d total, %.0f%% accepted",
			st.TotalInterventions, st.AcceptanceRate*100))
	}

	if len(s.RecentAcceptedRewrites) > 0 {
		ex := s.RecentAcceptedRewrites[0]
		parts = append(parts, fmt.Sprintf("Recent successful rewrite: %q → %q",
			truncate(ex.Original, 30)+"...", truncate(ex.Rewrite, 30)+"..."))
	}

	if len(s.CoachingNotes) > 0 {
		parts = append(parts, "Notes: "+strings.Join(s.CoachingNotes, "; "))
	}
	return strings.Join(parts, "\n")
}

// FormatReceiverContext renders the awareness-only side for a prompt.
func FormatReceiverContext(c *Context) string {
	if c == nil {
		return ""
	}
	r := c.Receiver
	parts := []string{"RECEIVER: " + orDefault(c.Roles.Receiver.DisplayName, "Unknown")}
	if len(r.KnownTriggers.Topics) > 0 {
		parts = append(parts, "Receiver is sensitive to: "+strings.Join(r.KnownTriggers.Topics, ", "))
	}
	if len(r.CommunicationStyle) > 0 {
		parts = append(parts, "Receiver prefers: "+strings.Join(r.CommunicationStyle, ", ")+" communication")
	}
	return strings.Join(parts, "\n")
}

// FormatFullContext wraps both sides with the role directive.
func FormatFullContext(c *Context) string {
	if c == nil {
		return ""
	}
	sender := orDefault(c.Roles.Sender.DisplayName, "the sender")
	receiver := orDefault(c.Roles.Receiver.DisplayName, "the receiver")

	var b strings.Builder
	b.WriteString("=== ROLE-AWARE MEDIATION CONTEXT ===\n")
	fmt.Fprintf(&b, "You are helping %s send a better message to %s.\n\n", sender, receiver)
	b.WriteString(FormatSenderContext(c))
	b.WriteString("\n\n")
	b.WriteString(FormatReceiverContext(c))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "IMPORTANT: Your coaching is for the SENDER only. Address only %q using \"you/your\".\n", sender)
	b.WriteString("Never use \"we/us/our/both\" - you are not part of their relationship.\n")
	b.WriteString("=== END CONTEXT ===")
	return b.String()
}

// FormatConversation renders the recent window, oldest first.
func FormatConversation(c *Context) string {
	if c == nil || len(c.Conversation.RecentMessages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, m := range c.Conversation.RecentMessages {
		role := "Other"
		if m.SenderID == c.Roles.Sender.ID {
			role = orDefault(c.Roles.Sender.DisplayName, "Sender")
		} else if m.SenderID == c.Roles.Receiver.ID {
			role = orDefault(c.Roles.Receiver.DisplayName, "Receiver")
		}
		fmt.Fprintf(&b, "- %s: %s\n", role, m.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
