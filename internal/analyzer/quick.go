package analyzer

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/mediatord/internal/patterns"
)

var quickPatterns = patterns.Compile(
	`\b(always|never)\b`,
	`\byou('re| are)\s+(a\s+)?\w*(bad|terrible|awful|worst)\b`,
	`\b(your fault|because of you|you made)\b`,
	`\b(stupid|idiot|pathetic|worthless|useless)\b`,
	`\b(lawyer|court|custody|or else)\b`,
)

// QuickCheck is a cheap pre-filter reporting whether text likely needs a
// full analysis.
func QuickCheck(text string) bool {
	text = patterns.Normalize(text)
	if text == "" {
		return false
	}
	return quickPatterns.Any(text)
}

// FormatForPrompt renders the analysis as a compact block for a
// generation prompt.
func FormatForPrompt(a Analysis) string {
	if !a.Valid() {
		return "LANGUAGE ANALYSIS: Unable to analyze message"
	}

	var b strings.Builder
	b.WriteString("=== LANGUAGE ANALYSIS (factual observations) ===\n\n")

	if len(a.Summary) > 0 {
		b.WriteString("Observations:\n")
		for _, obs := range a.Summary {
			fmt.Fprintf(&b, "• %s\n", obs)
		}
		b.WriteString("\n")
	}

	var flags []string
	for _, f := range []struct{ flag, label string }{
		{"global_negative", "global_negative"},
		{"evaluative_character", "character_evaluation"},
		{"child_as_weapon", "child_as_weapon"},
		{"child_triangulation", "triangulation"},
		{"vague_complaint", "vague_complaint"},
	} {
		if a.Flag(f.flag) {
			flags = append(flags, f.label)
		}
	}
	if !a.Flag("has_concrete_request") {
		flags = append(flags, "no_concrete_request")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "Pattern flags: %s\n", strings.Join(flags, ", "))
	}

	fmt.Fprintf(&b, "Structure: %s → %s", a.Structure.SentenceType, a.Structure.Target)
	if len(a.Structure.AbsolutesUsed) > 0 {
		fmt.Fprintf(&b, "\nAbsolutes used: %s", strings.Join(a.Structure.AbsolutesUsed, ", "))
	}
	return b.String()
}
