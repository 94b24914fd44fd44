package escalation

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/patterns"
)

var (
	accusatoryPatterns    = patterns.Compile(`\byou\s+(always|never)\b`)
	triangulationPatterns = patterns.Compile(`\b(she|he)\s+(told me|said)\b`, `\bthe\s+kids?\s+(said|told me|want)\b`)
	comparisonPatterns    = patterns.Compile(`\b(fine with me|never does that|at my house|at your house)\b`)
	blamingPatterns       = patterns.Compile(`\b(your fault|because of you|you made|you caused)\b`)
)

var signalReasons = map[string]string{
	PatternAccusatory:    "Accusatory framing",
	PatternTriangulation: "References the children against the other parent",
	PatternComparison:    "Compares households or parenting",
	PatternBlaming:       "Assigns blame",
}

// DetectSignals returns the conflict patterns text matches, in a fixed
// order. Analyzer flags count as matches when present.
func DetectSignals(text string, a *analyzer.Analysis) []string {
	valid := a != nil && a.Valid()
	var out []string
	if accusatoryPatterns.Any(text) || (valid && a.Structure.SentenceType == patterns.SentenceAccusation) {
		out = append(out, PatternAccusatory)
	}
	if triangulationPatterns.Any(text) || (valid && (a.Flag("child_triangulation") || a.Flag("child_as_messenger"))) {
		out = append(out, PatternTriangulation)
	}
	if comparisonPatterns.Any(text) {
		out = append(out, PatternComparison)
	}
	if blamingPatterns.Any(text) {
		out = append(out, PatternBlaming)
	}
	return out
}

func buildPrompt(state State, text string, a *analyzer.Analysis) string {
	var b strings.Builder
	b.WriteString("You assess conflict escalation risk in a co-parenting conversation.\n")
	b.WriteString("Describe language patterns only. Do not diagnose either parent.\n\n")
	fmt.Fprintf(&b, "Current escalation score: %d/100\n", state.Score)
	fmt.Fprintf(&b, "Pattern counts: accusatory=%d triangulation=%d comparison=%d blaming=%d\n\n",
		state.PatternCounts[PatternAccusatory],
		state.PatternCounts[PatternTriangulation],
		state.PatternCounts[PatternComparison],
		state.PatternCounts[PatternBlaming])
	if a != nil {
		b.WriteString(analyzer.FormatForPrompt(*a))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Message:\n%q\n", text)
	return b.String()
}
