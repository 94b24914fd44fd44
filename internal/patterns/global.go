package patterns

import "strings"

var (
	negativeTraits = `(failing|ruining|neglecting|destroying|terrible|awful|horrible|useless|worthless|pathetic|selfish|irresponsible|careless|lazy|hopeless|unreliable|the worst|a mess|a joke|a disaster)`

	globalNegativePatterns = Compile(
		`\byou\s+(always|never|constantly)\b`,
		`\byou('re| are)\s+(basically\s+|just\s+|always\s+|really\s+|so\s+|such\s+an?\s+|an?\s+)?`+negativeTraits+`\b`,
		`\b(every\s+single\s+time|every\s+time)\b.*\byou\b`,
		`\bnothing\s+you\s+(do|say)\b`,
		`\byou\s+(can't|cannot)\s+ever\b`,
		`\byou\s+ruin\s+everything\b`,
	)

	globalPositivePatterns = Compile(
		`\byou('re| are)\s+(always\s+|such\s+an?\s+|so\s+|a\s+|an\s+)?(great|wonderful|amazing|good|helpful|thoughtful|patient|reliable)\b`,
		`\byou\s+always\s+(help|make sure|remember|show up)\b`,
	)

	specificBehaviorPatterns = Compile(
		`\b(on|last|this|next)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday|weekend)\b`,
		`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`,
		`\b(yesterday|today|tonight|this morning|this afternoon)\b`,
		`\bat\s+\d{1,2}(:\d{2})?\s*(am|pm)?\b`,
		`\b\d+\s+minutes?\s+late\b`,
	)

	specificImpactPatterns = Compile(
		`\b(so|which meant|as a result)\b.*\b(missed|late|couldn't|had to|waited)\b`,
		`\b(she|he|they|i|we)\s+(missed|waited|was late|were late|had to)\b`,
	)

	absolutePatterns = Compile(
		`\b(always|never|constantly|every time|everything|nothing|nobody|everyone)\b`,
	)
)

// GlobalSpecific reports sweeping characterizations versus references to
// concrete behavior.
type GlobalSpecific struct {
	GlobalPositive   bool
	GlobalNegative   bool
	SpecificBehavior bool
	SpecificImpact   bool
	Absolutes        []string
}

// DetectGlobalSpecific runs the global/specific detector.
func DetectGlobalSpecific(text string) GlobalSpecific {
	return GlobalSpecific{
		GlobalPositive:   globalPositivePatterns.Any(text),
		GlobalNegative:   globalNegativePatterns.Any(text),
		SpecificBehavior: specificBehaviorPatterns.Any(text),
		SpecificImpact:   specificImpactPatterns.Any(text),
		Absolutes:        absolutePatterns.FindAll(text),
	}
}

// Flags implements Detection.
func (g GlobalSpecific) Flags() Flags {
	return Flags{
		"global_positive":   g.GlobalPositive,
		"global_negative":   g.GlobalNegative,
		"specific_behavior": g.SpecificBehavior,
		"specific_impact":   g.SpecificImpact,
	}
}

// Summarize implements Detection.
func (g GlobalSpecific) Summarize() []string {
	var out []string
	if g.GlobalNegative {
		out = append(out, "Global negative characterization of the other parent")
	}
	if len(g.Absolutes) > 0 {
		out = append(out, "Uses absolute language ("+joinQuoted(g.Absolutes)+")")
	}
	if g.GlobalPositive {
		out = append(out, "Global positive characterization")
	}
	if g.SpecificBehavior {
		out = append(out, "References a specific time or event")
	}
	if g.SpecificImpact {
		out = append(out, "Describes a concrete impact")
	}
	return out
}

func joinQuoted(words []string) string {
	return `"` + strings.Join(words, `", "`) + `"`
}
