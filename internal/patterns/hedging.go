package patterns

import "strings"

var (
	hedgePatterns = Compile(
		`\b(just|maybe|perhaps|possibly|probably)\b`,
		`\b(kind of|sort of|a little|a bit)\b`,
		`\bi\s+(think|guess|feel like|was wondering)\b`,
		`\bif\s+(that's|it's)\s+(ok|okay|alright|possible)\b`,
		`\bif\s+possible\b`,
	)

	apologeticPatterns = Compile(
		`\bsorry\s+(to|for|but)\b`,
		`\bi\s+apologi[sz]e\b`,
		`\bi\s+hate\s+to\s+ask\b`,
		`\bi\s+know\s+you('re| are)\s+busy\b`,
	)

	reasonPatterns = Compile(`\b(because|since|the reason)\b`)
)

// Hedging reports softening and over-qualification.
type Hedging struct {
	OverExplaining bool
	Apologetic     bool
	Softeners      bool
	Direct         bool
	Excessive      bool
	Hedges         []string
}

// DetectHedging runs the hedging detector.
func DetectHedging(text string) Hedging {
	hedges := hedgePatterns.FindAll(text)
	reasons := len(reasonPatterns[0].FindAllString(text, -1))
	h := Hedging{
		Hedges:         hedges,
		Softeners:      len(hedges) > 0,
		Excessive:      len(hedges) >= 3,
		Apologetic:     apologeticPatterns.Any(text),
		OverExplaining: reasons >= 2 || len(strings.Fields(text)) > 80,
	}
	h.Direct = !h.Softeners && !h.Apologetic
	return h
}

// Flags implements Detection.
func (h Hedging) Flags() Flags {
	return Flags{
		"over_explaining":    h.OverExplaining,
		"apologetic_framing": h.Apologetic,
		"hedging_softeners":  h.Softeners,
		"direct_statement":   h.Direct,
		"excessive_hedging":  h.Excessive,
	}
}

// Summarize implements Detection.
func (h Hedging) Summarize() []string {
	var out []string
	if h.Excessive {
		out = append(out, "Heavy use of hedging or softening language")
	}
	if h.Apologetic {
		out = append(out, "Apologetic framing before the main point")
	}
	if h.OverExplaining {
		out = append(out, "Extended justification around the point")
	}
	if h.Softeners && !h.Excessive {
		out = append(out, "Uses softening language")
	}
	return out
}
