package patterns

var (
	askPatterns = Compile(
		`\b(can|could|would)\s+(you|we)\b`,
		`\bplease\b`,
		`\bi('d| would)\s+like\b`,
		`\b(swap|switch|trade|reschedule|move)\b`,
	)

	detailPatterns = Compile(
		`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|weekend|tomorrow|tonight|today)\b`,
		`\b\d{1,2}(:\d{2})?\s*(am|pm)?\b`,
		`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`,
		`\b(pickup|pick-up|pick up|drop-?off|drop off|appointment|practice|recital|game|conference)\b`,
	)

	vagueTermPatterns = Compile(
		`\b(more|better|differently|things|stuff|step up|act right|get it together|do your part)\b`,
	)

	complaintPatterns = Compile(
		`\b(late|missed|forgot|didn't|wasn't|never showed|no-show)\b`,
		`\b(always|never|constantly|everything|nothing)\b`,
		`\b(ridiculous|unacceptable|sick of|tired of|fed up)\b`,
	)
)

// Specificity separates vague complaints and asks from specific ones.
type Specificity struct {
	VagueComplaint    bool
	VagueRequest      bool
	SpecificComplaint bool
	SpecificRequest   bool
}

// DetectSpecificity runs the specificity detector.
func DetectSpecificity(text string) Specificity {
	asks := askPatterns.Any(text)
	detailed := detailPatterns.Any(text)
	complains := complaintPatterns.Any(text)
	return Specificity{
		SpecificRequest:   asks && detailed,
		VagueRequest:      asks && !detailed && vagueTermPatterns.Any(text),
		SpecificComplaint: complains && detailed && !asks,
		VagueComplaint:    complains && !detailed && !asks,
	}
}

// Flags implements Detection.
func (s Specificity) Flags() Flags {
	return Flags{
		"vague_complaint":    s.VagueComplaint,
		"vague_request":      s.VagueRequest,
		"specific_complaint": s.SpecificComplaint,
		"specific_request":   s.SpecificRequest,
	}
}

// Summarize implements Detection.
func (s Specificity) Summarize() []string {
	var out []string
	if s.VagueComplaint {
		out = append(out, "Complaint without specific details")
	}
	if s.VagueRequest {
		out = append(out, "Request lacks specific details")
	}
	if s.SpecificComplaint {
		out = append(out, "Complaint refers to a specific event")
	}
	if s.SpecificRequest {
		out = append(out, "Includes specific request details")
	}
	return out
}
