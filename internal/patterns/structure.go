package patterns

import "regexp"

// Sentence types.
const (
	SentenceAccusation = "accusation"
	SentenceQuestion   = "question"
	SentenceRequest    = "request"
	SentenceStatement  = "statement"
	SentenceDemand     = "demand"
	SentenceThreat     = "threat"
	SentenceUnknown    = "unknown"
)

// Targets.
const (
	TargetOtherParent = "other_parent"
	TargetSelf        = "self"
	TargetChild       = "child"
	TargetThirdParty  = "third_party"
	TargetSituation   = "situation"
	TargetUnclear     = "unclear"
)

// Tenses.
const (
	TensePast    = "past"
	TensePresent = "present"
	TenseFuture  = "future"
	TenseMixed   = "mixed"
	TenseUnknown = "unknown"
)

var (
	accusationPatterns = Compile(
		`^you\s+(did|didn't|never|always|don't|won't|can't)\b`,
		`\byou('re| are)\s+(the|a|so|such|being|always|basically|just|really)\b`,
		`\bit's\s+(your|all your)\s+fault\b`,
		`\bbecause\s+of\s+you\b`,
		`\byou\s+made\s+(me|her|him|this|it)\b`,
		`\byou('re| are)\s+\w+ing\s+(the kids?|them|her|him)\b`,
	)

	questionPatterns = Compile(
		`\?$`,
		`^(can|could|would|will|do|did|are|is|have|has|why|what|when|where|how)\b`,
		`^(don't|doesn't|didn't|won't|wouldn't|isn't|aren't)\s+you\b`,
	)

	requestPatterns = Compile(
		`\bcan\s+(you|we)\b`,
		`\bcould\s+(you|we)\b`,
		`\bwould\s+you\s+(mind|be able|please)\b`,
		`\bplease\b`,
		`\bi('d| would)\s+appreciate\b`,
		`\bi('d| would)\s+like\b`,
		`\bwhen\s+you\s+get\s+a\s+chance\b`,
	)

	demandPatterns = Compile(
		`\byou\s+need\s+to\b`,
		`\byou\s+have\s+to\b`,
		`\byou\s+must\b`,
		`\byou\s+better\b`,
		`\bjust\s+do\s+it\b`,
		`\bstop\s+(doing|being|it)\b`,
		`^(do|stop|don't)\s+\w+`,
	)

	threatPatterns = Compile(
		`\bif\s+you\s+(don't|won't|can't)\b.*\bi('ll| will)\b`,
		`\bi('ll| will)\s+\w+\s+if\s+you\b`,
		`\bor\s+else\b`,
		`\bi('m| am)\s+going\s+to\s+\w+\s+(you|the|my lawyer|court)\b`,
		`\bmy\s+lawyer\b`,
		`\btake\s+you\s+to\s+court\b`,
		`\bfull\s+custody\b`,
	)

	targetVotes = []Vote{
		{TargetOtherParent, Compile(`\byou\b`, `\byour\b`)},
		{TargetSelf, Compile(`\bi\s`, `\bmy\s`, `\bi'm\b`, `\bi've\b`)},
		{TargetChild, Compile(`\bshe\b`, `\bhe\b`, `\bthem\b`, `\bthe\s+kids?\b`)},
		{TargetThirdParty, Compile(`\b(teacher|doctor|lawyer|counselor|therapist)\b`)},
		{TargetSituation, Compile(`\bthe\s+(situation|schedule|plan|arrangement)\b`, `\bit\s+is\b`, `\bthis\s+is\b`)},
	}

	tenseVotes = []Vote{
		{TensePast, Compile(`\b(did|was|were|had|went|said|forgot|remembered)\b`, `\blast\s+(time|week|month)\b`)},
		{TensePresent, Compile(`\b(is|are|am|do|does)\b|'s\b|'re\b|'m\b`, `\bright\s+now\b`)},
		{TenseFuture, Compile(`\b(will|going to|tomorrow|next\s+(time|week|month))\b`)},
	}

	concreteRequestPattern = Compile(`\b(can|could|would)\s+(you|we)\s+\w+\s+(the|her|him|on|at|by)\b`)
	proposedChangePattern  = Compile(`\b(let's|how about|what if|could we|can we)\b`, `\bgoing forward\b`)
)

// Structure describes the shape of a message.
type Structure struct {
	SentenceType       string
	Target             string
	Tense              string
	HasConcreteRequest bool
	HasProposedChange  bool
	IsConstructive     bool
}

// sentenceRules is ordered threat > demand > accusation > request > question.
// A demand only counts when no polite request phrasing is present.
func sentenceRules(childNames []string) *RuleSet {
	accusation := accusationPatterns
	if len(childNames) > 0 {
		named := regexp.MustCompile(`(?i)\byou('re| are)\s+\w+ing\s+` + childExpr(childNames) + `\b`)
		accusation = append(append(Matcher{}, accusationPatterns...), named)
	}
	return NewRuleSet(SentenceStatement,
		Rule{Name: SentenceThreat, Match: MatchAny(threatPatterns)},
		Rule{Name: SentenceDemand, Match: func(text string) bool {
			return demandPatterns.Any(text) && !requestPatterns.Any(text)
		}},
		Rule{Name: SentenceAccusation, Match: MatchAny(accusation)},
		Rule{Name: SentenceRequest, Match: MatchAny(requestPatterns)},
		Rule{Name: SentenceQuestion, Match: MatchAny(questionPatterns)},
	)
}

var defaultSentenceRules = sentenceRules(nil)

// SentenceType classifies text without child-name awareness.
func SentenceType(text string) string {
	return defaultSentenceRules.Classify(text)
}

// Target returns the category with the most keyword hits.
func Target(text string) string {
	winner, _ := Tally(text, targetVotes)
	if winner == "" {
		return TargetUnclear
	}
	return winner
}

// Tense returns past, present or future, or mixed when more than one tense
// has hits. Text with no tense markers is present.
func Tense(text string) string {
	winner, nonZero := Tally(text, tenseVotes)
	switch {
	case nonZero > 1:
		return TenseMixed
	case winner == "":
		return TensePresent
	default:
		return winner
	}
}

// DetectStructure classifies sentence type, target and tense.
func DetectStructure(text string, childNames []string) Structure {
	rules := defaultSentenceRules
	if len(childNames) > 0 {
		rules = cachedForNames("sentence", childNames, sentenceRules)
	}
	s := Structure{
		SentenceType:       rules.Classify(text),
		Target:             Target(text),
		Tense:              Tense(text),
		HasConcreteRequest: concreteRequestPattern.Any(text),
		HasProposedChange:  proposedChangePattern.Any(text),
	}
	s.IsConstructive = s.SentenceType == SentenceRequest || s.SentenceType == SentenceQuestion || s.HasProposedChange
	return s
}

// Flags implements Detection.
func (s Structure) Flags() Flags {
	return Flags{
		"has_concrete_request": s.HasConcreteRequest,
		"has_proposed_change":  s.HasProposedChange,
		"is_constructive":      s.IsConstructive,
	}
}

var sentenceDescriptions = map[string]string{
	SentenceAccusation: "Structured as accusation",
	SentenceQuestion:   "Structured as question",
	SentenceRequest:    "Structured as polite request",
	SentenceStatement:  "Structured as neutral statement",
	SentenceDemand:     "Structured as demand/command",
	SentenceThreat:     "Contains threat or ultimatum",
}

// Summarize implements Detection.
func (s Structure) Summarize() []string {
	var out []string
	if d, ok := sentenceDescriptions[s.SentenceType]; ok {
		out = append(out, d)
	} else {
		out = append(out, "Structure unclear")
	}

	switch s.Target {
	case TargetOtherParent:
		out = append(out, "Directed at the other parent")
	case TargetSituation:
		out = append(out, "Directed at the situation (not personal)")
	case TargetChild:
		out = append(out, "Focused on the child")
	}

	switch s.Tense {
	case TensePast:
		out = append(out, "Refers to past events")
	case TenseFuture:
		out = append(out, "Future-oriented")
	}

	if !s.HasConcreteRequest && s.SentenceType != SentenceStatement {
		out = append(out, "No concrete request or proposed change")
	}
	if s.HasProposedChange {
		out = append(out, "Includes proposed change or solution")
	}
	return out
}
