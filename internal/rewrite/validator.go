// Package rewrite checks that suggested rewrites are written in the
// sender's voice and supplies pre-authored fallbacks when they are not.
//
// A rewrite must read as an alternative message the sender could send
// instead of their draft. Text that reads like the receiver's reply
// ("I understand you're upset", "That hurt me") is rejected.
package rewrite

import "github.com/fyrsmithlabs/mediatord/internal/patterns"

// Version identifies the indicator tables.
const Version = "1.0.0"

// Validation reasons.
const (
	ReasonReceiverPerspective = "receiver_perspective_detected"
	ReasonEmpty               = "empty_or_invalid"
	ReasonMissing             = "missing"
)

const (
	receiverConfidence = 85
	senderBase         = 60
	senderStep         = 10
	senderMax          = 95
)

// Indicator is a named group of expressions.
type Indicator struct {
	Name    string
	Matcher patterns.Matcher
}

// ReceiverIndicators are checked in order. Any match rejects a rewrite.
var ReceiverIndicators = []Indicator{
	{"empathy_opener", patterns.Compile(
		`^\s*i\s+(understand|see|hear|know|get)\s+(that\s+)?(you're|you\s+are|you\s+feel|how\s+you)`,
	)},
	{"hurt_reaction", patterns.Compile(
		`\bthat\s+(hurt|hurts|stung)\b`,
		`\bthat('s|\s+was|\s+is)\s+(hurtful|mean|rude|uncalled\s+for)\b`,
		`\bhearing\s+that\b`,
		`\bi\s+felt\s+(attacked|hurt|disrespected|insulted)\b`,
		`\bwhy\s+would\s+you\s+say\b`,
	)},
	{"references_their_words", patterns.Compile(
		`\bwhat\s+you\s+(just\s+)?(said|wrote)\b`,
		`\bwhen\s+you\s+said\b`,
		`\bwhat\s+(exactly\s+)?do\s+you\s+mean\b`,
		`\bwhat's\s+bothering\s+you\b`,
	)},
	{"defensive", patterns.Compile(
		`\bthat('s|\s+is)\s+not\s+(fair|true|okay|ok|acceptable)\b`,
		`\bi('m|\s+am)\s+doing\s+my\s+best\b`,
		`\bi\s+don't\s+(appreciate|deserve)\b`,
		`\bi\s+didn't\s+mean\s+to\b`,
		`\bwhat\s+i\s+did\s+wrong\b`,
		`\b(treated|spoken\s+to|talked\s+to)\s+(like\s+this|this\s+way|that\s+way)\b`,
		`\bcalm\s+down\b`,
	)},
	{"dismissive", patterns.Compile(
		`\bsorry\s+(that\s+)?you\s+feel\b`,
		`\bsorry\s+you're\s+upset\b`,
	)},
}

// SenderIndicators raise confidence in a valid rewrite.
var SenderIndicators = []Indicator{
	{"i_feel", patterns.Compile(
		`\bi\s+(feel|felt)\b`,
		`\bi('m|\s+am)\s+(feeling|frustrated|worried|concerned|overwhelmed|stressed|anxious|having\s+a\s+hard\s+time)\b`,
	)},
	{"i_need", patterns.Compile(
		`\bi\s+need\b`,
		`\b(and|but)\s+need\s+(us|to|some|help)\b`,
		`\bi('d|\s+would)\s+(like|prefer|appreciate)\b`,
	)},
	{"collaborative", patterns.Compile(
		`\b(can|could|shall)\s+we\b`,
		`\blet's\b`,
		`\btogether\b`,
		`\bboth\s+of\s+us\b`,
	)},
	{"request", patterns.Compile(
		`\b(can|could|would)\s+you\b`,
		`\bplease\b`,
		`\bwould\s+it\s+be\s+possible\b`,
	)},
}

// Result is the verdict for one rewrite.
type Result struct {
	Valid         bool     `json:"valid"`
	Reason        string   `json:"reason,omitempty"`
	Confidence    int      `json:"confidence"`
	SenderSignals bool     `json:"sender_signals"`
	Matched       string   `json:"matched,omitempty"`
	Signals       []string `json:"signals,omitempty"`
}

// ValidateRewritePerspective checks a single rewrite.
func ValidateRewritePerspective(text string) Result {
	text = patterns.Normalize(text)
	if text == "" {
		return Result{Reason: ReasonEmpty}
	}

	for _, ind := range ReceiverIndicators {
		if ind.Matcher.Any(text) {
			return Result{
				Reason:     ReasonReceiverPerspective,
				Confidence: receiverConfidence,
				Matched:    ind.Name,
			}
		}
	}

	var signals []string
	for _, ind := range SenderIndicators {
		if ind.Matcher.Any(text) {
			signals = append(signals, ind.Name)
		}
	}
	return Result{
		Valid:         true,
		Confidence:    min(senderMax, senderBase+senderStep*len(signals)),
		SenderSignals: len(signals) > 0,
		Signals:       signals,
	}
}

// InterventionResult is the verdict for a rewrite pair.
type InterventionResult struct {
	Valid      bool   `json:"valid"`
	AnyFailed  bool   `json:"any_failed"`
	BothFailed bool   `json:"both_failed"`
	Rewrite1   Result `json:"rewrite1"`
	Rewrite2   Result `json:"rewrite2"`
}

// ValidateIntervention requires both rewrites of c to be valid. An unset
// rewrite fails with ReasonMissing.
func ValidateIntervention(c Candidate) InterventionResult {
	r1 := validateOptional(c.Rewrite1)
	r2 := validateOptional(c.Rewrite2)
	return InterventionResult{
		Valid:      r1.Valid && r2.Valid,
		AnyFailed:  !r1.Valid || !r2.Valid,
		BothFailed: !r1.Valid && !r2.Valid,
		Rewrite1:   r1,
		Rewrite2:   r2,
	}
}

func validateOptional(text string) Result {
	if text == "" {
		return Result{Reason: ReasonMissing}
	}
	return ValidateRewritePerspective(text)
}
