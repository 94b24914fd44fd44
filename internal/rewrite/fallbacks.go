package rewrite

import (
	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/generation"
	"github.com/fyrsmithlabs/mediatord/internal/patterns"
)

// Categories select a fallback set.
const (
	CategoryAttack        = "attack"
	CategoryBlame         = "blame"
	CategoryDemand        = "demand"
	CategoryThreat        = "threat"
	CategoryTriangulation = "triangulation"
	CategoryGeneric       = "generic"
)

const fallbackConfidence = 70

// Candidate is a pair of suggested rewrites shown to the sender.
type Candidate struct {
	Original   string `json:"original"`
	Rewrite1   string `json:"rewrite1"`
	Rewrite2   string `json:"rewrite2"`
	Tip        string `json:"tip"`
	Category   string `json:"category,omitempty"`
	Confidence int    `json:"confidence"`
	IsFallback bool   `json:"is_fallback"`
}

type fallbackSet struct {
	rewrite1 string
	rewrite2 string
	tip      string
}

// Fallbacks holds the pre-authored sets. Every rewrite passes
// ValidateRewritePerspective.
var fallbacks = map[string]fallbackSet{
	CategoryAttack: {
		rewrite1: "I'm feeling really frustrated right now and need a moment before we keep talking.",
		rewrite2: "Something isn't working for me here. Can we talk about what would help?",
		tip:      "Name the feeling behind the reaction instead of labeling the other person.",
	},
	CategoryBlame: {
		rewrite1: "I'm feeling overwhelmed with how things have been going and need us to work on this together.",
		rewrite2: "I'd like us to figure out what went wrong and how to handle it going forward.",
		tip:      "Focus on the problem you want solved, not on who caused it.",
	},
	CategoryDemand: {
		rewrite1: "Would you be willing to help with this? It would make a real difference for me.",
		rewrite2: "I need some help with this. Can we figure out a plan that works for both of us?",
		tip:      "Turn the demand into a specific request the other parent can say yes to.",
	},
	CategoryThreat: {
		rewrite1: "I'm worried we're not making progress on this and want to find a way forward together.",
		rewrite2: "This matters a lot to me. Can we try to resolve it between us first?",
		tip:      "Share the outcome you want instead of the consequence you are considering.",
	},
	CategoryTriangulation: {
		rewrite1: "I'd like to talk with you directly about this instead of passing messages through the kids.",
		rewrite2: "I don't want the kids caught in the middle. Can we discuss this between us?",
		tip:      "Keep the children out of adult conversations.",
	},
	CategoryGeneric: {
		rewrite1: "I have a concern I'd like to talk through when you have a moment.",
		rewrite2: "Can we find a time to discuss this so we can work it out?",
		tip:      "Say what you need and keep the focus on a next step.",
	},
}

// Categories returns every category with a fallback set.
func Categories() []string {
	return []string{
		CategoryAttack,
		CategoryBlame,
		CategoryDemand,
		CategoryThreat,
		CategoryTriangulation,
		CategoryGeneric,
	}
}

var categoryRules = patterns.NewRuleSet(CategoryGeneric,
	patterns.Rule{Name: CategoryThreat, Match: patterns.MatchAny(patterns.Compile(
		`\b(my\s+)?(lawyer|attorney)\b`,
		`\b(court|police|cps|judge)\b`,
		`\bor\s+else\b`,
		`\bfull\s+custody\b`,
		`\byou('ll|\s+will)\s+regret\b`,
	))},
	patterns.Rule{Name: CategoryTriangulation, Match: patterns.MatchAny(patterns.Compile(
		`\btell\s+(your\s+(dad|mom|father|mother)|him|her|them|the\s+kids?)\b`,
		`\bask\s+(your\s+(dad|mom|father|mother)|the\s+kids?)\b`,
		`\bthe\s+kids?\s+(said|told\s+me)\b`,
	))},
	patterns.Rule{Name: CategoryAttack, Match: patterns.MatchAny(patterns.Compile(
		`\byou\s+suck\b`,
		`\byou('re|\s+are)\s+(an?\s+|such\s+an?\s+|so\s+)?(idiot|jerk|moron|stupid|pathetic|loser|worthless|useless|liar|(terrible|horrible|awful)\s+(person|parent|mother|father))\b`,
	))},
	patterns.Rule{Name: CategoryBlame, Match: patterns.MatchAny(patterns.Compile(
		`\byour\s+fault\b`,
		`\bbecause\s+of\s+you\b`,
		`\byou\s+(always|never)\b`,
		`\byou\s+(made|caused|ruined)\b`,
	))},
	patterns.Rule{Name: CategoryDemand, Match: patterns.MatchAny(patterns.Compile(
		`\byou\s+(should|must|need\s+to|have\s+to|had\s+better)\b`,
	))},
)

// DetectCategory picks the fallback category for message. Analyzer flags
// take precedence over the text rules.
func DetectCategory(message string, a *analyzer.Analysis) string {
	if a != nil && a.Valid() {
		switch {
		case a.Flag("child_triangulation") || a.Flag("child_as_weapon"):
			return CategoryTriangulation
		case a.Flag("evaluative_character"):
			return CategoryAttack
		case a.Flag("global_negative"):
			return CategoryBlame
		}
	}
	message = patterns.Normalize(message)
	if message == "" {
		return CategoryGeneric
	}
	return categoryRules.Classify(message)
}

// GetFallbackRewrites returns the pre-authored candidate for the
// message's category.
func GetFallbackRewrites(message string, a *analyzer.Analysis) Candidate {
	category := DetectCategory(message, a)
	set := fallbacks[category]
	return Candidate{
		Original:   message,
		Rewrite1:   set.rewrite1,
		Rewrite2:   set.rewrite2,
		Tip:        set.tip,
		Category:   category,
		Confidence: fallbackConfidence,
		IsFallback: true,
	}
}

// Resolve turns a generation attempt into a usable candidate. A failed
// call or a pair with any receiver-voice rewrite is replaced by the
// category fallback.
func Resolve(message string, a *analyzer.Analysis, generated Candidate, err error) generation.Outcome[Candidate] {
	if err != nil {
		return generation.Fallback(GetFallbackRewrites(message, a), generation.ReasonNone, err)
	}
	if ValidateIntervention(generated).AnyFailed {
		return generation.Fallback(GetFallbackRewrites(message, a), generation.ReasonValidationFailed, nil)
	}
	generated.Original = message
	generated.IsFallback = false
	if generated.Category == "" {
		generated.Category = DetectCategory(message, a)
	}
	generated.Confidence = max(0, min(100, generated.Confidence))
	return generation.Generated(generated)
}
