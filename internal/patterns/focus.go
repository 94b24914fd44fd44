package patterns

import "regexp"

var (
	logisticsPatterns = Compile(
		`\b(pickup|pick-up|pick up|drop-?off|drop off|schedule|school|practice|appointment|calendar|meeting|swap|exchange|handoff)\b`,
		`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|weekend)\b`,
		`\b\d{1,2}(:\d{2})?\s*(am|pm)\b`,
	)

	characterFocusPatterns = Compile(
		`\byou('re| are)\s+(such\s+an?\s+|an?\s+|so\s+|always\s+|basically\s+|just\s+)?(selfish|lazy|irresponsible|careless|liar|narcissist|manipulative|toxic|crazy|failing|terrible|useless|pathetic)\b`,
		`\b(kind of person|the parent you are|who you are)\b`,
	)

	relationshipPatterns = Compile(
		`\b(our marriage|our relationship|when we were together|when you left|the divorce|your new (boyfriend|girlfriend|partner|wife|husband))\b`,
	)

	pastPatterns = Compile(
		`\blast\s+(time|week|month|year)\b`,
		`\b(back when|remember when|used to|you did)\b`,
	)

	futurePatterns = Compile(
		`\b(going forward|from now on|in the future|next\s+(time|week|month))\b`,
		`\b(tomorrow|let's plan|plan for)\b`,
	)

	childFocusBase = `\b(she|he|her|his|the kids?|the children|our (son|daughter|kids?))\b`
)

// Focus describes what the message concentrates on.
type Focus struct {
	Logistics    bool
	Character    bool
	Child        bool
	Relationship bool
	Past         bool
	Future       bool
}

// DetectFocus runs the focus detector.
func DetectFocus(text string, childNames []string) Focus {
	child := cachedForNames("focus", childNames, func(names []string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)` + childFocusBase + `|\b` + childExpr(names) + `\b`)
	})
	return Focus{
		Logistics:    logisticsPatterns.Any(text),
		Character:    characterFocusPatterns.Any(text),
		Child:        child.MatchString(text),
		Relationship: relationshipPatterns.Any(text),
		Past:         pastPatterns.Any(text),
		Future:       futurePatterns.Any(text),
	}
}

// Flags implements Detection.
func (f Focus) Flags() Flags {
	return Flags{
		"logistics_focused":    f.Logistics,
		"character_focused":    f.Character,
		"child_focused":        f.Child,
		"relationship_focused": f.Relationship,
		"past_focused":         f.Past,
		"future_focused":       f.Future,
	}
}

// Summarize implements Detection. The most problematic focus comes first.
func (f Focus) Summarize() []string {
	var out []string
	if f.Character {
		out = append(out, "Focused on character rather than behavior")
	}
	if f.Relationship {
		out = append(out, "Brings in relationship history")
	}
	if f.Past {
		out = append(out, "Focused on past events")
	}
	if f.Child {
		out = append(out, "Centered on the child")
	}
	if f.Future {
		out = append(out, "Oriented toward future arrangements")
	}
	if f.Logistics {
		out = append(out, "Focused on logistics")
	}
	return out
}
