package patterns

import "regexp"

// ChildInvolvement reports how children appear in a message.
type ChildInvolvement struct {
	Mentioned      bool
	AsMessenger    bool
	AsWeapon       bool
	WellbeingCited bool
	Triangulation  bool
}

type childMatchers struct {
	mentioned     *regexp.Regexp
	messenger     Matcher
	weapon        Matcher
	wellbeing     Matcher
	triangulation Matcher
}

func compileChildMatchers(childNames []string) *childMatchers {
	child := childExpr(childNames)
	subject := `(?:` + child + `|she|he)`

	return &childMatchers{
		mentioned: regexp.MustCompile(`(?i)\b` + child + `\b`),
		messenger: Matcher{
			regexp.MustCompile(`(?i)\btell\s+your\s+(dad|mom|father|mother|daddy|mommy)\b`),
			regexp.MustCompile(`(?i)\b(have|let|ask)\s+(` + child + `|her|him)\s+(tell|ask|give)\s+you\b`),
			regexp.MustCompile(`(?i)\b` + child + `\s+(will|can)\s+(tell|give)\s+you\b`),
		},
		weapon: Matcher{
			regexp.MustCompile(`(?i)\byou('re| are)\s+(\w+\s+)?(failing|hurting|ruining|neglecting|damaging|destroying|traumatizing)\s+(` + child + `|them|her|him)\b`),
			regexp.MustCompile(`(?i)\b` + child + `\s+(deserves?|needs?)\s+(a\s+)?better\b`),
			regexp.MustCompile(`(?i)\b` + child + `\s+(is|are)\s+(scared|ashamed|embarrassed)\s+of\s+you\b`),
		},
		wellbeing: Matcher{
			regexp.MustCompile(`(?i)\b` + subject + `('s|\s+is|\s+are|\s+was|\s+has been|\s+seems)\s+(so\s+|really\s+|very\s+)?(sad|upset|anxious|scared|crying|stressed|worried|hurt|sick|struggling|exhausted)\b`),
			regexp.MustCompile(`(?i)\b(for|about)\s+` + child + `('s)?\s+(sake|wellbeing|well-being|health|grades|safety)\b`),
		},
		triangulation: Matcher{
			regexp.MustCompile(`(?i)\b` + subject + `\s+(told me|said|says|keeps saying)\b.*\byou\b`),
			regexp.MustCompile(`(?i)\b` + subject + `\s+(doesn't want|does not want|hates|would rather|prefers)\b`),
			regexp.MustCompile(`(?i)\b` + subject + `\s+wants\s+to\s+(stay|live)\s+with\s+me\b`),
		},
	}
}

// DetectChildInvolvement runs the child-involvement detector. childNames
// extends the generic child references with the family's actual names.
func DetectChildInvolvement(text string, childNames []string) ChildInvolvement {
	m := cachedForNames("child", childNames, compileChildMatchers)

	c := ChildInvolvement{
		Mentioned:      m.mentioned.MatchString(text),
		AsMessenger:    m.messenger.Any(text),
		AsWeapon:       m.weapon.Any(text),
		WellbeingCited: m.wellbeing.Any(text),
		Triangulation:  m.triangulation.Any(text),
	}
	if c.AsMessenger || c.AsWeapon || c.Triangulation {
		c.Mentioned = true
	}
	return c
}

// Flags implements Detection.
func (c ChildInvolvement) Flags() Flags {
	return Flags{
		"child_mentioned":       c.Mentioned,
		"child_as_messenger":    c.AsMessenger,
		"child_as_weapon":       c.AsWeapon,
		"child_wellbeing_cited": c.WellbeingCited,
		"child_triangulation":   c.Triangulation,
	}
}

// Summarize implements Detection.
func (c ChildInvolvement) Summarize() []string {
	var out []string
	if c.AsWeapon {
		out = append(out, "Links evaluation to child to strengthen attack")
	}
	if c.Triangulation {
		out = append(out, "Triangulation: uses child's words/preferences against other parent")
	}
	if c.AsMessenger {
		out = append(out, "Uses child as messenger to other parent")
	}
	if c.WellbeingCited {
		out = append(out, "Cites the child's wellbeing")
	}
	if c.Mentioned && len(out) == 0 {
		out = append(out, "Mentions the child")
	}
	return out
}
