package patterns

var (
	evaluativeCharacterPatterns = Compile(
		`\byou('re| are)\s+(such\s+an?\s+|an?\s+|so\s+|just\s+an?\s+|a\s+real\s+)?(selfish|lazy|liar|idiot|jerk|narcissist|manipulative|crazy|toxic|pathetic|worthless|stupid|useless|deadbeat|loser|terrible person|bad person|horrible person)\b`,
		`\byou\s+suck\b`,
		`\bwhat\s+kind\s+of\s+(person|parent)\b`,
	)

	evaluativeCompetencePatterns = Compile(
		`\b(bad|terrible|awful|worst|useless|incompetent|unfit|lousy)\s+(parent|mother|father|mom|dad)\b`,
		`\byou('re| are)\s+(\w+\s+)?failing\b`,
		`\byou\s+(can't|don't know how to)\s+(handle|take care|parent|manage)\b`,
		`\bthe\s+way\s+you('re| are)\s+handling\b`,
	)

	descriptiveActionPatterns = Compile(
		`\byou\s+(picked|dropped|sent|texted|called|arrived|left|forgot|missed|said)\b`,
		`\b(was|were)\s+\d+\s+minutes\s+late\b`,
	)

	descriptiveObservationPatterns = Compile(
		`\bi\s+(noticed|saw|heard|observed)\b`,
		`\bit\s+(seems|looks like)\b`,
	)
)

// Evaluative separates judgments of the person from descriptions of actions.
type Evaluative struct {
	Character   bool
	Competence  bool
	Action      bool
	Observation bool
}

// DetectEvaluative runs the evaluative/descriptive detector.
func DetectEvaluative(text string) Evaluative {
	return Evaluative{
		Character:   evaluativeCharacterPatterns.Any(text),
		Competence:  evaluativeCompetencePatterns.Any(text),
		Action:      descriptiveActionPatterns.Any(text),
		Observation: descriptiveObservationPatterns.Any(text),
	}
}

// Flags implements Detection.
func (e Evaluative) Flags() Flags {
	return Flags{
		"evaluative_character":    e.Character,
		"evaluative_competence":   e.Competence,
		"descriptive_action":      e.Action,
		"descriptive_observation": e.Observation,
	}
}

// Summarize implements Detection.
func (e Evaluative) Summarize() []string {
	var out []string
	if e.Character {
		out = append(out, "Evaluates character rather than describing actions")
	}
	if e.Competence {
		out = append(out, "Questions parenting competence")
	}
	if e.Action {
		out = append(out, "Describes specific actions")
	}
	if e.Observation {
		out = append(out, "Framed as an observation")
	}
	return out
}
