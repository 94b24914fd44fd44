package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectGlobalSpecific(t *testing.T) {
	g := DetectGlobalSpecific("You're basically failing Vira with the way you're handling things.")
	assert.True(t, g.GlobalNegative)
	assert.False(t, g.GlobalPositive)

	g = DetectGlobalSpecific("You always forget everything")
	assert.True(t, g.GlobalNegative)
	assert.Equal(t, []string{"always", "everything"}, g.Absolutes)
	assert.Contains(t, g.Summarize(), `Uses absolute language ("always", "everything")`)

	g = DetectGlobalSpecific("You were 20 minutes late on Tuesday so she missed practice")
	assert.True(t, g.SpecificBehavior)
	assert.True(t, g.SpecificImpact)
	assert.False(t, g.GlobalNegative)

	g = DetectGlobalSpecific("You're such a great dad")
	assert.True(t, g.GlobalPositive)
}

func TestDetectEvaluative(t *testing.T) {
	e := DetectEvaluative("You're such a selfish jerk")
	assert.True(t, e.Character)

	e = DetectEvaluative("You're a terrible mother")
	assert.True(t, e.Competence)

	e = DetectEvaluative("I noticed you dropped her off late")
	assert.True(t, e.Observation)
	assert.True(t, e.Action)
	assert.False(t, e.Character)
}

func TestDetectHedging(t *testing.T) {
	h := DetectHedging("Sorry to bother you, I just think maybe we could kind of talk")
	assert.True(t, h.Apologetic)
	assert.True(t, h.Softeners)
	assert.True(t, h.Excessive)
	assert.False(t, h.Direct)
	assert.Contains(t, h.Hedges, "maybe")

	h = DetectHedging("Pickup is at 5.")
	assert.True(t, h.Direct)
	assert.Empty(t, h.Summarize())
}

func TestDetectSpecificity(t *testing.T) {
	s := DetectSpecificity("Can we swap the Tuesday pickup? I have a work meeting until 4.")
	assert.True(t, s.SpecificRequest)
	assert.False(t, s.VagueRequest)

	s = DetectSpecificity("Can you be better about things?")
	assert.True(t, s.VagueRequest)

	s = DetectSpecificity("This is ridiculous.")
	assert.True(t, s.VagueComplaint)

	s = DetectSpecificity("You missed the Friday pickup.")
	assert.True(t, s.SpecificComplaint)
}

func TestDetectFocus(t *testing.T) {
	f := DetectFocus("Can we swap the Tuesday pickup?", nil)
	assert.True(t, f.Logistics)
	assert.Equal(t, []string{"Focused on logistics"}, f.Summarize())

	f = DetectFocus("Mia loved the trip, going forward let's plan for summer", []string{"Mia"})
	assert.True(t, f.Child)
	assert.True(t, f.Future)

	f = DetectFocus("This is just like when you left", nil)
	assert.True(t, f.Relationship)
}

func TestDetectChildInvolvement(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		names  []string
		assert func(t *testing.T, c ChildInvolvement)
	}{
		{
			name:  "child named in attack",
			text:  "You're basically failing Vira with the way you're handling things.",
			names: []string{"Vira"},
			assert: func(t *testing.T, c ChildInvolvement) {
				assert.True(t, c.Mentioned)
				assert.True(t, c.AsWeapon)
			},
		},
		{
			name: "messenger",
			text: "Tell your dad he needs to pay",
			assert: func(t *testing.T, c ChildInvolvement) {
				assert.True(t, c.AsMessenger)
				assert.True(t, c.Mentioned)
			},
		},
		{
			name: "triangulation",
			text: "She told me you yelled at her",
			assert: func(t *testing.T, c ChildInvolvement) {
				assert.True(t, c.Triangulation)
			},
		},
		{
			name:  "wellbeing",
			text:  "Emma is so anxious before exchanges",
			names: []string{"Emma"},
			assert: func(t *testing.T, c ChildInvolvement) {
				assert.True(t, c.WellbeingCited)
				assert.True(t, c.Mentioned)
				assert.False(t, c.AsWeapon)
			},
		},
		{
			name: "no child",
			text: "Pickup is at 5.",
			assert: func(t *testing.T, c ChildInvolvement) {
				assert.False(t, c.Mentioned)
				assert.Empty(t, c.Summarize())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assert(t, DetectChildInvolvement(tt.text, tt.names))
		})
	}
}

func TestDetections_ImplementInterface(t *testing.T) {
	var _ Detection = GlobalSpecific{}
	var _ Detection = Evaluative{}
	var _ Detection = Hedging{}
	var _ Detection = Specificity{}
	var _ Detection = Focus{}
	var _ Detection = ChildInvolvement{}
	var _ Detection = Structure{}
}
