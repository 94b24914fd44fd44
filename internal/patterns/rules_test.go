package patterns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleSet_FirstMatchWins(t *testing.T) {
	rs := NewRuleSet("none",
		Rule{Name: "first", Match: func(s string) bool { return strings.Contains(s, "a") }},
		Rule{Name: "second", Match: func(s string) bool { return strings.Contains(s, "b") }},
	)

	assert.Equal(t, "first", rs.Classify("ab"))
	assert.Equal(t, "second", rs.Classify("b"))
	assert.Equal(t, "none", rs.Classify("c"))
	assert.Len(t, rs.Rules(), 2)
}

func TestMatcher(t *testing.T) {
	m := Compile(`\balways\b`, `\bnever\b`)

	assert.True(t, m.Any("You ALWAYS do this"))
	assert.False(t, m.Any("sometimes"))
	assert.Equal(t, 2, m.Count("always and never"))
	assert.Equal(t, []string{"always", "never"}, m.FindAll("Always, always and never"))
}

func TestTally(t *testing.T) {
	votes := []Vote{
		{"a", Compile(`x`)},
		{"b", Compile(`x`, `y`)},
		{"c", Compile(`x`)},
	}

	winner, nonZero := Tally("x y", votes)
	assert.Equal(t, "b", winner)
	assert.Equal(t, 3, nonZero)

	winner, _ = Tally("x", votes)
	assert.Equal(t, "a", winner, "ties resolve to the earliest category")

	winner, nonZero = Tally("z", votes)
	assert.Empty(t, winner)
	assert.Zero(t, nonZero)
}

func TestFlags(t *testing.T) {
	f := Flags{"b": true, "a": true, "c": false}
	f.Merge(Flags{"d": true})

	assert.Equal(t, []string{"a", "b", "d"}, f.Names())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "You're late", Normalize("  You’re late \n"))
}

func TestCachedForNames(t *testing.T) {
	builds := 0
	build := func(names []string) *int {
		builds++
		n := len(names)
		return &n
	}

	a := cachedForNames("test", []string{"Vira", "Sam"}, build)
	b := cachedForNames("test", []string{"Vira", "Sam"}, build)
	assert.Same(t, a, b)
	assert.Equal(t, 1, builds)

	c := cachedForNames("test", []string{"Vira"}, build)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, builds)

	assert.True(t, DetectChildInvolvement("You're failing Vira again.", []string{"Vira"}).AsWeapon)
	assert.True(t, DetectChildInvolvement("You're failing Vira again.", []string{"Vira"}).AsWeapon, "cached matchers give the same result")
	assert.False(t, DetectChildInvolvement("You're failing Vira again.", []string{"Sam"}).AsWeapon)
}
