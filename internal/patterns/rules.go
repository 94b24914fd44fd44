// Package patterns holds the deterministic language detectors used to
// describe co-parenting messages.
//
// Every detector is a pure function over message text. Classification
// cascades are expressed as ordered RuleSets so precedence stays explicit
// and each rule can be tested on its own.
package patterns

import (
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Flags is a set of named boolean pattern flags.
type Flags map[string]bool

// Merge copies all flags from other into f.
func (f Flags) Merge(other Flags) {
	for k, v := range other {
		f[k] = v
	}
}

// Names returns the names of the flags that are set, sorted.
func (f Flags) Names() []string {
	names := make([]string, 0, len(f))
	for k, v := range f {
		if v {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Detection is the result of one detector.
type Detection interface {
	Flags() Flags
	Summarize() []string
}

// Matcher is a list of case-insensitive expressions.
type Matcher []*regexp.Regexp

// Compile builds a Matcher. Expressions are compiled case-insensitive.
// It panics on an invalid expression, so it is meant for package-level vars.
func Compile(exprs ...string) Matcher {
	m := make(Matcher, 0, len(exprs))
	for _, e := range exprs {
		m = append(m, regexp.MustCompile(`(?i)`+e))
	}
	return m
}

// Any reports whether any expression matches text.
func (m Matcher) Any(text string) bool {
	for _, re := range m {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Count returns how many expressions match text.
func (m Matcher) Count(text string) int {
	n := 0
	for _, re := range m {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// FindAll returns the distinct lowercase matches of all expressions, in
// order of first appearance.
func (m Matcher) FindAll(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range m {
		for _, hit := range re.FindAllString(text, -1) {
			hit = strings.ToLower(strings.TrimSpace(hit))
			if hit == "" || seen[hit] {
				continue
			}
			seen[hit] = true
			out = append(out, hit)
		}
	}
	return out
}

// Rule is a named predicate within a RuleSet.
type Rule struct {
	Name  string
	Match func(text string) bool
}

// MatchAny returns a predicate that is true when any matcher expression hits.
func MatchAny(m Matcher) func(string) bool {
	return m.Any
}

// RuleSet evaluates rules in order; the first match wins.
type RuleSet struct {
	rules    []Rule
	fallback string
}

// NewRuleSet creates a RuleSet. fallback is returned when no rule matches.
func NewRuleSet(fallback string, rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules, fallback: fallback}
}

// Classify returns the name of the first matching rule.
func (rs *RuleSet) Classify(text string) string {
	for _, r := range rs.rules {
		if r.Match(text) {
			return r.Name
		}
	}
	return rs.fallback
}

// Rules returns the rules in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Vote is one category in a keyword tally.
type Vote struct {
	Category string
	Matcher  Matcher
}

// Tally counts matches per category. It returns the first category with the
// highest count and the number of categories with a non-zero count. winner is
// empty when nothing matched.
func Tally(text string, votes []Vote) (winner string, nonZero int) {
	best := 0
	for _, v := range votes {
		n := v.Matcher.Count(text)
		if n == 0 {
			continue
		}
		nonZero++
		if n > best {
			best = n
			winner = v.Category
		}
	}
	return winner, nonZero
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`)

// Normalize trims text and folds typographic quotes to ASCII.
func Normalize(text string) string {
	return strings.TrimSpace(apostrophes.Replace(text))
}

// childExpr builds an alternation of the given child names plus the generic
// child references.
func childExpr(childNames []string) string {
	alts := []string{`the\s+kids?`, `the\s+children`, `our\s+(?:son|daughter|kids?|children)`, `my\s+(?:son|daughter)`}
	for _, name := range childNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(name))
	}
	return `(?:` + strings.Join(alts, `|`) + `)`
}

// nameCacheSize bounds the compiled matchers kept for distinct child-name
// lists.
const nameCacheSize = 256

var nameCache = func() *lru.Cache[string, any] {
	c, err := lru.New[string, any](nameCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}()

// cachedForNames returns build(childNames), compiling once per kind and
// name list.
func cachedForNames[T any](kind string, childNames []string, build func([]string) T) T {
	key := kind + "\x00" + strings.Join(childNames, "\x00")
	if v, ok := nameCache.Get(key); ok {
		return v.(T)
	}
	v := build(childNames)
	nameCache.Add(key, v)
	return v
}
