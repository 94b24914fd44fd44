// Package analyzer composes the pattern detectors into one structured,
// factual description of a message. It performs no I/O and never fails:
// malformed input produces a zero-confidence analysis with Meta.Error set.
package analyzer

import (
	"time"

	"github.com/fyrsmithlabs/mediatord/internal/patterns"
)

// Version identifies the analyzer rule set.
const Version = "1.0.0"

// Input errors reported in Meta.Error.
const (
	ErrInvalidInput = "invalid_input"
	ErrEmptyInput   = "empty_input"
)

const (
	baseConfidence   = 60
	signalConfidence = 10
	maxConfidence    = 95
	maxSummary       = 6
)

// Options tunes a single analysis.
type Options struct {
	// ChildNames are matched as references to the family's children.
	ChildNames []string
}

// Analysis is the structured description of one message.
type Analysis struct {
	Patterns  patterns.Flags `json:"patterns"`
	Structure Structure      `json:"structure"`
	Summary   []string       `json:"summary"`
	Meta      Meta           `json:"meta"`
}

// Structure is the sentence-level classification.
type Structure struct {
	SentenceType  string   `json:"sentence_type"`
	Target        string   `json:"target"`
	Tense         string   `json:"tense"`
	AbsolutesUsed []string `json:"absolutes_used"`
	HedgesUsed    []string `json:"hedges_used"`
}

// Meta carries analysis bookkeeping.
type Meta struct {
	Version        string        `json:"analyzer_version"`
	Confidence     int           `json:"confidence"`
	ProcessingTime time.Duration `json:"processing_time"`
	TextLength     int           `json:"text_length"`
	Error          string        `json:"error,omitempty"`
}

// Flag reports whether the named pattern flag is set.
func (a Analysis) Flag(name string) bool {
	return a.Patterns[name]
}

// Valid reports whether the analysis was produced from real input.
func (a Analysis) Valid() bool {
	return a.Meta.Error == ""
}

// strongSignals raise confidence by signalConfidence each.
var strongSignals = []string{
	"global_negative",
	"global_positive",
	"evaluative_character",
	"evaluative_competence",
	"child_as_weapon",
	"child_triangulation",
	"child_as_messenger",
	"specific_request",
	"specific_complaint",
}

// Analyze describes text. It never panics and never returns an error.
func Analyze(text string, opts Options) Analysis {
	start := time.Now()

	trimmed := patterns.Normalize(text)
	if trimmed == "" {
		return Empty(ErrEmptyInput)
	}

	global := patterns.DetectGlobalSpecific(trimmed)
	evaluative := patterns.DetectEvaluative(trimmed)
	hedging := patterns.DetectHedging(trimmed)
	specificity := patterns.DetectSpecificity(trimmed)
	focus := patterns.DetectFocus(trimmed, opts.ChildNames)
	child := patterns.DetectChildInvolvement(trimmed, opts.ChildNames)
	structure := patterns.DetectStructure(trimmed, opts.ChildNames)

	flags := patterns.Flags{}
	for _, d := range []patterns.Detection{global, evaluative, hedging, specificity, focus, child, structure} {
		flags.Merge(d.Flags())
	}

	a := Analysis{
		Patterns: flags,
		Structure: Structure{
			SentenceType:  structure.SentenceType,
			Target:        structure.Target,
			Tense:         structure.Tense,
			AbsolutesUsed: nonNil(global.Absolutes),
			HedgesUsed:    nonNil(hedging.Hedges),
		},
		Summary: summarize(global, evaluative, hedging, specificity, focus, child, structure),
		Meta: Meta{
			Version:    Version,
			TextLength: len(trimmed),
		},
	}
	a.Meta.Confidence = confidence(a)
	a.Meta.ProcessingTime = time.Since(start)
	return a
}

// AnalyzeNullable treats a nil text as invalid input.
func AnalyzeNullable(text *string, opts Options) Analysis {
	if text == nil {
		return Empty(ErrInvalidInput)
	}
	return Analyze(*text, opts)
}

// Empty returns the zero-confidence analysis for the given input error.
func Empty(reason string) Analysis {
	return Analysis{
		Patterns: patterns.Flags{},
		Structure: Structure{
			SentenceType:  patterns.SentenceUnknown,
			Target:        patterns.TargetUnclear,
			Tense:         patterns.TenseUnknown,
			AbsolutesUsed: []string{},
			HedgesUsed:    []string{},
		},
		Summary: []string{},
		Meta: Meta{
			Version:    Version,
			Confidence: 0,
			Error:      reason,
		},
	}
}

func confidence(a Analysis) int {
	c := baseConfidence
	for _, name := range strongSignals {
		if a.Patterns[name] {
			c += signalConfidence
		}
	}
	if a.Structure.SentenceType == patterns.SentenceThreat {
		c += signalConfidence
	}
	return min(c, maxConfidence)
}

// summarize orders observations by importance: structure, global and
// evaluative language, child involvement, specificity, hedging, focus and
// finally a missing-request note.
func summarize(
	global patterns.GlobalSpecific,
	evaluative patterns.Evaluative,
	hedging patterns.Hedging,
	specificity patterns.Specificity,
	focus patterns.Focus,
	child patterns.ChildInvolvement,
	structure patterns.Structure,
) []string {
	var obs []string

	obs = append(obs, firstN(structure.Summarize(), 2)...)

	if global.GlobalNegative {
		obs = append(obs, firstN(global.Summarize(), 2)...)
	}
	if evaluative.Character || evaluative.Competence {
		obs = append(obs, firstN(evaluative.Summarize(), 1)...)
	}

	if child.Mentioned {
		if child.AsWeapon {
			obs = append(obs, "Links evaluation to child to strengthen attack")
		}
		if child.Triangulation {
			obs = append(obs, "Triangulation: uses child's words/preferences against other parent")
		}
		if child.AsMessenger {
			obs = append(obs, "Uses child as messenger to other parent")
		}
	}

	if specificity.VagueComplaint || specificity.VagueRequest {
		obs = append(obs, firstN(specificity.Summarize(), 1)...)
	}

	if hedging.Excessive || hedging.Apologetic {
		obs = append(obs, firstN(hedging.Summarize(), 1)...)
	}

	if fs := focus.Summarize(); len(fs) > 0 && !focus.Logistics {
		obs = append(obs, fs[0])
	}

	if !structure.HasConcreteRequest && !structure.HasProposedChange &&
		(global.GlobalNegative || evaluative.Character) {
		obs = append(obs, "No concrete request or proposed change")
	}

	return firstN(dedupe(obs), maxSummary)
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func dedupe(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
