// Package policy decides per room whether and how to intervene on a
// message, and adapts that decision to feedback.
//
// Unhelpful outcomes raise the room's intervention threshold so the room
// sees fewer suggestions; helpful outcomes lower it slightly. Without a
// generator the engine returns a fixed non-intervening default.
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/escalation"
	"github.com/fyrsmithlabs/mediatord/internal/generation"
	"github.com/fyrsmithlabs/mediatord/internal/statestore"
)

const instrumentationName = "github.com/fyrsmithlabs/mediatord/internal/policy"

// ErrEmptyRoomID is returned when no room is given.
var ErrEmptyRoomID = errors.New("room id cannot be empty")

// Threshold bounds.
const (
	MinThreshold     = 30
	MaxThreshold     = 100
	DefaultThreshold = 60
)

const (
	defaultReasoning    = "Default policy - insufficient data"
	defaultFallbackPlan = "Monitor conversation"
	replyFallbackPlan   = "Monitor and reassess"
	promptInterventions = 5
)

// Config tunes the engine.
type Config struct {
	// DefaultThreshold seeds new rooms (default: 60).
	DefaultThreshold int

	// HistoryLimit caps InterventionHistory (default: 20).
	HistoryLimit int

	// UnhelpfulStep raises the threshold per unhelpful outcome (default: 5).
	UnhelpfulStep int

	// HelpfulStep lowers the threshold per helpful outcome (default: 2).
	HelpfulStep int
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() *Config {
	return &Config{
		DefaultThreshold: DefaultThreshold,
		HistoryLimit:     20,
		UnhelpfulStep:    5,
		HelpfulStep:      2,
	}
}

// Decision is the policy for one message.
type Decision struct {
	ShouldIntervene   bool                      `json:"should_intervene"`
	InterventionType  string                    `json:"intervention_type"`
	InterventionStyle string                    `json:"intervention_style"`
	Urgency           string                    `json:"urgency"`
	Reasoning         string                    `json:"reasoning"`
	Confidence        int                       `json:"confidence"`
	FallbackPlan      string                    `json:"fallback_plan"`
	Threshold         int                       `json:"threshold"`
	Generated         bool                      `json:"generated"`
	Fallback          generation.FallbackReason `json:"fallback_reason,omitempty"`
}

// Default returns the policy used without a generator.
func Default() Decision {
	return Decision{
		ShouldIntervene:   false,
		InterventionType:  TypeNone,
		InterventionStyle: StyleModerate,
		Urgency:           UrgencyLow,
		Reasoning:         defaultReasoning,
		Confidence:        0,
		FallbackPlan:      defaultFallbackPlan,
		Threshold:         DefaultThreshold,
	}
}

// Input carries the assessments for one decision.
type Input struct {
	RoomID string

	// Emotional is the language analysis of the message. Optional.
	Emotional *analyzer.Analysis

	// Escalation is the room's current risk reading. Optional.
	Escalation *escalation.Assessment

	// RecentInterventions defaults to the room's recorded history.
	RecentInterventions []HistoryEntry

	// UserFeedback is free-form feedback keyed by user.
	UserFeedback map[string]string
}

// Intervention describes what was shown, for outcome recording.
type Intervention struct {
	Type           string
	Style          string
	EmotionalState string
	EscalationRisk string
}

// reply is the generator's reply shape.
type reply struct {
	ShouldIntervene   *bool  `json:"shouldIntervene" jsonschema:"required"`
	InterventionType  string `json:"interventionType" jsonschema:"required,enum=suggestion,enum=reframing,enum=tone_smoothing,enum=delay_prompt,enum=none"`
	InterventionStyle string `json:"interventionStyle" jsonschema:"required,enum=gentle,enum=moderate,enum=firm"`
	Urgency           string `json:"urgency" jsonschema:"required,enum=low,enum=medium,enum=high"`
	Reasoning         string `json:"reasoning" jsonschema:"required"`
	AdjustedThreshold int    `json:"adjustedThreshold" jsonschema:"required,minimum=0,maximum=100"`
	Confidence        int    `json:"confidence" jsonschema:"required,minimum=0,maximum=100"`
	FallbackPlan      string `json:"fallbackPlan" jsonschema:"required"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the adaptive intervention policy.
type Engine struct {
	config    *Config
	store     statestore.Store[State]
	generator generation.Generator
	logger    *zap.Logger
	now       func() time.Time

	tracer          trace.Tracer
	decisionCounter metric.Int64Counter
	outcomeCounter  metric.Int64Counter
}

// NewEngine creates an Engine. generator may be nil.
func NewEngine(store statestore.Store[State], generator generation.Generator, cfg *Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		config:    cfg,
		store:     store,
		generator: generator,
		logger:    logger,
		now:       time.Now,
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	e.decisionCounter, err = meter.Int64Counter(
		"mediatord.policy.decisions_total",
		metric.WithDescription("Total policy decisions by intervention type"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		logger.Warn("failed to create decision counter", zap.Error(err))
	}
	e.outcomeCounter, err = meter.Int64Counter(
		"mediatord.policy.outcomes_total",
		metric.WithDescription("Total recorded intervention outcomes"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		logger.Warn("failed to create outcome counter", zap.Error(err))
	}
	return e, nil
}

// GenerateInterventionPolicy decides how to handle a message. Generator
// failures yield Default with the fallback reason set; only state store
// failures are returned as errors.
func (e *Engine) GenerateInterventionPolicy(ctx context.Context, in Input) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "policy.generate", trace.WithAttributes(attribute.String("room.id", in.RoomID)))
	defer span.End()

	if in.RoomID == "" {
		return Decision{}, ErrEmptyRoomID
	}
	if !generation.IsAvailable(e.generator) {
		d := Default()
		d.Fallback = generation.ReasonNotConfigured
		e.countDecision(ctx, d)
		return d, nil
	}

	current, err := e.store.Update(ctx, in.RoomID, func(*State) error { return nil })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state load failed")
		return Decision{}, fmt.Errorf("loading policy state: %w", err)
	}

	recent := in.RecentInterventions
	if recent == nil {
		recent = current.InterventionHistory
	}
	prompt := buildPrompt(current, in, recent)
	r, err := generation.Complete[reply](ctx, e.generator, prompt,
		generation.WithTemperature(0.4),
		generation.WithMaxTokens(500),
	)
	if err != nil {
		e.logger.Warn("policy generation failed, using default policy",
			zap.String("room.id", in.RoomID),
			zap.Error(err))
		d := Default()
		d.Fallback = generation.ReasonFor(err)
		e.countDecision(ctx, d)
		return d, nil
	}

	style := oneOf(r.InterventionStyle, StyleModerate, StyleGentle, StyleModerate, StyleFirm)
	updated, err := e.store.Update(ctx, in.RoomID, func(s *State) error {
		if r.AdjustedThreshold > 0 {
			s.InterventionThreshold = clampThreshold(r.AdjustedThreshold)
		}
		if r.InterventionStyle != "" {
			s.InterventionStyle = style
		}
		s.LastIntervention = e.now()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state update failed")
		return Decision{}, fmt.Errorf("updating policy state: %w", err)
	}

	d := Decision{
		ShouldIntervene:   r.ShouldIntervene == nil || *r.ShouldIntervene,
		InterventionType:  oneOf(r.InterventionType, TypeNone, TypeSuggestion, TypeReframing, TypeToneSmoothing, TypeDelayPrompt, TypeNone),
		InterventionStyle: style,
		Urgency:           oneOf(r.Urgency, UrgencyMedium, UrgencyLow, UrgencyMedium, UrgencyHigh),
		Reasoning:         r.Reasoning,
		Confidence:        max(0, min(100, r.Confidence)),
		FallbackPlan:      r.FallbackPlan,
		Threshold:         updated.InterventionThreshold,
		Generated:         true,
	}
	if d.FallbackPlan == "" {
		d.FallbackPlan = replyFallbackPlan
	}
	span.SetAttributes(
		attribute.Bool("policy.should_intervene", d.ShouldIntervene),
		attribute.Int("policy.threshold", d.Threshold),
	)
	e.countDecision(ctx, d)
	return d, nil
}

// RecordInterventionOutcome appends an outcome to the room history and
// adapts the threshold. Unrecognized outcomes are recorded as unknown.
func (e *Engine) RecordInterventionOutcome(ctx context.Context, roomID string, in Intervention, outcome Outcome, feedback string) (State, error) {
	if roomID == "" {
		return State{}, ErrEmptyRoomID
	}
	if _, err := ParseOutcome(string(outcome)); err != nil || outcome == "" {
		outcome = OutcomeUnknown
	}

	s, err := e.store.Update(ctx, roomID, func(s *State) error {
		s.InterventionHistory = append(s.InterventionHistory, HistoryEntry{
			Timestamp:      e.now(),
			Type:           in.Type,
			Style:          in.Style,
			Outcome:        outcome,
			Feedback:       feedback,
			EmotionalState: in.EmotionalState,
			EscalationRisk: in.EscalationRisk,
		})
		if limit := e.config.HistoryLimit; limit > 0 && len(s.InterventionHistory) > limit {
			s.InterventionHistory = s.InterventionHistory[len(s.InterventionHistory)-limit:]
		}
		switch outcome {
		case OutcomeUnhelpful:
			s.InterventionThreshold = clampThreshold(s.InterventionThreshold + e.config.UnhelpfulStep)
		case OutcomeHelpful:
			s.InterventionThreshold = clampThreshold(s.InterventionThreshold - e.config.HelpfulStep)
		}
		return nil
	})
	if err != nil {
		return State{}, fmt.Errorf("recording intervention outcome: %w", err)
	}
	if e.outcomeCounter != nil {
		e.outcomeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
	e.logger.Debug("recorded intervention outcome",
		zap.String("room.id", roomID),
		zap.String("outcome", string(outcome)),
		zap.Int("threshold", s.InterventionThreshold))
	return s, nil
}

// Snapshot returns the current policy of a room.
func (e *Engine) Snapshot(ctx context.Context, roomID string) (State, bool, error) {
	if roomID == "" {
		return State{}, false, ErrEmptyRoomID
	}
	return e.store.Get(ctx, roomID)
}

func (e *Engine) countDecision(ctx context.Context, d Decision) {
	if e.decisionCounter == nil {
		return
	}
	e.decisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", d.InterventionType),
		attribute.Bool("generated", d.Generated),
	))
}

func buildPrompt(s State, in Input, recent []HistoryEntry) string {
	var b strings.Builder
	b.WriteString("You are an adaptive intervention policy generator for co-parenting mediation.\n\n")

	b.WriteString("Current emotional state:\n")
	if in.Emotional != nil {
		b.WriteString(analyzer.FormatForPrompt(*in.Emotional))
	} else {
		b.WriteString("No emotional data")
	}
	b.WriteString("\n\nEscalation assessment:\n")
	if in.Escalation != nil {
		b.WriteString(toJSON(in.Escalation))
	} else {
		b.WriteString("No escalation data")
	}
	b.WriteString("\n\n")
	if len(in.UserFeedback) > 0 {
		b.WriteString("User feedback: " + toJSON(in.UserFeedback))
	} else {
		b.WriteString("No user feedback yet")
	}

	b.WriteString("\n\nRecent interventions (last 5):\n")
	if len(recent) > promptInterventions {
		recent = recent[len(recent)-promptInterventions:]
	}
	if len(recent) == 0 {
		b.WriteString("None\n")
	}
	for _, h := range recent {
		outcome := h.Outcome
		if outcome == "" {
			outcome = OutcomeUnknown
		}
		fmt.Fprintf(&b, "%s at %s: %s\n", h.Type, h.Timestamp.Format(time.RFC3339), outcome)
	}

	fmt.Fprintf(&b, "\nCurrent policy:\n- Intervention threshold: %d/100\n- Intervention style: %s\n- Preferred methods: %s\n\n",
		s.InterventionThreshold, s.InterventionStyle, strings.Join(s.PreferredMethods, ", "))

	b.WriteString(`Decide whether to intervene, the intervention type and style, and an adjusted threshold.
If users found previous interventions unhelpful, be more conservative.
If escalation risk is high, intervention may be more proactive.
`)
	return b.String()
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func clampThreshold(v int) int {
	return max(MinThreshold, min(MaxThreshold, v))
}

// oneOf returns v when it is one of allowed, else def.
func oneOf(v, def string, allowed ...string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}
