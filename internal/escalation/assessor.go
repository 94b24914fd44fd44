// Package escalation scores conversational conflict risk per room.
//
// The score rises by a fixed increment for every conflict pattern a message
// matches and decays lazily: when a room is assessed more than DecayAfter
// since its last negative signal the score drops by DecayStep. When a
// generator is configured its classification is merged with the heuristic
// result; failures fall back to a deterministic low-risk reading.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/generation"
	"github.com/fyrsmithlabs/mediatord/internal/patterns"
	"github.com/fyrsmithlabs/mediatord/internal/statestore"
)

const instrumentationName = "github.com/fyrsmithlabs/mediatord/internal/escalation"

// ErrEmptyRoomID is returned when no room is given.
var ErrEmptyRoomID = errors.New("room id cannot be empty")

// Risk levels.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Config tunes the assessor.
type Config struct {
	// Increment is added per matched conflict pattern (default: 10).
	Increment int

	// DecayAfter is the quiet period before the score decays (default: 5m).
	DecayAfter time.Duration

	// DecayStep is subtracted when the quiet period has elapsed (default: 1).
	DecayStep int

	// ResetAmount is subtracted by Reset (default: 20).
	ResetAmount int

	// HistoryLimit caps SentimentHistory (default: 20).
	HistoryLimit int
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() *Config {
	return &Config{
		Increment:    10,
		DecayAfter:   5 * time.Minute,
		DecayStep:    1,
		ResetAmount:  20,
		HistoryLimit: 20,
	}
}

// Assessment is the risk reading for one message.
type Assessment struct {
	RoomID        string                    `json:"room_id"`
	Score         int                       `json:"escalation_score"`
	RiskLevel     string                    `json:"risk_level"`
	Confidence    int                       `json:"confidence"`
	Reasons       []string                  `json:"reasons"`
	Urgency       string                    `json:"urgency"`
	Signals       []string                  `json:"signals"`
	PatternCounts map[string]int            `json:"pattern_counts"`
	Generated     bool                      `json:"generated"`
	Fallback      generation.FallbackReason `json:"fallback_reason,omitempty"`
}

// classification is the generator's reply shape.
type classification struct {
	RiskLevel  string   `json:"riskLevel" jsonschema:"required,enum=low,enum=medium,enum=high,enum=critical"`
	Confidence int      `json:"confidence" jsonschema:"required,minimum=0,maximum=100"`
	Reasons    []string `json:"reasons" jsonschema:"required"`
	Urgency    string   `json:"urgency" jsonschema:"required,enum=low,enum=medium,enum=high"`
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Assessor) { a.now = now }
}

// Assessor is the per-room escalation state machine.
type Assessor struct {
	config    *Config
	store     statestore.Store[State]
	generator generation.Generator
	logger    *zap.Logger
	now       func() time.Time

	tracer        trace.Tracer
	meter         metric.Meter
	assessCounter metric.Int64Counter
}

// NewAssessor creates an Assessor. store holds the per-room state; generator
// may be nil for heuristic-only scoring.
func NewAssessor(store statestore.Store[State], generator generation.Generator, cfg *Config, logger *zap.Logger, opts ...Option) (*Assessor, error) {
	if store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Assessor{
		config:    cfg,
		store:     store,
		generator: generator,
		logger:    logger,
		now:       time.Now,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(a)
	}

	var err error
	a.assessCounter, err = a.meter.Int64Counter(
		"mediatord.escalation.assessments_total",
		metric.WithDescription("Total escalation assessments by risk level"),
		metric.WithUnit("{assessment}"),
	)
	if err != nil {
		logger.Warn("failed to create assessment counter", zap.Error(err))
	}

	return a, nil
}

// Assess updates the room state with text and returns the risk reading.
// analysis may be nil. Generator failures never surface as errors; only
// state store failures do.
func (a *Assessor) Assess(ctx context.Context, roomID, text string, analysis *analyzer.Analysis) (Assessment, error) {
	ctx, span := a.tracer.Start(ctx, "escalation.assess")
	defer span.End()

	if roomID == "" {
		return Assessment{}, ErrEmptyRoomID
	}

	signals := DetectSignals(patterns.Normalize(text), analysis)
	now := a.now()

	state, err := a.store.Update(ctx, roomID, func(s *State) error {
		a.decay(s, now)
		for _, sig := range signals {
			s.PatternCounts[sig]++
			s.Score = clampScore(s.Score + a.config.Increment)
			s.LastNegativeTime = now
		}
		s.SentimentHistory = append(s.SentimentHistory, SentimentMark{At: now, Score: s.Score, Signals: signals})
		if limit := a.config.HistoryLimit; limit > 0 && len(s.SentimentHistory) > limit {
			s.SentimentHistory = s.SentimentHistory[len(s.SentimentHistory)-limit:]
		}
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state update failed")
		return Assessment{}, fmt.Errorf("updating escalation state: %w", err)
	}

	assessment := heuristicAssessment(state, signals)

	if generation.IsAvailable(a.generator) {
		out := a.classify(ctx, state, text, analysis)
		assessment = merge(assessment, out)
	}

	span.SetAttributes(
		attribute.Int("escalation.score", assessment.Score),
		attribute.String("escalation.risk_level", assessment.RiskLevel),
		attribute.Int("escalation.signals", len(signals)),
	)
	if a.assessCounter != nil {
		a.assessCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("risk_level", assessment.RiskLevel)))
	}

	return assessment, nil
}

// Reset lowers the room score by ResetAmount and clears the last negative
// time. It is called after a mediation is judged successful.
func (a *Assessor) Reset(ctx context.Context, roomID string) (State, error) {
	if roomID == "" {
		return State{}, ErrEmptyRoomID
	}
	return a.store.Update(ctx, roomID, func(s *State) error {
		s.Score = clampScore(s.Score - a.config.ResetAmount)
		s.LastNegativeTime = time.Time{}
		s.UpdatedAt = a.now()
		return nil
	})
}

// Snapshot returns the current state of a room.
func (a *Assessor) Snapshot(ctx context.Context, roomID string) (State, bool, error) {
	if roomID == "" {
		return State{}, false, ErrEmptyRoomID
	}
	return a.store.Get(ctx, roomID)
}

// decay applies the lazy quiet-period decay.
func (a *Assessor) decay(s *State, now time.Time) {
	if s.LastNegativeTime.IsZero() {
		return
	}
	if now.Sub(s.LastNegativeTime) > a.config.DecayAfter {
		s.Score = clampScore(s.Score - a.config.DecayStep)
	}
}

// classify asks the generator for a risk classification. Any failure yields
// the deterministic low-risk reading.
func (a *Assessor) classify(ctx context.Context, state State, text string, analysis *analyzer.Analysis) generation.Outcome[classification] {
	prompt := buildPrompt(state, text, analysis)
	reply, err := generation.Complete[classification](ctx, a.generator, prompt,
		generation.WithTemperature(0.2),
		generation.WithMaxTokens(300),
	)
	if err != nil {
		a.logger.Warn("escalation classification failed, using low-risk fallback",
			zap.String("room.id", state.RoomID),
			zap.Error(err))
		return generation.Fallback(lowRisk(), generation.ReasonNone, err)
	}
	reply.RiskLevel = normalizeRisk(reply.RiskLevel)
	reply.Confidence = clampPercent(reply.Confidence)
	if reply.Urgency == "" {
		reply.Urgency = urgencyFor(reply.RiskLevel)
	}
	return generation.Generated(reply)
}

func lowRisk() classification {
	return classification{
		RiskLevel:  RiskLow,
		Confidence: 0,
		Reasons:    []string{},
		Urgency:    "low",
	}
}

func heuristicAssessment(state State, signals []string) Assessment {
	level := RiskLevelFor(state.Score)
	conf := 50
	if len(signals) > 0 {
		conf = min(95, 50+10*len(signals))
	}
	reasons := make([]string, 0, len(signals))
	for _, s := range signals {
		reasons = append(reasons, signalReasons[s])
	}
	counts := make(map[string]int, len(state.PatternCounts))
	for k, v := range state.PatternCounts {
		counts[k] = v
	}
	return Assessment{
		RoomID:        state.RoomID,
		Score:         state.Score,
		RiskLevel:     level,
		Confidence:    conf,
		Reasons:       reasons,
		Urgency:       urgencyFor(level),
		Signals:       append([]string{}, signals...),
		PatternCounts: counts,
	}
}

// merge combines the heuristic reading with a generated or fallback
// classification. The higher risk level wins.
func merge(h Assessment, out generation.Outcome[classification]) Assessment {
	if out.IsFallback() {
		h.Fallback = out.Reason
		return h
	}
	c := out.Value
	h.Generated = true
	if riskRank[c.RiskLevel] > riskRank[h.RiskLevel] {
		h.RiskLevel = c.RiskLevel
		h.Urgency = c.Urgency
	}
	h.Confidence = max(h.Confidence, c.Confidence)
	h.Reasons = appendUnique(h.Reasons, c.Reasons...)
	return h
}

var riskRank = map[string]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

// RiskLevelFor maps a score to a risk level.
func RiskLevelFor(score int) string {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskMedium
	case score < 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func urgencyFor(level string) string {
	switch level {
	case RiskHigh, RiskCritical:
		return "high"
	case RiskMedium:
		return "medium"
	default:
		return "low"
	}
}

func normalizeRisk(level string) string {
	if _, ok := riskRank[level]; ok {
		return level
	}
	return RiskLow
}

func clampScore(v int) int {
	return max(MinScore, min(MaxScore, v))
}

func clampPercent(v int) int {
	return max(0, min(100, v))
}

func appendUnique(dst []string, src ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}
