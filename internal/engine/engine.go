// Package engine runs the mediation pipeline for one outgoing message:
// analyze, assess escalation, decide on intervention, and when intervening
// generate validated sender-perspective rewrites. Feedback on a decision
// flows back into the room policy, the sender profile and the escalation
// score.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/escalation"
	"github.com/fyrsmithlabs/mediatord/internal/events"
	"github.com/fyrsmithlabs/mediatord/internal/generation"
	"github.com/fyrsmithlabs/mediatord/internal/logging"
	"github.com/fyrsmithlabs/mediatord/internal/mediation"
	"github.com/fyrsmithlabs/mediatord/internal/policy"
	"github.com/fyrsmithlabs/mediatord/internal/profile"
	"github.com/fyrsmithlabs/mediatord/internal/rewrite"
)

const instrumentationName = "github.com/fyrsmithlabs/mediatord/internal/engine"

// Request validation errors.
var (
	ErrEmptyRoomID   = errors.New("room id cannot be empty")
	ErrEmptySenderID = errors.New("sender id cannot be empty")
)

// DefaultRewriteTimeout bounds the rewrite generation call.
const DefaultRewriteTimeout = 15 * time.Second

// Request is one outgoing message.
type Request struct {
	Text           string              `json:"text"`
	SenderID       string              `json:"sender_id"`
	ReceiverID     string              `json:"receiver_id,omitempty"`
	RoomID         string              `json:"room_id"`
	Timestamp      time.Time           `json:"timestamp,omitempty"`
	RecentMessages []mediation.Message `json:"recent_messages,omitempty"`
	ChildNames     []string            `json:"child_names,omitempty"`
	UserFeedback   map[string]string   `json:"user_feedback,omitempty"`
}

// Decision is the pipeline result for one message.
type Decision struct {
	ID              string                    `json:"id"`
	RoomID          string                    `json:"room_id"`
	SenderID        string                    `json:"sender_id"`
	Timestamp       time.Time                 `json:"timestamp"`
	Analysis        analyzer.Analysis         `json:"analysis"`
	Escalation      escalation.Assessment     `json:"escalation"`
	Policy          policy.Decision           `json:"policy"`
	Intervene       bool                      `json:"intervene"`
	Rewrites        []rewrite.Candidate       `json:"rewrites"`
	RewriteFallback generation.FallbackReason `json:"rewrite_fallback_reason,omitempty"`
}

// Feedback is the sender's verdict on a decision.
type Feedback struct {
	RoomID     string `json:"room_id"`
	SenderID   string `json:"sender_id"`
	DecisionID string `json:"decision_id,omitempty"`

	// Outcome is one of helpful, unhelpful, neutral or unknown.
	Outcome  string `json:"outcome"`
	Feedback string `json:"feedback,omitempty"`

	// Accepted is the rewrite the sender sent instead of the original.
	Accepted *profile.AcceptedRewrite `json:"accepted,omitempty"`

	InterventionType string `json:"intervention_type,omitempty"`
	Style            string `json:"style,omitempty"`
	EmotionalState   string `json:"emotional_state,omitempty"`
	EscalationRisk   string `json:"escalation_risk,omitempty"`
}

// FeedbackResult reports the adapted state after feedback.
type FeedbackResult struct {
	Outcome   policy.Outcome `json:"outcome"`
	Threshold int            `json:"threshold"`

	// AcceptanceRate is set when the sender profile was updated.
	AcceptanceRate *float64 `json:"acceptance_rate,omitempty"`
}

// rewriteReply is the generator's reply shape.
type rewriteReply struct {
	Rewrite1   string `json:"rewrite1" jsonschema:"required"`
	Rewrite2   string `json:"rewrite2" jsonschema:"required"`
	Tip        string `json:"tip" jsonschema:"required"`
	Confidence int    `json:"confidence" jsonschema:"required,minimum=0,maximum=100"`
}

// Deps are the collaborators of an Engine. Assessor and Policy are
// required.
type Deps struct {
	Assessor  *escalation.Assessor
	Policy    *policy.Engine
	Profiles  *profile.Persister
	Generator generation.Generator
	Publisher events.Publisher
	Metrics   *Metrics
	Logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRewriteTimeout bounds the rewrite generation call.
func WithRewriteTimeout(d time.Duration) Option {
	return func(e *Engine) { e.rewriteTimeout = d }
}

// Instrumentation supplies tracers and meters. *telemetry.Telemetry
// satisfies it.
type Instrumentation interface {
	Tracer(name string, opts ...trace.TracerOption) trace.Tracer
	Meter(name string, opts ...metric.MeterOption) metric.Meter
}

// WithInstrumentation replaces the global OTEL providers.
func WithInstrumentation(i Instrumentation) Option {
	return func(e *Engine) {
		e.tracer = i.Tracer(instrumentationName)
		e.meter = i.Meter(instrumentationName)
	}
}

// Engine orchestrates the mediation pipeline.
type Engine struct {
	assessor  *escalation.Assessor
	policy    *policy.Engine
	profiles  *profile.Persister
	generator generation.Generator
	publisher events.Publisher
	metrics   *Metrics
	logger    *zap.Logger

	now            func() time.Time
	rewriteTimeout time.Duration

	tracer              trace.Tracer
	meter               metric.Meter
	interventionCounter metric.Int64Counter
}

// New creates an Engine.
func New(deps Deps, opts ...Option) (*Engine, error) {
	if deps.Assessor == nil {
		return nil, fmt.Errorf("escalation assessor is required")
	}
	if deps.Policy == nil {
		return nil, fmt.Errorf("policy engine is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}

	e := &Engine{
		assessor:       deps.Assessor,
		policy:         deps.Policy,
		profiles:       deps.Profiles,
		generator:      deps.Generator,
		publisher:      deps.Publisher,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		now:            time.Now,
		rewriteTimeout: DefaultRewriteTimeout,
		tracer:         otel.Tracer(instrumentationName),
		meter:          otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	e.interventionCounter, err = e.meter.Int64Counter(
		"mediatord.engine.interventions_total",
		metric.WithDescription("Total messages processed by intervention outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		e.logger.Warn("failed to create intervention counter", zap.Error(err))
	}
	return e, nil
}

// Process runs the pipeline for req. Generator, profile and publisher
// failures degrade to fallbacks and are logged; only escalation and
// policy state failures are returned.
func (e *Engine) Process(ctx context.Context, req Request) (Decision, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.process", trace.WithAttributes(
		attribute.String("room.id", req.RoomID),
		attribute.String("sender.id", req.SenderID),
	))
	defer span.End()

	if req.RoomID == "" {
		return Decision{}, ErrEmptyRoomID
	}
	if strings.TrimSpace(req.SenderID) == "" {
		return Decision{}, ErrEmptySenderID
	}
	ctx = logging.WithRoom(ctx, req.RoomID, req.SenderID)

	ts := req.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}

	analysis := analyzer.Analyze(req.Text, analyzer.Options{ChildNames: req.ChildNames})

	assessment, err := e.assessor.Assess(ctx, req.RoomID, req.Text, &analysis)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "escalation failed")
		return Decision{}, err
	}

	pd, err := e.policy.GenerateInterventionPolicy(ctx, policy.Input{
		RoomID:       req.RoomID,
		Emotional:    &analysis,
		Escalation:   &assessment,
		UserFeedback: req.UserFeedback,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "policy failed")
		return Decision{}, err
	}

	d := Decision{
		ID:         uuid.NewString(),
		RoomID:     req.RoomID,
		SenderID:   req.SenderID,
		Timestamp:  ts,
		Analysis:   analysis,
		Escalation: assessment,
		Policy:     pd,
		Intervene:  shouldIntervene(req.Text, analysis, assessment, pd),
		Rewrites:   []rewrite.Candidate{},
	}

	if d.Intervene {
		out := e.generateRewrites(ctx, req, &analysis, ts)
		d.Rewrites = append(d.Rewrites, out.Value)
		d.RewriteFallback = out.Reason
		e.recordIntervention(ctx, req, d)
		e.metrics.InterventionsTotal.WithLabelValues(out.Value.Category).Inc()
		if out.IsFallback() {
			e.metrics.FallbacksTotal.WithLabelValues(string(out.Reason)).Inc()
		}
	}

	e.publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeDecision,
		RoomID:     d.RoomID,
		SenderID:   d.SenderID,
		DecisionID: d.ID,
		Timestamp:  ts,
		Payload: map[string]any{
			"intervene":         d.Intervene,
			"risk_level":        assessment.RiskLevel,
			"escalation_score":  assessment.Score,
			"intervention_type": pd.InterventionType,
			"fallback_reason":   string(d.RewriteFallback),
		},
	})

	e.metrics.DecisionsTotal.WithLabelValues(analysis.Structure.SentenceType).Inc()
	e.metrics.EscalationScore.Observe(float64(assessment.Score))
	e.metrics.ProcessDuration.Observe(time.Since(start).Seconds())
	if e.interventionCounter != nil {
		e.interventionCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("intervene", d.Intervene)))
	}
	span.SetAttributes(
		attribute.String("decision.id", d.ID),
		attribute.Bool("decision.intervene", d.Intervene),
		attribute.Int("escalation.score", assessment.Score),
	)

	e.log(ctx).Debug("processed message",
		zap.String("decision.id", d.ID),
		zap.Bool("intervene", d.Intervene),
		zap.String("risk_level", assessment.RiskLevel))
	return d, nil
}

// RecordFeedback applies the sender's verdict on a decision.
func (e *Engine) RecordFeedback(ctx context.Context, fb Feedback) (FeedbackResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.feedback", trace.WithAttributes(
		attribute.String("room.id", fb.RoomID),
		attribute.String("sender.id", fb.SenderID),
	))
	defer span.End()

	if fb.RoomID == "" {
		return FeedbackResult{}, ErrEmptyRoomID
	}
	ctx = logging.WithRoom(ctx, fb.RoomID, fb.SenderID)
	outcome, err := policy.ParseOutcome(fb.Outcome)
	if err != nil {
		return FeedbackResult{}, err
	}

	state, err := e.policy.RecordInterventionOutcome(ctx, fb.RoomID, policy.Intervention{
		Type:           fb.InterventionType,
		Style:          fb.Style,
		EmotionalState: fb.EmotionalState,
		EscalationRisk: fb.EscalationRisk,
	}, outcome, fb.Feedback)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "policy outcome failed")
		return FeedbackResult{}, err
	}
	res := FeedbackResult{Outcome: outcome, Threshold: state.InterventionThreshold}

	if e.profiles != nil && strings.TrimSpace(fb.SenderID) != "" {
		switch {
		case fb.Accepted != nil:
			rr, err := e.profiles.RecordAcceptedRewrite(ctx, fb.SenderID, *fb.Accepted)
			if err != nil {
				e.log(ctx).Warn("recording accepted rewrite failed", zap.Error(err))
				break
			}
			res.AcceptanceRate = &rr.InterventionHistory.AcceptanceRate
		case outcome == policy.OutcomeUnhelpful:
			h, err := e.profiles.RecordRejection(ctx, fb.SenderID)
			if err != nil {
				e.log(ctx).Warn("recording rejection failed", zap.Error(err))
				break
			}
			res.AcceptanceRate = &h.AcceptanceRate
		}
	}

	if outcome == policy.OutcomeHelpful {
		if _, err := e.assessor.Reset(ctx, fb.RoomID); err != nil {
			e.log(ctx).Warn("escalation reset failed", zap.Error(err))
		}
	}

	e.publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeFeedback,
		RoomID:     fb.RoomID,
		SenderID:   fb.SenderID,
		DecisionID: fb.DecisionID,
		Timestamp:  e.now(),
		Payload: map[string]any{
			"outcome":   string(outcome),
			"accepted":  fb.Accepted != nil,
			"threshold": res.Threshold,
		},
	})
	e.metrics.FeedbackTotal.WithLabelValues(string(outcome)).Inc()
	return res, nil
}

// Profile returns the decayed profile of a user, or nil when none exists.
func (e *Engine) Profile(ctx context.Context, userID string) (*profile.Decayed, error) {
	if e.profiles == nil {
		return nil, nil
	}
	return e.profiles.Decayed(ctx, userID)
}

// shouldIntervene never acts on invalid input. Otherwise it follows a
// generated policy, or without one intervenes on obvious conflict language
// or when the room score reaches the threshold.
func shouldIntervene(text string, a analyzer.Analysis, esc escalation.Assessment, pd policy.Decision) bool {
	if !a.Valid() {
		return false
	}
	if pd.Generated {
		return pd.ShouldIntervene
	}
	return analyzer.QuickCheck(text) || esc.Score >= pd.Threshold
}

// generateRewrites issues one generation call and validates the reply,
// falling back to the category rewrites on any failure.
func (e *Engine) generateRewrites(ctx context.Context, req Request, a *analyzer.Analysis, now time.Time) generation.Outcome[rewrite.Candidate] {
	if !generation.IsAvailable(e.generator) {
		return rewrite.Resolve(req.Text, a, rewrite.Candidate{}, generation.ErrNotConfigured)
	}

	sender, receiver := e.loadProfiles(ctx, req.SenderID, req.ReceiverID)
	mc := mediation.BuildContext(mediation.Params{
		SenderID:        req.SenderID,
		ReceiverID:      req.ReceiverID,
		SenderProfile:   sender,
		ReceiverProfile: receiver,
		MessageText:     req.Text,
		RecentMessages:  req.RecentMessages,
		Now:             now,
	})

	if e.rewriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.rewriteTimeout)
		defer cancel()
	}
	r, err := generation.Complete[rewriteReply](ctx, e.generator, buildRewritePrompt(&mc, *a),
		generation.WithTemperature(0.7),
		generation.WithMaxTokens(600),
	)
	out := rewrite.Resolve(req.Text, a, rewrite.Candidate{
		Rewrite1:   r.Rewrite1,
		Rewrite2:   r.Rewrite2,
		Tip:        r.Tip,
		Confidence: r.Confidence,
	}, err)
	if out.IsFallback() {
		e.log(ctx).Warn("rewrite generation fell back",
			zap.String("reason", string(out.Reason)),
			zap.Error(out.Err))
	}
	return out
}

// loadProfiles reads both profiles concurrently. A failed read yields nil
// and the context is built without that side.
func (e *Engine) loadProfiles(ctx context.Context, senderID, receiverID string) (sender, receiver *profile.Profile) {
	var eg errgroup.Group
	eg.Go(func() error {
		sender = e.loadProfile(ctx, senderID)
		return nil
	})
	eg.Go(func() error {
		receiver = e.loadProfile(ctx, receiverID)
		return nil
	})
	_ = eg.Wait()
	return sender, receiver
}

func (e *Engine) loadProfile(ctx context.Context, userID string) *profile.Profile {
	if e.profiles == nil || strings.TrimSpace(userID) == "" {
		return nil
	}
	p, err := e.profiles.Get(ctx, userID)
	if err != nil {
		e.log(ctx).Warn("profile load failed", zap.String("user.id", userID), zap.Error(err))
		return nil
	}
	return p
}

func (e *Engine) recordIntervention(ctx context.Context, req Request, d Decision) {
	if e.profiles == nil {
		return
	}
	typ := d.Policy.InterventionType
	if typ == policy.TypeNone {
		typ = ""
	}
	_, err := e.profiles.RecordIntervention(ctx, req.SenderID, profile.Intervention{
		Type:            typ,
		EscalationLevel: d.Escalation.RiskLevel,
		OriginalMessage: req.Text,
	})
	if err != nil {
		e.log(ctx).Warn("recording intervention failed", zap.Error(err))
	}
}

// log attaches trace, room and request correlation from ctx.
func (e *Engine) log(ctx context.Context) *zap.Logger {
	return e.logger.With(logging.ContextFields(ctx)...)
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log(ctx).Warn("publishing event failed",
			zap.String("event.type", ev.Type),
			zap.String("room.id", ev.RoomID),
			zap.Error(err))
	}
}

func buildRewritePrompt(mc *mediation.Context, a analyzer.Analysis) string {
	var b strings.Builder
	b.WriteString(mediation.FormatFullContext(mc))
	b.WriteString("\n\n")
	if conv := mediation.FormatConversation(mc); conv != "" {
		b.WriteString(conv)
		b.WriteString("\n\n")
	}
	b.WriteString(analyzer.FormatForPrompt(a))
	b.WriteString("\n\nOriginal message:\n")
	b.WriteString(mc.Message.Text)
	b.WriteString("\n\nWrite two alternative versions of this message in the sender's own voice, " +
		"as something the sender would send. Use I-statements and state the underlying need " +
		"or a concrete request. Do not respond to the message as its receiver. " +
		"Add one short coaching tip for the sender and your confidence from 0 to 100.")
	return b.String()
}
