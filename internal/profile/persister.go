package profile

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
)

const instrumentationName = "github.com/fyrsmithlabs/mediatord/internal/profile"

const defaultMaxAttempts = 3

// Update carries the fields to change. Nil fields are left untouched.
type Update struct {
	DisplayName         *string
	Patterns            *Patterns
	Triggers            *Triggers
	SuccessfulRewrites  *[]SuccessfulRewrite
	InterventionHistory *InterventionHistory
}

// Intervention describes a suggestion shown to a user.
type Intervention struct {
	Type            string
	EscalationLevel string
	OriginalMessage string
}

// AcceptedRewrite is a suggestion the user chose to send.
type AcceptedRewrite struct {
	Original string
	Rewrite  string
	Tip      string
}

// RewriteResult is returned by RecordAcceptedRewrite.
type RewriteResult struct {
	SuccessfulRewrites  []SuccessfulRewrite `json:"successful_rewrites"`
	InterventionHistory InterventionHistory `json:"intervention_history"`
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithClock overrides the time source.
func WithClock(now func() time.Time) PersisterOption {
	return func(p *Persister) { p.now = now }
}

// WithMaxAttempts sets how often a write is retried on version conflict.
func WithMaxAttempts(n int) PersisterOption {
	return func(p *Persister) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// Persister applies read-modify-write updates to stored profiles. Missing
// profiles are created on first write.
type Persister struct {
	store       Store
	logger      *zap.Logger
	now         func() time.Time
	maxAttempts int

	tracer        trace.Tracer
	updateCounter metric.Int64Counter
}

// NewPersister creates a Persister over store.
func NewPersister(store Store, logger *zap.Logger, opts ...PersisterOption) (*Persister, error) {
	if store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Persister{
		store:       store,
		logger:      logger,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
		tracer:      otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	p.updateCounter, err = otel.Meter(instrumentationName).Int64Counter(
		"mediatord.profile.updates_total",
		metric.WithDescription("Total profile writes by operation and result"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		logger.Warn("failed to create profile update counter", zap.Error(err))
	}
	return p, nil
}

// Get returns the stored profile, or nil when the user has none yet.
func (p *Persister) Get(ctx context.Context, userID string) (*Profile, error) {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	prof, err := p.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return prof, nil
}

// Decayed returns the decayed view of the user's profile, or nil when the
// user has none yet.
func (p *Persister) Decayed(ctx context.Context, userID string) (*Decayed, error) {
	prof, err := p.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return DecayedPatterns(prof, p.now()), nil
}

// UpdateProfile sets the provided fields. Lists are newest first and
// anything past their cap is dropped. The timestamp is always refreshed
// and the version incremented.
func (p *Persister) UpdateProfile(ctx context.Context, userID string, u Update) (*Profile, error) {
	return p.mutate(ctx, "update", userID, func(prof *Profile, _ time.Time) error {
		if u.DisplayName != nil {
			prof.DisplayName = *u.DisplayName
		}
		if u.Patterns != nil {
			prof.Patterns = *u.Patterns
		}
		if u.Triggers != nil {
			prof.Triggers = *u.Triggers
		}
		if u.SuccessfulRewrites != nil {
			prof.SuccessfulRewrites = newest(*u.SuccessfulRewrites, MaxSuccessfulRewrites)
		}
		if u.InterventionHistory != nil {
			h := *u.InterventionHistory
			h.RecentInterventions = newest(h.RecentInterventions, MaxRecentInterventions)
			prof.InterventionHistory = h
		}
		return nil
	})
}

// RecordIntervention counts a shown suggestion and prepends it to the
// recent list.
func (p *Persister) RecordIntervention(ctx context.Context, userID string, in Intervention) (InterventionHistory, error) {
	prof, err := p.mutate(ctx, "intervention", userID, func(prof *Profile, now time.Time) error {
		h := &prof.InterventionHistory
		h.TotalInterventions++
		ts := now
		h.LastIntervention = &ts

		rec := InterventionRecord{
			Timestamp:       now,
			Type:            in.Type,
			EscalationLevel: in.EscalationLevel,
			MessagePreview:  preview(in.OriginalMessage),
		}
		if rec.Type == "" {
			rec.Type = DefaultInterventionType
		}
		if rec.EscalationLevel == "" {
			rec.EscalationLevel = UnknownEscalationLevel
		}
		h.RecentInterventions = prepend(h.RecentInterventions, rec, MaxRecentInterventions)
		h.recompute()
		return nil
	})
	if err != nil {
		return InterventionHistory{}, err
	}
	p.logger.Debug("recorded intervention",
		zap.String("user.id", prof.UserID),
		zap.Int("total", prof.InterventionHistory.TotalInterventions))
	return prof.InterventionHistory, nil
}

// RecordAcceptedRewrite prepends an accepted rewrite and refreshes the
// acceptance rate.
func (p *Persister) RecordAcceptedRewrite(ctx context.Context, userID string, rw AcceptedRewrite) (RewriteResult, error) {
	prof, err := p.mutate(ctx, "accepted_rewrite", userID, func(prof *Profile, now time.Time) error {
		prof.SuccessfulRewrites = prepend(prof.SuccessfulRewrites, SuccessfulRewrite{
			Original:   rw.Original,
			Rewrite:    rw.Rewrite,
			Tip:        rw.Tip,
			AcceptedAt: now,
		}, MaxSuccessfulRewrites)
		prof.InterventionHistory.AcceptedCount++
		prof.InterventionHistory.recompute()
		return nil
	})
	if err != nil {
		return RewriteResult{}, err
	}
	p.logger.Debug("recorded accepted rewrite",
		zap.String("user.id", prof.UserID),
		zap.Int("accepted", prof.InterventionHistory.AcceptedCount))
	return RewriteResult{
		SuccessfulRewrites:  prof.SuccessfulRewrites,
		InterventionHistory: prof.InterventionHistory,
	}, nil
}

// RecordRejection counts a suggestion the user dismissed.
func (p *Persister) RecordRejection(ctx context.Context, userID string) (InterventionHistory, error) {
	prof, err := p.mutate(ctx, "rejection", userID, func(prof *Profile, _ time.Time) error {
		prof.InterventionHistory.RejectedCount++
		prof.InterventionHistory.recompute()
		return nil
	})
	if err != nil {
		return InterventionHistory{}, err
	}
	return prof.InterventionHistory, nil
}

// mutate runs fn against the latest stored profile and writes the result
// with a version check, retrying on conflict.
func (p *Persister) mutate(ctx context.Context, op, userID string, fn func(*Profile, time.Time) error) (*Profile, error) {
	ctx, span := p.tracer.Start(ctx, "profile.update", trace.WithAttributes(attribute.String("profile.op", op)))
	defer span.End()

	id, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		current, err := p.store.Get(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			current = New(id)
		case err != nil:
			p.fail(ctx, span, op, err)
			return nil, fmt.Errorf("load profile %s: %w", id, err)
		}

		expected := current.ProfileVersion
		next := current.Clone()
		now := p.now().UTC()
		if err := fn(next, now); err != nil {
			p.fail(ctx, span, op, err)
			return nil, err
		}
		next.ProfileVersion = expected + 1
		next.LastProfileUpdate = now

		err = p.store.Put(ctx, next, expected)
		if err == nil {
			span.SetAttributes(
				attribute.Int64("profile.version", next.ProfileVersion),
				attribute.Int("profile.attempts", attempt),
			)
			p.count(ctx, op, "ok")
			return next, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			p.fail(ctx, span, op, err)
			return nil, fmt.Errorf("write profile %s: %w", id, err)
		}
		p.logger.Debug("profile version conflict, retrying",
			zap.String("user.id", id),
			zap.Int64("expected_version", expected),
			zap.Int("attempt", attempt))
	}

	err = fmt.Errorf("write profile %s after %d attempts: %w", id, p.maxAttempts, ErrVersionConflict)
	p.fail(ctx, span, op, err)
	return nil, err
}

func (p *Persister) fail(ctx context.Context, span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	p.count(ctx, op, "error")
}

func (p *Persister) count(ctx context.Context, op, result string) {
	if p.updateCounter == nil {
		return
	}
	p.updateCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result),
	))
}

// newest copies at most limit leading items of a newest-first list.
func newest[T any](list []T, limit int) []T {
	return append([]T{}, list[:min(len(list), limit)]...)
}

func prepend[T any](list []T, item T, limit int) []T {
	out := make([]T, 0, min(len(list)+1, limit))
	out = append(out, item)
	for _, v := range list {
		if len(out) == limit {
			break
		}
		out = append(out, v)
	}
	return out
}
