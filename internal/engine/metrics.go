package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus collectors for the mediation pipeline.
type Metrics struct {
	DecisionsTotal     *prometheus.CounterVec
	InterventionsTotal *prometheus.CounterVec
	FallbacksTotal     *prometheus.CounterVec
	FeedbackTotal      *prometheus.CounterVec
	EscalationScore    prometheus.Histogram
	ProcessDuration    prometheus.Histogram
}

// NewMetrics registers the collectors once per process.
//
// Metrics:
//   - mediatord_decisions_total{sentence_type}
//   - mediatord_interventions_total{category}
//   - mediatord_rewrite_fallbacks_total{reason}
//   - mediatord_feedback_total{outcome}
//   - mediatord_escalation_score
//   - mediatord_process_duration_seconds
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			DecisionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mediatord_decisions_total",
					Help: "Total processed messages by sentence type",
				},
				[]string{"sentence_type"},
			),
			InterventionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mediatord_interventions_total",
					Help: "Total interventions by rewrite category",
				},
				[]string{"category"},
			),
			FallbacksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mediatord_rewrite_fallbacks_total",
					Help: "Total fallback rewrites by reason",
				},
				[]string{"reason"},
			),
			FeedbackTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mediatord_feedback_total",
					Help: "Total feedback reports by outcome",
				},
				[]string{"outcome"},
			),
			EscalationScore: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "mediatord_escalation_score",
				Help:    "Room escalation score after each message",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			}),
			ProcessDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "mediatord_process_duration_seconds",
				Help:    "Duration of message processing in seconds",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return globalMetrics
}
