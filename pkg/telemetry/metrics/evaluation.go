package metrics

import (
	"time"

	"gatekeeper-hq/gatekeeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EvaluationMetrics tracks rule evaluation.
//
// Metrics:
//   - gatekeeper_policy_evaluations_total: Evaluations by overall status
//   - gatekeeper_policy_evaluation_duration_seconds: Evaluation duration
//   - gatekeeper_policy_rule_triggers_total: Triggered rules by rule and result
//   - gatekeeper_policy_overrides_total: Overrides applied by label
//   - gatekeeper_policy_control_errors_total: Controls that failed to execute
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	triggersTotal      *prometheus.CounterVec
	overridesTotal     *prometheus.CounterVec
	controlErrors      *prometheus.CounterVec
}

// NewEvaluationMetrics creates and registers evaluation metrics with the
// provided registry.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of evaluations by overall status",
			},
			[]string{"status"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of evaluations in seconds",
				Buckets:   buckets(cfg),
			},
		),

		// rule_id cardinality is bounded by the compiled rule set.
		triggersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_triggers_total",
				Help:      "Total number of triggered rules",
			},
			[]string{"rule_id", "result"},
		),

		overridesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "overrides_total",
				Help:      "Total number of label overrides applied",
			},
			[]string{"label"},
		),

		controlErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "control_errors_total",
				Help:      "Total number of control execution failures",
			},
			[]string{"control"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.triggersTotal,
		em.overridesTotal,
		em.controlErrors,
	)

	return em
}

// RecordEvaluation records a finished evaluation and its terminal status.
func (em *EvaluationMetrics) RecordEvaluation(status string, duration time.Duration) {
	if em == nil {
		return
	}
	em.evaluationsTotal.WithLabelValues(status).Inc()
	em.evaluationDuration.Observe(duration.Seconds())
}

// RecordTrigger records a rule whose conditions all held.
func (em *EvaluationMetrics) RecordTrigger(ruleID, result string) {
	if em == nil {
		return
	}
	em.triggersTotal.WithLabelValues(ruleID, result).Inc()
}

// RecordOverride records an override applied because of label.
func (em *EvaluationMetrics) RecordOverride(label string) {
	if em == nil {
		return
	}
	em.overridesTotal.WithLabelValues(label).Inc()
}

// RecordControlError records a control that returned an error.
func (em *EvaluationMetrics) RecordControlError(controlID string) {
	if em == nil {
		return
	}
	em.controlErrors.WithLabelValues(controlID).Inc()
}
