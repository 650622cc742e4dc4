package metrics

import (
	"gatekeeper-hq/gatekeeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EvidenceMetrics tracks evaluation record persistence.
//
// Metrics:
//   - gatekeeper_evidence_records_total: Records written by outcome
//   - gatekeeper_evidence_pruned_total: Records removed by retention
type EvidenceMetrics struct {
	recordsTotal *prometheus.CounterVec
	prunedTotal  prometheus.Counter
}

// NewEvidenceMetrics creates and registers evidence metrics. They use the
// "evidence" subsystem regardless of the configured one.
func NewEvidenceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvidenceMetrics {
	em := &EvidenceMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "evidence",
				Name:      "records_total",
				Help:      "Total number of evaluation records written",
			},
			[]string{"result"},
		),
		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "evidence",
				Name:      "pruned_total",
				Help:      "Total number of evaluation records removed by retention",
			},
		),
	}

	registry.MustRegister(em.recordsTotal, em.prunedTotal)
	return em
}

// RecordStore records one write attempt.
func (em *EvidenceMetrics) RecordStore(ok bool) {
	if em == nil {
		return
	}
	em.recordsTotal.WithLabelValues(outcome(ok)).Inc()
}

// RecordPruned adds n removed records.
func (em *EvidenceMetrics) RecordPruned(n int64) {
	if em == nil || n <= 0 {
		return
	}
	em.prunedTotal.Add(float64(n))
}
