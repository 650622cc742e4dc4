package metrics

import (
	"gatekeeper-hq/gatekeeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns the registry and every metric group. Components receive
// the group they record into; a nil group disables recording.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	Build      *BuildMetrics
	Evaluation *EvaluationMetrics
	Evidence   *EvidenceMetrics
}

// NewCollector creates a collector with the specified configuration. If
// registry is nil a new registry is created. Go runtime and process
// collectors are registered alongside the gatekeeper metrics.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		config:     cfg,
		registry:   registry,
		Build:      NewBuildMetrics(cfg, registry),
		Evaluation: NewEvaluationMetrics(cfg, registry),
		Evidence:   NewEvidenceMetrics(cfg, registry),
	}
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
