package metrics

import (
	"time"

	"gatekeeper-hq/gatekeeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BuildMetrics tracks policy compilation.
//
// Metrics:
//   - gatekeeper_policy_build_files_total: Source files processed by outcome
//   - gatekeeper_policy_build_rules_total: Compiled rules written
//   - gatekeeper_policy_builds_total: Completed builds by outcome
//   - gatekeeper_policy_build_duration_seconds: Whole-build duration
type BuildMetrics struct {
	filesTotal    *prometheus.CounterVec
	rulesTotal    prometheus.Counter
	buildsTotal   *prometheus.CounterVec
	buildDuration prometheus.Histogram
}

// NewBuildMetrics creates and registers build metrics with the provided registry.
func NewBuildMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BuildMetrics {
	bm := &BuildMetrics{
		filesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "build_files_total",
				Help:      "Total number of policy source files processed",
			},
			[]string{"result"},
		),

		rulesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "build_rules_total",
				Help:      "Total number of compiled rule artifacts written",
			},
		),

		buildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "builds_total",
				Help:      "Total number of policy builds",
			},
			[]string{"result"},
		),

		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "build_duration_seconds",
				Help:      "Duration of policy builds in seconds",
				Buckets:   buckets(cfg),
			},
		),
	}

	registry.MustRegister(
		bm.filesTotal,
		bm.rulesTotal,
		bm.buildsTotal,
		bm.buildDuration,
	)

	return bm
}

// RecordFile records one processed source file and the number of rules it
// produced. Failed files produce no rules.
func (bm *BuildMetrics) RecordFile(ok bool, rules int) {
	if bm == nil {
		return
	}
	bm.filesTotal.WithLabelValues(outcome(ok)).Inc()
	if ok {
		bm.rulesTotal.Add(float64(rules))
	}
}

// RecordBuild records a finished build.
//
// Example:
//
//	bm.RecordBuild(result.Success, time.Since(start))
func (bm *BuildMetrics) RecordBuild(success bool, duration time.Duration) {
	if bm == nil {
		return
	}
	bm.buildsTotal.WithLabelValues(outcome(success)).Inc()
	bm.buildDuration.Observe(duration.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func buckets(cfg *config.MetricsConfig) []float64 {
	if len(cfg.DurationBuckets) > 0 {
		return cfg.DurationBuckets
	}
	return config.DefaultDurationBuckets
}
