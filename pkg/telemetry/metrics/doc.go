// Package metrics provides Prometheus metrics for policy builds and
// evaluations.
//
// # Metrics Categories
//
//   - Build Metrics: files processed, rules compiled, build count and duration
//   - Evaluation Metrics: evaluations by status, duration, rule triggers,
//     overrides and control failures
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	b := builder.New(opts, builder.WithMetrics(collector.Build))
//	e := engine.New(rules, engine.WithMetrics(collector.Evaluation))
//	http.Handle("/metrics", collector.Handler())
//
// Record methods are safe to call on a nil receiver, so metrics can be
// disabled by passing nil.
package metrics
