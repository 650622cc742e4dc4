// Package risk scores a change before any rule is evaluated.
//
// The HeuristicScorer adds fixed points for four conditions: a critical
// path was touched, a churn hotspot was touched, the change is large, and
// no test file changed. The sum is clamped to 0-100 and classified against
// the configured HIGH and MEDIUM thresholds. The engine flattens the
// Result under the "core_risk" prefix so rules can refer to, for example,
// core_risk.severity_level.
package risk
