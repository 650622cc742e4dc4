// Package controls implements the built-in compliance controls and the
// registry that runs them.
//
// A control inspects one change (its diff, reviews and configuration) and
// returns a SignalSet: flat dotted signal keys consumed by rule conditions,
// plus Findings kept as audit evidence. The built-in controls are
//
//	SEC-PR-003  privileged path changes     privileged.*
//	SEC-PR-002  hard-coded secrets          secrets.*
//	SEC-PR-004  required approvals          approvals.*
//	OSS-PR-001  dependency licenses         licenses.*
//	ENV-PR-001  production config leakage   env_boundary.*
//
// The Registry runs them concurrently and merges their outputs in the
// order above. Signal prefixes are disjoint, so the order only matters for
// controls added with Register.
package controls
