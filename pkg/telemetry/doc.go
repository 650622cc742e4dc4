// Package telemetry groups gatekeeper's observability packages.
//
//   - logging: log/slog setup with credential redaction and context fields
//   - metrics: Prometheus metrics for builds and evaluations
//   - health: liveness and readiness endpoints for watch mode
package telemetry
