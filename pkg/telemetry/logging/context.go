package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for evaluation or build run IDs.
	RunIDKey contextKey = "run_id"

	// PolicyIDKey is the context key for the policy being processed.
	PolicyIDKey contextKey = "policy_id"

	// ChangeIDKey is the context key for the change (pull request or commit)
	// under evaluation.
	ChangeIDKey contextKey = "change_id"
)

var contextKeys = []contextKey{RunIDKey, PolicyIDKey, ChangeIDKey}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDKey)
}

// WithPolicyID adds a policy ID to the context.
func WithPolicyID(ctx context.Context, policyID string) context.Context {
	return context.WithValue(ctx, PolicyIDKey, policyID)
}

// GetPolicyID retrieves the policy ID from the context.
func GetPolicyID(ctx context.Context) string {
	return stringValue(ctx, PolicyIDKey)
}

// WithChangeID adds a change ID to the context.
func WithChangeID(ctx context.Context, changeID string) context.Context {
	return context.WithValue(ctx, ChangeIDKey, changeID)
}

// GetChangeID retrieves the change ID from the context.
func GetChangeID(ctx context.Context) string {
	return stringValue(ctx, ChangeIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextHandler decorates records with the fields stored in the context.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextKeys {
		if v := stringValue(ctx, key); v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
