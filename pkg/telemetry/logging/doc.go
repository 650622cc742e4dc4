// Package logging configures log/slog for gatekeeper.
//
// New returns a *slog.Logger with a JSON or text handler. When
// RedactSecrets is enabled a ReplaceAttr hook masks the values of
// credential-like keys (password, token, secret, ...) and rewrites
// credential patterns (AWS keys, GitHub tokens, Stripe keys, bearer
// tokens) inside any string attribute. Secret scanning findings pass
// through the logger, so this keeps detected values out of log files.
//
// Context fields set with WithRunID, WithPolicyID and WithChangeID are
// added to records logged with the *Context methods:
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json", RedactSecrets: true})
//	ctx := logging.WithRunID(ctx, runID)
//	logger.InfoContext(ctx, "evaluation complete", "status", "BLOCK")
package logging
