// Package engine evaluates compiled rules against the signals of a code
// change and renders a BLOCK, WARN or COMPLIANT verdict.
//
// # Evaluation Flow
//
//	input (diff, labels, raw features)
//	       ↓
//	risk scorer → core_risk.*, features.*
//	       ↓
//	control registry (only when a diff is present) → secrets.*, licenses.*, ...
//	       ↓
//	Flatten → one dotted-key signal map
//	       ↓
//	every rule, on a worker pool:
//	  all conditions hold? → rule's enforcement result, else COMPLIANT
//	       ↓
//	reduce BLOCK > WARN > COMPLIANT → tracer → label override
//	       ↓
//	RunResult
//
// # Conditions
//
// Each condition compares one signal with a literal through Compare. A
// missing signal, a null signal, or a comparison error makes the condition
// false. A rule only triggers when every condition holds, so a broken
// condition can suppress a rule but never trigger one; BLOCK is only ever
// reached through an explicit trigger.
//
// # Basic Usage
//
//	src := source.NewFileSource(cfg.Policy.CompiledDir, logger)
//	eng, err := engine.New(ctx, src, engine.OptionsFromConfig(cfg)...)
//	if err != nil {
//	    return err
//	}
//
//	result := eng.Evaluate(ctx, map[string]interface{}{
//	    "diff":   map[string]string{"auth/login.go": diffText},
//	    "labels": []string{"needs-review"},
//	})
//	if result.OverallStatus == engine.StatusBlock {
//	    ...
//	}
//
// # Overrides
//
// A change carrying one of the override labels is forced to COMPLIANT. The
// per-rule results are kept and Metadata.Override records the status the
// rules produced.
package engine
