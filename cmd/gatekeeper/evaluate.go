package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"gatekeeper-hq/gatekeeper/pkg/cli"
	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/evidence/recorder"
	"gatekeeper-hq/gatekeeper/pkg/evidence/storage"
	"gatekeeper-hq/gatekeeper/pkg/policy/builder"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine"
)

// Values of --fail-on.
const (
	failOnBlock = "block"
	failOnWarn  = "warn"
	failOnNever = "never"
)

var evaluateFlags struct {
	input    string
	compiled string
	format   string
	failOn   string
	record   bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a change against the compiled rules",
	Long: `Evaluate one change against the compiled rules and print the result.

The input is a JSON (or .yaml) document with the change signals:

  {
    "repo": "acme/payments",
    "change_id": "1234",
    "diff": {"src/auth/login.go": "+password = \"hunter2\""},
    "labels": ["hotfix-approved"],
    "reviews": [{"reviewer": "alice", "state": "APPROVED"}],
    "features": {"churn": 0.4}
  }

The command exits with status 1 when the overall status reaches --fail-on.
When evidence is enabled the result is also stored as an evaluation record.

Examples:
  # Evaluate and fail CI on BLOCK
  gatekeeper evaluate --input change.json

  # Read from stdin, fail on WARN too, JSON output
  cat change.json | gatekeeper evaluate --input - --fail-on warn --format json

  # Store an evaluation record even if evidence is disabled in config
  gatekeeper evaluate --input change.json --record`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.input, "input", "i", "", "change input file, or - for stdin (required)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.compiled, "compiled", "", "compiled rules directory (overrides policy.compiled_dir)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.format, "format", "text", "output format: text, json")
	evaluateCmd.Flags().StringVar(&evaluateFlags.failOn, "fail-on", failOnBlock, "exit non-zero at this status: block, warn, never")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.record, "record", false, "store an evaluation record (overrides evidence.enabled)")
	_ = evaluateCmd.MarkFlagRequired("input")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evaluateFlags.format)
	if err != nil {
		return err
	}
	failOn := strings.ToLower(evaluateFlags.failOn)
	if failOn != failOnBlock && failOn != failOnWarn && failOn != failOnNever {
		return cli.NewConfigError("fail-on", fmt.Sprintf("unsupported value %q (want block, warn, never)", evaluateFlags.failOn))
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if evaluateFlags.compiled != "" {
		cfg.Policy.CompiledDir = evaluateFlags.compiled
	}
	if cmd.Flags().Changed("record") {
		cfg.Evidence.Enabled = evaluateFlags.record
	}

	input, err := readInput(evaluateFlags.input, cmd.InOrStdin())
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	ctx := cmd.Context()
	eng, _, err := newEngine(ctx, cfg, logger, cfg.Policy.CompiledDir, nil)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	result := eng.Evaluate(ctx, input)

	var recordID string
	if cfg.Evidence.Enabled {
		recordID, err = recordEvaluation(cmd, cfg, logger, result, input)
		if err != nil {
			return cli.NewCommandError("evaluate", err)
		}
	}

	w := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(w, result); err != nil {
			return err
		}
	} else {
		if err := printEvaluation(cmd, result, recordID); err != nil {
			return err
		}
	}

	if shouldFail(result.OverallStatus, failOn) {
		return cli.NewExitError(1, fmt.Errorf("overall status %s", result.OverallStatus))
	}
	return nil
}

func shouldFail(status, failOn string) bool {
	switch failOn {
	case failOnBlock:
		return status == engine.StatusBlock
	case failOnWarn:
		return status == engine.StatusBlock || status == engine.StatusWarn
	}
	return false
}

// recordEvaluation stores result and waits for the write to finish.
func recordEvaluation(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, result *engine.RunResult, input map[string]interface{}) (string, error) {
	store, err := storage.Open(cfg.Evidence, logger)
	if err != nil {
		return "", err
	}
	defer store.Close()

	change := recorder.ChangeFromInput(input)
	if m, err := builder.LoadManifest(cfg.Policy.CompiledDir); err == nil {
		change.PolicyDigest = m.Digest
	}

	rec := recorder.New(store, recorder.WithLogger(logger))
	record, err := rec.Record(cmd.Context(), result, change)
	if cerr := rec.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}

	// The write is asynchronous; confirm it landed.
	if _, err := store.Get(cmd.Context(), record.ID); err != nil {
		return "", fmt.Errorf("evaluation record %s was not stored: %w", record.ID, err)
	}
	return record.ID, nil
}

func printEvaluation(cmd *cobra.Command, result *engine.RunResult, recordID string) error {
	w := cmd.OutOrStdout()
	meta := result.Metadata

	fmt.Fprintf(w, "Overall status: %s\n", result.OverallStatus)
	if o := meta.Override; o != nil && o.Active {
		fmt.Fprintf(w, "Override: %s (was %s, approver %s)\n", o.Reason, o.OriginalStatus, o.Approver)
	}
	fmt.Fprintf(w, "Risk: %d (%s)\n", meta.CoreRiskScore, meta.CoreRiskLevel)
	fmt.Fprintf(w, "Control findings: %d\n", meta.FindingsCount)
	if recordID != "" {
		fmt.Fprintf(w, "Evidence record: %s\n", recordID)
	}

	triggered := result.Triggered()
	fmt.Fprintf(w, "Triggered rules: %d of %d\n", len(triggered), len(result.Results))
	if len(triggered) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	table := &cli.Table{Headers: []string{"RULE", "STATUS", "FINDING", "VIOLATIONS"}}
	for _, r := range triggered {
		finding, _ := r.Traceability["finding_id"].(string)
		table.Append(r.ID, r.Status, finding, strings.Join(r.Violations, "; "))
	}
	return cli.NewFormatter(cli.FormatText).FormatTo(w, table)
}
