package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gatekeeper-hq/gatekeeper/pkg/cli"
	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/evidence"
	"gatekeeper-hq/gatekeeper/pkg/evidence/export"
	"gatekeeper-hq/gatekeeper/pkg/evidence/query"
	"gatekeeper-hq/gatekeeper/pkg/evidence/retention"
	"gatekeeper-hq/gatekeeper/pkg/evidence/storage"
)

var evidenceFlags struct {
	since      string
	until      string
	repo       string
	change     string
	status     string
	rule       string
	overridden bool
	minRisk    int
	limit      int
	offset     int
	sortBy     string
	order      string
	format     string
	output     string

	days       int
	maxRecords int64
	archiveDir string
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Query and prune evaluation records",
	Long: `Access the evaluation records written by evaluate and watch when
evidence.enabled is set.

Subcommands:
  query  - Query records with filters and export them
  show   - Print one record with its full payload
  prune  - Apply the retention policy now`,
}

var evidenceQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query evaluation records",
	Long: `Query evaluation records with filters.

Times are RFC3339 and filter on the evaluation time, both bounds inclusive.

Examples:
  # Blocked changes since the start of the year
  gatekeeper evidence query --status BLOCK --since 2026-01-01T00:00:00Z

  # Every change that triggered a rule, as CSV
  gatekeeper evidence query --rule SEC-PR-002.R1 --format csv --output secrets.csv

  # Overridden changes with high risk
  gatekeeper evidence query --overridden --min-risk 75`,
	RunE: queryEvidence,
}

var evidenceShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print one evaluation record",
	Args:  cobra.ExactArgs(1),
	RunE:  showEvidence,
}

var evidencePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records outside the retention policy",
	Long: `Delete records older than the retention period, then the oldest records
beyond the record cap. With an archive directory the deleted records are
first exported there as JSON.

Examples:
  gatekeeper evidence prune
  gatekeeper evidence prune --days 30 --archive-dir /var/lib/gatekeeper/archive`,
	RunE: pruneEvidence,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceQueryCmd)
	evidenceCmd.AddCommand(evidenceShowCmd)
	evidenceCmd.AddCommand(evidencePruneCmd)

	f := evidenceQueryCmd.Flags()
	f.StringVar(&evidenceFlags.since, "since", "", "earliest evaluation time (RFC3339)")
	f.StringVar(&evidenceFlags.until, "until", "", "latest evaluation time (RFC3339)")
	f.StringVar(&evidenceFlags.repo, "repo", "", "filter by repository")
	f.StringVar(&evidenceFlags.change, "change", "", "filter by change id")
	f.StringVar(&evidenceFlags.status, "status", "", "filter by overall status: BLOCK, WARN, COMPLIANT")
	f.StringVar(&evidenceFlags.rule, "rule", "", "filter by triggered rule id")
	f.BoolVar(&evidenceFlags.overridden, "overridden", false, "filter by override (use --overridden=false for none)")
	f.IntVar(&evidenceFlags.minRisk, "min-risk", 0, "minimum risk score")
	f.IntVar(&evidenceFlags.limit, "limit", query.DefaultLimit, "maximum records")
	f.IntVar(&evidenceFlags.offset, "offset", 0, "records to skip")
	f.StringVar(&evidenceFlags.sortBy, "sort", "evaluated_at", "sort field: evaluated_at, recorded_at, risk_score")
	f.StringVar(&evidenceFlags.order, "order", "desc", "sort order: asc, desc")
	f.StringVar(&evidenceFlags.format, "format", "text", "output format: text, json, csv")
	f.StringVarP(&evidenceFlags.output, "output", "o", "", "write to file instead of stdout")

	p := evidencePruneCmd.Flags()
	p.IntVar(&evidenceFlags.days, "days", 0, "retention days (overrides evidence.retention.days)")
	p.Int64Var(&evidenceFlags.maxRecords, "max-records", 0, "record cap (overrides evidence.retention.max_records)")
	p.StringVar(&evidenceFlags.archiveDir, "archive-dir", "", "archive directory (overrides evidence.retention.archive_dir)")
}

// openEvidence opens the configured store. Evidence need not be enabled
// to read existing records.
func openEvidence() (*config.Config, *slog.Logger, evidence.Storage, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := storage.Open(cfg.Evidence, logger)
	if err != nil {
		return nil, nil, nil, cli.NewCommandError("evidence", err)
	}
	return cfg, logger, store, nil
}

func buildQuery(cmd *cobra.Command) (*evidence.Query, error) {
	q := &evidence.Query{
		Repository:    evidenceFlags.repo,
		ChangeID:      evidenceFlags.change,
		OverallStatus: strings.ToUpper(evidenceFlags.status),
		RuleID:        evidenceFlags.rule,
		Limit:         evidenceFlags.limit,
		Offset:        evidenceFlags.offset,
		SortBy:        evidenceFlags.sortBy,
		SortOrder:     evidenceFlags.order,
	}

	for _, bound := range []struct {
		flag  string
		value string
		dst   **time.Time
	}{
		{"since", evidenceFlags.since, &q.StartTime},
		{"until", evidenceFlags.until, &q.EndTime},
	} {
		if bound.value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, bound.value)
		if err != nil {
			return nil, cli.NewConfigError(bound.flag, fmt.Sprintf("invalid RFC3339 time %q", bound.value))
		}
		*bound.dst = &t
	}

	if cmd.Flags().Changed("overridden") {
		v := evidenceFlags.overridden
		q.Overridden = &v
	}
	if cmd.Flags().Changed("min-risk") {
		v := evidenceFlags.minRisk
		q.MinRiskScore = &v
	}

	query.ApplyDefaults(q)
	if err := query.Validate(q); err != nil {
		return nil, cli.NewConfigError("query", err.Error())
	}
	return q, nil
}

func queryEvidence(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evidenceFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatCSV)
	if err != nil {
		return err
	}
	q, err := buildQuery(cmd)
	if err != nil {
		return err
	}

	_, _, store, err := openEvidence()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	records, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("evidence query", err)
	}

	w := cmd.OutOrStdout()
	if evidenceFlags.output != "" {
		file, err := os.Create(evidenceFlags.output)
		if err != nil {
			return cli.NewCommandError("evidence query", err)
		}
		defer file.Close()
		w = file
	}

	if err := writeRecords(ctx, w, format, records); err != nil {
		return cli.NewCommandError("evidence query", err)
	}
	if evidenceFlags.output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d records to %s\n", len(records), evidenceFlags.output)
	}
	return nil
}

func writeRecords(ctx context.Context, w io.Writer, format cli.OutputFormat, records []*evidence.EvaluationRecord) error {
	switch format {
	case cli.FormatJSON:
		return export.NewJSONExporter(true).Export(ctx, records, w)
	case cli.FormatCSV:
		return export.NewCSVExporter(true).Export(ctx, records, w)
	}

	table := &cli.Table{Headers: []string{"ID", "EVALUATED", "REPO", "CHANGE", "STATUS", "RISK", "TRIGGERED"}}
	for _, r := range records {
		status := r.OverallStatus
		if r.Overridden {
			status += " (override)"
		}
		ids := make([]string, len(r.Triggered))
		for i, t := range r.Triggered {
			ids[i] = t.RuleID
		}
		table.Append(
			r.ID,
			r.EvaluatedAt.UTC().Format(time.RFC3339),
			r.Repository,
			r.ChangeID,
			status,
			strconv.Itoa(r.RiskScore),
			strings.Join(ids, ","),
		)
	}
	if err := cli.NewFormatter(cli.FormatText).FormatTo(w, table); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d record(s)\n", len(records))
	return err
}

func showEvidence(cmd *cobra.Command, args []string) error {
	_, _, store, err := openEvidence()
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("evidence show", err)
	}
	return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), record)
}

func pruneEvidence(cmd *cobra.Command, args []string) error {
	cfg, logger, store, err := openEvidence()
	if err != nil {
		return err
	}
	defer store.Close()

	rcfg := retention.ConfigFrom(cfg.Evidence.Retention)
	if evidenceFlags.days > 0 {
		rcfg.RetentionDays = evidenceFlags.days
	}
	if evidenceFlags.maxRecords > 0 {
		rcfg.MaxRecords = evidenceFlags.maxRecords
	}
	if evidenceFlags.archiveDir != "" {
		rcfg.ArchiveDir = evidenceFlags.archiveDir
	}

	deleted, err := retention.NewPruner(store, rcfg, retention.WithLogger(logger)).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("evidence prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d records\n", deleted)
	return nil
}
