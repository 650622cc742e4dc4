package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"gatekeeper-hq/gatekeeper/pkg/evidence"
)

// CSVExporter writes records as CSV rows.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header is the CSV column list.
var Header = []string{
	"id", "repository", "change_id", "head_sha",
	"evaluated_at", "recorded_at",
	"overall_status", "overridden", "override_reason", "original_status",
	"risk_score", "risk_level", "rule_count", "findings_count", "triggered",
	"policy_digest", "payload_hash",
}

// Export writes records.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.EvaluationRecord, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}
	for _, record := range records {
		if err := writer.Write(recordToRow(record)); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

// ExportStream writes records from a channel, flushing every 100 rows.
func (e *CSVExporter) ExportStream(ctx context.Context, recordsCh <-chan *evidence.EvaluationRecord, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return evidence.NewExportError("csv", 0, err)
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-recordsCh:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return evidence.NewExportError("csv", count, err)
				}
				return nil
			}

			if err := writer.Write(recordToRow(record)); err != nil {
				return evidence.NewExportError("csv", count, err)
			}
			count++

			if count%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return evidence.NewExportError("csv", count, err)
				}
			}
		}
	}
}

func recordToRow(r *evidence.EvaluationRecord) []string {
	formatTime := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	}

	triggered := make([]string, len(r.Triggered))
	for i, t := range r.Triggered {
		triggered[i] = t.RuleID + ":" + t.Status
	}

	return []string{
		r.ID,
		r.Repository,
		r.ChangeID,
		r.HeadSHA,
		formatTime(r.EvaluatedAt),
		formatTime(r.RecordedAt),
		r.OverallStatus,
		strconv.FormatBool(r.Overridden),
		r.OverrideReason,
		r.OriginalStatus,
		strconv.Itoa(r.RiskScore),
		r.RiskLevel,
		strconv.Itoa(r.RuleCount),
		strconv.Itoa(r.FindingsCount),
		strings.Join(triggered, ";"),
		r.PolicyDigest,
		r.PayloadHash,
	}
}
