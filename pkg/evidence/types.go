package evidence

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// EvaluationRecord is the audit trail of one evaluation run.
type EvaluationRecord struct {
	// Identity
	ID string `json:"id"` // UUID v4

	// Change under evaluation
	Repository string `json:"repository"`
	ChangeID   string `json:"change_id"`
	HeadSHA    string `json:"head_sha"`

	// Timestamps
	EvaluatedAt time.Time `json:"evaluated_at"` // When the engine returned
	RecordedAt  time.Time `json:"recorded_at"`  // When the record was built

	// Outcome
	OverallStatus  string        `json:"overall_status"`
	Overridden     bool          `json:"overridden"`
	OverrideReason string        `json:"override_reason,omitempty"`
	OriginalStatus string        `json:"original_status,omitempty"`
	RiskScore      int           `json:"risk_score"`
	RiskLevel      string        `json:"risk_level"`
	RuleCount      int           `json:"rule_count"`
	FindingsCount  int           `json:"findings_count"`
	Triggered      []RuleOutcome `json:"triggered"`

	// PolicyDigest identifies the compiled policy set (manifest digest).
	PolicyDigest string `json:"policy_digest,omitempty"`

	// Payload is the run result in RFC 8785 canonical form; PayloadHash is
	// its SHA-256 and can be rechecked with recorder.HashPayload after any
	// re-formatting.
	Payload     json.RawMessage `json:"payload"`
	PayloadHash string          `json:"payload_hash"`
}

// RuleOutcome summarises one triggered rule.
type RuleOutcome struct {
	RuleID    string `json:"rule_id"`
	Status    string `json:"status"`
	FindingID string `json:"finding_id,omitempty"`
}

// Query defines filter parameters for evaluation records.
type Query struct {
	// IDs restricts the result to specific records.
	IDs []string `json:"ids,omitempty"`

	// Time range on EvaluatedAt, both inclusive
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Filters
	Repository    string `json:"repository,omitempty"`
	ChangeID      string `json:"change_id,omitempty"`
	OverallStatus string `json:"overall_status,omitempty"` // BLOCK, WARN, COMPLIANT
	RuleID        string `json:"rule_id,omitempty"`        // any triggered rule
	Overridden    *bool  `json:"overridden,omitempty"`

	// Thresholds
	MinRiskScore *int `json:"min_risk_score,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Sorting
	SortBy    string `json:"sort_by,omitempty"`    // "evaluated_at", "recorded_at", "risk_score"
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc"
}

// Storage defines the interface for evidence storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record. Storing an existing id is an error.
	Store(ctx context.Context, record *EvaluationRecord) error

	// Get returns one record, or ErrNotFound.
	Get(ctx context.Context, id string) (*EvaluationRecord, error)

	// Query retrieves records matching the filters. It returns an empty
	// slice if nothing matches.
	Query(ctx context.Context, query *Query) ([]*EvaluationRecord, error)

	// QueryStream delivers matching records on a channel. The error
	// channel receives at most one error; both channels are closed when
	// the query completes. Callers should drain both.
	QueryStream(ctx context.Context, query *Query) (<-chan *EvaluationRecord, <-chan error, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the filters and returns how many.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Exporter writes records in a specific format.
type Exporter interface {
	Export(ctx context.Context, records []*EvaluationRecord, w io.Writer) error
}
