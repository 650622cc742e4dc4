package controls

import (
	"context"
	"time"

	"gatekeeper-hq/gatekeeper/pkg/config"
)

// Severity levels used by findings.
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// Control produces signals and findings for one change.
type Control interface {
	// ID returns the control identifier, e.g. "SEC-PR-002".
	ID() string

	// Execute evaluates the change. Controls never modify the context.
	Execute(ctx context.Context, cctx *Context) (*SignalSet, error)
}

// Review is a reviewer's verdict on a change.
type Review struct {
	Reviewer    string    `json:"reviewer"`
	State       string    `json:"state"` // APPROVED, CHANGES_REQUESTED, COMMENTED, DISMISSED
	SubmittedAt time.Time `json:"submitted_at"`
	CommitID    string    `json:"commit_id"`
}

// ReviewSource returns the reviews of a change.
type ReviewSource interface {
	Reviews(ctx context.Context, repo, changeID string) ([]Review, error)
}

// StaticReviews is a ReviewSource backed by a fixed list.
type StaticReviews []Review

// Reviews returns the list regardless of repo and change.
func (s StaticReviews) Reviews(context.Context, string, string) ([]Review, error) {
	return s, nil
}

// Context is the input shared by all controls.
type Context struct {
	Repo     string
	ChangeID string

	// HeadSHA is the current head commit of the change. Approvals
	// submitted on another commit are stale.
	HeadSHA string

	// Diff maps a file path to its unified diff text.
	Diff map[string]string

	Config *config.ControlsConfig

	// Reviews may be nil, in which case no reviews exist.
	Reviews ReviewSource
}

// Finding is one piece of audit evidence produced by a control.
type Finding struct {
	ControlID string                 `json:"control_id"`
	RuleID    string                 `json:"rule_id"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message"`
	FilePath  string                 `json:"file_path"`
	Line      int                    `json:"line_number,omitempty"`
	Evidence  map[string]interface{} `json:"evidence,omitempty"`
}

// SignalSet is the output of a control: flat dotted signal keys and the
// findings that explain them.
type SignalSet struct {
	Signals  map[string]interface{} `json:"signals"`
	Findings []Finding              `json:"findings"`
}

// NewSignalSet returns an empty, non-nil signal set.
func NewSignalSet() *SignalSet {
	return &SignalSet{
		Signals:  map[string]interface{}{},
		Findings: []Finding{},
	}
}

// Merge copies other into s. Signals in other overwrite existing keys.
func (s *SignalSet) Merge(other *SignalSet) {
	if other == nil {
		return
	}
	for k, v := range other.Signals {
		s.Signals[k] = v
	}
	s.Findings = append(s.Findings, other.Findings...)
}

func countSeverity(findings []Finding, severity string) int {
	n := 0
	for _, f := range findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}
