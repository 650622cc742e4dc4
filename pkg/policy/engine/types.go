package engine

import "gatekeeper-hq/gatekeeper/pkg/policy/loader"

// Overall and per-rule statuses.
const (
	StatusBlock     = loader.ResultBlock
	StatusWarn      = loader.ResultWarn
	StatusCompliant = loader.ResultCompliant
)

// DefaultOverrideLabels force a COMPLIANT overall status when present on
// the change.
var DefaultOverrideLabels = []string{"compliance-override", "emergency", "hotfix-approved"}

// RuleResult is the outcome of one rule.
type RuleResult struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Triggered  bool     `json:"triggered"`
	Violations []string `json:"violations"`

	// Evidence holds the signals named by the rule's evidence list.
	Evidence map[string]interface{} `json:"evidence"`

	// Traceability starts as the rule's compiled metadata and is enriched
	// for triggered rules when a Tracer is configured.
	Traceability map[string]interface{} `json:"traceability"`
}

// Override records a label override of the overall status.
type Override struct {
	Active         bool   `json:"active"`
	Reason         string `json:"reason"`
	OriginalStatus string `json:"original_status"`
	Approver       string `json:"approver"`
}

// FindingSummary is the part of a control finding carried in run metadata.
type FindingSummary struct {
	ControlID string `json:"control_id"`
	RuleID    string `json:"rule_id"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	FilePath  string `json:"file_path"`
}

// Metadata describes the inputs of a run.
type Metadata struct {
	CoreRiskScore int                    `json:"core_risk_score"`
	CoreRiskLevel string                 `json:"core_risk_level"`
	RawFeatures   map[string]interface{} `json:"raw_features"`
	FindingsCount int                    `json:"findings_count"`
	Findings      []FindingSummary       `json:"findings"`
	Override      *Override              `json:"override,omitempty"`
}

// RunResult is the terminal output of one evaluation. Results keep the
// order of the loaded rules.
type RunResult struct {
	OverallStatus string       `json:"overall_status"`
	Results       []RuleResult `json:"results"`
	Metadata      Metadata     `json:"metadata"`
}

// Triggered returns the results whose conditions all held.
func (r *RunResult) Triggered() []RuleResult {
	var out []RuleResult
	for _, res := range r.Results {
		if res.Triggered {
			out = append(out, res)
		}
	}
	return out
}
