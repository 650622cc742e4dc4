package loader

import (
	"fmt"
)

// Scope is the kind of change a rule applies to.
type Scope string

const (
	ScopePullRequest Scope = "pull_request"
	ScopeCommit      Scope = "commit"
)

// Enforcement results.
const (
	ResultBlock     = "BLOCK"
	ResultWarn      = "WARN"
	ResultCompliant = "COMPLIANT"
)

// Operators accepted in rule conditions.
var Operators = []string{">", ">=", "<", "<=", "==", "!=", "in", "not in"}

// Condition is one `signal operator value` check.
type Condition struct {
	Signal   string      `yaml:"signal" json:"signal"`
	Operator string      `yaml:"operator" json:"operator"`
	Value    interface{} `yaml:"value" json:"value"`
}

// Enforcement is what a triggered rule yields.
type Enforcement struct {
	Result  string `yaml:"result" json:"result"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// EvidenceSpec lists the signals to capture with a result.
type EvidenceSpec struct {
	Include []string `yaml:"include" json:"include"`
}

// Rule is a compiled rule ready for evaluation. Rules are not modified
// after loading.
type Rule struct {
	PolicyID    string                 `yaml:"policy_id" json:"policy_id"`
	Name        string                 `yaml:"name" json:"name"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Scope       Scope                  `yaml:"scope" json:"scope"`
	Enabled     bool                   `yaml:"enabled" json:"enabled"`
	Controls    []Condition            `yaml:"controls" json:"controls"`
	Enforcement Enforcement            `yaml:"enforcement" json:"enforcement"`
	Evidence    *EvidenceSpec          `yaml:"evidence,omitempty" json:"evidence,omitempty"`
	Metadata    map[string]interface{} `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	// SourcePath is the file the rule was loaded from.
	SourcePath string `yaml:"-" json:"-"`
}

// Priority returns metadata.priority, or 0 when absent.
func (r *Rule) Priority() int {
	switch p := r.Metadata["priority"].(type) {
	case int:
		return p
	case int64:
		return int(p)
	case float64:
		return int(p)
	}
	return 0
}

// document mirrors the on-disk schema so defaults can be told apart from
// explicit values.
type document struct {
	PolicyID    string                 `yaml:"policy_id"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Scope       string                 `yaml:"scope"`
	Enabled     *bool                  `yaml:"enabled"`
	Controls    []Condition            `yaml:"controls"`
	Enforcement *Enforcement           `yaml:"enforcement"`
	Evidence    *EvidenceSpec          `yaml:"evidence"`
	Metadata    map[string]interface{} `yaml:"metadata"`
}

func (d *document) toRule(path string) (*Rule, error) {
	if d.PolicyID == "" {
		return nil, fmt.Errorf("policy_id is required")
	}
	if d.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if d.Enforcement == nil {
		return nil, fmt.Errorf("enforcement is required")
	}
	switch d.Enforcement.Result {
	case ResultBlock, ResultWarn, ResultCompliant:
	default:
		return nil, fmt.Errorf("invalid enforcement result %q", d.Enforcement.Result)
	}

	scope := Scope(d.Scope)
	switch scope {
	case "":
		scope = ScopePullRequest
	case ScopePullRequest, ScopeCommit:
	default:
		return nil, fmt.Errorf("invalid scope %q", d.Scope)
	}

	if d.Controls == nil {
		return nil, fmt.Errorf("controls is required")
	}
	for i, c := range d.Controls {
		if c.Signal == "" {
			return nil, fmt.Errorf("controls[%d]: signal is required", i)
		}
		if !validOperator(c.Operator) {
			return nil, fmt.Errorf("controls[%d]: invalid operator %q", i, c.Operator)
		}
	}

	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}

	return &Rule{
		PolicyID:    d.PolicyID,
		Name:        d.Name,
		Description: d.Description,
		Scope:       scope,
		Enabled:     enabled,
		Controls:    d.Controls,
		Enforcement: *d.Enforcement,
		Evidence:    d.Evidence,
		Metadata:    d.Metadata,
		SourcePath:  path,
	}, nil
}

func validOperator(op string) bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}
