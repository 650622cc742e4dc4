package ast

// EnforcementResult is the verdict a triggered rule renders.
type EnforcementResult string

const (
	ResultBlock     EnforcementResult = "BLOCK"
	ResultWarn      EnforcementResult = "WARN"
	ResultCompliant EnforcementResult = "COMPLIANT"
)

// ValidResults lists the enforcement results a rule may declare.
var ValidResults = []EnforcementResult{ResultBlock, ResultWarn, ResultCompliant}

// IsValid reports whether r is BLOCK, WARN or COMPLIANT.
func (r EnforcementResult) IsValid() bool {
	return r == ResultBlock || r == ResultWarn || r == ResultCompliant
}

// Policy is the root AST node for one rule source file.
type Policy struct {
	// Metadata
	PolicyID      string // Identifier after the policy keyword, e.g. SEC_PR_001
	Version       string // Semantic version string
	Name          string // Human-readable name
	Description   string // Optional description
	EffectiveDate string // Optional effective date
	Supersedes    string // Optional id of the policy this one replaces

	// Content
	Controls   []*ControlDecl    // Declared control blocks
	Rules      []*Rule           // Rules in declaration order
	Compliance map[string]string // Standard -> clause mapping

	// Source tracking
	SourceFile string
	Location   Location
}

// ControlDecl documents which signal paths a control exposes.
// It is validated but never executed.
type ControlDecl struct {
	Name     string
	Signals  []string
	Evidence []string
	Location Location
}

// Rule is one declared `when` or desugared `require` rule.
type Rule struct {
	Condition   Expression
	Enforcement Enforcement
	// Desugared is true when the rule was written with `require`.
	Desugared bool
	Location  Location
}

// Enforcement is what happens when a rule's condition holds.
type Enforcement struct {
	Result   EnforcementResult
	Message  string
	Location Location
}

// GetControl returns the control declaration with the given name, or nil.
func (p *Policy) GetControl(name string) *ControlDecl {
	for _, c := range p.Controls {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RuleCount returns the number of declared rules.
func (p *Policy) RuleCount() int {
	return len(p.Rules)
}
