package validator

import (
	"fmt"
	"regexp"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
)

var (
	// semverPattern accepts plain MAJOR.MINOR.PATCH versions only.
	semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

	validActions = []string{
		string(ast.ResultBlock),
		string(ast.ResultWarn),
		string(ast.ResultCompliant),
	}
)

// Validator checks a parsed policy for semantic errors. Every error is
// collected; validation never stops at the first one.
type Validator struct {
	errors *dslErrors.ErrorList
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: dslErrors.NewErrorList(),
	}
}

// Validate returns an *errors.ErrorList holding every semantic error in
// policy, or nil when the policy is valid.
func (v *Validator) Validate(policy *ast.Policy) error {
	v.errors = dslErrors.NewErrorList()

	v.validateMetadata(policy)
	v.validateControls(policy)
	v.validateRules(policy)

	return v.errors.ToError()
}

// Errors returns the messages from the last Validate call.
func (v *Validator) Errors() []string {
	return v.errors.Messages()
}

func (v *Validator) validateMetadata(policy *ast.Policy) {
	if !semverPattern.MatchString(policy.Version) {
		v.errors.AddErrorWithSuggestion(
			dslErrors.ErrorTypeSemantic,
			fmt.Sprintf("Invalid semantic version: %s", policy.Version),
			policy.Location,
			"Use MAJOR.MINOR.PATCH, e.g. \"1.0.0\"",
		)
	}
}

func (v *Validator) validateControls(policy *ast.Policy) {
	seen := make(map[string]bool, len(policy.Controls))
	for _, control := range policy.Controls {
		if seen[control.Name] {
			v.errors.AddError(
				dslErrors.ErrorTypeSemantic,
				fmt.Sprintf("Duplicate control declaration: %s", control.Name),
				control.Location,
			)
		}
		seen[control.Name] = true
	}
}

func (v *Validator) validateRules(policy *ast.Policy) {
	for _, rule := range policy.Rules {
		if !rule.Enforcement.Result.IsValid() {
			v.errors.AddErrorWithSuggestion(
				dslErrors.ErrorTypeSemantic,
				fmt.Sprintf("Invalid enforcement action: %s", rule.Enforcement.Result),
				rule.Enforcement.Location,
				dslErrors.SuggestEnforcement(string(rule.Enforcement.Result), validActions),
			)
		}
		if rule.Condition != nil {
			v.validateExpression(rule.Condition)
		}
	}
}

// validateExpression walks nested Binary subtrees so errors deep in a
// condition are reported alongside top-level ones.
func (v *Validator) validateExpression(expr ast.Expression) {
	_ = ast.WalkExpression(expr, func(e ast.Expression) error {
		switch node := e.(type) {
		case *ast.Compare:
			if !node.Operator.IsValid() {
				v.errors.AddError(
					dslErrors.ErrorTypeSemantic,
					fmt.Sprintf("Invalid operator: %s", node.Operator),
					node.Location,
				)
			}
			if node.Signal == "" {
				v.errors.AddError(dslErrors.ErrorTypeSemantic, "Empty signal name", node.Location)
			}
		case *ast.Binary:
			if node.Op != ast.LogicalAnd && node.Op != ast.LogicalOr {
				v.errors.AddError(
					dslErrors.ErrorTypeSemantic,
					fmt.Sprintf("Invalid logical operator: %s", node.Op),
					node.Location,
				)
			}
		}
		return nil
	})
}

// Validate is a convenience wrapper around NewValidator().Validate.
func Validate(policy *ast.Policy) error {
	return NewValidator().Validate(policy)
}
