package dsl

import (
	"fmt"
	"strings"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
	"gatekeeper-hq/gatekeeper/pkg/dsl/compiler"
	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
	"gatekeeper-hq/gatekeeper/pkg/dsl/parser"
	"gatekeeper-hq/gatekeeper/pkg/dsl/validator"
)

// ValidationError wraps the semantic errors of one policy.
type ValidationError struct {
	List *dslErrors.ErrorList
}

// Error renders the messages as a bracketed list.
func (e *ValidationError) Error() string {
	quoted := make([]string, 0, e.List.Count())
	for _, msg := range e.List.Messages() {
		quoted = append(quoted, fmt.Sprintf("%q", msg))
	}
	return fmt.Sprintf("Validation failed: [%s]", strings.Join(quoted, ", "))
}

// Unwrap returns the underlying error list.
func (e *ValidationError) Unwrap() error {
	return e.List
}

// ParseAndValidate parses source and runs semantic validation. Semantic
// errors are returned as a *ValidationError carrying every message.
func ParseAndValidate(source, sourcePath string) (*ast.Policy, error) {
	policy, err := parser.ParseSource(source, sourcePath)
	if err != nil {
		return nil, err
	}

	if err := validator.Validate(policy); err != nil {
		if list, ok := err.(*dslErrors.ErrorList); ok {
			return nil, &ValidationError{List: list}
		}
		return nil, err
	}

	return policy, nil
}

// CompileSource runs the full pipeline on one source unit:
// lexer, parser, validator and compiler.
func CompileSource(source, sourcePath string) (*ast.Policy, []*compiler.CompiledRule, error) {
	policy, err := ParseAndValidate(source, sourcePath)
	if err != nil {
		return nil, nil, err
	}

	rules, err := compiler.Compile(policy, source)
	if err != nil {
		return nil, nil, err
	}

	return policy, rules, nil
}
