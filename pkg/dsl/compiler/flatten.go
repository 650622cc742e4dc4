package compiler

import (
	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
)

// FlattenResult is the outcome of reducing a condition tree to a flat
// AND list. When MustSplit is set the tree contains an OR and no
// conditions are returned; the author must write separate rules instead.
type FlattenResult struct {
	Conditions []Condition
	MustSplit  bool
	// SplitAt is the location of the first OR encountered.
	SplitAt ast.Location
}

// Flatten reduces expr to a list of conditions joined by AND.
// OR is never expanded into multiple rules.
func Flatten(expr ast.Expression) FlattenResult {
	switch node := expr.(type) {
	case *ast.Compare:
		return FlattenResult{Conditions: []Condition{{
			Signal:   node.Signal,
			Operator: string(node.Operator),
			Value:    node.Value.Interface(),
		}}}

	case *ast.Binary:
		if node.Op == ast.LogicalOr {
			return FlattenResult{MustSplit: true, SplitAt: node.Location}
		}
		left := Flatten(node.Left)
		if left.MustSplit {
			return left
		}
		right := Flatten(node.Right)
		if right.MustSplit {
			return right
		}
		return FlattenResult{Conditions: append(left.Conditions, right.Conditions...)}
	}

	return FlattenResult{}
}
