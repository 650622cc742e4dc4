package ast

// Visitor is called for every node reached by Walk.
type Visitor interface {
	VisitPolicy(*Policy) error
	VisitControl(*ControlDecl) error
	VisitRule(*Rule) error
	VisitExpression(Expression) error
}

// Walk traverses the policy depth-first, visiting nested Binary subtrees.
// It stops at the first error a visitor returns.
func Walk(policy *Policy, visitor Visitor) error {
	if err := visitor.VisitPolicy(policy); err != nil {
		return err
	}

	for _, control := range policy.Controls {
		if err := visitor.VisitControl(control); err != nil {
			return err
		}
	}

	for _, rule := range policy.Rules {
		if err := visitor.VisitRule(rule); err != nil {
			return err
		}
		if rule.Condition != nil {
			if err := WalkExpression(rule.Condition, visitor.VisitExpression); err != nil {
				return err
			}
		}
	}

	return nil
}

// WalkExpression calls fn for expr and every sub-expression, left before right.
func WalkExpression(expr Expression, fn func(Expression) error) error {
	if err := fn(expr); err != nil {
		return err
	}
	if b, ok := expr.(*Binary); ok {
		if err := WalkExpression(b.Left, fn); err != nil {
			return err
		}
		return WalkExpression(b.Right, fn)
	}
	return nil
}

// Comparisons returns every Compare leaf of expr in source order.
func Comparisons(expr Expression) []*Compare {
	var out []*Compare
	_ = WalkExpression(expr, func(e Expression) error {
		if c, ok := e.(*Compare); ok {
			out = append(out, c)
		}
		return nil
	})
	return out
}
