package ast

// Operator is a comparison operator usable in a rule condition.
type Operator string

const (
	OperatorEqual        Operator = "=="
	OperatorNotEqual     Operator = "!="
	OperatorGreaterThan  Operator = ">"
	OperatorLessThan     Operator = "<"
	OperatorGreaterEqual Operator = ">="
	OperatorLessEqual    Operator = "<="
	OperatorIn           Operator = "in"
	OperatorNotIn        Operator = "not in"
)

// Operators lists every comparison operator in a stable order.
var Operators = []Operator{
	OperatorEqual,
	OperatorNotEqual,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorGreaterEqual,
	OperatorLessEqual,
	OperatorIn,
	OperatorNotIn,
}

// IsValid reports whether op is a known comparison operator.
func (op Operator) IsValid() bool {
	for _, known := range Operators {
		if op == known {
			return true
		}
	}
	return false
}

// LogicalOp joins two sub-expressions.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// Expression is a rule condition: either a *Compare or a *Binary.
type Expression interface {
	Pos() Location
	exprNode()
}

// Compare is a single `signal op value` test.
type Compare struct {
	Signal   string   // Dotted signal path, e.g. "secrets.detected"
	Operator Operator // Comparison operator
	Value    Value    // Literal right-hand side
	Location Location // Source location of the signal
}

// Binary joins two expressions with and/or.
type Binary struct {
	Left     Expression
	Op       LogicalOp
	Right    Expression
	Location Location
}

// Pos returns the source location of the comparison.
func (c *Compare) Pos() Location { return c.Location }

// Pos returns the source location of the operator.
func (b *Binary) Pos() Location { return b.Location }

func (*Compare) exprNode() {}
func (*Binary) exprNode()  {}
