package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Operators understood by Compare.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpIn           = "in"
	OpNotIn        = "not in"
)

// ErrUnknownOperator is returned by Compare for operators it does not know.
var ErrUnknownOperator = errors.New("unknown operator")

// CompareError describes a comparison that could not be made, such as an
// ordering between a string and a list.
type CompareError struct {
	Op       string
	Actual   Value
	Expected Value
	Cause    error
}

// Error returns the error message.
func (e *CompareError) Error() string {
	return fmt.Sprintf("cannot evaluate %s %s %s: %v", e.Actual.Kind(), e.Op, e.Expected.Kind(), e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CompareError) Unwrap() error {
	return e.Cause
}

// Compare evaluates `actual op expected`. Equality is strict on kind.
// Ordering operators coerce both sides to numbers: bools count as 0 and 1
// and strings must parse as numbers. Membership accepts a list on the
// right, or a string for substring tests.
//
// Callers decide what an error means; the engine treats it as false.
func Compare(op string, actual, expected Value) (bool, error) {
	switch op {
	case OpEqual:
		return actual.Equal(expected), nil
	case OpNotEqual:
		return !actual.Equal(expected), nil
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		return compareOrdered(op, actual, expected)
	case OpIn:
		return contains(op, expected, actual)
	case OpNotIn:
		in, err := contains(op, expected, actual)
		if err != nil {
			return false, err
		}
		return !in, nil
	}
	return false, &CompareError{Op: op, Actual: actual, Expected: expected, Cause: ErrUnknownOperator}
}

func compareOrdered(op string, actual, expected Value) (bool, error) {
	a, err := toNumber(actual)
	if err != nil {
		return false, &CompareError{Op: op, Actual: actual, Expected: expected, Cause: err}
	}
	e, err := toNumber(expected)
	if err != nil {
		return false, &CompareError{Op: op, Actual: actual, Expected: expected, Cause: err}
	}

	switch op {
	case OpGreater:
		return a > e, nil
	case OpGreaterEqual:
		return a >= e, nil
	case OpLess:
		return a < e, nil
	}
	return a <= e, nil
}

func toNumber(v Value) (float64, error) {
	switch v.kind {
	case KindNumber:
		return v.n, nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v.s)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%s is not a number", v.kind)
}

func contains(op string, container, item Value) (bool, error) {
	switch container.kind {
	case KindList:
		for _, v := range container.list {
			if v.Equal(item) {
				return true, nil
			}
		}
		return false, nil
	case KindString:
		if s, ok := item.AsString(); ok {
			return strings.Contains(container.s, s), nil
		}
	}
	return false, &CompareError{
		Op:       op,
		Actual:   item,
		Expected: container,
		Cause:    fmt.Errorf("%s cannot contain %s", container.kind, item.kind),
	}
}
