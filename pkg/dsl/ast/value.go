package ast

import (
	"strconv"
	"strings"
)

// ValueKind identifies which variant of a literal Value is populated.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueInt    ValueKind = "int"
	ValueFloat  ValueKind = "float"
	ValueBool   ValueKind = "bool"
)

// Value is a literal on the right-hand side of a comparison.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// StringValue returns a string literal.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// IntValue returns an integer literal.
func IntValue(i int64) Value { return Value{Kind: ValueInt, Int: i} }

// FloatValue returns a floating point literal.
func FloatValue(f float64) Value { return Value{Kind: ValueFloat, Float: f} }

// BoolValue returns a boolean literal.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// Interface returns the literal as a plain Go value (string, int64,
// float64 or bool), the shape written into compiled artifacts.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueBool:
		return v.Bool
	default:
		return nil
	}
}

// String renders the literal the way it is written in source, without quotes.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		s := strconv.FormatFloat(v.Float, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}
