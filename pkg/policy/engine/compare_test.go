package engine

import (
	"errors"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		actual   Value
		expected Value
		want     bool
		wantErr  bool
	}{
		{"bool equal", OpEqual, Bool(true), Bool(true), true, false},
		{"bool not equal", OpEqual, Bool(true), Bool(false), false, false},
		{"int float equal", OpEqual, ValueOf(3), ValueOf(3.0), true, false},
		{"kind mismatch is unequal", OpEqual, String("1"), Number(1), false, false},
		{"string not equal", OpNotEqual, String("HIGH"), String("LOW"), true, false},
		{"null equal null", OpEqual, Null(), Null(), true, false},
		{"greater", OpGreater, Number(5), Number(3), true, false},
		{"greater equal boundary", OpGreaterEqual, Number(3), Number(3), true, false},
		{"less", OpLess, Number(2), Number(3), true, false},
		{"less equal false", OpLessEqual, Number(4), Number(3), false, false},
		{"numeric string coerced", OpGreater, String("10"), Number(9), true, false},
		{"bool coerced", OpGreater, Bool(true), Number(0), true, false},
		{"non numeric string", OpGreater, String("high"), Number(1), false, true},
		{"list not orderable", OpLess, List(), Number(1), false, true},
		{"in list", OpIn, String("auth"), ValueOf([]string{"auth", "payment"}), true, false},
		{"in list numeric", OpIn, Number(2), ValueOf([]interface{}{1, 2}), true, false},
		{"not in list", OpIn, String("crypto"), ValueOf([]string{"auth"}), false, false},
		{"in substring", OpIn, String("prod"), String("production"), true, false},
		{"in non container", OpIn, String("a"), Number(1), false, true},
		{"not in missing", OpNotIn, String("crypto"), ValueOf([]string{"auth"}), true, false},
		{"not in propagates error", OpNotIn, Number(1), Bool(true), false, true},
		{"unknown operator", "~=", Number(1), Number(1), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.op, tt.actual, tt.expected)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compare() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Compare(%s %s %s) = %v, want %v", tt.actual, tt.op, tt.expected, got, tt.want)
			}
		})
	}
}

func TestCompare_ErrorType(t *testing.T) {
	_, err := Compare("~=", Number(1), Number(1))
	var cerr *CompareError
	if !errors.As(err, &cerr) {
		t.Fatalf("error %T is not *CompareError", err)
	}
	if !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("error %v does not wrap ErrUnknownOperator", err)
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   interface{}
		kind Kind
		str  string
	}{
		{nil, KindNull, "null"},
		{true, KindBool, "true"},
		{42, KindNumber, "42"},
		{int64(7), KindNumber, "7"},
		{2.5, KindNumber, "2.5"},
		{"HIGH", KindString, "HIGH"},
		{[]string{"a", "b"}, KindList, "[a, b]"},
		{[]interface{}{"a", 1, false}, KindList, "[a, 1, false]"},
		{map[string]interface{}{"b": 2, "a": "x"}, KindOpaque, "{a: x, b: 2}"},
		{struct{ X int }{1}, KindOpaque, "{1}"},
	}
	for _, tt := range tests {
		v := ValueOf(tt.in)
		if v.Kind() != tt.kind {
			t.Errorf("ValueOf(%v).Kind() = %s, want %s", tt.in, v.Kind(), tt.kind)
		}
		if v.String() != tt.str {
			t.Errorf("ValueOf(%v).String() = %q, want %q", tt.in, v.String(), tt.str)
		}
	}
}

func TestValue_Interface(t *testing.T) {
	if got := ValueOf(3.0).Interface(); got != 3 {
		t.Errorf("Interface() = %#v, want int 3", got)
	}
	if got := ValueOf(0.25).Interface(); got != 0.25 {
		t.Errorf("Interface() = %#v", got)
	}
	if got := Null().Interface(); got != nil {
		t.Errorf("Interface() = %#v", got)
	}
	list, ok := ValueOf([]string{"x"}).Interface().([]interface{})
	if !ok || len(list) != 1 || list[0] != "x" {
		t.Errorf("Interface() = %#v", list)
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, StatusCompliant},
		{[]string{StatusCompliant, StatusCompliant}, StatusCompliant},
		{[]string{StatusCompliant, StatusWarn}, StatusWarn},
		{[]string{StatusWarn, StatusBlock, StatusCompliant}, StatusBlock},
		{[]string{"bogus"}, StatusCompliant},
	}
	for _, tt := range tests {
		if got := Reduce(tt.in...); got != tt.want {
			t.Errorf("Reduce(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
