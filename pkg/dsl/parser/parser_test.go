package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
)

const fullPolicy = `
# Secrets policy
policy SEC_PR_002 {
  version: "1.2.0"
  name: "Secrets Detection"
  description: "No credentials in diffs"
  effective_date: "2025-01-01"
  supersedes: "SEC_PR_001"

  control SecretsScanner {
    signals: [secrets.detected, secrets.count secrets.high_severity_count]
    evidence: [secrets.findings]
  }

  rules {
    when secrets.detected == true and secrets.high_severity_count > 0 {
      enforce BLOCK
      message "High severity secret found"
    }
    when secrets.count >= 1 {
      enforce WARN
    }
    require approvals.security.count >= 1
  }

  compliance {
    SOC2: "CC6.1"
    ISO27001: "A.9.4.3"
  }
}
`

func TestParseSource_FullPolicy(t *testing.T) {
	policy, err := ParseSource(fullPolicy, "sec.dsl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if policy.PolicyID != "SEC_PR_002" {
		t.Errorf("expected policy id SEC_PR_002, got %q", policy.PolicyID)
	}
	if policy.Version != "1.2.0" || policy.Name != "Secrets Detection" {
		t.Errorf("unexpected metadata: version=%q name=%q", policy.Version, policy.Name)
	}
	if policy.Description != "No credentials in diffs" || policy.EffectiveDate != "2025-01-01" || policy.Supersedes != "SEC_PR_001" {
		t.Errorf("unexpected optional metadata: %+v", policy)
	}

	if len(policy.Controls) != 1 {
		t.Fatalf("expected 1 control, got %d", len(policy.Controls))
	}
	control := policy.GetControl("SecretsScanner")
	if control == nil {
		t.Fatal("expected SecretsScanner control")
	}
	wantSignals := []string{"secrets.detected", "secrets.count", "secrets.high_severity_count"}
	if strings.Join(control.Signals, ",") != strings.Join(wantSignals, ",") {
		t.Errorf("expected signals %v, got %v", wantSignals, control.Signals)
	}
	if len(control.Evidence) != 1 || control.Evidence[0] != "secrets.findings" {
		t.Errorf("unexpected evidence %v", control.Evidence)
	}

	if policy.RuleCount() != 3 {
		t.Fatalf("expected 3 rules, got %d", policy.RuleCount())
	}

	first := policy.Rules[0]
	bin, ok := first.Condition.(*ast.Binary)
	if !ok || bin.Op != ast.LogicalAnd {
		t.Fatalf("expected AND binary condition, got %#v", first.Condition)
	}
	if first.Enforcement.Result != ast.ResultBlock || first.Enforcement.Message != "High severity secret found" {
		t.Errorf("unexpected enforcement %+v", first.Enforcement)
	}

	second := policy.Rules[1]
	if second.Enforcement.Result != ast.ResultWarn || second.Enforcement.Message != "" {
		t.Errorf("unexpected enforcement %+v", second.Enforcement)
	}

	third := policy.Rules[2]
	if !third.Desugared {
		t.Error("expected require rule to be marked desugared")
	}

	if policy.Compliance["SOC2"] != "CC6.1" || policy.Compliance["ISO27001"] != "A.9.4.3" {
		t.Errorf("unexpected compliance mapping %v", policy.Compliance)
	}
}

func TestParse_Literals(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want ast.Value
	}{
		{"string", `a == "HIGH"`, ast.StringValue("HIGH")},
		{"int", `a > 10`, ast.IntValue(10)},
		{"negative int", `a > -3`, ast.IntValue(-3)},
		{"float", `a >= 0.75`, ast.FloatValue(0.75)},
		{"true", `a == true`, ast.BoolValue(true)},
		{"false", `a != false`, ast.BoolValue(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `policy P { version: "1.0.0" name: "n" rules { when ` + tt.expr + ` { enforce WARN } } }`
			policy, err := ParseSource(src, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			cmp, ok := policy.Rules[0].Condition.(*ast.Compare)
			if !ok {
				t.Fatalf("expected comparison, got %T", policy.Rules[0].Condition)
			}
			if cmp.Value != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, cmp.Value)
			}
		})
	}
}

func TestParse_Precedence(t *testing.T) {
	// a or b and c parses as a or (b and c)
	src := `policy P { version: "1.0.0" name: "n" rules {
		when a == 1 or b == 2 and c == 3 { enforce WARN }
	} }`
	policy, err := ParseSource(src, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root, ok := policy.Rules[0].Condition.(*ast.Binary)
	if !ok || root.Op != ast.LogicalOr {
		t.Fatalf("expected OR at root, got %#v", policy.Rules[0].Condition)
	}
	if left, ok := root.Left.(*ast.Compare); !ok || left.Signal != "a" {
		t.Errorf("expected a on the left, got %#v", root.Left)
	}
	right, ok := root.Right.(*ast.Binary)
	if !ok || right.Op != ast.LogicalAnd {
		t.Fatalf("expected AND on the right, got %#v", root.Right)
	}
}

func TestParse_InOperators(t *testing.T) {
	src := `policy P { version: "1.0.0" name: "n" rules {
		when core_risk.severity_level in "HIGH,CRITICAL" and raw.author not in "bots" { enforce WARN }
	} }`
	policy, err := ParseSource(src, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmps := ast.Comparisons(policy.Rules[0].Condition)
	if len(cmps) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(cmps))
	}
	if cmps[0].Operator != ast.OperatorIn {
		t.Errorf("expected in, got %q", cmps[0].Operator)
	}
	if cmps[1].Operator != ast.OperatorNotIn {
		t.Errorf("expected not in, got %q", cmps[1].Operator)
	}
}

func TestParse_RequireInversion(t *testing.T) {
	tests := []struct {
		written  string
		inverted ast.Operator
	}{
		{">=", ast.OperatorLessThan},
		{">", ast.OperatorLessEqual},
		{"<=", ast.OperatorGreaterThan},
		{"<", ast.OperatorGreaterEqual},
		{"==", ast.OperatorNotEqual},
		{"!=", ast.OperatorEqual},
	}

	for _, tt := range tests {
		t.Run(tt.written, func(t *testing.T) {
			src := `policy P { version: "1.0.0" name: "n" rules { require approvals.count ` + tt.written + ` 2 } }`
			policy, err := ParseSource(src, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rule := policy.Rules[0]
			cmp := rule.Condition.(*ast.Compare)
			if cmp.Signal != "approvals.count" {
				t.Errorf("expected signal approvals.count, got %q", cmp.Signal)
			}
			if cmp.Operator != tt.inverted {
				t.Errorf("require %s: expected inverted %q, got %q", tt.written, tt.inverted, cmp.Operator)
			}
			if rule.Enforcement.Result != ast.ResultBlock {
				t.Errorf("expected BLOCK, got %s", rule.Enforcement.Result)
			}
			wantMsg := "Requirement failed: approvals.count " + tt.written + " 2"
			if rule.Enforcement.Message != wantMsg {
				t.Errorf("expected message %q, got %q", wantMsg, rule.Enforcement.Message)
			}

			// The table is an involution.
			back, ok := InvertOperator(tt.inverted)
			if !ok || string(back) != tt.written {
				t.Errorf("inverting %q twice gave %q", tt.written, back)
			}
		})
	}
}

func TestParse_RequireRejectsMembership(t *testing.T) {
	src := `policy P { version: "1.0.0" name: "n" rules { require labels in "x" } }`
	_, err := ParseSource(src, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Expected operator after require identifier, got IN") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name:    "missing version",
			src:     `policy P { name: "n" }`,
			wantMsg: "Policy must have 'version' and 'name'",
		},
		{
			name:    "missing name",
			src:     `policy P { version: "1.0.0" }`,
			wantMsg: "Policy must have 'version' and 'name'",
		},
		{
			name:    "unexpected token in body",
			src:     `policy P { version: "1.0.0" name: "n" foo }`,
			wantMsg: "Unexpected token in policy body: IDENT",
		},
		{
			name:    "missing policy keyword",
			src:     `rules { }`,
			wantMsg: "Expected token POLICY, got RULES at line 1",
		},
		{
			name:    "unterminated policy",
			src:     "policy P {\n version: \"1.0.0\"\n name: \"n\"\n",
			wantMsg: "Expected token RBRACE, got EOF at line 4",
		},
		{
			name:    "missing comparison operator",
			src:     `policy P { version: "1.0.0" name: "n" rules { when a { enforce BLOCK } } }`,
			wantMsg: "Expected comparison operator, got LBRACE",
		},
		{
			name:    "signal on right-hand side",
			src:     `policy P { version: "1.0.0" name: "n" rules { when a == b { enforce BLOCK } } }`,
			wantMsg: "Expected literal, got IDENT",
		},
		{
			name:    "bad rule start",
			src:     `policy P { version: "1.0.0" name: "n" rules { enforce BLOCK } }`,
			wantMsg: "Expected WHEN or REQUIRE, got ENFORCE",
		},
		{
			name:    "unexpected token in control",
			src:     `policy P { version: "1.0.0" name: "n" control C { rules } }`,
			wantMsg: "Unexpected token in control: RULES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := ParseSource(tt.src, "")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if policy != nil {
				t.Error("expected no partial policy")
			}
			var dslErr *dslErrors.Error
			if !errors.As(err, &dslErr) {
				t.Fatalf("expected *errors.Error, got %T", err)
			}
			if dslErr.Type != dslErrors.ErrorTypeSyntax {
				t.Errorf("expected syntax error, got %s", dslErr.Type)
			}
			if dslErr.Message != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, dslErr.Message)
			}
		})
	}
}

func TestParse_LexicalErrorPropagates(t *testing.T) {
	_, err := ParseSource("policy P { version: @ }", "")
	var dslErr *dslErrors.Error
	if !errors.As(err, &dslErr) || dslErr.Type != dslErrors.ErrorTypeLexical {
		t.Fatalf("expected lexical error, got %v", err)
	}
}

func TestParse_SuggestsKeyword(t *testing.T) {
	_, err := ParseSource(`policy P { verison: "1.0.0" name: "n" }`, "")
	var dslErr *dslErrors.Error
	if !errors.As(err, &dslErr) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if dslErr.Suggestion != "Did you mean 'version'?" {
		t.Errorf("unexpected suggestion %q", dslErr.Suggestion)
	}
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.dsl")
	if err := os.WriteFile(path, []byte(fullPolicy), 0o644); err != nil {
		t.Fatal(err)
	}

	policy, err := NewParser().Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy.SourceFile != path {
		t.Errorf("expected source file %q, got %q", path, policy.SourceFile)
	}

	_, err = NewParser().WithMaxFileSize(10).Parse(path)
	var dslErr *dslErrors.Error
	if !errors.As(err, &dslErr) || dslErr.Type != dslErrors.ErrorTypeIO {
		t.Errorf("expected io error for oversized file, got %v", err)
	}

	_, err = NewParser().Parse(filepath.Join(dir, "missing.dsl"))
	if !errors.As(err, &dslErr) || dslErr.Type != dslErrors.ErrorTypeIO {
		t.Errorf("expected io error for missing file, got %v", err)
	}
}

func TestParser_ContextAttached(t *testing.T) {
	_, err := NewParser().ParseBytes([]byte("policy P {\n  version: \"1.0.0\"\n  bogus\n}"), "p.dsl")
	var dslErr *dslErrors.Error
	if !errors.As(err, &dslErr) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if dslErr.Location.Line != 3 {
		t.Errorf("expected error on line 3, got %d", dslErr.Location.Line)
	}
	if !strings.Contains(dslErr.Context, "bogus") {
		t.Errorf("expected source context, got %q", dslErr.Context)
	}
}
