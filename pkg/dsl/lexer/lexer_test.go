package lexer

import (
	"errors"
	"testing"

	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
)

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_Kinds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Kind
	}{
		{
			name:  "empty input",
			input: "",
			want:  []Kind{EOF},
		},
		{
			name:  "keywords before identifiers",
			input: "policy control rules when enforce message require compliance",
			want:  []Kind{POLICY, CONTROL, RULES, WHEN, ENFORCE, MESSAGE, REQUIRE, COMPLIANCE, EOF},
		},
		{
			name:  "metadata keywords",
			input: "version effective_date supersedes name description signals evidence",
			want:  []Kind{VERSION, EFFECTIVE, SUPERSEDES, NAME, DESC, SIGNALS, EVIDENCE, EOF},
		},
		{
			name:  "keyword prefix is an identifier",
			input: "policy_id rulesets named",
			want:  []Kind{IDENT, IDENT, IDENT, EOF},
		},
		{
			name:  "operators",
			input: "== != >= <= > < and or in not",
			want:  []Kind{EQ, NEQ, GTE, LTE, GT, LT, AND, OR, IN, NOT, EOF},
		},
		{
			name:  "not in is one token",
			input: "x not   in y",
			want:  []Kind{IDENT, NOT_IN, IDENT, EOF},
		},
		{
			name:  "punctuation",
			input: "{ } [ ] : , .",
			want:  []Kind{LBRACE, RBRACE, LBRACKET, RBRACKET, COLON, COMMA, DOT, EOF},
		},
		{
			name:  "literals",
			input: `true false "hello" 42 -3.5 ident`,
			want:  []Kind{BOOL, BOOL, STRING, NUMBER, NUMBER, IDENT, EOF},
		},
		{
			name:  "comments are skipped",
			input: "policy # a comment with == tokens\nX",
			want:  []Kind{POLICY, IDENT, EOF},
		},
		{
			name:  "dotted path",
			input: "secrets.detected",
			want:  []Kind{IDENT, DOT, IDENT, EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := kinds(tokens)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d tokens %v, got %d %v", len(tt.want), tt.want, len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestTokenize_StringStripsQuotes(t *testing.T) {
	tokens, err := Tokenize(`message "Block \n message"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[1].Kind != STRING {
		t.Fatalf("expected STRING, got %s", tokens[1].Kind)
	}
	if tokens[1].Value != `Block \n message` {
		t.Errorf("expected raw string without escape processing, got %q", tokens[1].Value)
	}
}

func TestTokenize_Positions(t *testing.T) {
	src := "policy X {\n  version: \"1.0.0\"\n}"
	tokens, err := Tokenize(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		kind   Kind
		line   int
		column int
	}{
		{POLICY, 1, 1},
		{IDENT, 1, 8},
		{LBRACE, 1, 10},
		{VERSION, 2, 3},
		{COLON, 2, 10},
		{STRING, 2, 12},
		{RBRACE, 3, 1},
		{EOF, 3, 0},
	}

	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	for i, w := range want {
		tok := tokens[i]
		if tok.Kind != w.kind || tok.Line != w.line || tok.Column != w.column {
			t.Errorf("token %d: expected %s at %d:%d, got %s at %d:%d",
				i, w.kind, w.line, w.column, tok.Kind, tok.Line, tok.Column)
		}
	}
}

func TestTokenize_IllegalCharacter(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "first line",
			input:   "policy @",
			wantMsg: "Illegal character '@' at line 1, column 8",
		},
		{
			name:    "later line",
			input:   "policy X {\n  name: $\n}",
			wantMsg: "Illegal character '$' at line 2, column 9",
		},
		{
			name:    "single equals",
			input:   "a = 1",
			wantMsg: "Illegal character '=' at line 1, column 3",
		},
		{
			name:    "unterminated string",
			input:   `name: "abc`,
			wantMsg: `Illegal character '"' at line 1, column 7`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tokens != nil {
				t.Errorf("expected no partial tokens, got %d", len(tokens))
			}
			var dslErr *dslErrors.Error
			if !errors.As(err, &dslErr) {
				t.Fatalf("expected *errors.Error, got %T", err)
			}
			if dslErr.Type != dslErrors.ErrorTypeLexical {
				t.Errorf("expected lexical error, got %s", dslErr.Type)
			}
			if dslErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, dslErr.Message)
			}
		})
	}
}
