package lexer

import "fmt"

// Kind identifies the lexical class of a token.
type Kind string

const (
	// Keywords
	POLICY     Kind = "POLICY"
	CONTROL    Kind = "CONTROL"
	RULES      Kind = "RULES"
	WHEN       Kind = "WHEN"
	ENFORCE    Kind = "ENFORCE"
	MESSAGE    Kind = "MESSAGE"
	REQUIRE    Kind = "REQUIRE"
	COMPLIANCE Kind = "COMPLIANCE"
	VERSION    Kind = "VERSION"
	EFFECTIVE  Kind = "EFFECTIVE"
	SUPERSEDES Kind = "SUPERSEDES"
	NAME       Kind = "NAME"
	DESC       Kind = "DESC"
	SIGNALS    Kind = "SIGNALS"
	EVIDENCE   Kind = "EVIDENCE"

	// Operators
	AND    Kind = "AND"
	OR     Kind = "OR"
	NOT_IN Kind = "NOT_IN"
	IN     Kind = "IN"
	NOT    Kind = "NOT"
	EQ     Kind = "EQ"
	NEQ    Kind = "NEQ"
	GTE    Kind = "GTE"
	LTE    Kind = "LTE"
	GT     Kind = "GT"
	LT     Kind = "LT"

	// Punctuation
	LBRACE   Kind = "LBRACE"
	RBRACE   Kind = "RBRACE"
	LBRACKET Kind = "LBRACKET"
	RBRACKET Kind = "RBRACKET"
	COLON    Kind = "COLON"
	COMMA    Kind = "COMMA"
	DOT      Kind = "DOT"

	// Literals
	BOOL   Kind = "BOOL"
	STRING Kind = "STRING"
	NUMBER Kind = "NUMBER"
	IDENT  Kind = "IDENT"

	EOF Kind = "EOF"
)

// Token is one lexeme with its position. Value holds the matched text;
// string literals have their quotes stripped.
type Token struct {
	Kind   Kind
	Value  string
	Line   int
	Column int
}

// String returns a debug representation of the token.
func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%q) at %d:%d", t.Kind, t.Value, t.Line, t.Column)
}

// Keywords lists the reserved words, used for "did you mean" suggestions.
var Keywords = []string{
	"policy", "control", "rules", "when", "enforce", "message", "require",
	"compliance", "version", "effective_date", "supersedes", "name",
	"description", "signals", "evidence",
}
