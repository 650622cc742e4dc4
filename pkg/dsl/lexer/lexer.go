package lexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
)

// pattern kinds that produce no token.
const (
	skip    Kind = "SKIP"
	comment Kind = "COMMENT"
	newline Kind = "NEWLINE"
)

type pattern struct {
	kind Kind
	re   *regexp.Regexp
}

func rule(kind Kind, expr string) pattern {
	return pattern{kind: kind, re: regexp.MustCompile(`^(?:` + expr + `)`)}
}

// patterns is tried in order at every position. Keywords and word
// operators come before IDENT so they are never read as identifiers.
var patterns = []pattern{
	rule(skip, `[ \t\r]+`),
	rule(comment, `#.*`),
	rule(newline, `\n`),

	rule(POLICY, `policy\b`),
	rule(CONTROL, `control\b`),
	rule(RULES, `rules\b`),
	rule(WHEN, `when\b`),
	rule(ENFORCE, `enforce\b`),
	rule(MESSAGE, `message\b`),
	rule(REQUIRE, `require\b`),
	rule(COMPLIANCE, `compliance\b`),
	rule(VERSION, `version\b`),
	rule(EFFECTIVE, `effective_date\b`),
	rule(SUPERSEDES, `supersedes\b`),
	rule(NAME, `name\b`),
	rule(DESC, `description\b`),
	rule(SIGNALS, `signals\b`),
	rule(EVIDENCE, `evidence\b`),

	rule(AND, `and\b`),
	rule(OR, `or\b`),
	rule(NOT_IN, `not\s+in\b`),
	rule(IN, `in\b`),
	rule(NOT, `not\b`),
	rule(EQ, `==`),
	rule(NEQ, `!=`),
	rule(GTE, `>=`),
	rule(LTE, `<=`),
	rule(GT, `>`),
	rule(LT, `<`),

	rule(LBRACE, `\{`),
	rule(RBRACE, `\}`),
	rule(LBRACKET, `\[`),
	rule(RBRACKET, `\]`),
	rule(COLON, `:`),
	rule(COMMA, `,`),
	rule(DOT, `\.`),

	rule(BOOL, `(?:true|false)\b`),
	rule(STRING, `"[^"]*"`),
	rule(NUMBER, `-?\d+(?:\.\d+)?`),
	rule(IDENT, `[a-zA-Z_][a-zA-Z0-9_]*`),
}

// Tokenize converts rule source into tokens terminated by EOF.
// The first character no pattern matches aborts the scan with a lexical
// error; no partial token stream is returned.
func Tokenize(src string) ([]Token, error) {
	return TokenizeFile(src, "")
}

// TokenizeFile is Tokenize with a file name recorded in error locations.
func TokenizeFile(src, file string) ([]Token, error) {
	var tokens []Token
	line := 1
	lineStart := 0
	pos := 0

	for pos < len(src) {
		rest := src[pos:]
		matched := false

		for _, p := range patterns {
			loc := p.re.FindStringIndex(rest)
			if loc == nil {
				continue
			}
			value := rest[:loc[1]]

			switch p.kind {
			case newline:
				line++
				lineStart = pos + 1
			case skip, comment:
			default:
				column := pos - lineStart + 1
				if p.kind == STRING {
					value = value[1 : len(value)-1]
				}
				tokens = append(tokens, Token{Kind: p.kind, Value: value, Line: line, Column: column})

				// String literals may span lines.
				if n := strings.Count(value, "\n"); n > 0 {
					line += n
					lineStart = pos + 1 + strings.LastIndex(value, "\n") + 1
				}
			}

			pos += loc[1]
			matched = true
			break
		}

		if !matched {
			column := pos - lineStart + 1
			r, _ := utf8.DecodeRuneInString(rest)
			return nil, &dslErrors.Error{
				Type:     dslErrors.ErrorTypeLexical,
				Message:  fmt.Sprintf("Illegal character '%c' at line %d, column %d", r, line, column),
				Location: ast.Location{File: file, Line: line, Column: column},
			}
		}
	}

	tokens = append(tokens, Token{Kind: EOF, Line: line})
	return tokens, nil
}
