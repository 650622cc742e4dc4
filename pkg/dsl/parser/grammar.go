package parser

import (
	"fmt"
	"strconv"
	"strings"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
	"gatekeeper-hq/gatekeeper/pkg/dsl/lexer"
)

// requireInversion maps the operator written after `require` to the
// operator of the condition that must BLOCK.
var requireInversion = map[lexer.Kind]struct {
	written  ast.Operator
	inverted ast.Operator
}{
	lexer.GTE: {ast.OperatorGreaterEqual, ast.OperatorLessThan},
	lexer.GT:  {ast.OperatorGreaterThan, ast.OperatorLessEqual},
	lexer.LTE: {ast.OperatorLessEqual, ast.OperatorGreaterThan},
	lexer.LT:  {ast.OperatorLessThan, ast.OperatorGreaterEqual},
	lexer.EQ:  {ast.OperatorEqual, ast.OperatorNotEqual},
	lexer.NEQ: {ast.OperatorNotEqual, ast.OperatorEqual},
}

// InvertOperator returns the operator a `require` comparison desugars to.
func InvertOperator(op ast.Operator) (ast.Operator, bool) {
	for _, pair := range requireInversion {
		if pair.written == op {
			return pair.inverted, true
		}
	}
	return "", false
}

var comparisonOperators = map[lexer.Kind]ast.Operator{
	lexer.EQ:     ast.OperatorEqual,
	lexer.NEQ:    ast.OperatorNotEqual,
	lexer.GT:     ast.OperatorGreaterThan,
	lexer.LT:     ast.OperatorLessThan,
	lexer.GTE:    ast.OperatorGreaterEqual,
	lexer.LTE:    ast.OperatorLessEqual,
	lexer.IN:     ast.OperatorIn,
	lexer.NOT_IN: ast.OperatorNotIn,
}

// tokenParser is a recursive-descent parser over one token stream.
// It stops at the first unexpected token; there is no recovery.
type tokenParser struct {
	tokens []lexer.Token
	pos    int
	file   string
}

func parseTokens(tokens []lexer.Token, file string) (*ast.Policy, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != lexer.EOF {
		tokens = append(tokens, lexer.Token{Kind: lexer.EOF})
	}
	p := &tokenParser{tokens: tokens, file: file}
	return p.parsePolicy()
}

// policy := POLICY IDENT LBRACE (metadata | control | rules | compliance)* RBRACE
func (p *tokenParser) parsePolicy() (*ast.Policy, error) {
	start, err := p.consume(lexer.POLICY)
	if err != nil {
		return nil, err
	}
	id, err := p.consume(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.LBRACE); err != nil {
		return nil, err
	}

	policy := &ast.Policy{
		PolicyID:   id.Value,
		Compliance: map[string]string{},
		SourceFile: p.file,
		Location:   p.loc(start),
	}

	for !p.match(lexer.RBRACE) && !p.match(lexer.EOF) {
		switch p.current().Kind {
		case lexer.VERSION, lexer.NAME, lexer.DESC, lexer.EFFECTIVE, lexer.SUPERSEDES:
			key := p.advance()
			if _, err := p.consume(lexer.COLON); err != nil {
				return nil, err
			}
			value, err := p.consume(lexer.STRING)
			if err != nil {
				return nil, err
			}
			switch key.Kind {
			case lexer.VERSION:
				policy.Version = value.Value
			case lexer.NAME:
				policy.Name = value.Value
			case lexer.DESC:
				policy.Description = value.Value
			case lexer.EFFECTIVE:
				policy.EffectiveDate = value.Value
			case lexer.SUPERSEDES:
				policy.Supersedes = value.Value
			}

		case lexer.CONTROL:
			control, err := p.parseControl()
			if err != nil {
				return nil, err
			}
			policy.Controls = append(policy.Controls, control)

		case lexer.RULES:
			rules, err := p.parseRulesBlock()
			if err != nil {
				return nil, err
			}
			policy.Rules = append(policy.Rules, rules...)

		case lexer.COMPLIANCE:
			mapping, err := p.parseCompliance()
			if err != nil {
				return nil, err
			}
			policy.Compliance = mapping

		default:
			tok := p.current()
			e := p.errorAt(tok, fmt.Sprintf("Unexpected token in policy body: %s", tok.Kind))
			if tok.Kind == lexer.IDENT {
				e.Suggestion = dslErrors.SuggestKeyword(tok.Value, lexer.Keywords)
			}
			return nil, e
		}
	}

	if _, err := p.consume(lexer.RBRACE); err != nil {
		return nil, err
	}

	if policy.Version == "" || policy.Name == "" {
		e := p.errorAt(start, "Policy must have 'version' and 'name'")
		if policy.Version == "" {
			e.Suggestion = dslErrors.SuggestMissingField("version", `"1.0.0"`)
		} else {
			e.Suggestion = dslErrors.SuggestMissingField("name", `"My policy"`)
		}
		return nil, e
	}

	return policy, nil
}

// control := CONTROL IDENT LBRACE ((SIGNALS | EVIDENCE) COLON list)* RBRACE
func (p *tokenParser) parseControl() (*ast.ControlDecl, error) {
	start := p.advance()
	name, err := p.consume(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.LBRACE); err != nil {
		return nil, err
	}

	control := &ast.ControlDecl{Name: name.Value, Location: p.loc(start)}

	for !p.match(lexer.RBRACE) {
		switch p.current().Kind {
		case lexer.SIGNALS, lexer.EVIDENCE:
			key := p.advance()
			if _, err := p.consume(lexer.COLON); err != nil {
				return nil, err
			}
			items, err := p.parseList()
			if err != nil {
				return nil, err
			}
			if key.Kind == lexer.SIGNALS {
				control.Signals = items
			} else {
				control.Evidence = items
			}
		default:
			tok := p.current()
			return nil, p.errorAt(tok, fmt.Sprintf("Unexpected token in control: %s", tok.Kind))
		}
	}

	if _, err := p.consume(lexer.RBRACE); err != nil {
		return nil, err
	}
	return control, nil
}

// list := LBRACKET (dotted COMMA?)* RBRACKET
func (p *tokenParser) parseList() ([]string, error) {
	if _, err := p.consume(lexer.LBRACKET); err != nil {
		return nil, err
	}
	items := []string{}
	for !p.match(lexer.RBRACKET) {
		item, _, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.match(lexer.COMMA) {
			p.advance()
		}
	}
	if _, err := p.consume(lexer.RBRACKET); err != nil {
		return nil, err
	}
	return items, nil
}

// rules := RULES LBRACE (when | require)* RBRACE
func (p *tokenParser) parseRulesBlock() ([]*ast.Rule, error) {
	p.advance()
	if _, err := p.consume(lexer.LBRACE); err != nil {
		return nil, err
	}

	var rules []*ast.Rule
	for !p.match(lexer.RBRACE) {
		var (
			rule *ast.Rule
			err  error
		)
		switch p.current().Kind {
		case lexer.WHEN:
			rule, err = p.parseWhenRule()
		case lexer.REQUIRE:
			rule, err = p.parseRequireRule()
		default:
			tok := p.current()
			return nil, p.errorAt(tok, fmt.Sprintf("Expected WHEN or REQUIRE, got %s", tok.Kind))
		}
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if _, err := p.consume(lexer.RBRACE); err != nil {
		return nil, err
	}
	return rules, nil
}

// when := WHEN expr LBRACE ENFORCE IDENT (MESSAGE STRING)? RBRACE
func (p *tokenParser) parseWhenRule() (*ast.Rule, error) {
	start := p.advance()
	condition, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.LBRACE); err != nil {
		return nil, err
	}
	enforce, err := p.consume(lexer.ENFORCE)
	if err != nil {
		return nil, err
	}
	result, err := p.consume(lexer.IDENT)
	if err != nil {
		return nil, err
	}

	enforcement := ast.Enforcement{
		Result:   ast.EnforcementResult(result.Value),
		Location: p.loc(enforce),
	}
	if p.match(lexer.MESSAGE) {
		p.advance()
		msg, err := p.consume(lexer.STRING)
		if err != nil {
			return nil, err
		}
		enforcement.Message = msg.Value
	}

	if _, err := p.consume(lexer.RBRACE); err != nil {
		return nil, err
	}

	return &ast.Rule{
		Condition:   condition,
		Enforcement: enforcement,
		Location:    p.loc(start),
	}, nil
}

// require := REQUIRE dotted (GTE|GT|LTE|LT|EQ|NEQ) literal
//
// Desugars to a `when` rule on the inverted comparison with a BLOCK
// enforcement: `require x >= 1` becomes `when x < 1 { enforce BLOCK }`.
func (p *tokenParser) parseRequireRule() (*ast.Rule, error) {
	start := p.advance()
	signal, signalTok, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}

	opTok := p.current()
	pair, ok := requireInversion[opTok.Kind]
	if !ok {
		return nil, p.errorAt(opTok, fmt.Sprintf("Expected operator after require identifier, got %s", opTok.Kind))
	}
	p.advance()

	value, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	return &ast.Rule{
		Condition: &ast.Compare{
			Signal:   signal,
			Operator: pair.inverted,
			Value:    value,
			Location: p.loc(signalTok),
		},
		Enforcement: ast.Enforcement{
			Result:   ast.ResultBlock,
			Message:  fmt.Sprintf("Requirement failed: %s %s %s", signal, pair.written, value),
			Location: p.loc(start),
		},
		Desugared: true,
		Location:  p.loc(start),
	}, nil
}

// or := and (OR and)*
func (p *tokenParser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(lexer.OR) {
		op := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Left: left, Op: ast.LogicalOr, Right: right, Location: p.loc(op)}
	}
	return left, nil
}

// and := comparison (AND comparison)*
func (p *tokenParser) parseAnd() (ast.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.match(lexer.AND) {
		op := p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Left: left, Op: ast.LogicalAnd, Right: right, Location: p.loc(op)}
	}
	return left, nil
}

// comparison := dotted op literal
func (p *tokenParser) parseComparison() (ast.Expression, error) {
	signal, signalTok, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}

	opTok := p.current()
	op, ok := comparisonOperators[opTok.Kind]
	if !ok {
		return nil, p.errorAt(opTok, fmt.Sprintf("Expected comparison operator, got %s", opTok.Kind))
	}
	p.advance()

	value, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	return &ast.Compare{
		Signal:   signal,
		Operator: op,
		Value:    value,
		Location: p.loc(signalTok),
	}, nil
}

// dotted := IDENT (DOT IDENT)*
func (p *tokenParser) parseIdentifier() (string, lexer.Token, error) {
	first, err := p.consume(lexer.IDENT)
	if err != nil {
		return "", first, err
	}
	var sb strings.Builder
	sb.WriteString(first.Value)
	for p.match(lexer.DOT) {
		p.advance()
		part, err := p.consume(lexer.IDENT)
		if err != nil {
			return "", first, err
		}
		sb.WriteByte('.')
		sb.WriteString(part.Value)
	}
	return sb.String(), first, nil
}

// literal := STRING | NUMBER | BOOL
func (p *tokenParser) parseLiteral() (ast.Value, error) {
	tok := p.current()
	switch tok.Kind {
	case lexer.STRING:
		p.advance()
		return ast.StringValue(tok.Value), nil
	case lexer.NUMBER:
		p.advance()
		if strings.Contains(tok.Value, ".") {
			f, err := strconv.ParseFloat(tok.Value, 64)
			if err != nil {
				return ast.Value{}, p.errorAt(tok, fmt.Sprintf("Invalid number %q", tok.Value))
			}
			return ast.FloatValue(f), nil
		}
		i, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return ast.Value{}, p.errorAt(tok, fmt.Sprintf("Invalid number %q", tok.Value))
		}
		return ast.IntValue(i), nil
	case lexer.BOOL:
		p.advance()
		return ast.BoolValue(tok.Value == "true"), nil
	default:
		return ast.Value{}, p.errorAt(tok, fmt.Sprintf("Expected literal, got %s", tok.Kind))
	}
}

// compliance := COMPLIANCE LBRACE (IDENT COLON STRING)* RBRACE
func (p *tokenParser) parseCompliance() (map[string]string, error) {
	p.advance()
	if _, err := p.consume(lexer.LBRACE); err != nil {
		return nil, err
	}
	mapping := map[string]string{}
	for !p.match(lexer.RBRACE) {
		key, err := p.consume(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.COLON); err != nil {
			return nil, err
		}
		value, err := p.consume(lexer.STRING)
		if err != nil {
			return nil, err
		}
		mapping[key.Value] = value.Value
	}
	if _, err := p.consume(lexer.RBRACE); err != nil {
		return nil, err
	}
	return mapping, nil
}

func (p *tokenParser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *tokenParser) match(kind lexer.Kind) bool {
	return p.current().Kind == kind
}

func (p *tokenParser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *tokenParser) consume(kind lexer.Kind) (lexer.Token, error) {
	tok := p.current()
	if tok.Kind == kind {
		p.pos++
		return tok, nil
	}
	return tok, p.errorAt(tok, fmt.Sprintf("Expected token %s, got %s at line %d", kind, tok.Kind, tok.Line))
}

func (p *tokenParser) loc(tok lexer.Token) ast.Location {
	return ast.Location{File: p.file, Line: tok.Line, Column: tok.Column}
}

func (p *tokenParser) errorAt(tok lexer.Token, message string) *dslErrors.Error {
	return &dslErrors.Error{
		Type:     dslErrors.ErrorTypeSyntax,
		Message:  message,
		Location: p.loc(tok),
	}
}
