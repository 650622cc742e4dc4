// Package parser builds policy ASTs from rule-language source.
//
// The grammar is parsed by recursive descent, one method per production:
//
//	policy     := POLICY IDENT '{' (metadata | control | rules | compliance)* '}'
//	metadata   := (version | name | description | effective_date | supersedes) ':' STRING
//	control    := CONTROL IDENT '{' ((signals | evidence) ':' list)* '}'
//	list       := '[' dotted (','? dotted)* ']'
//	rules      := RULES '{' (when | require)* '}'
//	when       := WHEN or '{' ENFORCE IDENT (MESSAGE STRING)? '}'
//	require    := REQUIRE dotted ('>=' | '>' | '<=' | '<' | '==' | '!=') literal
//	or         := and (OR and)*
//	and        := comparison (AND comparison)*
//	comparison := dotted op literal
//	compliance := COMPLIANCE '{' (IDENT ':' STRING)* '}'
//
// There are no parenthesized sub-expressions. `require` is desugared into a
// BLOCK rule over the inverted comparison. Parsing stops at the first
// unexpected token so a partially parsed file can never be compiled.
package parser
