// Package ast defines the syntax tree produced by the rule-language parser.
//
// A source file holds exactly one Policy. A Policy carries metadata
// (id, semantic version, name, optional description, effective date and
// superseded policy), zero or more ControlDecl blocks documenting signal
// paths, the declared Rules and a compliance mapping.
//
// Rule conditions are Expressions, a closed union of two node types:
//
//	*Compare  signal op literal
//	*Binary   left and|or right
//
// Literals are Values, a tagged union over string, int, float and bool.
//
// Nodes keep their source Location so diagnostics can point at the
// offending line. Trees exist only for the duration of one compile.
package ast
