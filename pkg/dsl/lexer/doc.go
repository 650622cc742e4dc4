// Package lexer turns rule-language source text into a token stream.
//
// The scanner tries an ordered table of anchored patterns at each position.
// Whitespace and `#` comments are skipped; newlines advance the line counter.
// String literals are double-quoted and carry no escape sequences.
package lexer
