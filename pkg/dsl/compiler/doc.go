// Package compiler expands a validated policy AST into atomic compiled
// rules.
//
// Each declared rule becomes one artifact with id `<POLICY-ID>.R<n>`. Its
// condition tree is flattened into a list of {signal, operator, value}
// triples that must all hold; OR is rejected so every artifact stays
// uniformly evaluable. Priority is 100 plus 20 for BLOCK or 10 for WARN,
// minus the declaration index.
//
// Artifacts carry the parent policy id, rule suffix, version, compliance
// mapping, effective date and superseded policy for traceability.
package compiler
