package ast

import "fmt"

// Location is the position of a node in a rule source file.
type Location struct {
	File   string // Path to the source file
	Line   int    // Line number (1-based)
	Column int    // Column number (1-based)
}

// String returns "file:line:column", or "line L, column C" when the
// source was not read from a file.
func (l Location) String() string {
	if l.File == "" {
		if l.Line == 0 {
			return "<unknown>"
		}
		return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid returns true if the location carries line information.
func (l Location) IsValid() bool {
	return l.Line > 0
}
