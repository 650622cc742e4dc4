package errors

import (
	"fmt"
	"strings"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
)

// ExtractContext returns the lines around location in src, numbered, with
// an arrow on the offending line and a caret under its column.
func ExtractContext(src string, location ast.Location, contextLines int) string {
	if !location.IsValid() {
		return ""
	}

	lines := strings.Split(src, "\n")
	errorLine := location.Line - 1
	if errorLine >= len(lines) {
		return ""
	}

	startLine := errorLine - contextLines
	endLine := errorLine + contextLines
	if startLine < 0 {
		startLine = 0
	}
	if endLine >= len(lines) {
		endLine = len(lines) - 1
	}

	var sb strings.Builder
	width := len(fmt.Sprintf("%d", endLine+1))

	for i := startLine; i <= endLine; i++ {
		prefix := "  "
		if i == errorLine {
			prefix = "->"
		}
		sb.WriteString(fmt.Sprintf("%s %*d | %s\n", prefix, width, i+1, lines[i]))

		if i == errorLine && location.Column > 0 {
			padding := strings.Repeat(" ", location.Column-1)
			sb.WriteString(fmt.Sprintf("   %s | %s^\n", strings.Repeat(" ", width), padding))
		}
	}

	return sb.String()
}

// WithContext attaches source context to err and returns it.
func WithContext(err *Error, src string) *Error {
	if err.Location.IsValid() {
		err.Context = ExtractContext(src, err.Location, 2)
	}
	return err
}
