package errors

import (
	"fmt"
	"strings"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
)

// ErrorType categorizes a rule-language diagnostic.
type ErrorType string

const (
	ErrorTypeLexical  ErrorType = "lexical"  // Illegal character in source
	ErrorTypeSyntax   ErrorType = "syntax"   // Unexpected token
	ErrorTypeSemantic ErrorType = "semantic" // Invalid version, enforcement action, etc.
	ErrorTypeCompile  ErrorType = "compile"  // Rule cannot be flattened
	ErrorTypeIO       ErrorType = "io"       // File I/O error
)

// Error is a diagnostic with location, optional source context and suggestion.
type Error struct {
	Type       ErrorType    // Category of error
	Message    string       // Error message
	Location   ast.Location // Source location
	Context    string       // Surrounding source lines
	Suggestion string       // Suggested fix (optional)
}

// Error implements the error interface with a single-line message.
func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("[%s] %s (%s)", e.Type, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Format renders the error over several lines with location, source
// context and suggestion, for terminal output.
func (e *Error) Format() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s\n", e.Type, e.Message))

	if e.Location.IsValid() {
		sb.WriteString(fmt.Sprintf("  --> %s\n", e.Location.String()))
	}

	if e.Context != "" {
		sb.WriteString("  |\n")
		sb.WriteString(e.Context)
		sb.WriteString("  |\n")
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  = suggestion: %s\n", e.Suggestion))
	}

	return sb.String()
}

// ErrorList accumulates diagnostics instead of stopping at the first one.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates an empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*Error, 0),
	}
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// AddError creates and adds a new error.
func (el *ErrorList) AddError(errType ErrorType, message string, location ast.Location) {
	el.Add(&Error{
		Type:     errType,
		Message:  message,
		Location: location,
	})
}

// AddErrorWithSuggestion creates and adds a new error with a suggestion.
func (el *ErrorList) AddErrorWithSuggestion(errType ErrorType, message string, location ast.Location, suggestion string) {
	el.Add(&Error{
		Type:       errType,
		Message:    message,
		Location:   location,
		Suggestion: suggestion,
	})
}

// HasErrors returns true if the list is non-empty.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Count returns the number of errors in the list.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Messages returns the bare message of every error, in order.
func (el *ErrorList) Messages() []string {
	out := make([]string, 0, len(el.Errors))
	for _, err := range el.Errors {
		out = append(out, err.Message)
	}
	return out
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d error(s):\n", el.Count()))

	for i, err := range el.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}

	return sb.String()
}

// ToError returns nil for an empty list, otherwise the list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}

// ByType returns all errors of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.Type == errType {
			result = append(result, err)
		}
	}
	return result
}

// HasErrorType returns true if at least one error has the given type.
func (el *ErrorList) HasErrorType(errType ErrorType) bool {
	for _, err := range el.Errors {
		if err.Type == errType {
			return true
		}
	}
	return false
}
