package builder

import (
	"errors"
	"fmt"
)

// ErrSourceNotFound is returned when the source directory does not exist.
var ErrSourceNotFound = errors.New("policy source directory not found")

// FileError records a failure to process one policy source file. The build
// continues with the remaining files.
type FileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("Failed to process %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}
