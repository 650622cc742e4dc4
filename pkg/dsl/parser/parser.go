package parser

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
	"gatekeeper-hq/gatekeeper/pkg/dsl/lexer"
)

// Parser reads rule source files into policy ASTs.
type Parser struct {
	maxFileSize int64 // Maximum source size in bytes (default: 1MB)
	withContext bool  // Attach source context to diagnostics
}

// NewParser creates a parser with default configuration.
func NewParser() *Parser {
	return &Parser{
		maxFileSize: 1024 * 1024,
		withContext: true,
	}
}

// WithMaxFileSize sets the maximum source size.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// WithContext toggles source context on returned diagnostics.
func (p *Parser) WithContext(enabled bool) *Parser {
	p.withContext = enabled
	return p
}

// Parse reads and parses the source file at path.
func (p *Parser) Parse(path string) (*ast.Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &dslErrors.Error{
			Type:     dslErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("Failed to access file: %v", err),
			Location: ast.Location{File: path},
		}
	}
	if info.Size() > p.maxFileSize {
		return nil, &dslErrors.Error{
			Type:     dslErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("File size %d exceeds maximum %d bytes", info.Size(), p.maxFileSize),
			Location: ast.Location{File: path},
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &dslErrors.Error{
			Type:     dslErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("Failed to read file: %v", err),
			Location: ast.Location{File: path},
		}
	}

	return p.ParseBytes(data, path)
}

// ParseBytes parses source held in memory. sourcePath is only used in
// diagnostics and may be empty.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*ast.Policy, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &dslErrors.Error{
			Type:     dslErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("Data size %d exceeds maximum %d bytes", len(data), p.maxFileSize),
			Location: ast.Location{File: sourcePath},
		}
	}
	if !utf8.Valid(data) {
		return nil, &dslErrors.Error{
			Type:     dslErrors.ErrorTypeIO,
			Message:  "Source is not valid UTF-8",
			Location: ast.Location{File: sourcePath},
		}
	}

	src := string(data)
	tokens, err := lexer.TokenizeFile(src, sourcePath)
	if err != nil {
		return nil, p.decorate(err, src)
	}

	policy, err := parseTokens(tokens, sourcePath)
	if err != nil {
		return nil, p.decorate(err, src)
	}
	return policy, nil
}

func (p *Parser) decorate(err error, src string) error {
	if !p.withContext {
		return err
	}
	if e, ok := err.(*dslErrors.Error); ok {
		return dslErrors.WithContext(e, src)
	}
	return err
}

// ParseSource tokenizes and parses src with default settings.
func ParseSource(src, sourcePath string) (*ast.Policy, error) {
	return NewParser().WithContext(false).ParseBytes([]byte(src), sourcePath)
}

