// Package parsers turns source text into the syntax model analyzed by classgraph.
package parsers

import (
	"context"
	"fmt"

	"gitlab.com/tozd/go/errors"

	"github.com/Benny93/classgraph/internal/syntax"
)

// Sentinel errors for parse failures. Check them with errors.Is.
var (
	// ErrParseFailed indicates the source could not be turned into a
	// syntax tree. It is fatal for the analysis of that file.
	ErrParseFailed = errors.Base("parse failed")

	// ErrUnsupportedLanguage indicates no parser handles the file type.
	ErrUnsupportedLanguage = errors.Base("unsupported language")
)

// ParseError describes where a parse failed.
type ParseError struct {
	// FilePath is the file being parsed.
	FilePath string

	// Line is the 1-based line of the first syntax error, 0 if unknown.
	Line int

	// Column is the 1-based column of the first syntax error, 0 if unknown.
	Column int

	// Message describes the failure.
	Message string

	// Cause is the underlying error. Syntax errors use ErrParseFailed.
	Cause error
}

// Error formats the failure as file:line:col: message.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports every ParseError as ErrParseFailed.
func (e *ParseError) Is(target error) bool {
	return target == ErrParseFailed
}

// Parser defines the interface for language-specific parsers.
type Parser interface {
	// Parse parses one compilation unit into a syntax tree.
	// Malformed input returns a *ParseError.
	Parse(ctx context.Context, filePath string, content []byte) (*syntax.CompilationUnit, error)

	// Language returns the language this parser handles.
	Language() string
}

// ForFile returns the parser for a file name.
func ForFile(filePath string) (Parser, error) {
	java := NewJavaParser()
	if java.SupportsFile(filePath) {
		return java, nil
	}
	return nil, errors.Errorf("%s: %w", filePath, ErrUnsupportedLanguage)
}
