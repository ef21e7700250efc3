// Package errors defines the typed error kinds produced by morty's pipeline,
// matching the fatal/warning split.
package errors

import (
	"fmt"
	"time"
)

// Kind classifies an error for the purpose of exit-code selection and
// warning-vs-fatal routing.
type Kind string

const (
	KindInput  Kind = "input"  // missing/unreadable file, malformed manifest
	KindParse  Kind = "parse"  // preprocessor or grammar failure
	KindResolve Kind = "resolve" // undefined module reference (always a warning)
	KindConflict Kind = "conflict" // duplicate DesignUnit name (always a warning)
	KindOutput Kind = "output" // I/O error writing the result
)

// InputError represents a fatal problem loading a ParseJob's source material.
type InputError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewInputError creates an InputError for the given path.
func NewInputError(path string, err error) *InputError {
	return &InputError{Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input: cannot read %s: %v", e.Path, e.Underlying)
}

func (e *InputError) Unwrap() error { return e.Underlying }

// ParseError represents a preprocessor/grammar failure at a specific
// location in a file's preprocessed text.
type ParseError struct {
	Path       string
	Line       int
	Column     int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new ParseError at the given 1-based line/column.
func NewParseError(path string, line, column int, err error) *ParseError {
	return &ParseError{Path: path, Line: line, Column: column, Underlying: err, Timestamp: time.Now()}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s:%d:%d: %v", e.Path, e.Line, e.Column, e.Underlying)
}

func (e *ParseError) Unwrap() error { return e.Underlying }

// ConflictError represents a duplicate DesignUnit declaration. It is
// never fatal; callers collect these as warnings.
type ConflictError struct {
	Name      string
	FirstPath string
	LaterPath string
	Timestamp time.Time
}

// NewConflictError creates a new ConflictError.
func NewConflictError(name, firstPath, laterPath string) *ConflictError {
	return &ConflictError{Name: name, FirstPath: firstPath, LaterPath: laterPath, Timestamp: time.Now()}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate declaration of %q: first seen in %s, also declared in %s", e.Name, e.FirstPath, e.LaterPath)
}

// OutputError represents a fatal failure to write the pickled output.
type OutputError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewOutputError creates a new OutputError.
func NewOutputError(path string, err error) *OutputError {
	return &OutputError{Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output: cannot write %s: %v", e.Path, e.Underlying)
}

func (e *OutputError) Unwrap() error { return e.Underlying }

// MultiError aggregates errors that were individually demoted to warnings,
// e.g. parse failures under --ignore-unparseable.
type MultiError struct {
	Errors []error
}

// NewMultiError creates a MultiError, dropping nil entries.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors[0])
}

func (e *MultiError) Unwrap() []error { return e.Errors }
