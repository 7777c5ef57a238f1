// Package errors provides custom error types for the tally system.
// These errors enable programmatic error checking (and exit code mapping)
// for configuration, data and content failures during a reconciliation run.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// As is an alias for the standard library errors.As.
var As = errors.As

// Common sentinel errors for the tally system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateKey indicates that a key appears more than once on a side
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrAmbiguous indicates that a key matched more than one candidate
	ErrAmbiguous = errors.New("ambiguous match")

	// ErrParse indicates that an input could not be parsed or loaded
	ErrParse = errors.New("parse error")

	// ErrAssertion indicates that a point assertion was violated
	ErrAssertion = errors.New("assertion failed")

	// ErrFingerprintMismatch indicates that a computed fingerprint differs from the expected one
	ErrFingerprintMismatch = errors.New("fingerprint mismatch")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// DuplicateKey describes one key that appears more than once on a side.
type DuplicateKey struct {
	Side  string
	Key   string
	Count int
}

// DuplicateKeyError reports every duplicated key found before matching.
type DuplicateKeyError struct {
	Duplicates []DuplicateKey
}

// Error implements the error interface
func (e *DuplicateKeyError) Error() string {
	var b strings.Builder
	b.WriteString("duplicate keys found:")
	for _, d := range e.Duplicates {
		fmt.Fprintf(&b, "\n  %s key %q appears %d times", d.Side, d.Key, d.Count)
	}
	return b.String()
}

// Is implements errors.Is support
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// NewDuplicateKeyError creates a DuplicateKeyError with duplicates sorted by side then key.
func NewDuplicateKeyError(dups []DuplicateKey) *DuplicateKeyError {
	sorted := append([]DuplicateKey(nil), dups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Side != sorted[j].Side {
			return sorted[i].Side < sorted[j].Side
		}
		return sorted[i].Key < sorted[j].Key
	})
	return &DuplicateKeyError{Duplicates: sorted}
}

// AmbiguousKey describes one left key with more than one right candidate.
type AmbiguousKey struct {
	Source     string
	Key        string
	Candidates []string
}

// AmbiguityError reports every ambiguous group of a run.
type AmbiguityError struct {
	Groups []AmbiguousKey
}

// Error implements the error interface
func (e *AmbiguityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous matches found (%d):", len(e.Groups))
	for _, g := range e.Groups {
		if g.Source != "" {
			fmt.Fprintf(&b, "\n  %s: ", g.Source)
		} else {
			b.WriteString("\n  ")
		}
		fmt.Fprintf(&b, "key %q has %d candidates: %s", g.Key, len(g.Candidates), strings.Join(g.Candidates, ", "))
	}
	return b.String()
}

// Is implements errors.Is support
func (e *AmbiguityError) Is(target error) bool {
	return target == ErrAmbiguous
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "csv", "json", "yaml", "fingerprint", etc.
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %s", e.Format, e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// AssertionError represents a violated point assertion.
type AssertionError struct {
	Location string
	Expected string
	Actual   string
	Message  string
}

// Error implements the error interface
func (e *AssertionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("assertion at %s failed: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("assertion at %s failed: expected %s, got %s", e.Location, e.Expected, e.Actual)
}

// Is implements errors.Is support
func (e *AssertionError) Is(target error) bool {
	return target == ErrAssertion
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation or configuration error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsDuplicateKey checks if an error is a duplicate key error
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsAmbiguous checks if an error is an ambiguity error
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguous)
}

// IsParse checks if an error is a parse or load error
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
