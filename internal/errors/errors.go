// Package errors defines the positioned errors reported while compiling and
// evaluating templates, categorized errors for everything around them, and
// a collector for batch builds.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// BuildError is an error tied to a position in a template or program.
type BuildError struct {
	Template string
	File     string
	Line     int
	Column   int
	Message  string
	Severity ErrorSeverity
	Cause    error
	// Timestamp is set when the error is added to a collector.
	Timestamp time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (be *BuildError) Error() string {
	msg := fmt.Sprintf("%s:%d:%d: %s: %s", be.File, be.Line, be.Column, be.Severity, be.Message)
	if be.Cause != nil {
		msg += ": " + be.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (be *BuildError) Unwrap() error {
	return be.Cause
}

// NewBuildError creates an error-severity BuildError at file:line:column.
func NewBuildError(file string, line, column int, message string) *BuildError {
	return &BuildError{
		Template: file,
		File:     file,
		Line:     line,
		Column:   column,
		Message:  message,
		Severity: ErrorSeverityError,
	}
}

// WithCause attaches the underlying error.
func (be *BuildError) WithCause(err error) *BuildError {
	be.Cause = err
	return be
}

// AsBuildError unwraps err to a *BuildError if it holds one.
func AsBuildError(err error) (*BuildError, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ErrorCollector collects and manages build errors and general errors
type ErrorCollector struct {
	buildErrors []BuildError
	errors      []error
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		buildErrors: make([]BuildError, 0),
		errors:      make([]error, 0),
	}
}

// Add adds a build error to the collector
func (ec *ErrorCollector) Add(err BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	err.Timestamp = time.Now()
	ec.buildErrors = append(ec.buildErrors, err)
}

// AddError adds an error to the collector. Errors wrapping a BuildError are
// stored as build errors.
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	if be, ok := AsBuildError(err); ok {
		ec.Add(*be)
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// GetErrors returns all collected build errors
func (ec *ErrorCollector) GetErrors() []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]BuildError, len(ec.buildErrors))
	copy(result, ec.buildErrors)
	return result
}

// GetAllErrors returns all collected errors (build and general)
func (ec *ErrorCollector) GetAllErrors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	allErrors := make([]error, 0, len(ec.buildErrors)+len(ec.errors))
	for i := range ec.buildErrors {
		buildErr := ec.buildErrors[i]
		allErrors = append(allErrors, &buildErr)
	}
	allErrors = append(allErrors, ec.errors...)

	return allErrors
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.buildErrors) > 0 || len(ec.errors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.buildErrors = ec.buildErrors[:0]
	ec.errors = ec.errors[:0]
}

// ClearFile drops the build errors recorded for file.
func (ec *ErrorCollector) ClearFile(file string) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	kept := ec.buildErrors[:0]
	for _, err := range ec.buildErrors {
		if err.File != file {
			kept = append(kept, err)
		}
	}
	ec.buildErrors = kept
}

// GetErrorsByFile returns errors for a specific file
func (ec *ErrorCollector) GetErrorsByFile(file string) []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []BuildError
	for _, err := range ec.buildErrors {
		if err.File == file {
			fileErrors = append(fileErrors, err)
		}
	}
	return fileErrors
}

// Sorted returns the build errors ordered by file, line and column.
func (ec *ErrorCollector) Sorted() []BuildError {
	result := ec.GetErrors()
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return result
}
