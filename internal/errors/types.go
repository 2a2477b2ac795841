package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeTemplate   ErrorType = "template"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes attached to TemplineError values.
const (
	CodeReadTemplate = "ERR_READ_TEMPLATE"
	CodeWriteOutput  = "ERR_WRITE_OUTPUT"
	CodeLoadConfig   = "ERR_LOAD_CONFIG"
	CodeLoadData     = "ERR_LOAD_DATA"
	CodeCompile      = "ERR_COMPILE"
	CodeRender       = "ERR_RENDER"
)

// TemplineError is a categorized error with optional context. Template
// syntax problems use BuildError instead, which carries a position.
type TemplineError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Recoverable bool
}

func (e *TemplineError) Error() string {
	var parts []string
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

func (e *TemplineError) Unwrap() error {
	return e.Cause
}

// Is matches another TemplineError with the same type and code.
func (e *TemplineError) Is(target error) bool {
	var t *TemplineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext adds context information to the error.
func (e *TemplineError) WithContext(key string, value interface{}) *TemplineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithFile records the file the error relates to.
func (e *TemplineError) WithFile(path string) *TemplineError {
	e.FilePath = path
	return e
}

// Wrap wraps err in a TemplineError. It returns nil for a nil err.
func Wrap(err error, errType ErrorType, code, message string) *TemplineError {
	if err == nil {
		return nil
	}

	wrapped := &TemplineError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
		// Template and validation failures only affect their own file.
		Recoverable: errType == ErrorTypeTemplate || errType == ErrorTypeValidation,
	}

	var te *TemplineError
	if errors.As(err, &te) {
		wrapped.FilePath = te.FilePath
		wrapped.Context = te.Context
	}
	if be, ok := AsBuildError(err); ok && wrapped.FilePath == "" {
		wrapped.FilePath = be.File
	}
	return wrapped
}

func WrapIO(err error, code, message string) *TemplineError {
	return Wrap(err, ErrorTypeIO, code, message)
}

func WrapConfig(err error, code, message string) *TemplineError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

func WrapTemplate(err error, code, message string) *TemplineError {
	return Wrap(err, ErrorTypeTemplate, code, message)
}

// IsRecoverable reports whether processing can continue after err.
func IsRecoverable(err error) bool {
	var te *TemplineError
	if errors.As(err, &te) {
		return te.Recoverable
	}
	_, ok := AsBuildError(err)
	return ok
}

// TypeOf returns the category of err, or ErrorTypeInternal when it carries
// none.
func TypeOf(err error) ErrorType {
	var te *TemplineError
	if errors.As(err, &te) {
		return te.Type
	}
	if _, ok := AsBuildError(err); ok {
		return ErrorTypeTemplate
	}
	return ErrorTypeInternal
}
