package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorType classifies a failure so callers can map it to a distinct response.
type ErrorType string

const (
	ErrorTypeEmbedding     ErrorType = "embedding_failure"
	ErrorTypeEmptyScores   ErrorType = "empty_score_set"
	ErrorTypeDegenerate    ErrorType = "degenerate_aggregation"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Sentinels matched by errors.Is against any StructuredError of the same type.
var (
	ErrEmbeddingFailure      = stderrors.New("embedding failure")
	ErrEmptyScoreSet         = stderrors.New("empty score set")
	ErrDegenerateAggregation = stderrors.New("degenerate aggregation")
	ErrValidation            = stderrors.New("validation failed")
	ErrConfiguration         = stderrors.New("invalid configuration")
)

var sentinels = map[ErrorType]error{
	ErrorTypeEmbedding:     ErrEmbeddingFailure,
	ErrorTypeEmptyScores:   ErrEmptyScoreSet,
	ErrorTypeDegenerate:    ErrDegenerateAggregation,
	ErrorTypeValidation:    ErrValidation,
	ErrorTypeConfiguration: ErrConfiguration,
}

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's type.
func (e *StructuredError) Is(target error) bool {
	s, ok := sentinels[e.Type]
	return ok && s == target
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// TypeOf returns the ErrorType of the first StructuredError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Type, true
	}
	return "", false
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// NewEmbeddingFailure creates an embedding failure
func NewEmbeddingFailure(operation, message string) *StructuredError {
	return New(ErrorTypeEmbedding, operation, message)
}

// WrapEmbeddingFailure wraps a provider error as an embedding failure
func WrapEmbeddingFailure(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeEmbedding, operation, message)
}

// NewEmptyScoreSet reports that no catalog point received a score
func NewEmptyScoreSet(operation, message string) *StructuredError {
	return New(ErrorTypeEmptyScores, operation, message)
}

// NewDegenerateAggregation reports a zero or non-finite total weight
func NewDegenerateAggregation(operation, message string) *StructuredError {
	return New(ErrorTypeDegenerate, operation, message)
}

// NewValidationError creates a validation error
func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

// WrapValidationError wraps an error as a validation error
func WrapValidationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeValidation, operation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}
