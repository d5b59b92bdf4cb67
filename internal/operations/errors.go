package operations

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of pipeline error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExecution  ErrorType = "execution"
	ErrorTypeFatal      ErrorType = "fatal"
	ErrorTypeNotFound   ErrorType = "not_found"
)

// OperationError represents a pipeline stage failure
type OperationError struct {
	Type    ErrorType              `json:"type"`
	Stage   string                 `json:"stage,omitempty"`
	Shard   *int                   `json:"shard,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	if e.Shard != nil {
		msg = fmt.Sprintf("%s (shard %d)", msg, *e.Shard)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates an error for a stage that cannot run as configured
func NewValidationError(stage, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeValidation,
		Stage:   stage,
		Message: message,
	}
}

// NewExecutionError creates a new execution error
func NewExecutionError(stage string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeExecution,
		Stage:   stage,
		Message: "stage execution failed",
		Cause:   cause,
	}
}

// NewFatalError creates an error that invalidates the whole run
func NewFatalError(stage, message string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeFatal,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// NewNotFoundError creates an error for an unknown stage
func NewNotFoundError(stage string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeNotFound,
		Stage:   stage,
		Message: "stage not found",
	}
}

// WithShard tags the error with the shard it occurred on
func (e *OperationError) WithShard(index int) *OperationError {
	e.Shard = &index
	return e
}

// GetErrorType returns the type of the error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeExecution
}

// IsFatal reports whether err carries a fatal classification
func IsFatal(err error) bool {
	return GetErrorType(err) == ErrorTypeFatal
}

// WrapError wraps an error with stage context
func WrapError(err error, stage string, message string) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Stage == "" {
			opErr.Stage = stage
		}
		if message != "" {
			opErr.Message = fmt.Sprintf("%s: %s", message, opErr.Message)
		}
		return opErr
	}

	return &OperationError{
		Type:    ErrorTypeExecution,
		Stage:   stage,
		Message: message,
		Cause:   err,
	}
}

// ErrorList collects stage errors
type ErrorList struct {
	Errors []*OperationError `json:"errors"`
}

// Error implements the error interface
func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors: %d errors occurred", len(e.Errors))
}

// Add adds an error to the list
func (e *ErrorList) Add(err *OperationError) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// GetByStage returns errors for a specific stage
func (e *ErrorList) GetByStage(stage string) []*OperationError {
	var stageErrors []*OperationError
	for _, err := range e.Errors {
		if err.Stage == stage {
			stageErrors = append(stageErrors, err)
		}
	}
	return stageErrors
}
