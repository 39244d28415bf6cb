// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrBotInactive     = errors.New("bot is not active")
	ErrInputValidation = errors.New("input validation failed")
	ErrLLMUnavailable  = errors.New("language model is not configured")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrUnknownStrategy = errors.New("unknown analysis strategy")
	ErrSnapshotFailed  = errors.New("snapshot failed")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match any ValidationError against ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// LLMError represents a failed call to the language model collaborator.
type LLMError struct {
	Operation string
	Model     string
	Err       error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error [%s] %s: %v", e.Model, e.Operation, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// NewLLMError creates a new LLMError.
func NewLLMError(operation, model string, err error) *LLMError {
	return &LLMError{
		Operation: operation,
		Model:     model,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
