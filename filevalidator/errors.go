package filevalidator

import (
	"errors"
	"fmt"
)

// ValidationErrorType tells callers which check rejected the input.
type ValidationErrorType string

const (
	ErrorTypeSize      ValidationErrorType = "size"
	ErrorTypeFileName  ValidationErrorType = "filename"
	ErrorTypeExtension ValidationErrorType = "extension"
	ErrorTypeContent   ValidationErrorType = "content"
)

// ValidationError is returned by every validator in this package.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation error: %s", e.Type, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(errType ValidationErrorType, message string) *ValidationError {
	return &ValidationError{Type: errType, Message: message}
}

func validationErrorf(errType ValidationErrorType, format string, args ...any) *ValidationError {
	return NewValidationError(errType, fmt.Sprintf(format, args...))
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsErrorOfType checks if an error is a ValidationError of the specified type
func IsErrorOfType(err error, errType ValidationErrorType) bool {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Type == errType
	}
	return false
}
