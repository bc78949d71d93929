package errors

import (
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeDataFormat       ErrorType = "DATA_FORMAT"
	ErrTypeInsufficientData ErrorType = "INSUFFICIENT_DATA"
	ErrTypeModelFit         ErrorType = "MODEL_FIT"
	ErrTypeWrite            ErrorType = "WRITE"
	ErrTypeLaunch           ErrorType = "LAUNCH"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeConfig           ErrorType = "CONFIG"
	ErrTypeDependency       ErrorType = "DEPENDENCY"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewDataFormatError reports input that is missing required columns or cannot be parsed
func NewDataFormatError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDataFormat, message, cause)
}

// NewInsufficientDataError reports a series too short for the requested processing
func NewInsufficientDataError(have, need int) *AppError {
	return NewAppError(ErrTypeInsufficientData,
		fmt.Sprintf("series has %d points, at least %d required", have, need), nil).
		WithContext("points", have).
		WithContext("min_points", need)
}

// NewModelFitError reports estimator non-convergence or an invalid model configuration
func NewModelFitError(message string, cause error) *AppError {
	return NewAppError(ErrTypeModelFit, message, cause)
}

// NewWriteError reports a failure to persist an artifact
func NewWriteError(path string, cause error) *AppError {
	return NewAppError(ErrTypeWrite, fmt.Sprintf("failed to write %s", path), cause).
		WithContext("path", path)
}

// NewLaunchError reports a container environment that could not be built or started
func NewLaunchError(message string, cause error) *AppError {
	return NewAppError(ErrTypeLaunch, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewDependencyError reports a stage whose input has not been produced yet
func NewDependencyError(message string) *AppError {
	return NewAppError(ErrTypeDependency, message, nil)
}
