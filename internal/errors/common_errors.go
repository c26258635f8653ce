package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeFileDecode     ErrorType = "FILE_DECODE"
	ErrTypeMergeConfig    ErrorType = "MERGE_CONFIG"
	ErrTypeMergeExecution ErrorType = "MERGE_EXECUTION"
	ErrTypePivotConfig    ErrorType = "PIVOT_CONFIG"
	ErrTypePivotExecution ErrorType = "PIVOT_EXECUTION"
	ErrTypeExport         ErrorType = "EXPORT"
	ErrTypeValidation     ErrorType = "VALIDATION"
	ErrTypeNotFound       ErrorType = "NOT_FOUND"
	ErrTypeConflict       ErrorType = "CONFLICT"
	ErrTypeConfig         ErrorType = "CONFIG"
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

// Is matches another *AppError of the same type, so sentinels like
// &AppError{Type: ErrTypeMergeConfig} can be used with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Type == e.Type
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

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// NewFileDecodeError reports that no attempted encoding could read an upload
func NewFileDecodeError(message string, cause error) *AppError {
	return NewAppError(ErrTypeFileDecode, message, cause)
}

// NewMergeConfigError reports empty or mismatched key selections
func NewMergeConfigError(message string) *AppError {
	return NewAppError(ErrTypeMergeConfig, message, nil)
}

// NewMergeExecutionError reports a failure while building keys or joining rows
func NewMergeExecutionError(message string, cause error) *AppError {
	return NewAppError(ErrTypeMergeExecution, message, cause)
}

// NewPivotConfigError reports an empty index or values selection
func NewPivotConfigError(message string) *AppError {
	return NewAppError(ErrTypePivotConfig, message, nil)
}

// NewPivotExecutionError reports a type mismatch or reshape failure
func NewPivotExecutionError(message string, cause error) *AppError {
	return NewAppError(ErrTypePivotExecution, message, cause)
}

// NewExportError reports a failure while encoding a download
func NewExportError(message string, cause error) *AppError {
	return NewAppError(ErrTypeExport, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConflictError reports an action attempted in the wrong session state
func NewConflictError(message string) *AppError {
	return NewAppError(ErrTypeConflict, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
