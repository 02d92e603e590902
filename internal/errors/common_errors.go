package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Setup failures: browser or driver could not be started.
	ErrTypeDriverUnavailable ErrorType = "DRIVER_UNAVAILABLE"
	// Authentication failures.
	ErrTypeAuthentication ErrorType = "AUTHENTICATION_FAILED"
	ErrTypeLoginTimeout   ErrorType = "LOGIN_TIMEOUT"
	// Lookup failures.
	ErrTypeEntityNotFound ErrorType = "ENTITY_NOT_FOUND"
	// Download failures.
	ErrTypeDownloadTimeout ErrorType = "DOWNLOAD_TIMEOUT"
	ErrTypeRenameFailed    ErrorType = "RENAME_FAILED"
	// Spreadsheet I/O failures (missing sheet, file locked, permission denied).
	ErrTypeSpreadsheetIO ErrorType = "SPREADSHEET_IO"

	ErrTypeNavigation ErrorType = "NAVIGATION"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeCancelled  ErrorType = "CANCELLED"
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

// Is reports whether target is an AppError of the same type. This lets callers
// compare against the sentinel values below with errors.Is.
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

// Sentinels for errors.Is matching by type.
var (
	ErrDriverUnavailable = &AppError{Type: ErrTypeDriverUnavailable}
	ErrAuthentication    = &AppError{Type: ErrTypeAuthentication}
	ErrLoginTimeout      = &AppError{Type: ErrTypeLoginTimeout}
	ErrEntityNotFound    = &AppError{Type: ErrTypeEntityNotFound}
	ErrDownloadTimeout   = &AppError{Type: ErrTypeDownloadTimeout}
	ErrRenameFailed      = &AppError{Type: ErrTypeRenameFailed}
	ErrSpreadsheetIO     = &AppError{Type: ErrTypeSpreadsheetIO}
	ErrValidation        = &AppError{Type: ErrTypeValidation}
	ErrNotFound          = &AppError{Type: ErrTypeNotFound}
	ErrCancelled         = &AppError{Type: ErrTypeCancelled}
)

// Helper functions for common error types

// NewDriverError creates a browser setup error. Always fatal.
func NewDriverError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDriverUnavailable, message, cause)
}

// NewAuthenticationError creates a wrong-credentials error
func NewAuthenticationError(message string) *AppError {
	return NewAppError(ErrTypeAuthentication, message, nil)
}

// NewLoginTimeoutError creates a login timeout error
func NewLoginTimeoutError(cause error) *AppError {
	return NewAppError(ErrTypeLoginTimeout, "login did not complete in time", cause)
}

// NewEntityNotFoundError creates an entity lookup error
func NewEntityNotFoundError(name string) *AppError {
	return NewAppError(ErrTypeEntityNotFound, fmt.Sprintf("no entity matches %q", name), nil).
		WithContext("entity", name)
}

// NewDownloadTimeoutError creates a download timeout error for an export label
func NewDownloadTimeoutError(label string, cause error) *AppError {
	return NewAppError(ErrTypeDownloadTimeout, fmt.Sprintf("download of %s timed out", label), cause).
		WithContext("label", label)
}

// NewRenameError creates an error for exhausted rename retries
func NewRenameError(path string, cause error) *AppError {
	return NewAppError(ErrTypeRenameFailed, fmt.Sprintf("could not rename %s", path), cause).
		WithContext("path", path)
}

// NewSpreadsheetError creates a spreadsheet I/O error
func NewSpreadsheetError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSpreadsheetIO, message, cause)
}

// NewNavigationError creates a page navigation error
func NewNavigationError(url string, cause error) *AppError {
	return NewAppError(ErrTypeNavigation, fmt.Sprintf("navigation to %s failed", url), cause).
		WithContext("url", url)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewCancelledError creates an error for a run stopped by its caller
func NewCancelledError(cause error) *AppError {
	return NewAppError(ErrTypeCancelled, "operation cancelled", cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or ""
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
