package model

import (
	"fmt"
	"strconv"
)

// ErrorCode represents a structured error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// Configuration error codes. Each one aborts scheduling before any process starts.
const (
	ErrCodeInvalidUnit          ErrorCode = "INVALID_UNIT"
	ErrCodeDuplicateUnit        ErrorCode = "DUPLICATE_UNIT"
	ErrCodeInvalidDelay         ErrorCode = "INVALID_DELAY"
	ErrCodeMissingDependency    ErrorCode = "MISSING_DEPENDENCY"
	ErrCodeNotATree             ErrorCode = "NOT_A_TREE"
	ErrCodeInvalidParallelLimit ErrorCode = "INVALID_PARALLEL_LIMIT"
	ErrCodeInvalidStatus        ErrorCode = "INVALID_STATUS"
	ErrCodeTreeNotBuilt         ErrorCode = "TREE_NOT_BUILT"
)

// Sentinels for errors.Is matching against a *ConfigError of the same code.
var (
	ErrInvalidUnit          = &ConfigError{Code: ErrCodeInvalidUnit}
	ErrDuplicateUnit        = &ConfigError{Code: ErrCodeDuplicateUnit}
	ErrInvalidDelay         = &ConfigError{Code: ErrCodeInvalidDelay}
	ErrMissingDependency    = &ConfigError{Code: ErrCodeMissingDependency}
	ErrNotATree             = &ConfigError{Code: ErrCodeNotATree}
	ErrInvalidParallelLimit = &ConfigError{Code: ErrCodeInvalidParallelLimit}
	ErrInvalidStatus        = &ConfigError{Code: ErrCodeInvalidStatus}
	ErrTreeNotBuilt         = &ConfigError{Code: ErrCodeTreeNotBuilt}
)

// ConfigError is a fatal configuration or programming error. It is never a
// legitimate runtime outcome and must not be retried.
type ConfigError struct {
	Code    ErrorCode
	Unit    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("%s: unit %q: %s", e.Code, e.Unit, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any ConfigError carrying the same code.
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewConfigError creates a ConfigError for the given unit.
func NewConfigError(code ErrorCode, unit, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Unit: unit, Message: fmt.Sprintf(format, args...)}
}

// APIError is a structured error returned by the results API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// InvalidTransitionError is returned when a status transition is invalid.
type InvalidTransitionError struct {
	Unit string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid unit status transition: %s → %s (unit %s)", e.From, e.To, e.Unit)
}

func quote(s string) string {
	return strconv.Quote(s)
}
