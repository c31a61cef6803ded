package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "run 'r1' not found"}
	assert.Equal(t, "NOT_FOUND: run 'r1' not found", err.Error())
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("unit", "login")
	assert.Equal(t, ErrNotFound, err.Code)
	assert.Equal(t, "unit 'login' not found", err.Message)
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("bad query", FieldError{Field: "limit", Message: "expected int"})
	assert.Equal(t, ErrValidation, err.Code)
	assert.Len(t, err.Details, 1)
}

func TestConfigError_Error(t *testing.T) {
	err := NewConfigError(ErrCodeDuplicateUnit, "login", "already added")
	assert.Equal(t, `DUPLICATE_UNIT: unit "login": already added`, err.Error())

	err = &ConfigError{Code: ErrCodeInvalidParallelLimit, Message: "must be positive, got 0"}
	assert.Equal(t, "INVALID_PARALLEL_LIMIT: must be positive, got 0", err.Error())
}

func TestConfigError_Is(t *testing.T) {
	err := fmt.Errorf("build tree: %w", NewConfigError(ErrCodeNotATree, "a", "cycle a -> b -> a"))

	assert.True(t, errors.Is(err, ErrNotATree))
	assert.False(t, errors.Is(err, ErrMissingDependency))
	assert.False(t, errors.Is(err, errors.New("NOT_A_TREE")))
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{Unit: "login", From: StatusDone, To: StatusQueued}
	assert.Equal(t, "invalid unit status transition: done → queued (unit login)", err.Error())
}
