package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/cloudtruth/internal/errors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "profiles.default.source",
		Value:      "loop",
		Message:    "circular profile reference",
		Suggestion: "Remove the 'source' entry from one of the profiles",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "profiles.default.source")
	assert.Contains(t, errMsg, "loop")
	assert.Contains(t, errMsg, "circular profile reference")
	assert.Contains(t, errMsg, "Remove the 'source'")
}

func TestExitError(t *testing.T) {
	t.Parallel()

	err := errors.Exit(errors.ExitConflictingValueSource, "Conflicting arguments: %s", "value and fqn")
	assert.Equal(t, "Conflicting arguments: value and fqn", err.Error())
	assert.Equal(t, 7, errors.ExitCode(err))

	wrapped := fmt.Errorf("set failed: %w", err)
	assert.Equal(t, 7, errors.ExitCode(wrapped))

	assert.Equal(t, 0, errors.ExitCode(nil))
	assert.Equal(t, 1, errors.ExitCode(stderrors.New("boom")))

	inner := stderrors.New("inner")
	withCause := errors.ExitError{Code: 12, Err: inner}
	assert.Equal(t, "inner", withCause.Error())
	assert.ErrorIs(t, withCause, inner)
	assert.Equal(t, "exit status 5", errors.ExitError{Code: 5}.Error())
}

func TestExitCodeForKind(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"user":        35,
		"environment": 36,
		"project":     37,
		"parameter":   38,
		"integration": 1,
	}
	for kind, code := range tests {
		assert.Equal(t, code, errors.ExitCodeForKind(kind), kind)
	}
}

// TestIsRetryable verifies retryable error detection
func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"timeout", fmt.Errorf("request timeout"), true},
		{"connection reset", fmt.Errorf("read: connection reset by peer"), true},
		{"too many requests", fmt.Errorf("429 Too Many Requests"), true},
		{"not found", fmt.Errorf("not found"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.retryable, errors.IsRetryable(tt.err))
		})
	}
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))

	exitErr := errors.Exit(36, "no env")
	assert.Equal(t, exitErr, errors.SimplifyError(exitErr))

	simplified := errors.SimplifyError(fmt.Errorf("open: %w", fmt.Errorf("permission denied")))
	var userErr errors.UserError
	assert.True(t, stderrors.As(simplified, &userErr))
	assert.Equal(t, "Permission denied", userErr.Message)

	yamlErr := errors.SimplifyError(fmt.Errorf("yaml: line 3: bad indent"))
	var cfgErr errors.ConfigError
	assert.True(t, stderrors.As(yamlErr, &cfgErr))
}
