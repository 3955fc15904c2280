package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Documented process exit codes.
const (
	ExitSuccess                 = 0
	ExitFailure                 = 1
	ExitMissingParentEnv        = 5
	ExitParentChangeForbidden   = 6
	ExitConflictingValueSource  = 7
	ExitParamNotInEnvironments  = 10
	ExitRuleDeleteFailed        = 11
	ExitRuleSetFailed           = 12
	ExitParamSetOtherProject    = 20
	ExitParamDeleteOtherProject = 24
	ExitInvalidTime             = 34
	ExitUserNotFound            = 35
	ExitEnvironmentNotFound     = 36
	ExitProjectNotFound         = 37
	ExitParameterNotFound       = 38
	ExitParameterNoProject      = 39
	ExitPushParamNotFound       = 44
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ExitError terminates the command with a documented exit code. The message is
// printed to stderr by main before exiting.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e ExitError) Unwrap() error {
	return e.Err
}

// Exit builds an ExitError with a formatted message.
func Exit(code int, format string, args ...interface{}) ExitError {
	return ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ExitCodeForKind maps a named-entity kind to the exit code used when the
// entity cannot be found.
func ExitCodeForKind(kind string) int {
	switch kind {
	case "user":
		return ExitUserNotFound
	case "environment":
		return ExitEnvironmentNotFound
	case "project":
		return ExitProjectNotFound
	case "parameter":
		return ExitParameterNotFound
	default:
		return ExitFailure
	}
}

// ExitCode extracts the process exit code for err. Nil maps to success and
// anything without an ExitError in its chain maps to a generic failure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
