package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Logger writes user-facing diagnostics to stderr. Errors are red, warnings
// yellow and help text cyan, matching what users see from the server UI.
type Logger struct {
	debug   bool
	noColor bool
	out     io.Writer

	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
}

// New creates a new logger instance writing to stderr
func New(debug, noColor bool) *Logger {
	return NewWithWriter(os.Stderr, debug, noColor)
}

// NewWithWriter creates a logger that writes to w instead of stderr.
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	l := &Logger{
		debug:   debug,
		noColor: noColor || os.Getenv("NO_COLOR") != "",
		out:     w,
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan),
	}
	if l.noColor {
		l.red.DisableColor()
		l.yellow.DisableColor()
		l.cyan.DisableColor()
	} else {
		// fatih/color disables itself when stderr is not a tty; the caller
		// asked for color, so honour it.
		l.red.EnableColor()
		l.yellow.EnableColor()
		l.cyan.EnableColor()
	}
	return l
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.yellow.Fprintln(l.out, fmt.Sprintf(format, args...))
}

// WarnUser prefixes the message with "WARN:".
func (l *Logger) WarnUser(format string, args ...interface{}) {
	l.Warn("WARN: "+format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.red.Fprintln(l.out, fmt.Sprintf(format, args...))
}

// Help logs a hint for the user
func (l *Logger) Help(format string, args ...interface{}) {
	l.cyan.Fprintln(l.out, fmt.Sprintf(format, args...))
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "%s %s\n", l.cyan.Sprint("[DEBUG]"), msg)
}

// MissingSubcommand warns when a command group runs without an action.
func (l *Logger) MissingSubcommand(command string) {
	l.WarnUser("No '%s' sub-command executed.", command)
}

// UnresolvedParams prints the accumulated per-parameter errors after a listing.
// Nothing is printed for an empty list.
func (l *Logger) UnresolvedParams(errs []string) {
	if len(errs) == 0 {
		return
	}
	l.Warn("Errors resolving parameters:\n%s\n", strings.Join(errs, "\n"))
}

// FormatParamError formats one entry of the unresolved parameter list.
func FormatParamError(name, detail string) string {
	return fmt.Sprintf("   %s: %s", name, detail)
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
