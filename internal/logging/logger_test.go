package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "secret is redacted",
			input:    "my-secret-password",
			expected: "[REDACTED]",
		},
		{
			name:     "empty secret is still redacted",
			input:    "",
			expected: "[REDACTED]",
		},
		{
			name:     "complex secret is redacted",
			input:    "password123!@#",
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Secret(tt.input).String())
			assert.Equal(t, tt.expected, Secret(tt.input).GoString())
		})
	}
}

func TestSecretInFormattedLog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)

	logger.Debug("Read value %s for %s", Secret("s3cret-value"), "DB_PASS")

	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.NotContains(t, buf.String(), "s3cret-value")
}

func TestLoggerDebugMode(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewWithWriter(&buf, false, true)
	quiet.Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	loud := NewWithWriter(&buf, true, true)
	loud.Debug("shown %d", 2)
	assert.Equal(t, "[DEBUG] shown 2\n", buf.String())
}

func TestLoggerLevelsWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Error("The '%s' environment could not be found in your account.", "qa")
	logger.WarnUser("something odd")
	logger.MissingSubcommand("parameters")
	logger.Help("run login")

	out := buf.String()
	assert.Contains(t, out, "The 'qa' environment could not be found in your account.\n")
	assert.Contains(t, out, "WARN: something odd\n")
	assert.Contains(t, out, "WARN: No 'parameters' sub-command executed.\n")
	assert.Contains(t, out, "run login\n")
	assert.NotContains(t, out, "\x1b[")
}

func TestLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, false)
	if logger.noColor {
		t.Skip("NO_COLOR set in environment")
	}

	logger.Error("bad")
	assert.Contains(t, buf.String(), "\x1b[31m")
}

func TestUnresolvedParams(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.UnresolvedParams(nil)
	assert.Empty(t, buf.String())

	logger.UnresolvedParams([]string{
		FormatParamError("DB_HOST", "no value for fqn"),
		FormatParamError("DB_PORT", "bad ref"),
	})
	assert.Equal(t,
		"Errors resolving parameters:\n   DB_HOST: no value for fqn\n   DB_PORT: bad ref\n\n",
		buf.String())
}

func TestRedact(t *testing.T) {
	out := Redact("user=admin password=hunter22 key=abc", []string{"hunter22", "abc", ""})
	assert.Equal(t, "user=admin password=[REDACTED] key=abc", out)
}
