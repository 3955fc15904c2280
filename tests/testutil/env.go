package testutil

import (
	"os"
	"strings"
	"testing"
)

// IsolateEnv unsets every CLOUDTRUTH_* variable and NO_COLOR for the duration
// of the test, so a developer's shell never leaks into assertions.
//
// Like t.Setenv, it cannot be used in parallel tests.
func IsolateEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "CLOUDTRUTH_") || key == "NO_COLOR" {
			t.Setenv(key, "")
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("Failed to unset environment variable %s: %v", key, err)
			}
		}
	}
}
