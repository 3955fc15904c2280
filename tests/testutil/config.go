// Package testutil provides test utilities and helpers for cloudtruth tests.
//
// This package contains shared test infrastructure: a profile file builder,
// a config wired to an in-memory API, and logger capture.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/config"
)

// TestConfigBuilder provides a fluent API for building profile files.
//
// Example usage:
//
//	cfg := NewTestConfig(t).
//	    WithProfile("default", config.Profile{APIKey: "k", Project: "app"}).
//	    WithClient(fake).
//	    Build()
type TestConfigBuilder struct {
	t        *testing.T
	path     string
	profiles *config.ProfileFile
	client   api.API
	logger   *TestLogger
	mutate   func(*config.Config)
}

// NewTestConfig starts a builder whose profile file lives in a temp dir.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()
	return &TestConfigBuilder{
		t:        t,
		path:     filepath.Join(t.TempDir(), "cloudtruth", "cli.yml"),
		profiles: &config.ProfileFile{Profiles: map[string]*config.Profile{}},
		logger:   NewTestLogger(t),
	}
}

// WithProfile adds a named profile.
func (b *TestConfigBuilder) WithProfile(name string, p config.Profile) *TestConfigBuilder {
	b.profiles.Set(name, &p)
	return b
}

// WithClient injects the API the config hands out.
func (b *TestConfigBuilder) WithClient(client api.API) *TestConfigBuilder {
	b.client = client
	return b
}

// WithFlags lets the test set flag fields before Load runs.
func (b *TestConfigBuilder) WithFlags(fn func(*config.Config)) *TestConfigBuilder {
	b.mutate = fn
	return b
}

// WithDebug captures Debug output from the built config.
func (b *TestConfigBuilder) WithDebug() *TestConfigBuilder {
	b.logger = NewTestLoggerWithDebug(b.t, true)
	return b
}

// Path returns where the profile file is written.
func (b *TestConfigBuilder) Path() string {
	return b.path
}

// Logger returns the capture logger attached to built configs.
func (b *TestConfigBuilder) Logger() *TestLogger {
	return b.logger
}

// Write saves the profile file without loading a config.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()
	if err := b.profiles.Save(b.path); err != nil {
		b.t.Fatalf("Failed to write profile file: %v", err)
	}
	return b.path
}

// Unloaded writes the profile file and returns a config that has not been
// loaded yet, as the root command would see it before flag parsing.
func (b *TestConfigBuilder) Unloaded() *config.Config {
	b.t.Helper()
	b.Write()
	cfg := &config.Config{
		Path:           b.path,
		Logger:         b.logger.Logger,
		NonInteractive: true,
		NoColor:        true,
	}
	if b.mutate != nil {
		b.mutate(cfg)
	}
	if b.client != nil {
		cfg.SetClient(b.client)
	}
	return cfg
}

// Build writes the profile file and returns a loaded config.
func (b *TestConfigBuilder) Build() *config.Config {
	b.t.Helper()
	cfg := b.Unloaded()
	if err := cfg.Load(); err != nil {
		b.t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
