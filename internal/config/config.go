package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/systmms/cloudtruth/internal/api"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/logging"
	"github.com/systmms/cloudtruth/internal/resolve"
)

// DefaultEnvironment is used when neither a flag, a variable nor a profile
// names one.
const DefaultEnvironment = "default"

// Setting sources, in precedence order.
const (
	SourceFlag    = "flag"
	SourceEnv     = "env"
	SourceProfile = "profile"
	SourceDefault = "default"
)

// Setting is one effective value and where it came from.
type Setting struct {
	Value  string
	Source string
}

// Settings are the effective connection settings for one invocation.
type Settings struct {
	Profile     Setting
	APIKey      Setting
	ServerURL   Setting
	Project     Setting
	Environment Setting
}

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Debug          bool
	NoColor        bool

	// SkipKeyring leaves a keyring-held API key unread. login and logout
	// manage that key themselves.
	SkipKeyring bool

	// Values given on the command line. Empty means unset.
	Profile     string
	APIKey      string
	ServerURL   string
	Project     string
	Environment string

	env      *EnvLayer
	profiles *ProfileFile
	settings *Settings
	client   api.API
	metrics  *api.Metrics
	resolver *resolve.Resolver
}

// DefaultPath returns CLOUDTRUTH_CONFIG when set, otherwise cli.yml in the
// user configuration directory.
func DefaultPath() string {
	if p, ok := NewEnvLayer().Lookup(KeyConfig); ok {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "cli.yml"
	}
	return filepath.Join(dir, "cloudtruth", "cli.yml")
}

// Load reads the profile file and computes the effective settings.
func (c *Config) Load() error {
	if c.Path == "" {
		c.Path = DefaultPath()
	}
	if c.env == nil {
		c.env = NewEnvLayer()
	}

	pf, err := LoadProfiles(c.Path)
	if err != nil {
		return err
	}
	c.profiles = pf

	settings, err := c.computeSettings()
	if err != nil {
		return err
	}
	c.settings = settings
	if c.Logger != nil {
		c.Logger.Debug("Using profile '%s' (%s) from %s", settings.Profile.Value, settings.Profile.Source, c.Path)
		if settings.APIKey.Value != "" {
			c.Logger.Debug("API key %s (%s)", logging.Secret(settings.APIKey.Value), settings.APIKey.Source)
		}
	}
	return nil
}

// Profiles returns the loaded profile store.
func (c *Config) Profiles() *ProfileFile {
	if c.profiles == nil {
		c.profiles = &ProfileFile{Profiles: map[string]*Profile{}}
	}
	return c.profiles
}

// SaveProfiles writes the profile store back to Path.
func (c *Config) SaveProfiles() error {
	return c.Profiles().Save(c.Path)
}

// Settings returns the effective settings. Load must have been called.
func (c *Config) Settings() *Settings {
	if c.settings == nil {
		return &Settings{}
	}
	return c.settings
}

func (c *Config) computeSettings() (*Settings, error) {
	s := &Settings{}
	s.Profile = c.pick(c.Profile, KeyProfile, "", DefaultProfile)

	resolved, err := c.profiles.Resolve(s.Profile.Value)
	if err != nil {
		return nil, err
	}

	s.APIKey = c.pick(c.APIKey, KeyAPIKey, resolved.APIKey, "")
	if s.APIKey.Source == SourceProfile && s.APIKey.Value == KeyringMarker && !c.SkipKeyring {
		owner := resolved.APIKeyFrom
		key, err := LoadAPIKey(owner)
		if err != nil {
			if errors.Is(err, ErrKeyringItemNotFound) {
				return nil, dserrors.ConfigError{
					Field:      "api_key",
					Value:      KeyringMarker,
					Message:    fmt.Sprintf("profile '%s' keeps its API key in the keyring but none is stored", owner),
					Suggestion: "Run 'cloudtruth login --keyring' to store a key",
				}
			}
			return nil, fmt.Errorf("failed to read API key from keyring: %w", err)
		}
		s.APIKey.Value = key
	}
	s.ServerURL = c.pick(c.ServerURL, KeyServerURL, resolved.ServerURL, api.DefaultServerURL)
	s.Project = c.pick(c.Project, KeyProject, resolved.Project, "")
	s.Environment = c.pick(c.Environment, KeyEnvironment, resolved.Environment, DefaultEnvironment)
	return s, nil
}

func (c *Config) pick(flag, key, profile, def string) Setting {
	if flag != "" {
		return Setting{Value: flag, Source: SourceFlag}
	}
	if v, ok := c.env.Lookup(key); ok {
		return Setting{Value: v, Source: SourceEnv}
	}
	if profile != "" {
		return Setting{Value: profile, Source: SourceProfile}
	}
	return Setting{Value: def, Source: SourceDefault}
}

// SetClient injects the API used by Client, bypassing network setup.
func (c *Config) SetClient(client api.API) {
	c.client = client
	c.resolver = nil
}

// Metrics returns the request metrics of the HTTP client, if one was built.
func (c *Config) Metrics() *api.Metrics {
	return c.metrics
}

// Client returns the API for this invocation, building an HTTP client from
// the effective settings on first use.
func (c *Config) Client() (api.API, error) {
	if c.client != nil {
		return c.client, nil
	}
	s := c.Settings()
	if s.APIKey.Value == "" {
		return nil, dserrors.UserError{
			Message:    "No API key configured",
			Details:    fmt.Sprintf("profile '%s' has no api_key and %s_API_KEY is not set", s.Profile.Value, EnvPrefix),
			Suggestion: "Run 'cloudtruth login' or set " + EnvPrefix + "_API_KEY",
		}
	}

	zl := zap.NewNop()
	if c.Debug {
		if dev, err := zap.NewDevelopment(); err == nil {
			zl = dev
		}
	}
	c.metrics = api.NewMetrics()
	client, err := api.NewClient(api.RequestContext{
		ServerURL: s.ServerURL.Value,
		APIKey:    s.APIKey.Value,
		UserAgent: UserAgent,
	}, api.WithLogger(zl), api.WithMetrics(c.metrics))
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "server_url",
			Value:      s.ServerURL.Value,
			Message:    err.Error(),
			Suggestion: "Use a full URL such as " + api.DefaultServerURL,
		}
	}
	c.client = client
	return client, nil
}

// Resolver returns the name resolver bound to Client.
func (c *Config) Resolver() (*resolve.Resolver, error) {
	if c.resolver != nil {
		return c.resolver, nil
	}
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	c.resolver = resolve.New(client, c.Logger)
	return c.resolver, nil
}

// Scope resolves the effective project and environment. When requireProject
// is set a missing project selection is an error.
func (c *Config) Scope(ctx context.Context, requireProject bool) (*resolve.Scope, error) {
	s := c.Settings()
	if requireProject && s.Project.Value == "" {
		return nil, dserrors.Exit(dserrors.ExitParameterNoProject,
			"No project name was provided. Please provide the project name with --project or %s_PROJECT", EnvPrefix)
	}
	r, err := c.Resolver()
	if err != nil {
		return nil, err
	}
	scope, err := r.Scope(ctx, s.Project.Value, s.Environment.Value)
	if err != nil {
		var nf *resolve.NotFoundError
		if errors.As(err, &nf) {
			return nil, nf.AsExit()
		}
		return nil, err
	}
	return scope, nil
}

// UserAgent is sent with every request. main overrides it with the build
// version.
var UserAgent = "cloudtruth-cli/dev"
