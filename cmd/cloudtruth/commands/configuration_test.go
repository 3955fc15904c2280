package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/tests/fakes"
	"github.com/systmms/cloudtruth/tests/testutil"
)

func profileBuilder(t *testing.T) *testutil.TestConfigBuilder {
	t.Helper()
	testutil.IsolateEnv(t)
	return testutil.NewTestConfig(t).
		WithProfile("default", config.Profile{APIKey: "abc123", Project: "app"}).
		WithProfile("dev", config.Profile{Source: "default", Environment: "staging"}).
		WithClient(fakes.NewFakeCloudTruth())
}

func savedProfile(t *testing.T, path, name string) (*config.Profile, bool) {
	t.Helper()
	pf, err := config.LoadProfiles(path)
	require.NoError(t, err)
	return pf.Get(name)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey("", false))
	assert.Equal(t, "*****", maskKey("abc123", false))
	assert.Equal(t, "abc123", maskKey("abc123", true))
	assert.Equal(t, config.KeyringMarker, maskKey(config.KeyringMarker, false))
}

func TestProfilesList(t *testing.T) {
	b := profileBuilder(t)
	cfg := b.Build()

	out, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "list")
	require.NoError(t, err)
	assert.Equal(t, "default\ndev\n", out)

	out, err = runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "list", "-f", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Name,API,Project,Environment,Source,Description\n")
	assert.Contains(t, out, "default,*****,app,,,\n")
	assert.Contains(t, out, "dev,,,staging,default,\n")

	out, err = runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "list", "-s", "-f", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "default,abc123,app,,,\n")
}

func TestProfilesListEmpty(t *testing.T) {
	testutil.IsolateEnv(t)
	cfg := testutil.NewTestConfig(t).Unloaded()

	out, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "list")
	require.NoError(t, err)
	assert.Equal(t, "No profiles exist in "+cfg.Path+"\n", out)
}

func TestProfilesSet(t *testing.T) {
	t.Run("creates", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		out, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "set", "prod",
			"--source", "default", "-e", "production", "-d", "live")
		require.NoError(t, err)
		assert.Equal(t, "Created profile 'prod' in "+b.Path()+"\n", out)

		p, ok := savedProfile(t, b.Path(), "prod")
		require.True(t, ok)
		assert.Equal(t, "default", p.Source)
		assert.Equal(t, "production", p.Environment)
		assert.Equal(t, "live", p.Description)
	})

	t.Run("updates and clears a field", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		out, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "set", "default", "--proj", "")
		require.NoError(t, err)
		assert.Equal(t, "Updated profile 'default' in "+b.Path()+"\n", out)

		p, _ := savedProfile(t, b.Path(), "default")
		assert.Empty(t, p.Project)
		assert.Equal(t, "abc123", p.APIKey)
	})

	t.Run("nothing to change", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		out, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "set", "dev", "-e", "staging")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Contains(t, b.Logger().GetOutput(), "Nothing to change for profile 'dev'")
	})

	t.Run("missing source", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		_, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "set", "qa", "--source", "ghost")
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Contains(t, userErr.Message, "Source profile 'ghost' does not exist")
		_, ok := savedProfile(t, b.Path(), "qa")
		assert.False(t, ok)
	})

	t.Run("cycle is rolled back", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		_, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "set", "default", "--source", "dev")
		var cfgErr dserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Message, "circular profile reference")

		p, _ := cfg.Profiles().Get("default")
		assert.Empty(t, p.Source)
		saved, _ := savedProfile(t, b.Path(), "default")
		assert.Empty(t, saved.Source)
	})
}

func TestProfilesDelete(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		out, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "delete", "dev", "-y")
		require.NoError(t, err)
		assert.Equal(t, "Deleted profile 'dev' from "+b.Path()+"\n", out)
		_, ok := savedProfile(t, b.Path(), "dev")
		assert.False(t, ok)
	})

	t.Run("source of another profile", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		_, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "delete", "default", "-y")
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Contains(t, userErr.Message, "is the source of profile 'dev'")
	})

	t.Run("missing", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		_, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "delete", "ghost", "-y")
		require.NoError(t, err)
		assert.Contains(t, b.Logger().GetOutput(), "Profile 'ghost' does not exist!")
	})

	t.Run("non-interactive keeps profile", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		_, err := runCommand(t, NewConfigurationCommand(cfg), "", "profiles", "delete", "dev")
		require.NoError(t, err)
		assert.Contains(t, b.Logger().GetOutput(), "Profile 'dev' not deleted!")
		_, ok := savedProfile(t, b.Path(), "dev")
		assert.True(t, ok)
	})
}

func TestCurrent(t *testing.T) {
	b := profileBuilder(t).WithFlags(func(c *config.Config) { c.Environment = "production" })
	cfg := b.Build()

	out, err := runCommand(t, NewConfigurationCommand(cfg), "", "current", "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "Parameter,Value,Source\n"+
		"Profile,default,default\n"+
		"API key,*****,profile\n"+
		"Project,app,profile\n"+
		"Environment,production,flag\n"+
		"Server URL,https://api.cloudtruth.io,default\n", out)

	out, err = runCommand(t, NewConfigurationCommand(cfg), "", "current", "-s", "-f", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "API key,abc123,profile\n")
}

func TestCurrentFromEnvironment(t *testing.T) {
	b := profileBuilder(t)
	t.Setenv(config.EnvPrefix+"_PROFILE", "dev")
	cfg := b.Build()

	out, err := runCommand(t, NewConfigurationCommand(cfg), "", "current", "-f", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile,dev,env\n")
	assert.Contains(t, out, "Environment,staging,profile\n")
	assert.Contains(t, out, "Project,app,profile\n")
}

func TestAPIAccessURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
		ok     bool
	}{
		{"https://api.cloudtruth.io", "https://app.cloudtruth.io/organization/api", true},
		{"https://api.cloudtruth.io/", "https://app.cloudtruth.io/organization/api", true},
		{"https://api.staging.cloudtruth.io", "https://app.staging.cloudtruth.io/organization/api", true},
		{"https://localhost:8000", "https://localhost:7000/organization/api", true},
		{"https://ct.example.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, ok := apiAccessURL(tt.server)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Run("stores key in profile", func(t *testing.T) {
		testutil.IsolateEnv(t)
		b := testutil.NewTestConfig(t).WithProfile("default", config.Profile{Project: "app"})
		cfg := b.Build()

		out, err := runCommand(t, NewLoginCommand(cfg), "new-key\n")
		require.NoError(t, err)
		assert.Contains(t, out, "https://app.cloudtruth.io/organization/api")
		assert.Contains(t, out, "Updated profile 'default' in "+b.Path())

		p, _ := savedProfile(t, b.Path(), "default")
		assert.Equal(t, "new-key", p.APIKey)
		assert.Equal(t, "app", p.Project)
	})

	t.Run("creates missing profile", func(t *testing.T) {
		testutil.IsolateEnv(t)
		b := testutil.NewTestConfig(t)
		cfg := b.Unloaded()
		require.NoError(t, cfg.Load())

		_, err := runCommand(t, NewLoginCommand(cfg), "k1\n")
		require.NoError(t, err)
		p, ok := savedProfile(t, b.Path(), "default")
		require.True(t, ok)
		assert.Equal(t, "k1", p.APIKey)
	})

	t.Run("non-interactive keeps existing key", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		_, err := runCommand(t, NewLoginCommand(cfg), "other\n")
		require.NoError(t, err)
		assert.Contains(t, b.Logger().GetOutput(), "Login not performed: using existing API key")
		p, _ := savedProfile(t, b.Path(), "default")
		assert.Equal(t, "abc123", p.APIKey)
	})

	t.Run("yes overwrites existing key", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		_, err := runCommand(t, NewLoginCommand(cfg), "other\n", "-y")
		require.NoError(t, err)
		assert.Contains(t, b.Logger().GetOutput(), "Updating API key in profile 'default'.")
		p, _ := savedProfile(t, b.Path(), "default")
		assert.Equal(t, "other", p.APIKey)
	})

	t.Run("empty key", func(t *testing.T) {
		testutil.IsolateEnv(t)
		b := testutil.NewTestConfig(t).WithProfile("default", config.Profile{})
		cfg := b.Build()

		_, err := runCommand(t, NewLoginCommand(cfg), "\n")
		require.NoError(t, err)
		assert.Contains(t, b.Logger().GetOutput(), "Login not performed: no API key provided")
	})

	t.Run("unknown server", func(t *testing.T) {
		testutil.IsolateEnv(t)
		b := testutil.NewTestConfig(t).
			WithProfile("default", config.Profile{ServerURL: "https://ct.example.com"})
		cfg := b.Build()

		_, err := runCommand(t, NewLoginCommand(cfg), "k\n")
		require.NoError(t, err)
		assert.Contains(t, b.Logger().GetOutput(), "Unable to determine \"API Access\" page URL")
	})

	t.Run("keyring", func(t *testing.T) {
		keyring.MockInit()
		testutil.IsolateEnv(t)
		b := testutil.NewTestConfig(t).WithProfile("default", config.Profile{})
		cfg := b.Build()

		_, err := runCommand(t, NewLoginCommand(cfg), "ring-key\n", "--keyring")
		require.NoError(t, err)

		p, _ := savedProfile(t, b.Path(), "default")
		assert.Equal(t, config.KeyringMarker, p.APIKey)
		key, err := config.LoadAPIKey("default")
		require.NoError(t, err)
		assert.Equal(t, "ring-key", key)
	})
}

func TestLogout(t *testing.T) {
	t.Run("removes key", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		out, err := runCommand(t, NewLogoutCommand(cfg), "", "-y")
		require.NoError(t, err)
		assert.Equal(t, "Removed API key from profile 'default' in "+b.Path()+"\n", out)
		p, _ := savedProfile(t, b.Path(), "default")
		assert.Empty(t, p.APIKey)
		assert.Equal(t, "app", p.Project)
	})

	t.Run("non-interactive keeps key", func(t *testing.T) {
		b := profileBuilder(t)
		cfg := b.Build()

		_, err := runCommand(t, NewLogoutCommand(cfg), "")
		require.NoError(t, err)
		assert.Contains(t, b.Logger().GetOutput(), "API key kept in profile 'default'")
	})

	t.Run("no key", func(t *testing.T) {
		b := profileBuilder(t).WithFlags(func(c *config.Config) { c.Profile = "dev" })
		cfg := b.Build()

		_, err := runCommand(t, NewLogoutCommand(cfg), "", "-y")
		require.NoError(t, err)
		assert.Contains(t, b.Logger().GetOutput(), "Logout not performed: no API key in profile 'dev'")
	})

	t.Run("keyring entry is deleted", func(t *testing.T) {
		keyring.MockInit()
		require.NoError(t, config.StoreAPIKey("default", "ring-key"))
		testutil.IsolateEnv(t)
		b := testutil.NewTestConfig(t).
			WithProfile("default", config.Profile{APIKey: config.KeyringMarker}).
			WithFlags(func(c *config.Config) { c.SkipKeyring = true })
		cfg := b.Build()

		_, err := runCommand(t, NewLogoutCommand(cfg), "", "-y")
		require.NoError(t, err)
		_, err = config.LoadAPIKey("default")
		assert.ErrorIs(t, err, config.ErrKeyringItemNotFound)
	})
}
