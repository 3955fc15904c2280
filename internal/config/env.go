package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the CLI reads.
const EnvPrefix = "CLOUDTRUTH"

// Keys read from the environment.
const (
	KeyAPIKey      = "api_key"
	KeyServerURL   = "server_url"
	KeyProfile     = "profile"
	KeyEnvironment = "environment"
	KeyProject     = "project"
	KeyConfig      = "config"
)

// EnvLayer reads CLOUDTRUTH_* variables.
type EnvLayer struct {
	v *viper.Viper
}

// NewEnvLayer binds the known keys to their environment variables.
func NewEnvLayer() *EnvLayer {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	for _, key := range []string{KeyAPIKey, KeyServerURL, KeyProfile, KeyEnvironment, KeyProject, KeyConfig} {
		_ = v.BindEnv(key)
	}
	return &EnvLayer{v: v}
}

// Lookup returns the value of key and whether its variable is set non-empty.
func (e *EnvLayer) Lookup(key string) (string, bool) {
	value := e.v.GetString(key)
	return value, value != ""
}
