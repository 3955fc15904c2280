package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/cmd/cloudtruth/commands"
	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	memguard.CatchInterrupt()
	code := run()
	memguard.Purge()
	os.Exit(code)
}

func run() int {
	cfg := &config.Config{}
	rootCmd := newRootCommand(cfg)

	err := rootCmd.ExecuteContext(context.Background())
	log := cfg.Logger
	if log == nil {
		log = logging.New(cfg.Debug, cfg.NoColor)
	}
	if cfg.Debug {
		if lines, merr := cfg.Metrics().Summary(); merr == nil {
			for _, line := range lines {
				log.Debug("requests %s", line)
			}
		}
	}
	return report(log, err, cfg.APIKey, os.Getenv(config.EnvPrefix+"_API_KEY"))
}

// report prints err with any API keys redacted, adds a hint for failures
// the user can act on, and returns the exit code.
func report(log *logging.Logger, err error, keys ...string) int {
	if err == nil {
		return dserrors.ExitSuccess
	}
	msg := dserrors.SimplifyError(err).Error()
	log.Error("%s", logging.Redact(msg, keys))
	switch {
	case errors.Is(err, api.ErrAuthFailed):
		log.Help("Run '%s login' to store a valid API key, or set %s_API_KEY.", commands.BinaryName, config.EnvPrefix)
	case dserrors.IsRetryable(err):
		log.Help("The CloudTruth server may be busy. Try the command again.")
	}
	return dserrors.ExitCode(err)
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	config.UserAgent = fmt.Sprintf("cloudtruth-cli/%s", version)

	rootCmd := &cobra.Command{
		Use:   commands.BinaryName,
		Short: "CloudTruth command line interface",
		Long: `cloudtruth manages CloudTruth environments, projects, parameters and
templates from the command line.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger = logging.New(cfg.Debug, cfg.NoColor)
			if cmd.Annotations[commands.AnnotationOffline] == "true" {
				return nil
			}
			cfg.SkipKeyring = cmd.Annotations[commands.AnnotationSkipKeyring] == "true"
			return cfg.Load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Path, "config", "", "Profile file path (default: "+config.DefaultPath()+")")
	flags.StringVar(&cfg.Profile, "profile", "", "The configuration profile from the application configuration file")
	flags.StringVarP(&cfg.APIKey, "api-key", "k", "", "CloudTruth API key")
	flags.StringVarP(&cfg.Environment, "env", "e", "", "The CloudTruth environment to work with")
	flags.StringVar(&cfg.Project, "project", "", "The CloudTruth project to work with")
	flags.StringVar(&cfg.ServerURL, "server-url", "", "CloudTruth server URL")
	flags.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&cfg.NonInteractive, "non-interactive", false, "Non-interactive mode")

	rootCmd.AddCommand(
		commands.NewConfigurationCommand(cfg),
		commands.NewEnvironmentsCommand(cfg),
		commands.NewProjectsCommand(cfg),
		commands.NewParametersCommand(cfg),
		commands.NewTemplatesCommand(cfg),
		commands.NewLoginCommand(cfg),
		commands.NewLogoutCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd
}
