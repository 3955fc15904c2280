package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/config"
	"github.com/systmms/cloudtruth/internal/resolve"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for cloudtruth.

To load completions:

Bash:
  $ source <(cloudtruth completion bash)

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ cloudtruth completion zsh > "${fpath[1]}/_cloudtruth"

Fish:
  $ cloudtruth completion fish > ~/.config/fish/completions/cloudtruth.fish

PowerShell:
  PS> cloudtruth completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Annotations:           map[string]string{AnnotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeEnvironments offers environment names for the first argument.
func completeEnvironments(cfg *config.Config) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		r, err := completionResolver(cfg)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		envs, err := r.Environments(cmd.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		names := make([]string, 0, len(envs))
		for _, e := range envs {
			names = append(names, e.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeProjects offers project names for the first argument.
func completeProjects(cfg *config.Config) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		r, err := completionResolver(cfg)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		projects, err := r.Projects(cmd.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		names := make([]string, 0, len(projects))
		for _, p := range projects {
			names = append(names, p.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

// completionResolver loads configuration itself because shell completion
// bypasses the root command's pre-run hook.
func completionResolver(cfg *config.Config) (*resolve.Resolver, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg.Resolver()
}
