package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/params"
	"github.com/systmms/cloudtruth/internal/table"
)

// NewConfigurationCommand creates the configuration command group.
func NewConfigurationCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "configuration",
		Aliases: []string{"config", "conf", "con", "co", "c"},
		Short:   "Configuration options for this application",
		Run:     groupRun(cfg, "configuration"),
	}

	profiles := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile", "prof", "pr", "p"},
		Short:   "Work with CloudTruth CLI profiles",
		Run:     groupRun(cfg, "profiles"),
	}
	profiles.AddCommand(
		newProfileListCommand(cfg),
		newProfileSetCommand(cfg),
		newProfileDeleteCommand(cfg),
	)
	cmd.AddCommand(profiles, newCurrentCommand(cfg))
	return cmd
}

// maskKey hides an API key unless secrets were asked for.
func maskKey(key string, show bool) string {
	if key == "" || key == config.KeyringMarker || show {
		return key
	}
	return params.Redacted
}

func newProfileListCommand(cfg *config.Config) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "l"},
		Short:   "List CLI profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pf := cfg.Profiles()
			names := pf.Names()
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No profiles exist in %s\n", cfg.Path)
				return nil
			}
			if !lf.showValues(cmd) {
				printNames(cmd, names)
				return nil
			}
			t := table.New("profile").SetHeader("Name", "API", "Project", "Environment", "Source", "Description")
			for _, name := range names {
				p, _ := pf.Get(name)
				t.AddRow(name, maskKey(p.APIKey, lf.secrets), p.Project, p.Environment, p.Source, p.Description)
			}
			return lf.render(cmd, t)
		},
	}
	lf.register(cmd, false, true)
	return cmd
}

func newProfileSetCommand(cfg *config.Config) *cobra.Command {
	var (
		description string
		apiKey      string
		project     string
		environment string
		source      string
	)
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Create/modify CLI profile settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			pf := cfg.Profiles()
			existing, found := pf.Get(name)
			updated := config.Profile{}
			if found {
				updated = *existing
			}

			fl := cmd.Flags()
			changed := false
			apply := func(flag string, dst *string, v string) {
				if fl.Changed(flag) && *dst != v {
					*dst = v
					changed = true
				}
			}
			apply("desc", &updated.Description, description)
			apply("api-key", &updated.APIKey, apiKey)
			apply("proj", &updated.Project, project)
			apply("env", &updated.Environment, environment)
			apply("source", &updated.Source, source)

			if found && !changed {
				logger(cfg).Warn("Nothing to change for profile '%s'", name)
				return nil
			}
			if updated.Source != "" {
				if _, ok := pf.Get(updated.Source); !ok {
					return dserrors.UserError{
						Message:    fmt.Sprintf("Source profile '%s' does not exist", updated.Source),
						Suggestion: "Create the source profile first",
					}
				}
			}

			pf.Set(name, &updated)
			if _, err := pf.Resolve(name); err != nil {
				if found {
					pf.Set(name, existing)
				} else {
					pf.Delete(name)
				}
				return err
			}
			if err := cfg.SaveProfiles(); err != nil {
				return err
			}
			verb := "Created"
			if found {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s profile '%s' in %s\n", verb, name, cfg.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Profile's description")
	cmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "CloudTruth API key")
	cmd.Flags().StringVarP(&project, "proj", "p", "", "Default project for profile (use \"\" to remove)")
	cmd.Flags().StringVarP(&environment, "env", "e", "", "Default environment for profile (use \"\" to remove)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source (or parent) profile")
	return cmd
}

func newProfileDeleteCommand(cfg *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"del", "d"},
		Short:   "Delete specified CLI profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			pf := cfg.Profiles()
			if _, ok := pf.Get(name); !ok {
				logger(cfg).Warn("Profile '%s' does not exist!", name)
				return nil
			}
			for _, other := range pf.Names() {
				if p, _ := pf.Get(other); p.Source == name {
					return dserrors.UserError{
						Message:    fmt.Sprintf("Profile '%s' is the source of profile '%s'", name, other),
						Suggestion: "Change or delete the dependent profile first",
					}
				}
			}
			if !yes && !confirm(cfg, cmd, fmt.Sprintf("Delete profile '%s'", name), defaultNo) {
				logger(cfg).Warn("Profile '%s' not deleted!", name)
				return nil
			}
			pf.Delete(name)
			if err := cfg.SaveProfiles(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile '%s' from %s\n", name, cfg.Path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Avoid confirmation prompt(s)")
	return cmd
}

func newCurrentCommand(cfg *config.Config) *cobra.Command {
	var (
		format  string
		secrets bool
	)
	cmd := &cobra.Command{
		Use:     "current",
		Aliases: []string{"curr", "cur"},
		Short:   "Show the current arguments and their sources.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := (&listFlags{format: format}).parsedFormat()
			if err != nil {
				return err
			}
			s := cfg.Settings()
			t := table.New("parameter").SetHeader("Parameter", "Value", "Source")
			rows := []struct {
				name string
				set  config.Setting
			}{
				{"Profile", s.Profile},
				{"API key", config.Setting{Value: maskKey(s.APIKey.Value, secrets), Source: s.APIKey.Source}},
				{"Project", s.Project},
				{"Environment", s.Environment},
				{"Server URL", s.ServerURL},
			}
			for _, r := range rows {
				t.AddRow(r.name, r.set.Value, r.set.Source)
			}
			return t.Render(cmd.OutOrStdout(), tf)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(table.FormatTable), "Output format: table, csv, json or yaml")
	cmd.Flags().BoolVarP(&secrets, "secrets", "s", false, "Display API key values")
	return cmd
}
