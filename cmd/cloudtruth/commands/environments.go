package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/table"
)

// NewEnvironmentsCommand creates the environments command group.
func NewEnvironmentsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "environments",
		Aliases: []string{"environment", "envs", "env", "e"},
		Short:   "Work with CloudTruth environments",
		Run:     groupRun(cfg, "environments"),
	}
	cmd.AddCommand(
		newEnvListCommand(cfg),
		newEnvSetCommand(cfg),
		newEnvDeleteCommand(cfg),
		newEnvTreeCommand(cfg),
		newTagCommand(cfg),
	)
	return cmd
}

func newEnvListCommand(cfg *config.Config) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "l"},
		Short:   "List CloudTruth environments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			envs, err := r.Environments(ctx)
			if err != nil {
				return err
			}
			tree, err := r.Tree(ctx)
			if err != nil {
				return err
			}

			if !lf.showValues(cmd) {
				names := make([]string, 0, len(envs))
				for _, e := range envs {
					names = append(names, e.Name)
				}
				printNames(cmd, names)
				return nil
			}

			t := table.New("environment").SetHeader(withTimes(lf.showTimes, "Name", "Parent", "Description")...)
			for _, e := range envs {
				row := []string{e.Name, tree.ParentName(e.Name), e.Description}
				if lf.showTimes {
					row = append(row, e.CreatedAt, e.ModifiedAt)
				}
				t.AddRow(row...)
			}
			return lf.render(cmd, t)
		},
	}
	lf.register(cmd, true, false)
	return cmd
}

func newEnvSetCommand(cfg *config.Config) *cobra.Command {
	var (
		parent      string
		description string
		rename      string
	)
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Create/update a CloudTruth environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client := r.Client()
			existing, found, err := r.Environment(ctx, name)
			if err != nil {
				return err
			}
			var desc *string
			if cmd.Flags().Changed("desc") {
				desc = &description
			}

			if found {
				tree, err := r.Tree(ctx)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("parent") && parent != tree.ParentName(name) {
					return dserrors.Exit(dserrors.ExitParentChangeForbidden,
						"Environment '%s' parent cannot be updated.", name)
				}
				if desc == nil && rename == "" {
					logger(cfg).Warn("Environment '%s' not updated: no updated parameters provided", name)
					return nil
				}
				final := name
				if rename != "" {
					final = rename
				}
				if _, err := client.UpdateEnvironment(ctx, existing.ID, api.EnvironmentUpdate{
					Name:        final,
					Description: desc,
				}); err != nil {
					return err
				}
				r.Invalidate()
				fmt.Fprintf(cmd.OutOrStdout(), "Updated environment '%s'\n", final)
				return nil
			}

			parentName := parent
			if parentName == "" {
				parentName = config.DefaultEnvironment
			}
			parentEnv, ok, err := r.Environment(ctx, parentName)
			if err != nil {
				return err
			}
			if !ok {
				return dserrors.Exit(dserrors.ExitMissingParentEnv, "No parent environment '%s' found", parentName)
			}
			if _, err := client.CreateEnvironment(ctx, api.EnvironmentCreate{
				Name:        name,
				Description: desc,
				Parent:      parentEnv.URL,
			}); err != nil {
				return err
			}
			r.Invalidate()
			fmt.Fprintf(cmd.OutOrStdout(), "Created environment '%s'\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Environment's parent name (only used for create)")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Environment's description")
	cmd.Flags().StringVarP(&rename, "rename", "r", "", "New environment name")
	return cmd
}

func newEnvDeleteCommand(cfg *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"del", "d"},
		Short:   "Delete specified CloudTruth environment",
		Args:    cobra.ExactArgs(1),

		ValidArgsFunction: completeEnvironments(cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			env, found, err := r.Environment(ctx, name)
			if err != nil {
				return err
			}
			if !found {
				logger(cfg).Warn("Environment '%s' does not exist!", name)
				return nil
			}
			// The server refuses to delete an environment with children.
			if !yes && !confirm(cfg, cmd, fmt.Sprintf("Delete environment '%s'", name), defaultNo) {
				logger(cfg).Warn("Environment '%s' not deleted!", name)
				return nil
			}
			if err := r.Client().DeleteEnvironment(ctx, env.ID); err != nil {
				return err
			}
			r.Invalidate()
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted environment '%s'\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Avoid confirmation prompt(s)")
	return cmd
}

func newEnvTreeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [NAME]",
		Short: "Show a tree representation of the environments",
		Args:  cobra.MaximumNArgs(1),

		ValidArgsFunction: completeEnvironments(cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := config.DefaultEnvironment
			if len(args) == 1 {
				start = args[0]
			}
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			tree, err := r.Tree(cmd.Context())
			if err != nil {
				return err
			}
			if _, ok := tree.ByName(start); !ok {
				logger(cfg).Warn("No environment '%s' found", start)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), tree.Render(start))
			return nil
		},
	}
}

func withTimes(show bool, cols ...string) []string {
	if show {
		return append(cols, "Created At", "Modified At")
	}
	return cols
}
