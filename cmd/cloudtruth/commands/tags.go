package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/asof"
	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/resolve"
	"github.com/systmms/cloudtruth/internal/table"
)

func newTagCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tag",
		Aliases: []string{"ta"},
		Short:   "View and manipulate environment tags",
		Run:     groupRun(cfg, "tag"),
	}
	cmd.AddCommand(newTagListCommand(cfg), newTagSetCommand(cfg), newTagDeleteCommand(cfg))
	return cmd
}

// tagEnvironment resolves the environment argument of the tag commands.
func tagEnvironment(cmd *cobra.Command, cfg *config.Config, name string) (*resolve.Resolver, *api.Environment, error) {
	r, err := cfg.Resolver()
	if err != nil {
		return nil, nil, err
	}
	env, ok, err := r.Environment(cmd.Context(), name)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		nf := &resolve.NotFoundError{Kind: resolve.KindEnvironment, Name: name}
		return nil, nil, nf.AsExit()
	}
	return r, env, nil
}

func newTagListCommand(cfg *config.Config) *cobra.Command {
	var (
		lf    listFlags
		usage bool
	)
	cmd := &cobra.Command{
		Use:     "list ENV",
		Aliases: []string{"ls", "l"},
		Short:   "List CloudTruth environment tags",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, env, err := tagEnvironment(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			tags, err := r.Client().ListTags(cmd.Context(), env.ID, "")
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No tags found in environment %s\n", env.Name)
				return nil
			}
			if !lf.showValues(cmd) && !usage {
				names := make([]string, 0, len(tags))
				for _, t := range tags {
					names = append(names, t.Name)
				}
				printNames(cmd, names)
				return nil
			}

			t := table.New("environment-tags")
			if usage {
				t.SetHeader("Name", "Timestamp", "Last User", "Last Time", "Total Reads")
			} else {
				t.SetHeader("Name", "Timestamp", "Description")
			}
			for _, tag := range tags {
				if usage {
					lastUser, lastTime, total := "", "", "0"
					if tag.Usage != nil {
						lastUser = tag.Usage.LastReadBy
						if tag.Usage.LastRead != nil {
							lastTime = *tag.Usage.LastRead
						}
						total = strconv.Itoa(tag.Usage.TotalReads)
					}
					t.AddRow(tag.Name, tag.Timestamp, lastUser, lastTime, total)
					continue
				}
				t.AddRow(tag.Name, tag.Timestamp, tag.Description)
			}
			return lf.render(cmd, t)
		},
	}
	lf.register(cmd, false, false)
	cmd.Flags().BoolVarP(&usage, "usage", "u", false, "Display tag usage data")
	return cmd
}

func newTagSetCommand(cfg *config.Config) *cobra.Command {
	var (
		description string
		rename      string
		timestamp   string
		current     bool
	)
	cmd := &cobra.Command{
		Use:   "set ENV TAG",
		Short: "Create/update an environment tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			envName, tagName := args[0], args[1]
			var ts string
			if timestamp != "" {
				parsed, err := asof.RequireTime("time", timestamp)
				if err != nil {
					return dserrors.ExitError{Code: dserrors.ExitInvalidTime, Message: err.Error(), Err: err}
				}
				ts = parsed
			}
			if current {
				ts = asof.Now()
			}

			r, env, err := tagEnvironment(cmd, cfg, envName)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client := r.Client()
			var desc *string
			if cmd.Flags().Changed("desc") {
				desc = &description
			}

			existing, found, err := r.Tag(ctx, env.ID, tagName)
			if err != nil {
				return err
			}
			if !found {
				if _, err := client.CreateTag(ctx, env.ID, api.TagWrite{
					Name:        tagName,
					Description: desc,
					Timestamp:   ts,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created tag '%s' in environment '%s'.\n", tagName, envName)
				return nil
			}

			if desc == nil && rename == "" && ts == "" {
				logger(cfg).Warn("Tag '%s' not updated: no updated parameters provided", tagName)
				return nil
			}
			final := tagName
			if rename != "" {
				final = rename
			}
			if _, err := client.UpdateTag(ctx, env.ID, existing.ID, api.TagWrite{
				Name:        final,
				Description: desc,
				Timestamp:   ts,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated tag '%s' in environment '%s'.\n", final, envName)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Tag's description")
	cmd.Flags().StringVarP(&rename, "rename", "r", "", "New tag name")
	cmd.Flags().StringVarP(&timestamp, "time", "t", "", "Set the tag's timestamp value")
	cmd.Flags().BoolVarP(&current, "current", "c", false, "Update the tag's time to the current time")
	return cmd
}

func newTagDeleteCommand(cfg *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete ENV TAG",
		Aliases: []string{"del", "d"},
		Short:   "Delete an environment tag value",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			envName, tagName := args[0], args[1]
			r, env, err := tagEnvironment(cmd, cfg, envName)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			tag, found, err := r.Tag(ctx, env.ID, tagName)
			if err != nil {
				return err
			}
			if !found {
				logger(cfg).Warn("Environment '%s' does not have a tag '%s'!", envName, tagName)
				return nil
			}
			msg := fmt.Sprintf("Delete tag '%s' from environment '%s'", tagName, envName)
			if !yes && !confirm(cfg, cmd, msg, defaultNo) {
				logger(cfg).Warn("Tag '%s' not deleted from environment '%s'!", tagName, envName)
				return nil
			}
			if err := r.Client().DeleteTag(ctx, env.ID, tag.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted tag '%s' from environment '%s'.\n", tagName, envName)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Avoid confirmation prompt(s)")
	return cmd
}
