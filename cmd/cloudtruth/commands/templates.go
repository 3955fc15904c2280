package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/params"
	"github.com/systmms/cloudtruth/internal/table"
	"github.com/systmms/cloudtruth/internal/templates"
)

// NewTemplatesCommand creates the templates command group.
func NewTemplatesCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template", "te", "t"},
		Short:   "Work with CloudTruth templates",
		Run:     groupRun(cfg, "templates"),
	}
	cmd.AddCommand(
		newTemplateListCommand(cfg),
		newTemplateGetCommand(cfg),
		newTemplateSetCommand(cfg),
		newTemplateDeleteCommand(cfg),
		newTemplateDiffCommand(cfg),
		newTemplatePreviewCommand(cfg),
		newTemplateValidateCommand(cfg),
	)
	return cmd
}

func readBodyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", dserrors.UserError{
			Message: fmt.Sprintf("Failed to read template file '%s'", path),
			Err:     err,
		}
	}
	return string(data), nil
}

// templateError gives template lookups a user-facing shape.
func templateError(err error) error {
	var nf *templates.NotFoundError
	if errors.As(err, &nf) {
		return dserrors.UserError{Message: nf.Error(), Err: err}
	}
	var ee *templates.EvaluateError
	if errors.As(err, &ee) {
		return dserrors.UserError{Message: ee.Error(), Err: err}
	}
	return err
}

func newTemplateListCommand(cfg *config.Config) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "l"},
		Short:   "List CloudTruth templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			list, err := s.resolver.Client().ListTemplates(ctx, s.scope.ProjectID, api.TemplateQuery{})
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No templates in project '%s'.\n", s.scope.ProjectName)
				return nil
			}
			if !lf.showValues(cmd) {
				names := make([]string, 0, len(list))
				for _, t := range list {
					names = append(names, t.Name)
				}
				printNames(cmd, names)
				return nil
			}
			t := table.New("template").SetHeader(withTimes(lf.showTimes, "Name", "Description")...)
			for _, tmpl := range list {
				row := []string{tmpl.Name, tmpl.Description}
				if lf.showTimes {
					row = append(row, tmpl.CreatedAt, tmpl.ModifiedAt)
				}
				t.AddRow(row...)
			}
			return lf.render(cmd, t)
		},
	}
	lf.register(cmd, true, false)
	return cmd
}

func newTemplateGetCommand(cfg *config.Config) *cobra.Command {
	var (
		raw     bool
		secrets bool
		asOf    string
	)
	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Get an evaluated template from CloudTruth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			ts, err := s.asOf(ctx, asOf)
			if err != nil {
				return err
			}
			body, err := templates.NewEvaluator(s.resolver.Client()).Get(ctx, s.scope.ProjectID, s.scope.ProjectName, args[0], templates.Query{
				EnvironmentID: s.scope.EnvironmentID,
				AsOf:          ts,
				Raw:           raw,
				MaskSecrets:   !secrets,
			})
			if err != nil {
				return templateError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&raw, "raw", "r", false, "Display template body without evaluation")
	cmd.Flags().BoolVarP(&secrets, "secrets", "s", false, "Display secret values in evaluation")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Date/time (or tag) of template")
	return cmd
}

func newTemplateSetCommand(cfg *config.Config) *cobra.Command {
	var (
		bodyFile    string
		rename      string
		description string
	)
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Set the CloudTruth template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var body *string
			if bodyFile != "" {
				b, err := readBodyFile(bodyFile)
				if err != nil {
					return err
				}
				body = &b
			}
			var desc *string
			if cmd.Flags().Changed("desc") {
				desc = &description
			}

			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			client := s.resolver.Client()
			project := s.scope.ProjectName
			existing, found, err := s.resolver.Template(ctx, s.scope.ProjectID, name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !found {
				if body == nil {
					return dserrors.UserError{
						Message:    fmt.Sprintf("Must provide a body for new template '%s'", name),
						Suggestion: "Use --body FILE",
					}
				}
				if _, err := client.CreateTemplate(ctx, s.scope.ProjectID, api.TemplateWrite{
					Name:        name,
					Description: desc,
					Body:        body,
				}); err != nil {
					return err
				}
				fmt.Fprintf(out, "Created template '%s' in project '%s'.\n", name, project)
				return nil
			}

			if body == nil && desc == nil && rename == "" {
				logger(cfg).Warn("Template '%s' not updated: no updated parameters provided", name)
				return nil
			}
			final := name
			if rename != "" {
				final = rename
			}
			if _, err := client.UpdateTemplate(ctx, s.scope.ProjectID, existing.ID, api.TemplateWrite{
				Name:        final,
				Description: desc,
				Body:        body,
			}); err != nil {
				return err
			}
			fmt.Fprintf(out, "Updated template '%s' in project '%s'.\n", final, project)
			return nil
		},
	}
	cmd.Flags().StringVarP(&bodyFile, "body", "b", "", "File containing the template")
	cmd.Flags().StringVarP(&rename, "rename", "r", "", "New template name")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Template's description")
	return cmd
}

func newTemplateDeleteCommand(cfg *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"del", "d"},
		Short:   "Delete the CloudTruth template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			project := s.scope.ProjectName
			tmpl, found, err := s.resolver.Template(ctx, s.scope.ProjectID, name)
			if err != nil {
				return err
			}
			if !found {
				logger(cfg).Warn("Template '%s' does not exist for project '%s'!", name, project)
				return nil
			}
			if !yes && !confirm(cfg, cmd, fmt.Sprintf("Delete template '%s' in project '%s'", name, project), defaultNo) {
				logger(cfg).Warn("Template '%s' not deleted!", name)
				return nil
			}
			if err := s.resolver.Client().DeleteTemplate(ctx, s.scope.ProjectID, tmpl.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted template '%s' from project '%s'.\n", name, project)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Avoid confirmation prompt(s)")
	return cmd
}

func newTemplateDiffCommand(cfg *config.Config) *cobra.Command {
	var (
		lines   int
		secrets bool
		raw     bool
		envs    []string
		asOfs   []string
	)
	cmd := &cobra.Command{
		Use:     "difference NAME",
		Aliases: []string{"diff"},
		Short:   "Show differences between templates",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			cmp, err := params.NormalizeComparison(s.scope.EnvironmentName, envs, asOfs)
			if err != nil {
				logger(cfg).Warn("%s", err.Error())
				return nil
			}
			side := func(ps params.Side, label string) (templates.Side, error) {
				envID, err := s.environment(ctx, ps.Environment)
				if err != nil {
					return templates.Side{}, err
				}
				ts, err := s.asOfIn(ctx, ps.AsOf, envID, ps.Environment)
				if err != nil {
					return templates.Side{}, err
				}
				return templates.Side{Label: label, Query: templates.Query{
					EnvironmentID: envID,
					AsOf:          ts,
					Raw:           raw,
					MaskSecrets:   !secrets,
				}}, nil
			}
			h1, h2 := cmp.Headers()
			left, err := side(cmp.Left, h1)
			if err != nil {
				return err
			}
			right, err := side(cmp.Right, h2)
			if err != nil {
				return err
			}

			diff, err := templates.NewEvaluator(s.resolver.Client()).
				Diff(ctx, s.scope.ProjectID, s.scope.ProjectName, name, left, right, lines)
			if err != nil {
				return templateError(err)
			}
			if diff == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Templates are the same")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "context", "c", templates.DefaultContext, "Number of lines of context to show")
	cmd.Flags().BoolVarP(&secrets, "secrets", "s", false, "Show secret values")
	cmd.Flags().BoolVarP(&raw, "raw", "r", false, "Compare unevaluated template bodies")
	cmd.Flags().StringSliceVarP(&envs, "env", "e", nil, "Up to 2 environment(s) to be compared")
	cmd.Flags().StringSliceVar(&asOfs, "as-of", nil, "Up to 2 times (or tags) to be compared")
	return cmd
}

func newTemplatePreviewCommand(cfg *config.Config) *cobra.Command {
	var (
		secrets bool
		asOf    string
	)
	cmd := &cobra.Command{
		Use:     "preview FILE",
		Aliases: []string{"prev", "pre"},
		Short:   "Evaluate the provided local file as a template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBodyFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			ts, err := s.asOf(ctx, asOf)
			if err != nil {
				return err
			}
			out, err := templates.NewEvaluator(s.resolver.Client()).Preview(ctx, s.scope.ProjectID, body, templates.Query{
				EnvironmentID: s.scope.EnvironmentID,
				AsOf:          ts,
				MaskSecrets:   !secrets,
			})
			if err != nil {
				return templateError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&secrets, "secrets", "s", false, "Display secret values in evaluation")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Date/time (or tag) of parameter values")
	return cmd
}

func newTemplateValidateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "validate NAME",
		Aliases: []string{"valid", "val", "v"},
		Short:   "Validate a CloudTruth template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			err = templates.NewEvaluator(s.resolver.Client()).Validate(ctx, s.scope.ProjectID, s.scope.ProjectName, args[0], templates.Query{
				EnvironmentID: s.scope.EnvironmentID,
			})
			if err != nil {
				return templateError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Success")
			return nil
		},
	}
}
