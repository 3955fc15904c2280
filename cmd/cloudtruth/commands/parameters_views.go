package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/logging"
	"github.com/systmms/cloudtruth/internal/params"
	"github.com/systmms/cloudtruth/internal/table"
)

func newParamDiffCommand(cfg *config.Config) *cobra.Command {
	var (
		format     string
		secrets    bool
		envs       []string
		properties []string
		asOfs      []string
	)
	cmd := &cobra.Command{
		Use:     "difference",
		Aliases: []string{"diff"},
		Short:   "Show differences between properties from two environments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			cmp, err := params.NormalizeComparison(s.scope.EnvironmentName, envs, asOfs)
			if err != nil {
				if errors.Is(err, params.ErrTooManyEnvironments) || errors.Is(err, params.ErrTooManyTimes) ||
					errors.Is(err, params.ErrSelfCompare) {
					logger(cfg).Warn("%s", err.Error())
					return nil
				}
				return err
			}
			for _, p := range properties {
				if !params.IsProperty(p) {
					return dserrors.UserError{
						Message:    fmt.Sprintf("Unknown property '%s'", p),
						Suggestion: "Use one of: " + strings.Join(params.KnownProperties, ", "),
					}
				}
			}
			tf, err := (&listFlags{format: format}).parsedFormat()
			if err != nil {
				return err
			}
			assembler, err := s.assembler(ctx)
			if err != nil {
				return err
			}

			fetch := func(side params.Side) ([]params.Detail, error) {
				envID, err := s.environment(ctx, side.Environment)
				if err != nil {
					return nil, err
				}
				ts, err := s.asOfIn(ctx, side.AsOf, envID, side.Environment)
				if err != nil {
					return nil, err
				}
				env, _, err := s.resolver.Environment(ctx, side.Environment)
				if err != nil {
					return nil, err
				}
				return assembler.Details(ctx, s.scope.ProjectID, params.Options{
					EnvironmentID:  envID,
					EnvironmentURL: env.URL,
					AsOf:           ts,
					MaskSecrets:    !secrets,
					IncludeValues:  true,
					Evaluate:       true,
				})
			}
			left, err := fetch(cmp.Left)
			if err != nil {
				return err
			}
			right, err := fetch(cmp.Right)
			if err != nil {
				return err
			}

			result := params.Diff(left, right, properties)
			if len(result.Rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No parameters or differences in compared properties found.")
			} else {
				h1, h2 := cmp.Headers()
				t := table.New("parameter").SetHeader("Parameter", h1, h2)
				for _, row := range result.Rows {
					t.AddRow(row...)
				}
				if err := t.Render(cmd.OutOrStdout(), tf); err != nil {
					return err
				}
			}
			logger(cfg).UnresolvedParams(result.Errors)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(table.FormatTable), "Output format: table, csv, json or yaml")
	cmd.Flags().BoolVarP(&secrets, "secrets", "s", false, "Display secret values")
	cmd.Flags().StringSliceVarP(&envs, "env", "e", nil, "Up to 2 environment(s) to be compared")
	cmd.Flags().StringSliceVarP(&properties, "property", "p", []string{params.PropValue}, "Properties to compare")
	cmd.Flags().StringSliceVar(&asOfs, "as-of", nil, "Up to 2 times (or tags) to be compared")
	return cmd
}

func newParamEnvironmentCommand(cfg *config.Config) *cobra.Command {
	var (
		lf   listFlags
		asOf string
		all  bool
	)
	cmd := &cobra.Command{
		Use:     "environment KEY",
		Aliases: []string{"environments", "env"},
		Short:   "Shows the parameter values in all environments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			// A tag needs an environment, so it is taken from the current one.
			ts, err := s.asOf(ctx, asOf)
			if err != nil {
				return err
			}
			assembler, err := s.assembler(ctx)
			if err != nil {
				return err
			}
			tree, err := s.resolver.Tree(ctx)
			if err != nil {
				return err
			}
			values, exists, err := assembler.EnvironmentMap(ctx, s.scope.ProjectID, key, params.Options{
				AsOf:        ts,
				MaskSecrets: !lf.secrets,
				Evaluate:    true,
			})
			if err != nil {
				return err
			}
			if !exists {
				return dserrors.Exit(dserrors.ExitParamNotInEnvironments, "Parameter '%s' was not found", key)
			}

			t := table.New("parameter").SetHeader(withTimes(lf.showTimes, "Environment", "Value", "FQN", "JMES path")...)
			var errs []string
			for _, url := range tree.DepthFirstURLs(config.DefaultEnvironment) {
				name := tree.NameForURL(url)
				d, ok := values[url]
				if !ok {
					d = params.Detail{Value: params.Unset}
				}
				if d.Error != "" {
					errs = append(errs, logging.FormatParamError(name, d.Error))
				}
				if !all && d.Value == params.Unset && d.FQN == "" && d.JMESPath == "" {
					continue
				}
				row := []string{name, d.Value, d.FQN, d.JMESPath}
				if lf.showTimes {
					row = append(row, d.CreatedAt, d.ModifiedAt)
				}
				t.AddRow(row...)
			}
			if t.Len() == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No values set for '%s' in any environments\n", key)
			} else if err := lf.render(cmd, t); err != nil {
				return err
			}
			logger(cfg).UnresolvedParams(errs)
			return nil
		},
	}
	lf.register(cmd, true, true)
	cmd.Flags().StringVar(&asOf, "as-of", "", "Date/time (or tag) of parameter value(s)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show all environments, including ones without a value")
	return cmd
}

// ExportFormats lists the formats the export command accepts.
var ExportFormats = []string{"docker", "dotenv", "shell"}

func newParamExportCommand(cfg *config.Config) *cobra.Command {
	var (
		startsWith, endsWith, contains string
		export, secrets                bool
		asOf                           string
	)
	cmd := &cobra.Command{
		Use:       "export FORMAT",
		Short:     "Export selected parameters to a known output format. Exported parameters are limited to alphanumeric and underscore in key names. Formats available are: " + strings.Join(ExportFormats, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: ExportFormats,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := args[0]
			if !oneOf(ExportFormats, format) {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Unsupported export format '%s'", format),
					Suggestion: "Use one of: " + strings.Join(ExportFormats, ", "),
				}
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
			body, err := s.resolver.Client().ExportParameters(ctx, s.scope.ProjectID, api.ExportQuery{
				Format:      format,
				Environment: s.scope.EnvironmentID,
				AsOf:        ts,
				StartsWith:  startsWith,
				EndsWith:    endsWith,
				Contains:    contains,
				Export:      export,
				MaskSecrets: !secrets,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if body == "" {
				fmt.Fprintf(out, "Could not export parameters format '%s' from project '%s' in environment '%s'.\n",
					format, s.scope.ProjectName, s.scope.EnvironmentName)
				return nil
			}
			fmt.Fprintln(out, body)
			return nil
		},
	}
	cmd.Flags().StringVar(&startsWith, "starts-with", "", "Return parameters starting with search")
	cmd.Flags().StringVar(&endsWith, "ends-with", "", "Return parameters ending with search")
	cmd.Flags().StringVar(&contains, "contains", "", "Return parameters with search")
	cmd.Flags().BoolVar(&export, "export", false, "Add 'export' to each declaration")
	cmd.Flags().BoolVarP(&secrets, "secrets", "s", false, "Display secret values")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Date/time (or tag) of parameter value(s)")
	return cmd
}

func oneOf(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func newParamPushesCommand(cfg *config.Config) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:     "pushes [KEY]",
		Aliases: []string{"push", "pu", "p"},
		Short:   "Show push task steps for parameters",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			assembler, err := s.assembler(ctx)
			if err != nil {
				return err
			}
			client := s.resolver.Client()
			project := s.scope.ProjectName

			var (
				steps     []api.TaskStep
				qualifier string
			)
			withParam := len(args) == 0
			if !withParam {
				key := args[0]
				d, found, err := assembler.Detail(ctx, s.scope.ProjectID, key, params.Options{MaskSecrets: true})
				if err != nil {
					return err
				}
				if !found {
					return dserrors.Exit(dserrors.ExitPushParamNotFound,
						"Did not find parameter '%s' from project '%s'.", key, project)
				}
				if steps, err = client.ListPushSteps(ctx, s.scope.ProjectID, d.ID); err != nil {
					return err
				}
				qualifier = fmt.Sprintf(" for parameter '%s'", key)
			} else {
				details, err := assembler.Details(ctx, s.scope.ProjectID, params.Options{MaskSecrets: true})
				if err != nil {
					return err
				}
				for _, d := range details {
					paramSteps, err := client.ListPushSteps(ctx, s.scope.ProjectID, d.ID)
					if err != nil {
						return err
					}
					steps = append(steps, paramSteps...)
				}
			}

			out := cmd.OutOrStdout()
			if len(steps) == 0 {
				fmt.Fprintf(out, "No pushes found in project '%s'%s.\n", project, qualifier)
				return nil
			}
			if !lf.showValues(cmd) {
				names := make([]string, 0, len(steps))
				for _, step := range steps {
					names = append(names, step.VenueName)
				}
				printNames(cmd, names)
				return nil
			}

			header := []string{"Venue", "Environment", "Result"}
			if withParam {
				header = []string{"Venue", "Parameter", "Environment", "Result"}
			}
			t := table.New("parameter-push-task-step").SetHeader(withTimes(lf.showTimes, header...)...)
			for _, step := range steps {
				row := []string{step.VenueName}
				if withParam {
					row = append(row, step.ParameterName)
				}
				row = append(row, step.EnvironmentName, pushResult(step))
				if lf.showTimes {
					row = append(row, step.CreatedAt, step.ModifiedAt)
				}
				t.AddRow(row...)
			}
			return lf.render(cmd, t)
		},
	}
	lf.register(cmd, true, false)
	return cmd
}

func pushResult(step api.TaskStep) string {
	if step.Success {
		return "success"
	}
	var parts []string
	for _, p := range []string{step.ErrorCode, step.ErrorDetail} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "failed"
	}
	return strings.Join(parts, ": ")
}
