package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/config"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/logging"
	"github.com/systmms/cloudtruth/internal/params"
	"github.com/systmms/cloudtruth/internal/table"
)

// NewParametersCommand creates the parameters command group.
func NewParametersCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "parameters",
		Aliases: []string{"parameter", "params", "param", "par"},
		Short:   "Work with CloudTruth parameters",
		Run:     groupRun(cfg, "parameters"),
	}
	cmd.AddCommand(
		newParamListCommand(cfg),
		newParamGetCommand(cfg),
		newParamSetCommand(cfg),
		newParamDeleteCommand(cfg),
		newParamUnsetCommand(cfg),
		newParamDiffCommand(cfg),
		newParamEnvironmentCommand(cfg),
		newParamExportCommand(cfg),
		newParamPushesCommand(cfg),
	)
	return cmd
}

// paramView is the mutually exclusive listing mode of parameters list.
type paramView int

const (
	viewDefault paramView = iota
	viewRules
	viewExternal
	viewEvaluated
	viewParents
	viewChildren
)

func (v paramView) description() string {
	switch v {
	case viewRules:
		return "parameter rules"
	case viewExternal:
		return "external parameters"
	case viewEvaluated:
		return "evaluated parameters"
	case viewParents:
		return "parameters from a parent project"
	case viewChildren:
		return "parameters from a child project"
	}
	return "parameters"
}

func newParamListCommand(cfg *config.Config) *cobra.Command {
	var (
		lf                                            listFlags
		asOf                                          string
		rules, external, evaluated, parents, children bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "l"},
		Short:   "List CloudTruth parameters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := []struct {
				set  bool
				view paramView
			}{
				{rules, viewRules},
				{external, viewExternal},
				{evaluated, viewEvaluated},
				{parents, viewParents},
				{children, viewChildren},
			}
			view, count := viewDefault, 0
			for _, f := range flags {
				if !f.set {
					continue
				}
				if count == 0 {
					view = f.view
				}
				count++
			}
			if count > 1 {
				logger(cfg).Warn("Options for --rules, --external, --evaluated, --parents, and --children are mutually exclusive")
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
			assembler, err := s.assembler(ctx)
			if err != nil {
				return err
			}

			showValues := lf.showValues(cmd)
			opts := params.Options{
				EnvironmentID:  s.scope.EnvironmentID,
				EnvironmentURL: s.scope.EnvironmentURL,
				AsOf:           ts,
				MaskSecrets:    !lf.secrets,
				IncludeValues:  (showValues && view != viewRules) || view == viewExternal || view == viewEvaluated,
				Evaluate:       true,
			}

			var details []params.Detail
			project := api.Project{ID: s.scope.ProjectID, URL: s.scope.ProjectURL, Name: s.scope.ProjectName}
			walker := params.NewWalker(assembler, s.resolver)
			switch view {
			case viewParents:
				details, err = walker.Parents(ctx, project, opts)
			case viewChildren:
				details, err = walker.Children(ctx, project, opts)
			default:
				details, err = assembler.Details(ctx, s.scope.ProjectID, opts)
			}
			if err != nil {
				return err
			}
			details = filterView(details, view)

			out := cmd.OutOrStdout()
			if len(details) == 0 {
				fmt.Fprintf(out, "No %s found in project %s\n", view.description(), s.scope.ProjectName)
				return nil
			}
			if !showValues {
				names := make([]string, 0, len(details))
				for _, d := range details {
					names = append(names, d.Name)
				}
				printNames(cmd, names)
				return nil
			}
			if view == viewRules {
				return lf.render(cmd, rulesTable(details, lf.showTimes))
			}

			header, props := listColumns(view)
			if lf.showTimes {
				header = withTimes(true, header...)
				props = append(props, params.PropCreatedAt, params.PropModifiedAt)
			}
			t := table.New("parameter").SetHeader(header...)
			var errs []string
			for i := range details {
				d := &details[i]
				if d.Error != "" {
					errs = append(errs, logging.FormatParamError(d.Name, d.Error))
				}
				t.AddRow(params.Properties(d, props)...)
			}
			if err := lf.render(cmd, t); err != nil {
				return err
			}
			logger(cfg).UnresolvedParams(errs)
			return nil
		},
	}
	lf.register(cmd, true, true)
	cmd.Flags().StringVar(&asOf, "as-of", "", "Date/time (or tag) of parameter value(s)")
	cmd.Flags().BoolVar(&rules, "rules", false, "Display parameter rules")
	cmd.Flags().BoolVar(&external, "external", false, "Display external parameter information")
	cmd.Flags().BoolVar(&evaluated, "evaluated", false, "Display evaluated parameter information")
	cmd.Flags().BoolVar(&parents, "parents", false, "Display parameters inherited from parent projects")
	cmd.Flags().BoolVar(&children, "children", false, "Display parameters defined in child projects")
	return cmd
}

func filterView(details []params.Detail, view paramView) []params.Detail {
	keep := func(d *params.Detail) bool {
		switch view {
		case viewExternal:
			return d.External
		case viewEvaluated:
			return d.Evaluated
		case viewRules:
			return len(d.Rules) > 0
		}
		return true
	}
	out := details[:0]
	for i := range details {
		if keep(&details[i]) {
			out = append(out, details[i])
		}
	}
	return out
}

func listColumns(view paramView) ([]string, []string) {
	switch view {
	case viewExternal:
		return []string{"Name", "FQN", "JMES"},
			[]string{params.PropName, params.PropFQN, params.PropJMESPath}
	case viewEvaluated:
		return []string{"Name", "Value", "Raw"},
			[]string{params.PropName, params.PropValue, params.PropRaw}
	case viewParents, viewChildren:
		return []string{"Name", "Value", "Project"},
			[]string{params.PropName, params.PropValue, params.PropProjectName}
	}
	return []string{"Name", "Value", "Source", "Param Type", "Rules", "Type", "Secret", "Description"},
		[]string{
			params.PropName, params.PropValue, params.PropEnvironment, params.PropType,
			params.PropRuleCount, params.PropScope, params.PropSecret, params.PropDescription,
		}
}

func rulesTable(details []params.Detail, showTimes bool) *table.Table {
	t := table.New("parameter").SetHeader(withTimes(showTimes, "Name", "Param Type", "Rule Type", "Constraint")...)
	for _, d := range details {
		for _, rule := range d.Rules {
			row := []string{d.Name, d.ParamType, api.RuleDisplayName(rule.Type), rule.Constraint}
			if showTimes {
				row = append(row, rule.CreatedAt, rule.ModifiedAt)
			}
			t.AddRow(row...)
		}
	}
	return t
}

func newParamGetCommand(cfg *config.Config) *cobra.Command {
	var (
		asOf    string
		details bool
		secrets bool
	)
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Gets value for parameter in the selected environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			ts, err := s.asOf(ctx, asOf)
			if err != nil {
				return err
			}
			assembler, err := s.assembler(ctx)
			if err != nil {
				return err
			}
			d, found, err := assembler.Detail(ctx, s.scope.ProjectID, key, params.Options{
				EnvironmentID:  s.scope.EnvironmentID,
				EnvironmentURL: s.scope.EnvironmentURL,
				AsOf:           ts,
				IncludeValues:  true,
				Evaluate:       true,
				MaskSecrets:    !secrets,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !found {
				fmt.Fprintf(out, "The parameter '%s' could not be found in your organization.\n", key)
				return nil
			}
			if !details {
				fmt.Fprintln(out, d.Value)
			} else {
				raw := ""
				if d.Evaluated {
					raw = d.RawValue
				}
				lines := [][2]string{
					{"Name", d.Name},
					{"Value", d.Value},
					{"Parameter Type", d.ParamType},
					{"Rule Count", strconv.Itoa(len(d.Rules))},
					{"Source", s.scope.EnvironmentName},
					{"Secret", strconv.FormatBool(d.Secret)},
					{"Project URL", d.ProjectURL},
					{"Description", d.Description},
					{"FQN", d.FQN},
					{"JMES-path", d.JMESPath},
					{"Evaluated", strconv.FormatBool(d.Evaluated)},
					{"Raw", raw},
					{"Parameter-ID", d.ID},
					{"Value-ID", d.ValueID},
					{"Environment-ID", s.scope.EnvironmentID},
					{"Created At", d.CreatedAt},
					{"Modified At", d.ModifiedAt},
				}
				for _, l := range lines {
					fmt.Fprintf(out, "%s: %s\n", l[0], l[1])
				}
			}
			if d.Error != "" {
				logger(cfg).Warn("%s", d.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Date/time (or tag) of parameter value")
	cmd.Flags().BoolVarP(&details, "details", "d", false, "Show all parameter details")
	cmd.Flags().BoolVarP(&secrets, "secrets", "s", false, "Display secret values")
	return cmd
}

type paramSetFlags struct {
	description string
	fqn         string
	inputFile   string
	jmes        string
	prompt      bool
	rename      string
	secret      string
	evaluate    string
	paramType   string
	value       string
	rules       map[string]*string
	noRules     map[string]*bool
}

func (f *paramSetFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.description, "desc", "d", "", "Parameter description")
	fl.StringVarP(&f.fqn, "fqn", "f", "", "Fully Qualified Name (FQN) reference for external parameter")
	fl.StringVarP(&f.inputFile, "input", "i", "", "Read the static value from the local input file")
	fl.StringVarP(&f.jmes, "jmes", "j", "", "JMES path within FQN for external parameter")
	fl.BoolVarP(&f.prompt, "prompt", "p", false, "Set the static value using unecho'd terminal")
	fl.StringVarP(&f.rename, "rename", "r", "", "New parameter name")
	fl.StringVar(&f.secret, "secret", "", "Flags whether this is a secret parameter (true|false)")
	fl.StringVar(&f.evaluate, "evaluate", "", "Flags whether the value is evaluated as a template (true|false)")
	fl.StringVarP(&f.paramType, "type", "t", "", "Type of the parameter (string|integer|bool)")
	fl.StringVarP(&f.value, "value", "v", "", "Static parameter value")

	f.rules = make(map[string]*string)
	f.noRules = make(map[string]*bool)
	for _, ruleType := range api.RuleTypes {
		name := api.RuleDisplayName(ruleType)
		f.rules[ruleType] = fl.String(name, "", fmt.Sprintf("Parameter '%s' rule constraint", name))
		f.noRules[ruleType] = fl.Bool("no-"+name, false, fmt.Sprintf("Remove the parameter '%s' rule", name))
	}
}

// request converts the flags into a set request, reading the value from the
// prompt or input file when asked.
func (f *paramSetFlags) request(cmd *cobra.Command, cfg *config.Config, key string) (params.SetRequest, error) {
	fl := cmd.Flags()
	req := params.SetRequest{
		Name:        key,
		Rename:      f.rename,
		Rules:       make(map[string]string),
		DeleteRules: make(map[string]bool),
	}
	if fl.Changed("desc") {
		req.Description = api.StrPtr(f.description)
	}
	if fl.Changed("fqn") {
		req.FQN = api.StrPtr(f.fqn)
	}
	if fl.Changed("jmes") {
		req.JMESPath = api.StrPtr(f.jmes)
	}
	var err error
	if req.Secret, err = trueFalse("secret", f.secret); err != nil {
		return req, err
	}
	if req.Evaluate, err = trueFalse("evaluate", f.evaluate); err != nil {
		return req, err
	}
	switch f.paramType {
	case "":
	case "string":
		req.Type = api.StrPtr(api.TypeString)
	case "integer":
		req.Type = api.StrPtr(api.TypeInteger)
	case "bool":
		req.Type = api.StrPtr(api.TypeBool)
	default:
		logger(cfg).Warn("Unhandled type '%s'", f.paramType)
	}
	for ruleType, constraint := range f.rules {
		if fl.Changed(api.RuleDisplayName(ruleType)) {
			req.Rules[ruleType] = *constraint
		}
	}
	for ruleType, remove := range f.noRules {
		if *remove {
			req.DeleteRules[ruleType] = true
		}
	}

	req.StaticSource = fl.Changed("value") || f.prompt || f.inputFile != ""
	if err := req.CheckSources(); err != nil {
		return req, err
	}
	switch {
	case f.prompt:
		fmt.Fprintf(cmd.OutOrStdout(), "Please enter the '%s' value: \n", key)
		secret, err := readSecret(cmd.InOrStdin())
		if err != nil {
			return req, err
		}
		defer secret.Destroy()
		v, err := secret.Reveal()
		if err != nil {
			return req, err
		}
		req.Value = &v
	case f.inputFile != "":
		data, err := os.ReadFile(f.inputFile)
		if err != nil {
			return req, dserrors.UserError{
				Message: fmt.Sprintf("Failed to read input file '%s'", f.inputFile),
				Err:     err,
			}
		}
		req.Value = api.StrPtr(string(data))
	case fl.Changed("value"):
		req.Value = api.StrPtr(f.value)
	}
	return req, nil
}

func trueFalse(flag, v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return nil, dserrors.UserError{
			Message:    fmt.Sprintf("Invalid value '%s' for --%s", v, flag),
			Suggestion: "Use true or false",
		}
	}
	return &b, nil
}

func newParamSetCommand(cfg *config.Config) *cobra.Command {
	var f paramSetFlags
	cmd := &cobra.Command{
		Use:   "set KEY",
		Short: "Set a value in the selected project/environment for an existing parameter or creates a new one if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req, err := f.request(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			assembler, err := s.assembler(ctx)
			if err != nil {
				return err
			}
			result, err := params.NewSetter(s.resolver.Client(), assembler).Set(ctx, s.scope, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message())
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newParamDeleteCommand(cfg *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete KEY",
		Aliases: []string{"del", "d"},
		Short:   "Delete the parameter from the project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			assembler, err := s.assembler(ctx)
			if err != nil {
				return err
			}
			d, found, err := assembler.Detail(ctx, s.scope.ProjectID, key, params.Options{
				EnvironmentID:  s.scope.EnvironmentID,
				EnvironmentURL: s.scope.EnvironmentURL,
				MaskSecrets:    true,
			})
			if err != nil {
				return err
			}
			project := s.scope.ProjectName
			out := cmd.OutOrStdout()
			if !found {
				fmt.Fprintf(out, "Did not find parameter '%s' to delete from project '%s'.\n", key, project)
				return nil
			}
			if !strings.Contains(d.ProjectURL, s.scope.ProjectID) {
				owner := d.ProjectName
				if owner == "" {
					owner = api.LastFromURL(d.ProjectURL)
				}
				return dserrors.Exit(dserrors.ExitParamDeleteOtherProject,
					"Parameter '%s' must be deleted from project '%s' -- it is not part of project '%s'",
					key, owner, project)
			}

			if !yes {
				fmt.Fprintf(out, "\nDeleting a parameter removes it from the project for all environments.\n"+
					"You can use '%s parameter unset' to delete the value from\nthe current environment.\n\n", BinaryName)
				if !confirm(cfg, cmd, fmt.Sprintf("Delete parameter '%s' from project '%s'", key, project), defaultNo) {
					return nil
				}
			}
			if err := s.resolver.Client().DeleteParameter(ctx, s.scope.ProjectID, d.ID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Successfully removed parameter '%s' from project '%s'.\n", key, project)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Avoid confirmation prompt(s)")
	return cmd
}

func newParamUnsetCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a value/override from the selected project/environment and leaves the parameter in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			assembler, err := s.assembler(ctx)
			if err != nil {
				return err
			}
			d, found, err := assembler.Detail(ctx, s.scope.ProjectID, key, params.Options{
				EnvironmentID:  s.scope.EnvironmentID,
				EnvironmentURL: s.scope.EnvironmentURL,
				MaskSecrets:    true,
				IncludeValues:  true,
			})
			if err != nil {
				return err
			}
			project, env := s.scope.ProjectName, s.scope.EnvironmentName
			out := cmd.OutOrStdout()
			// Only a value set directly in this environment is removed.
			if !found || !d.Override || d.ValueID == "" {
				fmt.Fprintf(out, "Did not find parameter value '%s' to delete from project '%s' for environment '%s'.\n",
					key, project, env)
				return nil
			}
			if err := s.resolver.Client().DeleteValue(ctx, s.scope.ProjectID, d.ID, d.ValueID); err != nil {
				logger(cfg).Debug("unset failed: %v", err)
				fmt.Fprintf(out, "Failed to remove parameter value '%s' from project '%s' for environment '%s'.\n",
					key, project, env)
				return nil
			}
			fmt.Fprintf(out, "Successfully removed parameter value '%s' from project '%s' for environment '%s'.\n",
				key, project, env)
			return nil
		},
	}
}
