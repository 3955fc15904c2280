package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/config"
	"github.com/systmms/cloudtruth/internal/resolve"
	"github.com/systmms/cloudtruth/internal/table"
)

// NewProjectsCommand creates the projects command group.
func NewProjectsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "proj", "p"},
		Short:   "Work with CloudTruth projects",
		Run:     groupRun(cfg, "projects"),
	}
	cmd.AddCommand(
		newProjectListCommand(cfg),
		newProjectSetCommand(cfg),
		newProjectDeleteCommand(cfg),
		newProjectTreeCommand(cfg),
	)
	return cmd
}

func projectNames(projects []api.Project) map[string]string {
	byURL := make(map[string]string, len(projects))
	for _, p := range projects {
		byURL[p.URL] = p.Name
	}
	return byURL
}

func newProjectListCommand(cfg *config.Config) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "l"},
		Short:   "List CloudTruth projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			projects, err := r.Projects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found")
				return nil
			}
			if !lf.showValues(cmd) {
				names := make([]string, 0, len(projects))
				for _, p := range projects {
					names = append(names, p.Name)
				}
				printNames(cmd, names)
				return nil
			}

			byURL := projectNames(projects)
			t := table.New("project").SetHeader(withTimes(lf.showTimes, "Name", "Parent", "Description")...)
			for _, p := range projects {
				row := []string{p.Name, byURL[p.ParentURL()], p.Description}
				if lf.showTimes {
					row = append(row, p.CreatedAt, p.ModifiedAt)
				}
				t.AddRow(row...)
			}
			return lf.render(cmd, t)
		},
	}
	lf.register(cmd, true, false)
	return cmd
}

func newProjectSetCommand(cfg *config.Config) *cobra.Command {
	var (
		parent      string
		description string
		rename      string
	)
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Create/update a CloudTruth project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			existing, found, err := r.Project(ctx, name)
			if err != nil {
				return err
			}

			var desc *string
			if cmd.Flags().Changed("desc") {
				desc = &description
			}
			// An empty --parent removes the dependency.
			var dependsOn *string
			if cmd.Flags().Changed("parent") {
				dependsOn = api.StrPtr("")
				if parent != "" {
					p, ok, err := r.Project(ctx, parent)
					if err != nil {
						return err
					}
					if !ok {
						nf := &resolve.NotFoundError{Kind: resolve.KindProject, Name: parent}
						return nf.AsExit()
					}
					dependsOn = api.StrPtr(p.URL)
				}
			}

			client := r.Client()
			if !found {
				body := api.ProjectWrite{Name: name, Description: desc}
				if dependsOn != nil && *dependsOn != "" {
					body.DependsOn = dependsOn
				}
				if _, err := client.CreateProject(ctx, body); err != nil {
					return err
				}
				r.Invalidate()
				fmt.Fprintf(cmd.OutOrStdout(), "Created project '%s'\n", name)
				return nil
			}

			if dependsOn != nil && *dependsOn == existing.ParentURL() {
				dependsOn = nil
			}
			if desc == nil && rename == "" && dependsOn == nil {
				logger(cfg).Warn("Project '%s' not updated: no updated parameters provided", name)
				return nil
			}
			final := name
			if rename != "" {
				final = rename
			}
			if _, err := client.UpdateProject(ctx, existing.ID, api.ProjectWrite{
				Name:        final,
				Description: desc,
				DependsOn:   dependsOn,
			}); err != nil {
				return err
			}
			r.Invalidate()
			fmt.Fprintf(cmd.OutOrStdout(), "Updated project '%s'\n", final)
			return nil
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent project name, use an empty string to remove the parent")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Project's description")
	cmd.Flags().StringVarP(&rename, "rename", "r", "", "New project name")
	return cmd
}

func newProjectDeleteCommand(cfg *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"del", "d"},
		Short:   "Delete specified CloudTruth project",
		Args:    cobra.ExactArgs(1),

		ValidArgsFunction: completeProjects(cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			proj, found, err := r.Project(ctx, name)
			if err != nil {
				return err
			}
			if !found {
				logger(cfg).Warn("Project '%s' does not exist!", name)
				return nil
			}
			if !yes && !confirm(cfg, cmd, fmt.Sprintf("Delete project '%s'", name), defaultNo) {
				logger(cfg).Warn("Project '%s' not deleted!", name)
				return nil
			}
			if err := r.Client().DeleteProject(ctx, proj.ID); err != nil {
				return err
			}
			r.Invalidate()
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project '%s'\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Avoid confirmation prompt(s)")
	return cmd
}

func newProjectTreeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show a tree representation of the projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			projects, err := r.Projects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderProjects(projects))
			return nil
		},
	}
}

// renderProjects draws the project forest, roots and siblings sorted by name.
func renderProjects(projects []api.Project) string {
	known := projectNames(projects)
	children := make(map[string][]api.Project)
	var roots []api.Project
	for _, p := range projects {
		parent := p.ParentURL()
		if _, ok := known[parent]; parent == "" || !ok {
			roots = append(roots, p)
			continue
		}
		children[parent] = append(children[parent], p)
	}
	byName := func(list []api.Project) {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	byName(roots)

	var sb strings.Builder
	seen := make(map[string]bool)
	var walk func(p api.Project, depth int)
	walk = func(p api.Project, depth int) {
		if seen[p.URL] {
			return
		}
		seen[p.URL] = true
		fmt.Fprintf(&sb, "%s%s\n", strings.Repeat("  ", depth), p.Name)
		kids := children[p.URL]
		byName(kids)
		for _, child := range kids {
			walk(child, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, 0)
	}
	return sb.String()
}
