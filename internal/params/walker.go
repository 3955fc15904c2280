package params

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/systmms/cloudtruth/internal/api"
)

// maxWalkers bounds the per-descendant fetches in flight.
const maxWalkers = 4

// ProjectLister returns the projects below a project.
type ProjectLister interface {
	ProjectDescendants(ctx context.Context, projectURL string) ([]api.Project, error)
}

// Walker finds parameters that cross project boundaries.
type Walker struct {
	assembler *Assembler
	projects  ProjectLister
}

// NewWalker creates a walker.
func NewWalker(assembler *Assembler, projects ProjectLister) *Walker {
	return &Walker{assembler: assembler, projects: projects}
}

// Parents returns the parameters of project that were defined by an ancestor.
func (w *Walker) Parents(ctx context.Context, project api.Project, opts Options) ([]Detail, error) {
	details, err := w.assembler.Details(ctx, project.ID, opts)
	if err != nil {
		return nil, err
	}
	out := make([]Detail, 0, len(details))
	for _, d := range details {
		if !strings.Contains(d.ProjectURL, project.ID) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Children returns the parameters defined in each descendant of project, in
// descendant order. Descendants are fetched concurrently.
func (w *Walker) Children(ctx context.Context, project api.Project, opts Options) ([]Detail, error) {
	descendants, err := w.projects.ProjectDescendants(ctx, project.URL)
	if err != nil {
		return nil, err
	}

	results := make([][]Detail, len(descendants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWalkers)
	for i, child := range descendants {
		i, child := i, child
		g.Go(func() error {
			details, err := w.assembler.Details(gctx, child.ID, opts)
			if err != nil {
				return err
			}
			for _, d := range details {
				if d.ProjectURL == child.URL {
					results[i] = append(results[i], d)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Detail
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
