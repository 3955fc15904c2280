package resolve

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/envtree"
	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/internal/logging"
)

// Kind names an entity the resolver can look up.
type Kind string

const (
	KindEnvironment Kind = "environment"
	KindProject     Kind = "project"
	KindParameter   Kind = "parameter"
	KindTag         Kind = "tag"
	KindTemplate    Kind = "template"
	KindUser        Kind = "user"
	KindType        Kind = "type"
	KindIntegration Kind = "integration"
	KindPush        Kind = "push"
	KindPull        Kind = "pull"
)

// NotFoundError is returned when a required name does not resolve.
type NotFoundError struct {
	Kind Kind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("The '%s' %s could not be found in your account.", e.Name, e.Kind)
}

// ExitCode returns the process exit code associated with the missing kind.
func (e *NotFoundError) ExitCode() int {
	return dserrors.ExitCodeForKind(string(e.Kind))
}

// AsExit converts the error into an ExitError for main.
func (e *NotFoundError) AsExit() dserrors.ExitError {
	return dserrors.ExitError{Code: e.ExitCode(), Message: e.Error(), Err: e}
}

// Scope is the project and environment a command operates in.
type Scope struct {
	ProjectName     string
	ProjectID       string
	ProjectURL      string
	EnvironmentName string
	EnvironmentID   string
	EnvironmentURL  string
}

// HasProject reports whether a project was selected.
func (s *Scope) HasProject() bool {
	return s.ProjectID != ""
}

// Resolver turns names into ids. Environments and projects are listed once
// and cached for the life of the resolver, which is one command.
type Resolver struct {
	client api.API
	logger *logging.Logger

	mu       sync.Mutex
	envs     []api.Environment
	tree     *envtree.Tree
	projects []api.Project
}

// New creates a resolver over client. logger may be nil.
func New(client api.API, logger *logging.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// Client returns the API the resolver reads from.
func (r *Resolver) Client() api.API {
	return r.client
}

// Invalidate drops the cached lists after a create or delete.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = nil
	r.tree = nil
	r.projects = nil
}

// Environments returns every environment, listing them on first use.
func (r *Resolver) Environments(ctx context.Context) ([]api.Environment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.envs != nil {
		return r.envs, nil
	}
	envs, err := r.client.ListEnvironments(ctx)
	if err != nil {
		return nil, err
	}
	if envs == nil {
		envs = []api.Environment{}
	}
	r.envs = envs
	r.tree = envtree.New(envs)
	if r.logger != nil {
		for _, orphan := range r.tree.Orphans() {
			r.logger.WarnUser("Environment '%s' has an unknown or circular parent and is skipped.", orphan)
		}
	}
	return r.envs, nil
}

// Tree returns the environment hierarchy.
func (r *Resolver) Tree(ctx context.Context) (*envtree.Tree, error) {
	if _, err := r.Environments(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tree, nil
}

// Projects returns every project, listing them on first use.
func (r *Resolver) Projects(ctx context.Context) ([]api.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.projects != nil {
		return r.projects, nil
	}
	projects, err := r.client.ListProjects(ctx, "")
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []api.Project{}
	}
	r.projects = projects
	return r.projects, nil
}

// Environment finds an environment by name.
func (r *Resolver) Environment(ctx context.Context, name string) (*api.Environment, bool, error) {
	tree, err := r.Tree(ctx)
	if err != nil {
		return nil, false, err
	}
	env, ok := tree.ByName(name)
	if !ok {
		return nil, false, nil
	}
	return &env, true, nil
}

// Project finds a project by name.
func (r *Resolver) Project(ctx context.Context, name string) (*api.Project, bool, error) {
	projects, err := r.Projects(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range projects {
		if projects[i].Name == name {
			return &projects[i], true, nil
		}
	}
	return nil, false, nil
}

// ProjectDescendants returns every project below projectURL, depth first with
// siblings sorted by name.
func (r *Resolver) ProjectDescendants(ctx context.Context, projectURL string) ([]api.Project, error) {
	projects, err := r.Projects(ctx)
	if err != nil {
		return nil, err
	}
	children := make(map[string][]api.Project)
	for _, p := range projects {
		if parent := p.ParentURL(); parent != "" {
			children[parent] = append(children[parent], p)
		}
	}
	for k := range children {
		sort.Slice(children[k], func(i, j int) bool { return children[k][i].Name < children[k][j].Name })
	}

	var out []api.Project
	seen := make(map[string]bool)
	var walk func(url string)
	walk = func(url string) {
		for _, child := range children[url] {
			if seen[child.URL] {
				continue
			}
			seen[child.URL] = true
			out = append(out, child)
			walk(child.URL)
		}
	}
	walk(projectURL)
	return out, nil
}

// Parameter finds a parameter of a project by name.
func (r *Resolver) Parameter(ctx context.Context, projectID, name string) (*api.Parameter, bool, error) {
	params, err := r.client.ListParameters(ctx, projectID, api.ParameterQuery{Name: name})
	if err != nil {
		return nil, false, err
	}
	for i := range params {
		if params[i].Name == name {
			return &params[i], true, nil
		}
	}
	return nil, false, nil
}

// Tag finds a tag of an environment by name.
func (r *Resolver) Tag(ctx context.Context, envID, name string) (*api.Tag, bool, error) {
	tags, err := r.client.ListTags(ctx, envID, name)
	if err != nil {
		return nil, false, err
	}
	for i := range tags {
		if tags[i].Name == name {
			return &tags[i], true, nil
		}
	}
	return nil, false, nil
}

// TagTimestamp implements asof.TagLookup.
func (r *Resolver) TagTimestamp(ctx context.Context, envID, tag string) (string, bool, error) {
	t, ok, err := r.Tag(ctx, envID, tag)
	if err != nil || !ok {
		return "", ok, err
	}
	return t.Timestamp, true, nil
}

// Template finds a template of a project by name.
func (r *Resolver) Template(ctx context.Context, projectID, name string) (*api.Template, bool, error) {
	templates, err := r.client.ListTemplates(ctx, projectID, api.TemplateQuery{Name: name})
	if err != nil {
		return nil, false, err
	}
	for i := range templates {
		if templates[i].Name == name {
			return &templates[i], true, nil
		}
	}
	return nil, false, nil
}

// Named finds a user, type or integration by name.
func (r *Resolver) Named(ctx context.Context, collection, name string) (*api.Named, bool, error) {
	items, err := r.client.ListNamed(ctx, collection, name)
	if err != nil {
		return nil, false, err
	}
	for i := range items {
		if items[i].Name == name {
			return &items[i], true, nil
		}
	}
	return nil, false, nil
}

// ResolveID maps a name of the given kind to its id. Parameter, tag and
// template lookups need the enclosing scope. The bool is false when the name
// does not exist.
func (r *Resolver) ResolveID(ctx context.Context, kind Kind, name string, scope *Scope) (string, bool, error) {
	switch kind {
	case KindEnvironment:
		env, ok, err := r.Environment(ctx, name)
		if err != nil || !ok {
			return "", ok, err
		}
		return env.ID, true, nil
	case KindProject:
		proj, ok, err := r.Project(ctx, name)
		if err != nil || !ok {
			return "", ok, err
		}
		return proj.ID, true, nil
	case KindParameter:
		param, ok, err := r.Parameter(ctx, scope.ProjectID, name)
		if err != nil || !ok {
			return "", ok, err
		}
		return param.ID, true, nil
	case KindTag:
		tag, ok, err := r.Tag(ctx, scope.EnvironmentID, name)
		if err != nil || !ok {
			return "", ok, err
		}
		return tag.ID, true, nil
	case KindTemplate:
		tmpl, ok, err := r.Template(ctx, scope.ProjectID, name)
		if err != nil || !ok {
			return "", ok, err
		}
		return tmpl.ID, true, nil
	case KindUser, KindType, KindIntegration, KindPush, KindPull:
		collection := map[Kind]string{
			KindUser:        api.NamedUsers,
			KindType:        api.NamedTypes,
			KindIntegration: api.NamedIntegrations,
			KindPush:        api.NamedPushes,
			KindPull:        api.NamedPulls,
		}[kind]
		item, ok, err := r.Named(ctx, collection, name)
		if err != nil || !ok {
			return "", ok, err
		}
		return item.ID, true, nil
	}
	return "", false, fmt.Errorf("unknown kind %q", kind)
}

// RequireID is ResolveID with a NotFoundError for missing names.
func (r *Resolver) RequireID(ctx context.Context, kind Kind, name string, scope *Scope) (string, error) {
	id, ok, err := r.ResolveID(ctx, kind, name, scope)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &NotFoundError{Kind: kind, Name: name}
	}
	return id, nil
}

// Scope resolves the selected project and environment. The environment must
// exist. An empty project name yields a scope without a project.
func (r *Resolver) Scope(ctx context.Context, projectName, envName string) (*Scope, error) {
	scope := &Scope{ProjectName: projectName, EnvironmentName: envName}

	env, ok, err := r.Environment(ctx, envName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{Kind: KindEnvironment, Name: envName}
	}
	scope.EnvironmentID = env.ID
	scope.EnvironmentURL = env.URL

	if projectName == "" {
		return scope, nil
	}
	proj, ok, err := r.Project(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{Kind: KindProject, Name: projectName}
	}
	scope.ProjectID = proj.ID
	scope.ProjectURL = proj.URL
	return scope, nil
}
