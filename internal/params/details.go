// Package params assembles parameter details from the API and implements the
// operations built on them: property projection, environment and time diffs,
// project inheritance walks and the set workflow.
package params

import (
	"context"
	"sort"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/internal/envtree"
)

const (
	// Redacted replaces secret values in output.
	Redacted = "*****"
	// Unset is shown for a parameter without a value.
	Unset = "-"
)

// Detail is the flattened view of one parameter in one environment.
type Detail struct {
	ID          string
	URL         string
	Name        string
	Description string
	Secret      bool
	ParamType   string
	Rules       []api.Rule
	ProjectURL  string
	ProjectName string

	ValueID   string
	Value     string
	RawValue  string
	Evaluated bool
	External  bool
	FQN       string
	JMESPath  string

	EnvURL   string
	EnvName  string
	Override bool
	Error    string

	CreatedAt  string
	ModifiedAt string
}

// HasValue reports whether a value is set or inherited.
func (d *Detail) HasValue() bool {
	return d.Value != Unset
}

// Options selects what to fetch.
type Options struct {
	EnvironmentID  string
	EnvironmentURL string
	AsOf           string
	Name           string
	MaskSecrets    bool
	IncludeValues  bool
	Evaluate       bool
}

// Assembler builds Details from the parameter listing.
type Assembler struct {
	client api.ParamAPI
	tree   *envtree.Tree
}

// NewAssembler creates an assembler. tree is used to name value sources and to
// fall back to ancestor values.
func NewAssembler(client api.ParamAPI, tree *envtree.Tree) *Assembler {
	return &Assembler{client: client, tree: tree}
}

// Details returns one Detail per parameter of the project, sorted by name.
func (a *Assembler) Details(ctx context.Context, projectID string, opts Options) ([]Detail, error) {
	params, err := a.client.ListParameters(ctx, projectID, api.ParameterQuery{
		Environment: opts.EnvironmentID,
		AsOf:        opts.AsOf,
		Name:        opts.Name,
		MaskSecrets: opts.MaskSecrets,
		Values:      opts.IncludeValues,
		Evaluate:    opts.Evaluate,
	})
	if err != nil {
		return nil, err
	}

	details := make([]Detail, 0, len(params))
	for i := range params {
		p := &params[i]
		d := a.fromParameter(p, a.pickValue(p, opts.EnvironmentURL), opts.EnvironmentURL, opts.MaskSecrets)
		details = append(details, d)
	}
	sort.SliceStable(details, func(i, j int) bool { return details[i].Name < details[j].Name })
	return details, nil
}

// Detail returns the named parameter, if it exists.
func (a *Assembler) Detail(ctx context.Context, projectID, name string, opts Options) (*Detail, bool, error) {
	opts.Name = name
	details, err := a.Details(ctx, projectID, opts)
	if err != nil {
		return nil, false, err
	}
	for i := range details {
		if details[i].Name == name {
			return &details[i], true, nil
		}
	}
	return nil, false, nil
}

// EnvironmentMap returns the named parameter as seen from every environment
// holding a value, keyed by environment URL. The bool is false when the
// parameter does not exist.
func (a *Assembler) EnvironmentMap(ctx context.Context, projectID, name string, opts Options) (map[string]Detail, bool, error) {
	params, err := a.client.ListParameters(ctx, projectID, api.ParameterQuery{
		AsOf:        opts.AsOf,
		Name:        name,
		MaskSecrets: opts.MaskSecrets,
		Values:      true,
		Evaluate:    opts.Evaluate,
	})
	if err != nil {
		return nil, false, err
	}
	for i := range params {
		p := &params[i]
		if p.Name != name {
			continue
		}
		out := make(map[string]Detail, len(p.Values))
		for envURL, value := range p.Values {
			if value == nil {
				continue
			}
			out[envURL] = a.fromParameter(p, value, envURL, opts.MaskSecrets)
		}
		return out, true, nil
	}
	return nil, false, nil
}

// pickValue prefers the value keyed by envURL and falls back to the closest
// ancestor present in the map.
func (a *Assembler) pickValue(p *api.Parameter, envURL string) *api.Value {
	if v := p.Values[envURL]; v != nil {
		return v
	}
	if a.tree == nil || envURL == "" {
		return nil
	}
	chain := a.tree.Ancestors(a.tree.NameForURL(envURL))
	for i := len(chain) - 2; i >= 0; i-- {
		env, _ := a.tree.ByName(chain[i])
		if v := p.Values[env.URL]; v != nil {
			return v
		}
	}
	return nil
}

func (a *Assembler) fromParameter(p *api.Parameter, v *api.Value, envURL string, mask bool) Detail {
	d := Detail{
		ID:          p.ID,
		URL:         p.URL,
		Name:        p.Name,
		Description: p.Description,
		Secret:      p.Secret,
		ParamType:   p.Type,
		Rules:       p.Rules,
		ProjectURL:  p.Project,
		ProjectName: p.ProjectName,
		Value:       Unset,
		CreatedAt:   p.CreatedAt,
		ModifiedAt:  p.ModifiedAt,
	}
	if v == nil {
		return d
	}

	d.ValueID = v.ID
	d.EnvURL = v.Environment
	d.EnvName = v.EnvironmentName
	if d.EnvName == "" && a.tree != nil {
		d.EnvName = a.tree.NameForURL(v.Environment)
	}
	d.Override = v.Environment == envURL
	d.External = v.External
	d.FQN = v.ExternalFQN
	d.JMESPath = v.ExternalFilter
	d.Evaluated = v.Evaluated
	if v.Value != nil {
		d.Value = *v.Value
	}
	if v.InternalValue != nil {
		d.RawValue = *v.InternalValue
	}
	if v.ExternalError != nil {
		d.Error = *v.ExternalError
	}
	if v.CreatedAt != "" {
		d.CreatedAt = v.CreatedAt
	}
	if v.ModifiedAt != "" {
		d.ModifiedAt = v.ModifiedAt
	}

	if mask && p.Secret {
		if d.HasValue() {
			d.Value = Redacted
		}
		if d.RawValue != "" {
			d.RawValue = Redacted
		}
	}
	return d
}
