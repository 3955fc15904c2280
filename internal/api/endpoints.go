package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// EnvAPI covers environments and their tags.
type EnvAPI interface {
	ListEnvironments(ctx context.Context) ([]Environment, error)
	CreateEnvironment(ctx context.Context, body EnvironmentCreate) (*Environment, error)
	UpdateEnvironment(ctx context.Context, envID string, body EnvironmentUpdate) (*Environment, error)
	DeleteEnvironment(ctx context.Context, envID string) error
	ListTags(ctx context.Context, envID, name string) ([]Tag, error)
	CreateTag(ctx context.Context, envID string, body TagWrite) (*Tag, error)
	UpdateTag(ctx context.Context, envID, tagID string, body TagWrite) (*Tag, error)
	DeleteTag(ctx context.Context, envID, tagID string) error
}

// ProjAPI covers projects.
type ProjAPI interface {
	ListProjects(ctx context.Context, name string) ([]Project, error)
	CreateProject(ctx context.Context, body ProjectWrite) (*Project, error)
	UpdateProject(ctx context.Context, projectID string, body ProjectWrite) (*Project, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// ParamAPI covers parameters, their values and rules.
type ParamAPI interface {
	ListParameters(ctx context.Context, projectID string, q ParameterQuery) ([]Parameter, error)
	CreateParameter(ctx context.Context, projectID string, body ParameterWrite) (*Parameter, error)
	UpdateParameter(ctx context.Context, projectID, paramID string, body ParameterWrite) (*Parameter, error)
	DeleteParameter(ctx context.Context, projectID, paramID string) error
	CreateRule(ctx context.Context, projectID, paramID string, body RuleWrite) (*Rule, error)
	UpdateRule(ctx context.Context, projectID, paramID, ruleID string, body RuleWrite) (*Rule, error)
	DeleteRule(ctx context.Context, projectID, paramID, ruleID string) error
	CreateValue(ctx context.Context, projectID, paramID string, body ValueWrite) (*Value, error)
	UpdateValue(ctx context.Context, projectID, paramID, valueID string, body ValueWrite) (*Value, error)
	DeleteValue(ctx context.Context, projectID, paramID, valueID string) error
	ExportParameters(ctx context.Context, projectID string, q ExportQuery) (string, error)
	ListPushSteps(ctx context.Context, projectID, paramID string) ([]TaskStep, error)
}

// TemplateAPI covers templates and their evaluation.
type TemplateAPI interface {
	ListTemplates(ctx context.Context, projectID string, q TemplateQuery) ([]Template, error)
	GetTemplate(ctx context.Context, projectID, templateID string, q TemplateQuery) (*Template, error)
	CreateTemplate(ctx context.Context, projectID string, body TemplateWrite) (*Template, error)
	UpdateTemplate(ctx context.Context, projectID, templateID string, body TemplateWrite) (*Template, error)
	DeleteTemplate(ctx context.Context, projectID, templateID string) error
	PreviewTemplate(ctx context.Context, projectID, body string, q TemplateQuery) (string, error)
}

// Named resource collections that only need name lookups.
const (
	NamedUsers        = "users"
	NamedTypes        = "types"
	NamedIntegrations = "integrations"
	NamedPushes       = "pushes"
	NamedPulls        = "pulls"
)

// NamedAPI lists resources by name.
type NamedAPI interface {
	ListNamed(ctx context.Context, collection, name string) ([]Named, error)
}

// API is the full capability surface used by the commands.
type API interface {
	EnvAPI
	ProjAPI
	ParamAPI
	TemplateAPI
	NamedAPI
}

var _ API = (*Client)(nil)

// ListEnvironments returns every environment in the account.
func (c *Client) ListEnvironments(ctx context.Context) ([]Environment, error) {
	return listAll[Environment](ctx, c, "environments/", nil)
}

func (c *Client) CreateEnvironment(ctx context.Context, body EnvironmentCreate) (*Environment, error) {
	var env Environment
	if err := c.do(ctx, http.MethodPost, c.endpoint("environments/", nil), body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) UpdateEnvironment(ctx context.Context, envID string, body EnvironmentUpdate) (*Environment, error) {
	var env Environment
	path := fmt.Sprintf("environments/%s/", envID)
	if err := c.do(ctx, http.MethodPatch, c.endpoint(path, nil), body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) DeleteEnvironment(ctx context.Context, envID string) error {
	path := fmt.Sprintf("environments/%s/", envID)
	return c.do(ctx, http.MethodDelete, c.endpoint(path, nil), nil, nil)
}

// ListTags returns the tags of an environment, optionally filtered by name.
func (c *Client) ListTags(ctx context.Context, envID, name string) ([]Tag, error) {
	q := url.Values{}
	strParam(q, "name", name)
	return listAll[Tag](ctx, c, fmt.Sprintf("environments/%s/tags/", envID), q)
}

func (c *Client) CreateTag(ctx context.Context, envID string, body TagWrite) (*Tag, error) {
	var tag Tag
	path := fmt.Sprintf("environments/%s/tags/", envID)
	if err := c.do(ctx, http.MethodPost, c.endpoint(path, nil), body, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (c *Client) UpdateTag(ctx context.Context, envID, tagID string, body TagWrite) (*Tag, error) {
	var tag Tag
	path := fmt.Sprintf("environments/%s/tags/%s/", envID, tagID)
	if err := c.do(ctx, http.MethodPatch, c.endpoint(path, nil), body, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (c *Client) DeleteTag(ctx context.Context, envID, tagID string) error {
	path := fmt.Sprintf("environments/%s/tags/%s/", envID, tagID)
	return c.do(ctx, http.MethodDelete, c.endpoint(path, nil), nil, nil)
}

// ListProjects returns projects, optionally filtered by exact name.
func (c *Client) ListProjects(ctx context.Context, name string) ([]Project, error) {
	q := url.Values{}
	strParam(q, "name", name)
	return listAll[Project](ctx, c, "projects/", q)
}

func (c *Client) CreateProject(ctx context.Context, body ProjectWrite) (*Project, error) {
	var proj Project
	if err := c.do(ctx, http.MethodPost, c.endpoint("projects/", nil), body, &proj); err != nil {
		return nil, err
	}
	return &proj, nil
}

func (c *Client) UpdateProject(ctx context.Context, projectID string, body ProjectWrite) (*Project, error) {
	var proj Project
	path := fmt.Sprintf("projects/%s/", projectID)
	if err := c.do(ctx, http.MethodPatch, c.endpoint(path, nil), body, &proj); err != nil {
		return nil, err
	}
	return &proj, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	path := fmt.Sprintf("projects/%s/", projectID)
	return c.do(ctx, http.MethodDelete, c.endpoint(path, nil), nil, nil)
}

// ListParameters returns the parameters of a project with their values
// resolved for q.Environment.
func (c *Client) ListParameters(ctx context.Context, projectID string, q ParameterQuery) ([]Parameter, error) {
	query := url.Values{}
	strParam(query, "environment", q.Environment)
	strParam(query, "as_of", q.AsOf)
	strParam(query, "name", q.Name)
	query.Set("mask_secrets", strconv.FormatBool(q.MaskSecrets))
	query.Set("values", strconv.FormatBool(q.Values))
	query.Set("evaluate", strconv.FormatBool(q.Evaluate))
	return listAll[Parameter](ctx, c, fmt.Sprintf("projects/%s/parameters/", projectID), query)
}

func (c *Client) CreateParameter(ctx context.Context, projectID string, body ParameterWrite) (*Parameter, error) {
	var param Parameter
	path := fmt.Sprintf("projects/%s/parameters/", projectID)
	if err := c.do(ctx, http.MethodPost, c.endpoint(path, nil), body, &param); err != nil {
		return nil, err
	}
	return &param, nil
}

func (c *Client) UpdateParameter(ctx context.Context, projectID, paramID string, body ParameterWrite) (*Parameter, error) {
	var param Parameter
	path := fmt.Sprintf("projects/%s/parameters/%s/", projectID, paramID)
	if err := c.do(ctx, http.MethodPatch, c.endpoint(path, nil), body, &param); err != nil {
		return nil, err
	}
	return &param, nil
}

func (c *Client) DeleteParameter(ctx context.Context, projectID, paramID string) error {
	path := fmt.Sprintf("projects/%s/parameters/%s/", projectID, paramID)
	return c.do(ctx, http.MethodDelete, c.endpoint(path, nil), nil, nil)
}

func (c *Client) CreateRule(ctx context.Context, projectID, paramID string, body RuleWrite) (*Rule, error) {
	var rule Rule
	path := fmt.Sprintf("projects/%s/parameters/%s/rules/", projectID, paramID)
	if err := c.do(ctx, http.MethodPost, c.endpoint(path, nil), body, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *Client) UpdateRule(ctx context.Context, projectID, paramID, ruleID string, body RuleWrite) (*Rule, error) {
	var rule Rule
	path := fmt.Sprintf("projects/%s/parameters/%s/rules/%s/", projectID, paramID, ruleID)
	if err := c.do(ctx, http.MethodPatch, c.endpoint(path, nil), body, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *Client) DeleteRule(ctx context.Context, projectID, paramID, ruleID string) error {
	path := fmt.Sprintf("projects/%s/parameters/%s/rules/%s/", projectID, paramID, ruleID)
	return c.do(ctx, http.MethodDelete, c.endpoint(path, nil), nil, nil)
}

func (c *Client) CreateValue(ctx context.Context, projectID, paramID string, body ValueWrite) (*Value, error) {
	var value Value
	path := fmt.Sprintf("projects/%s/parameters/%s/values/", projectID, paramID)
	if err := c.do(ctx, http.MethodPost, c.endpoint(path, nil), body, &value); err != nil {
		return nil, err
	}
	return &value, nil
}

func (c *Client) UpdateValue(ctx context.Context, projectID, paramID, valueID string, body ValueWrite) (*Value, error) {
	var value Value
	path := fmt.Sprintf("projects/%s/parameters/%s/values/%s/", projectID, paramID, valueID)
	if err := c.do(ctx, http.MethodPatch, c.endpoint(path, nil), body, &value); err != nil {
		return nil, err
	}
	return &value, nil
}

func (c *Client) DeleteValue(ctx context.Context, projectID, paramID, valueID string) error {
	path := fmt.Sprintf("projects/%s/parameters/%s/values/%s/", projectID, paramID, valueID)
	return c.do(ctx, http.MethodDelete, c.endpoint(path, nil), nil, nil)
}

// ExportParameters renders the project parameters in one of the server
// export formats (docker, dotenv, shell).
func (c *Client) ExportParameters(ctx context.Context, projectID string, q ExportQuery) (string, error) {
	query := url.Values{}
	strParam(query, "output", q.Format)
	strParam(query, "environment", q.Environment)
	strParam(query, "as_of", q.AsOf)
	strParam(query, "startswith", q.StartsWith)
	strParam(query, "endswith", q.EndsWith)
	strParam(query, "contains", q.Contains)
	boolParam(query, "export", q.Export)
	query.Set("mask_secrets", strconv.FormatBool(q.MaskSecrets))

	var resp struct {
		Body string `json:"body"`
	}
	path := fmt.Sprintf("projects/%s/parameter-export/", projectID)
	if err := c.do(ctx, http.MethodGet, c.endpoint(path, query), nil, &resp); err != nil {
		return "", err
	}
	return resp.Body, nil
}

// ListPushSteps returns the push operations recorded against a parameter.
func (c *Client) ListPushSteps(ctx context.Context, projectID, paramID string) ([]TaskStep, error) {
	path := fmt.Sprintf("projects/%s/parameters/%s/pushes/", projectID, paramID)
	return listAll[TaskStep](ctx, c, path, nil)
}

func templateQuery(q TemplateQuery) url.Values {
	query := url.Values{}
	strParam(query, "name", q.Name)
	strParam(query, "environment", q.Environment)
	strParam(query, "as_of", q.AsOf)
	query.Set("mask_secrets", strconv.FormatBool(q.MaskSecrets))
	query.Set("evaluate", strconv.FormatBool(q.Evaluate))
	return query
}

func (c *Client) ListTemplates(ctx context.Context, projectID string, q TemplateQuery) ([]Template, error) {
	return listAll[Template](ctx, c, fmt.Sprintf("projects/%s/templates/", projectID), templateQuery(q))
}

func (c *Client) GetTemplate(ctx context.Context, projectID, templateID string, q TemplateQuery) (*Template, error) {
	var tmpl Template
	path := fmt.Sprintf("projects/%s/templates/%s/", projectID, templateID)
	if err := c.do(ctx, http.MethodGet, c.endpoint(path, templateQuery(q)), nil, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (c *Client) CreateTemplate(ctx context.Context, projectID string, body TemplateWrite) (*Template, error) {
	var tmpl Template
	path := fmt.Sprintf("projects/%s/templates/", projectID)
	if err := c.do(ctx, http.MethodPost, c.endpoint(path, nil), body, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (c *Client) UpdateTemplate(ctx context.Context, projectID, templateID string, body TemplateWrite) (*Template, error) {
	var tmpl Template
	path := fmt.Sprintf("projects/%s/templates/%s/", projectID, templateID)
	if err := c.do(ctx, http.MethodPatch, c.endpoint(path, nil), body, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (c *Client) DeleteTemplate(ctx context.Context, projectID, templateID string) error {
	path := fmt.Sprintf("projects/%s/templates/%s/", projectID, templateID)
	return c.do(ctx, http.MethodDelete, c.endpoint(path, nil), nil, nil)
}

// PreviewTemplate evaluates an unsaved template body.
func (c *Client) PreviewTemplate(ctx context.Context, projectID, body string, q TemplateQuery) (string, error) {
	query := templateQuery(q)
	query.Del("name")
	query.Del("evaluate")
	var resp struct {
		Body string `json:"body"`
	}
	path := fmt.Sprintf("projects/%s/template-preview/", projectID)
	if err := c.do(ctx, http.MethodPost, c.endpoint(path, query), map[string]string{"body": body}, &resp); err != nil {
		return "", err
	}
	return resp.Body, nil
}

// ListNamed lists a simple named collection such as users or types. Pushes
// and pulls hang off each integration and are gathered across all of them.
func (c *Client) ListNamed(ctx context.Context, collection, name string) ([]Named, error) {
	q := url.Values{}
	strParam(q, "name", name)
	switch collection {
	case NamedIntegrations:
		return listAll[Named](ctx, c, "integrations/aws/", q)
	case NamedPushes, NamedPulls:
		integrations, err := listAll[Named](ctx, c, "integrations/aws/", nil)
		if err != nil {
			return nil, err
		}
		var all []Named
		for _, integration := range integrations {
			path := fmt.Sprintf("integrations/aws/%s/%s/", integration.ID, collection)
			items, err := listAll[Named](ctx, c, path, url.Values{"name": q["name"]})
			if err != nil {
				return nil, err
			}
			all = append(all, items...)
		}
		return all, nil
	}
	return listAll[Named](ctx, c, collection+"/", q)
}
