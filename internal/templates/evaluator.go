// Package templates fetches, evaluates and compares project templates.
package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/cloudtruth/internal/api"
)

// NotFoundError is returned when the project has no template of that name.
type NotFoundError struct {
	Template string
	Project  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No template '%s' found in project '%s'", e.Template, e.Project)
}

// EvaluateError carries the per-parameter failures of a server evaluation.
type EvaluateError struct {
	Lookup *api.TemplateLookupError
}

func (e *EvaluateError) Error() string {
	var failures []string
	if e.Lookup != nil {
		for _, d := range e.Lookup.Detail {
			failures = append(failures, fmt.Sprintf("%s: %s", d.ParameterName, d.ErrorDetail))
		}
	}
	if len(failures) == 0 {
		failures = append(failures, "No details available")
	}
	return "Evaluation failed:\n  " + strings.Join(failures, "\n  ")
}

// Query selects how a template body is fetched.
type Query struct {
	EnvironmentID string
	AsOf          string
	Raw           bool
	MaskSecrets   bool
}

func (q Query) api(name string) api.TemplateQuery {
	return api.TemplateQuery{
		Name:        name,
		Environment: q.EnvironmentID,
		AsOf:        q.AsOf,
		MaskSecrets: q.MaskSecrets,
		Evaluate:    !q.Raw,
	}
}

// Evaluator reads templates through the API.
type Evaluator struct {
	client api.TemplateAPI
}

// NewEvaluator creates an evaluator.
func NewEvaluator(client api.TemplateAPI) *Evaluator {
	return &Evaluator{client: client}
}

// Find returns the named template without evaluating it.
func (e *Evaluator) Find(ctx context.Context, projectID, name string) (*api.Template, bool, error) {
	templates, err := e.client.ListTemplates(ctx, projectID, api.TemplateQuery{Name: name})
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

// Get returns the body of the named template, evaluated unless q.Raw.
func (e *Evaluator) Get(ctx context.Context, projectID, projectName, name string, q Query) (string, error) {
	tmpl, ok, err := e.Find(ctx, projectID, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &NotFoundError{Template: name, Project: projectName}
	}
	got, err := e.client.GetTemplate(ctx, projectID, tmpl.ID, q.api(""))
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return "", &NotFoundError{Template: name, Project: projectName}
		}
		return "", translate(err)
	}
	if got.Body == nil {
		return "", nil
	}
	return *got.Body, nil
}

// Preview evaluates an unsaved body.
func (e *Evaluator) Preview(ctx context.Context, projectID, body string, q Query) (string, error) {
	out, err := e.client.PreviewTemplate(ctx, projectID, body, q.api(""))
	if err != nil {
		return "", translate(err)
	}
	return out, nil
}

// Validate evaluates the named template and discards the result.
func (e *Evaluator) Validate(ctx context.Context, projectID, projectName, name string, q Query) error {
	q.Raw = false
	q.MaskSecrets = true
	_, err := e.Get(ctx, projectID, projectName, name, q)
	return err
}

// translate turns a structured lookup failure into an EvaluateError.
func translate(err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if tle, ok := apiErr.TemplateLookup(); ok {
			return &EvaluateError{Lookup: tle}
		}
	}
	return err
}
