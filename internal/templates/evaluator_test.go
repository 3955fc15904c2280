package templates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/cloudtruth/internal/api"
	"github.com/systmms/cloudtruth/tests/fakes"
)

func templateFake() *fakes.FakeCloudTruth {
	return fakes.NewFakeCloudTruth().
		WithEnvironment("production", "default").
		WithProject("app", "").
		WithParameter("app", "DB_HOST", fakes.ParamOpts{}).
		WithValue("app", "DB_HOST", "default", "localhost").
		WithValue("app", "DB_HOST", "production", "db.prod").
		WithParameter("app", "DB_PASS", fakes.ParamOpts{Secret: true}).
		WithValue("app", "DB_PASS", "default", "s3cret").
		WithTemplate("app", "config.yaml", "host: {{DB_HOST}}\npass: {{cloudtruth.parameters.DB_PASS}}\n").
		WithTemplate("app", "broken", "a: {{MISSING}}\nb: {{OTHER}}\n")
}

func TestGet(t *testing.T) {
	fake := templateFake()
	e := NewEvaluator(fake)
	ctx := context.Background()
	projectID := fake.Project("app").ID

	body, err := e.Get(ctx, projectID, "app", "config.yaml", Query{MaskSecrets: true})
	require.NoError(t, err)
	assert.Equal(t, "host: localhost\npass: *****\n", body)

	body, err = e.Get(ctx, projectID, "app", "config.yaml", Query{EnvironmentID: fake.Environment("production").ID})
	require.NoError(t, err)
	assert.Equal(t, "host: db.prod\npass: s3cret\n", body)

	raw, err := e.Get(ctx, projectID, "app", "config.yaml", Query{Raw: true})
	require.NoError(t, err)
	assert.Equal(t, "host: {{DB_HOST}}\npass: {{cloudtruth.parameters.DB_PASS}}\n", raw)
}

func TestGetAsOf(t *testing.T) {
	fake := templateFake()
	e := NewEvaluator(fake)
	ctx := context.Background()
	projectID := fake.Project("app").ID

	before := fake.Now()
	fake.Advance(time.Hour)
	tmpl, ok, err := e.Find(ctx, projectID, "config.yaml")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = fake.UpdateTemplate(ctx, projectID, tmpl.ID, api.TemplateWrite{Body: api.StrPtr("new body\n")})
	require.NoError(t, err)

	current, err := e.Get(ctx, projectID, "app", "config.yaml", Query{Raw: true})
	require.NoError(t, err)
	assert.Equal(t, "new body\n", current)

	old, err := e.Get(ctx, projectID, "app", "config.yaml", Query{Raw: true, AsOf: before})
	require.NoError(t, err)
	assert.Contains(t, old, "{{DB_HOST}}")
}

func TestGetNotFound(t *testing.T) {
	fake := templateFake()
	e := NewEvaluator(fake)

	_, err := e.Get(context.Background(), fake.Project("app").ID, "app", "nope", Query{})
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "No template 'nope' found in project 'app'", err.Error())
}

func TestGetEvaluationFailed(t *testing.T) {
	fake := templateFake()
	e := NewEvaluator(fake)
	projectID := fake.Project("app").ID

	_, err := e.Get(context.Background(), projectID, "app", "broken", Query{MaskSecrets: true})
	var evalErr *EvaluateError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "Evaluation failed:\n  MISSING: parameter not found\n  OTHER: parameter not found", err.Error())

	assert.Error(t, e.Validate(context.Background(), projectID, "app", "broken", Query{}))
	assert.NoError(t, e.Validate(context.Background(), projectID, "app", "config.yaml", Query{}))
}

func TestEvaluateErrorWithoutDetails(t *testing.T) {
	err := &EvaluateError{Lookup: &api.TemplateLookupError{}}
	assert.Equal(t, "Evaluation failed:\n  No details available", err.Error())
}

func TestPreview(t *testing.T) {
	fake := templateFake()
	e := NewEvaluator(fake)
	projectID := fake.Project("app").ID

	out, err := e.Preview(context.Background(), projectID, "url=http://{{DB_HOST}}", Query{MaskSecrets: true})
	require.NoError(t, err)
	assert.Equal(t, "url=http://localhost", out)

	_, err = e.Preview(context.Background(), projectID, "{{NOPE}}", Query{})
	var evalErr *EvaluateError
	assert.True(t, errors.As(err, &evalErr))
}

func TestGetPassesTransportErrors(t *testing.T) {
	boom := errors.New("boom")
	fake := templateFake().WithError("ListTemplates", boom)
	e := NewEvaluator(fake)

	_, err := e.Get(context.Background(), fake.Project("app").ID, "app", "config.yaml", Query{})
	assert.ErrorIs(t, err, boom)
}
