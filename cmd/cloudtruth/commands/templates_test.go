package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/tests/fakes"
)

func templateFake() *fakes.FakeCloudTruth {
	return fakes.NewFakeCloudTruth().
		WithEnvironment("production", "default").
		WithProject("app", "").
		WithParameter("app", "DB_HOST", fakes.ParamOpts{}).
		WithValue("app", "DB_HOST", "default", "localhost").
		WithValue("app", "DB_HOST", "production", "db.prod").
		WithTemplate("app", "app.conf", "host={{DB_HOST}}").
		WithTemplate("app", "broken", "x={{MISSING}}")
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestTemplatesList(t *testing.T) {
	f := newFixture(t, templateFake())

	out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "list")
	require.NoError(t, err)
	assert.Equal(t, "app.conf\nbroken\n", out)

	out, err = runCommand(t, NewTemplatesCommand(f.cfg), "", "list", "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "Name,Description\napp.conf,\nbroken,\n", out)

	empty := newFixture(t, fakes.NewFakeCloudTruth().WithProject("app", ""))
	out, err = runCommand(t, NewTemplatesCommand(empty.cfg), "", "list")
	require.NoError(t, err)
	assert.Equal(t, "No templates in project 'app'.\n", out)
}

func TestTemplatesGet(t *testing.T) {
	t.Run("evaluated", func(t *testing.T) {
		f := newFixture(t, templateFake())

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "get", "app.conf")
		require.NoError(t, err)
		assert.Equal(t, "host=localhost\n", out)
	})

	t.Run("raw", func(t *testing.T) {
		f := newFixture(t, templateFake())

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "get", "app.conf", "--raw")
		require.NoError(t, err)
		assert.Equal(t, "host={{DB_HOST}}\n", out)
	})

	t.Run("selected environment", func(t *testing.T) {
		f := newFixtureWith(t, templateFake(), inProduction)

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "get", "app.conf")
		require.NoError(t, err)
		assert.Equal(t, "host=db.prod\n", out)
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t, templateFake())

		_, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "get", "nope")
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Equal(t, "No template 'nope' found in project 'app'", userErr.Message)
	})
}

func TestTemplatesSet(t *testing.T) {
	t.Run("new template needs a body", func(t *testing.T) {
		fake := templateFake()
		f := newFixture(t, fake)

		_, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "set", "new.conf")
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Equal(t, 0, fake.CallCount("CreateTemplate"))
	})

	t.Run("creates from file", func(t *testing.T) {
		fake := templateFake()
		f := newFixture(t, fake)
		path := writeFile(t, "new.conf", "port=8080\n")

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "set", "new.conf", "-b", path, "-d", "ports")
		require.NoError(t, err)
		assert.Equal(t, "Created template 'new.conf' in project 'app'.\n", out)
		body, ok := fake.TemplateBody("app", "new.conf")
		require.True(t, ok)
		assert.Equal(t, "port=8080\n", body)
	})

	t.Run("updates body", func(t *testing.T) {
		fake := templateFake()
		f := newFixture(t, fake)
		path := writeFile(t, "app.conf", "host={{DB_HOST}}:5432")

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "set", "app.conf", "--body", path)
		require.NoError(t, err)
		assert.Equal(t, "Updated template 'app.conf' in project 'app'.\n", out)
		body, _ := fake.TemplateBody("app", "app.conf")
		assert.Equal(t, "host={{DB_HOST}}:5432", body)
	})

	t.Run("rename", func(t *testing.T) {
		fake := templateFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "set", "app.conf", "-r", "service.conf")
		require.NoError(t, err)
		assert.Equal(t, "Updated template 'service.conf' in project 'app'.\n", out)
		_, ok := fake.TemplateBody("app", "service.conf")
		assert.True(t, ok)
	})

	t.Run("nothing to update", func(t *testing.T) {
		fake := templateFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "set", "app.conf")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Contains(t, f.stderr(), "Template 'app.conf' not updated")
		assert.Equal(t, 0, fake.CallCount("UpdateTemplate"))
	})

	t.Run("unreadable body file", func(t *testing.T) {
		f := newFixture(t, templateFake())

		_, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "set", "app.conf", "-b", filepath.Join(t.TempDir(), "absent"))
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Contains(t, userErr.Message, "Failed to read template file")
	})
}

func TestTemplatesDelete(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		fake := templateFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "delete", "app.conf", "-y")
		require.NoError(t, err)
		assert.Equal(t, "Deleted template 'app.conf' from project 'app'.\n", out)
		assert.Equal(t, 1, fake.CallCount("DeleteTemplate"))
	})

	t.Run("non-interactive keeps template", func(t *testing.T) {
		fake := templateFake()
		f := newFixture(t, fake)

		_, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "delete", "app.conf")
		require.NoError(t, err)
		assert.Contains(t, f.stderr(), "Template 'app.conf' not deleted!")
		assert.Equal(t, 0, fake.CallCount("DeleteTemplate"))
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t, templateFake())

		_, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "delete", "nope", "-y")
		require.NoError(t, err)
		assert.Contains(t, f.stderr(), "Template 'nope' does not exist for project 'app'!")
	})
}

func TestTemplatesDiff(t *testing.T) {
	t.Run("evaluated bodies differ", func(t *testing.T) {
		f := newFixture(t, templateFake())

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "diff", "app.conf", "-e", "default", "-e", "production")
		require.NoError(t, err)
		assert.Contains(t, out, "--- default\n")
		assert.Contains(t, out, "+++ production\n")
		assert.Contains(t, out, "-host=localhost\n")
		assert.Contains(t, out, "+host=db.prod\n")
	})

	t.Run("raw bodies match", func(t *testing.T) {
		f := newFixture(t, templateFake())

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "difference", "app.conf", "-e", "production", "--raw")
		require.NoError(t, err)
		assert.Equal(t, "Templates are the same\n", out)
	})

	t.Run("self comparison warns", func(t *testing.T) {
		f := newFixture(t, templateFake())

		out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "diff", "app.conf")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Contains(t, f.stderr(), "comparing an environment to itself")
	})

	t.Run("unknown environment", func(t *testing.T) {
		f := newFixture(t, templateFake())

		_, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "diff", "app.conf", "-e", "ghost")
		requireExitCode(t, err, dserrors.ExitEnvironmentNotFound)
	})
}

func TestTemplatesPreview(t *testing.T) {
	f := newFixture(t, templateFake())

	out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "preview", writeFile(t, "local.conf", "db={{DB_HOST}}"))
	require.NoError(t, err)
	assert.Equal(t, "db=localhost\n", out)

	_, err = runCommand(t, NewTemplatesCommand(f.cfg), "", "preview", writeFile(t, "bad.conf", "db={{NOPE}}"))
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "Evaluation failed:")
	assert.Contains(t, userErr.Message, "NOPE")
}

func TestTemplatesValidate(t *testing.T) {
	f := newFixture(t, templateFake())

	out, err := runCommand(t, NewTemplatesCommand(f.cfg), "", "validate", "app.conf")
	require.NoError(t, err)
	assert.Equal(t, "Success\n", out)

	_, err = runCommand(t, NewTemplatesCommand(f.cfg), "", "validate", "broken")
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "Evaluation failed:")
}
