package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/cloudtruth/internal/errors"
	"github.com/systmms/cloudtruth/tests/fakes"
)

func envFake() *fakes.FakeCloudTruth {
	return fakes.NewFakeCloudTruth().
		WithEnvironment("staging", "default").
		WithEnvironment("production", "staging").
		WithEnvironment("dev", "default").
		WithProject("app", "")
}

func TestEnvironmentsList(t *testing.T) {
	f := newFixture(t, envFake())

	out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "list")
	require.NoError(t, err)
	assert.Equal(t, "default\nstaging\nproduction\ndev\n", out)

	out, err = runCommand(t, NewEnvironmentsCommand(f.cfg), "", "list", "--values", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Name,Parent,Description\n")
	assert.Contains(t, out, "production,staging,\n")
	assert.Contains(t, out, "default,,\n")
}

func TestEnvironmentsTree(t *testing.T) {
	f := newFixture(t, envFake())

	out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tree")
	require.NoError(t, err)
	assert.Equal(t, "default\n  dev\n  staging\n    production\n", out)

	out, err = runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tree", "staging")
	require.NoError(t, err)
	assert.Equal(t, "staging\n  production\n", out)

	out, err = runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tree", "missing")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, f.stderr(), "No environment 'missing' found")
}

func TestEnvironmentsSet(t *testing.T) {
	t.Run("creates under default", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "set", "qa", "--desc", "quality")
		require.NoError(t, err)
		assert.Equal(t, "Created environment 'qa'\n", out)

		qa := fake.Environment("qa")
		assert.Equal(t, "quality", qa.Description)
		assert.Equal(t, fake.Environment("default").URL, qa.ParentURL())
	})

	t.Run("creates under named parent", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		_, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "set", "canary", "--parent", "production")
		require.NoError(t, err)
		assert.Equal(t, fake.Environment("production").URL, fake.Environment("canary").ParentURL())
	})

	t.Run("missing parent", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		_, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "set", "canary", "--parent", "nowhere")
		requireExitCode(t, err, dserrors.ExitMissingParentEnv)
		assert.Contains(t, err.Error(), "No parent environment 'nowhere' found")
		assert.Equal(t, 0, fake.CallCount("CreateEnvironment"))
	})

	t.Run("parent cannot change", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		_, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "set", "production", "--parent", "dev")
		requireExitCode(t, err, dserrors.ExitParentChangeForbidden)
		assert.Equal(t, 0, fake.MutationCount())
	})

	t.Run("same parent is not a change", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "set", "production", "--parent", "staging", "-d", "live")
		require.NoError(t, err)
		assert.Equal(t, "Updated environment 'production'\n", out)
		assert.Equal(t, "live", fake.Environment("production").Description)
	})

	t.Run("nothing to update", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "set", "dev")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Contains(t, f.stderr(), "Environment 'dev' not updated: no updated parameters provided")
		assert.Equal(t, 0, fake.MutationCount())
	})

	t.Run("rename", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "set", "dev", "--rename", "development")
		require.NoError(t, err)
		assert.Equal(t, "Updated environment 'development'\n", out)
		assert.Equal(t, "development", fake.Environment("development").Name)
	})
}

func TestEnvironmentsDelete(t *testing.T) {
	t.Run("deletes leaf", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "delete", "dev", "--yes")
		require.NoError(t, err)
		assert.Equal(t, "Deleted environment 'dev'\n", out)
		assert.Equal(t, 1, fake.CallCount("DeleteEnvironment"))
	})

	t.Run("server refuses parent", func(t *testing.T) {
		f := newFixture(t, envFake())

		_, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "delete", "staging", "-y")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "children")
	})

	t.Run("unknown environment", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		_, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "delete", "ghost", "-y")
		require.NoError(t, err)
		assert.Contains(t, f.stderr(), "Environment 'ghost' does not exist!")
		assert.Equal(t, 0, fake.CallCount("DeleteEnvironment"))
	})

	t.Run("non-interactive keeps environment", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		_, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "delete", "dev")
		require.NoError(t, err)
		assert.Contains(t, f.stderr(), "Environment 'dev' not deleted!")
		assert.Equal(t, 0, fake.CallCount("DeleteEnvironment"))
	})
}

func TestTags(t *testing.T) {
	t.Run("list empty", func(t *testing.T) {
		f := newFixture(t, envFake())

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "list", "staging")
		require.NoError(t, err)
		assert.Equal(t, "No tags found in environment staging\n", out)
	})

	t.Run("list unknown environment", func(t *testing.T) {
		f := newFixture(t, envFake())

		_, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "list", "ghost")
		requireExitCode(t, err, dserrors.ExitEnvironmentNotFound)
	})

	t.Run("list with values and usage", func(t *testing.T) {
		fake := envFake().
			WithTag("staging", "v1", "2024-02-01T00:00:00.000000Z").
			WithTag("staging", "v2", "2024-03-01T00:00:00.000000Z")
		f := newFixture(t, fake)

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "list", "staging")
		require.NoError(t, err)
		assert.Equal(t, "v1\nv2\n", out)

		out, err = runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "list", "staging", "-v", "-f", "csv")
		require.NoError(t, err)
		assert.Contains(t, out, "Name,Timestamp,Description\n")
		assert.Contains(t, out, "v1,2024-02-01T00:00:00.000000Z,\n")

		out, err = runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "list", "staging", "--usage", "-f", "csv")
		require.NoError(t, err)
		assert.Contains(t, out, "Name,Timestamp,Last User,Last Time,Total Reads\n")
		assert.Contains(t, out, "v2,2024-03-01T00:00:00.000000Z,,,0\n")
	})

	t.Run("set rejects bad time", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		_, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "set", "staging", "v1", "--time", "not-a-time")
		requireExitCode(t, err, dserrors.ExitInvalidTime)
		assert.Equal(t, 0, fake.CallCount("CreateTag"))
	})

	t.Run("set creates then updates", func(t *testing.T) {
		fake := envFake()
		f := newFixture(t, fake)

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "set", "staging", "v1", "-d", "first")
		require.NoError(t, err)
		assert.Equal(t, "Created tag 'v1' in environment 'staging'.\n", out)

		out, err = runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "set", "staging", "v1", "-r", "release-1")
		require.NoError(t, err)
		assert.Equal(t, "Updated tag 'release-1' in environment 'staging'.\n", out)

		out, err = runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "set", "staging", "release-1")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Contains(t, f.stderr(), "Tag 'release-1' not updated")
	})

	t.Run("delete", func(t *testing.T) {
		fake := envFake().WithTag("staging", "v1", "")
		f := newFixture(t, fake)

		out, err := runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "delete", "staging", "v1", "-y")
		require.NoError(t, err)
		assert.Equal(t, "Deleted tag 'v1' from environment 'staging'.\n", out)

		_, err = runCommand(t, NewEnvironmentsCommand(f.cfg), "", "tag", "delete", "staging", "v1", "-y")
		require.NoError(t, err)
		assert.Contains(t, f.stderr(), "Environment 'staging' does not have a tag 'v1'!")
	})
}
