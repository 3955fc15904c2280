package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnified(t *testing.T) {
	left := "host: a\nport: 1\nuser: x\n"
	right := "host: a\nport: 2\nuser: x\n"

	out, err := Unified(left, right, "default", "production", DefaultContext)
	require.NoError(t, err)
	assert.Equal(t, "--- default\n+++ production\n@@ -1,3 +1,3 @@\n host: a\n-port: 1\n+port: 2\n user: x\n", out)

	same, err := Unified(left, left, "a", "b", DefaultContext)
	require.NoError(t, err)
	assert.Empty(t, same)
}

func TestUnifiedContextLines(t *testing.T) {
	left := "1\n2\n3\n4\n5\n6\n7\n"
	right := "1\n2\n3\nfour\n5\n6\n7\n"

	out, err := Unified(left, right, "a", "b", 1)
	require.NoError(t, err)
	assert.Equal(t, "--- a\n+++ b\n@@ -3,3 +3,3 @@\n 3\n-4\n+four\n 5\n", out)
}

func TestDiffTemplates(t *testing.T) {
	fake := templateFake()
	e := NewEvaluator(fake)
	projectID := fake.Project("app").ID

	out, err := e.Diff(context.Background(), projectID, "app", "config.yaml",
		Side{Label: "default", Query: Query{MaskSecrets: true}},
		Side{Label: "production", Query: Query{EnvironmentID: fake.Environment("production").ID, MaskSecrets: true}},
		DefaultContext)
	require.NoError(t, err)
	assert.Contains(t, out, "-host: localhost\n")
	assert.Contains(t, out, "+host: db.prod\n")
	assert.Contains(t, out, " pass: *****\n")

	_, err = e.Diff(context.Background(), projectID, "app", "missing", Side{}, Side{}, DefaultContext)
	assert.Error(t, err)
}
