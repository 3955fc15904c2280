package envtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/cloudtruth/internal/api"
)

func env(name, parent string) api.Environment {
	e := api.Environment{ID: name + "-id", Name: name, URL: "https://x/environments/" + name + "/"}
	if parent != "" {
		p := "https://x/environments/" + parent + "/"
		e.Parent = &p
	}
	return e
}

func sampleTree() *Tree {
	return New([]api.Environment{
		env("default", ""),
		env("production", "default"),
		env("development", "default"),
		env("dev-alice", "development"),
		env("dev-bob", "development"),
		env("lost", "gone"),
	})
}

func TestChildrenOfSorted(t *testing.T) {
	tree := sampleTree()

	var names []string
	for _, e := range tree.ChildrenOf("default") {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"development", "production"}, names)
	assert.Empty(t, tree.ChildrenOf("production"))
	assert.Empty(t, tree.ChildrenOf("nope"))
}

func TestDepthFirstURLs(t *testing.T) {
	tree := sampleTree()

	urls := tree.DepthFirstURLs("default")
	require.Len(t, urls, 5)
	names := make([]string, 0, len(urls))
	for _, u := range urls {
		names = append(names, tree.NameForURL(u))
	}
	assert.Equal(t, []string{"default", "development", "dev-alice", "dev-bob", "production"}, names)
	assert.Nil(t, tree.DepthFirstURLs("nope"))
}

func TestAncestors(t *testing.T) {
	tree := sampleTree()
	assert.Equal(t, []string{"default", "development", "dev-bob"}, tree.Ancestors("dev-bob"))
	assert.Equal(t, []string{"default"}, tree.Ancestors("default"))
	assert.Empty(t, tree.Ancestors("nope"))
	assert.Equal(t, "development", tree.ParentName("dev-alice"))
	assert.Equal(t, "", tree.ParentName("default"))
}

func TestOrphansLeftOut(t *testing.T) {
	tree := sampleTree()
	assert.Equal(t, []string{"lost"}, tree.Orphans())
	assert.Equal(t, []string{"default"}, tree.Roots())
	assert.NotContains(t, tree.Render("default"), "lost")
}

func TestCircularParentsCut(t *testing.T) {
	tree := New([]api.Environment{
		env("default", ""),
		env("a", "b"),
		env("b", "a"),
		env("c", "a"),
	})

	assert.Equal(t, []string{"a", "b"}, tree.Orphans())
	assert.Equal(t, "default\n", tree.Render("default"))
	assert.Equal(t, "a\n  c\n", tree.Render("a"))
	assert.Equal(t, "b\n", tree.Render("b"))
	assert.Len(t, tree.DepthFirstURLs("b"), 1)
	assert.Equal(t, []string{"b", "a", "c"}, tree.Ancestors("c"))
}

func TestSelfParent(t *testing.T) {
	tree := New([]api.Environment{env("default", ""), env("loop", "loop")})

	assert.Equal(t, []string{"loop"}, tree.Orphans())
	assert.Equal(t, "loop\n", tree.Render("loop"))
}

func TestRender(t *testing.T) {
	tree := sampleTree()
	expected := "default\n  development\n    dev-alice\n    dev-bob\n  production\n"
	assert.Equal(t, expected, tree.Render("default"))
	assert.Equal(t, "development\n  dev-alice\n  dev-bob\n", tree.Render("development"))
}

func TestLookups(t *testing.T) {
	tree := sampleTree()
	e, ok := tree.ByName("production")
	require.True(t, ok)
	byURL, ok := tree.ByURL(e.URL)
	require.True(t, ok)
	assert.Equal(t, "production-id", byURL.ID)
	assert.Equal(t, "", tree.NameForURL("https://unknown/"))
}
