// Package envtree derives the environment hierarchy from the flat environment
// list returned by the server.
package envtree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/systmms/cloudtruth/internal/api"
)

// Tree indexes environments by name and URL and records parent links.
type Tree struct {
	byName   map[string]api.Environment
	byURL    map[string]api.Environment
	children map[string][]string
	// names of environments whose parent link points nowhere or loops
	orphans []string
}

// New builds a tree from the environment list. Environments whose parent URL
// is unknown, or whose parent chain is circular, are reported through Orphans
// and left out of every walk from a root.
func New(envs []api.Environment) *Tree {
	t := &Tree{
		byName:   make(map[string]api.Environment, len(envs)),
		byURL:    make(map[string]api.Environment, len(envs)),
		children: make(map[string][]string),
	}
	for _, env := range envs {
		t.byName[env.Name] = env
		t.byURL[env.URL] = env
	}
	for _, env := range envs {
		parentURL := env.ParentURL()
		if parentURL == "" {
			continue
		}
		parent, ok := t.byURL[parentURL]
		if !ok {
			t.orphans = append(t.orphans, env.Name)
			continue
		}
		t.children[parent.Name] = append(t.children[parent.Name], env.Name)
	}
	t.cutCycles()
	for name := range t.children {
		sort.Strings(t.children[name])
	}
	sort.Strings(t.orphans)
	return t
}

// cutCycles detaches every environment whose parent chain loops back to
// itself and records it as an orphan, so walks always terminate.
func (t *Tree) cutCycles() {
	reached := make(map[string]bool, len(t.byName))
	var mark func(name string)
	mark = func(name string) {
		if reached[name] {
			return
		}
		reached[name] = true
		for _, child := range t.children[name] {
			mark(child)
		}
	}
	for _, root := range t.Roots() {
		mark(root)
	}
	for _, orphan := range t.orphans {
		mark(orphan)
	}

	var cyclic []string
	for name := range t.byName {
		if !reached[name] && t.inCycle(name) {
			cyclic = append(cyclic, name)
		}
	}
	for _, name := range cyclic {
		parent := t.ParentName(name)
		siblings := t.children[parent]
		for i, sibling := range siblings {
			if sibling == name {
				t.children[parent] = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
		t.orphans = append(t.orphans, name)
	}
}

func (t *Tree) inCycle(name string) bool {
	seen := map[string]bool{name: true}
	for current := t.ParentName(name); current != ""; current = t.ParentName(current) {
		if current == name {
			return true
		}
		if seen[current] {
			return false
		}
		seen[current] = true
	}
	return false
}

// Orphans returns environments with a parent link that does not resolve or
// that is part of a cycle.
func (t *Tree) Orphans() []string {
	return t.orphans
}

// ByName looks up an environment.
func (t *Tree) ByName(name string) (api.Environment, bool) {
	env, ok := t.byName[name]
	return env, ok
}

// ByURL looks up an environment by its URL.
func (t *Tree) ByURL(url string) (api.Environment, bool) {
	env, ok := t.byURL[url]
	return env, ok
}

// NameForURL returns the environment name for url, or "" when unknown.
func (t *Tree) NameForURL(url string) string {
	return t.byURL[url].Name
}

// ParentName returns the name of the parent environment, or "".
func (t *Tree) ParentName(name string) string {
	env, ok := t.byName[name]
	if !ok {
		return ""
	}
	return t.byURL[env.ParentURL()].Name
}

// ChildrenOf returns the direct children of name, sorted by name.
func (t *Tree) ChildrenOf(name string) []api.Environment {
	names := t.children[name]
	out := make([]api.Environment, 0, len(names))
	for _, n := range names {
		out = append(out, t.byName[n])
	}
	return out
}

// DepthFirstURLs returns the URL of start followed by the URLs of its
// descendants in depth-first, name-sorted order.
func (t *Tree) DepthFirstURLs(start string) []string {
	env, ok := t.byName[start]
	if !ok {
		return nil
	}
	urls := []string{env.URL}
	for _, child := range t.children[start] {
		urls = append(urls, t.DepthFirstURLs(child)...)
	}
	return urls
}

// Ancestors returns the names from the root down to name, inclusive.
func (t *Tree) Ancestors(name string) []string {
	var chain []string
	seen := make(map[string]bool)
	for current := name; current != ""; current = t.ParentName(current) {
		if _, ok := t.byName[current]; !ok || seen[current] {
			break
		}
		seen[current] = true
		chain = append([]string{current}, chain...)
	}
	return chain
}

// Roots returns the environments without a parent, sorted by name.
func (t *Tree) Roots() []string {
	var roots []string
	for name, env := range t.byName {
		if env.ParentURL() == "" {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Render draws the subtree below start, two spaces per level.
func (t *Tree) Render(start string) string {
	var sb strings.Builder
	t.render(&sb, start, 0)
	return sb.String()
}

func (t *Tree) render(sb *strings.Builder, name string, depth int) {
	fmt.Fprintf(sb, "%s%s\n", strings.Repeat("  ", depth), name)
	for _, child := range t.children[name] {
		t.render(sb, child, depth+1)
	}
}
