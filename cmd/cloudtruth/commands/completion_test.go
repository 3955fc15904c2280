package commands

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionScripts(t *testing.T) {
	f := newFixture(t, envFake())

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			root := &cobra.Command{Use: BinaryName}
			root.AddCommand(NewCompletionCommand(f.cfg), NewEnvironmentsCommand(f.cfg))

			out, err := runCommand(t, root, "", "completion", shell)
			require.NoError(t, err)
			assert.Contains(t, out, BinaryName)
		})
	}

	root := &cobra.Command{Use: BinaryName}
	root.AddCommand(NewCompletionCommand(f.cfg))
	_, err := runCommand(t, root, "", "completion", "tcsh")
	assert.Error(t, err)
}

func TestCompleteEnvironments(t *testing.T) {
	f := newFixture(t, envFake())
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	names, directive := completeEnvironments(f.cfg)(cmd, nil, "")
	assert.Equal(t, []string{"default", "staging", "production", "dev"}, names)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	names, _ = completeEnvironments(f.cfg)(cmd, []string{"dev"}, "")
	assert.Empty(t, names)
}

func TestCompleteProjects(t *testing.T) {
	f := newFixture(t, projectFake())
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	names, directive := completeProjects(f.cfg)(cmd, nil, "")
	assert.Equal(t, []string{"app", "web", "api", "tools"}, names)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}
