package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/vault-recur/pkg/task"
	"github.com/mklimuk/vault-recur/pkg/vault"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRulesList(t *testing.T) {
	out, err := run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "quarterly")
	assert.Contains(t, out, "4 month")
}

func TestRulesResolve(t *testing.T) {
	out, err := run(t, "rules", "resolve", "montly")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "monthly (fuzzy"), out)

	_, err = run(t, "rules", "resolve", "zzzzzz")
	assert.Error(t, err)
}

func TestProcessCommand(t *testing.T) {
	vaultDir := t.TempDir()
	notePath := filepath.Join(vaultDir, "Tasks", "Stretch.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(notePath), 0755))
	require.NoError(t, os.WriteFile(notePath, []byte("---\ncompleted: true\ndue: \"2024-05-31\"\nrecurrence: monthly\n---\n- [x] neck\n"), 0644))

	dbPath := filepath.Join(t.TempDir(), "runs.db")
	out, err := run(t, "--vault", vaultDir, "--db", dbPath, "process", "--recur", "Tasks/Stretch.md")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "processed"`)

	next, err := os.ReadFile(filepath.Join(vaultDir, "Tasks", "Stretch 2024-06-30.md"))
	require.NoError(t, err)
	assert.Contains(t, string(next), "- [ ] neck")

	_, err = os.Stat(notePath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunsCommands(t *testing.T) {
	vaultDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(vaultDir, "Tasks"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "Tasks", "Floss.md"), []byte("---\ncompleted: true\ndue: 2024-05-01\nrecurrence: daily\n---\n"), 0644))
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	_, err := run(t, "--vault", vaultDir, "--db", dbPath, "archive", "Tasks/Floss.md")
	require.NoError(t, err)

	out, err := run(t, "--vault", vaultDir, "--db", dbPath, "runs", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Regexp(t, `archived\s+1`, out)

	out, err = run(t, "--vault", vaultDir, "--db", dbPath, "runs", "list", "--path", "Tasks/Floss.md")
	require.NoError(t, err)
	assert.Contains(t, out, `"path": "Tasks/Floss.md"`)

	out, err = run(t, "--vault", vaultDir, "--db", dbPath, "runs", "prune", "--older-than", "720h")
	require.NoError(t, err)
	assert.Equal(t, "removed 0 runs\n", out)

	out, err = run(t, "--vault", vaultDir, "--db", dbPath, "runs", "prune", "--older-than", "1ns")
	require.NoError(t, err)
	assert.Equal(t, "removed 1 runs\n", out)
}

func TestRunsRequireHistory(t *testing.T) {
	_, err := run(t, "--vault", t.TempDir(), "runs", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run history is disabled")
}

func TestArchiveCommandMissingNote(t *testing.T) {
	_, err := run(t, "--vault", t.TempDir(), "archive", "Tasks/none.md")
	assert.Error(t, err)
}

func TestProcessRequiresVault(t *testing.T) {
	_, err := run(t, "process", "a.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault path is required")
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  task.Answer
	}{
		{"r\n", task.Answer{Decision: task.DecisionRecur, CopySubtasks: true}},
		{"\n", task.Answer{Decision: task.DecisionRecur, CopySubtasks: true}},
		{"w\n", task.Answer{Decision: task.DecisionRecur}},
		{"a\n", task.Answer{Decision: task.DecisionArchive}},
		{"c\n", task.Answer{Decision: task.DecisionCancel}},
		{"nope", task.Answer{Decision: task.DecisionCancel}},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := promptConfirmer{in: bufio.NewReader(strings.NewReader(tt.input)), out: &out}
		got, err := p.Confirm("Tasks/a.md", vault.Frontmatter{"recurrence": "daily"})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "Tasks/a.md is complete (recurrence: daily)")
	}
}
