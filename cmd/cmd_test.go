package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/integrity"
	"github.com/josephgoksu/deepagent/internal/mcp"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/planning"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default between executions of the
// shared rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI against an isolated home and data directory.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func decodeJSON[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, t.TempDir(), "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "deepagent")
	assert.Contains(t, out, "Usage:")
	for _, sub := range []string{"serve", "plan", "notes", "chat", "mcp", "config"} {
		assert.Contains(t, out, sub)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, t.TempDir(), "--output", "xml", "plan", "doctor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --output")
}

func TestPlanCommands_Lifecycle(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "-o", "json", "plan", "create", "--thread", "t1", "--title", "Ship feature", "write code", "write tests")
	require.NoError(t, err)
	created := decodeJSON[planning.PlanResponse](t, out)
	assert.Equal(t, planning.PlanStatusActive, created.Status)
	require.Len(t, created.Steps, 2)
	assert.FileExists(t, filepath.Join(dir, "deepagent.db"))

	out, err = execute(t, dir, "-o", "json", "plan", "step", created.PlanID, "1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, decodeJSON[planning.PlanResponse](t, out).CompletionPercentage)

	out, err = execute(t, dir, "-o", "json", "plan", "show", "--thread", "t1")
	require.NoError(t, err)
	assert.Equal(t, created.PlanID, decodeJSON[planning.PlanResponse](t, out).PlanID)

	out, err = execute(t, dir, "-o", "json", "plan", "show", strings.TrimPrefix(created.PlanID, "plan-")[:4])
	require.NoError(t, err)
	assert.Equal(t, created.PlanID, decodeJSON[planning.PlanResponse](t, out).PlanID, "unique prefixes resolve")

	out, err = execute(t, dir, "-o", "json", "plan", "step", created.PlanID, "2")
	require.NoError(t, err)
	assert.Equal(t, planning.PlanStatusCompleted, decodeJSON[planning.PlanResponse](t, out).Status)

	out, err = execute(t, dir, "-o", "json", "plan", "show", "--thread", "t1")
	require.NoError(t, err)
	none := decodeJSON[map[string]any](t, out)
	assert.Equal(t, "No active plan found", none["message"])
	assert.Nil(t, none["plan"])

	out, err = execute(t, dir, "-o", "json", "plan", "list", "--thread", "t1", "--status", "completed")
	require.NoError(t, err)
	assert.Len(t, decodeJSON[[]planning.PlanResponse](t, out), 1)

	_, err = execute(t, dir, "plan", "delete", "--force", created.PlanID)
	require.NoError(t, err)
	_, err = execute(t, dir, "plan", "show", created.PlanID)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestPlanCommands_TextOutput(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "plan", "create", "--thread", "t1", "--title", "Trip", "book flight")
	require.NoError(t, err)
	assert.Contains(t, out, "Trip (plan-")
	assert.Contains(t, out, "Status: Active (0% complete)")
	assert.Contains(t, out, "[ ] 1. book flight")

	out, err = execute(t, dir, "plan", "show", "--thread", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "No active plan for thread nobody.")
}

func TestPlanCommands_Errors(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "-o", "json", "plan", "create", "--thread", "t1", "--title", "First", "a")
	require.NoError(t, err)
	planID := decodeJSON[planning.PlanResponse](t, out).PlanID

	tests := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{"second active plan", []string{"plan", "create", "--thread", "t1", "--title", "Second", "b"}, apperr.IsConflict},
		{"non-integer step", []string{"plan", "step", planID, "one"}, apperr.IsValidation},
		{"missing step", []string{"plan", "step", planID, "9"}, apperr.IsNotFound},
		{"complete with pending steps", []string{"plan", "complete", planID}, apperr.IsInvalidState},
		{"show without target", []string{"plan", "show"}, apperr.IsValidation},
		{"unknown status filter", []string{"plan", "list", "--thread", "t1", "--status", "paused"}, apperr.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, dir, tt.args...)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestPlanDelete_DeclinedConfirmation(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "-o", "json", "plan", "create", "--thread", "t1", "--title", "Keep", "a")
	require.NoError(t, err)
	planID := decodeJSON[planning.PlanResponse](t, out).PlanID

	out, err = execute(t, dir, "plan", "delete", planID)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")

	_, err = execute(t, dir, "plan", "show", planID)
	assert.NoError(t, err)
}

func TestPlanDoctor(t *testing.T) {
	out, err := execute(t, t.TempDir(), "plan", "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	out, err = execute(t, t.TempDir(), "-o", "json", "plan", "doctor")
	require.NoError(t, err)
	assert.Empty(t, decodeJSON[[]integrity.Violation](t, out))
}

func TestNotesCommands(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "-o", "json", "notes", "add", "--title", "Passport", "--tags", "Travel,docs", "Expires", "in", "March")
	require.NoError(t, err)
	saved := decodeJSON[notes.Note](t, out)
	assert.Equal(t, "Expires in March", saved.Content)
	assert.Equal(t, []string{"docs", "travel"}, saved.Tags)

	out, err = execute(t, dir, "-o", "json", "notes", "search", "passport")
	require.NoError(t, err)
	assert.Len(t, decodeJSON[[]notes.Note](t, out), 1)

	out, err = execute(t, dir, "-o", "json", "notes", "search", "--tag", "travel")
	require.NoError(t, err)
	assert.Len(t, decodeJSON[[]notes.Note](t, out), 1)

	_, err = execute(t, dir, "notes", "search")
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	exportDir := t.TempDir()
	out, err = execute(t, dir, "notes", "export", "--dir", exportDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 note(s)")
	entries, err := os.ReadDir(filepath.Join(exportDir, "notes"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	out, err = execute(t, dir, "notes", "delete", saved.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted note")
}

func TestThreadsList_Empty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "threads", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No threads yet.")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deepagent.yaml")
	out, err := execute(t, t.TempDir(), "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
	assert.FileExists(t, path)

	_, err = execute(t, t.TempDir(), "config", "init", path)
	assert.Error(t, err, "refuses to overwrite without --force")

	out, err = execute(t, t.TempDir(), "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 8000")
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	t.Setenv("DEEPAGENT_SERVER_APIKEY", "s3cret")
	out, err := execute(t, t.TempDir(), "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "********")
}

func TestFormatError(t *testing.T) {
	repoErr := apperr.NewRepository("insert plan", errors.New("database is locked"))
	tests := []struct {
		name    string
		err     error
		verbose bool
		want    string
	}{
		{"validation", apperr.NewValidation("title", "title is required"), false, "Invalid input: "},
		{"not found", apperr.NewNotFound("plan", "plan-x"), false, "Not found: "},
		{"repository hides cause", repoErr, false, "storage failure during insert plan"},
		{"verbose shows cause", repoErr, true, "database is locked"},
		{"plain", errors.New("boom"), false, "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, formatError(tt.err, tt.verbose), tt.want)
		})
	}
	assert.NotContains(t, formatError(repoErr, false), "locked")
}

func TestMCPToolResponse(t *testing.T) {
	res, err := mcpToolResponse(&mcp.ToolResult{Content: "## Plan: Trip"}, nil)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = mcpToolResponse(&mcp.ToolResult{Error: "no active plan"}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = mcpToolResponse(nil, errors.New("storage down"))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
