package cmd

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordedRun = regexp.MustCompile(`Recorded run ([0-9a-f-]{36})`)

// compileWithHistory runs one recorded compile and returns the run ID.
func compileWithHistory(t *testing.T, root, logFile string) string {
	t.Helper()
	stdout, _, err := executeCommand(t, root, "--log-file", logFile, "--history")
	require.NoError(t, err)
	m := recordedRun.FindStringSubmatch(stdout)
	require.NotNil(t, m, "no run ID in output:\n%s", stdout)
	return m[1]
}

func TestHistoryCommand_Empty(t *testing.T) {
	root, _ := createTestRoot(t, nil)

	stdout, _, err := executeCommand(t, "history", "--root", root)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", stdout)
	assert.NoFileExists(t, filepath.Join(root, ".xmlc", "history.db"))
}

func TestHistoryCommand_ListAndShow(t *testing.T) {
	root, logFile := createTestRoot(t, includeFixture)
	first := compileWithHistory(t, root, logFile)
	second := compileWithHistory(t, root, logFile)

	stdout, _, err := executeCommand(t, "history", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, first[:8])
	assert.Contains(t, stdout, second[:8])

	stdout, _, err = executeCommand(t, "history", "--root", root, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, second[:8])
	assert.NotContains(t, stdout, first[:8])

	stdout, _, err = executeCommand(t, "history", second[:8], "--root", root, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, stdout, "## Files of run `"+second+"`")
	// The second run wrote identical output, so nothing changed.
	assert.Contains(t, stdout, "| sub/1_a.xml | COMPILED | no | 1 | 0 |")
}

func TestHistoryCommand_HTML(t *testing.T) {
	root, logFile := createTestRoot(t, includeFixture)
	compileWithHistory(t, root, logFile)

	stdout, _, err := executeCommand(t, "history", "--root", root, "--format", "html")
	require.NoError(t, err)
	assert.Contains(t, stdout, "<h1>Compile history</h1>")
	assert.Contains(t, stdout, "<table>")
}

func TestHistoryCommand_Prune(t *testing.T) {
	root, logFile := createTestRoot(t, includeFixture)
	compileWithHistory(t, root, logFile)
	compileWithHistory(t, root, logFile)
	last := compileWithHistory(t, root, logFile)

	stdout, _, err := executeCommand(t, "history", "--root", root, "--prune", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed 2 run(s), kept the 1 most recent")

	stdout, _, err = executeCommand(t, "history", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, last[:8])
}

func TestHistoryCommand_Errors(t *testing.T) {
	root, logFile := createTestRoot(t, includeFixture)
	compileWithHistory(t, root, logFile)

	_, _, err := executeCommand(t, "history", "--root", root, "--format", "pdf")
	assert.ErrorContains(t, err, "invalid format")

	_, _, err = executeCommand(t, "history", "--root", root, "--limit", "-2")
	assert.ErrorContains(t, err, "limit must be >= 0")

	_, _, err = executeCommand(t, "history", "ffffffff", "--root", root)
	assert.ErrorContains(t, err, "run not found")

	_, _, err = executeCommand(t, "history", "--root", filepath.Join(root, "missing"))
	assert.ErrorContains(t, err, "specified directory does not exist")
}

func TestHistoryCommand_CustomDBPath(t *testing.T) {
	root, logFile := createTestRoot(t, includeFixture)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".xmlc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".xmlc", "config.yaml"),
		[]byte("history:\n  enabled: true\n  db_path: state/runs.db\n"), 0644))

	_, _, err := executeCommand(t, root, "--log-file", logFile)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "state", "runs.db"))

	stdout, _, err := executeCommand(t, "history", "--root", root)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "No runs recorded.")
}
