package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyos/taskcore/internal/store"
	"github.com/complyos/taskcore/internal/testutil"
)

// runCommand executes the CLI against a throwaway database, returning stdout
// and the error. Each call builds a fresh command tree so flag state never
// leaks between tests.
func runCommand(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskcore.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	testutil.SeedTask(t, s, 1, store.TaskTypeKYB)
	testutil.SeedResponse(t, s, 1, "legal_name", "Acme Holdings Ltd")
	testutil.SeedResponse(t, s, 1, "tax_id", "98-7654321")
	return path
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	_, err := runCommand(t, filepath.Join(t.TempDir(), "x.db"), "--format", "xml", "fields")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestReconcileCommand_InvalidTaskID(t *testing.T) {
	_, err := runCommand(t, filepath.Join(t.TempDir(), "x.db"), "reconcile", "banana")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReconcileCommand_InvalidEvent(t *testing.T) {
	_, err := runCommand(t, filepath.Join(t.TempDir(), "x.db"), "reconcile", "1", "--event", "explode")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReconcileCommand_UnknownTaskIsFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskcore.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	s.Close()

	_, err = runCommand(t, path, "reconcile", "404")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestReconcileCommand_RecalculatesTask(t *testing.T) {
	path := seedDB(t)

	out, err := runCommand(t, path, "reconcile", "1")
	require.NoError(t, err)
	// 2 of 8 required default KYB fields.
	assert.Contains(t, out, "status=in_progress")
	assert.Contains(t, out, "progress=25")
	assert.Contains(t, out, "changed=true")
}

func TestReconcileCommand_JSONOutput(t *testing.T) {
	path := seedDB(t)

	out, err := runCommand(t, path, "--format", "json", "reconcile", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"Status": "in_progress"`)
	assert.Contains(t, out, `"Progress": 25`)
}

func TestInspectCommand_ReportsDriftWithExitFailure(t *testing.T) {
	path := seedDB(t)

	// Stored progress is still 0; calculated is 25.
	out, err := runCommand(t, path, "inspect", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "stored=0 calculated=25")

	// After reconciliation the report is clean and exits zero.
	_, err = runCommand(t, path, "reconcile", "1")
	require.NoError(t, err)
	out, err = runCommand(t, path, "inspect", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "stored=25 calculated=25")
}

func TestFieldsCommand_ListsAllTypes(t *testing.T) {
	out, err := runCommand(t, filepath.Join(t.TempDir(), "x.db"), "fields")
	require.NoError(t, err)
	for _, taskType := range []string{"kyb", "ky3p", "open_banking", "card"} {
		assert.Contains(t, out, taskType)
	}
}

func TestFieldsCommand_SingleType(t *testing.T) {
	out, err := runCommand(t, filepath.Join(t.TempDir(), "x.db"), "fields", "ky3p")
	require.NoError(t, err)
	assert.Contains(t, out, "vendor_name")
	assert.Contains(t, out, "legacy_id=301")

	_, err = runCommand(t, filepath.Join(t.TempDir(), "x.db"), "fields", "mystery")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSweepCommand_HealsSeededDrift(t *testing.T) {
	path := seedDB(t)

	out, err := runCommand(t, path, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "healed=1")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "drift", assert.AnError)))
}
