package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcompat/internal/harness"
	"github.com/roach88/mpcompat/internal/store"
)

func scenarioPath(name string) string {
	return filepath.Join("..", "harness", "testdata", "scenarios", name+".yaml")
}

func runSimulateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewSimulateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSimulatePasses(t *testing.T) {
	out, err := runSimulateCommand(t, "text", scenarioPath("ability_cast"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ability_cast: 3 operation(s), converged")
	assert.Contains(t, out, "peer-0 applied=3 failed=0")
	assert.Contains(t, out, "abilities")
}

func TestSimulateJSON(t *testing.T) {
	out, err := runSimulateCommand(t, "json", scenarioPath("hiring_missing_mod"))
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   harness.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, int64(3), resp.Data.Submitted)
	require.Len(t, resp.Data.Peers, 2)
	assert.Equal(t, "unresolved", resp.Data.Peers[1].Groups["verbs"])
}

func TestSimulateFailedAssertions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: wrong
description: expects an operation nobody submits
steps:
  - do: sweep
assertions:
  - type: submitted
    count: 1
`), 0o644))

	out, err := runSimulateCommand(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Assertion failed: submitted")
}

func TestSimulateMissingScenario(t *testing.T) {
	_, err := runSimulateCommand(t, "text", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestSimulateTooManyPeers(t *testing.T) {
	_, err := runSimulateCommand(t, "text", "--peers", "40", scenarioPath("verbs_companion"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulateJournals(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	_, err := runSimulateCommand(t, "text", "--db", db, scenarioPath("verbs_companion"))
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	peers, err := st.Peers(context.Background())
	require.NoError(t, err)
	require.Len(t, peers, 2)
	for _, p := range peers {
		records, err := st.ReadOperations(context.Background(), p)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	}
}
