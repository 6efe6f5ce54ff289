package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journalOf simulates a scenario into a fresh journal and returns its path.
func journalOf(t *testing.T, scenario string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "journal.db")
	_, err := runSimulateCommand(t, "text", "--db", db, scenarioPath(scenario))
	require.NoError(t, err)
	return db
}

func runJournalCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewJournalCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestJournalConverged(t *testing.T) {
	db := journalOf(t, "ability_cast")

	out, err := runJournalCommand(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "seq=3")
	assert.Contains(t, out, "✓ all peers agree")
}

func TestJournalDiverged(t *testing.T) {
	db := journalOf(t, "power_choice_desync")

	out, err := runJournalCommand(t, "json", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string        `json:"status"`
		Data   JournalReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Converged)
	require.Len(t, resp.Data.Peers, 2)
	assert.Equal(t, resp.Data.Reference, resp.Data.Peers[0].Peer)
	assert.Zero(t, resp.Data.Peers[0].DivergedAt)
	assert.Equal(t, int64(1), resp.Data.Peers[1].DivergedAt)
}

func TestJournalListsPeerOperations(t *testing.T) {
	db := journalOf(t, "power_choice_desync")

	out, err := runJournalCommand(t, "json", "--db", db)
	require.Error(t, err)
	var resp struct {
		Data JournalReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	client := resp.Data.Peers[1].Peer

	out, err = runJournalCommand(t, "text", "--db", db, "--peer", client)
	require.Error(t, err)
	assert.Contains(t, out, "MPCompat.Chooser:ChoosePower")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "diverged at seq 1")
}

func TestJournalUnknownPeer(t *testing.T) {
	db := journalOf(t, "ability_cast")

	_, err := runJournalCommand(t, "text", "--db", db, "--peer", "nobody")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestJournalMissingDatabase(t *testing.T) {
	_, err := runJournalCommand(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")

	_, err = runJournalCommand(t, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
