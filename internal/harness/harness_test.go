package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcompat/internal/store"
	"github.com/roach88/mpcompat/internal/transport"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenariosMatchGolden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".yaml")
		t.Run(name, func(t *testing.T) {
			s := loadTestScenario(t, name)
			result, err := Run(context.Background(), s, Options{Logger: zerolog.Nop()})
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			AssertGolden(t, result)
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	s := loadTestScenario(t, "ability_cast")
	first, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)
	second, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)

	require.Len(t, first.Peers, 2)
	for i := range first.Peers {
		assert.NotEmpty(t, first.Peers[i].Checksum)
		assert.Equal(t, first.Peers[i].Checksum, second.Peers[i].Checksum)
	}
	assert.Equal(t, first.Peers[0].Checksum, first.Peers[1].Checksum)
}

func TestFailedAssertionsAreReported(t *testing.T) {
	s := loadTestScenario(t, "ability_cast")
	one, two := 1, 2
	s.Assertions = []Assertion{
		{Type: AssertDiverged},
		{Type: AssertSubmitted, Count: &two},
		{Type: AssertApplied, Count: &one},
		{Type: AssertHostState, Probe: "ability.1.Frost.casts", Equals: 7},
		{Type: AssertHostState, Probe: "ability.1.Missing.casts", Equals: 0},
		{Type: AssertGroupState, Group: "nothing", State: "active", Peer: &one},
	}

	result, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.True(t, result.Converged)
	// diverged, submitted, applied twice, casts twice, missing twice, group once
	require.Len(t, result.Errors, 9)
	assert.Contains(t, result.Errors[0], "Assertion failed: diverged")
	assert.Contains(t, result.Errors[1], "Expected: 2 operations")
	assert.Contains(t, result.Errors[2], "on peer-0")
	assert.Contains(t, result.Errors[4], "Actual: 1")
	assert.Contains(t, result.Errors[6], "has no ability Missing")
	assert.Contains(t, result.Errors[8], "no such group")
}

func TestJournalRecordsEveryPeer(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	result, err := Run(ctx, loadTestScenario(t, "ability_cast"), Options{Journal: st})
	require.NoError(t, err)

	peers, err := st.Peers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"peer-0", "peer-1"}, peers)
	for _, pr := range result.Peers {
		sum, seq, err := st.LastChecksum(ctx, pr.ID)
		require.NoError(t, err)
		assert.Equal(t, pr.Checksum, sum)
		assert.Equal(t, int64(3), seq)
	}
	seq, err := st.FirstDivergence(ctx, "peer-0", "peer-1")
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestJournalLocatesDivergence(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	opts := Options{Journal: st, IDs: transport.NewFixedGenerator("host", "client")}
	result, err := Run(ctx, loadTestScenario(t, "power_choice_desync"), opts)
	require.NoError(t, err)
	assert.False(t, result.Converged)

	seq, err := st.FirstDivergence(ctx, "host", "client")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	records, err := st.ReadOperations(ctx, "client")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].Error)
}

func TestOptionsDisableGroups(t *testing.T) {
	s := loadTestScenario(t, "tailoring_selected")
	zero := 0
	s.Assertions = []Assertion{
		{Type: AssertGroupState, Group: "tailoring", State: "disabled"},
		{Type: AssertSubmitted, Count: &zero},
		// Unhooked, both calls run locally on peer 0 only.
		{Type: AssertHostState, Probe: "pod.5.completed", Peer: &zero, Equals: "Regen"},
		{Type: AssertHostState, Probe: "pod.5.operation", Equals: ""},
	}
	result, err := Run(context.Background(), s, Options{Disabled: []string{"tailoring"}})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestDebugOffersDebugOnlyMethods(t *testing.T) {
	s := loadTestScenario(t, "tailoring_selected")
	two := 2
	s.Assertions = []Assertion{
		{Type: AssertSubmitted, Count: &two},
		{Type: AssertHostState, Probe: "pod.5.completed", Equals: "Regen"},
		{Type: AssertHostState, Probe: "pod.5.operation", Equals: ""},
		{Type: AssertConverged},
	}
	result, err := Run(context.Background(), s, Options{Debug: true})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestBrokenScenarios(t *testing.T) {
	base := func() *Scenario {
		return loadTestScenario(t, "verbs_companion")
	}
	tests := []struct {
		name   string
		modify func(*Scenario)
		want   string
	}{
		{"too many peers", func(s *Scenario) { s.Peers = 99 }, "at most"},
		{"step on missing peer", func(s *Scenario) { s.Steps[0].Peer = 5 }, "runs on peer 5 of 2"},
		{"host on missing peer", func(s *Scenario) { s.Hosts = []HostVariant{{Peer: 3}} }, "names peer 3 of 2"},
		{"missing pawn", func(s *Scenario) { s.Steps[0].Args["pawn"] = 9 }, "no pawn 9"},
		{"bad argument", func(s *Scenario) { s.Setup[0].Args["name"] = 4 }, `argument "name": want string`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.modify(s)
			_, err := Run(context.Background(), s, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProbeErrors(t *testing.T) {
	s := loadTestScenario(t, "verbs_companion")
	for _, path := range []string{"pawn", "pawn.x.power", "pawn.1.mood", "manager.1.enabled.7", "hire.days", "weather"} {
		s.Assertions = []Assertion{{Type: AssertHostState, Probe: path, Equals: 0}}
		result, err := Run(context.Background(), s, Options{})
		require.NoError(t, err)
		assert.False(t, result.Pass, path)
	}
}
