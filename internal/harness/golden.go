package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the stable part of a result: what was applied where, without
// checksums or error text.
type Snapshot struct {
	Scenario  string         `json:"scenario"`
	Submitted int64          `json:"submitted"`
	Converged bool           `json:"converged"`
	Peers     []PeerSnapshot `json:"peers"`
}

// PeerSnapshot is the stable part of one peer's result.
type PeerSnapshot struct {
	Peer       string            `json:"peer"`
	Groups     map[string]string `json:"groups"`
	Operations []OpSnapshot      `json:"operations"`
}

// OpSnapshot is one applied operation.
type OpSnapshot struct {
	Seq    int64  `json:"seq"`
	Origin string `json:"origin"`
	Method string `json:"method"`
	Status string `json:"status"`
}

// NewSnapshot builds the snapshot of r.
func NewSnapshot(r *Result) Snapshot {
	s := Snapshot{
		Scenario:  r.Scenario,
		Submitted: r.Submitted,
		Converged: r.Converged,
		Peers:     make([]PeerSnapshot, len(r.Peers)),
	}
	for i, pr := range r.Peers {
		ops := make([]OpSnapshot, len(pr.Trace))
		for j, ev := range pr.Trace {
			ops[j] = OpSnapshot{Seq: ev.Seq, Origin: ev.Origin, Method: ev.Method, Status: ev.Status}
		}
		s.Peers[i] = PeerSnapshot{Peer: pr.ID, Groups: pr.Groups, Operations: ops}
	}
	return s
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
// Map keys are sorted, so equal snapshots render identically.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// AssertGolden compares the snapshot of r with testdata/golden/<scenario>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, r *Result) {
	t.Helper()

	data, err := NewSnapshot(r).Marshal()
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, r.Scenario, data)
}
