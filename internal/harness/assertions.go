package harness

import (
	"fmt"
	"strings"
)

// AssertionError describes one failed assertion.
type AssertionError struct {
	Type     string
	Peer     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Peer != "" {
		fmt.Fprintf(&buf, " on %s", e.Peer)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// evaluateAssertions checks every assertion and returns the failure messages.
func evaluateAssertions(sim *simulation, r *Result, assertions []Assertion) []string {
	var msgs []string
	for _, a := range assertions {
		for _, err := range evaluate(sim, r, a) {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func evaluate(sim *simulation, r *Result, a Assertion) []error {
	switch a.Type {
	case AssertConverged:
		if !r.Converged {
			return []error{&AssertionError{Type: a.Type, Expected: "same checksum and no failed operation on every peer", Actual: describePeers(r)}}
		}
		return nil
	case AssertDiverged:
		for _, pr := range r.Peers {
			if pr.Checksum != r.Peers[0].Checksum {
				return nil
			}
		}
		return []error{&AssertionError{Type: a.Type, Expected: "checksums differ between peers", Actual: describePeers(r)}}
	case AssertSubmitted:
		if r.Submitted != int64(*a.Count) {
			return []error{&AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d operations", *a.Count), Actual: fmt.Sprintf("%d operations", r.Submitted)}}
		}
		return nil
	}

	var errs []error
	for i, p := range sim.peers {
		if a.Peer != nil && *a.Peer != i {
			continue
		}
		if err := evaluatePeer(p, r.Peers[i], a); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Peer != nil && (*a.Peer < 0 || *a.Peer >= len(sim.peers)) {
		errs = append(errs, &AssertionError{Type: a.Type, Expected: fmt.Sprintf("peer %d", *a.Peer), Actual: fmt.Sprintf("%d peers", len(sim.peers))})
	}
	return errs
}

func evaluatePeer(p *peer, pr PeerResult, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Peer: p.id, Expected: expected, Actual: actual}
	}
	switch a.Type {
	case AssertApplied:
		if pr.Applied != *a.Count {
			return fail(fmt.Sprintf("%d applied", *a.Count), fmt.Sprintf("%d applied", pr.Applied))
		}
	case AssertFailed:
		if pr.Failed != *a.Count {
			return fail(fmt.Sprintf("%d failed", *a.Count), fmt.Sprintf("%d failed", pr.Failed))
		}
	case AssertGroupState:
		state, ok := pr.Groups[a.Group]
		if !ok {
			return fail(fmt.Sprintf("group %s %s", a.Group, a.State), "no such group")
		}
		if state != a.State {
			return fail(fmt.Sprintf("group %s %s", a.Group, a.State), state)
		}
	case AssertHostState:
		got, err := probe(p, a.Probe)
		if err != nil {
			return fail(fmt.Sprintf("%s = %v", a.Probe, a.Equals), err.Error())
		}
		if fmt.Sprint(got) != fmt.Sprint(a.Equals) {
			return fail(fmt.Sprintf("%s = %v", a.Probe, a.Equals), fmt.Sprint(got))
		}
	}
	return nil
}

func describePeers(r *Result) string {
	parts := make([]string, len(r.Peers))
	for i, pr := range r.Peers {
		sum := pr.Checksum
		if len(sum) > 12 {
			sum = sum[:12]
		}
		parts[i] = fmt.Sprintf("%s checksum=%s failed=%d", pr.ID, sum, pr.Failed)
	}
	return strings.Join(parts, "; ")
}
