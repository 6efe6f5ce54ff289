package harness

import "sort"

// TraceEvent is one operation as applied by one peer.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Origin string `json:"origin"`
	Method string `json:"method"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// PeerResult is the final state of one peer.
type PeerResult struct {
	ID       string            `json:"id"`
	Applied  int               `json:"applied"`
	Failed   int               `json:"failed"`
	Checksum string            `json:"checksum"`
	Groups   map[string]string `json:"groups"`
	Trace    []TraceEvent      `json:"trace"`
}

// GroupNames returns the peer's group names, sorted.
func (pr PeerResult) GroupNames() []string {
	names := make([]string, 0, len(pr.Groups))
	for name := range pr.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result is the outcome of a scenario.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Submitted counts operations sequenced by the transport.
	Submitted int64 `json:"submitted"`

	// Converged is true when every peer reached the same checksum without a
	// failed operation.
	Converged bool `json:"converged"`

	Peers  []PeerResult `json:"peers"`
	Errors []string     `json:"errors,omitempty"`
}

// AddError records a failed assertion.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
