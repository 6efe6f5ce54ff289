package ir

// Version constants for the wire format and runtime.
const (
	// WireVersion is the replicated argument encoding version.
	WireVersion = "1"

	// RuntimeVersion is the mpcompat runtime version.
	RuntimeVersion = "0.1.0"
)
