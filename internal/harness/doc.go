// Package harness runs multi-peer simulations of the reference integrations.
//
// A scenario builds one simulated host per peer, installs the compatibility
// runtime on each, and connects them through a loopback transport. Player
// actions taken on one peer become replicated operations that every peer
// applies in sequence order. After the steps, the harness settles all peers
// and checks the assertions.
//
// # Scenario Format
//
//	name: ability_cast
//	description: "What this scenario shows"
//	peers: 2
//	debug: false
//	disabled: [verbs]
//	hosts:
//	  - peer: 1
//	    without: [MVCF.VerbManager]
//	    renamed: {"VFECore.Abilities.Ability:Init": "VFECore.Abilities.Ability:Initialize"}
//	setup:
//	  - do: add_pawn
//	    args: {id: 1, name: Ada, weapons: [Rifle]}
//	  - do: give_ability
//	    peers: [0]
//	    args: {pawn: 1, ability: Frost}
//	steps:
//	  - do: cast
//	    peer: 0
//	    args: {pawn: 1, ability: Frost, target: 2}
//	  - do: settle
//	assertions:
//	  - type: converged
//	  - type: host_state
//	    probe: ability.1.Frost.casts
//	    equals: 1
//
// # Assertion Types
//
//   - converged: every peer has the same checksum and no failed operation
//   - diverged: at least two peers disagree on the checksum
//   - submitted: the transport sequenced exactly count operations
//   - applied, failed: per-peer operation counts
//   - group_state: the load state of a group
//   - host_state: a probed piece of host state, compared by printed form
//
// Peer-level assertions check every peer unless peer is set.
//
// # Golden Traces
//
// Peer ids default to peer-0, peer-1, ..., so the applied operations of a
// scenario are reproducible. AssertGolden compares them with
// testdata/golden/<name>.golden.
package harness
