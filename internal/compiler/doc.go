// Package compiler turns CUE integration-group declarations into ir.GroupSpec.
//
// A declaration file holds one top-level "group" struct. Each field is a
// group: its phase, the external symbols it needs keyed by external name,
// and the replicated methods it registers once those symbols resolve.
//
//	group: abilities: {
//		phase: "late"
//		symbols: {
//			"VFECore.Abilities.Ability": {kind: "type"}
//			"VFECore.Abilities.Ability:CreateCastJob": {kind: "method", arity: 1}
//		}
//		methods: [{type: "VFECore.Abilities.Ability", name: "CreateCastJob", exclude: [0]}]
//	}
//
// Groups come back in declaration order. Validate checks a compiled group
// without touching the host.
package compiler
