// Package integrations holds the reference integration groups.
//
// Each group is declared in groups.cue and wired by an activation function
// in its own file. Activations reach the host only through their bindings,
// so a group whose mod is missing or changed resolves to nothing and stays
// off without touching the others.
package integrations

import (
	_ "embed"
	"fmt"

	"github.com/roach88/mpcompat/internal/compat"
	"github.com/roach88/mpcompat/internal/compiler"
	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

//go:embed groups.cue
var groupsCUE []byte

// Foreign type names shared by several groups.
const (
	typePawn        = "Verse.Pawn"
	typeWindowStack = "Verse.WindowStack"
	typeWindow      = "Verse.Window"
)

var activations = map[string]func(*compat.Activation) error{
	"abilities": activateAbilities,
	"verbs":     activateVerbs,
	"tailoring": activateTailoring,
	"hiring":    activateHiring,
	"chooser":   activateChooser,
}

// Specs compiles the embedded group declarations.
func Specs() ([]ir.GroupSpec, error) {
	return compiler.CompileSource("groups.cue", groupsCUE)
}

// Groups returns every reference group ready to be added to a runtime.
func Groups() ([]compat.Group, error) {
	specs, err := Specs()
	if err != nil {
		return nil, err
	}
	groups := make([]compat.Group, 0, len(specs))
	for _, spec := range specs {
		activate, ok := activations[spec.Name]
		if !ok {
			return nil, fmt.Errorf("group %s has no activation", spec.Name)
		}
		groups = append(groups, compat.Group{Spec: spec, Activate: activate})
	}
	return groups, nil
}

// MustGroups is Groups for tests and the simulator. It panics on error.
func MustGroups() []compat.Group {
	groups, err := Groups()
	if err != nil {
		panic(err)
	}
	return groups
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}

func asEntity(v any) (host.Entity, error) {
	e, ok := v.(host.Entity)
	if !ok || e == nil {
		return nil, fmt.Errorf("expected an entity, got %T", v)
	}
	return e, nil
}

// findWindow returns the open window of typeName, or nil.
func findWindow(windows host.Field, typeName string) any {
	for _, w := range asList(windows.Get(nil)) {
		if host.TypeNameOf(w) == typeName {
			return w
		}
	}
	return nil
}
