package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mpcompat/internal/ir"
)

// CompileGroup parses a CUE value into a GroupSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the group struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`group: abilities: { ... }`)
//	spec, err := CompileGroup(v.LookupPath(cue.ParsePath("group.abilities")))
//
// Symbols come back in declaration order; the binder sorts them itself.
func CompileGroup(v cue.Value) (*ir.GroupSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.GroupSpec{Phase: ir.PhaseImmediate}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = selectorName(labels[len(labels)-1])
	}

	phaseVal := v.LookupPath(cue.ParsePath("phase"))
	if phaseVal.Exists() {
		phase, err := phaseVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Phase = ir.Phase(phase)
	}

	var err error
	spec.Symbols, err = parseSymbols(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Symbols) == 0 {
		return nil, &CompileError{
			Field:   "symbols",
			Message: "at least one symbol is required",
			Pos:     v.Pos(),
		}
	}

	spec.Methods, err = parseMethods(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseSymbols extracts the symbols struct. Labels are the external names.
func parseSymbols(v cue.Value) ([]ir.SymbolSpec, error) {
	var symbols []ir.SymbolSpec

	symbolsVal := v.LookupPath(cue.ParsePath("symbols"))
	if !symbolsVal.Exists() {
		return symbols, nil
	}

	iter, err := symbolsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := selectorName(iter.Selector())
		symVal := iter.Value()

		sym := ir.SymbolSpec{Name: name, Arity: ir.ArityUnchecked}

		kindVal := symVal.LookupPath(cue.ParsePath("kind"))
		if !kindVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("symbols.%q.kind", name),
				Message: "symbol kind is required",
				Pos:     symVal.Pos(),
			}
		}
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		sym.Kind = ir.Kind(kind)

		if arityVal := symVal.LookupPath(cue.ParsePath("arity")); arityVal.Exists() {
			arity, err := arityVal.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			sym.Arity = int(arity)
		}

		if optVal := symVal.LookupPath(cue.ParsePath("optional")); optVal.Exists() {
			sym.Optional, err = optVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}

		if altVal := symVal.LookupPath(cue.ParsePath("alt")); altVal.Exists() {
			sym.Alt, err = stringList(altVal)
			if err != nil {
				return nil, err
			}
		}

		symbols = append(symbols, sym)
	}

	return symbols, nil
}

// parseMethods extracts the replicated method list.
func parseMethods(v cue.Value) ([]ir.MethodSpec, error) {
	var methods []ir.MethodSpec

	methodsVal := v.LookupPath(cue.ParsePath("methods"))
	if !methodsVal.Exists() {
		return methods, nil
	}

	iter, err := methodsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		mVal := iter.Value()

		typeName, err := requiredString(mVal, "type")
		if err != nil {
			return nil, err
		}
		name, err := requiredString(mVal, "name")
		if err != nil {
			return nil, err
		}
		m := ir.MethodSpec{Type: typeName, Name: name}

		if exVal := mVal.LookupPath(cue.ParsePath("exclude")); exVal.Exists() {
			exIter, err := exVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for exIter.Next() {
				idx, err := exIter.Value().Int64()
				if err != nil {
					return nil, formatCUEError(err)
				}
				m.Exclude = append(m.Exclude, int(idx))
			}
		}

		if scopeVal := mVal.LookupPath(cue.ParsePath("scope")); scopeVal.Exists() {
			scope, err := scopeVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			m.Scope = ir.Scope(scope)
		}

		if debugVal := mVal.LookupPath(cue.ParsePath("debug")); debugVal.Exists() {
			m.DebugOnly, err = debugVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}

		methods = append(methods, m)
	}

	return methods, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   "methods." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// selectorName returns a label without CUE quoting. External names such as
// "Verse.Pawn:Kill" are quoted string labels.
func selectorName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
