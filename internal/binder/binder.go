// Package binder resolves the external symbols declared by integration groups
// against the host namespace.
//
// Resolution never aborts: every symbol ends in a typed terminal state
// (resolved, not found, wrong arity, wrong type). A group with any required
// symbol unresolved is skipped as a whole, logged once with its name, and does
// not affect other groups.
package binder

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

// Binder resolves symbols against one host namespace.
type Binder struct {
	ns     host.Namespace
	logger zerolog.Logger
}

// New creates a binder for ns.
func New(ns host.Namespace, logger zerolog.Logger) *Binder {
	return &Binder{
		ns:     ns,
		logger: logger.With().Str("component", "binder").Logger(),
	}
}

// GroupResult is the outcome of resolving one group.
type GroupResult struct {
	Group    ir.GroupSpec
	Bindings *Bindings
	Err      error // nil when every required symbol resolved
}

// OK reports whether the group may activate.
func (r GroupResult) OK() bool {
	return r.Err == nil
}

// ResolveSymbol resolves one symbol, trying the primary name and then each
// fallback in order. The first candidate that matches kind, arity and handle
// type wins. When none match, the failure of the most informative candidate
// is reported: a type mismatch beats a missing name.
func (b *Binder) ResolveSymbol(spec ir.SymbolSpec) Binding {
	candidates := append([]string{spec.Name}, spec.Alt...)

	var failure *Binding
	for _, name := range candidates {
		binding := b.resolveName(spec, name)
		if binding.Status == StatusResolved {
			binding.Name = spec.Name
			return binding
		}
		if failure == nil || (failure.Status == StatusNotFound && binding.Status != StatusNotFound) {
			bcopy := binding
			failure = &bcopy
		}
	}

	failure.Name = spec.Name
	failure.Handle = nil
	return *failure
}

func (b *Binder) resolveName(spec ir.SymbolSpec, name string) Binding {
	binding := Binding{Name: spec.Name, Resolved: name, Kind: spec.Kind}

	sym, ok := b.ns.Lookup(name)
	if !ok || sym.Handle == nil {
		binding.Status = StatusNotFound
		binding.Err = &ResolveError{
			Code:    ErrCodeSymbolNotFound,
			Status:  StatusNotFound,
			Symbol:  name,
			Message: "symbol not found in host namespace",
		}
		return binding
	}

	if sym.Kind != spec.Kind {
		binding.Status = StatusWrongType
		binding.Err = &ResolveError{
			Code:    ErrCodeTypeMismatch,
			Status:  StatusWrongType,
			Symbol:  name,
			Message: fmt.Sprintf("expected %s, found %s", spec.Kind, sym.Kind),
		}
		return binding
	}

	if !handleMatchesKind(sym.Handle, spec.Kind) {
		binding.Status = StatusWrongType
		binding.Err = &ResolveError{
			Code:    ErrCodeTypeMismatch,
			Status:  StatusWrongType,
			Symbol:  name,
			Message: fmt.Sprintf("%s handle has unexpected type %T", spec.Kind, sym.Handle),
		}
		return binding
	}

	if checksArity(spec) && sym.Arity != spec.Arity {
		binding.Status = StatusWrongArity
		binding.Err = &ResolveError{
			Code:    ErrCodeTypeMismatch,
			Status:  StatusWrongArity,
			Symbol:  name,
			Message: fmt.Sprintf("expected arity %d, found %d", spec.Arity, sym.Arity),
		}
		return binding
	}

	binding.Status = StatusResolved
	binding.Handle = sym.Handle
	return binding
}

func checksArity(spec ir.SymbolSpec) bool {
	if spec.Arity == ir.ArityUnchecked {
		return false
	}
	return spec.Kind == ir.KindMethod || spec.Kind == ir.KindConstructor
}

func handleMatchesKind(handle any, kind ir.Kind) bool {
	switch kind {
	case ir.KindMethod:
		_, ok := handle.(host.Method)
		return ok
	case ir.KindField:
		_, ok := handle.(host.Field)
		return ok
	case ir.KindType:
		_, ok := handle.(host.TypeInfo)
		return ok
	case ir.KindConstructor:
		_, ok := handle.(host.Constructor)
		return ok
	default:
		return false
	}
}

// ResolveGroup resolves every symbol of a group in sorted name order.
// Optional symbols that fail keep their nil handle and do not fail the group.
// The returned error joins the failures of all required symbols.
func (b *Binder) ResolveGroup(group ir.GroupSpec) (*Bindings, error) {
	specs := make([]ir.SymbolSpec, len(group.Symbols))
	copy(specs, group.Symbols)
	sort.SliceStable(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	bindings := newBindings(group.Name)
	var errs []error
	for _, spec := range specs {
		binding := b.ResolveSymbol(spec)
		if binding.Err != nil {
			var re *ResolveError
			if errors.As(binding.Err, &re) {
				re.Group = group.Name
			}
			if !spec.Optional {
				errs = append(errs, binding.Err)
			}
		}
		bindings.add(binding)
	}

	return bindings, errors.Join(errs...)
}

// ResolvePhase resolves every group declared for phase, in the given order.
// Each failed group is logged exactly once and reported in its result; other
// groups are unaffected.
func (b *Binder) ResolvePhase(phase ir.Phase, groups []ir.GroupSpec) []GroupResult {
	var results []GroupResult
	for _, group := range groups {
		if groupPhase(group) != phase {
			continue
		}

		bindings, err := b.ResolveGroup(group)
		if err != nil {
			b.logger.Error().
				Str("group", group.Name).
				Str("phase", string(phase)).
				Str("missing", strings.Join(failedSymbols(bindings), ",")).
				Err(err).
				Str("event", "group_unresolved").
				Msg("integration group skipped: symbols did not resolve")
		} else {
			b.logger.Debug().
				Str("group", group.Name).
				Str("phase", string(phase)).
				Int("symbols", bindings.Len()).
				Msg("integration group resolved")
		}

		results = append(results, GroupResult{Group: group, Bindings: bindings, Err: err})
	}
	return results
}

func groupPhase(g ir.GroupSpec) ir.Phase {
	if g.Phase == "" {
		return ir.PhaseImmediate
	}
	return g.Phase
}

func failedSymbols(b *Bindings) []string {
	var names []string
	for _, binding := range b.All() {
		if binding.Status != StatusResolved {
			names = append(names, binding.Name)
		}
	}
	return names
}
