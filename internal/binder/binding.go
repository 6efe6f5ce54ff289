package binder

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

// Status is the terminal state of one symbol resolution.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusNotFound   Status = "not_found"
	StatusWrongArity Status = "wrong_arity"
	StatusWrongType  Status = "wrong_type"
)

// Binding is one resolved (or unresolvable) external symbol.
// A Binding never changes after resolution. A nil Handle is a valid terminal
// state meaning the feature is unavailable.
type Binding struct {
	Name     string // requested name
	Resolved string // name that matched, may be a fallback
	Kind     ir.Kind
	Handle   any
	Status   Status
	Err      error
}

// Available reports whether the binding has a usable handle.
func (b Binding) Available() bool {
	return b.Status == StatusResolved && b.Handle != nil
}

// Bindings is the set of bindings of one group, keyed by requested name.
type Bindings struct {
	group  string
	byName map[string]Binding
	order  []string
}

func newBindings(group string) *Bindings {
	return &Bindings{group: group, byName: make(map[string]Binding)}
}

func (b *Bindings) add(binding Binding) {
	if _, exists := b.byName[binding.Name]; !exists {
		b.order = append(b.order, binding.Name)
	}
	b.byName[binding.Name] = binding
}

// Group returns the owning group name.
func (b *Bindings) Group() string {
	return b.group
}

// Get returns the binding for a requested name.
func (b *Bindings) Get(name string) (Binding, bool) {
	binding, ok := b.byName[name]
	return binding, ok
}

// All returns bindings in resolution order.
func (b *Bindings) All() []Binding {
	out := make([]Binding, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.byName[name])
	}
	return out
}

// Len returns the number of bindings.
func (b *Bindings) Len() int {
	return len(b.order)
}

func lookup[T any](b *Bindings, name string, kind ir.Kind) (T, error) {
	var zero T
	binding, ok := b.byName[name]
	if !ok {
		return zero, fmt.Errorf("symbol %q was not declared by group %s", name, b.group)
	}
	if binding.Kind != kind {
		return zero, fmt.Errorf("symbol %q is a %s, not a %s", name, binding.Kind, kind)
	}
	if !binding.Available() {
		return zero, fmt.Errorf("symbol %q is unavailable", name)
	}
	h, ok := binding.Handle.(T)
	if !ok {
		return zero, fmt.Errorf("symbol %q has handle %T", name, binding.Handle)
	}
	return h, nil
}

// Method returns the typed method handle bound under name.
func Method(b *Bindings, name string) (host.Method, error) {
	return lookup[host.Method](b, name, ir.KindMethod)
}

// Field returns the typed field handle bound under name.
func Field(b *Bindings, name string) (host.Field, error) {
	return lookup[host.Field](b, name, ir.KindField)
}

// Type returns the type handle bound under name.
func Type(b *Bindings, name string) (host.TypeInfo, error) {
	return lookup[host.TypeInfo](b, name, ir.KindType)
}

// Constructor returns the constructor handle bound under name.
func Constructor(b *Bindings, name string) (host.Constructor, error) {
	return lookup[host.Constructor](b, name, ir.KindConstructor)
}
