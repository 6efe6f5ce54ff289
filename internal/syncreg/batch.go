package syncreg

import (
	"errors"
	"fmt"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

// Batch stages the registrations of one integration group. Commit applies all
// of them or none.
type Batch struct {
	reg     *Registry
	group   string
	workers []Worker
	methods []*methodEntry
	fields  []*fieldEntry
	errs    []error
}

// Stage starts a batch for group.
func (r *Registry) Stage(group string) *Batch {
	return &Batch{reg: r, group: group}
}

// Register stages a worker.
func (b *Batch) Register(w Worker) {
	if w.Type == "" || w.Encode == nil || w.Decode == nil {
		b.errs = append(b.errs, fmt.Errorf("worker for %q requires Type, Encode and Decode", w.Type))
		return
	}
	b.workers = append(b.workers, w)
}

// RegisterMethod stages a replicated method.
func (b *Batch) RegisterMethod(typeName, name string, m host.Method, opts MethodOptions) {
	if m.Fn == nil {
		b.errs = append(b.errs, fmt.Errorf("method %s has no body", ir.MethodID(typeName, name)))
		return
	}
	if !ir.ValidScopes[opts.Scope] {
		b.errs = append(b.errs, fmt.Errorf("method %s: unknown scope %q", ir.MethodID(typeName, name), opts.Scope))
		return
	}
	excluded := make(map[int]bool, len(opts.Exclude))
	for _, idx := range opts.Exclude {
		if idx < 0 || idx >= len(m.Params) {
			b.errs = append(b.errs, fmt.Errorf("method %s: excluded index %d out of range (%d params)",
				ir.MethodID(typeName, name), idx, len(m.Params)))
			return
		}
		excluded[idx] = true
	}
	b.methods = append(b.methods, &methodEntry{
		id:       ir.MethodID(typeName, name),
		typeName: typeName,
		name:     name,
		method:   m,
		opts:     opts,
		excluded: excluded,
	})
}

// RegisterField stages a watchable field.
func (b *Batch) RegisterField(typeName, name string, f host.Field) {
	if f.Get == nil || f.Set == nil {
		b.errs = append(b.errs, fmt.Errorf("field %s.%s requires Get and Set", typeName, name))
		return
	}
	b.fields = append(b.fields, &fieldEntry{
		id:       FieldID(typeName, name),
		typeName: typeName,
		name:     name,
		field:    f,
	})
}

// Len returns the number of staged registrations.
func (b *Batch) Len() int {
	return len(b.workers) + len(b.methods) + len(b.fields)
}

// Commit validates the batch against the registry and applies it atomically.
func (b *Batch) Commit() error {
	r := b.reg
	if err := b.check(); err != nil {
		r.logger.Warn().
			Str("group", b.group).
			Err(err).
			Msg("registrations rejected")
		return err
	}

	for _, w := range b.workers {
		r.workers[w.Type] = w
	}
	for _, m := range b.methods {
		r.methods[m.id] = m
	}
	for _, f := range b.fields {
		r.fields[f.id] = f
	}

	if b.Len() > 0 {
		r.logger.Debug().
			Str("group", b.group).
			Int("workers", len(b.workers)).
			Int("methods", len(b.methods)).
			Int("fields", len(b.fields)).
			Msg("registrations committed")
	}
	return nil
}

func (b *Batch) check() error {
	r := b.reg
	if len(b.errs) > 0 {
		return errors.Join(b.errs...)
	}
	if r.sealed && b.Len() > 0 {
		switch {
		case len(b.workers) > 0:
			return sealed(b.workers[0].Type, "")
		case len(b.methods) > 0:
			return sealed(b.methods[0].typeName, b.methods[0].name)
		default:
			return sealed(b.fields[0].typeName, b.fields[0].name)
		}
	}

	seenTypes := make(map[string]bool)
	for _, w := range b.workers {
		if _, exists := r.workers[w.Type]; exists || seenTypes[w.Type] {
			return duplicate(w.Type, "", "sync worker")
		}
		seenTypes[w.Type] = true
	}

	seenIDs := make(map[string]bool)
	for _, m := range b.methods {
		if r.hasOperation(m.id) || seenIDs[m.id] {
			return duplicate(m.typeName, m.name, "sync method")
		}
		seenIDs[m.id] = true
	}
	for _, f := range b.fields {
		if r.hasOperation(f.id) || seenIDs[f.id] {
			return duplicate(f.typeName, f.name, "sync field")
		}
		seenIDs[f.id] = true
	}
	return nil
}

func (r *Registry) hasOperation(id string) bool {
	if _, ok := r.methods[id]; ok {
		return true
	}
	_, ok := r.fields[id]
	return ok
}
