package syncreg

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/mpcompat/internal/ir"
)

func (r *Registry) applyField(f *fieldEntry, data []byte) error {
	payload, err := decodePayload(f.id, data)
	if err != nil {
		return err
	}
	target, err := r.decodeTyped(f.typeName, payload.Get("target"))
	if err != nil {
		return decodeFailed(f.typeName, fmt.Errorf("%s target: %w", f.id, err))
	}
	if isNil(target) {
		return decodeFailed(f.typeName, fmt.Errorf("%s target resolved to nothing", f.id))
	}

	var value any
	if _, null := payload.Get("value").(ir.Null); !null {
		value, err = r.decodeTyped(f.field.Type, payload.Get("value"))
		if err != nil {
			return decodeFailed(f.field.Type, fmt.Errorf("%s value: %w", f.id, err))
		}
	}
	f.field.Set(target, value)
	return nil
}

// Watch is one capture window over watched fields. Fields are snapshotted
// when added; End turns every local change into a replicated set-field
// operation and restores the local value until that operation lands.
type Watch struct {
	reg     *Registry
	entries []watchEntry
}

type watchEntry struct {
	field  *fieldEntry
	target any
	before any
}

// Watch opens a capture window.
func (r *Registry) Watch() *Watch {
	return &Watch{reg: r}
}

// Field snapshots the named field of target.
func (w *Watch) Field(target any, typeName, name string) error {
	f, ok := w.reg.fields[FieldID(typeName, name)]
	if !ok {
		return &RegistryError{Code: ErrCodeUnknownMethod, Type: typeName, Member: name, Message: "field is not registered"}
	}
	w.entries = append(w.entries, watchEntry{field: f, target: target, before: f.field.Get(target)})
	return nil
}

// Len returns the number of watched fields.
func (w *Watch) Len() int {
	return len(w.entries)
}

// End closes the window and submits one operation per changed field, in the
// order the fields were added.
func (w *Watch) End() error {
	var errs []error
	for _, e := range w.entries {
		now := e.field.field.Get(e.target)
		if equalValues(now, e.before) {
			continue
		}
		e.field.field.Set(e.target, e.before)

		target, err := w.reg.encodeTyped(e.field.typeName, e.target)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: encode target: %w", e.field.id, err))
			continue
		}
		var value ir.Value = ir.Null{}
		if !isNil(now) {
			if value, err = w.reg.encodeTyped(e.field.field.Type, now); err != nil {
				errs = append(errs, fmt.Errorf("%s: encode value: %w", e.field.id, err))
				continue
			}
		}
		if err := w.reg.submit(e.field.id, ir.Map{"target": target, "value": value}); err != nil {
			errs = append(errs, err)
		}
	}
	w.entries = nil
	return errors.Join(errs...)
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() == vb.Type() && va.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}
