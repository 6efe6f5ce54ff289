package syncreg

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/ir"
)

// Primitive type names understood without a worker.
const (
	TypeInt    = "int"
	TypeString = "string"
	TypeBool   = "bool"
)

// Writer accumulates the encoded state of one object. Worker encoders call
// its methods in a fixed order; the matching decoder reads them back in the
// same order. The first error sticks and later writes are ignored.
type Writer struct {
	reg   *Registry
	items ir.List
	err   error
}

// Int writes an integer.
func (w *Writer) Int(v int64) {
	w.put(ir.Int(v))
}

// String writes a string.
func (w *Writer) String(v string) {
	w.put(ir.String(v))
}

// Bool writes a boolean.
func (w *Writer) Bool(v bool) {
	w.put(ir.Bool(v))
}

// Ref writes a reference through the reference resolver.
func (w *Writer) Ref(v any) {
	if w.err != nil {
		return
	}
	k, err := w.reg.resolver.Encode(v)
	if err != nil {
		w.Fail(err)
		return
	}
	w.put(k.Value())
}

// Object writes v as typeName: a primitive, a nested worker, or a reference.
func (w *Writer) Object(typeName string, v any) {
	if w.err != nil {
		return
	}
	val, err := w.reg.encodeTyped(typeName, v)
	if err != nil {
		w.Fail(err)
		return
	}
	w.put(val)
}

// Fail records an encode error.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Err returns the first error recorded.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) put(v ir.Value) {
	if w.err != nil {
		return
	}
	w.items = append(w.items, v)
}

// Reader reads back state written by a Writer.
type Reader struct {
	reg   *Registry
	items ir.List
	pos   int
	err   error
}

// Int reads an integer.
func (r *Reader) Int() int64 {
	v := r.next()
	if r.err != nil {
		return 0
	}
	n, err := ir.AsInt(v)
	if err != nil {
		r.Fail(fmt.Errorf("item %d: %w", r.pos-1, err))
	}
	return n
}

// String reads a string.
func (r *Reader) String() string {
	v := r.next()
	if r.err != nil {
		return ""
	}
	s, err := ir.AsString(v)
	if err != nil {
		r.Fail(fmt.Errorf("item %d: %w", r.pos-1, err))
	}
	return s
}

// Bool reads a boolean.
func (r *Reader) Bool() bool {
	v := r.next()
	if r.err != nil {
		return false
	}
	b, err := ir.AsBool(v)
	if err != nil {
		r.Fail(fmt.Errorf("item %d: %w", r.pos-1, err))
	}
	return b
}

// Ref reads a reference and resolves it on this peer.
func (r *Reader) Ref() any {
	v := r.next()
	if r.err != nil {
		return nil
	}
	obj, err := r.reg.resolver.DecodeValue(v)
	if err != nil {
		r.Fail(err)
		return nil
	}
	return obj
}

// Object reads a value written by Writer.Object with the same type name.
func (r *Reader) Object(typeName string) any {
	v := r.next()
	if r.err != nil {
		return nil
	}
	obj, err := r.reg.decodeTyped(typeName, v)
	if err != nil {
		r.Fail(err)
		return nil
	}
	return obj
}

// Fail records a decode error.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Err returns the first error recorded.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) next() ir.Value {
	if r.err != nil {
		return nil
	}
	if r.pos >= len(r.items) {
		r.Fail(fmt.Errorf("read past end of encoded state (%d items)", len(r.items)))
		return nil
	}
	v := r.items[r.pos]
	r.pos++
	return v
}

// encodeTyped encodes v as typeName. Primitives are written as-is, types
// with a worker through the worker, anything else as a reference key.
func (reg *Registry) encodeTyped(typeName string, v any) (ir.Value, error) {
	switch typeName {
	case TypeInt:
		switch n := v.(type) {
		case int:
			return ir.Int(n), nil
		case int32:
			return ir.Int(n), nil
		case int64:
			return ir.Int(n), nil
		}
		return nil, fmt.Errorf("expected int, got %T", v)
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return ir.String(s), nil
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return ir.Bool(b), nil
	}

	if _, ok := reg.workers[typeName]; ok {
		if isNil(v) {
			return ir.Null{}, nil
		}
		return reg.runEncode(typeName, v)
	}

	k, err := reg.resolver.Encode(v)
	if err != nil {
		return nil, err
	}
	return k.Value(), nil
}

func (reg *Registry) decodeTyped(typeName string, v ir.Value) (any, error) {
	switch typeName {
	case TypeInt:
		n, err := ir.AsInt(v)
		if err != nil {
			return nil, err
		}
		return int(n), nil
	case TypeString:
		return ir.AsString(v)
	case TypeBool:
		return ir.AsBool(v)
	}

	if _, ok := reg.workers[typeName]; ok {
		if _, null := v.(ir.Null); null {
			return nil, nil
		}
		return reg.runDecode(typeName, v)
	}

	return reg.resolver.DecodeValue(v)
}

func (reg *Registry) runEncode(typeName string, v any) (ir.Value, error) {
	worker := reg.workers[typeName]
	w := &Writer{reg: reg, items: ir.List{}}
	if err := worker.Encode(w, v); err != nil {
		return nil, fmt.Errorf("encode %s: %w", typeName, err)
	}
	if w.err != nil {
		return nil, fmt.Errorf("encode %s: %w", typeName, w.err)
	}
	return w.items, nil
}

func (reg *Registry) runDecode(typeName string, v ir.Value) (any, error) {
	worker := reg.workers[typeName]
	items, ok := v.(ir.List)
	if !ok {
		return nil, fmt.Errorf("decode %s: expected encoded list, got %T", typeName, v)
	}
	r := &Reader{reg: reg, items: items}
	obj, err := worker.Decode(r)
	if err == nil {
		err = r.err
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typeName, err)
	}
	if r.pos != len(items) {
		return nil, fmt.Errorf("decode %s: %d unread items", typeName, len(items)-r.pos)
	}
	return obj, nil
}

// HasWorker reports whether typeName has a registered worker.
func (reg *Registry) HasWorker(typeName string) bool {
	_, ok := reg.workers[typeName]
	return ok
}

// EncodeOwner encodes an owner through its worker for the reference resolver.
func (reg *Registry) EncodeOwner(typeName string, v any) (ir.Value, error) {
	return reg.runEncode(typeName, v)
}

// DecodeOwner decodes an owner through its worker for the reference resolver.
func (reg *Registry) DecodeOwner(typeName string, payload ir.Value) (any, error) {
	return reg.runDecode(typeName, payload)
}
