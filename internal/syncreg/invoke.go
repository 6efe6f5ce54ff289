package syncreg

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/ir"
)

// Invoke captures a call on the initiating peer and hands it to the
// transport. Excluded arguments are not encoded. Without a sink the call is
// applied immediately, which is the single-peer mode.
func (r *Registry) Invoke(instance any, methodID string, args ...any) error {
	m, ok := r.methods[methodID]
	if !ok {
		return &RegistryError{Code: ErrCodeUnknownMethod, Member: methodID, Message: "method is not registered"}
	}
	if len(args) != len(m.method.Params) {
		return fmt.Errorf("%s: expected %d arguments, got %d", methodID, len(m.method.Params), len(args))
	}

	var target ir.Value = ir.Null{}
	if !m.opts.Static {
		if isNil(instance) {
			return fmt.Errorf("%s: instance method called without a target", methodID)
		}
		v, err := r.encodeTyped(m.typeName, instance)
		if err != nil {
			return fmt.Errorf("%s: encode target: %w", methodID, err)
		}
		target = v
	}

	encoded := make(ir.List, len(args))
	for i, param := range m.method.Params {
		if m.excluded[i] {
			encoded[i] = ir.Null{}
			continue
		}
		if isNil(args[i]) {
			encoded[i] = ir.Null{}
			continue
		}
		v, err := r.encodeTyped(param, args[i])
		if err != nil {
			return fmt.Errorf("%s: encode argument %d: %w", methodID, i, err)
		}
		encoded[i] = v
	}

	return r.submit(methodID, ir.Map{"target": target, "args": encoded})
}

func (r *Registry) submit(methodID string, payload ir.Map) error {
	data, err := ir.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", methodID, err)
	}

	if r.sink == nil {
		return r.InvokeReplicated(methodID, data)
	}

	r.logger.Debug().
		Str("method_id", methodID).
		Int("bytes", len(data)).
		Msg("operation submitted")
	return r.sink.Submit(methodID, data)
}

// InvokeReplicated applies one replicated operation on this peer. The
// transport calls it on every peer, in the same global order.
func (r *Registry) InvokeReplicated(methodID string, encodedArgs []byte) error {
	if f, ok := r.fields[methodID]; ok {
		return r.applyField(f, encodedArgs)
	}
	m, ok := r.methods[methodID]
	if !ok {
		return &RegistryError{Code: ErrCodeUnknownMethod, Member: methodID, Message: "method is not registered"}
	}

	payload, err := decodePayload(methodID, encodedArgs)
	if err != nil {
		return err
	}

	var instance any
	if !m.opts.Static {
		instance, err = r.decodeTyped(m.typeName, payload.Get("target"))
		if err != nil {
			return decodeFailed(m.typeName, fmt.Errorf("%s target: %w", methodID, err))
		}
		if isNil(instance) {
			return decodeFailed(m.typeName, fmt.Errorf("%s target resolved to nothing", methodID))
		}
	}

	list, ok := payload.Get("args").(ir.List)
	if !ok || len(list) != len(m.method.Params) {
		return decodeFailed(m.typeName, fmt.Errorf("%s: malformed argument list", methodID))
	}

	args := make([]any, len(list))
	for i, param := range m.method.Params {
		if m.excluded[i] {
			continue
		}
		if _, null := list[i].(ir.Null); null {
			continue
		}
		args[i], err = r.decodeTyped(param, list[i])
		if err != nil {
			return decodeFailed(param, fmt.Errorf("%s argument %d: %w", methodID, i, err))
		}
	}
	if m.opts.Recompute != nil {
		for i := range m.method.Params {
			if m.excluded[i] {
				args[i] = m.opts.Recompute(instance, args, i)
			}
		}
	}

	if _, err := m.method.Fn(instance, args); err != nil {
		return fmt.Errorf("%s: %w", methodID, err)
	}
	return nil
}

func decodePayload(methodID string, data []byte) (ir.Map, error) {
	v, err := ir.Unmarshal(data)
	if err != nil {
		return nil, decodeFailed("", fmt.Errorf("%s: %w", methodID, err))
	}
	payload, ok := v.(ir.Map)
	if !ok {
		return nil, decodeFailed("", fmt.Errorf("%s: payload is %T, not a map", methodID, v))
	}
	return payload, nil
}

// Offered reports whether a replicated method should be offered to the local
// player for instance. It never affects how an operation applies.
func (r *Registry) Offered(methodID string, instance any) bool {
	m, ok := r.methods[methodID]
	if !ok {
		return false
	}
	if m.opts.DebugOnly && !r.debug {
		return false
	}
	if m.opts.Scope == ir.ScopeSelected {
		return r.selection != nil && r.selection.IsSelected(instance)
	}
	return true
}

// Encode encodes v as typeName for the transport.
func (r *Registry) Encode(typeName string, v any) ([]byte, error) {
	val, err := r.encodeTyped(typeName, v)
	if err != nil {
		return nil, err
	}
	return ir.Marshal(val)
}

// Decode reverses Encode on this peer.
func (r *Registry) Decode(typeName string, data []byte) (any, error) {
	v, err := ir.Unmarshal(data)
	if err != nil {
		return nil, decodeFailed(typeName, err)
	}
	obj, err := r.decodeTyped(typeName, v)
	if err != nil {
		return nil, decodeFailed(typeName, err)
	}
	return obj, nil
}
