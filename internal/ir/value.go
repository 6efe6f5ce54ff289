package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Value is a sealed interface over the values that may cross the wire.
// Only Null, String, Int, Bool, List and Map implement it.
type Value interface {
	wireValue()
}

// Null is an absent value. It is the encoding of a nil reference.
type Null struct{}

func (Null) wireValue() {}

// String is a string value.
type String string

func (String) wireValue() {}

// Int is an integer value. Always int64, never float.
type Int int64

func (Int) wireValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) wireValue() {}

// List is an ordered sequence of values.
type List []Value

func (List) wireValue() {}

// Map is a string-keyed set of values. Use SortedKeys for iteration.
type Map map[string]Value

func (Map) wireValue() {}

// SortedKeys returns the map keys in byte order.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value under key, or Null when missing.
func (m Map) Get(key string) Value {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// FromAny converts plain Go values (as produced by YAML or JSON decoders) to
// a Value. Floats are rejected unless they carry an integral value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not allowed on the wire: %v", val)
		}
		return Int(int64(val)), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not allowed on the wire: %s", val)
		}
		return Int(n), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(Map, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported wire type: %T", v)
	}
}

// Unmarshal decodes canonical bytes produced by Marshal back into a Value.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode wire value: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode wire value: trailing data")
	}
	return fromDecoded(raw)
}

func fromDecoded(v any) (Value, error) {
	if n, ok := v.(json.Number); ok {
		s := string(n)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not allowed on the wire: %s", s)
		}
	}
	return FromAny(v)
}

// AsInt extracts an Int from v.
func AsInt(v Value) (int64, error) {
	n, ok := v.(Int)
	if !ok {
		return 0, fmt.Errorf("expected int, got %T", v)
	}
	return int64(n), nil
}

// AsString extracts a String from v.
func AsString(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return string(s), nil
}

// AsBool extracts a Bool from v.
func AsBool(v Value) (bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return bool(b), nil
}
