package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"nil", nil, "null"},
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty list", List{}, "[]"},
		{"empty map", Map{}, "{}"},
		{"list", List{Int(1), String("a"), Null{}}, `[1,"a",null]`},
		{"no html escaping", String("<a&b>"), `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortsKeys(t *testing.T) {
	m := Map{
		"zebra": Int(1),
		"alpha": Map{"b": Int(1), "a": Int(2)},
		"beta":  Int(3),
	}

	result, err := Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":3,"zebra":1}`, string(result))
}

func TestMarshalNFC(t *testing.T) {
	// "é" as e + combining acute (NFD) and as a single code point (NFC).
	decomposed := String("e\u0301")
	composed := String("\u00e9")

	a, err := Marshal(decomposed)
	require.NoError(t, err)
	b, err := Marshal(composed)
	require.NoError(t, err)

	assert.Equal(t, b, a, "NFD and NFC input must encode identically")
}

func TestUnmarshalRoundTrip(t *testing.T) {
	original := Map{
		"k":     String("owner_index"),
		"index": Int(2),
		"owner": Map{"k": String("direct"), "id": Int(17)},
		"tags":  List{String("Frost"), Bool(true), Null{}},
	}

	data, err := Marshal(original)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	again, err := Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	_, err := Unmarshal([]byte(`{"x":1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")

	_, err = Unmarshal([]byte(`1e3`))
	require.Error(t, err)
}

func TestUnmarshalRejectsTrailingData(t *testing.T) {
	_, err := Unmarshal([]byte(`1 2`))
	require.Error(t, err)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"name":  "Frost",
		"count": 3,
		"ok":    true,
		"list":  []any{1, "x"},
		"none":  nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Map{
		"name":  String("Frost"),
		"count": Int(3),
		"ok":    Bool(true),
		"list":  List{Int(1), String("x")},
		"none":  Null{},
	}, v)

	_, err = FromAny(2.5)
	require.Error(t, err)

	whole, err := FromAny(float64(4))
	require.NoError(t, err)
	assert.Equal(t, Int(4), whole)
}

func TestMapGet(t *testing.T) {
	m := Map{"a": Int(1)}
	assert.Equal(t, Int(1), m.Get("a"))
	assert.Equal(t, Null{}, m.Get("missing"))
}
