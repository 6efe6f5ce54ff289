package binder

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

type mapNamespace map[string]host.Symbol

func (m mapNamespace) Lookup(name string) (host.Symbol, bool) {
	s, ok := m[name]
	return s, ok
}

func method(name string, arity int) host.Symbol {
	return host.Symbol{
		Name:  name,
		Kind:  ir.KindMethod,
		Arity: arity,
		Handle: host.Method{Fn: func(instance any, args []any) (any, error) {
			return name, nil
		}},
	}
}

func testNamespace() mapNamespace {
	return mapNamespace{
		"Ability":               {Name: "Ability", Kind: ir.KindType, Handle: host.TypeInfo{Name: "Ability"}},
		"Ability:Cast":          method("Ability:Cast", 1),
		"Ability:Initialize":    method("Ability:Initialize", 0),
		"Ability:autoCast":      {Name: "Ability:autoCast", Kind: ir.KindField, Handle: host.Field{Type: "bool"}},
		"Ability:cooldown":      {Name: "Ability:cooldown", Kind: ir.KindMethod, Handle: "not a method"},
		"Ability:Ctor":          {Name: "Ability:Ctor", Kind: ir.KindConstructor, Arity: 2, Handle: host.Constructor(func([]any) (any, error) { return "ability", nil })},
		"Hiring:Hire":           method("Hiring:Hire", 2),
		"Tailoring:ApplyDesign": method("Tailoring:ApplyDesign", 3),
	}
}

func TestResolveSymbolStatuses(t *testing.T) {
	b := New(testNamespace(), zerolog.Nop())

	tests := []struct {
		name   string
		spec   ir.SymbolSpec
		status Status
		code   string
	}{
		{"resolved method", ir.SymbolSpec{Name: "Ability:Cast", Kind: ir.KindMethod, Arity: 1}, StatusResolved, ""},
		{"resolved type", ir.SymbolSpec{Name: "Ability", Kind: ir.KindType, Arity: ir.ArityUnchecked}, StatusResolved, ""},
		{"unchecked arity", ir.SymbolSpec{Name: "Ability:Cast", Kind: ir.KindMethod, Arity: ir.ArityUnchecked}, StatusResolved, ""},
		{"not found", ir.SymbolSpec{Name: "Ability:Missing", Kind: ir.KindMethod}, StatusNotFound, ErrCodeSymbolNotFound},
		{"wrong arity", ir.SymbolSpec{Name: "Ability:Cast", Kind: ir.KindMethod, Arity: 3}, StatusWrongArity, ErrCodeTypeMismatch},
		{"wrong constructor arity", ir.SymbolSpec{Name: "Ability:Ctor", Kind: ir.KindConstructor, Arity: 1}, StatusWrongArity, ErrCodeTypeMismatch},
		{"wrong kind", ir.SymbolSpec{Name: "Ability:autoCast", Kind: ir.KindMethod, Arity: ir.ArityUnchecked}, StatusWrongType, ErrCodeTypeMismatch},
		{"wrong handle type", ir.SymbolSpec{Name: "Ability:cooldown", Kind: ir.KindMethod, Arity: ir.ArityUnchecked}, StatusWrongType, ErrCodeTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binding := b.ResolveSymbol(tt.spec)
			assert.Equal(t, tt.status, binding.Status)
			assert.Equal(t, tt.spec.Name, binding.Name)

			if tt.code == "" {
				require.NoError(t, binding.Err)
				assert.True(t, binding.Available())
				return
			}
			require.Error(t, binding.Err)
			assert.Nil(t, binding.Handle, "failed binding keeps a nil handle")
			assert.False(t, binding.Available())
			var re *ResolveError
			require.ErrorAs(t, binding.Err, &re)
			assert.Equal(t, tt.code, re.Code)
		})
	}
}

func TestResolveSymbolFallbackNames(t *testing.T) {
	b := New(testNamespace(), zerolog.Nop())

	binding := b.ResolveSymbol(ir.SymbolSpec{
		Name:  "Ability:Init",
		Kind:  ir.KindMethod,
		Arity: 0,
		Alt:   []string{"Ability:Setup", "Ability:Initialize"},
	})

	require.NoError(t, binding.Err)
	assert.Equal(t, "Ability:Init", binding.Name)
	assert.Equal(t, "Ability:Initialize", binding.Resolved)
}

func TestResolveSymbolReportsMostInformativeFailure(t *testing.T) {
	b := New(testNamespace(), zerolog.Nop())

	binding := b.ResolveSymbol(ir.SymbolSpec{
		Name:  "Ability:Gone",
		Kind:  ir.KindMethod,
		Arity: 2,
		Alt:   []string{"Ability:Cast"},
	})

	assert.Equal(t, StatusWrongArity, binding.Status)
	assert.True(t, IsTypeMismatch(binding.Err))
}

func TestResolveGroupOptionalSymbols(t *testing.T) {
	b := New(testNamespace(), zerolog.Nop())

	bindings, err := b.ResolveGroup(ir.GroupSpec{
		Name: "abilities",
		Symbols: []ir.SymbolSpec{
			{Name: "Ability:Cast", Kind: ir.KindMethod, Arity: 1},
			{Name: "Ability:Recharge", Kind: ir.KindMethod, Arity: ir.ArityUnchecked, Optional: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "abilities", bindings.Group())
	assert.Equal(t, 2, bindings.Len())
	names := []string{}
	for _, binding := range bindings.All() {
		names = append(names, binding.Name)
	}
	assert.Equal(t, []string{"Ability:Cast", "Ability:Recharge"}, names)

	recharge, ok := bindings.Get("Ability:Recharge")
	require.True(t, ok)
	assert.Nil(t, recharge.Handle)
	assert.Equal(t, StatusNotFound, recharge.Status)

	_, err = Method(bindings, "Ability:Recharge")
	assert.Error(t, err, "unavailable optional symbol cannot be called")

	cast, err := Method(bindings, "Ability:Cast")
	require.NoError(t, err)
	out, err := cast.Call(nil, "target")
	require.NoError(t, err)
	assert.Equal(t, "Ability:Cast", out)
}

func TestResolveGroupJoinsRequiredFailures(t *testing.T) {
	b := New(testNamespace(), zerolog.Nop())

	_, err := b.ResolveGroup(ir.GroupSpec{
		Name: "broken",
		Symbols: []ir.SymbolSpec{
			{Name: "X:One", Kind: ir.KindMethod},
			{Name: "X:Two", Kind: ir.KindField},
		},
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "X:One")
	assert.Contains(t, err.Error(), "X:Two")
	assert.Contains(t, err.Error(), "group=broken")
}

func TestTypedAccessors(t *testing.T) {
	b := New(testNamespace(), zerolog.Nop())
	bindings, err := b.ResolveGroup(ir.GroupSpec{
		Name: "all",
		Symbols: []ir.SymbolSpec{
			{Name: "Ability", Kind: ir.KindType, Arity: ir.ArityUnchecked},
			{Name: "Ability:autoCast", Kind: ir.KindField, Arity: ir.ArityUnchecked},
			{Name: "Ability:Ctor", Kind: ir.KindConstructor, Arity: 2},
		},
	})
	require.NoError(t, err)

	typ, err := Type(bindings, "Ability")
	require.NoError(t, err)
	assert.Equal(t, "Ability", typ.Name)

	field, err := Field(bindings, "Ability:autoCast")
	require.NoError(t, err)
	assert.Equal(t, "bool", field.Type)

	ctor, err := Constructor(bindings, "Ability:Ctor")
	require.NoError(t, err)
	obj, err := ctor(nil)
	require.NoError(t, err)
	assert.Equal(t, "ability", obj)

	_, err = Method(bindings, "Ability")
	assert.Error(t, err, "kind mismatch on access")

	_, err = Method(bindings, "Undeclared")
	assert.Error(t, err)
}

func TestResolvePhaseIsolatesFailedGroup(t *testing.T) {
	var buf bytes.Buffer
	b := New(testNamespace(), zerolog.New(&buf))

	groups := []ir.GroupSpec{
		{Name: "abilities", Phase: ir.PhaseImmediate, Symbols: []ir.SymbolSpec{
			{Name: "Ability:Cast", Kind: ir.KindMethod, Arity: 1},
		}},
		{Name: "missing-mod", Phase: ir.PhaseImmediate, Symbols: []ir.SymbolSpec{
			{Name: "Gone:A", Kind: ir.KindMethod},
			{Name: "Gone:B", Kind: ir.KindMethod},
			{Name: "Gone:C", Kind: ir.KindType},
		}},
		{Name: "hiring", Symbols: []ir.SymbolSpec{
			{Name: "Hiring:Hire", Kind: ir.KindMethod, Arity: 2},
		}},
		{Name: "tailoring", Phase: ir.PhaseLate, Symbols: []ir.SymbolSpec{
			{Name: "Tailoring:ApplyDesign", Kind: ir.KindMethod, Arity: 3},
		}},
	}

	results := b.ResolvePhase(ir.PhaseImmediate, groups)
	require.Len(t, results, 3, "late group is not part of the immediate phase")

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())

	var errorLines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["level"] == "error" {
			errorLines = append(errorLines, entry)
		}
	}
	require.Len(t, errorLines, 1, "a failed group is logged exactly once")
	assert.Equal(t, "missing-mod", errorLines[0]["group"])
	assert.Equal(t, "Gone:A,Gone:B,Gone:C", errorLines[0]["missing"])

	late := b.ResolvePhase(ir.PhaseLate, groups)
	require.Len(t, late, 1)
	assert.Equal(t, "tailoring", late[0].Group.Name)
	assert.True(t, late[0].OK())
}
