package simhost

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcompat/internal/hook"
	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

func TestNamespaceLookup(t *testing.T) {
	w := New(zerolog.Nop())
	ns := w.Namespace()

	sym, ok := ns.Lookup(TypeAbility + ":CreateCastJob")
	require.True(t, ok)
	assert.Equal(t, ir.KindMethod, sym.Kind)
	assert.Equal(t, 1, sym.Arity)
	m, ok := sym.Handle.(host.Method)
	require.True(t, ok)
	assert.Equal(t, []string{TypePawn}, m.Params)

	sym, ok = ns.Lookup(TypeOperation + ":.ctor")
	require.True(t, ok)
	assert.Equal(t, ir.KindConstructor, sym.Kind)
	assert.Equal(t, 2, sym.Arity)

	_, ok = ns.Lookup("Nope.Missing")
	assert.False(t, ok)
	assert.Contains(t, w.Symbols(), TypeHireDialog+":daysAmount")
}

func TestWithoutSymbolsAndRenamed(t *testing.T) {
	w := New(zerolog.Nop(),
		WithoutSymbols(TypePod, TypePod+":StartOperation"),
		WithRenamed(TypeAbility+":Init", TypeAbility+":Initialize"),
	)
	ns := w.Namespace()

	_, ok := ns.Lookup(TypePod)
	assert.False(t, ok)
	_, ok = ns.Lookup(TypeAbility + ":Init")
	assert.False(t, ok)
	sym, ok := ns.Lookup(TypeAbility + ":Initialize")
	require.True(t, ok)
	assert.Equal(t, TypeAbility+":Initialize", sym.Name)

	assert.True(t, w.Hooks().Declared(TypeAbility+":Initialize"), "seams follow the exposed name")
	_, err := w.Call(TypePod+":StartOperation", w.AddPod(9), nil)
	assert.Error(t, err)
}

func TestCallRunsThroughSeam(t *testing.T) {
	w := New(zerolog.Nop())
	p := w.AddPawn(1, "Ada")
	a := p.Abilities().Give("Frost")

	var seen []any
	require.NoError(t, w.Hooks().Install(hook.Hook{
		ID: "spy", Target: TypeAbility + ":CreateCastJob", Mode: hook.ModeBefore,
		Before: func(c *hook.Call) bool {
			seen = append(seen, c.Instance)
			return true
		},
	}))

	require.NoError(t, w.UseAbility(a, p, false))
	assert.Equal(t, 1, a.Casts)
	assert.Same(t, p, a.LastTarget)
	assert.Equal(t, []any{a}, seen, "nested host call goes through its own seam")

	require.NoError(t, w.UseAbility(a, nil, true))
	assert.True(t, a.AutoCast)
	assert.Equal(t, 1, a.Casts)
}

func TestEntityAndDespawn(t *testing.T) {
	w := New(zerolog.Nop())
	w.AddPawn(1, "Ada")
	w.AddPod(7)

	e, ok := w.Entity(1)
	require.True(t, ok)
	assert.Equal(t, host.EntityID(1), e.EntityID())
	_, ok = w.Entity(7)
	assert.True(t, ok)

	require.NoError(t, w.Despawn(1))
	_, ok = w.Entity(1)
	assert.False(t, ok)
	assert.NotNil(t, w.Pawn(1), "despawned pawns keep their data")
	assert.Error(t, w.Despawn(42))
}

func TestHostManagerTable(t *testing.T) {
	w := New(zerolog.Nop())
	p := w.AddPawn(1, "Ada", "Rifle", "Knife")

	m, err := w.GetManagerFor(p, false)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = w.GetManagerFor(p, true)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Same(t, p, m.Pawn)
	require.Len(t, m.Verbs, 2)
	assert.Equal(t, "Knife", m.Verbs[1].Label)

	again, ok := w.HostManager(1)
	require.True(t, ok)
	assert.Same(t, m, again)
}

func TestChoosePowersFrame(t *testing.T) {
	w := New(zerolog.Nop())
	p := w.AddPawn(1, "Ada")
	d := w.OpenChoosePowers(p,
		PowerOption{Power: "Regen", Weakness: "Slow"},
		PowerOption{Power: "Blink", Weakness: "Frail"},
	)

	require.NoError(t, w.ChoosePowersFrame(d, ""))
	assert.True(t, d.Open())
	assert.Same(t, d, w.ChoosePowers())

	require.NoError(t, w.ChoosePowersFrame(d, "Blink"))
	assert.Equal(t, "Blink", p.Power)
	assert.Equal(t, "Frail", p.Weakness)
	assert.False(t, d.Open())
	assert.Nil(t, w.ChoosePowers())
}

func TestHireDialogAccept(t *testing.T) {
	w := New(zerolog.Nop())
	d := w.OpenHireDialog("Outlanders", "Trader", "Guard")

	require.NoError(t, w.HireDialogFrame(d, func(d *HireDialog) {
		d.DaysAmount = 5
		d.HireData["Guard"] = 2
	}))
	_, err := w.Call(TypeHireDialog+":OnAcceptKeyPressed", d)
	require.NoError(t, err)

	require.Len(t, w.Contracts(), 1)
	c := w.Contracts()[0]
	assert.Equal(t, "Outlanders", c.Faction)
	assert.Equal(t, 5, c.Days)
	assert.Equal(t, 2, c.HireData["Guard"])
	assert.Nil(t, w.HireDialog())
}

func TestSelection(t *testing.T) {
	w := New(zerolog.Nop())
	a, b := w.AddPawn(1, "Ada"), w.AddPawn(2, "Bo")

	w.Select(a)
	assert.True(t, w.IsSelected(a))
	assert.False(t, w.IsSelected(b))

	w.Select()
	assert.False(t, w.IsSelected(a))
}

func TestPodGizmos(t *testing.T) {
	w := New(zerolog.Nop())
	pod := w.AddPod(5)

	var pressed []string
	for _, target := range []string{PodChoiceInvoke, PodCancelGizmo, PodDevFailGizmo} {
		require.NoError(t, w.Hooks().Install(hook.Hook{
			ID: "spy:" + target, Target: target, Mode: hook.ModeBefore,
			Before: func(c *hook.Call) bool {
				pressed = append(pressed, host.TypeNameOf(c.Instance))
				return true
			},
		}))
	}

	gizmos := w.PodGizmos(pod, "Regen", "Toughness")
	require.Len(t, gizmos, 4)
	assert.Equal(t, "Start Toughness", gizmos[1].Label)

	require.NoError(t, gizmos[1].Action())
	require.NotNil(t, pod.Current)
	assert.Equal(t, "Toughness", pod.Current.Kind)
	assert.Same(t, pod, pod.Current.Pod)

	require.NoError(t, gizmos[2].Action())
	assert.Nil(t, pod.Current)
	assert.Equal(t, []string{"Toughness"}, pod.Cancelled)

	require.NoError(t, gizmos[0].Action())
	require.NoError(t, gizmos[3].Action())
	assert.Equal(t, []string{"Regen"}, pod.Failed)

	assert.Equal(t, []string{TypePodChoice, TypePod, TypePodChoice, TypePod}, pressed)
}

func TestPodChoiceIsRebuiltFromCapturedFields(t *testing.T) {
	w := New(zerolog.Nop())
	pod := w.AddPod(5)

	sym, ok := w.Namespace().Lookup(TypePodChoice + ":.ctor")
	require.True(t, ok)
	assert.Equal(t, ir.KindConstructor, sym.Kind)
	v, err := sym.Handle.(host.Constructor)([]any{pod, "Regen"})
	require.NoError(t, err)

	kind, ok := w.Namespace().Lookup(TypePodChoice + ":kind")
	require.True(t, ok)
	assert.Equal(t, "Regen", kind.Handle.(host.Field).Get(v))

	_, err = sym.Handle.(host.Constructor)([]any{nil, "Regen"})
	assert.Error(t, err)
}
