package integrations

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcompat/internal/compat"
	"github.com/roach88/mpcompat/internal/engine"
	"github.com/roach88/mpcompat/internal/host/simhost"
	"github.com/roach88/mpcompat/internal/ir"
	"github.com/roach88/mpcompat/internal/transport"
)

type peer struct {
	id     string
	world  *simhost.World
	rt     *compat.Runtime
	engine *engine.Engine
}

type cluster struct {
	t     *testing.T
	lb    *transport.Loopback
	peers []*peer
}

// newCluster builds n peers with identical setup, all groups loaded.
func newCluster(t *testing.T, n int, setup func(i int, w *simhost.World), opts ...simhost.Option) *cluster {
	t.Helper()
	c := &cluster{t: t, lb: transport.NewLoopback(zerolog.Nop())}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("peer-%d", i)
		w := simhost.New(zerolog.Nop(), opts...)
		if setup != nil {
			setup(i, w)
		}
		rt, err := compat.New(compat.Config{
			Namespace: w.Namespace(),
			World:     w,
			Selection: w,
			Hooks:     w.Hooks(),
			Sink:      c.lb.Endpoint(id),
			Logger:    zerolog.Nop(),
		})
		require.NoError(t, err)
		require.NoError(t, rt.Add(MustGroups()...))
		require.NoError(t, rt.LoadImmediate())
		require.NoError(t, rt.LoadLate())

		e := engine.New(id, rt, zerolog.Nop())
		c.lb.Attach(id, e)
		c.peers = append(c.peers, &peer{id: id, world: w, rt: rt, engine: e})
	}
	return c
}

// settle steps every peer until no operation is pending anywhere.
func (c *cluster) settle() {
	c.t.Helper()
	for {
		progressed := false
		for _, p := range c.peers {
			n, err := p.engine.Step(context.Background())
			require.NoError(c.t, err)
			if n > 0 {
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

// converged asserts every peer applied the same operations with no failure.
func (c *cluster) converged() {
	c.t.Helper()
	want := c.peers[0].engine.Checksum()
	for _, p := range c.peers {
		assert.Equal(c.t, want, p.engine.Checksum(), "checksum of %s", p.id)
		_, failed := p.engine.Stats()
		assert.Zero(c.t, failed, "failed operations on %s", p.id)
	}
}

func twoPawns(_ int, w *simhost.World) {
	w.AddPawn(1, "Ada", "Rifle", "Knife")
	w.AddPawn(2, "Bo", "Bow")
}

func TestSpecsCompile(t *testing.T) {
	specs, err := Specs()
	require.NoError(t, err)

	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"abilities", "verbs", "tailoring", "hiring", "chooser"}, names)
	assert.Equal(t, ir.PhaseLate, specs[0].Phase)
	assert.Equal(t, ir.PhaseImmediate, specs[2].Phase)
	assert.Equal(t, ir.ScopeSelected, specs[2].Methods[0].Scope)
	assert.True(t, specs[2].Methods[1].DebugOnly)
}

func TestAllGroupsActivateOnReferenceHost(t *testing.T) {
	c := newCluster(t, 1, nil)
	for _, st := range c.peers[0].rt.Statuses() {
		assert.Equal(t, compat.StateActive, st.State, "group %s: %v", st.Name, st.Err)
	}
}

func TestMissingModDisablesOnlyItsGroup(t *testing.T) {
	c := newCluster(t, 1, nil, simhost.WithoutSymbols(simhost.TypeVerbManager))
	for _, st := range c.peers[0].rt.Statuses() {
		if st.Name == "verbs" {
			assert.Equal(t, compat.StateUnresolved, st.State)
			continue
		}
		assert.Equal(t, compat.StateActive, st.State, "group %s", st.Name)
	}
	assert.NotContains(t, c.peers[0].rt.Registry().Methods(), VerbsInitMethod)
}

func TestAbilityCastConvergesWhateverTheOrder(t *testing.T) {
	c := newCluster(t, 2, func(i int, w *simhost.World) {
		twoPawns(i, w)
		comp := w.Pawn(1).Abilities()
		if i == 0 {
			comp.Give("Frost")
			comp.Give("Blink")
		} else {
			comp.Give("Blink")
			comp.Give("Frost")
		}
	})

	w0 := c.peers[0].world
	require.NoError(t, w0.UseAbility(w0.Pawn(1).Abilities().Find("Frost"), w0.Pawn(2), false))
	assert.Zero(t, w0.Pawn(1).Abilities().Find("Frost").Casts, "nothing applies before the operation lands")

	c.settle()
	for _, p := range c.peers {
		frost := p.world.Pawn(1).Abilities().Find("Frost")
		assert.Equal(t, 1, frost.Casts, p.id)
		assert.Same(t, p.world.Pawn(2), frost.LastTarget, p.id)
		assert.Zero(t, p.world.Pawn(1).Abilities().Find("Blink").Casts, p.id)
	}
	c.converged()
}

func TestAutoCastToggleIsWatched(t *testing.T) {
	c := newCluster(t, 2, func(i int, w *simhost.World) {
		twoPawns(i, w)
		w.Pawn(1).Abilities().Give("Frost")
	})

	w1 := c.peers[1].world
	frost := w1.Pawn(1).Abilities().Find("Frost")
	require.NoError(t, w1.UseAbility(frost, nil, true))
	assert.False(t, frost.AutoCast, "local change restored until it lands")
	assert.Equal(t, int64(1), c.lb.Seq())

	c.settle()
	for _, p := range c.peers {
		assert.True(t, p.world.Pawn(1).Abilities().Find("Frost").AutoCast, p.id)
	}
	c.converged()
}

func TestLearnedAbilityIsInitialized(t *testing.T) {
	for _, opts := range [][]simhost.Option{
		nil,
		{simhost.WithRenamed(simhost.TypeAbility+":Init", simhost.TypeAbility+":Initialize")},
	} {
		c := newCluster(t, 2, twoPawns, opts...)

		w0 := c.peers[0].world
		_, err := w0.Call(simhost.TypeCompAbilities+":GiveAbility", w0.Pawn(2).Abilities(), "Regen")
		require.NoError(t, err)
		assert.Nil(t, w0.Pawn(2).Abilities().Find("Regen"))

		c.settle()
		for _, p := range c.peers {
			regen := p.world.Pawn(2).Abilities().Find("Regen")
			require.NotNil(t, regen, p.id)
			assert.True(t, regen.Initialized, p.id)
		}
		c.converged()
	}
}

func TestVerbManagerCompanionConverges(t *testing.T) {
	c := newCluster(t, 2, twoPawns)
	w0, w1 := c.peers[0].world, c.peers[1].world

	placeholder, err := w0.GetManagerFor(w0.Pawn(1), true)
	require.NoError(t, err)
	require.NotNil(t, placeholder, "reads never wait")
	assert.Nil(t, placeholder.Pawn)
	assert.Empty(t, placeholder.Verbs)

	again, err := w0.GetManagerFor(w0.Pawn(1), true)
	require.NoError(t, err)
	assert.Same(t, placeholder, again)
	assert.Equal(t, int64(1), c.lb.Seq(), "one ensure per placeholder")

	c.settle()
	for _, p := range c.peers {
		m, err := p.world.GetManagerFor(p.world.Pawn(1), false)
		require.NoError(t, err)
		require.NotNil(t, m, p.id)
		assert.Same(t, p.world.Pawn(1), m.Pawn, p.id)
		require.Len(t, m.Verbs, 2, p.id)
		_, inHostTable := p.world.HostManager(1)
		assert.False(t, inHostTable, p.id)
	}
	m0, _ := w0.GetManagerFor(w0.Pawn(1), false)
	assert.Same(t, placeholder, m0, "the placeholder itself was initialized")

	m1, _ := w1.GetManagerFor(w1.Pawn(1), false)
	_, err = w1.Call(simhost.TypeManagedVerb+":Toggle", m1.Verbs[1])
	require.NoError(t, err)
	assert.True(t, m1.Verbs[1].Enabled)

	c.settle()
	for _, p := range c.peers {
		m, _ := p.world.GetManagerFor(p.world.Pawn(1), false)
		assert.True(t, m.Verbs[0].Enabled, p.id)
		assert.False(t, m.Verbs[1].Enabled, p.id)
	}
	c.converged()
}

func TestVerbManagerReleasedWithOwner(t *testing.T) {
	c := newCluster(t, 1, twoPawns)
	p := c.peers[0]
	w := p.world

	_, err := w.GetManagerFor(w.Pawn(1), true)
	require.NoError(t, err)
	_, err = w.GetManagerFor(w.Pawn(2), true)
	require.NoError(t, err)
	c.settle()

	require.NoError(t, w.Despawn(1))
	m, err := w.GetManagerFor(w.Pawn(1), false)
	require.NoError(t, err)
	assert.Nil(t, m)

	w.Pawn(2).Spawned = false
	assert.Equal(t, 1, p.rt.Sweep())
	assert.Zero(t, p.rt.Sweep())
}

func TestTailoringOperationIsConstructedOnEveryPeer(t *testing.T) {
	c := newCluster(t, 2, func(_ int, w *simhost.World) { w.AddPod(5) })
	w0 := c.peers[0].world
	pod := w0.Pod(5)

	start := func() {
		_, err := w0.Call(simhost.TypePod+":StartOperation", pod, &simhost.Operation{Pod: pod, Kind: "Regen"})
		require.NoError(t, err)
	}

	start()
	assert.Zero(t, c.lb.Seq(), "not offered while the pod is not selected")

	w0.Select(pod)
	start()
	assert.Nil(t, pod.Current)

	c.settle()
	for _, p := range c.peers {
		current := p.world.Pod(5).Current
		require.NotNil(t, current, p.id)
		assert.Equal(t, "Regen", current.Kind)
		assert.Same(t, p.world.Pod(5), current.Pod, "built from this peer's pod")
	}

	_, err := w0.Call(simhost.TypePod+":DevInstantSuccess", pod)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.lb.Seq(), "debug-only method not offered")
	c.converged()
}

func TestPodGizmoClosuresConverge(t *testing.T) {
	c := newCluster(t, 2, func(_ int, w *simhost.World) { w.AddPod(5) })
	w0 := c.peers[0].world
	pod := w0.Pod(5)
	gizmos := w0.PodGizmos(pod, "Regen", "Toughness")
	press := func(label string) {
		t.Helper()
		for _, g := range gizmos {
			if g.Label == label {
				require.NoError(t, g.Action())
				return
			}
		}
		t.Fatalf("no gizmo %q", label)
	}

	press("Start Toughness")
	assert.Nil(t, pod.Current, "runs only when delivered")
	c.settle()
	for _, p := range c.peers {
		current := p.world.Pod(5).Current
		require.NotNil(t, current, p.id)
		assert.Equal(t, "Toughness", current.Kind)
		assert.Same(t, p.world.Pod(5), current.Pod, "captured pod resolved on this peer")
	}

	press("Cancel")
	assert.Equal(t, int64(1), c.lb.Seq(), "cancel not offered while the pod is not selected")

	w0.Select(pod)
	press("Cancel")
	c.settle()
	for _, p := range c.peers {
		assert.Nil(t, p.world.Pod(5).Current, p.id)
		assert.Equal(t, []string{"Toughness"}, p.world.Pod(5).Cancelled, p.id)
	}

	press("Start Regen")
	press("Dev: fail")
	c.settle()
	assert.Equal(t, int64(3), c.lb.Seq(), "debug-only closure not offered")
	for _, p := range c.peers {
		assert.Empty(t, p.world.Pod(5).Failed, p.id)
		assert.Equal(t, "Regen", p.world.Pod(5).Current.Kind, p.id)
	}
	c.converged()

	st, ok := c.peers[0].rt.Status("tailoring")
	require.True(t, ok)
	assert.Equal(t, 5, st.Methods, "declared methods plus gizmo closures")
}

func TestMissingGizmoClosureDisablesTailoring(t *testing.T) {
	c := newCluster(t, 1, func(_ int, w *simhost.World) { w.AddPod(5) }, simhost.WithoutSymbols(simhost.PodCancelGizmo))
	st, ok := c.peers[0].rt.Status("tailoring")
	require.True(t, ok)
	assert.Equal(t, compat.StateUnresolved, st.State)

	w := c.peers[0].world
	w.Select(w.Pod(5))
	_, err := w.Call(simhost.TypePod+":StartOperation", w.Pod(5), &simhost.Operation{Pod: w.Pod(5), Kind: "Regen"})
	require.NoError(t, err)
	assert.Zero(t, c.lb.Seq(), "nothing of the group was installed")
	assert.Equal(t, "Regen", w.Pod(5).Current.Kind)
}

func TestHiringDialogConverges(t *testing.T) {
	c := newCluster(t, 2, func(_ int, w *simhost.World) {
		w.OpenHireDialog("Outlanders", "Trader", "Guard")
	})
	w0, w1 := c.peers[0].world, c.peers[1].world

	d0 := w0.HireDialog()
	require.NoError(t, w0.HireDialogFrame(d0, func(d *simhost.HireDialog) {
		d.DaysAmount = 5
		d.HireData["Guard"] = 2
	}))
	assert.Zero(t, d0.DaysAmount, "restored until the change lands")
	assert.Zero(t, d0.HireData["Guard"])
	assert.Equal(t, int64(2), c.lb.Seq())

	require.NoError(t, w0.HireDialogFrame(d0, nil))
	assert.Equal(t, int64(2), c.lb.Seq(), "an idle frame submits nothing")

	c.settle()
	for _, p := range c.peers {
		d := p.world.HireDialog()
		require.NotNil(t, d, p.id)
		assert.Equal(t, 5, d.DaysAmount, p.id)
		assert.Equal(t, map[string]int{"Trader": 0, "Guard": 2}, d.HireData, p.id)
	}

	_, err := w1.Call(simhost.TypeHireDialog+":OnAcceptKeyPressed", w1.HireDialog())
	require.NoError(t, err)
	assert.NotNil(t, w1.HireDialog())

	c.settle()
	for _, p := range c.peers {
		assert.Nil(t, p.world.HireDialog(), p.id)
		require.Len(t, p.world.Contracts(), 1, p.id)
		assert.Equal(t, simhost.Contract{Faction: "Outlanders", Days: 5, HireData: map[string]int{"Trader": 0, "Guard": 2}},
			p.world.Contracts()[0])
	}
	c.converged()
}

func TestPowerChoiceIsReplicated(t *testing.T) {
	options := []simhost.PowerOption{
		{Power: "Regen", Weakness: "Slow"},
		{Power: "Blink", Weakness: "Frail"},
	}
	c := newCluster(t, 2, func(i int, w *simhost.World) {
		twoPawns(i, w)
		w.OpenChoosePowers(w.Pawn(1), options...)
	})
	w0 := c.peers[0].world

	require.NoError(t, w0.ChoosePowersFrame(w0.ChoosePowers(), "Blink"))
	assert.Empty(t, w0.Pawn(1).Power, "click is replicated, not applied")
	assert.NotNil(t, w0.ChoosePowers())

	c.settle()
	for _, p := range c.peers {
		assert.Equal(t, "Blink", p.world.Pawn(1).Power, p.id)
		assert.Equal(t, "Frail", p.world.Pawn(1).Weakness, p.id)
		assert.Nil(t, p.world.ChoosePowers(), p.id)
	}
	c.converged()
}

func TestDialogOpenOnOnePeerIsDetected(t *testing.T) {
	c := newCluster(t, 2, twoPawns)
	w0 := c.peers[0].world
	d := w0.OpenChoosePowers(w0.Pawn(1), simhost.PowerOption{Power: "Regen", Weakness: "Slow"})

	require.NoError(t, w0.ChoosePowersFrame(d, "Regen"))
	c.settle()

	applied, failed := c.peers[0].engine.Stats()
	assert.Equal(t, 1, applied)
	assert.Zero(t, failed)
	applied, failed = c.peers[1].engine.Stats()
	assert.Zero(t, applied)
	assert.Equal(t, 1, failed, "no dialog to decode on the other peer")

	assert.Equal(t, "Regen", w0.Pawn(1).Power)
	assert.NotEqual(t, c.peers[0].engine.Checksum(), c.peers[1].engine.Checksum())
}
