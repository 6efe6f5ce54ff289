// Package simhost is an in-memory reference host.
//
// It stands in for the external simulation: a few colonists with abilities
// and managed verbs, tailoring pods, and two dialogs, exposed through a
// symbol namespace the way the real host exposes its members. Every
// interceptable operation runs through a hook.Installer seam, so
// integrations can be exercised end to end without the real host.
//
// Each peer builds its own World from the same setup calls. Worlds built the
// same way hold equivalent state.
package simhost

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/hook"
	"github.com/roach88/mpcompat/internal/host"
)

// World is the simulated state of one peer.
//
// Not safe for concurrent use. It is touched only from the peer's simulation
// thread.
type World struct {
	logger zerolog.Logger
	hooks  *hook.Installer

	symbols map[string]host.Symbol
	removed map[string]bool
	renamed map[string]string

	pawns     map[host.EntityID]*Pawn
	pods      map[host.EntityID]*Pod
	windows   []window
	managers  map[host.EntityID]*VerbManager // MVCF's own lazily filled table
	selected  map[any]bool
	contracts []Contract
}

// Option configures a World.
type Option func(*World)

// WithoutSymbols hides symbols, as if the mod providing them is not loaded.
func WithoutSymbols(names ...string) Option {
	return func(w *World) {
		for _, n := range names {
			w.removed[n] = true
		}
	}
}

// WithRenamed exposes a symbol under another name, as a different version of
// the mod would.
func WithRenamed(from, to string) Option {
	return func(w *World) {
		w.renamed[from] = to
	}
}

// New creates an empty world and declares its seams on a fresh installer.
func New(logger zerolog.Logger, opts ...Option) *World {
	w := &World{
		logger:   logger.With().Str("component", "simhost").Logger(),
		removed:  make(map[string]bool),
		renamed:  make(map[string]string),
		pawns:    make(map[host.EntityID]*Pawn),
		pods:     make(map[host.EntityID]*Pod),
		managers: make(map[host.EntityID]*VerbManager),
		selected: make(map[any]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.hooks = hook.NewInstaller(logger)
	w.symbols = w.buildSymbols()
	w.declareSeams()
	return w
}

// Hooks returns the installer owning this world's seams.
func (w *World) Hooks() *hook.Installer {
	return w.hooks
}

// Namespace returns the symbol namespace of the loaded mods.
func (w *World) Namespace() host.Namespace {
	return namespace{w: w}
}

// Entity implements host.World. Despawned pawns are gone.
func (w *World) Entity(id host.EntityID) (host.Entity, bool) {
	if p, ok := w.pawns[id]; ok && p.Spawned {
		return p, true
	}
	if pod, ok := w.pods[id]; ok {
		return pod, true
	}
	return nil, false
}

// IsSelected implements host.Selection.
func (w *World) IsSelected(v any) bool {
	return w.selected[v]
}

// Select replaces the local selection.
func (w *World) Select(vs ...any) {
	w.selected = make(map[any]bool, len(vs))
	for _, v := range vs {
		w.selected[v] = true
	}
}

// AddPawn spawns a pawn carrying weapons.
func (w *World) AddPawn(id host.EntityID, name string, weapons ...string) *Pawn {
	p := &Pawn{ID: id, Name: name, Weapons: weapons, Spawned: true}
	w.pawns[id] = p
	return p
}

// Pawn returns a pawn, spawned or not.
func (w *World) Pawn(id host.EntityID) *Pawn {
	return w.pawns[id]
}

// Pawns returns every pawn ordered by id.
func (w *World) Pawns() []*Pawn {
	out := make([]*Pawn, 0, len(w.pawns))
	for _, p := range w.pawns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddPod builds a tailoring pod.
func (w *World) AddPod(id host.EntityID) *Pod {
	pod := &Pod{ID: id}
	w.pods[id] = pod
	return pod
}

// Pod returns a pod.
func (w *World) Pod(id host.EntityID) *Pod {
	return w.pods[id]
}

// PodGizmos lists the command buttons of a pod: one operation option per
// kind, then cancel and the debug failure. Every button calls through its
// seam, so hooks see each press.
func (w *World) PodGizmos(p *Pod, kinds ...string) []Gizmo {
	gizmos := make([]Gizmo, 0, len(kinds)+2)
	for _, k := range kinds {
		choice := &PodChoice{Pod: p, Kind: k}
		gizmos = append(gizmos, Gizmo{Label: "Start " + k, Action: func() error {
			_, err := w.Call(PodChoiceInvoke, choice)
			return err
		}})
	}
	gizmos = append(gizmos,
		Gizmo{Label: "Cancel", Action: func() error {
			_, err := w.Call(PodCancelGizmo, p)
			return err
		}},
		Gizmo{Label: "Dev: fail", Action: func() error {
			_, err := w.Call(PodDevFailGizmo, p)
			return err
		}},
	)
	return gizmos
}

// OpenHireDialog opens the hiring dialog for faction.
func (w *World) OpenHireDialog(faction string, kinds ...string) *HireDialog {
	d := &HireDialog{CurFaction: faction, HireData: make(map[string]int), open: true}
	for _, k := range kinds {
		d.HireData[k] = 0
	}
	w.windows = append(w.windows, d)
	return d
}

// OpenChoosePowers opens the power choice dialog for p.
func (w *World) OpenChoosePowers(p *Pawn, options ...PowerOption) *ChoosePowersDialog {
	d := &ChoosePowersDialog{Pawn: p, Options: options, open: true}
	w.windows = append(w.windows, d)
	return d
}

// HireDialog returns the open hiring dialog, if any.
func (w *World) HireDialog() *HireDialog {
	d, _ := w.findWindow(TypeHireDialog).(*HireDialog)
	return d
}

// ChoosePowers returns the open power choice dialog, if any.
func (w *World) ChoosePowers() *ChoosePowersDialog {
	d, _ := w.findWindow(TypeChoosePowers).(*ChoosePowersDialog)
	return d
}

// Contracts returns completed hires in order.
func (w *World) Contracts() []Contract {
	return w.contracts
}

// HostManager returns the entry of MVCF's own manager table.
func (w *World) HostManager(id host.EntityID) (*VerbManager, bool) {
	m, ok := w.managers[id]
	return m, ok
}

func (w *World) openWindows() []any {
	var out []any
	for _, win := range w.windows {
		if win.isOpen() {
			out = append(out, win)
		}
	}
	return out
}

func (w *World) findWindow(typeName string) window {
	for _, win := range w.windows {
		if win.isOpen() && win.TypeName() == typeName {
			return win
		}
	}
	return nil
}

func (w *World) removeWindows(typeName string) bool {
	removed := false
	kept := w.windows[:0]
	for _, win := range w.windows {
		if win.TypeName() == typeName {
			win.close()
			removed = true
			continue
		}
		kept = append(kept, win)
	}
	w.windows = kept
	return removed
}

// Call runs a host method through its seam, as the host's own code or UI
// would. Hooks installed on the seam see the call.
func (w *World) Call(methodID string, instance any, args ...any) (any, error) {
	sym, ok := w.symbols[methodID]
	if !ok {
		return nil, fmt.Errorf("simhost: no method %s", methodID)
	}
	m, ok := sym.Handle.(host.Method)
	if !ok {
		return nil, fmt.Errorf("simhost: %s is a %s, not a method", methodID, sym.Kind)
	}
	return w.hooks.Invoke(sym.Name, instance, args, func(c *hook.Call) (any, error) {
		return m.Call(c.Instance, c.Args...)
	})
}

// UseAbility is the player clicking an ability gizmo. With toggleAutoCast
// the click flips auto-cast; otherwise it orders a cast at target.
func (w *World) UseAbility(a *Ability, target *Pawn, toggleAutoCast bool) error {
	_, err := w.Call(TypeAbility+":DoAction", a, target, toggleAutoCast)
	return err
}

// GetManagerFor asks MVCF for a pawn's verb manager.
func (w *World) GetManagerFor(p *Pawn, createIfMissing bool) (*VerbManager, error) {
	res, err := w.Call(TypeMVCFWorldComp+":GetManagerFor", nil, p, createIfMissing)
	if err != nil {
		return nil, err
	}
	m, _ := res.(*VerbManager)
	return m, nil
}

// HireDialogFrame draws one frame of the hiring dialog. edit stands for the
// player's input during the frame.
func (w *World) HireDialogFrame(d *HireDialog, edit func(d *HireDialog)) error {
	_, err := w.hooks.Invoke(HireDialogContent, d, nil, func(c *hook.Call) (any, error) {
		if edit != nil {
			edit(d)
		}
		return nil, nil
	})
	return err
}

// ChoosePowersFrame draws one frame of the power choice dialog with the
// player clicking the option whose power is clicked ("" for none).
func (w *World) ChoosePowersFrame(d *ChoosePowersDialog, clicked string) error {
	_, err := w.hooks.Invoke(ChoosePowersContent, d, []any{clicked}, func(c *hook.Call) (any, error) {
		for _, opt := range d.Options {
			button := func(args ...any) any {
				return args[0].(string) == clicked
			}
			pressed, _ := c.Site(SiteButtonText, button, opt.Power, opt.Power, opt.Weakness).(bool)
			if pressed {
				d.onChosen(opt.Power, opt.Weakness)
				w.removeWindows(TypeChoosePowers)
				break
			}
		}
		return nil, nil
	})
	return err
}

// Despawn removes a pawn from the map.
func (w *World) Despawn(id host.EntityID) error {
	p, ok := w.pawns[id]
	if !ok {
		return fmt.Errorf("simhost: no pawn %d", id)
	}
	if _, err := w.Call(TypeThing+":DeSpawn", p); err != nil {
		return err
	}
	w.logger.Debug().Int64("entity", int64(id)).Msg("pawn despawned")
	return nil
}
