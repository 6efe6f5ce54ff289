// Package compat ties the binder, hook installer, reference resolver and sync
// registry into one runtime per process.
//
// A Runtime loads integration groups in two serial phases. LoadImmediate
// resolves and activates the immediate groups; LoadLate does the same for
// late groups once the host finished its own startup, then seals the
// registry. A group whose symbols do not resolve, or whose activation fails
// or panics, is logged once and skipped. Other groups are unaffected.
//
// Declared sync methods need no integration code: the runtime registers each
// one and installs a before-hook on its seam that turns a local call into a
// replicated operation. Applying the operation runs the method through the
// same seam; while an operation is applied the hook lets calls through, so
// the method and any nested host calls run locally on every peer.
package compat

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/binder"
	"github.com/roach88/mpcompat/internal/hook"
	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
	"github.com/roach88/mpcompat/internal/resolve"
	"github.com/roach88/mpcompat/internal/syncreg"
)

// Config wires a runtime to one host.
type Config struct {
	Namespace host.Namespace
	World     host.World
	Selection host.Selection
	Hooks     *hook.Installer

	// Sink carries operations to the transport. Without one, operations apply
	// immediately on this peer.
	Sink syncreg.Sink

	// Debug offers debug-only sync methods.
	Debug bool

	// Disabled names groups that are never loaded.
	Disabled []string

	Logger zerolog.Logger
}

// State is the load state of one group.
type State string

const (
	StatePending    State = "pending"
	StateActive     State = "active"
	StateUnresolved State = "unresolved"
	StateFailed     State = "failed"
	StateDisabled   State = "disabled"
)

// GroupStatus reports how one group loaded.
type GroupStatus struct {
	Name    string
	Phase   ir.Phase
	State   State
	Err     error
	Methods int
}

// Runtime is the process-wide adapter state.
//
// Not safe for concurrent use. Loading happens on the host's startup thread
// and everything else on the simulation thread.
type Runtime struct {
	cfg    Config
	logger zerolog.Logger

	binder   *binder.Binder
	resolver *resolve.Resolver
	registry *syncreg.Registry
	hooks    *hook.Installer

	groups   []Group
	status   map[string]*GroupStatus
	sweepers []func(host.World) int
	loaded   map[ir.Phase]bool
	applying int
}

// New builds a runtime. No group is loaded yet.
func New(cfg Config) (*Runtime, error) {
	if cfg.Namespace == nil {
		return nil, &RuntimeError{Code: ErrCodeConfig, Message: "namespace is required"}
	}
	if cfg.Hooks == nil {
		return nil, &RuntimeError{Code: ErrCodeConfig, Message: "hook installer is required"}
	}

	logger := cfg.Logger.With().Str("component", "compat").Logger()
	r := &Runtime{
		cfg:    cfg,
		logger: logger,
		binder: binder.New(cfg.Namespace, cfg.Logger),
		hooks:  cfg.Hooks,
		status: make(map[string]*GroupStatus),
		loaded: make(map[ir.Phase]bool),
	}
	r.resolver = resolve.New(cfg.World, cfg.Logger)

	sink := cfg.Sink
	if sink == nil {
		sink = localSink{r}
	}
	r.registry = syncreg.New(r.resolver, cfg.Logger,
		syncreg.WithDebug(cfg.Debug),
		syncreg.WithSelection(cfg.Selection),
		syncreg.WithSink(sink),
	)
	return r, nil
}

// localSink applies operations on the spot, for a single peer.
type localSink struct {
	rt *Runtime
}

func (s localSink) Submit(methodID string, args []byte) error {
	return s.rt.InvokeReplicated(methodID, args)
}

// Add declares groups. Names must be unique.
func (r *Runtime) Add(groups ...Group) error {
	for _, g := range groups {
		name := g.Spec.Name
		if _, exists := r.status[name]; exists {
			return &RuntimeError{Code: ErrCodeDuplicateGroup, Group: name, Message: "group declared twice"}
		}
		phase := g.Spec.Phase
		if phase == "" {
			phase = ir.PhaseImmediate
		}
		if r.loaded[phase] {
			return &RuntimeError{Code: ErrCodeLoadOrder, Group: name, Message: fmt.Sprintf("%s phase already loaded", phase)}
		}
		g.Spec.Phase = phase
		r.groups = append(r.groups, g)
		r.status[name] = &GroupStatus{Name: name, Phase: phase, State: StatePending}
	}
	return nil
}

// LoadImmediate resolves and activates the immediate groups.
func (r *Runtime) LoadImmediate() error {
	return r.load(ir.PhaseImmediate)
}

// LoadLate resolves and activates the late groups and seals the registry.
func (r *Runtime) LoadLate() error {
	if !r.loaded[ir.PhaseImmediate] {
		return &RuntimeError{Code: ErrCodeLoadOrder, Message: "late phase before immediate phase"}
	}
	if err := r.load(ir.PhaseLate); err != nil {
		return err
	}
	r.registry.Seal()
	return nil
}

func (r *Runtime) load(phase ir.Phase) error {
	if r.loaded[phase] {
		return &RuntimeError{Code: ErrCodeLoadOrder, Message: fmt.Sprintf("%s phase already loaded", phase)}
	}
	r.loaded[phase] = true

	var specs []ir.GroupSpec
	byName := make(map[string]Group)
	for _, g := range r.groups {
		if g.Spec.Phase != phase {
			continue
		}
		if slices.Contains(r.cfg.Disabled, g.Spec.Name) {
			r.status[g.Spec.Name].State = StateDisabled
			r.logger.Info().Str("group", g.Spec.Name).Msg("integration group disabled")
			continue
		}
		specs = append(specs, g.Spec)
		byName[g.Spec.Name] = g
	}

	active := 0
	for _, res := range r.binder.ResolvePhase(phase, specs) {
		st := r.status[res.Group.Name]
		if !res.OK() {
			st.State = StateUnresolved
			st.Err = res.Err
			continue
		}

		methods, err := r.activate(byName[res.Group.Name], res.Bindings)
		if err != nil {
			st.State = StateFailed
			st.Err = err
			r.logger.Error().
				Str("group", res.Group.Name).
				Str("phase", string(phase)).
				Err(err).
				Str("event", "group_failed").
				Msg("integration group skipped: activation failed")
			continue
		}
		st.State = StateActive
		st.Methods = methods
		active++
	}

	r.logger.Info().
		Str("phase", string(phase)).
		Int("groups", len(specs)).
		Int("active", active).
		Msg("load phase finished")
	return nil
}

// activate runs one group's activation. Panics are contained here.
func (r *Runtime) activate(g Group, bindings *binder.Bindings) (methods int, err error) {
	name := g.Spec.Name
	defer func() {
		if p := recover(); p != nil {
			methods = 0
			err = groupFailed(name, fmt.Errorf("panic: %v", p))
		}
	}()

	a := newActivation(r, name, bindings)
	if g.Activate != nil {
		if err := g.Activate(a); err != nil {
			return 0, groupFailed(name, err)
		}
	}
	methods, err = a.stageSpecMethods(g.Spec)
	if err != nil {
		return 0, groupFailed(name, err)
	}
	if err := a.commit(); err != nil {
		return 0, groupFailed(name, err)
	}
	return methods, nil
}

// syncHook intercepts local calls of a replicated method. Outside of
// replication the local body is vetoed and the call is submitted instead.
// Calls that are not offered to the local player are dropped.
func (r *Runtime) syncHook(methodID, target string) hook.Hook {
	return hook.Hook{
		ID:     "sync:" + methodID,
		Target: target,
		Mode:   hook.ModeBefore,
		Before: func(c *hook.Call) bool {
			if r.Applying() {
				return true
			}
			if !r.registry.Offered(methodID, c.Instance) {
				r.logger.Debug().
					Str("method_id", methodID).
					Msg("call not offered locally, dropped")
				return false
			}
			if err := r.registry.Invoke(c.Instance, methodID, c.Args...); err != nil {
				c.Err = err
				r.logger.Error().
					Str("method_id", methodID).
					Err(err).
					Str("event", "submit_failed").
					Msg("replicated call not submitted")
			}
			return false
		},
	}
}

// InvokeReplicated applies one delivered operation. It implements the
// engine's Applier.
func (r *Runtime) InvokeReplicated(methodID string, encodedArgs []byte) error {
	r.applying++
	defer func() { r.applying-- }()
	return r.registry.InvokeReplicated(methodID, encodedArgs)
}

// Applying reports whether an operation is being applied.
func (r *Runtime) Applying() bool {
	return r.applying > 0
}

// Status returns the load status of one group.
func (r *Runtime) Status(name string) (GroupStatus, bool) {
	st, ok := r.status[name]
	if !ok {
		return GroupStatus{}, false
	}
	return *st, true
}

// Statuses returns every group's status in declaration order.
func (r *Runtime) Statuses() []GroupStatus {
	out := make([]GroupStatus, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, *r.status[g.Spec.Name])
	}
	return out
}

// Registry returns the sync registry.
func (r *Runtime) Registry() *syncreg.Registry {
	return r.registry
}

// Resolver returns the reference resolver.
func (r *Runtime) Resolver() *resolve.Resolver {
	return r.resolver
}

// Hooks returns the hook installer.
func (r *Runtime) Hooks() *hook.Installer {
	return r.hooks
}

// Sweep runs every registered sweeper against the world and returns how many
// companions were released.
func (r *Runtime) Sweep() int {
	if r.cfg.World == nil {
		return 0
	}
	released := 0
	for _, fn := range r.sweepers {
		released += fn(r.cfg.World)
	}
	return released
}

// Close removes every hook, rule and registration the runtime installed.
func (r *Runtime) Close() {
	r.hooks.Reset()
	r.registry.Reset()
	r.resolver.Reset()
	r.sweepers = nil
	r.logger.Info().Msg("runtime closed")
}
