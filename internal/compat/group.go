package compat

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/binder"
	"github.com/roach88/mpcompat/internal/hook"
	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
	"github.com/roach88/mpcompat/internal/resolve"
	"github.com/roach88/mpcompat/internal/syncreg"
)

// Group is one integration: its declaration and the code that wires it once
// every required symbol resolved.
//
// Activate runs with the group's bindings. Everything it stages through the
// Activation lands together with the declared sync methods, or not at all.
// Activate may be nil for groups that only replicate declared methods.
type Group struct {
	Spec     ir.GroupSpec
	Activate func(a *Activation) error
}

// Activation stages the registrations and hooks of one group.
type Activation struct {
	rt       *Runtime
	group    string
	bindings *binder.Bindings
	logger   zerolog.Logger

	batch     *syncreg.Batch
	hooks     []hook.Hook
	rules     []resolve.Rule
	recompute map[string]func(instance any, args []any, index int) any
	sweepers  []func(host.World) int
	staged    int
}

func newActivation(rt *Runtime, group string, bindings *binder.Bindings) *Activation {
	return &Activation{
		rt:        rt,
		group:     group,
		bindings:  bindings,
		logger:    rt.logger.With().Str("group", group).Logger(),
		batch:     rt.registry.Stage(group),
		recompute: make(map[string]func(any, []any, int) any),
	}
}

// Group returns the group name.
func (a *Activation) Group() string {
	return a.group
}

// Bindings returns the resolved symbols of the group.
func (a *Activation) Bindings() *binder.Bindings {
	return a.bindings
}

// Logger returns a logger tagged with the group name.
func (a *Activation) Logger() zerolog.Logger {
	return a.logger
}

// Registry returns the sync registry. Hooks use it at run time to submit
// operations and open watch windows.
func (a *Activation) Registry() *syncreg.Registry {
	return a.rt.registry
}

// World returns the host world.
func (a *Activation) World() host.World {
	return a.rt.cfg.World
}

// Applying reports whether a replicated operation is being applied. Hooks
// must let calls made while applying run locally.
func (a *Activation) Applying() bool {
	return a.rt.Applying()
}

// Hook stages a hook. Its id is qualified with the group name.
func (a *Activation) Hook(h hook.Hook) {
	if !strings.HasPrefix(h.ID, a.group+"/") {
		h.ID = a.group + "/" + h.ID
	}
	a.hooks = append(a.hooks, h)
}

// Rule stages a reference rule.
func (a *Activation) Rule(r resolve.Rule) {
	a.rules = append(a.rules, r)
}

// Worker stages a sync worker.
func (a *Activation) Worker(w syncreg.Worker) {
	a.batch.Register(w)
}

// Method stages a replicated method that is not declared in the group spec,
// typically a static method implemented by the integration itself.
func (a *Activation) Method(typeName, name string, m host.Method, opts syncreg.MethodOptions) {
	a.batch.RegisterMethod(typeName, name, m, opts)
}

// Field stages a watchable field.
func (a *Activation) Field(typeName, name string, f host.Field) {
	a.batch.RegisterField(typeName, name, f)
}

// BoundField stages a watchable field from its binding. The binding name must
// be "Type:name".
func (a *Activation) BoundField(symbol string) error {
	f, err := binder.Field(a.bindings, symbol)
	if err != nil {
		return err
	}
	typeName, name, ok := strings.Cut(symbol, ":")
	if !ok {
		return fmt.Errorf("field symbol %q is not Type:name", symbol)
	}
	a.batch.RegisterField(typeName, name, f)
	return nil
}

// Recompute supplies the excluded arguments of a declared sync method on the
// applying peer.
func (a *Activation) Recompute(methodID string, fn func(instance any, args []any, index int) any) {
	a.recompute[methodID] = fn
}

// OnSweep registers a function run by Runtime.Sweep, for companions whose
// owners may disappear.
func (a *Activation) OnSweep(fn func(host.World) int) {
	a.sweepers = append(a.sweepers, fn)
}

// Lambda stages anonymous closures compiled into typeName.method as
// replicated methods of typeName. Each ordinal must be bound as
// "Type:Method/lambda:N". The closures capture nothing but their instance.
func (a *Activation) Lambda(typeName, method string, opts syncreg.MethodOptions, ordinals ...int) error {
	for _, n := range ordinals {
		if err := a.stageMethod(typeName, ir.LambdaName(method, n), opts); err != nil {
			return err
		}
	}
	return nil
}

// Delegate stages a closure that captured state. closureType must be bound
// with a constructor taking the captured fields in order, a field binding per
// captured name and an Invoke method. The captured fields travel with the
// call and the closure is rebuilt from them on every peer.
func (a *Activation) Delegate(closureType string, captured []string, opts syncreg.MethodOptions) error {
	ctor, err := binder.Constructor(a.bindings, closureType+":.ctor")
	if err != nil {
		return err
	}
	fields := make([]host.Field, len(captured))
	for i, name := range captured {
		if fields[i], err = binder.Field(a.bindings, closureType+":"+name); err != nil {
			return err
		}
	}

	a.Worker(syncreg.Worker{
		Type: closureType,
		Encode: func(w *syncreg.Writer, v any) error {
			for _, f := range fields {
				w.Object(f.Type, f.Get(v))
			}
			return nil
		},
		Decode: func(r *syncreg.Reader) (any, error) {
			args := make([]any, len(fields))
			for i, f := range fields {
				args[i] = r.Object(f.Type)
			}
			if r.Err() != nil {
				return nil, r.Err()
			}
			return ctor(args)
		},
	})
	return a.stageMethod(closureType, "Invoke", opts)
}

// stageSpecMethods registers every declared sync method. It returns the
// number of replicated methods the group staged, declared or not.
func (a *Activation) stageSpecMethods(spec ir.GroupSpec) (int, error) {
	for _, ms := range spec.Methods {
		err := a.stageMethod(ms.Type, ms.Name, syncreg.MethodOptions{
			Exclude:   ms.Exclude,
			Scope:     ms.Scope,
			DebugOnly: ms.DebugOnly,
		})
		if err != nil {
			return 0, err
		}
	}
	return a.staged, nil
}

// stageMethod registers a bound method as replicated and stages the hook
// that routes local calls of it through the registry.
func (a *Activation) stageMethod(typeName, name string, opts syncreg.MethodOptions) error {
	id := ir.MethodID(typeName, name)
	m, err := binder.Method(a.bindings, id)
	if err != nil {
		return fmt.Errorf("sync method %s: %w", id, err)
	}
	binding, _ := a.bindings.Get(id)

	// Applied operations run through the seam too, so other hooks on the
	// method fire on every peer.
	target, body := binding.Resolved, m.Fn
	m.Fn = func(instance any, args []any) (any, error) {
		return a.rt.hooks.Invoke(target, instance, args, func(c *hook.Call) (any, error) {
			return body(c.Instance, c.Args)
		})
	}
	if opts.Recompute == nil {
		opts.Recompute = a.recompute[id]
	}

	a.batch.RegisterMethod(typeName, name, m, opts)
	a.Hook(a.rt.syncHook(id, binding.Resolved))
	a.staged++
	return nil
}

// commit applies the staged work. Every check runs before anything lands, so
// a rejected group leaves no rule, registration or hook behind.
func (a *Activation) commit() error {
	if err := a.rt.resolver.CheckRules(a.rules); err != nil {
		return err
	}
	if err := a.rt.hooks.Check(a.hooks); err != nil {
		return err
	}
	if err := a.batch.Commit(); err != nil {
		return err
	}
	if err := a.rt.resolver.AddRules(a.rules); err != nil {
		return err
	}
	if err := a.rt.hooks.InstallAll(a.hooks); err != nil {
		return err
	}
	a.rt.sweepers = append(a.rt.sweepers, a.sweepers...)
	return nil
}
