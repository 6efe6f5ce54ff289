package integrations

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/binder"
	"github.com/roach88/mpcompat/internal/companion"
	"github.com/roach88/mpcompat/internal/compat"
	"github.com/roach88/mpcompat/internal/hook"
	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/resolve"
	"github.com/roach88/mpcompat/internal/syncreg"
)

const (
	typeVerbManager = "MVCF.VerbManager"
	typeManagedVerb = "MVCF.ManagedVerb"

	// VerbsInitMethod is the replicated ensure step of verb managers.
	VerbsInitMethod = "MPCompat.Verbs:InitVerbManager"
)

// activateVerbs takes verb managers away from MVCF's own lazy table. A
// manager read on one peer is a placeholder until the replicated ensure step
// initializes it, at the same point of the operation order on every peer.
func activateVerbs(a *compat.Activation) error {
	b := a.Bindings()

	getManager, _ := b.Get("MVCF.WorldComponent_MVCF:GetManagerFor")
	despawn, _ := b.Get("Verse.Thing:DeSpawn")
	ctor, err := binder.Constructor(b, typeVerbManager+":.ctor")
	if err != nil {
		return err
	}
	initialize, err := binder.Method(b, typeVerbManager+":Initialize")
	if err != nil {
		return err
	}
	verbs, err := binder.Field(b, typeVerbManager+":verbs")
	if err != nil {
		return err
	}
	manager, err := binder.Field(b, typeManagedVerb+":Manager")
	if err != nil {
		return err
	}

	logger := a.Logger()
	coord := companion.New[any](typeVerbManager, companion.Factory[any]{
		New: func(owner host.Entity) any {
			m, err := ctor(nil)
			if err != nil {
				logger.Error().Err(err).Int64("owner", int64(owner.EntityID())).Msg("verb manager not constructed")
			}
			return m
		},
		Init: func(owner host.Entity, m any) error {
			if m == nil {
				return fmt.Errorf("no verb manager for %d", owner.EntityID())
			}
			_, err := initialize.Call(m, owner)
			return err
		},
	}, logger)

	registry := a.Registry()
	coord.Bind(func(owner host.Entity) error {
		return registry.Invoke(nil, VerbsInitMethod, owner)
	})

	a.Method("MPCompat.Verbs", "InitVerbManager", host.Method{
		Params: []string{typePawn},
		Fn: func(_ any, args []any) (any, error) {
			owner, err := asEntity(args[0])
			if err != nil {
				return nil, err
			}
			return nil, coord.Ensure(owner)
		},
	}, syncreg.MethodOptions{Static: true})

	// Managers have no identity of their own. They travel as their owner.
	a.Worker(syncreg.Worker{
		Type: typeVerbManager,
		Encode: func(w *syncreg.Writer, v any) error {
			for _, id := range coord.Owners() {
				if m, _ := coord.Lookup(id); m == v {
					owner, ok := a.World().Entity(id)
					if !ok {
						return fmt.Errorf("owner %d of verb manager is gone", id)
					}
					w.Ref(owner)
					return nil
				}
			}
			return fmt.Errorf("verb manager is not tracked")
		},
		Decode: func(r *syncreg.Reader) (any, error) {
			owner, err := asEntity(r.Ref())
			if r.Err() != nil {
				return nil, r.Err()
			}
			if err != nil {
				return nil, err
			}
			if err := coord.Ensure(owner); err != nil {
				return nil, err
			}
			m, _ := coord.Lookup(owner.EntityID())
			return m, nil
		},
	})

	a.Rule(resolve.Rule{
		Type:     typeManagedVerb,
		Strategy: resolve.StrategyOwnerIndex,
		Owner:    manager.Get,
		Collection: func(owner any) []any {
			return asList(verbs.Get(owner))
		},
	})

	a.Hook(hook.Hook{
		ID:     "get-manager",
		Target: getManager.Resolved,
		Mode:   hook.ModeBefore,
		Before: func(c *hook.Call) bool {
			owner, err := asEntity(c.Args[0])
			if err != nil {
				c.Err = err
				return false
			}
			create, _ := c.Args[1].(bool)
			switch {
			case a.Applying():
				if err := coord.Ensure(owner); err != nil {
					c.Err = err
					return false
				}
				c.Result, _ = coord.Lookup(owner.EntityID())
			case create:
				c.Result = coord.Get(owner)
			default:
				c.Result, _ = coord.Lookup(owner.EntityID())
			}
			return false
		},
	})

	a.Hook(hook.Hook{
		ID:     "release",
		Target: despawn.Resolved,
		Mode:   hook.ModeAfter,
		After: func(c *hook.Call) {
			if e, ok := c.Instance.(host.Entity); ok && !c.Skipped {
				coord.Release(e.EntityID())
			}
		},
	})
	a.OnSweep(coord.Sweep)
	return nil
}
