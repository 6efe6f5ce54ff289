package integrations

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/binder"
	"github.com/roach88/mpcompat/internal/compat"
	"github.com/roach88/mpcompat/internal/hook"
	"github.com/roach88/mpcompat/internal/resolve"
	"github.com/roach88/mpcompat/internal/syncreg"
)

const (
	typeCompAbilities = "VFECore.Abilities.CompAbilities"
	typeAbility       = "VFECore.Abilities.Ability"
)

// activateAbilities replicates casting and learning abilities. An ability is
// found again through its holder and its unique load id, so peers whose
// ability lists are ordered differently still agree.
func activateAbilities(a *compat.Activation) error {
	b := a.Bindings()

	getComp, err := binder.Method(b, "Verse.ThingWithComps:GetComp")
	if err != nil {
		return err
	}
	parent, err := binder.Field(b, typeCompAbilities+":parent")
	if err != nil {
		return err
	}
	learned, err := binder.Field(b, typeCompAbilities+":learnedAbilities")
	if err != nil {
		return err
	}
	holder, err := binder.Field(b, typeAbility+":holder")
	if err != nil {
		return err
	}
	uniqueID, err := binder.Method(b, typeAbility+":GetUniqueLoadID")
	if err != nil {
		return err
	}

	compOf := func(pawn any) (any, error) {
		comp, err := getComp.Call(pawn, typeCompAbilities)
		if err != nil {
			return nil, err
		}
		if comp == nil {
			return nil, fmt.Errorf("%v has no %s", pawn, typeCompAbilities)
		}
		return comp, nil
	}

	a.Rule(resolve.Rule{
		Type:     typeAbility,
		Strategy: resolve.StrategyOwnerKey,
		Owner:    holder.Get,
		Collection: func(owner any) []any {
			comp, err := compOf(owner)
			if err != nil {
				return nil
			}
			return asList(learned.Get(comp))
		},
		SecondaryKey: func(v any) string {
			id, _ := uniqueID.Call(v)
			s, _ := id.(string)
			return s
		},
	})

	a.Worker(syncreg.Worker{
		Type: typeCompAbilities,
		Encode: func(w *syncreg.Writer, v any) error {
			w.Ref(parent.Get(v))
			return nil
		},
		Decode: func(r *syncreg.Reader) (any, error) {
			pawn := r.Ref()
			if r.Err() != nil {
				return nil, r.Err()
			}
			return compOf(pawn)
		},
	})

	// Learning runs the ability's init on every peer once applied.
	if initAbility, err := binder.Method(b, typeAbility+":Init"); err == nil {
		give, _ := b.Get(typeCompAbilities + ":GiveAbility")
		a.Hook(hook.Hook{
			ID:     "init-learned",
			Target: give.Resolved,
			Mode:   hook.ModeAfter,
			After: func(c *hook.Call) {
				if c.Skipped || c.Err != nil || c.Result == nil {
					return
				}
				if _, err := initAbility.Call(c.Result); err != nil {
					logger := a.Logger()
					logger.Error().Err(err).Msg("ability init failed")
				}
			},
		})
	}

	// Toggling auto-cast flips a plain field; watch it around the gizmo click.
	if _, err := binder.Field(b, typeAbility+":autoCast"); err == nil {
		if err := a.BoundField(typeAbility + ":autoCast"); err != nil {
			return err
		}
		watchAround(a, typeAbility+":DoAction", "autocast", func(w *syncreg.Watch, c *hook.Call) error {
			return w.Field(c.Instance, typeAbility, "autoCast")
		})
	}
	return nil
}

// watchAround opens a watch window for the duration of the body of symbol.
// Calls made while applying a replicated operation are not watched.
func watchAround(a *compat.Activation, symbol, id string, add func(w *syncreg.Watch, c *hook.Call) error) {
	binding, _ := a.Bindings().Get(symbol)
	key := a.Group() + "." + id
	logger := a.Logger()

	a.Hook(hook.Hook{
		ID:     id + "-begin",
		Target: binding.Resolved,
		Mode:   hook.ModeBefore,
		Before: func(c *hook.Call) bool {
			if a.Applying() {
				return true
			}
			w := a.Registry().Watch()
			if err := add(w, c); err != nil {
				logger.Error().Err(err).Str("target", c.Target).Msg("watch not opened")
				return true
			}
			c.State[key] = w
			return true
		},
	})
	a.Hook(hook.Hook{
		ID:     id + "-end",
		Target: binding.Resolved,
		Mode:   hook.ModeAfter,
		After: func(c *hook.Call) {
			w, ok := c.State[key].(*syncreg.Watch)
			if !ok {
				return
			}
			if err := w.End(); err != nil {
				logger.Error().Err(err).Str("target", c.Target).Str("event", "submit_failed").Msg("watched changes not submitted")
			}
		},
	})
}
