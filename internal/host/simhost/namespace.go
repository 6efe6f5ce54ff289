package simhost

import (
	"fmt"
	"sort"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

type namespace struct {
	w *World
}

// Lookup implements host.Namespace.
func (n namespace) Lookup(name string) (host.Symbol, bool) {
	sym, ok := n.w.symbols[name]
	return sym, ok
}

// Symbols returns the names of every exposed symbol, sorted.
func (w *World) Symbols() []string {
	names := make([]string, 0, len(w.symbols))
	for name := range w.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildSymbols assembles the namespace after removals and renames.
func (w *World) buildSymbols() map[string]host.Symbol {
	table := make(map[string]host.Symbol)
	add := func(name string, kind ir.Kind, arity int, handle any) {
		if w.removed[name] {
			return
		}
		if to, ok := w.renamed[name]; ok {
			name = to
		}
		table[name] = host.Symbol{Name: name, Kind: kind, Arity: arity, Handle: handle}
	}
	method := func(name string, params []string, fn func(instance any, args []any) (any, error)) {
		add(name, ir.KindMethod, len(params), host.Method{Params: params, Fn: fn})
	}
	field := func(name, typeName string, get func(any) any, set func(any, any)) {
		add(name, ir.KindField, 0, host.Field{Type: typeName, Get: get, Set: set})
	}
	typ := func(name string) {
		add(name, ir.KindType, 0, host.TypeInfo{Name: name})
	}
	readOnly := func(any, any) {}

	// Verse
	typ(TypePawn)
	method(TypeThing+":DeSpawn", nil, func(instance any, _ []any) (any, error) {
		instance.(*Pawn).Spawned = false
		return nil, nil
	})
	method(TypeThingWithComps+":GetComp", []string{"string"}, func(instance any, args []any) (any, error) {
		p, ok := instance.(*Pawn)
		if !ok {
			return nil, fmt.Errorf("GetComp on %T", instance)
		}
		if args[0] == TypeCompAbilities {
			return p.Abilities(), nil
		}
		return nil, nil
	})
	field(TypeWindowStack+":Windows", "[]"+TypeWindow,
		func(any) any { return w.openWindows() }, readOnly)
	method(TypeWindowStack+":TryRemove", []string{"string"}, func(_ any, args []any) (any, error) {
		return w.removeWindows(args[0].(string)), nil
	})
	method(TypeWindow+":Close", nil, func(instance any, _ []any) (any, error) {
		if win, ok := instance.(window); ok {
			w.removeWindows(win.TypeName())
		}
		return nil, nil
	})

	// VFECore abilities
	typ(TypeCompAbilities)
	method(TypeCompAbilities+":GiveAbility", []string{"string"}, func(instance any, args []any) (any, error) {
		return instance.(*CompAbilities).Give(args[0].(string)), nil
	})
	field(TypeCompAbilities+":learnedAbilities", "[]"+TypeAbility,
		func(v any) any {
			learned := v.(*CompAbilities).Learned
			out := make([]any, len(learned))
			for i, a := range learned {
				out[i] = a
			}
			return out
		}, readOnly)
	field(TypeCompAbilities+":parent", TypePawn,
		func(v any) any { return v.(*CompAbilities).pawn }, readOnly)

	typ(TypeAbility)
	field(TypeAbility+":holder", TypePawn,
		func(v any) any { return v.(*Ability).Holder }, readOnly)
	method(TypeAbility+":GetUniqueLoadID", nil, func(instance any, _ []any) (any, error) {
		return instance.(*Ability).UniqueLoadID(), nil
	})
	method(TypeAbility+":CreateCastJob", []string{TypePawn}, func(instance any, args []any) (any, error) {
		a := instance.(*Ability)
		a.Casts++
		a.LastTarget, _ = args[0].(*Pawn)
		return nil, nil
	})
	method(TypeAbility+":Init", nil, func(instance any, _ []any) (any, error) {
		instance.(*Ability).Initialized = true
		return nil, nil
	})
	field(TypeAbility+":autoCast", "bool",
		func(v any) any { return v.(*Ability).AutoCast },
		func(v any, val any) { v.(*Ability).AutoCast, _ = val.(bool) })
	method(TypeAbility+":DoAction", []string{TypePawn, "bool"}, func(instance any, args []any) (any, error) {
		a := instance.(*Ability)
		if toggle, _ := args[1].(bool); toggle {
			a.AutoCast = !a.AutoCast
			return nil, nil
		}
		return w.Call(TypeAbility+":CreateCastJob", a, args[0])
	})

	// MVCF
	method(TypeMVCFWorldComp+":GetManagerFor", []string{TypePawn, "bool"}, func(_ any, args []any) (any, error) {
		p := args[0].(*Pawn)
		if m, ok := w.managers[p.ID]; ok {
			return m, nil
		}
		if create, _ := args[1].(bool); !create {
			return nil, nil
		}
		m := &VerbManager{}
		m.Initialize(p)
		w.managers[p.ID] = m
		return m, nil
	})
	typ(TypeVerbManager)
	add(TypeVerbManager+":.ctor", ir.KindConstructor, 0, host.Constructor(func([]any) (any, error) {
		return &VerbManager{}, nil
	}))
	method(TypeVerbManager+":Initialize", []string{TypePawn}, func(instance any, args []any) (any, error) {
		instance.(*VerbManager).Initialize(args[0].(*Pawn))
		return nil, nil
	})
	field(TypeVerbManager+":Pawn", TypePawn,
		func(v any) any {
			if p := v.(*VerbManager).Pawn; p != nil {
				return p
			}
			return nil
		}, readOnly)
	field(TypeVerbManager+":verbs", "[]"+TypeManagedVerb,
		func(v any) any {
			verbs := v.(*VerbManager).Verbs
			out := make([]any, len(verbs))
			for i, mv := range verbs {
				out[i] = mv
			}
			return out
		}, readOnly)
	typ(TypeManagedVerb)
	field(TypeManagedVerb+":Manager", TypeVerbManager,
		func(v any) any { return v.(*ManagedVerb).Manager }, readOnly)
	method(TypeManagedVerb+":Toggle", nil, func(instance any, _ []any) (any, error) {
		mv := instance.(*ManagedVerb)
		mv.Enabled = !mv.Enabled
		return nil, nil
	})

	// VFEAncients
	typ(TypePod)
	method(TypePod+":StartOperation", []string{TypeOperation}, func(instance any, args []any) (any, error) {
		op, ok := args[0].(*Operation)
		if !ok {
			return nil, fmt.Errorf("StartOperation: no operation")
		}
		instance.(*Pod).Current = op
		return nil, nil
	})
	method(TypePod+":DevInstantSuccess", nil, func(instance any, _ []any) (any, error) {
		pod := instance.(*Pod)
		if pod.Current != nil {
			pod.Completed = append(pod.Completed, pod.Current.Kind)
			pod.Current = nil
		}
		return nil, nil
	})
	typ(TypeOperation)
	add(TypeOperation+":.ctor", ir.KindConstructor, 2, host.Constructor(func(args []any) (any, error) {
		pod, ok := args[0].(*Pod)
		if !ok {
			return nil, fmt.Errorf("operation needs a pod, got %T", args[0])
		}
		kind, _ := args[1].(string)
		return &Operation{Pod: pod, Kind: kind}, nil
	}))
	field(TypeOperation+":Pod", TypePod,
		func(v any) any { return v.(*Operation).Pod }, readOnly)
	field(TypeOperation+":Kind", "string",
		func(v any) any { return v.(*Operation).Kind }, readOnly)

	method(PodCancelGizmo, nil, func(instance any, _ []any) (any, error) {
		pod := instance.(*Pod)
		if pod.Current != nil {
			pod.Cancelled = append(pod.Cancelled, pod.Current.Kind)
			pod.Current = nil
		}
		return nil, nil
	})
	method(PodDevFailGizmo, nil, func(instance any, _ []any) (any, error) {
		pod := instance.(*Pod)
		if pod.Current != nil {
			pod.Failed = append(pod.Failed, pod.Current.Kind)
			pod.Current = nil
		}
		return nil, nil
	})
	typ(TypePodChoice)
	add(TypePodChoice+":.ctor", ir.KindConstructor, 2, host.Constructor(func(args []any) (any, error) {
		pod, ok := args[0].(*Pod)
		if !ok {
			return nil, fmt.Errorf("pod choice needs a pod, got %T", args[0])
		}
		kind, _ := args[1].(string)
		return &PodChoice{Pod: pod, Kind: kind}, nil
	}))
	field(TypePodChoice+":pod", TypePod,
		func(v any) any { return v.(*PodChoice).Pod }, readOnly)
	field(TypePodChoice+":kind", "string",
		func(v any) any { return v.(*PodChoice).Kind }, readOnly)
	method(PodChoiceInvoke, nil, func(instance any, _ []any) (any, error) {
		c := instance.(*PodChoice)
		return w.Call(TypePod+":StartOperation", c.Pod, &Operation{Pod: c.Pod, Kind: c.Kind})
	})

	typ(TypeChoosePowers)
	method(ChoosePowersContent, nil, func(any, []any) (any, error) { return nil, nil })
	method(TypeChoosePowers+":OnChosen", []string{"string", "string"}, func(instance any, args []any) (any, error) {
		instance.(*ChoosePowersDialog).onChosen(args[0].(string), args[1].(string))
		return nil, nil
	})

	// VFECore hiring
	typ(TypeHireDialog)
	method(HireDialogContent, nil, func(any, []any) (any, error) { return nil, nil })
	field(TypeHireDialog+":daysAmount", "int",
		func(v any) any { return v.(*HireDialog).DaysAmount },
		func(v any, val any) { v.(*HireDialog).DaysAmount, _ = val.(int) })
	field(TypeHireDialog+":curFaction", "string",
		func(v any) any { return v.(*HireDialog).CurFaction },
		func(v any, val any) { v.(*HireDialog).CurFaction, _ = val.(string) })
	field(TypeHireDialog+":hireData", TypeHireData,
		func(v any) any { return v.(*HireDialog).HireData },
		func(v any, val any) {
			data, _ := val.(map[string]int)
			v.(*HireDialog).HireData = data
		})
	method(TypeHireDialog+":OnAcceptKeyPressed", nil, func(instance any, _ []any) (any, error) {
		d := instance.(*HireDialog)
		data := make(map[string]int, len(d.HireData))
		for k, v := range d.HireData {
			data[k] = v
		}
		w.contracts = append(w.contracts, Contract{Faction: d.CurFaction, Days: d.DaysAmount, HireData: data})
		w.removeWindows(TypeHireDialog)
		return nil, nil
	})

	return table
}

// declareSeams makes every method interceptable. The dialog frames also
// expose the button call-site.
func (w *World) declareSeams() {
	for name, sym := range w.symbols {
		if sym.Kind == ir.KindMethod {
			w.hooks.Declare(name)
		}
	}
	w.hooks.Declare(ChoosePowersContent, SiteButtonText)
	w.hooks.Declare(HireDialogContent)
}
