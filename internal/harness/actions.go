package harness

import (
	"fmt"
	"sort"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/host/simhost"
)

// action is one named scenario action run against a peer.
type action func(p *peer, a *args) error

// setupActions build the world. They touch host state directly.
var setupActions = map[string]action{
	"add_pawn": func(p *peer, a *args) error {
		p.world.AddPawn(a.entity("id"), a.str("name"), a.strs("weapons")...)
		return a.err
	},
	"give_ability": func(p *peer, a *args) error {
		pawn, err := p.pawn(a.entity("pawn"))
		if err != nil {
			return err
		}
		pawn.Abilities().Give(a.str("ability"))
		return a.err
	},
	"add_pod": func(p *peer, a *args) error {
		p.world.AddPod(a.entity("id"))
		return a.err
	},
	"select_pod": selectPod,
	"open_hire_dialog": func(p *peer, a *args) error {
		p.world.OpenHireDialog(a.str("faction"), a.strs("kinds")...)
		return a.err
	},
	"open_choose_powers": func(p *peer, a *args) error {
		pawn, err := p.pawn(a.entity("pawn"))
		if err != nil {
			return err
		}
		var options []simhost.PowerOption
		for _, o := range a.list("options") {
			opt := args{m: asMap(o)}
			options = append(options, simhost.PowerOption{Power: opt.str("power"), Weakness: opt.str("weakness")})
			if opt.err != nil {
				return opt.err
			}
		}
		p.world.OpenChoosePowers(pawn, options...)
		return a.err
	},
}

// stepActions are player input. They run through the host's seams, so the
// installed groups see them.
var stepActions = map[string]action{
	"cast": func(p *peer, a *args) error {
		ability, err := p.ability(a.entity("pawn"), a.str("ability"))
		if err != nil {
			return err
		}
		var target *simhost.Pawn
		if a.has("target") {
			if target, err = p.pawn(a.entity("target")); err != nil {
				return err
			}
		}
		return p.world.UseAbility(ability, target, false)
	},
	"toggle_autocast": func(p *peer, a *args) error {
		ability, err := p.ability(a.entity("pawn"), a.str("ability"))
		if err != nil {
			return err
		}
		return p.world.UseAbility(ability, nil, true)
	},
	"learn": func(p *peer, a *args) error {
		pawn, err := p.pawn(a.entity("pawn"))
		if err != nil {
			return err
		}
		_, err = p.world.Call(simhost.TypeCompAbilities+":GiveAbility", pawn.Abilities(), a.str("ability"))
		return err
	},
	"get_verb_manager": func(p *peer, a *args) error {
		pawn, err := p.pawn(a.entity("pawn"))
		if err != nil {
			return err
		}
		_, err = p.world.GetManagerFor(pawn, a.boolean("create"))
		return err
	},
	"toggle_verb": func(p *peer, a *args) error {
		pawn, err := p.pawn(a.entity("pawn"))
		if err != nil {
			return err
		}
		m, err := p.world.GetManagerFor(pawn, false)
		if err != nil {
			return err
		}
		i := int(a.integer("verb"))
		if m == nil || i < 0 || i >= len(m.Verbs) {
			return fmt.Errorf("pawn %d has no verb %d", pawn.ID, i)
		}
		_, err = p.world.Call(simhost.TypeManagedVerb+":Toggle", m.Verbs[i])
		return err
	},
	"despawn": func(p *peer, a *args) error {
		return p.world.Despawn(a.entity("pawn"))
	},
	"sweep": func(p *peer, _ *args) error {
		p.rt.Sweep()
		return nil
	},
	"select_pod": selectPod,
	"start_operation": func(p *peer, a *args) error {
		pod, err := p.pod(a.entity("pod"))
		if err != nil {
			return err
		}
		_, err = p.world.Call(simhost.TypePod+":StartOperation", pod, &simhost.Operation{Pod: pod, Kind: a.str("kind")})
		return err
	},
	"instant_success": func(p *peer, a *args) error {
		pod, err := p.pod(a.entity("pod"))
		if err != nil {
			return err
		}
		_, err = p.world.Call(simhost.TypePod+":DevInstantSuccess", pod)
		return err
	},
	"hire_frame": func(p *peer, a *args) error {
		d := p.world.HireDialog()
		if d == nil {
			return fmt.Errorf("no hiring dialog is open")
		}
		data := a.m["hire"]
		err := p.world.HireDialogFrame(d, func(d *simhost.HireDialog) {
			if a.has("days") {
				d.DaysAmount = int(a.integer("days"))
			}
			if a.has("faction") {
				d.CurFaction = a.str("faction")
			}
			for k, v := range asMap(data) {
				if n, ok := v.(int); ok {
					d.HireData[k] = n
				}
			}
		})
		if err != nil {
			return err
		}
		return a.err
	},
	"hire_accept": func(p *peer, _ *args) error {
		d := p.world.HireDialog()
		if d == nil {
			return fmt.Errorf("no hiring dialog is open")
		}
		_, err := p.world.Call(simhost.TypeHireDialog+":OnAcceptKeyPressed", d)
		return err
	},
	"choose_power": func(p *peer, a *args) error {
		d := p.world.ChoosePowers()
		if d == nil {
			return fmt.Errorf("no power choice dialog is open")
		}
		return p.world.ChoosePowersFrame(d, a.str("power"))
	},
}

func selectPod(p *peer, a *args) error {
	pod, err := p.pod(a.entity("pod"))
	if err != nil {
		return err
	}
	p.world.Select(pod)
	return a.err
}

// actionNames lists the known actions of a table, sorted.
func actionNames(table map[string]action) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// args reads YAML-decoded action arguments. The first bad argument is kept
// in err; later reads return zero values.
type args struct {
	m   map[string]any
	err error
}

func (a *args) has(key string) bool {
	_, ok := a.m[key]
	return ok
}

func (a *args) fail(key, want string) {
	if a.err == nil {
		a.err = fmt.Errorf("argument %q: want %s, got %T", key, want, a.m[key])
	}
}

func (a *args) str(key string) string {
	s, ok := a.m[key].(string)
	if !ok {
		a.fail(key, "string")
	}
	return s
}

func (a *args) integer(key string) int64 {
	switch v := a.m[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		return int64(v)
	}
	a.fail(key, "integer")
	return 0
}

func (a *args) entity(key string) host.EntityID {
	return host.EntityID(a.integer(key))
}

func (a *args) boolean(key string) bool {
	if !a.has(key) {
		return false
	}
	b, ok := a.m[key].(bool)
	if !ok {
		a.fail(key, "bool")
	}
	return b
}

func (a *args) list(key string) []any {
	if !a.has(key) {
		return nil
	}
	l, ok := a.m[key].([]any)
	if !ok {
		a.fail(key, "list")
	}
	return l
}

func (a *args) strs(key string) []string {
	var out []string
	for _, v := range a.list(key) {
		s, ok := v.(string)
		if !ok {
			a.fail(key, "list of strings")
			return nil
		}
		out = append(out, s)
	}
	return out
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
