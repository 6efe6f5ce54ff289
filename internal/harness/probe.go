package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/mpcompat/internal/host"
)

// probe reads one piece of host state by a dotted path:
//
//	pawn.<id>.power|weakness|spawned
//	ability.<pawn>.<def>.learned|casts|auto_cast|initialized|last_target
//	manager.<pawn>.exists|verbs|enabled.<i>
//	pod.<id>.operation|completed
//	hire.open|days|faction|data.<kind>
//	powers.open
//	contracts
//
// A missing ability reports learned as false and every other field as an
// error.
func probe(p *peer, path string) (any, error) {
	parts := strings.Split(path, ".")
	bad := func() (any, error) { return nil, fmt.Errorf("unknown probe %q", path) }
	id := func(i int) (host.EntityID, error) {
		if i >= len(parts) {
			return 0, fmt.Errorf("probe %q: missing id", path)
		}
		n, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("probe %q: %w", path, err)
		}
		return host.EntityID(n), nil
	}

	switch parts[0] {
	case "pawn":
		if len(parts) != 3 {
			return bad()
		}
		pid, err := id(1)
		if err != nil {
			return nil, err
		}
		pawn, err := p.pawn(pid)
		if err != nil {
			return nil, err
		}
		switch parts[2] {
		case "power":
			return pawn.Power, nil
		case "weakness":
			return pawn.Weakness, nil
		case "spawned":
			return pawn.Spawned, nil
		}

	case "ability":
		if len(parts) != 4 {
			return bad()
		}
		pid, err := id(1)
		if err != nil {
			return nil, err
		}
		pawn, err := p.pawn(pid)
		if err != nil {
			return nil, err
		}
		a := pawn.Abilities().Find(parts[2])
		if parts[3] == "learned" {
			return a != nil, nil
		}
		if a == nil {
			return nil, fmt.Errorf("%s: pawn %d has no ability %s", p.id, pid, parts[2])
		}
		switch parts[3] {
		case "casts":
			return a.Casts, nil
		case "auto_cast":
			return a.AutoCast, nil
		case "initialized":
			return a.Initialized, nil
		case "last_target":
			if a.LastTarget == nil {
				return 0, nil
			}
			return int(a.LastTarget.ID), nil
		}

	case "manager":
		if len(parts) < 3 {
			return bad()
		}
		pid, err := id(1)
		if err != nil {
			return nil, err
		}
		pawn, err := p.pawn(pid)
		if err != nil {
			return nil, err
		}
		// Lookups are never creating, so probing does not submit.
		m, err := p.world.GetManagerFor(pawn, false)
		if err != nil {
			return nil, err
		}
		switch {
		case parts[2] == "exists" && len(parts) == 3:
			return m != nil, nil
		case m == nil:
			return nil, fmt.Errorf("%s: pawn %d has no verb manager", p.id, pid)
		case parts[2] == "verbs" && len(parts) == 3:
			return len(m.Verbs), nil
		case parts[2] == "enabled" && len(parts) == 4:
			i, err := strconv.Atoi(parts[3])
			if err != nil || i < 0 || i >= len(m.Verbs) {
				return nil, fmt.Errorf("%s: pawn %d has no verb %s", p.id, pid, parts[3])
			}
			return m.Verbs[i].Enabled, nil
		}

	case "pod":
		if len(parts) != 3 {
			return bad()
		}
		podID, err := id(1)
		if err != nil {
			return nil, err
		}
		pod, err := p.pod(podID)
		if err != nil {
			return nil, err
		}
		switch parts[2] {
		case "operation":
			if pod.Current == nil {
				return "", nil
			}
			return pod.Current.Kind, nil
		case "completed":
			return strings.Join(pod.Completed, ","), nil
		}

	case "hire":
		d := p.world.HireDialog()
		if len(parts) == 2 && parts[1] == "open" {
			return d != nil, nil
		}
		if d == nil {
			return nil, fmt.Errorf("%s: no hiring dialog is open", p.id)
		}
		switch {
		case len(parts) == 2 && parts[1] == "days":
			return d.DaysAmount, nil
		case len(parts) == 2 && parts[1] == "faction":
			return d.CurFaction, nil
		case len(parts) == 3 && parts[1] == "data":
			return d.HireData[parts[2]], nil
		}

	case "powers":
		if len(parts) == 2 && parts[1] == "open" {
			return p.world.ChoosePowers() != nil, nil
		}

	case "contracts":
		if len(parts) == 1 {
			return len(p.world.Contracts()), nil
		}
	}
	return bad()
}
