package resolve

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

// Strategy identifies how a reference is reconstructed on a peer.
type Strategy string

const (
	// StrategyNull encodes an absent reference.
	StrategyNull Strategy = "null"
	// StrategyDirect encodes an entity by its network-wide identity.
	StrategyDirect Strategy = "direct"
	// StrategyOwnerIndex encodes an element by its position in the owner's
	// ordered collection.
	StrategyOwnerIndex Strategy = "owner_index"
	// StrategyOwnerKey encodes a candidate by a secondary key unique among
	// the owner's current candidates.
	StrategyOwnerKey Strategy = "owner_key"
	// StrategyWorker encodes an owner through a registered sync worker.
	StrategyWorker Strategy = "worker"
)

// Key is a peer-reconstructible reference.
type Key struct {
	Strategy Strategy
	Type     string // concrete type of the referenced object

	ID host.EntityID // direct

	Owner *Key // owner_index, owner_key

	Index       int    // owner_index
	Fingerprint string // owner_index, optional

	Secondary string // owner_key

	Payload ir.Value // worker
}

// NullKey is the key of a nil reference.
var NullKey = Key{Strategy: StrategyNull}

// Value returns the wire form of the key.
func (k Key) Value() ir.Value {
	m := ir.Map{"s": ir.String(k.Strategy)}
	if k.Strategy == StrategyNull {
		return m
	}
	m["type"] = ir.String(k.Type)

	switch k.Strategy {
	case StrategyDirect:
		m["id"] = ir.Int(k.ID)
	case StrategyOwnerIndex:
		m["owner"] = k.Owner.Value()
		m["index"] = ir.Int(k.Index)
		if k.Fingerprint != "" {
			m["fp"] = ir.String(k.Fingerprint)
		}
	case StrategyOwnerKey:
		m["owner"] = k.Owner.Value()
		m["key"] = ir.String(k.Secondary)
	case StrategyWorker:
		if k.Payload == nil {
			m["payload"] = ir.Null{}
		} else {
			m["payload"] = k.Payload
		}
	}
	return m
}

// ParseKey reads a key from its wire form.
func ParseKey(v ir.Value) (Key, error) {
	m, ok := v.(ir.Map)
	if !ok {
		return Key{}, fmt.Errorf("reference key must be a map, got %T", v)
	}
	s, err := ir.AsString(m.Get("s"))
	if err != nil {
		return Key{}, fmt.Errorf("reference key strategy: %w", err)
	}

	k := Key{Strategy: Strategy(s)}
	if k.Strategy == StrategyNull {
		return k, nil
	}
	if k.Type, err = ir.AsString(m.Get("type")); err != nil {
		return Key{}, fmt.Errorf("reference key type: %w", err)
	}

	switch k.Strategy {
	case StrategyDirect:
		id, err := ir.AsInt(m.Get("id"))
		if err != nil {
			return Key{}, fmt.Errorf("direct key id: %w", err)
		}
		k.ID = host.EntityID(id)

	case StrategyOwnerIndex:
		if k.Owner, err = parseOwner(m); err != nil {
			return Key{}, err
		}
		idx, err := ir.AsInt(m.Get("index"))
		if err != nil {
			return Key{}, fmt.Errorf("owner_index key index: %w", err)
		}
		k.Index = int(idx)
		if fp, ok := m["fp"]; ok {
			if k.Fingerprint, err = ir.AsString(fp); err != nil {
				return Key{}, fmt.Errorf("owner_index key fingerprint: %w", err)
			}
		}

	case StrategyOwnerKey:
		if k.Owner, err = parseOwner(m); err != nil {
			return Key{}, err
		}
		if k.Secondary, err = ir.AsString(m.Get("key")); err != nil {
			return Key{}, fmt.Errorf("owner_key key: %w", err)
		}

	case StrategyWorker:
		k.Payload = m.Get("payload")

	default:
		return Key{}, fmt.Errorf("unknown reference strategy %q", s)
	}
	return k, nil
}

func parseOwner(m ir.Map) (*Key, error) {
	owner, err := ParseKey(m.Get("owner"))
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	if owner.Strategy == StrategyNull {
		return nil, fmt.Errorf("owner of a keyed reference cannot be null")
	}
	return &owner, nil
}

// String renders the key for logs.
func (k Key) String() string {
	switch k.Strategy {
	case StrategyNull:
		return "null"
	case StrategyDirect:
		return fmt.Sprintf("%s#%d", k.Type, k.ID)
	case StrategyOwnerIndex:
		return fmt.Sprintf("%s[%d]@%s", k.Type, k.Index, k.Owner)
	case StrategyOwnerKey:
		return fmt.Sprintf("%s{%s}@%s", k.Type, k.Secondary, k.Owner)
	case StrategyWorker:
		return fmt.Sprintf("%s(worker)", k.Type)
	default:
		return string(k.Strategy)
	}
}
