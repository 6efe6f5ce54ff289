// Package resolve converts in-memory object references into keys that any
// peer can turn back into the equivalent object, given equivalent owner state.
//
// An object with a network-wide identity (a host.Entity) is encoded directly.
// Anything else needs a Rule naming how to reach it from an owner that can
// itself be encoded: by position in the owner's ordered collection, or by a
// secondary key unique among the owner's candidates.
package resolve

import (
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
)

// Rule tells the resolver how to reach objects of one concrete type.
type Rule struct {
	Type     string
	Strategy Strategy

	// Owner returns the object that owns v. Required for keyed strategies.
	Owner func(v any) any

	// Collection returns the owner's current ordered collection (owner_index)
	// or candidate set (owner_key).
	Collection func(owner any) []any

	// SecondaryKey returns the stable key of a candidate (owner_key).
	SecondaryKey func(v any) string

	// Fingerprint optionally identifies an element beyond its position. When
	// set, decoding an index whose element no longer matches fails instead of
	// returning the element that shifted into place.
	Fingerprint func(v any) string
}

func (r Rule) validate() error {
	if r.Type == "" {
		return fmt.Errorf("rule type is required")
	}
	switch r.Strategy {
	case StrategyDirect:
		return nil
	case StrategyOwnerIndex, StrategyOwnerKey:
		if r.Owner == nil || r.Collection == nil {
			return fmt.Errorf("rule for %s: %s requires Owner and Collection", r.Type, r.Strategy)
		}
		if r.Strategy == StrategyOwnerKey && r.SecondaryKey == nil {
			return fmt.Errorf("rule for %s: owner_key requires SecondaryKey", r.Type)
		}
		return nil
	default:
		return fmt.Errorf("rule for %s: unsupported strategy %q", r.Type, r.Strategy)
	}
}

// OwnerCodec encodes objects that have no rule and no entity identity, such
// as companions and other values with a registered sync worker.
type OwnerCodec interface {
	EncodeOwner(typeName string, v any) (ir.Value, error)
	DecodeOwner(typeName string, payload ir.Value) (any, error)
	HasWorker(typeName string) bool
}

// Resolver encodes and decodes references on one peer.
type Resolver struct {
	world  host.World
	rules  map[string]Rule
	codec  OwnerCodec
	logger zerolog.Logger
}

// New creates a resolver over the entities of world.
func New(world host.World, logger zerolog.Logger) *Resolver {
	return &Resolver{
		world:  world,
		rules:  make(map[string]Rule),
		logger: logger.With().Str("component", "resolve").Logger(),
	}
}

// SetCodec installs the codec used for owners without a rule.
func (r *Resolver) SetCodec(c OwnerCodec) {
	r.codec = c
}

// AddRule registers the rule for one type. Each type has at most one rule.
func (r *Resolver) AddRule(rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	if _, exists := r.rules[rule.Type]; exists {
		return fmt.Errorf("reference rule for %s already registered", rule.Type)
	}
	r.rules[rule.Type] = rule
	r.logger.Debug().
		Str("type", rule.Type).
		Str("strategy", string(rule.Strategy)).
		Msg("reference rule added")
	return nil
}

// AddRules registers several rules atomically: if any rule is invalid or
// already registered, none is added.
func (r *Resolver) AddRules(rules []Rule) error {
	if err := r.CheckRules(rules); err != nil {
		return err
	}
	for _, rule := range rules {
		r.rules[rule.Type] = rule
		r.logger.Debug().
			Str("type", rule.Type).
			Str("strategy", string(rule.Strategy)).
			Msg("reference rule added")
	}
	return nil
}

// CheckRules reports the error AddRules would return without adding anything.
func (r *Resolver) CheckRules(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if err := rule.validate(); err != nil {
			return err
		}
		if _, exists := r.rules[rule.Type]; exists || seen[rule.Type] {
			return fmt.Errorf("reference rule for %s already registered", rule.Type)
		}
		seen[rule.Type] = true
	}
	return nil
}

// HasRule reports whether typeName has a rule.
func (r *Resolver) HasRule(typeName string) bool {
	_, ok := r.rules[typeName]
	return ok
}

// Reset drops every rule.
func (r *Resolver) Reset() {
	r.rules = make(map[string]Rule)
	r.codec = nil
}

// Encode builds the key for v.
func (r *Resolver) Encode(v any) (Key, error) {
	if isNil(v) {
		return NullKey, nil
	}
	typeName := host.TypeNameOf(v)

	rule, ok := r.rules[typeName]
	if !ok {
		if e, isEntity := v.(host.Entity); isEntity {
			return Key{Strategy: StrategyDirect, Type: typeName, ID: e.EntityID()}, nil
		}
		if r.codec != nil && r.codec.HasWorker(typeName) {
			payload, err := r.codec.EncodeOwner(typeName, v)
			if err != nil {
				return Key{}, fmt.Errorf("encode %s through worker: %w", typeName, err)
			}
			return Key{Strategy: StrategyWorker, Type: typeName, Payload: payload}, nil
		}
		return Key{}, fmt.Errorf("no reference strategy for type %s", typeName)
	}

	switch rule.Strategy {
	case StrategyDirect:
		e, isEntity := v.(host.Entity)
		if !isEntity {
			return Key{}, fmt.Errorf("direct rule for %s but value has no entity identity", typeName)
		}
		return Key{Strategy: StrategyDirect, Type: typeName, ID: e.EntityID()}, nil
	case StrategyOwnerIndex:
		return r.encodeIndex(rule, v)
	case StrategyOwnerKey:
		return r.encodeSecondary(rule, v)
	}
	return Key{}, fmt.Errorf("unsupported strategy %q", rule.Strategy)
}

func (r *Resolver) encodeOwner(rule Rule, v any) (*Key, any, error) {
	owner := rule.Owner(v)
	if isNil(owner) {
		return nil, nil, notFound(rule.Strategy, rule.Type, "object has no owner")
	}
	ok, err := r.Encode(owner)
	if err != nil {
		return nil, nil, fmt.Errorf("encode owner of %s: %w", rule.Type, err)
	}
	return &ok, owner, nil
}

func (r *Resolver) encodeIndex(rule Rule, v any) (Key, error) {
	ownerKey, owner, err := r.encodeOwner(rule, v)
	if err != nil {
		return Key{}, err
	}

	index := -1
	for i, el := range rule.Collection(owner) {
		if same(el, v) {
			index = i
			break
		}
	}
	if index < 0 {
		return Key{}, notFound(StrategyOwnerIndex, rule.Type, "object is not in its owner's collection")
	}

	k := Key{Strategy: StrategyOwnerIndex, Type: rule.Type, Owner: ownerKey, Index: index}
	if rule.Fingerprint != nil {
		k.Fingerprint = rule.Fingerprint(v)
	}
	return k, nil
}

func (r *Resolver) encodeSecondary(rule Rule, v any) (Key, error) {
	ownerKey, owner, err := r.encodeOwner(rule, v)
	if err != nil {
		return Key{}, err
	}

	secondary := rule.SecondaryKey(v)
	if _, err := findSecondary(rule, owner, secondary); err != nil {
		return Key{}, err
	}
	return Key{Strategy: StrategyOwnerKey, Type: rule.Type, Owner: ownerKey, Secondary: secondary}, nil
}

// Decode reconstructs the object for k on this peer.
func (r *Resolver) Decode(k Key) (any, error) {
	switch k.Strategy {
	case StrategyNull:
		return nil, nil

	case StrategyDirect:
		if r.world == nil {
			return nil, notFound(StrategyDirect, k.Type, "no world attached")
		}
		e, ok := r.world.Entity(k.ID)
		if !ok {
			return nil, notFound(StrategyDirect, k.Type, "entity %d does not exist", k.ID)
		}
		if got := host.TypeNameOf(e); got != k.Type {
			return nil, notFound(StrategyDirect, k.Type, "entity %d is now a %s", k.ID, got)
		}
		return e, nil

	case StrategyWorker:
		if r.codec == nil {
			return nil, fmt.Errorf("no codec to decode worker key for %s", k.Type)
		}
		return r.codec.DecodeOwner(k.Type, k.Payload)

	case StrategyOwnerIndex:
		rule, owner, err := r.decodeOwner(k)
		if err != nil {
			return nil, err
		}
		items := rule.Collection(owner)
		if k.Index < 0 || k.Index >= len(items) {
			return nil, notFound(StrategyOwnerIndex, k.Type, "index %d out of range (len %d)", k.Index, len(items))
		}
		el := items[k.Index]
		if k.Fingerprint != "" && rule.Fingerprint != nil && rule.Fingerprint(el) != k.Fingerprint {
			return nil, notFound(StrategyOwnerIndex, k.Type, "element at index %d no longer matches %q", k.Index, k.Fingerprint)
		}
		return el, nil

	case StrategyOwnerKey:
		rule, owner, err := r.decodeOwner(k)
		if err != nil {
			return nil, err
		}
		return findSecondary(rule, owner, k.Secondary)
	}
	return nil, fmt.Errorf("unknown reference strategy %q", k.Strategy)
}

// DecodeValue parses and decodes a wire key.
func (r *Resolver) DecodeValue(v ir.Value) (any, error) {
	k, err := ParseKey(v)
	if err != nil {
		return nil, err
	}
	return r.Decode(k)
}

func (r *Resolver) decodeOwner(k Key) (Rule, any, error) {
	rule, ok := r.rules[k.Type]
	if !ok {
		return Rule{}, nil, fmt.Errorf("no reference rule for type %s", k.Type)
	}
	if rule.Strategy != k.Strategy {
		return Rule{}, nil, fmt.Errorf("key strategy %s does not match rule %s for %s", k.Strategy, rule.Strategy, k.Type)
	}
	if k.Owner == nil {
		return Rule{}, nil, fmt.Errorf("%s key for %s has no owner", k.Strategy, k.Type)
	}
	owner, err := r.Decode(*k.Owner)
	if err != nil {
		return Rule{}, nil, fmt.Errorf("decode owner of %s: %w", k.Type, err)
	}
	if isNil(owner) {
		return Rule{}, nil, notFound(k.Strategy, k.Type, "owner %s resolved to nothing", k.Owner)
	}
	return rule, owner, nil
}

// findSecondary scans the current candidates for the unique match.
func findSecondary(rule Rule, owner any, secondary string) (any, error) {
	var match any
	count := 0
	for _, c := range rule.Collection(owner) {
		if isNil(c) || rule.SecondaryKey(c) != secondary {
			continue
		}
		count++
		if count == 1 {
			match = c
		}
	}
	switch count {
	case 0:
		return nil, notFound(StrategyOwnerKey, rule.Type, "no candidate with key %q", secondary)
	case 1:
		return match, nil
	default:
		return nil, ambiguous(StrategyOwnerKey, rule.Type, "%d candidates share key %q", count, secondary)
	}
}

// same reports identity: pointer equality for pointers, value equality for
// other comparable values. Incomparable values are never the same.
func same(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Comparable() {
		return false
	}
	return va.Equal(vb)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
