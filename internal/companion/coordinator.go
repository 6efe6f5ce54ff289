// Package companion coordinates lazily created per-agent companion objects so
// that every peer ends up with the same initialized companion.
//
// A local read creates an uninitialized placeholder on the spot and enqueues
// one replicated "ensure" operation. When that operation is applied, in the
// same global order on every peer, it creates, initializes or leaves alone the
// companion. Reads never wait on the network.
package companion

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/host"
)

// Factory builds companions.
type Factory[C any] struct {
	// New creates an uninitialized companion for owner. It must not touch
	// replicated state.
	New func(owner host.Entity) C

	// Init initializes a companion. Runs only from Ensure, so it runs on every
	// peer at the same point of the operation order.
	Init func(owner host.Entity, c C) error
}

// Coordinator owns the companions of one type on one peer.
//
// Not safe for concurrent use. Lookups and inserts happen on the single
// simulation thread, which makes check-then-insert atomic within a step.
type Coordinator[C any] struct {
	name    string
	factory Factory[C]
	arena   *Arena[C]
	ensure  func(owner host.Entity) error
	logger  zerolog.Logger
}

// New creates a coordinator for companions named name.
func New[C any](name string, factory Factory[C], logger zerolog.Logger) *Coordinator[C] {
	return &Coordinator[C]{
		name:    name,
		factory: factory,
		arena:   NewArena[C](),
		logger:  logger.With().Str("component", "companion").Str("companion", name).Logger(),
	}
}

// Name returns the companion type name.
func (c *Coordinator[C]) Name() string {
	return c.name
}

// Bind sets the function that enqueues the replicated ensure operation for an
// owner. Without a binding Get initializes companions in place, which is
// only correct for a single peer.
func (c *Coordinator[C]) Bind(ensure func(owner host.Entity) error) {
	c.ensure = ensure
}

// Get returns the companion of owner without blocking.
//
// An initialized companion is returned as is. Otherwise a placeholder is
// inserted (or the existing one reused) and the ensure operation is enqueued
// once per placeholder.
func (c *Coordinator[C]) Get(owner host.Entity) C {
	id := owner.EntityID()

	s, ok := c.arena.get(id)
	if ok && s.initialized {
		return s.value
	}
	if !ok {
		s = c.arena.insert(id, c.factory.New(owner))
		c.logger.Debug().
			Int64("owner", int64(id)).
			Msg("placeholder created")
	}
	if s.pending {
		return s.value
	}

	if c.ensure == nil {
		if err := c.Ensure(owner); err != nil {
			c.logger.Error().Err(err).Int64("owner", int64(id)).Msg("local initialization failed")
		}
		s, _ = c.arena.get(id)
		return s.value
	}

	s.pending = true
	value := s.value
	if err := c.ensure(owner); err != nil {
		// Leave the placeholder in place; the next Get retries the enqueue.
		if s, ok := c.arena.get(id); ok {
			s.pending = false
		}
		c.logger.Error().
			Err(err).
			Int64("owner", int64(id)).
			Msg("failed to enqueue companion initialization")
	}
	return value
}

// Ensure is the replicated half of the protocol. It creates and initializes
// the companion if missing, initializes a placeholder, and does nothing for
// an initialized companion.
func (c *Coordinator[C]) Ensure(owner host.Entity) error {
	if owner == nil {
		return fmt.Errorf("ensure %s: owner is nil", c.name)
	}
	id := owner.EntityID()

	s, ok := c.arena.get(id)
	if ok && s.initialized {
		return nil
	}
	if !ok {
		s = c.arena.insert(id, c.factory.New(owner))
	}
	if c.factory.Init != nil {
		if err := c.factory.Init(owner, s.value); err != nil {
			// Back to a plain placeholder, so the next Get asks again.
			if s, ok := c.arena.get(id); ok {
				s.pending = false
			}
			return fmt.Errorf("initialize %s for %d: %w", c.name, id, err)
		}
	}

	// Init may have called back into Get and grown the arena.
	s, _ = c.arena.get(id)
	s.initialized = true
	s.pending = false

	c.logger.Debug().
		Int64("owner", int64(id)).
		Msg("companion initialized")
	return nil
}

// Lookup returns the companion of owner without creating one.
func (c *Coordinator[C]) Lookup(owner host.EntityID) (C, bool) {
	s, ok := c.arena.get(owner)
	if !ok {
		var zero C
		return zero, false
	}
	return s.value, true
}

// Initialized reports whether owner has an initialized companion.
func (c *Coordinator[C]) Initialized(owner host.EntityID) bool {
	s, ok := c.arena.get(owner)
	return ok && s.initialized
}

// Release drops the companion of owner, for example when the host despawns
// the agent.
func (c *Coordinator[C]) Release(owner host.EntityID) bool {
	return c.arena.release(owner)
}

// Sweep releases every companion whose owner no longer exists in world and
// returns how many were released.
func (c *Coordinator[C]) Sweep(world host.World) int {
	released := 0
	for _, id := range c.arena.owners() {
		if _, alive := world.Entity(id); alive {
			continue
		}
		if c.arena.release(id) {
			released++
		}
	}
	if released > 0 {
		c.logger.Debug().Int("released", released).Msg("companions swept")
	}
	return released
}

// Len returns the number of live companions.
func (c *Coordinator[C]) Len() int {
	return c.arena.Len()
}

// Owners returns the owners with a live companion, in slot order.
func (c *Coordinator[C]) Owners() []host.EntityID {
	return c.arena.owners()
}
