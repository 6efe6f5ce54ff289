package companion

import (
	"github.com/roach88/mpcompat/internal/host"
)

// slot holds one companion. The owner is kept by identity only, so the arena
// never keeps an agent alive.
type slot[C any] struct {
	owner       host.EntityID
	value       C
	initialized bool
	pending     bool // ensure operation enqueued by this peer
	live        bool
}

// Arena stores companions in a dense slice indexed by owner identity.
// Released slots are reused.
type Arena[C any] struct {
	index map[host.EntityID]int
	slots []slot[C]
	free  []int
}

// NewArena creates an empty arena.
func NewArena[C any]() *Arena[C] {
	return &Arena[C]{index: make(map[host.EntityID]int)}
}

func (a *Arena[C]) get(owner host.EntityID) (*slot[C], bool) {
	i, ok := a.index[owner]
	if !ok {
		return nil, false
	}
	return &a.slots[i], true
}

func (a *Arena[C]) insert(owner host.EntityID, value C) *slot[C] {
	s := slot[C]{owner: owner, value: value, live: true}

	var i int
	if n := len(a.free); n > 0 {
		i = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[i] = s
	} else {
		i = len(a.slots)
		a.slots = append(a.slots, s)
	}
	a.index[owner] = i
	return &a.slots[i]
}

// release frees the slot of owner. Returns false if owner had none.
func (a *Arena[C]) release(owner host.EntityID) bool {
	i, ok := a.index[owner]
	if !ok {
		return false
	}
	var zero slot[C]
	a.slots[i] = zero
	delete(a.index, owner)
	a.free = append(a.free, i)
	return true
}

// Len returns the number of live slots.
func (a *Arena[C]) Len() int {
	return len(a.index)
}

// Cap returns the number of allocated slots, live or free.
func (a *Arena[C]) Cap() int {
	return len(a.slots)
}

// owners returns the owners of live slots in slot order.
func (a *Arena[C]) owners() []host.EntityID {
	out := make([]host.EntityID, 0, len(a.index))
	for i := range a.slots {
		if a.slots[i].live {
			out = append(out, a.slots[i].owner)
		}
	}
	return out
}
