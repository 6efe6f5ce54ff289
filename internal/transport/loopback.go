// Package transport provides an in-process total-order transport.
//
// The real replication transport is an external collaborator. Loopback
// implements the same contract for the simulator, the scenario harness and
// tests: every submitted operation gets the next global sequence number and is
// delivered to every attached peer, the origin included, in that order.
package transport

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/ir"
)

// Peer receives operations in total order.
type Peer interface {
	// Deliver hands one operation to the peer. Returns false if the peer no
	// longer accepts operations. Deliver runs under the transport lock and
	// must only enqueue: a nested Submit would deadlock.
	Deliver(op ir.Operation) bool
}

type attached struct {
	id   string
	peer Peer
}

// Loopback sequences operations and fans them out to attached peers.
//
// Thread-safety: Submit may be called from any goroutine; delivery order is
// the order in which Submit acquired the lock.
type Loopback struct {
	mu     sync.Mutex
	clock  *Clock
	peers  []attached
	logger zerolog.Logger
}

// NewLoopback creates a loopback transport with a fresh clock.
func NewLoopback(logger zerolog.Logger) *Loopback {
	return &Loopback{
		clock:  NewClock(),
		logger: logger.With().Str("component", "transport").Logger(),
	}
}

// Attach adds a peer. Peers receive operations in attach order.
func (l *Loopback) Attach(id string, p Peer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peers = append(l.peers, attached{id: id, peer: p})
}

// Peers returns the attached peer ids in attach order.
func (l *Loopback) Peers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, len(l.peers))
	for i, p := range l.peers {
		ids[i] = p.id
	}
	return ids
}

// Seq returns the last sequence number handed out.
func (l *Loopback) Seq() int64 {
	return l.clock.Current()
}

// Submit sequences one operation from origin and delivers it to every peer.
func (l *Loopback) Submit(origin, methodID string, args []byte) (ir.Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.clock.Next()
	id, err := ir.OperationID(origin, methodID, args, seq)
	if err != nil {
		return ir.Operation{}, fmt.Errorf("submit %s: %w", methodID, err)
	}
	op := ir.Operation{ID: id, Seq: seq, Origin: origin, Method: methodID, Args: args}

	l.logger.Debug().
		Int64("seq", seq).
		Str("origin", origin).
		Str("method_id", methodID).
		Msg("operation sequenced")

	for _, p := range l.peers {
		if !p.peer.Deliver(op) {
			l.logger.Warn().
				Str("peer", p.id).
				Int64("seq", seq).
				Msg("peer rejected delivery")
		}
	}
	return op, nil
}

// Endpoint returns the submit side of the transport for one peer.
func (l *Loopback) Endpoint(origin string) *Endpoint {
	return &Endpoint{loopback: l, origin: origin}
}

// Endpoint submits operations on behalf of one peer. It satisfies the sync
// registry's Sink.
type Endpoint struct {
	loopback *Loopback
	origin   string
}

// Origin returns the peer id the endpoint submits as.
func (e *Endpoint) Origin() string {
	return e.origin
}

// Submit sequences and broadcasts one operation.
func (e *Endpoint) Submit(methodID string, args []byte) error {
	_, err := e.loopback.Submit(e.origin, methodID, args)
	return err
}
