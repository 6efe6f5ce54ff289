package engine

import (
	"sync"

	"github.com/roach88/mpcompat/internal/ir"
)

// opQueue is a thread-safe FIFO of delivered operations.
//
// The transport enqueues from its own goroutine (or inline in tests) while
// the engine dequeues on the simulation thread. The queue is unbounded so
// delivery never blocks the transport.
//
// A buffered signal channel lets Run wait for work without polling and wake
// up on context cancellation.
type opQueue struct {
	mu     sync.Mutex
	ops    []ir.Operation
	closed bool
	signal chan struct{} // buffered, size 1
}

func newOpQueue() *opQueue {
	return &opQueue{
		ops:    make([]ir.Operation, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an operation to the back of the queue.
// Returns false if the queue is closed.
func (q *opQueue) Enqueue(op ir.Operation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.ops = append(q.ops, op)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front operation without blocking.
func (q *opQueue) TryDequeue() (ir.Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return ir.Operation{}, false
	}

	op := q.ops[0]
	// Drop the args reference so the backing array does not retain it.
	q.ops[0] = ir.Operation{}

	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}
	return op, true
}

// Wait returns a channel that signals when operations may be available.
// The channel is closed when the queue is closed.
func (q *opQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *opQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Closed reports whether Close was called.
func (q *opQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting operations and wakes any waiter.
func (q *opQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
