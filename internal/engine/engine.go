package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/ir"
	"github.com/roach88/mpcompat/internal/store"
)

// Applier applies one replicated operation. Implemented by the sync registry.
type Applier interface {
	InvokeReplicated(methodID string, encodedArgs []byte) error
}

// Result is the outcome of one applied operation.
type Result struct {
	Op       ir.Operation
	Status   ir.OperationStatus
	Err      error
	Checksum string
}

// DefaultMaxOpsPerStep bounds a single Step.
const DefaultMaxOpsPerStep = 1000

// Engine applies delivered operations for one peer.
//
// Thread-safety model:
//   - Deliver(): safe from any goroutine
//   - Step() / Run(): must be called from exactly one goroutine, the peer's
//     simulation thread
type Engine struct {
	peer     string
	applier  Applier
	queue    *opQueue
	journal  *store.Store
	observer func(Result)
	logger   zerolog.Logger

	// ahead holds operations delivered before their predecessor, by seq.
	ahead map[int64]ir.Operation

	maxOps   int
	lastSeq  int64
	checksum string
	applied  int
	failed   int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithJournal records every applied operation in s.
func WithJournal(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.journal = s
	}
}

// WithObserver calls fn after every applied operation.
func WithObserver(fn func(Result)) EngineOption {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithMaxOpsPerStep bounds how many operations a single Step applies.
func WithMaxOpsPerStep(n int) EngineOption {
	return func(e *Engine) {
		e.maxOps = n
	}
}

// WithStartSeq resumes after seq, for a peer that already applied a prefix.
func WithStartSeq(seq int64, checksum string) EngineOption {
	return func(e *Engine) {
		e.lastSeq = seq
		e.checksum = checksum
	}
}

// New creates an engine for peer.
func New(peer string, applier Applier, logger zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		peer:    peer,
		applier: applier,
		queue:   newOpQueue(),
		ahead:   make(map[int64]ir.Operation),
		maxOps:  DefaultMaxOpsPerStep,
		logger:  logger.With().Str("component", "engine").Str("peer", peer).Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Peer returns the peer id.
func (e *Engine) Peer() string {
	return e.peer
}

// Deliver queues an operation. It implements transport.Peer.
// Returns false once the engine has been stopped.
func (e *Engine) Deliver(op ir.Operation) bool {
	return e.queue.Enqueue(op)
}

// QueueLen returns the number of delivered, unapplied operations.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Checksum returns the rolling checksum after the last applied operation.
func (e *Engine) Checksum() string {
	return e.checksum
}

// LastSeq returns the seq of the last applied operation.
func (e *Engine) LastSeq() int64 {
	return e.lastSeq
}

// Stats returns how many operations applied and failed.
func (e *Engine) Stats() (applied, failed int) {
	return e.applied, e.failed
}

// Step applies every queued operation, including any that applying them
// causes to be delivered, and returns how many were processed.
//
// Failed operations are logged and journaled; they do not stop the step. An
// operation that arrives before its predecessor is held back and applied once
// the gap is filled. Step reports a sequence gap while any operation is still
// held back. A journal failure stops the step.
func (e *Engine) Step(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if processed >= e.maxOps && e.queue.Len() > 0 {
			return processed, &RuntimeError{
				Code:    ErrCodeStepLimit,
				Message: "too many operations in one step; the rest stay queued",
				Peer:    e.peer,
			}
		}
		op, ok := e.queue.TryDequeue()
		if !ok {
			return processed, e.gapError()
		}
		n, err := e.process(ctx, op)
		processed += n
		if err != nil {
			return processed, err
		}
	}
}

// Run applies operations as they are delivered until ctx is cancelled or
// Stop is called. A journal failure stops it.
//
// Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Msg("engine starting")

	for {
		op, ok := e.queue.TryDequeue()
		if ok {
			if _, err := e.process(ctx, op); err != nil {
				e.logger.Error().
					Err(err).
					Int64("seq", op.Seq).
					Str("method_id", op.Method).
					Str("event", "engine_error").
					Msg("engine stopping")
				e.queue.Close()
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info().Msg("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue.
			if e.queue.Len() == 0 && e.queue.Closed() {
				e.logger.Info().Msg("engine stopping: queue closed")
				return e.gapError()
			}
		}
	}
}

// Stop closes the queue. Run returns once it drained what was delivered.
func (e *Engine) Stop() {
	e.queue.Close()
}

// process applies op, or holds it back when it arrived early, then applies
// every held-back operation that op made contiguous. Returns how many
// operations it consumed.
func (e *Engine) process(ctx context.Context, op ir.Operation) (int, error) {
	if op.Seq <= e.lastSeq {
		e.logger.Debug().
			Int64("seq", op.Seq).
			Int64("last_seq", e.lastSeq).
			Msg("duplicate operation dropped")
		return 1, nil
	}
	if op.Seq != e.lastSeq+1 {
		e.ahead[op.Seq] = op
		e.logger.Warn().
			Int64("seq", op.Seq).
			Int64("last_seq", e.lastSeq).
			Str("event", "sequence_gap").
			Msg("operation held until its predecessor arrives")
		return 0, nil
	}

	n := 0
	for {
		if err := e.apply(ctx, op); err != nil {
			return n, err
		}
		n++
		next, ok := e.ahead[e.lastSeq+1]
		if !ok {
			return n, nil
		}
		delete(e.ahead, next.Seq)
		op = next
	}
}

// gapError reports the earliest held-back operation, or nil.
func (e *Engine) gapError() error {
	if len(e.ahead) == 0 {
		return nil
	}
	var first ir.Operation
	for seq, op := range e.ahead {
		if first.Seq == 0 || seq < first.Seq {
			first = op
		}
	}
	return &RuntimeError{
		Code:     ErrCodeSequenceGap,
		Message:  fmt.Sprintf("operation arrived out of order; waiting for seq %d", e.lastSeq+1),
		Peer:     e.peer,
		Seq:      first.Seq,
		MethodID: first.Method,
	}
}

// HeldBack returns how many operations wait for a missing predecessor.
func (e *Engine) HeldBack() int {
	return len(e.ahead)
}

// apply runs the next operation in sequence. Only journal errors are
// returned; application failures are recorded and swallowed.
func (e *Engine) apply(ctx context.Context, op ir.Operation) error {
	status := ir.StatusApplied
	applyErr := e.applier.InvokeReplicated(op.Method, op.Args)
	if applyErr != nil {
		status = ir.StatusFailed
		e.failed++
		e.logger.Error().
			Err(applyErr).
			Int64("seq", op.Seq).
			Str("origin", op.Origin).
			Str("method_id", op.Method).
			Str("event", "operation_failed").
			Msg("replicated operation failed")
	} else {
		e.applied++
		e.logger.Debug().
			Int64("seq", op.Seq).
			Str("method_id", op.Method).
			Msg("operation applied")
	}

	e.lastSeq = op.Seq
	e.checksum = ir.FoldChecksum(e.checksum, op.ID, string(status))

	if e.journal != nil {
		if err := e.journal.Append(ctx, store.NewRecord(e.peer, op, status, applyErr, e.checksum)); err != nil {
			return err
		}
	}
	if e.observer != nil {
		e.observer(Result{Op: op, Status: status, Err: applyErr, Checksum: e.checksum})
	}
	return nil
}
