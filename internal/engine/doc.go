// Package engine applies replicated operations on one peer.
//
// # Architecture
//
// Single-writer loop:
// The transport delivers operations into a FIFO queue. The engine drains it on
// the peer's simulation thread, one operation at a time, and hands each to the
// sync registry. This keeps every registry, resolver and companion mutation on
// one thread.
//
// Total order:
// Operations carry the transport's global seq. The engine applies them
// strictly in seq order and drops duplicates. An operation that arrives ahead
// of its predecessor is held back until the gap is filled, never skipped.
//
// Failures:
// An operation that fails to apply (a reference that no longer resolves, an
// ambiguous secondary key, an unknown method) is logged with its seq and
// method, journaled as failed, and folded into the checksum. Processing then
// continues with the next operation. Retrying would make peers diverge.
//
// Desync detection:
// Every applied operation extends a rolling checksum over (operation id,
// outcome). Peers that applied the same operations with the same outcomes
// hold the same checksum.
package engine
