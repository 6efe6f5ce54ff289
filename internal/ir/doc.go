// Package ir provides the wire and declaration types shared by every mpcompat
// component.
//
// This package contains type definitions and canonical encoding only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float values on the wire - floating point formatting differs between
//     peers and breaks lockstep determinism. Use Int.
//   - Object keys are always emitted in sorted order, so the same logical
//     value encodes to the same bytes on every peer.
//   - Strings are NFC normalised at the encoding boundary.
//   - Operations are ordered by the transport-assigned Seq, never by wall clock.
package ir
