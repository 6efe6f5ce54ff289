// Package store provides the SQLite-backed operation journal.
//
// Every peer appends each replicated operation it applied, with the outcome
// and the rolling checksum after it. Comparing the last checksum of two peers
// is the cheapest desync check there is; comparing their journals row by row
// pinpoints the first diverging operation.
//
// Rows are keyed by (peer, seq) and appends are idempotent. Reads always
// order by seq.
package store
