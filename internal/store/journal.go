package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mpcompat/internal/ir"
)

// Record is one applied operation in a peer's journal.
type Record struct {
	Peer     string
	Seq      int64
	ID       string
	Origin   string
	Method   string
	Args     []byte // canonical wire bytes
	Status   ir.OperationStatus
	Error    string
	Checksum string // rolling checksum after this operation
}

// NewRecord builds the journal record for op as applied by peer.
func NewRecord(peer string, op ir.Operation, status ir.OperationStatus, applyErr error, checksum string) Record {
	r := Record{
		Peer:     peer,
		Seq:      op.Seq,
		ID:       op.ID,
		Origin:   op.Origin,
		Method:   op.Method,
		Args:     op.Args,
		Status:   status,
		Checksum: checksum,
	}
	if applyErr != nil {
		r.Error = applyErr.Error()
	}
	return r
}

// Append writes one record. Appending the same (peer, seq) again is a no-op.
func (s *Store) Append(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations
		(peer, seq, id, origin, method, args, status, error, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(peer, seq) DO NOTHING
	`,
		r.Peer,
		r.Seq,
		r.ID,
		r.Origin,
		r.Method,
		string(r.Args),
		string(r.Status),
		r.Error,
		r.Checksum,
	)
	if err != nil {
		return fmt.Errorf("append operation %d for %s: %w", r.Seq, r.Peer, err)
	}
	return nil
}

// ReadOperations returns the journal of peer in seq order.
// Returns an empty slice (not nil) when the peer has no records.
func (s *Store) ReadOperations(ctx context.Context, peer string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT peer, seq, id, origin, method, args, status, error, checksum
		FROM operations
		WHERE peer = ?
		ORDER BY seq ASC
	`, peer)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var args, status string
		if err := rows.Scan(&r.Peer, &r.Seq, &r.ID, &r.Origin, &r.Method, &args, &status, &r.Error, &r.Checksum); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		r.Args = []byte(args)
		r.Status = ir.OperationStatus(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return records, nil
}

// LastChecksum returns the checksum and seq of peer's latest record.
// A peer with no records reports an empty checksum at seq 0.
func (s *Store) LastChecksum(ctx context.Context, peer string) (string, int64, error) {
	var checksum string
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT checksum, seq FROM operations
		WHERE peer = ?
		ORDER BY seq DESC
		LIMIT 1
	`, peer).Scan(&checksum, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("last checksum for %s: %w", peer, err)
	}
	return checksum, seq, nil
}

// Peers returns every peer with at least one record, sorted.
func (s *Store) Peers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT peer FROM operations ORDER BY peer COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query peers: %w", err)
	}
	defer rows.Close()

	peers := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		peers = append(peers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peers: %w", err)
	}
	return peers, nil
}

// FirstDivergence compares the journals of two peers and returns the first
// seq at which their checksums differ, or 0 if they agree on every seq both
// have applied.
func (s *Store) FirstDivergence(ctx context.Context, a, b string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(x.seq)
		FROM operations x
		JOIN operations y ON y.seq = x.seq AND y.peer = ?
		WHERE x.peer = ? AND x.checksum <> y.checksum
	`, b, a).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("compare %s and %s: %w", a, b, err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
