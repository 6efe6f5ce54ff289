package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainOperation = "mpcompat/operation/v1"
	DomainChecksum  = "mpcompat/checksum/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// OperationID computes the content-addressed id of a replicated operation.
// The id is identical on every peer that sees the same operation.
func OperationID(origin, methodID string, args []byte, seq int64) (string, error) {
	obj := Map{
		"origin": String(origin),
		"method": String(methodID),
		"args":   String(hex.EncodeToString(args)),
		"seq":    Int(seq),
		"wire":   String(WireVersion),
	}

	canonical, err := Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("OperationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOperation, canonical), nil
}

// MustOperationID is like OperationID but panics on error.
// Use only in tests.
func MustOperationID(origin, methodID string, args []byte, seq int64) string {
	id, err := OperationID(origin, methodID, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// FoldChecksum extends a rolling checksum with one applied operation.
// Peers that applied the same operations with the same outcomes in the same
// order end up with the same checksum; any divergence shows up immediately.
func FoldChecksum(prev, operationID, status string) string {
	data := []byte(prev + "\x00" + operationID + "\x00" + status)
	return hashWithDomain(DomainChecksum, data)
}
