package binder

import (
	"errors"
	"fmt"
)

// Error codes for symbol resolution failures.
const (
	// ErrCodeSymbolNotFound indicates no symbol with the name (or any fallback) exists.
	ErrCodeSymbolNotFound = "SYMBOL_NOT_FOUND"

	// ErrCodeTypeMismatch indicates the symbol exists but has the wrong kind,
	// arity or handle type.
	ErrCodeTypeMismatch = "TYPE_MISMATCH"
)

// ResolveError reports one symbol that failed to resolve.
type ResolveError struct {
	Code    string
	Status  Status
	Group   string
	Symbol  string
	Message string
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("%s: %s (group=%s, symbol=%s)", e.Code, e.Message, e.Group, e.Symbol)
	}
	return fmt.Sprintf("%s: %s (symbol=%s)", e.Code, e.Message, e.Symbol)
}

// IsNotFound returns true if err is a missing-symbol failure.
func IsNotFound(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSymbolNotFound
	}
	return false
}

// IsTypeMismatch returns true if err is a wrong kind/arity/type failure.
func IsTypeMismatch(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == ErrCodeTypeMismatch
	}
	return false
}
