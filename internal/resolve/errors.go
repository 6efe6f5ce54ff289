package resolve

import (
	"errors"
	"fmt"
)

// Error codes for runtime reference resolution.
const (
	// ErrCodeNotFound indicates the referenced object no longer exists on this
	// peer: missing entity, index out of range, stale fingerprint, or no
	// candidate with the secondary key.
	ErrCodeNotFound = "RESOLUTION_NOT_FOUND"

	// ErrCodeAmbiguous indicates more than one candidate carries the
	// secondary key. Never resolved by guessing.
	ErrCodeAmbiguous = "RESOLUTION_AMBIGUOUS"
)

// ResolutionError reports a reference that could not be encoded or decoded.
type ResolutionError struct {
	Code     string
	Strategy Strategy
	Type     string
	Message  string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s (strategy=%s, type=%s)", e.Code, e.Message, e.Strategy, e.Type)
}

// IsNotFound returns true if err is a RESOLUTION_NOT_FOUND failure.
func IsNotFound(err error) bool {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNotFound
	}
	return false
}

// IsAmbiguous returns true if err is a RESOLUTION_AMBIGUOUS failure.
func IsAmbiguous(err error) bool {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Code == ErrCodeAmbiguous
	}
	return false
}

func notFound(s Strategy, typeName, format string, args ...any) *ResolutionError {
	return &ResolutionError{
		Code:     ErrCodeNotFound,
		Strategy: s,
		Type:     typeName,
		Message:  fmt.Sprintf(format, args...),
	}
}

func ambiguous(s Strategy, typeName, format string, args ...any) *ResolutionError {
	return &ResolutionError{
		Code:     ErrCodeAmbiguous,
		Strategy: s,
		Type:     typeName,
		Message:  fmt.Sprintf(format, args...),
	}
}
