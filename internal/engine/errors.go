package engine

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes engine errors.
type RuntimeErrorCode string

const (
	// ErrCodeSequenceGap indicates an operation arrived ahead of its
	// predecessor and is still held back waiting for it.
	ErrCodeSequenceGap RuntimeErrorCode = "SEQUENCE_GAP"

	// ErrCodeStepLimit indicates a single Step applied more operations than
	// allowed, usually an operation that keeps submitting follow-ups.
	ErrCodeStepLimit RuntimeErrorCode = "STEP_LIMIT_EXCEEDED"
)

// RuntimeError represents an error detected while applying operations.
type RuntimeError struct {
	Code     RuntimeErrorCode
	Message  string
	Peer     string
	Seq      int64
	MethodID string
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.MethodID != "" {
		return fmt.Sprintf("%s: %s (peer=%s, seq=%d, method=%s)", e.Code, e.Message, e.Peer, e.Seq, e.MethodID)
	}
	return fmt.Sprintf("%s: %s (peer=%s)", e.Code, e.Message, e.Peer)
}

// IsSequenceGap returns true if err is a SEQUENCE_GAP error.
func IsSequenceGap(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSequenceGap
	}
	return false
}

// IsStepLimit returns true if err is a STEP_LIMIT_EXCEEDED error.
func IsStepLimit(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStepLimit
	}
	return false
}
