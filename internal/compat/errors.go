package compat

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes runtime errors.
type ErrorCode string

const (
	// ErrCodeConfig indicates a runtime was built without a required
	// collaborator.
	ErrCodeConfig ErrorCode = "INVALID_CONFIG"

	// ErrCodeDuplicateGroup indicates two groups share a name.
	ErrCodeDuplicateGroup ErrorCode = "DUPLICATE_GROUP"

	// ErrCodeLoadOrder indicates a load phase ran out of order or twice.
	ErrCodeLoadOrder ErrorCode = "LOAD_ORDER"

	// ErrCodeGroupFailed indicates a group resolved but could not activate.
	// Nothing it staged was kept.
	ErrCodeGroupFailed ErrorCode = "GROUP_FAILED"

	// ErrCodeInstalled indicates Install ran while a runtime was current.
	ErrCodeInstalled ErrorCode = "ALREADY_INSTALLED"
)

// RuntimeError reports a runtime or group activation failure.
type RuntimeError struct {
	Code    ErrorCode
	Group   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Group != "" {
		msg += fmt.Sprintf(" (group=%s)", e.Group)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsGroupFailed returns true if err is a GROUP_FAILED error.
func IsGroupFailed(err error) bool {
	return hasCode(err, ErrCodeGroupFailed)
}

// IsDuplicateGroup returns true if err is a DUPLICATE_GROUP error.
func IsDuplicateGroup(err error) bool {
	return hasCode(err, ErrCodeDuplicateGroup)
}

// IsLoadOrder returns true if err is a LOAD_ORDER error.
func IsLoadOrder(err error) bool {
	return hasCode(err, ErrCodeLoadOrder)
}

func hasCode(err error, code ErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func groupFailed(group string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeGroupFailed,
		Group:   group,
		Message: "integration group not activated",
		Err:     err,
	}
}
