package syncreg

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes registry errors.
type ErrorCode string

const (
	// ErrCodeDuplicate indicates a second worker, method or field was
	// registered under an existing identity. The first registration stays.
	ErrCodeDuplicate ErrorCode = "DUPLICATE_REGISTRATION"

	// ErrCodeSealed indicates a registration after the load phases ended.
	ErrCodeSealed ErrorCode = "REGISTRY_SEALED"

	// ErrCodeUnknownMethod indicates a replicated operation names a method
	// this peer never registered.
	ErrCodeUnknownMethod ErrorCode = "UNKNOWN_METHOD"

	// ErrCodeDecodeFailed indicates encoded bytes could not be turned back
	// into objects on this peer.
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"
)

// RegistryError reports a registration or dispatch failure.
type RegistryError struct {
	Code    ErrorCode
	Type    string
	Member  string // method or field name, if any
	Message string
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("%s: %s (type=%s, member=%s)", e.Code, e.Message, e.Type, e.Member)
	}
	if e.Type != "" {
		return fmt.Sprintf("%s: %s (type=%s)", e.Code, e.Message, e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDuplicate returns true if err is a DUPLICATE_REGISTRATION failure.
func IsDuplicate(err error) bool {
	return hasCode(err, ErrCodeDuplicate)
}

// IsSealed returns true if err is a REGISTRY_SEALED failure.
func IsSealed(err error) bool {
	return hasCode(err, ErrCodeSealed)
}

// IsUnknownMethod returns true if err is an UNKNOWN_METHOD failure.
func IsUnknownMethod(err error) bool {
	return hasCode(err, ErrCodeUnknownMethod)
}

// IsDecodeFailed returns true if err is a DECODE_FAILED failure.
func IsDecodeFailed(err error) bool {
	return hasCode(err, ErrCodeDecodeFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func duplicate(typeName, member, what string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeDuplicate,
		Type:    typeName,
		Member:  member,
		Message: what + " already registered; first registration kept",
	}
}

func sealed(typeName, member string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeSealed,
		Type:    typeName,
		Member:  member,
		Message: "registry is sealed after load",
	}
}

// decodeFailed wraps cause so resolution errors stay visible to errors.As.
type decodeError struct {
	*RegistryError
	cause error
}

func (e *decodeError) Unwrap() []error {
	return []error{e.RegistryError, e.cause}
}

func decodeFailed(typeName string, cause error) error {
	return &decodeError{
		RegistryError: &RegistryError{
			Code:    ErrCodeDecodeFailed,
			Type:    typeName,
			Message: cause.Error(),
		},
		cause: cause,
	}
}
