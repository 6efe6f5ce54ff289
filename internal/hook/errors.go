package hook

import (
	"errors"
	"fmt"
)

// ErrCodeInstallFailed indicates a hook could not be attached to its seam.
const ErrCodeInstallFailed = "HOOK_INSTALL_FAILED"

// InstallError reports a hook that could not be installed.
type InstallError struct {
	Code    string
	HookID  string
	Target  string
	Message string
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	return fmt.Sprintf("%s: %s (hook=%s, target=%s)", e.Code, e.Message, e.HookID, e.Target)
}

// IsInstallError returns true if err is a hook install failure.
func IsInstallError(err error) bool {
	var ie *InstallError
	return errors.As(err, &ie)
}

func installError(h Hook, format string, args ...any) *InstallError {
	return &InstallError{
		Code:    ErrCodeInstallFailed,
		HookID:  h.ID,
		Target:  h.Target,
		Message: fmt.Sprintf(format, args...),
	}
}
