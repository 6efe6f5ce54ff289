// Package hook implements interception at owned extension points of host
// operations.
//
// The host adapter declares a seam for every operation that may be
// intercepted (Installer.Declare) and routes the operation through
// Installer.Invoke. Integrations install hooks against those seams in one of
// three modes:
//
//   - before:  runs ahead of the body and may veto it by returning false
//   - after:   runs after the body (or the veto) and observes the final state
//   - replace: rewrites one named call-site inside the body, leaving the rest
//     of the body intact
//
// Hooks run synchronously on the simulation step. They must never block or
// perform I/O.
package hook

import (
	"errors"
	"fmt"
)

// Mode selects where a hook runs.
type Mode string

const (
	ModeBefore  Mode = "before"
	ModeAfter   Mode = "after"
	ModeReplace Mode = "replace"
)

// Call is one invocation flowing through a seam.
type Call struct {
	Target   string
	Instance any
	Args     []any

	// Result and Err hold the body's return values. A before-hook that vetoes
	// the body may set Result to stand in for it.
	Result any
	Err    error

	// Skipped is true when a before-hook vetoed the body.
	Skipped bool

	// State is scratch space shared by the hooks of a single call.
	State map[string]any

	sites map[string]Hook
}

// Body is the original implementation of an intercepted operation.
type Body func(c *Call) (any, error)

// SiteFunc is the original expression at a named call-site.
type SiteFunc func(args ...any) any

// Prefix runs before the body. Returning false vetoes the body.
type Prefix func(c *Call) bool

// Postfix runs after the body.
type Postfix func(c *Call)

// Replacement stands in for the original expression at a call-site. It may
// call original to keep the default behaviour.
type Replacement func(c *Call, original SiteFunc, args []any) any

// Hook is one interception installed at a seam.
type Hook struct {
	ID     string
	Target string
	Mode   Mode
	Site   string // replace mode only

	Before  Prefix
	After   Postfix
	Replace Replacement
}

// Site evaluates the named call-site. Host bodies call this for every
// expression that is declared as replaceable.
func (c *Call) Site(name string, original SiteFunc, args ...any) any {
	if h, ok := c.sites[name]; ok {
		return h.Replace(c, original, args)
	}
	return original(args...)
}

// validate checks that a hook is internally consistent.
func (h Hook) validate() error {
	if h.ID == "" {
		return errors.New("hook id is required")
	}
	if h.Target == "" {
		return errors.New("hook target is required")
	}
	switch h.Mode {
	case ModeBefore:
		if h.Before == nil {
			return errors.New("before hook requires a Before function")
		}
	case ModeAfter:
		if h.After == nil {
			return errors.New("after hook requires an After function")
		}
	case ModeReplace:
		if h.Site == "" {
			return errors.New("replace hook requires a call-site name")
		}
		if h.Replace == nil {
			return errors.New("replace hook requires a Replace function")
		}
	default:
		return fmt.Errorf("unknown hook mode %q", h.Mode)
	}
	return nil
}
