package hook

import (
	"github.com/rs/zerolog"
)

// seam is one declared extension point and the hooks attached to it.
// Slices keep install order, which is also execution order.
type seam struct {
	target  string
	sites   map[string]bool
	before  []Hook
	after   []Hook
	replace map[string]Hook // site -> hook
	ids     map[string]bool
}

// Installer owns all seams of one peer.
//
// Not safe for concurrent use: seams are declared and hooks installed during
// the serial load phases, and Invoke runs on the single simulation thread.
type Installer struct {
	logger zerolog.Logger
	seams  map[string]*seam
}

// NewInstaller creates an installer with no declared seams.
func NewInstaller(logger zerolog.Logger) *Installer {
	return &Installer{
		logger: logger.With().Str("component", "hook").Logger(),
		seams:  make(map[string]*seam),
	}
}

// Declare registers an interceptable operation and the names of the
// call-sites inside its body that replace-mode hooks may rewrite.
// Declaring the same target again adds sites and keeps installed hooks.
func (i *Installer) Declare(target string, sites ...string) {
	s, ok := i.seams[target]
	if !ok {
		s = &seam{
			target:  target,
			sites:   make(map[string]bool),
			replace: make(map[string]Hook),
			ids:     make(map[string]bool),
		}
		i.seams[target] = s
	}
	for _, site := range sites {
		s.sites[site] = true
	}
}

// Declared reports whether target has a seam.
func (i *Installer) Declared(target string) bool {
	_, ok := i.seams[target]
	return ok
}

// Install attaches a single hook. See InstallAll.
func (i *Installer) Install(h Hook) error {
	return i.InstallAll([]Hook{h})
}

// InstallAll attaches hooks atomically: either every hook is installed or
// none is. A hook whose ID is already installed on its target is skipped, so
// installing the same hook twice never makes it fire twice.
func (i *Installer) InstallAll(hooks []Hook) error {
	accepted, err := i.plan(hooks)
	if err != nil {
		return err
	}

	for _, h := range accepted {
		s := i.seams[h.Target]
		switch h.Mode {
		case ModeBefore:
			s.before = append(s.before, h)
		case ModeAfter:
			s.after = append(s.after, h)
		case ModeReplace:
			s.replace[h.Site] = h
		}
		s.ids[h.ID] = true
		i.logger.Debug().
			Str("hook_id", h.ID).
			Str("target", h.Target).
			Str("mode", string(h.Mode)).
			Msg("hook installed")
	}
	return nil
}

// Check reports the error InstallAll would return for hooks without
// installing anything.
func (i *Installer) Check(hooks []Hook) error {
	_, err := i.plan(hooks)
	return err
}

// plan validates hooks against the declared seams and returns the ones that
// are not installed yet.
func (i *Installer) plan(hooks []Hook) ([]Hook, error) {
	pending := make(map[string]map[string]bool) // target -> ids in this batch
	claimedSites := make(map[string]map[string]string)

	var accepted []Hook
	for _, h := range hooks {
		if err := h.validate(); err != nil {
			return nil, installError(h, "%v", err)
		}
		s, ok := i.seams[h.Target]
		if !ok {
			return nil, installError(h, "target is not a declared seam")
		}
		if s.ids[h.ID] || pending[h.Target][h.ID] {
			i.logger.Debug().
				Str("hook_id", h.ID).
				Str("target", h.Target).
				Msg("hook already installed, skipping")
			continue
		}
		if h.Mode == ModeReplace {
			if !s.sites[h.Site] {
				return nil, installError(h, "call-site %q is not declared on target", h.Site)
			}
			if existing, taken := s.replace[h.Site]; taken {
				return nil, installError(h, "call-site %q already replaced by %s", h.Site, existing.ID)
			}
			if other, taken := claimedSites[h.Target][h.Site]; taken {
				return nil, installError(h, "call-site %q already replaced by %s", h.Site, other)
			}
			if claimedSites[h.Target] == nil {
				claimedSites[h.Target] = make(map[string]string)
			}
			claimedSites[h.Target][h.Site] = h.ID
		}
		if pending[h.Target] == nil {
			pending[h.Target] = make(map[string]bool)
		}
		pending[h.Target][h.ID] = true
		accepted = append(accepted, h)
	}

	return accepted, nil
}

// Invoke runs body through the seam for target.
//
// Every before-hook runs in install order; if any returns false the body is
// skipped. After-hooks always run, in install order, once the body finished or
// was skipped. Invoking an undeclared target just runs the body.
func (i *Installer) Invoke(target string, instance any, args []any, body Body) (any, error) {
	c := &Call{
		Target:   target,
		Instance: instance,
		Args:     args,
		State:    make(map[string]any),
	}

	s, ok := i.seams[target]
	if !ok {
		return body(c)
	}
	c.sites = s.replace

	proceed := true
	for _, h := range s.before {
		if !h.Before(c) {
			proceed = false
		}
	}

	if proceed {
		c.Result, c.Err = body(c)
	} else {
		c.Skipped = true
	}

	for _, h := range s.after {
		h.After(c)
	}

	return c.Result, c.Err
}

// Count returns the number of hooks installed on target.
func (i *Installer) Count(target string) int {
	s, ok := i.seams[target]
	if !ok {
		return 0
	}
	return len(s.ids)
}

// Reset removes every installed hook but keeps declared seams.
// Used at shutdown so a fresh runtime can be loaded against the same host.
func (i *Installer) Reset() {
	for _, s := range i.seams {
		s.before = nil
		s.after = nil
		s.replace = make(map[string]Hook)
		s.ids = make(map[string]bool)
	}
}
