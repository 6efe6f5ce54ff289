package compat

import "sync"

var (
	currentMu sync.Mutex
	current   *Runtime
)

// Install builds the process-wide runtime, declares groups and runs the
// immediate load phase. The host calls LoadLate on Current once its own
// startup finished.
func Install(cfg Config, groups ...Group) (*Runtime, error) {
	currentMu.Lock()
	defer currentMu.Unlock()

	if current != nil {
		return nil, &RuntimeError{Code: ErrCodeInstalled, Message: "a runtime is already installed; call Shutdown first"}
	}
	rt, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := rt.Add(groups...); err != nil {
		return nil, err
	}
	if err := rt.LoadImmediate(); err != nil {
		return nil, err
	}
	current = rt
	return rt, nil
}

// Current returns the installed runtime, or nil.
func Current() *Runtime {
	currentMu.Lock()
	defer currentMu.Unlock()
	return current
}

// Shutdown closes the installed runtime. Safe to call when none is installed.
func Shutdown() {
	currentMu.Lock()
	defer currentMu.Unlock()

	if current != nil {
		current.Close()
		current = nil
	}
}
