package integrations

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/mpcompat/internal/binder"
	"github.com/roach88/mpcompat/internal/compat"
	"github.com/roach88/mpcompat/internal/hook"
	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/syncreg"
)

const (
	typeHireDialog = "VFECore.Misc.Dialog_Hire"
	typeHireData   = "VFECore.Misc.HireData"

	// HiringSetDataMethod replaces the hire counts of the open dialog.
	HiringSetDataMethod = "MPCompat.Hiring:SetHireData"
)

// activateHiring keeps the hiring dialog identical on every peer. Plain
// fields are watched while the dialog draws; the hire counts are compared
// against a copy because the dialog edits them in place.
func activateHiring(a *compat.Activation) error {
	b := a.Bindings()

	windows, err := binder.Field(b, typeWindowStack+":Windows")
	if err != nil {
		return err
	}
	hireData, err := binder.Field(b, typeHireDialog+":hireData")
	if err != nil {
		return err
	}
	for _, f := range []string{"daysAmount", "curFaction"} {
		if err := a.BoundField(typeHireDialog + ":" + f); err != nil {
			return err
		}
	}

	// Only one hiring dialog is ever open.
	a.Worker(syncreg.Worker{
		Type:   typeHireDialog,
		Encode: func(*syncreg.Writer, any) error { return nil },
		Decode: func(*syncreg.Reader) (any, error) {
			d := findWindow(windows, typeHireDialog)
			if d == nil {
				return nil, fmt.Errorf("no hiring dialog is open")
			}
			return d, nil
		},
	})

	a.Worker(syncreg.Worker{
		Type: typeHireData,
		Encode: func(w *syncreg.Writer, v any) error {
			data, ok := v.(map[string]int)
			if !ok {
				return fmt.Errorf("hire data is %T", v)
			}
			keys := make([]string, 0, len(data))
			for k := range data {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			w.Int(int64(len(keys)))
			for _, k := range keys {
				w.String(k)
				w.Int(int64(data[k]))
			}
			return nil
		},
		Decode: func(r *syncreg.Reader) (any, error) {
			n := int(r.Int())
			data := make(map[string]int, n)
			for i := 0; i < n && r.Err() == nil; i++ {
				k := r.String()
				data[k] = int(r.Int())
			}
			return data, r.Err()
		},
	})

	a.Method("MPCompat.Hiring", "SetHireData", host.Method{
		Params: []string{typeHireDialog, typeHireData},
		Fn: func(_ any, args []any) (any, error) {
			if args[0] == nil {
				return nil, fmt.Errorf("no hiring dialog")
			}
			hireData.Set(args[0], args[1])
			return nil, nil
		},
	}, syncreg.MethodOptions{Static: true})

	content := typeHireDialog + ":DoWindowContents"
	watchAround(a, content, "fields", func(w *syncreg.Watch, c *hook.Call) error {
		if err := w.Field(c.Instance, typeHireDialog, "daysAmount"); err != nil {
			return err
		}
		return w.Field(c.Instance, typeHireDialog, "curFaction")
	})

	binding, _ := b.Get(content)
	const key = "hiring.data"
	a.Hook(hook.Hook{
		ID:     "data-begin",
		Target: binding.Resolved,
		Mode:   hook.ModeBefore,
		Before: func(c *hook.Call) bool {
			if a.Applying() {
				return true
			}
			if data, ok := hireData.Get(c.Instance).(map[string]int); ok {
				c.State[key] = maps.Clone(data)
			}
			return true
		},
	})
	a.Hook(hook.Hook{
		ID:     "data-end",
		Target: binding.Resolved,
		Mode:   hook.ModeAfter,
		After: func(c *hook.Call) {
			before, ok := c.State[key].(map[string]int)
			if !ok {
				return
			}
			now, _ := hireData.Get(c.Instance).(map[string]int)
			if maps.Equal(before, now) {
				return
			}
			hireData.Set(c.Instance, before)
			if err := a.Registry().Invoke(nil, HiringSetDataMethod, c.Instance, now); err != nil {
				logger := a.Logger()
				logger.Error().Err(err).Str("event", "submit_failed").Msg("hire counts not submitted")
			}
		},
	})
	return nil
}
