package integrations

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/binder"
	"github.com/roach88/mpcompat/internal/compat"
	"github.com/roach88/mpcompat/internal/hook"
	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/syncreg"
)

const (
	typeChoosePowers = "VFEAncients.Dialog_ChoosePowers"

	// SiteButtonText is the option button call-site inside the dialog.
	SiteButtonText = "Verse.Widgets:ButtonText"

	// ChooserPickMethod grants the chosen pair and closes the dialog.
	ChooserPickMethod = "MPCompat.Chooser:ChoosePower"
)

// activateChooser rewrites the option buttons of the power choice dialog. A
// click still draws as pressed, but the choice is replicated instead of
// applied, and the dialog closes when the choice lands.
func activateChooser(a *compat.Activation) error {
	b := a.Bindings()

	windows, err := binder.Field(b, typeWindowStack+":Windows")
	if err != nil {
		return err
	}
	closeWindow, err := binder.Method(b, typeWindow+":Close")
	if err != nil {
		return err
	}
	onChosen, err := binder.Method(b, typeChoosePowers+":OnChosen")
	if err != nil {
		return err
	}

	a.Method("MPCompat.Chooser", "ChoosePower", host.Method{
		Params: []string{syncreg.TypeString, syncreg.TypeString},
		Fn: func(_ any, args []any) (any, error) {
			d := findWindow(windows, typeChoosePowers)
			if d == nil {
				return nil, fmt.Errorf("no power choice dialog is open")
			}
			if _, err := onChosen.Call(d, args[0], args[1]); err != nil {
				return nil, err
			}
			return closeWindow.Call(d)
		},
	}, syncreg.MethodOptions{Static: true})

	content, _ := b.Get(typeChoosePowers + ":DoWindowContents")
	a.Hook(hook.Hook{
		ID:     "buttons",
		Target: content.Resolved,
		Mode:   hook.ModeReplace,
		Site:   SiteButtonText,
		Replace: func(c *hook.Call, original hook.SiteFunc, args []any) any {
			pressed := original(args...)
			if clicked, _ := pressed.(bool); !clicked || a.Applying() {
				return pressed
			}
			if len(args) < 3 {
				logger := a.Logger()
				logger.Error().Int("args", len(args)).Msg("button call-site has no option")
				return false
			}
			if err := a.Registry().Invoke(nil, ChooserPickMethod, args[1], args[2]); err != nil {
				logger := a.Logger()
				logger.Error().Err(err).Str("event", "submit_failed").Msg("power choice not submitted")
			}
			return false
		},
	})
	return nil
}
