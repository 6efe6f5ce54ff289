package integrations

import (
	"fmt"

	"github.com/roach88/mpcompat/internal/binder"
	"github.com/roach88/mpcompat/internal/compat"
	"github.com/roach88/mpcompat/internal/ir"
	"github.com/roach88/mpcompat/internal/syncreg"
)

const (
	typePod       = "VFEAncients.CompGeneTailoringPod"
	typeOperation = "VFEAncients.Operation"
	podGizmos     = "CompGetGizmosExtra"
)

// activateTailoring replicates starting pod operations. An operation is
// built fresh on every peer from its pod and kind. The pod's gizmo closures
// are replicated too: cancel for the selected pod, a debug-only failure, and
// the operation menu delegate rebuilt from the pod and kind it captured.
func activateTailoring(a *compat.Activation) error {
	b := a.Bindings()

	ctor, err := binder.Constructor(b, typeOperation+":.ctor")
	if err != nil {
		return err
	}
	pod, err := binder.Field(b, typeOperation+":Pod")
	if err != nil {
		return err
	}
	kind, err := binder.Field(b, typeOperation+":Kind")
	if err != nil {
		return err
	}

	a.Worker(syncreg.Worker{
		Type: typeOperation,
		Encode: func(w *syncreg.Writer, v any) error {
			k, ok := kind.Get(v).(string)
			if !ok {
				return fmt.Errorf("operation kind is %T", kind.Get(v))
			}
			w.Ref(pod.Get(v))
			w.String(k)
			return nil
		},
		Decode: func(r *syncreg.Reader) (any, error) {
			p := r.Ref()
			k := r.String()
			if r.Err() != nil {
				return nil, r.Err()
			}
			return ctor([]any{p, k})
		},
	})

	if err := a.Lambda(typePod, podGizmos, syncreg.MethodOptions{Scope: ir.ScopeSelected}, 8); err != nil {
		return err
	}
	if err := a.Lambda(typePod, podGizmos, syncreg.MethodOptions{DebugOnly: true}, 9); err != nil {
		return err
	}
	return a.Delegate(ir.ClosureType(typePod, podGizmos, 1), []string{"pod", "kind"}, syncreg.MethodOptions{})
}
