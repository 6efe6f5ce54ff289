// Package host defines the narrow contract mpcompat consumes from the external
// simulation: a symbol namespace, stable entity identities, the current world,
// and foreign type names.
//
// Nothing in this package knows about replication. Implementations live with
// the host adapter; internal/host/simhost is the in-memory reference host.
package host

import (
	"fmt"
	"reflect"

	"github.com/roach88/mpcompat/internal/ir"
)

// Symbol is one named member exposed by the host namespace.
//
// Handle holds the typed accessor for the member:
//   - KindMethod:      Method
//   - KindField:       Field
//   - KindType:        TypeInfo
//   - KindConstructor: Constructor
type Symbol struct {
	Name   string
	Kind   ir.Kind
	Arity  int
	Handle any
}

// Namespace resolves external names to live symbols.
type Namespace interface {
	Lookup(name string) (Symbol, bool)
}

// Method is a callable host operation. Instance is nil for static methods.
type Method struct {
	Params []string // parameter type names, in order
	Fn     func(instance any, args []any) (any, error)
}

// Call invokes the method.
func (m Method) Call(instance any, args ...any) (any, error) {
	if m.Fn == nil {
		return nil, fmt.Errorf("method has no body")
	}
	return m.Fn(instance, args)
}

// Field reads and writes one named field of a host object.
type Field struct {
	Type string // value type name
	Get  func(instance any) any
	Set  func(instance any, v any)
}

// TypeInfo describes a host type.
type TypeInfo struct {
	Name string
}

// Constructor builds a new host object.
type Constructor func(args []any) (any, error)

// EntityID is the network-wide stable identity of a simulated entity.
type EntityID int64

// Entity is an object with a stable identity shared by all peers.
type Entity interface {
	EntityID() EntityID
}

// World gives access to the entities currently alive on one peer.
type World interface {
	Entity(id EntityID) (Entity, bool)
}

// Typed is implemented by host objects that know their foreign type name.
type Typed interface {
	TypeName() string
}

// Selection reports whether an object is selected by the local player.
type Selection interface {
	IsSelected(v any) bool
}

// TypeNameOf returns the foreign type name of v. Objects implementing Typed
// report their own name; anything else falls back to the Go type.
func TypeNameOf(v any) string {
	if v == nil {
		return ""
	}
	if t, ok := v.(Typed); ok {
		return t.TypeName()
	}
	return reflect.TypeOf(v).String()
}
