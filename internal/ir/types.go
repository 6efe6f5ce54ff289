package ir

import "fmt"

// Kind is the expected kind of an external symbol.
type Kind string

const (
	KindMethod      Kind = "method"
	KindField       Kind = "field"
	KindType        Kind = "type"
	KindConstructor Kind = "constructor"
)

// ValidKinds defines allowed symbol kinds.
var ValidKinds = map[Kind]bool{
	KindMethod:      true,
	KindField:       true,
	KindType:        true,
	KindConstructor: true,
}

// Phase selects when an integration group resolves and activates.
type Phase string

const (
	// PhaseImmediate resolves at load time.
	PhaseImmediate Phase = "immediate"
	// PhaseLate resolves after the host finished its own startup.
	PhaseLate Phase = "late"
)

// Scope restricts when a replicated method is offered to the local player.
// It never affects correctness of an operation once it is broadcast.
type Scope string

const (
	// ScopeAny offers the call unconditionally (default).
	ScopeAny Scope = "any"
	// ScopeSelected offers the call only while the target is locally selected.
	ScopeSelected Scope = "selected"
)

// ValidScopes defines allowed scopes. Empty defaults to ScopeAny.
var ValidScopes = map[Scope]bool{
	"":            true,
	ScopeAny:      true,
	ScopeSelected: true,
}

// ArityUnchecked disables the arity check for a method or constructor symbol.
const ArityUnchecked = -1

// SymbolSpec declares one external symbol a group needs.
type SymbolSpec struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Arity    int      `json:"arity"`              // ArityUnchecked when not declared
	Optional bool     `json:"optional,omitempty"` // unresolved -> nil handle, group still activates
	Alt      []string `json:"alt,omitempty"`      // fallback names tried in order
}

// MethodSpec declares a replicated method.
type MethodSpec struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Exclude   []int  `json:"exclude,omitempty"` // argument indices recomputed locally
	Scope     Scope  `json:"scope,omitempty"`
	DebugOnly bool   `json:"debug_only,omitempty"`
}

// ID returns the method identity used on the wire.
func (m MethodSpec) ID() string {
	return MethodID(m.Type, m.Name)
}

// MethodID formats a method identity as "Type:Name".
func MethodID(typeName, methodName string) string {
	return fmt.Sprintf("%s:%s", typeName, methodName)
}

// LambdaName names the ordinal-th anonymous closure compiled into method, as
// "Method/lambda:N". The closure is bound as a method of the declaring type.
func LambdaName(method string, ordinal int) string {
	return fmt.Sprintf("%s/lambda:%d", method, ordinal)
}

// ClosureType names the object holding the state captured by the ordinal-th
// delegate created in typeName.method, as "Type/Method#N". It has no colon,
// so members of it are still addressed as "ClosureType:member".
func ClosureType(typeName, method string, ordinal int) string {
	return fmt.Sprintf("%s/%s#%d", typeName, method, ordinal)
}

// GroupSpec is one compiled integration group declaration.
type GroupSpec struct {
	Name    string       `json:"name"`
	Phase   Phase        `json:"phase"`
	Symbols []SymbolSpec `json:"symbols"`
	Methods []MethodSpec `json:"methods,omitempty"`
}

// Operation is one replicated invocation as carried by the transport.
type Operation struct {
	ID     string `json:"id"`     // content-addressed, see OperationID
	Seq    int64  `json:"seq"`    // global total order, assigned by the transport
	Origin string `json:"origin"` // initiating peer
	Method string `json:"method"` // MethodID
	Args   []byte `json:"args"`   // canonical wire bytes
}

// OperationStatus is the outcome of applying an operation on one peer.
type OperationStatus string

const (
	StatusApplied OperationStatus = "applied"
	StatusFailed  OperationStatus = "failed"
)
