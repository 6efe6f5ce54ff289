// Package syncreg holds the per-type encode/decode workers and the
// replicated-method descriptors that the transport dispatches into.
//
// Registration happens only during the load phases. Each integration group
// stages its registrations in a Batch and commits them atomically, so a
// group that fails part-way leaves nothing behind. After Seal the registry
// rejects any further registration.
package syncreg

import (
	"reflect"
	"sort"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/ir"
	"github.com/roach88/mpcompat/internal/resolve"
)

// Worker encodes and decodes one concrete type that has no native wire form.
// Decode may build a fresh object from the decoded state.
type Worker struct {
	Type   string
	Encode func(w *Writer, v any) error
	Decode func(r *Reader) (any, error)
}

// MethodOptions configures a replicated method.
type MethodOptions struct {
	// Exclude lists argument indices that are not carried over the wire.
	// Each peer recomputes them locally with Recompute.
	Exclude []int

	// Recompute supplies an excluded argument on the applying peer. When nil
	// excluded arguments arrive as nil.
	Recompute func(instance any, args []any, index int) any

	Scope     ir.Scope
	DebugOnly bool

	// Static methods have no target instance.
	Static bool
}

// Sink hands encoded operations to the transport.
type Sink interface {
	Submit(methodID string, args []byte) error
}

type methodEntry struct {
	id       string
	typeName string
	name     string
	method   host.Method
	opts     MethodOptions
	excluded map[int]bool
}

type fieldEntry struct {
	id       string
	typeName string
	name     string
	field    host.Field
}

// Registry is the per-peer replication registry.
//
// Not safe for concurrent use. Registration runs in the serial load phases
// and dispatch runs on the single simulation thread.
type Registry struct {
	logger    zerolog.Logger
	resolver  *resolve.Resolver
	workers   map[string]Worker
	methods   map[string]*methodEntry
	fields    map[string]*fieldEntry
	sealed    bool
	debug     bool
	selection host.Selection
	sink      Sink
}

// Option configures a Registry.
type Option func(*Registry)

// WithDebug enables debug-only methods.
func WithDebug(debug bool) Option {
	return func(r *Registry) {
		r.debug = debug
	}
}

// WithSelection sets the local selection used by ScopeSelected.
func WithSelection(s host.Selection) Option {
	return func(r *Registry) {
		r.selection = s
	}
}

// WithSink routes Invoke through a transport. Without a sink Invoke applies
// the operation immediately.
func WithSink(s Sink) Option {
	return func(r *Registry) {
		r.sink = s
	}
}

// New creates a registry on top of resolver and installs itself as the
// resolver's codec for worker-encoded owners.
func New(resolver *resolve.Resolver, logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:   logger.With().Str("component", "syncreg").Logger(),
		resolver: resolver,
		workers:  make(map[string]Worker),
		methods:  make(map[string]*methodEntry),
		fields:   make(map[string]*fieldEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	resolver.SetCodec(r)
	return r
}

// SetSink replaces the transport sink.
func (r *Registry) SetSink(s Sink) {
	r.sink = s
}

// Register adds the worker for one type. A second worker for the same type is
// rejected with DUPLICATE_REGISTRATION and the first stays active.
func (r *Registry) Register(w Worker) error {
	b := r.Stage("")
	b.Register(w)
	return b.Commit()
}

// RegisterMethod marks invocations of typeName.name as replicated.
func (r *Registry) RegisterMethod(typeName, name string, m host.Method, opts MethodOptions) error {
	b := r.Stage("")
	b.RegisterMethod(typeName, name, m, opts)
	return b.Commit()
}

// RegisterField makes a field watchable. Changes detected by a Watch session
// are replicated as set-field operations.
func (r *Registry) RegisterField(typeName, name string, f host.Field) error {
	b := r.Stage("")
	b.RegisterField(typeName, name, f)
	return b.Commit()
}

// Seal ends the load phases.
func (r *Registry) Seal() {
	r.sealed = true
	r.logger.Info().
		Int("workers", len(r.workers)).
		Int("methods", len(r.methods)).
		Int("fields", len(r.fields)).
		Msg("registry sealed")
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Reset drops every registration and unseals. Used at shutdown.
func (r *Registry) Reset() {
	r.workers = make(map[string]Worker)
	r.methods = make(map[string]*methodEntry)
	r.fields = make(map[string]*fieldEntry)
	r.sealed = false
}

// Methods returns the registered method ids, sorted.
func (r *Registry) Methods() []string {
	ids := make([]string, 0, len(r.methods)+len(r.fields))
	for id := range r.methods {
		ids = append(ids, id)
	}
	for id := range r.fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Workers returns the registered worker type names, sorted.
func (r *Registry) Workers() []string {
	types := make([]string, 0, len(r.workers))
	for t := range r.workers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Resolver returns the resolver the registry encodes references with.
func (r *Registry) Resolver() *resolve.Resolver {
	return r.resolver
}

// FieldID is the method identity of set-field operations for a field.
func FieldID(typeName, name string) string {
	return ir.MethodID(typeName, "set:"+name)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
