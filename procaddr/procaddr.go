// Package procaddr resolves entry points by name, the way
// glXGetProcAddress does for a rendering driver.
//
// A Resolver first checks its own two entry points and then hands the
// name to a fallback Dispatcher, usually the driver's DispatchTable.
package procaddr

import (
	"deedles.dev/swpresent/internal/debug"
	"deedles.dev/swpresent/internal/xslices"
)

// Func is the signature of the resolver's own entry points.
type Func func(name string) any

// Dispatcher looks up entry points that the Resolver doesn't know
// about itself.
type Dispatcher interface {
	Lookup(name string) (any, bool)
}

// DispatchTable is a Dispatcher backed by a fixed map of entry points.
type DispatchTable map[string]any

func (t DispatchTable) Lookup(name string) (any, bool) {
	proc, ok := t[name]
	return proc, ok && (proc != nil)
}

type entry struct {
	name string
	proc Func
}

type Resolver struct {
	table    []entry
	fallback Dispatcher
}

// New returns a Resolver that falls back to fallback, which may be
// nil.
func New(fallback Dispatcher) *Resolver {
	r := Resolver{fallback: fallback}
	r.table = []entry{
		{"glXGetProcAddress", r.GetProcAddress},
		{"glXGetProcAddressARB", r.GetProcAddressARB},
	}
	return &r
}

// Lookup returns the entry point named name, or nil and false if
// neither the Resolver nor its fallback has it.
func (r *Resolver) Lookup(name string) (any, bool) {
	e, ok := xslices.Find(r.table, func(e entry) bool { return e.name == name })
	if ok {
		return e.proc, true
	}

	if r.fallback != nil {
		proc, ok := r.fallback.Lookup(name)
		if ok {
			return proc, true
		}
	}

	debug.Printf("no entry point named %q", name)
	return nil, false
}

// GetProcAddressARB returns the entry point named name, or nil.
func (r *Resolver) GetProcAddressARB(name string) any {
	proc, _ := r.Lookup(name)
	return proc
}

// GetProcAddress is the same as GetProcAddressARB.
func (r *Resolver) GetProcAddress(name string) any {
	return r.GetProcAddressARB(name)
}

// Names returns the names of the Resolver's own entry points in
// lookup order.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.table))
	for _, e := range r.table {
		names = append(names, e.name)
	}
	return names
}
