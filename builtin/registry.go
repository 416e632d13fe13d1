// Package builtin provides the registry of numeric routines callable from
// compiled code.
//
// The registry is a closed enumeration built once by scanning the package's
// implementation surface: every routine whose symbol matches the fx_
// naming convention and whose signature is scalar Q16.16 integers only.
// Entries are sorted by symbol and assigned dense ids, so regenerating the
// registry from an unchanged surface assigns identical ids - call sites in
// already-compiled code embed ids directly and must stay valid.
//
// Vector arguments never reach a builtin: callers flatten them to scalar
// components before the call.
package builtin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ID identifies a registered builtin routine. IDs are dense, stable across
// regeneration, and embedded directly in generated call sites.
type ID uint16

// Func is the host implementation of a builtin. Arguments and result are
// raw Q16.16 integers. A non-nil error is a runtime trap (domain error,
// division by zero), never an internal failure.
type Func func(args []int32) (int32, error)

// Runtime fault sentinels surfaced as traps by the emulator.
var (
	ErrDomain  = errors.New("math domain error")
	ErrDivZero = errors.New("division by zero")
)

// Window is the reserved address range generated code calls into. The
// backend emits calls to Resolve(id); the emulator intercepts fetches in
// this window and dispatches to the registered Func. Objects emitted
// ahead-of-time carry relocations against the routine symbol instead.
const (
	WindowBase   uint32 = 0x8000_0000
	WindowStride uint32 = 8
)

// Signature describes a builtin's calling interface. Every parameter and
// the return value are scalar Q16.16 integers; only the count varies.
type Signature struct {
	Params  int
	Returns bool
}

// Entry is one registered routine.
type Entry struct {
	ID     ID
	Name   string // FXSL-visible name, e.g. "noise"
	Symbol string // linkage symbol, e.g. "fx_noise2"
	Arity  int
	impl   Func
}

// Registry is the immutable builtin table. Build it once at startup and
// share it by reference; it is never mutated after construction.
type Registry struct {
	entries []Entry
	byKey   map[nameArity]ID
}

type nameArity struct {
	name  string
	arity int
}

// Build scans the implementation surface and constructs the registry.
// It panics on a malformed surface (bad symbol, duplicate name/arity):
// that is a programming error in this package, not a runtime condition.
func Build() *Registry {
	rs := make([]routine, len(surface))
	copy(rs, surface)
	sort.Slice(rs, func(i, j int) bool { return rs[i].symbol < rs[j].symbol })

	r := &Registry{
		entries: make([]Entry, 0, len(rs)),
		byKey:   make(map[nameArity]ID, len(rs)),
	}
	for _, rt := range rs {
		name, arity, err := parseSymbol(rt.symbol)
		if err != nil {
			panic(fmt.Sprintf("builtin: %v", err))
		}
		if arity == 0 {
			arity = rt.arity
		} else if rt.arity != 0 && rt.arity != arity {
			panic(fmt.Sprintf("builtin: %s declares arity %d but symbol says %d", rt.symbol, rt.arity, arity))
		}
		if arity <= 0 || arity > 3 {
			panic(fmt.Sprintf("builtin: %s has unsupported arity %d", rt.symbol, arity))
		}

		id := ID(len(r.entries))
		key := nameArity{name, arity}
		if _, dup := r.byKey[key]; dup {
			panic(fmt.Sprintf("builtin: duplicate entry %s/%d", name, arity))
		}
		r.byKey[key] = id
		r.entries = append(r.entries, Entry{
			ID: id, Name: name, Symbol: rt.symbol, Arity: arity, impl: rt.impl,
		})
	}
	return r
}

// parseSymbol splits an fx_ symbol into the callable name and, when the
// symbol carries a trailing arity digit (overload families), that arity.
func parseSymbol(symbol string) (name string, arity int, err error) {
	const prefix = "fx_"
	if !strings.HasPrefix(symbol, prefix) {
		return "", 0, fmt.Errorf("symbol %q does not match the %s naming convention", symbol, prefix)
	}
	name = symbol[len(prefix):]
	if name == "" {
		return "", 0, fmt.Errorf("symbol %q has an empty name", symbol)
	}
	last := name[len(name)-1]
	if last >= '1' && last <= '9' {
		arity = int(last - '0')
		name = name[:len(name)-1]
		if name == "" {
			return "", 0, fmt.Errorf("symbol %q has an empty family name", symbol)
		}
	}
	return name, arity, nil
}

// All returns every entry in id order.
func (r *Registry) All() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered routines.
func (r *Registry) Len() int { return len(r.entries) }

// Entry returns the entry for an id.
func (r *Registry) Entry(id ID) (Entry, bool) {
	if int(id) >= len(r.entries) {
		return Entry{}, false
	}
	return r.entries[id], true
}

// Signature returns the calling interface for an id.
func (r *Registry) Signature(id ID) (Signature, bool) {
	e, ok := r.Entry(id)
	if !ok {
		return Signature{}, false
	}
	return Signature{Params: e.Arity, Returns: true}, true
}

// Resolve returns the target address generated code calls for an id.
func (r *Registry) Resolve(id ID) (uint32, bool) {
	if int(id) >= len(r.entries) {
		return 0, false
	}
	return WindowBase + WindowStride*uint32(id), true
}

// FromAddress is the inverse of Resolve, used by the emulator's dispatch.
func (r *Registry) FromAddress(addr uint32) (ID, bool) {
	if addr < WindowBase || (addr-WindowBase)%WindowStride != 0 {
		return 0, false
	}
	id := ID((addr - WindowBase) / WindowStride)
	if int(id) >= len(r.entries) {
		return 0, false
	}
	return id, true
}

// Lookup resolves a callable name and argument count to an id. Families
// with several arities (hash, noise, worley, atan) resolve to the entry
// whose arity matches exactly.
func (r *Registry) Lookup(name string, arity int) (ID, bool) {
	id, ok := r.byKey[nameArity{name, arity}]
	return id, ok
}

// HasName reports whether any arity of the given name is registered.
func (r *Registry) HasName(name string) bool {
	for _, e := range r.entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Invoke runs the host implementation of a builtin. A returned error is a
// runtime trap condition.
func (r *Registry) Invoke(id ID, args []int32) (int32, error) {
	e, ok := r.Entry(id)
	if !ok {
		return 0, fmt.Errorf("builtin: no entry for id %d", id)
	}
	if len(args) != e.Arity {
		return 0, fmt.Errorf("builtin: %s expects %d args, got %d", e.Symbol, e.Arity, len(args))
	}
	return e.impl(args)
}
