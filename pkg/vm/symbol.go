package vm

import (
	"sync"
	"unsafe"
)

// SymbolObject is the heap record behind a symbol value. Identity is the
// pointer; description is immutable.
type SymbolObject struct {
	description    string
	hasDescription bool
	registryKey    string
	registered     bool
}

// Description returns the [[Description]] and whether one was given.
func (s *SymbolObject) Description() (string, bool) {
	return s.description, s.hasDescription
}

// DescriptiveString implements SymbolDescriptiveString.
func (s *SymbolObject) DescriptiveString() string {
	return "Symbol(" + s.description + ")"
}

// DescriptiveName is the name used for symbol-keyed builtin functions.
func (s *SymbolObject) DescriptiveName() string {
	return s.description
}

// Registered reports whether the symbol lives in the global symbol registry.
func (s *SymbolObject) Registered() (string, bool) {
	return s.registryKey, s.registered
}

// NewSymbol creates a fresh unique symbol with a description.
func NewSymbol(description string) Value {
	return Value{typ: TypeSymbol, obj: unsafe.Pointer(&SymbolObject{description: description, hasDescription: true})}
}

// NewAnonymousSymbol creates a fresh unique symbol without a description.
func NewAnonymousSymbol() Value {
	return Value{typ: TypeSymbol, obj: unsafe.Pointer(&SymbolObject{})}
}

// Well-known symbols are shared by every realm.
var (
	SymbolIterator      = NewSymbol("Symbol.iterator")
	SymbolAsyncIterator = NewSymbol("Symbol.asyncIterator")
	SymbolToStringTag   = NewSymbol("Symbol.toStringTag")
	SymbolMatchAll      = NewSymbol("Symbol.matchAll")
	SymbolHasInstance   = NewSymbol("Symbol.hasInstance")
	SymbolSpecies       = NewSymbol("Symbol.species")
	SymbolToPrimitive   = NewSymbol("Symbol.toPrimitive")
)

// WellKnownSymbols lists the well-known symbols by their Symbol.* property name.
func WellKnownSymbols() []struct {
	Name   string
	Symbol Value
} {
	return []struct {
		Name   string
		Symbol Value
	}{
		{"asyncIterator", SymbolAsyncIterator},
		{"hasInstance", SymbolHasInstance},
		{"iterator", SymbolIterator},
		{"matchAll", SymbolMatchAll},
		{"species", SymbolSpecies},
		{"toPrimitive", SymbolToPrimitive},
		{"toStringTag", SymbolToStringTag},
	}
}

// The global symbol registry is shared across realms and agents.
var symbolRegistry = struct {
	sync.Mutex
	byKey map[string]Value
}{byKey: make(map[string]Value)}

// SymbolFor implements Symbol.for: returns the registered symbol for key,
// creating it on first use.
func SymbolFor(key string) Value {
	symbolRegistry.Lock()
	defer symbolRegistry.Unlock()
	if sym, ok := symbolRegistry.byKey[key]; ok {
		return sym
	}
	sym := Value{typ: TypeSymbol, obj: unsafe.Pointer(&SymbolObject{
		description:    key,
		hasDescription: true,
		registryKey:    key,
		registered:     true,
	})}
	symbolRegistry.byKey[key] = sym
	return sym
}
