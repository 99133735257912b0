package intrinsics

import (
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// Kind is the role a builtin entry plays on its container.
type Kind uint8

const (
	KindFunction Kind = iota
	KindGetter
	KindSetter
	KindConstructor
	// KindData installs a constant value (Symbol.iterator, @@toStringTag, ...).
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindGetter:
		return "getter"
	case KindSetter:
		return "setter"
	case KindConstructor:
		return "constructor"
	case KindData:
		return "data"
	}
	return "unknown"
}

// InvocationKind distinguishes plain calls from `new`.
type InvocationKind uint8

const (
	Call InvocationKind = iota
	Construct
	// ConstructWithNewTarget is construction where new.target differs from
	// the callee (subclassing, Reflect.construct).
	ConstructWithNewTarget
)

func (k InvocationKind) String() string {
	switch k {
	case Construct:
		return "construct"
	case ConstructWithNewTarget:
		return "construct-with-new-target"
	}
	return "call"
}

// Attributes are the property attributes an entry is installed with.
type Attributes struct {
	Writable     bool
	Enumerable   bool
	Configurable bool
}

var (
	// MethodAttributes is the default for builtin methods and constructors.
	MethodAttributes = Attributes{Writable: true, Configurable: true}
	// AccessorAttributes is the default for builtin accessors (writable is ignored).
	AccessorAttributes = Attributes{Configurable: true}
	// TagAttributes is used for @@toStringTag.
	TagAttributes = Attributes{Configurable: true}
	// ConstantAttributes is used for well-known symbols and similar constants.
	ConstantAttributes = Attributes{}
)

func (a Attributes) String() string {
	b := []byte("---")
	if a.Writable {
		b[0] = 'w'
	}
	if a.Enumerable {
		b[1] = 'e'
	}
	if a.Configurable {
		b[2] = 'c'
	}
	return string(b)
}

// Impl is one implementation variant's body.
type Impl func(f *Frame) (vm.Value, error)

// Variant pairs a receiver guard with an implementation. Exactly one variant
// per list is the fallback, and it is last.
type Variant struct {
	Name     string
	Guard    Guard
	Impl     Impl
	Fallback bool
}

// Entry describes one builtin property. Entries are built once and never
// mutated after registration.
type Entry struct {
	Key        vm.PropertyKey
	Name       string
	Arity      int
	Variadic   bool
	Attributes Attributes
	Kind       Kind
	// Since is the first ECMAScript edition exposing the entry (0 means always).
	Since int
	// Feature names a staged feature flag gating the entry ("" means always on).
	Feature   string
	Call      []Variant
	Construct []Variant
	// AliasOf makes the entry share the function object of another key in the
	// same container (Array.prototype[@@iterator] === values).
	AliasOf *vm.PropertyKey
	// Value produces the installed value of a KindData entry.
	Value func(*vm.VM) vm.Value

	qualified string
}

// QualifiedName is the name used in error messages, e.g. "Array Iterator.prototype.next".
func (e *Entry) QualifiedName() string {
	if e.qualified != "" {
		return e.qualified
	}
	return e.Name
}

// IsConstructor reports whether `new` is accepted.
func (e *Entry) IsConstructor() bool {
	return len(e.Construct) > 0
}

// Builder assembles an Entry.
type Builder struct {
	e *Entry
}

func newBuilder(key vm.PropertyKey, name string, arity int, kind Kind, attrs Attributes) *Builder {
	return &Builder{e: &Entry{Key: key, Name: name, Arity: arity, Kind: kind, Attributes: attrs}}
}

// Method starts a string-keyed method entry.
func Method(name string, arity int) *Builder {
	return newBuilder(vm.NewStringKey(name), name, arity, KindFunction, MethodAttributes)
}

// SymbolMethod starts a symbol-keyed method entry named "[description]".
func SymbolMethod(sym vm.Value, arity int) *Builder {
	key := vm.NewSymbolKey(sym)
	return newBuilder(key, key.String(), arity, KindFunction, MethodAttributes)
}

// Getter starts a string-keyed accessor getter.
func Getter(name string) *Builder {
	return newBuilder(vm.NewStringKey(name), "get "+name, 0, KindGetter, AccessorAttributes)
}

// SymbolGetter starts a symbol-keyed accessor getter.
func SymbolGetter(sym vm.Value) *Builder {
	key := vm.NewSymbolKey(sym)
	return newBuilder(key, "get "+key.String(), 0, KindGetter, AccessorAttributes)
}

// Setter starts a string-keyed accessor setter.
func Setter(name string) *Builder {
	return newBuilder(vm.NewStringKey(name), "set "+name, 1, KindSetter, AccessorAttributes)
}

// Constructor starts a constructor entry installed under name.
func Constructor(name string, arity int) *Builder {
	return newBuilder(vm.NewStringKey(name), name, arity, KindConstructor, MethodAttributes)
}

// Data creates a constant entry.
func Data(key vm.PropertyKey, attrs Attributes, value func(*vm.VM) vm.Value) *Entry {
	return &Entry{Key: key, Name: key.String(), Kind: KindData, Attributes: attrs, Value: value}
}

// ToStringTag creates the @@toStringTag entry with the given tag.
func ToStringTag(tag string) *Entry {
	return Data(vm.NewSymbolKey(vm.SymbolToStringTag), TagAttributes, func(*vm.VM) vm.Value {
		return vm.NewString(tag)
	})
}

// Alias creates an entry sharing the function object registered under target.
func Alias(key vm.PropertyKey, target vm.PropertyKey) *Entry {
	return &Entry{Key: key, Name: key.String(), Kind: KindFunction, Attributes: MethodAttributes, AliasOf: &target}
}

func (b *Builder) Variadic() *Builder {
	b.e.Variadic = true
	return b
}

func (b *Builder) Attrs(a Attributes) *Builder {
	b.e.Attributes = a
	return b
}

// Since gates the entry on an ECMAScript edition.
func (b *Builder) Since(edition int) *Builder {
	b.e.Since = edition
	return b
}

// Gated puts the entry behind a staged feature flag.
func (b *Builder) Gated(feature string) *Builder {
	b.e.Feature = feature
	return b
}

// When adds a guarded call variant.
func (b *Builder) When(name string, guard Guard, impl Impl) *Builder {
	b.e.Call = append(b.e.Call, Variant{Name: name, Guard: guard, Impl: impl})
	return b
}

// Fallback adds the trailing catch-all call variant.
func (b *Builder) Fallback(impl Impl) *Builder {
	b.e.Call = append(b.e.Call, Variant{Name: "fallback", Guard: Any, Impl: impl, Fallback: true})
	return b
}

// Incompatible adds a fallback raising the incompatible-receiver TypeError.
func (b *Builder) Incompatible() *Builder {
	return b.Fallback(incompatibleReceiver)
}

// Generic registers impl as the sole, unguarded call variant.
func (b *Builder) Generic(impl Impl) *Builder {
	return b.Fallback(impl)
}

// ConstructWhen adds a guarded construct variant.
func (b *Builder) ConstructWhen(name string, guard Guard, impl Impl) *Builder {
	b.e.Construct = append(b.e.Construct, Variant{Name: name, Guard: guard, Impl: impl})
	return b
}

// ConstructWith adds the trailing catch-all construct variant.
func (b *Builder) ConstructWith(impl Impl) *Builder {
	b.e.Construct = append(b.e.Construct, Variant{Name: "fallback", Guard: Any, Impl: impl, Fallback: true})
	return b
}

// Entry returns the built entry.
func (b *Builder) Entry() *Entry {
	return b.e
}

func incompatibleReceiver(f *Frame) (vm.Value, error) {
	return vm.Undefined, f.VM.IncompatibleReceiver(f.Entry.QualifiedName(), f.This)
}
