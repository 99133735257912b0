package vm

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// LatestEcmaVersion is the edition assumed when options leave it unset.
const LatestEcmaVersion = 2025

// RealmOptions select which staged builtins a realm exposes.
type RealmOptions struct {
	EcmaVersion int
	Features    mapset.Set[string]
	Locale      string
}

// HasFeature reports whether the staged feature name is enabled.
func (o RealmOptions) HasFeature(name string) bool {
	return o.Features != nil && o.Features.Contains(name)
}

// Realm represents an isolated JavaScript execution environment.
// Each realm has its own global object, built-in prototypes, and intrinsics.
type Realm struct {
	id      uuid.UUID
	options RealmOptions

	GlobalObject *PlainObject

	// Built-in prototypes, created empty and populated by builtin initializers
	ObjectPrototype               Value
	FunctionPrototype             Value
	ArrayPrototype                Value
	StringPrototype               Value
	NumberPrototype               Value
	BooleanPrototype              Value
	SymbolPrototype               Value
	BigIntPrototype               Value
	RegExpPrototype               Value
	MapPrototype                  Value
	SetPrototype                  Value
	PromisePrototype              Value
	IteratorPrototype             Value // %Iterator.prototype%
	AsyncIteratorPrototype        Value // %AsyncIteratorPrototype%
	ArrayBufferPrototype          Value
	TypedArrayPrototype           Value // abstract %TypedArray%.prototype
	TypedArrayPrototypes          map[TypedArrayKind]Value
	ErrorPrototypes               map[ErrorKind]Value
	ArrayIteratorPrototype        Value
	StringIteratorPrototype       Value
	SetIteratorPrototype          Value
	MapIteratorPrototype          Value
	RegExpStringIteratorPrototype Value

	intrinsics map[string]Value
	installed  mapset.Set[string]
}

// NewRealm creates a realm whose prototypes exist but carry no builtins yet.
func NewRealm(opts RealmOptions) *Realm {
	if opts.EcmaVersion == 0 {
		opts.EcmaVersion = LatestEcmaVersion
	}
	if opts.Features == nil {
		opts.Features = mapset.NewThreadUnsafeSet[string]()
	}
	r := &Realm{
		id:                   uuid.New(),
		options:              opts,
		intrinsics:           make(map[string]Value),
		installed:            mapset.NewThreadUnsafeSet[string](),
		TypedArrayPrototypes: make(map[TypedArrayKind]Value),
		ErrorPrototypes:      make(map[ErrorKind]Value),
	}
	r.ObjectPrototype = NewObject(Null)
	r.FunctionPrototype = NewNativeFunction(0, false, "", func(Value, []Value) (Value, error) {
		return Undefined, nil
	})
	r.FunctionPrototype.AsPlainObject().SetPrototype(r.ObjectPrototype)

	object := func() Value { return NewObject(r.ObjectPrototype) }
	r.ArrayPrototype = NewArray()
	r.ArrayPrototype.AsPlainObject().SetPrototype(r.ObjectPrototype)
	r.StringPrototype = NewBrandedObject(r.ObjectPrototype, &PrimitiveSlot{Value: NewString("")})
	r.NumberPrototype = NewBrandedObject(r.ObjectPrototype, &PrimitiveSlot{Value: IntegerValue(0)})
	r.BooleanPrototype = NewBrandedObject(r.ObjectPrototype, &PrimitiveSlot{Value: False})
	r.SymbolPrototype = object()
	r.BigIntPrototype = object()
	r.RegExpPrototype = object()
	r.MapPrototype = object()
	r.SetPrototype = object()
	r.PromisePrototype = object()
	r.IteratorPrototype = object()
	r.AsyncIteratorPrototype = object()
	r.ArrayBufferPrototype = object()
	r.TypedArrayPrototype = object()
	for _, kind := range TypedArrayKinds {
		r.TypedArrayPrototypes[kind] = NewObject(r.TypedArrayPrototype)
	}
	iter := func() Value { return NewObject(r.IteratorPrototype) }
	r.ArrayIteratorPrototype = iter()
	r.StringIteratorPrototype = iter()
	r.SetIteratorPrototype = iter()
	r.MapIteratorPrototype = iter()
	r.RegExpStringIteratorPrototype = iter()

	r.ErrorPrototypes[KindError] = errorPrototype(r.ObjectPrototype, "Error")
	for _, kind := range []ErrorKind{KindTypeError, KindRangeError, KindSyntaxError} {
		r.ErrorPrototypes[kind] = errorPrototype(r.ErrorPrototypes[KindError], kind.String())
	}

	r.GlobalObject = NewObject(r.ObjectPrototype).AsPlainObject()
	return r
}

func errorPrototype(proto Value, name string) Value {
	p := NewObject(proto).AsPlainObject()
	p.SetOwnNonEnumerable("name", NewString(name))
	p.SetOwnNonEnumerable("message", NewString(""))
	return NewValueFromPlainObject(p)
}

// ID returns the realm's unique identifier.
func (r *Realm) ID() uuid.UUID { return r.id }

func (r *Realm) Options() RealmOptions { return r.options }

// ErrorPrototype returns the prototype used for error objects of kind.
func (r *Realm) ErrorPrototype(kind ErrorKind) Value {
	if p, ok := r.ErrorPrototypes[kind]; ok {
		return p
	}
	return r.ErrorPrototypes[KindError]
}

// Intrinsic fetches a named intrinsic such as "%WrapForValidIteratorPrototype%".
func (r *Realm) Intrinsic(name string) (Value, bool) {
	v, ok := r.intrinsics[name]
	return v, ok
}

func (r *Realm) SetIntrinsic(name string, v Value) {
	r.intrinsics[name] = v
}

// Global returns the global object as a value.
func (r *Realm) Global() Value {
	return NewValueFromPlainObject(r.GlobalObject)
}

// DefineGlobal installs a writable, non-enumerable, configurable global binding.
func (r *Realm) DefineGlobal(name string, v Value) {
	r.GlobalObject.SetOwnNonEnumerable(name, v)
}

// GetGlobal reads a global binding.
func (r *Realm) GetGlobal(name string) (Value, bool) {
	return r.GlobalObject.GetOwn(name)
}

// MarkInstalled records that the named container has been installed and
// reports whether this was the first time.
func (r *Realm) MarkInstalled(name string) bool {
	return r.installed.Add(name)
}

// IsInstalled reports whether MarkInstalled has recorded name.
func (r *Realm) IsInstalled(name string) bool {
	return r.installed.Contains(name)
}
