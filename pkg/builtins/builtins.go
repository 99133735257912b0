package builtins

import (
	"github.com/tliron/commonlog"

	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

var log = commonlog.GetLogger("jsintrinsics.builtins")

// Shorthand for the container DSL.
type (
	entries = []*intrinsics.Entry
	frame   = intrinsics.Frame
)

var (
	method        = intrinsics.Method
	symbolMethod  = intrinsics.SymbolMethod
	getter        = intrinsics.Getter
	symbolGetter  = intrinsics.SymbolGetter
	constructor   = intrinsics.Constructor
	toStringTag   = intrinsics.ToStringTag
	newSpec       = intrinsics.NewContainerSpec
	iteratorKey   = vm.NewSymbolKey(vm.SymbolIterator)
	stringKey     = vm.NewStringKey
	thisBrand     = intrinsics.ThisBrand
	thisType      = intrinsics.ThisType
	constantAttrs = intrinsics.ConstantAttributes
)

// alias returns an entry sharing the function object stored under target.
func alias(key vm.PropertyKey, target string) *intrinsics.Entry {
	return intrinsics.Alias(key, stringKey(target))
}

// constant creates a non-writable, non-configurable data entry.
func constant(name string, value vm.Value) *intrinsics.Entry {
	return intrinsics.Data(stringKey(name), constantAttrs, func(*vm.VM) vm.Value { return value })
}

// intrinsicValue creates a data entry whose value is the realm intrinsic name.
func intrinsicValue(key, name string, attrs intrinsics.Attributes) *intrinsics.Entry {
	return intrinsics.Data(stringKey(key), attrs, func(v *vm.VM) vm.Value {
		val, _ := v.Realm().Intrinsic(name)
		return val
	})
}

func returnThis(f *frame) (vm.Value, error) {
	return f.This, nil
}

// nextOf implements the next method of a builtin iterator prototype.
func nextOf(brand string) intrinsics.Impl {
	return func(f *frame) (vm.Value, error) {
		return iterators.Next(f.VM, f.This, brand, f.Entry.QualifiedName())
	}
}

// iteratorNext is the next entry of a builtin iterator prototype; receivers of
// the wrong brand fail with the incompatible-receiver TypeError.
func iteratorNext(brand string) *intrinsics.Entry {
	return method("next", 0).When(brand, thisBrand(brand), nextOf(brand)).Incompatible().Entry()
}

// protoFor returns the prototype for an object created by a constructor
// invocation, honouring new.target.
func protoFor(f *frame, fallback vm.Value) (vm.Value, error) {
	if f.NewTarget.IsUndefined() {
		return fallback, nil
	}
	return f.VM.GetPrototypeFromConstructor(f.NewTarget, fallback)
}

// withProto creates obj's prototype link for a constructor invocation.
func withProto(f *frame, obj vm.Value, fallback vm.Value) (vm.Value, error) {
	proto, err := protoFor(f, fallback)
	if err != nil {
		return vm.Undefined, err
	}
	obj.AsPlainObject().SetPrototype(proto)
	return obj, nil
}

// inheritsFrom reports whether proto is on obj's prototype chain.
func inheritsFrom(obj, proto vm.Value) bool {
	if !obj.IsObject() {
		return false
	}
	for p := obj.AsPlainObject().GetPrototype(); p.IsObject(); p = p.AsPlainObject().GetPrototype() {
		if p.Is(proto) {
			return true
		}
	}
	return false
}

// requireObjectCoercible rejects undefined and null receivers.
func requireObjectCoercible(f *frame) error {
	if f.This.IsNullish() {
		return f.VM.NewTypeError("%s called on null or undefined", f.Entry.QualifiedName())
	}
	return nil
}

// newIteratorPrototype creates an object inheriting %IteratorPrototype% and
// records it as the realm intrinsic name.
func newIteratorPrototype(ctx *RuntimeContext, name string) vm.Value {
	proto := vm.NewObject(ctx.Realm.IteratorPrototype)
	ctx.Realm.SetIntrinsic(name, proto)
	return proto
}

func intrinsicOf(v *vm.VM, name string) vm.Value {
	val, ok := v.Realm().Intrinsic(name)
	if !ok {
		return vm.Undefined
	}
	return val
}

func boolResult(b bool) (vm.Value, error) {
	return vm.BooleanValue(b), nil
}
