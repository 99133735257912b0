package vm

import (
	"unsafe"
)

// NativeFn is the call behaviour of a native function.
type NativeFn func(this Value, args []Value) (Value, error)

// NativeCtor is the construct behaviour of a native function. newTarget is
// the constructor that `new` was applied to.
type NativeCtor func(args []Value, newTarget Value) (Value, error)

// NativeFunctionObject represents a native Go function callable from script.
// Ctor is nil for functions that are not constructors.
type NativeFunctionObject struct {
	PlainObject
	Arity    int
	Variadic bool
	Name     string
	Fn       NativeFn
	Ctor     NativeCtor
}

// NewNativeFunction creates a callable, non-constructible function. The
// realm's Function.prototype is attached when the function is created through
// VM.NewFunction; this constructor leaves the prototype null.
func NewNativeFunction(arity int, variadic bool, name string, fn NativeFn) Value {
	f := &NativeFunctionObject{Arity: arity, Variadic: variadic, Name: name, Fn: fn}
	f.init(Null)
	defineFunctionProps(f)
	return Value{typ: TypeNativeFunction, obj: unsafe.Pointer(f)}
}

// NewNativeConstructor creates a function with both call and construct
// behaviour.
func NewNativeConstructor(arity int, name string, fn NativeFn, ctor NativeCtor) Value {
	f := &NativeFunctionObject{Arity: arity, Name: name, Fn: fn, Ctor: ctor}
	f.init(Null)
	defineFunctionProps(f)
	return Value{typ: TypeNativeFunction, obj: unsafe.Pointer(f)}
}

// length and name are configurable, non-writable, non-enumerable.
func defineFunctionProps(f *NativeFunctionObject) {
	w, e, c := false, false, true
	f.DefineOwnProperty("length", IndexValue(f.Arity), &w, &e, &c)
	f.DefineOwnProperty("name", NewString(f.Name), &w, &e, &c)
}
