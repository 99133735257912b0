package vm

import (
	"unsafe"
	"weak"
)

// WeakRef observes an object without keeping it alive.
type WeakRef struct {
	typ ValueType
	ptr weak.Pointer[byte]
}

// MakeWeakRef creates a weak reference to the object v.
func MakeWeakRef(v Value) WeakRef {
	return WeakRef{typ: v.typ, ptr: weak.Make((*byte)(v.obj))}
}

// Deref returns the target, or false once it has been collected.
func (w WeakRef) Deref() (Value, bool) {
	p := w.ptr.Value()
	if p == nil {
		return Undefined, false
	}
	return Value{typ: w.typ, obj: unsafe.Pointer(p)}, true
}

// SameTarget reports whether v is the (still live) target of w.
func (w WeakRef) SameTarget(v Value) bool {
	t, ok := w.Deref()
	return ok && t.obj == v.obj
}
