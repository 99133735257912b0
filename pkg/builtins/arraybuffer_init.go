package builtins

import (
	"math"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

type ArrayBufferInitializer struct{}

func (a *ArrayBufferInitializer) Name() string {
	return "ArrayBuffer"
}

func (a *ArrayBufferInitializer) Priority() int {
	return PriorityArrayBuffer
}

// maxByteLength bounds allocations made from script.
const maxByteLength = 1 << 31

var arrayBufferGlobalSpec = newSpec("global ArrayBuffer", func() entries {
	return entries{
		constructor("ArrayBuffer", 1).ConstructWith(arrayBufferConstruct).Entry(),
	}
})

var arrayBufferStaticSpec = newSpec("ArrayBuffer", func() entries {
	return entries{
		method("isView", 1).Generic(func(f *frame) (vm.Value, error) {
			return boolResult(f.Arg(0).IsTypedArray())
		}).Entry(),
	}
})

var arrayBufferPrototypeSpec = newSpec("ArrayBuffer.prototype", func() entries {
	isBuffer := thisType(vm.TypeArrayBuffer)
	return entries{
		getter("byteLength").When("ArrayBuffer", isBuffer, arrayBufferByteLength).Incompatible().Entry(),
		getter("detached").Since(2024).When("ArrayBuffer", isBuffer, arrayBufferDetached).Incompatible().Entry(),
		method("slice", 2).When("ArrayBuffer", isBuffer, arrayBufferSlice).Incompatible().Entry(),
		method("transfer", 0).Variadic().Since(2024).When("ArrayBuffer", isBuffer, arrayBufferTransfer).Incompatible().Entry(),
		toStringTag("ArrayBuffer"),
	}
})

func (a *ArrayBufferInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.InstallFamily("ArrayBuffer", arrayBufferGlobalSpec, arrayBufferStaticSpec, arrayBufferPrototypeSpec, ctx.Realm.ArrayBufferPrototype)
	return nil
}

// newArrayBuffer allocates a zeroed buffer of n bytes in v's realm.
func newArrayBuffer(v *vm.VM, n int) (vm.Value, error) {
	if n > maxByteLength {
		return vm.Undefined, v.NewRangeError("Array buffer allocation failed")
	}
	buf := vm.NewArrayBuffer(n)
	buf.AsPlainObject().SetPrototype(v.Realm().ArrayBufferPrototype)
	return buf, nil
}

func arrayBufferConstruct(f *frame) (vm.Value, error) {
	n, err := f.VM.ToIndex(f.Arg(0))
	if err != nil {
		return vm.Undefined, err
	}
	buf, err := newArrayBuffer(f.VM, n)
	if err != nil {
		return vm.Undefined, err
	}
	return withProto(f, buf, f.VM.Realm().ArrayBufferPrototype)
}

func arrayBufferByteLength(f *frame) (vm.Value, error) {
	return vm.IndexValue(f.This.AsArrayBuffer().ByteLength()), nil
}

func arrayBufferDetached(f *frame) (vm.Value, error) {
	return boolResult(f.This.AsArrayBuffer().IsDetached())
}

func detachedError(f *frame) error {
	return f.VM.NewTypeError("Cannot perform %s on a detached ArrayBuffer", f.Entry.QualifiedName())
}

// relativeIndex resolves a possibly negative relative index against length.
func relativeIndex(v *vm.VM, arg vm.Value, length int, dflt int) (int, error) {
	if arg.IsUndefined() {
		return dflt, nil
	}
	rel, err := v.ToIntegerOrInfinity(arg)
	if err != nil {
		return 0, err
	}
	if rel < 0 {
		return int(math.Max(float64(length)+rel, 0)), nil
	}
	return int(math.Min(rel, float64(length))), nil
}

func arrayBufferSlice(f *frame) (vm.Value, error) {
	ab := f.This.AsArrayBuffer()
	if ab.IsDetached() {
		return vm.Undefined, detachedError(f)
	}
	length := ab.ByteLength()
	first, err := relativeIndex(f.VM, f.Arg(0), length, 0)
	if err != nil {
		return vm.Undefined, err
	}
	final, err := relativeIndex(f.VM, f.Arg(1), length, length)
	if err != nil {
		return vm.Undefined, err
	}
	if ab.IsDetached() {
		return vm.Undefined, detachedError(f)
	}
	n := max(final-first, 0)
	out, err := newArrayBuffer(f.VM, n)
	if err != nil {
		return vm.Undefined, err
	}
	copy(out.AsArrayBuffer().Data(), ab.Data()[first:first+n])
	return out, nil
}

// arrayBufferTransfer moves the contents into a new buffer and detaches the
// receiver.
func arrayBufferTransfer(f *frame) (vm.Value, error) {
	ab := f.This.AsArrayBuffer()
	newLength := ab.ByteLength()
	if len(f.Rest) > 0 && !f.Rest[0].IsUndefined() {
		n, err := f.VM.ToIndex(f.Rest[0])
		if err != nil {
			return vm.Undefined, err
		}
		newLength = n
	}
	if ab.IsDetached() {
		return vm.Undefined, detachedError(f)
	}
	out, err := newArrayBuffer(f.VM, newLength)
	if err != nil {
		return vm.Undefined, err
	}
	copy(out.AsArrayBuffer().Data(), ab.Data())
	ab.Detach()
	return out, nil
}
