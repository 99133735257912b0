package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type TypedArrayInitializer struct{}

func (t *TypedArrayInitializer) Name() string {
	return "TypedArray"
}

func (t *TypedArrayInitializer) Priority() int {
	return PriorityTypedArray
}

// %TypedArray% is abstract and not a global binding.
var typedArrayAbstractSpec = newSpec("%TypedArray% constructor", func() entries {
	return entries{
		constructor("TypedArray", 0).ConstructWith(func(f *frame) (vm.Value, error) {
			if f.Kind == intrinsics.Construct {
				return vm.Undefined, f.VM.NewTypeError("Abstract class TypedArray not directly constructable")
			}
			return withProto(f, vm.NewObject(vm.Null), f.VM.Realm().TypedArrayPrototype)
		}).Entry(),
	}
})

var typedArrayPrototypeSpec = newSpec("%TypedArray%.prototype", func() entries {
	attached := intrinsics.ThisTypedArray
	detached := intrinsics.ThisDetachedTypedArray
	zero := func(*frame) (vm.Value, error) { return vm.IntegerValue(0), nil }
	return entries{
		getter("buffer").When("TypedArray", thisType(vm.TypeTypedArray), func(f *frame) (vm.Value, error) {
			return f.This.AsTypedArray().Buffer(), nil
		}).Incompatible().Entry(),
		getter("byteLength").
			When("attached", attached, func(f *frame) (vm.Value, error) {
				return vm.IndexValue(f.This.AsTypedArray().ByteLength()), nil
			}).
			When("detached", detached, zero).
			Incompatible().Entry(),
		getter("byteOffset").
			When("attached", attached, func(f *frame) (vm.Value, error) {
				return vm.IndexValue(f.This.AsTypedArray().ByteOffset()), nil
			}).
			When("detached", detached, zero).
			Incompatible().Entry(),
		getter("length").
			When("attached", attached, func(f *frame) (vm.Value, error) {
				return vm.IndexValue(f.This.AsTypedArray().Length()), nil
			}).
			When("detached", detached, zero).
			Incompatible().Entry(),
		typedArrayIteration("entries", iterators.KindEntries),
		typedArrayIteration("keys", iterators.KindKeys),
		typedArrayIteration("values", iterators.KindValues),
		alias(iteratorKey, "values"),
		symbolGetter(vm.SymbolToStringTag).Generic(func(f *frame) (vm.Value, error) {
			if !f.This.IsTypedArray() {
				return vm.Undefined, nil
			}
			return vm.NewString(f.This.AsTypedArray().Kind().Name()), nil
		}).Entry(),
	}
})

func typedArrayIteration(name string, kind iterators.Kind) *intrinsics.Entry {
	return method(name, 0).
		When("attached", intrinsics.ThisTypedArray, func(f *frame) (vm.Value, error) {
			return newArrayIterator(f.VM, f.This, kind), nil
		}).
		When("detached", intrinsics.ThisDetachedTypedArray, func(f *frame) (vm.Value, error) {
			return vm.Undefined, detachedError(f)
		}).
		Incompatible().Entry()
}

var typedArrayGlobalSpec = newSpec("global TypedArrays", func() entries {
	out := make(entries, 0, len(vm.TypedArrayKinds))
	for _, kind := range vm.TypedArrayKinds {
		out = append(out, constructor(kind.Name(), 3).ConstructWith(typedArrayConstruct(kind)).Entry())
	}
	return out
})

// Per-kind containers carrying BYTES_PER_ELEMENT on the constructor and
// its prototype.
var typedArrayKindSpecs = func() map[vm.TypedArrayKind][2]*intrinsics.ContainerSpec {
	out := make(map[vm.TypedArrayKind][2]*intrinsics.ContainerSpec, len(vm.TypedArrayKinds))
	for _, kind := range vm.TypedArrayKinds {
		size := vm.IndexValue(kind.BytesPerElement())
		bytes := func() entries { return entries{constant("BYTES_PER_ELEMENT", size)} }
		out[kind] = [2]*intrinsics.ContainerSpec{
			newSpec(kind.Name(), bytes),
			newSpec(kind.Name()+".prototype", bytes),
		}
	}
	return out
}()

func (t *TypedArrayInitializer) InitRuntime(ctx *RuntimeContext) error {
	realm := ctx.Realm
	holder := vm.NewObject(vm.Null)
	abstract, _ := ctx.Function(ctx.Install(holder, typedArrayAbstractSpec), "TypedArray")
	ctx.Install(realm.TypedArrayPrototype, typedArrayPrototypeSpec)
	intrinsics.LinkConstructor(abstract, realm.TypedArrayPrototype)
	realm.SetIntrinsic("%TypedArray%", abstract)

	c := ctx.Install(realm.Global(), typedArrayGlobalSpec)
	for _, kind := range vm.TypedArrayKinds {
		ctor, ok := ctx.Function(c, kind.Name())
		if !ok {
			continue
		}
		ctor.AsPlainObject().SetPrototype(abstract)
		proto := realm.TypedArrayPrototypes[kind]
		specs := typedArrayKindSpecs[kind]
		ctx.Install(ctor, specs[0])
		ctx.Install(proto, specs[1])
		intrinsics.LinkConstructor(ctor, proto)
	}
	return nil
}

// allocateTypedArray creates a zero-filled view of n elements.
func allocateTypedArray(v *vm.VM, kind vm.TypedArrayKind, n int, proto vm.Value) (vm.Value, error) {
	buf, err := newArrayBuffer(v, n*kind.BytesPerElement())
	if err != nil {
		return vm.Undefined, err
	}
	ta := vm.NewTypedArray(kind, buf, 0, n)
	ta.AsPlainObject().SetPrototype(proto)
	return ta, nil
}

// fillTypedArray writes values through the element conversion of ta's kind.
func fillTypedArray(v *vm.VM, ta vm.Value, values []vm.Value) error {
	for i, val := range values {
		if err := v.SetProperty(ta, vm.NewIndexKey(i), val); err != nil {
			return err
		}
	}
	return nil
}

func typedArrayConstruct(kind vm.TypedArrayKind) intrinsics.Impl {
	return func(f *frame) (vm.Value, error) {
		v := f.VM
		proto, err := protoFor(f, v.Realm().TypedArrayPrototypes[kind])
		if err != nil {
			return vm.Undefined, err
		}
		first := f.Arg(0)
		switch {
		case !first.IsObject():
			n, err := v.ToIndex(first)
			if err != nil {
				return vm.Undefined, err
			}
			return allocateTypedArray(v, kind, n, proto)
		case first.IsArrayBuffer():
			return typedArrayOverBuffer(f, kind, proto)
		case first.IsTypedArray():
			src := first.AsTypedArray()
			if src.IsOutOfBounds() {
				return vm.Undefined, detachedError(f)
			}
			if src.Kind().IsBigInt() != kind.IsBigInt() {
				return vm.Undefined, v.NewTypeError("Cannot mix BigInt and other types, use explicit conversions")
			}
			values := make([]vm.Value, src.Length())
			for i := range values {
				values[i] = src.GetElement(i)
			}
			return typedArrayFrom(v, kind, values, proto)
		}
		values, err := collectElements(v, first)
		if err != nil {
			return vm.Undefined, err
		}
		return typedArrayFrom(v, kind, values, proto)
	}
}

func typedArrayFrom(v *vm.VM, kind vm.TypedArrayKind, values []vm.Value, proto vm.Value) (vm.Value, error) {
	ta, err := allocateTypedArray(v, kind, len(values), proto)
	if err != nil {
		return vm.Undefined, err
	}
	if err := fillTypedArray(v, ta, values); err != nil {
		return vm.Undefined, err
	}
	return ta, nil
}

// collectElements reads an iterable, or an array-like when obj has no
// @@iterator.
func collectElements(v *vm.VM, obj vm.Value) ([]vm.Value, error) {
	m, err := v.GetIteratorMethod(obj, vm.HintSync)
	if err != nil {
		return nil, err
	}
	if !m.IsUndefined() {
		rec, err := iterators.GetIteratorFromMethod(v, obj, m)
		if err != nil {
			return nil, err
		}
		var out []vm.Value
		err = iterators.ForEach(v, rec, func(val vm.Value) error {
			out = append(out, val)
			return nil
		})
		return out, err
	}
	n, err := v.LengthOfArrayLike(obj)
	if err != nil {
		return nil, err
	}
	out := make([]vm.Value, n)
	for i := range out {
		if out[i], err = v.GetProperty(obj, vm.NewIndexKey(i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func typedArrayOverBuffer(f *frame, kind vm.TypedArrayKind, proto vm.Value) (vm.Value, error) {
	v := f.VM
	buf := f.Arg(0)
	size := kind.BytesPerElement()
	offset, err := v.ToIndex(f.Arg(1))
	if err != nil {
		return vm.Undefined, err
	}
	if offset%size != 0 {
		return vm.Undefined, v.NewRangeError("start offset of %s should be a multiple of %d", kind.Name(), size)
	}
	length := 0
	if !f.Arg(2).IsUndefined() {
		if length, err = v.ToIndex(f.Arg(2)); err != nil {
			return vm.Undefined, err
		}
	}
	ab := buf.AsArrayBuffer()
	if ab.IsDetached() {
		return vm.Undefined, v.NewTypeError("Cannot construct %s on a detached ArrayBuffer", kind.Name())
	}
	bufLen := ab.ByteLength()
	if f.Arg(2).IsUndefined() {
		if bufLen%size != 0 {
			return vm.Undefined, v.NewRangeError("byte length of %s should be a multiple of %d", kind.Name(), size)
		}
		if offset > bufLen {
			return vm.Undefined, v.NewRangeError("Start offset %d is outside the bounds of the buffer", offset)
		}
		length = (bufLen - offset) / size
	} else if offset+length*size > bufLen {
		return vm.Undefined, v.NewRangeError("Invalid typed array length: %d", length)
	}
	ta := vm.NewTypedArray(kind, buf, offset, length)
	ta.AsPlainObject().SetPrototype(proto)
	return ta, nil
}
