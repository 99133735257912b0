package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type ArrayInitializer struct{}

func (a *ArrayInitializer) Name() string {
	return "Array"
}

func (a *ArrayInitializer) Priority() int {
	return PriorityArray
}

var arrayGlobalSpec = newSpec("global Array", func() entries {
	return entries{
		constructor("Array", 1).Variadic().Generic(arrayCall).ConstructWith(arrayConstruct).Entry(),
	}
})

var arrayStaticSpec = newSpec("Array", func() entries {
	return entries{
		method("isArray", 1).Generic(arrayIsArray).Entry(),
		method("from", 1).Variadic().Generic(arrayFrom).Entry(),
		method("of", 0).Variadic().Generic(arrayOf).Entry(),
	}
})

var arrayPrototypeSpec = newSpec("Array.prototype", func() entries {
	return entries{
		method("entries", 0).Generic(arrayIteration(iterators.KindEntries)).Entry(),
		method("keys", 0).Generic(arrayIteration(iterators.KindKeys)).Entry(),
		method("values", 0).Generic(arrayIteration(iterators.KindValues)).Entry(),
		alias(iteratorKey, "values"),
	}
})

var arrayIteratorSpec = newSpec("Array Iterator.prototype", func() entries {
	return entries{
		iteratorNext(iterators.ArrayIteratorBrand),
		toStringTag(iterators.ArrayIteratorBrand),
	}
})

func (a *ArrayInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.InstallFamily("Array", arrayGlobalSpec, arrayStaticSpec, arrayPrototypeSpec, ctx.Realm.ArrayPrototype)
	ctx.Realm.SetIntrinsic("%ArrayIteratorPrototype%", ctx.Realm.ArrayIteratorPrototype)
	ctx.Install(ctx.Realm.ArrayIteratorPrototype, arrayIteratorSpec)
	return nil
}

// newArrayIterator creates an Array Iterator over an array-like or typed array.
func newArrayIterator(v *vm.VM, obj vm.Value, kind iterators.Kind) vm.Value {
	var src iterators.Source
	if obj.IsTypedArray() {
		src = &iterators.TypedArraySource{Array: obj}
	} else {
		src = &iterators.ArrayLikeSource{Object: obj}
	}
	return iterators.NewIteratorObject(v.Realm().ArrayIteratorPrototype, iterators.NewDirect(iterators.ArrayIteratorBrand, src, kind))
}

func arrayIteration(kind iterators.Kind) func(*frame) (vm.Value, error) {
	return func(f *frame) (vm.Value, error) {
		obj, err := f.VM.ToObject(f.This)
		if err != nil {
			return vm.Undefined, err
		}
		return newArrayIterator(f.VM, obj, kind), nil
	}
}

// newArray implements the Array constructor body shared by call and construct.
func newArray(v *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) == 1 && args[0].IsNumber() {
		n := args[0].AsFloat()
		if n < 0 || n != float64(uint32(n)) {
			return vm.Undefined, v.NewRangeError("Invalid array length")
		}
		arr := v.NewArrayFrom(nil)
		arr.AsArray().SetLength(int(n))
		return arr, nil
	}
	return v.NewArrayFrom(args), nil
}

func arrayCall(f *frame) (vm.Value, error) {
	return newArray(f.VM, f.Passed())
}

func arrayConstruct(f *frame) (vm.Value, error) {
	arr, err := newArray(f.VM, f.Passed())
	if err != nil {
		return vm.Undefined, err
	}
	return withProto(f, arr, f.VM.Realm().ArrayPrototype)
}

func arrayIsArray(f *frame) (vm.Value, error) {
	ok, err := f.VM.IsArray(f.Arg(0))
	if err != nil {
		return vm.Undefined, err
	}
	return boolResult(ok)
}

func arrayOf(f *frame) (vm.Value, error) {
	return f.VM.NewArrayFrom(f.Rest), nil
}

// arrayFrom implements Array.from. Iterables go through the iterator
// protocol and are closed when the mapper throws; other values are read as
// array-likes.
func arrayFrom(f *frame) (vm.Value, error) {
	v := f.VM
	items := f.Arg(0)
	mapFn, thisArg := vm.Undefined, vm.Undefined
	if len(f.Rest) > 0 {
		mapFn = f.Rest[0]
	}
	if len(f.Rest) > 1 {
		thisArg = f.Rest[1]
	}
	if !mapFn.IsUndefined() && !mapFn.IsCallable() {
		return vm.Undefined, v.NotCallable(mapFn)
	}
	mapped := func(val vm.Value, i int) (vm.Value, error) {
		if mapFn.IsUndefined() {
			return val, nil
		}
		return v.Call(mapFn, thisArg, []vm.Value{val, vm.IndexValue(i)})
	}

	if items.IsNullish() {
		return vm.Undefined, v.NewTypeError("%s is not iterable", items.Inspect())
	}
	using, err := v.GetIteratorMethod(items, vm.HintSync)
	if err != nil {
		return vm.Undefined, err
	}
	var out []vm.Value
	if !using.IsUndefined() {
		rec, err := iterators.GetIteratorFromMethod(v, items, using)
		if err != nil {
			return vm.Undefined, err
		}
		err = iterators.ForEach(v, rec, func(val vm.Value) error {
			m, err := mapped(val, len(out))
			if err != nil {
				return err
			}
			out = append(out, m)
			return nil
		})
		if err != nil {
			return vm.Undefined, err
		}
		return v.NewArrayFrom(out), nil
	}

	obj, err := v.ToObject(items)
	if err != nil {
		return vm.Undefined, err
	}
	n, err := v.LengthOfArrayLike(obj)
	if err != nil {
		return vm.Undefined, err
	}
	out = make([]vm.Value, 0, n)
	for i := 0; i < n; i++ {
		val, err := v.GetProperty(obj, vm.NewIndexKey(i))
		if err != nil {
			return vm.Undefined, err
		}
		m, err := mapped(val, i)
		if err != nil {
			return vm.Undefined, err
		}
		out = append(out, m)
	}
	return v.NewArrayFrom(out), nil
}
