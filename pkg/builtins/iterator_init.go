package builtins

import (
	"math"

	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type IteratorInitializer struct{}

func (i *IteratorInitializer) Name() string {
	return "Iterator"
}

func (i *IteratorInitializer) Priority() int {
	return PriorityIterator
}

var iteratorGlobalSpec = newSpec("global Iterator", func() entries {
	return entries{
		constructor("Iterator", 0).ConstructWith(constructIterator).Entry(),
	}
})

var iteratorStaticSpec = newSpec("Iterator", func() entries {
	return entries{
		method("from", 1).Since(2025).Generic(iteratorFrom).Entry(),
	}
})

var iteratorPrototypeSpec = newSpec("Iterator.prototype", func() entries {
	object := intrinsics.ThisObject
	return entries{
		symbolMethod(vm.SymbolIterator, 0).Generic(returnThis).Entry(),
		method("map", 1).Since(2025).When("object", object, iteratorMap).Incompatible().Entry(),
		method("filter", 1).Since(2025).When("object", object, iteratorFilter).Incompatible().Entry(),
		method("take", 1).Since(2025).When("object", object, iteratorTake).Incompatible().Entry(),
		method("drop", 1).Since(2025).When("object", object, iteratorDrop).Incompatible().Entry(),
		method("reduce", 1).Variadic().Since(2025).When("object", object, iteratorReduce).Incompatible().Entry(),
		method("toArray", 0).Since(2025).When("object", object, iteratorToArray).Incompatible().Entry(),
		method("forEach", 1).Since(2025).When("object", object, iteratorForEach).Incompatible().Entry(),
		method("some", 1).Since(2025).When("object", object, iteratorSome).Incompatible().Entry(),
		method("every", 1).Since(2025).When("object", object, iteratorEvery).Incompatible().Entry(),
		method("find", 1).Since(2025).When("object", object, iteratorFind).Incompatible().Entry(),
		toStringTag("Iterator"),
	}
})

var wrapForValidIteratorSpec = newSpec("%WrapForValidIteratorPrototype%", func() entries {
	brand := iterators.WrapForValidIteratorBrand
	return entries{
		iteratorNext(brand),
		method("return", 0).Variadic().When(brand, thisBrand(brand), wrapperReturn(brand)).Incompatible().Entry(),
	}
})

var iteratorHelperSpec = newSpec("Iterator Helper.prototype", func() entries {
	brand := iterators.HelperBrand
	return entries{
		iteratorNext(brand),
		method("return", 0).When(brand, thisBrand(brand), helperReturn).Incompatible().Entry(),
		toStringTag(brand),
	}
})

func (i *IteratorInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.Realm.SetIntrinsic("%IteratorPrototype%", ctx.Realm.IteratorPrototype)
	ctx.InstallFamily("Iterator", iteratorGlobalSpec, iteratorStaticSpec, iteratorPrototypeSpec, ctx.Realm.IteratorPrototype)
	ctx.Install(newIteratorPrototype(ctx, "%WrapForValidIteratorPrototype%"), wrapForValidIteratorSpec)
	ctx.Install(newIteratorPrototype(ctx, "%IteratorHelperPrototype%"), iteratorHelperSpec)
	return nil
}

// Iterator is abstract: only subclasses may construct it.
func constructIterator(f *frame) (vm.Value, error) {
	if f.Kind == intrinsics.Construct {
		return vm.Undefined, f.VM.NewTypeError("Abstract class Iterator not directly constructable")
	}
	return withProto(f, f.VM.NewPlainObject(), f.VM.Realm().IteratorPrototype)
}

// iteratorFrom implements Iterator.from: iterators already inheriting from
// %IteratorPrototype% are returned as is, anything else is wrapped.
func iteratorFrom(f *frame) (vm.Value, error) {
	v := f.VM
	obj := f.Arg(0)
	var rec *iterators.Record
	var err error
	switch {
	case obj.IsString():
		it := newStringIterator(v, obj.AsString())
		rec, err = iterators.GetIteratorDirect(v, it)
	case !obj.IsObject():
		return vm.Undefined, v.NewTypeError("%s is not an object", obj.Inspect())
	default:
		var m vm.Value
		m, err = v.GetIteratorMethod(obj, vm.HintSync)
		if err != nil {
			return vm.Undefined, err
		}
		if m.IsUndefined() {
			rec, err = iterators.GetIteratorDirect(v, obj)
		} else {
			rec, err = iterators.GetIteratorFromMethod(v, obj, m)
		}
	}
	if err != nil {
		return vm.Undefined, err
	}
	if inheritsFrom(rec.Iterator, v.Realm().IteratorPrototype) {
		return rec.Iterator, nil
	}
	state := iterators.NewWrapper(iterators.WrapForValidIteratorBrand, rec)
	return iterators.NewIteratorObject(intrinsicOf(v, "%WrapForValidIteratorPrototype%"), state), nil
}

func wrapperReturn(brand string) intrinsics.Impl {
	return func(f *frame) (vm.Value, error) {
		value := vm.Undefined
		if len(f.Rest) > 0 {
			value = f.Rest[0]
		}
		return iterators.Return(f.VM, f.This, value, brand, f.Entry.QualifiedName())
	}
}

func helperReturn(f *frame) (vm.Value, error) {
	return iterators.Return(f.VM, f.This, vm.Undefined, iterators.HelperBrand, f.Entry.QualifiedName())
}

// closeDirect closes the receiver of a helper whose arguments were rejected.
func closeDirect(v *vm.VM, obj vm.Value, cause error) error {
	return iterators.CloseOnAbrupt(v, &iterators.Record{Iterator: obj}, cause)
}

func newHelper(v *vm.VM, rec *iterators.Record, counter float64, step iterators.HelperStep) vm.Value {
	h := iterators.NewHelper(rec, step)
	h.Counter = counter
	return iterators.NewIteratorObject(intrinsicOf(v, "%IteratorHelperPrototype%"), h)
}

// callbackHelper validates fn and opens the receiver as a direct iterator.
func callbackHelper(f *frame) (vm.Value, *iterators.Record, error) {
	v := f.VM
	fn := f.Arg(0)
	if !fn.IsCallable() {
		return vm.Undefined, nil, closeDirect(v, f.This, v.NotCallable(fn))
	}
	rec, err := iterators.GetIteratorDirect(v, f.This)
	return fn, rec, err
}

func iteratorMap(f *frame) (vm.Value, error) {
	mapper, rec, err := callbackHelper(f)
	if err != nil {
		return vm.Undefined, err
	}
	return newHelper(f.VM, rec, 0, func(v *vm.VM, h *iterators.Helper) (vm.Value, bool, error) {
		val, done, err := h.Underlying.StepValue(v)
		if err != nil || done {
			return vm.Undefined, false, err
		}
		out, err := v.Call(mapper, vm.Undefined, []vm.Value{val, vm.NumberValue(h.Counter)})
		h.Counter++
		if err != nil {
			return vm.Undefined, false, h.CallbackFailed(v, err)
		}
		return out, true, nil
	}), nil
}

func iteratorFilter(f *frame) (vm.Value, error) {
	predicate, rec, err := callbackHelper(f)
	if err != nil {
		return vm.Undefined, err
	}
	return newHelper(f.VM, rec, 0, func(v *vm.VM, h *iterators.Helper) (vm.Value, bool, error) {
		for {
			val, done, err := h.Underlying.StepValue(v)
			if err != nil || done {
				return vm.Undefined, false, err
			}
			keep, err := v.Call(predicate, vm.Undefined, []vm.Value{val, vm.NumberValue(h.Counter)})
			h.Counter++
			if err != nil {
				return vm.Undefined, false, h.CallbackFailed(v, err)
			}
			if keep.IsTruthy() {
				return val, true, nil
			}
		}
	}), nil
}

// countLimit validates the limit argument of take and drop.
func countLimit(f *frame) (float64, error) {
	v := f.VM
	n, err := v.ToNumber(f.Arg(0))
	if err != nil {
		return 0, closeDirect(v, f.This, err)
	}
	if math.IsNaN(n) {
		return 0, closeDirect(v, f.This, v.NewRangeError("%s must be positive", f.Arg(0).Inspect()))
	}
	limit, _ := v.ToIntegerOrInfinity(vm.NumberValue(n))
	if limit < 0 {
		return 0, closeDirect(v, f.This, v.NewRangeError("%s must be positive", f.Arg(0).Inspect()))
	}
	return limit, nil
}

func iteratorTake(f *frame) (vm.Value, error) {
	limit, err := countLimit(f)
	if err != nil {
		return vm.Undefined, err
	}
	rec, err := iterators.GetIteratorDirect(f.VM, f.This)
	if err != nil {
		return vm.Undefined, err
	}
	return newHelper(f.VM, rec, limit, func(v *vm.VM, h *iterators.Helper) (vm.Value, bool, error) {
		if h.Counter == 0 {
			return vm.Undefined, false, iterators.CloseOnNormal(v, h.Underlying)
		}
		if !math.IsInf(h.Counter, 1) {
			h.Counter--
		}
		val, done, err := h.Underlying.StepValue(v)
		return val, !done && err == nil, err
	}), nil
}

func iteratorDrop(f *frame) (vm.Value, error) {
	limit, err := countLimit(f)
	if err != nil {
		return vm.Undefined, err
	}
	rec, err := iterators.GetIteratorDirect(f.VM, f.This)
	if err != nil {
		return vm.Undefined, err
	}
	return newHelper(f.VM, rec, limit, func(v *vm.VM, h *iterators.Helper) (vm.Value, bool, error) {
		for h.Counter > 0 {
			if !math.IsInf(h.Counter, 1) {
				h.Counter--
			}
			_, done, err := h.Underlying.Step(v)
			if err != nil || done {
				return vm.Undefined, false, err
			}
		}
		val, done, err := h.Underlying.StepValue(v)
		return val, !done && err == nil, err
	}), nil
}

func iteratorToArray(f *frame) (vm.Value, error) {
	v := f.VM
	rec, err := iterators.GetIteratorDirect(v, f.This)
	if err != nil {
		return vm.Undefined, err
	}
	var out []vm.Value
	err = iterators.ForEach(v, rec, func(val vm.Value) error {
		out = append(out, val)
		return nil
	})
	if err != nil {
		return vm.Undefined, err
	}
	return v.NewArrayFrom(out), nil
}

func iteratorForEach(f *frame) (vm.Value, error) {
	fn, rec, err := callbackHelper(f)
	if err != nil {
		return vm.Undefined, err
	}
	v := f.VM
	counter := 0
	err = iterators.ForEach(v, rec, func(val vm.Value) error {
		_, err := v.Call(fn, vm.Undefined, []vm.Value{val, vm.IndexValue(counter)})
		counter++
		return err
	})
	return vm.Undefined, err
}

// scan calls fn with each value until it asks to stop; a stop closes the
// iterator normally.
func scan(v *vm.VM, rec *iterators.Record, fn func(val vm.Value, i int) (bool, error)) (vm.Value, bool, error) {
	for i := 0; ; i++ {
		val, done, err := rec.StepValue(v)
		if err != nil || done {
			return vm.Undefined, false, err
		}
		stop, err := fn(val, i)
		if err != nil {
			return vm.Undefined, false, iterators.CloseOnAbrupt(v, rec, err)
		}
		if stop {
			return val, true, iterators.CloseOnNormal(v, rec)
		}
	}
}

func predicateScan(f *frame, want bool) (vm.Value, bool, error) {
	predicate, rec, err := callbackHelper(f)
	if err != nil {
		return vm.Undefined, false, err
	}
	v := f.VM
	return scan(v, rec, func(val vm.Value, i int) (bool, error) {
		res, err := v.Call(predicate, vm.Undefined, []vm.Value{val, vm.IndexValue(i)})
		if err != nil {
			return false, err
		}
		return res.IsTruthy() == want, nil
	})
}

func iteratorSome(f *frame) (vm.Value, error) {
	_, found, err := predicateScan(f, true)
	if err != nil {
		return vm.Undefined, err
	}
	return boolResult(found)
}

func iteratorEvery(f *frame) (vm.Value, error) {
	_, failed, err := predicateScan(f, false)
	if err != nil {
		return vm.Undefined, err
	}
	return boolResult(!failed)
}

func iteratorFind(f *frame) (vm.Value, error) {
	val, _, err := predicateScan(f, true)
	return val, err
}

func iteratorReduce(f *frame) (vm.Value, error) {
	reducer, rec, err := callbackHelper(f)
	if err != nil {
		return vm.Undefined, err
	}
	v := f.VM
	var acc vm.Value
	counter := 0
	if len(f.Rest) > 0 {
		acc = f.Rest[0]
	} else {
		first, done, err := rec.StepValue(v)
		if err != nil {
			return vm.Undefined, err
		}
		if done {
			return vm.Undefined, v.NewTypeError("Reduce of empty iterator with no initial value")
		}
		acc = first
		counter = 1
	}
	err = iterators.ForEach(v, rec, func(val vm.Value) error {
		next, err := v.Call(reducer, vm.Undefined, []vm.Value{acc, val, vm.IndexValue(counter)})
		if err != nil {
			return err
		}
		acc = next
		counter++
		return nil
	})
	if err != nil {
		return vm.Undefined, err
	}
	return acc, nil
}
