package builtins

import (
	"errors"

	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type AsyncIteratorInitializer struct{}

func (a *AsyncIteratorInitializer) Name() string {
	return "AsyncIterator"
}

func (a *AsyncIteratorInitializer) Priority() int {
	return PriorityAsyncIterator
}

var asyncIteratorPrototypeSpec = newSpec("%AsyncIteratorPrototype%", func() entries {
	return entries{
		symbolMethod(vm.SymbolAsyncIterator, 0).Generic(returnThis).Entry(),
	}
})

// Every method settles a promise; receiver and protocol errors reject it
// instead of throwing.
var asyncFromSyncPrototypeSpec = newSpec("%AsyncFromSyncIteratorPrototype%", func() entries {
	isAsyncFromSync := thisBrand(iterators.AsyncFromSyncBrand)
	return entries{
		method("next", 0).Variadic().When(iterators.AsyncFromSyncBrand, isAsyncFromSync, asyncFromSyncNext).Fallback(rejectReceiver).Entry(),
		method("return", 0).Variadic().When(iterators.AsyncFromSyncBrand, isAsyncFromSync, asyncFromSyncReturn).Fallback(rejectReceiver).Entry(),
		method("throw", 0).Variadic().When(iterators.AsyncFromSyncBrand, isAsyncFromSync, asyncFromSyncThrow).Fallback(rejectReceiver).Entry(),
	}
})

func (a *AsyncIteratorInitializer) InitRuntime(ctx *RuntimeContext) error {
	realm := ctx.Realm
	realm.SetIntrinsic("%AsyncIteratorPrototype%", realm.AsyncIteratorPrototype)
	ctx.Install(realm.AsyncIteratorPrototype, asyncIteratorPrototypeSpec)

	proto := vm.NewObject(realm.AsyncIteratorPrototype)
	realm.SetIntrinsic("%AsyncFromSyncIteratorPrototype%", proto)
	ctx.Install(proto, asyncFromSyncPrototypeSpec)
	return nil
}

// CreateAsyncFromSyncIterator adapts a sync iterator record to the async
// iterator protocol.
func CreateAsyncFromSyncIterator(v *vm.VM, rec *iterators.Record) vm.Value {
	state := iterators.NewWrapper(iterators.AsyncFromSyncBrand, rec)
	return iterators.NewIteratorObject(intrinsicOf(v, "%AsyncFromSyncIteratorPrototype%"), state)
}

// GetAsyncIterator obtains an async iterator record from obj, falling back to
// its sync iterator wrapped by CreateAsyncFromSyncIterator.
func GetAsyncIterator(v *vm.VM, obj vm.Value) (*iterators.Record, error) {
	method, err := v.GetIteratorMethod(obj, vm.HintAsync)
	if err != nil {
		return nil, err
	}
	if !method.IsUndefined() {
		return iterators.GetIteratorFromMethod(v, obj, method)
	}
	syncMethod, err := v.GetIteratorMethod(obj, vm.HintSync)
	if err != nil {
		return nil, err
	}
	if syncMethod.IsUndefined() {
		return nil, v.NewTypeError("%s is not async iterable", obj.Inspect())
	}
	rec, err := iterators.GetIteratorFromMethod(v, obj, syncMethod)
	if err != nil {
		return nil, err
	}
	return iterators.GetIteratorDirect(v, CreateAsyncFromSyncIterator(v, rec))
}

func rejectReceiver(f *frame) (vm.Value, error) {
	return f.VM.PromiseFromError(f.VM.IncompatibleReceiver(f.Entry.QualifiedName(), f.This)), nil
}

func syncWrapper(f *frame) *iterators.Wrapper {
	return f.This.Slot().(*iterators.Wrapper)
}

func firstArg(args []vm.Value) vm.Value {
	if len(args) > 0 {
		return args[0]
	}
	return vm.Undefined
}

func asyncFromSyncNext(f *frame) (vm.Value, error) {
	v := f.VM
	w := syncWrapper(f)
	res, err := w.Next(v, f.Rest...)
	if err != nil {
		return v.PromiseFromError(err), nil
	}
	return asyncFromSyncContinuation(v, res, w.Record(), true), nil
}

func asyncFromSyncReturn(f *frame) (vm.Value, error) {
	v := f.VM
	w := syncWrapper(f)
	value := firstArg(f.Rest)
	res, found, err := w.Delegate(v, "return", f.Rest...)
	switch {
	case err != nil:
		return v.PromiseFromError(err), nil
	case !found:
		return v.NewResolvedPromise(v.CreateIterResultObject(value, true)), nil
	case !res.IsObject():
		return v.PromiseFromError(v.NewTypeError("Iterator result %s is not an object", res.Inspect())), nil
	}
	return asyncFromSyncContinuation(v, res, w.Record(), false), nil
}

// asyncFromSyncThrow without an inner throw method closes the sync iterator
// and rejects with a TypeError.
func asyncFromSyncThrow(f *frame) (vm.Value, error) {
	v := f.VM
	rec := syncWrapper(f).Record()
	res, err := iterators.Throw(v, f.This, firstArg(f.Rest), iterators.AsyncFromSyncBrand, f.Entry.QualifiedName())
	if errors.Is(err, iterators.ErrNoThrowMethod) {
		if err := iterators.CloseOnNormal(v, rec); err != nil {
			return v.PromiseFromError(err), nil
		}
		return v.PromiseFromError(v.NewTypeError("The iterator does not provide a 'throw' method")), nil
	}
	if err != nil {
		return v.PromiseFromError(err), nil
	}
	if !res.IsObject() {
		return v.PromiseFromError(v.NewTypeError("Iterator result %s is not an object", res.Inspect())), nil
	}
	return asyncFromSyncContinuation(v, res, rec, true), nil
}

// asyncFromSyncContinuation unwraps a settled promise in the sync result's
// value. A rejected value closes the sync iterator when closeOnRejection is
// set and the result was not done.
func asyncFromSyncContinuation(v *vm.VM, res vm.Value, rec *iterators.Record, closeOnRejection bool) vm.Value {
	doneVal, err := v.Get(res, "done")
	if err != nil {
		return v.PromiseFromError(err)
	}
	done := doneVal.IsTruthy()
	value, err := v.Get(res, "value")
	if err != nil {
		return v.PromiseFromError(err)
	}
	if value.Type() == vm.TypePromise {
		p := value.AsPromise()
		switch p.State() {
		case vm.PromiseRejected:
			if !done && closeOnRejection {
				_ = iterators.CloseOnAbrupt(v, rec, vm.ThrowValue(p.Result()))
			}
			return v.NewRejectedPromise(p.Result())
		case vm.PromiseFulfilled:
			value = p.Result()
		}
	}
	return v.NewResolvedPromise(v.CreateIterResultObject(value, done))
}
