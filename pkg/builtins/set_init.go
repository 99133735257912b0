package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type SetInitializer struct{}

func (s *SetInitializer) Name() string {
	return "Set"
}

func (s *SetInitializer) Priority() int {
	return PriorityCollections
}

var setGlobalSpec = newSpec("global Set", func() entries {
	return entries{
		constructor("Set", 0).Variadic().ConstructWith(setConstruct).Entry(),
	}
})

var setPrototypeSpec = newSpec("Set.prototype", func() entries {
	isSet := thisType(vm.TypeSet)
	return entries{
		method("has", 1).When("Set", isSet, setHas).Incompatible().Entry(),
		method("add", 1).When("Set", isSet, setAdd).Incompatible().Entry(),
		method("delete", 1).When("Set", isSet, setDelete).Incompatible().Entry(),
		method("clear", 0).When("Set", isSet, setClear).Incompatible().Entry(),
		method("entries", 0).When("Set", isSet, setIteration(iterators.KindEntries)).Incompatible().Entry(),
		method("forEach", 1).Variadic().When("Set", isSet, setForEach).Incompatible().Entry(),
		getter("size").When("Set", isSet, setSize).Incompatible().Entry(),
		method("values", 0).When("Set", isSet, setIteration(iterators.KindValues)).Incompatible().Entry(),
		alias(stringKey("keys"), "values"),
		alias(iteratorKey, "values"),
		toStringTag("Set"),
	}
})

var setIteratorSpec = newSpec("Set Iterator.prototype", func() entries {
	return entries{
		iteratorNext(iterators.SetIteratorBrand),
		toStringTag(iterators.SetIteratorBrand),
	}
})

func (s *SetInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.InstallFamily("Set", setGlobalSpec, nil, setPrototypeSpec, ctx.Realm.SetPrototype)
	ctx.Realm.SetIntrinsic("%SetIteratorPrototype%", ctx.Realm.SetIteratorPrototype)
	ctx.Install(ctx.Realm.SetIteratorPrototype, setIteratorSpec)
	return nil
}

// setConstruct creates a Set and feeds the iterable argument through the
// (possibly user-replaced) add method.
func setConstruct(f *frame) (vm.Value, error) {
	v := f.VM
	set, err := withProto(f, vm.NewSet(), v.Realm().SetPrototype)
	if err != nil {
		return vm.Undefined, err
	}
	if len(f.Rest) == 0 || f.Rest[0].IsNullish() {
		return set, nil
	}
	adder, err := v.Get(set, "add")
	if err != nil {
		return vm.Undefined, err
	}
	if !adder.IsCallable() {
		return vm.Undefined, v.NotCallable(adder)
	}
	rec, err := iterators.GetIterator(v, f.Rest[0], vm.HintSync)
	if err != nil {
		return vm.Undefined, err
	}
	err = iterators.ForEach(v, rec, func(val vm.Value) error {
		_, err := v.Call(adder, set, []vm.Value{val})
		return err
	})
	if err != nil {
		return vm.Undefined, err
	}
	return set, nil
}

func setHas(f *frame) (vm.Value, error) {
	return boolResult(f.This.AsSet().Has(f.Arg(0)))
}

func setAdd(f *frame) (vm.Value, error) {
	f.This.AsSet().Add(normalizeKey(f.Arg(0)))
	return f.This, nil
}

func setDelete(f *frame) (vm.Value, error) {
	return boolResult(f.This.AsSet().Delete(f.Arg(0)))
}

func setClear(f *frame) (vm.Value, error) {
	f.This.AsSet().Clear()
	return vm.Undefined, nil
}

func setSize(f *frame) (vm.Value, error) {
	return vm.IndexValue(f.This.AsSet().Size()), nil
}

func setIteration(kind iterators.Kind) intrinsics.Impl {
	return func(f *frame) (vm.Value, error) {
		state := iterators.NewDirect(iterators.SetIteratorBrand, &iterators.SetSource{Set: f.This.AsSet()}, kind)
		return iterators.NewIteratorObject(f.VM.Realm().SetIteratorPrototype, state), nil
	}
}

// setForEach visits live entries, including ones added by the callback.
func setForEach(f *frame) (vm.Value, error) {
	v := f.VM
	fn := f.Arg(0)
	if !fn.IsCallable() {
		return vm.Undefined, v.NotCallable(fn)
	}
	thisArg := vm.Undefined
	if len(f.Rest) > 0 {
		thisArg = f.Rest[0]
	}
	set := f.This.AsSet()
	for i := 0; i < set.EntryCount(); i++ {
		val, live := set.EntryAt(i)
		if !live {
			continue
		}
		if _, err := v.Call(fn, thisArg, []vm.Value{val, val, f.This}); err != nil {
			return vm.Undefined, err
		}
	}
	return vm.Undefined, nil
}

// normalizeKey turns -0 into +0 before it is stored as a key.
func normalizeKey(k vm.Value) vm.Value {
	if k.IsNumber() && k.AsFloat() == 0 {
		return vm.IntegerValue(0)
	}
	return k
}
