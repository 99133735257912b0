package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type MapInitializer struct{}

func (m *MapInitializer) Name() string {
	return "Map"
}

func (m *MapInitializer) Priority() int {
	return PriorityCollections
}

var mapGlobalSpec = newSpec("global Map", func() entries {
	return entries{
		constructor("Map", 0).Variadic().ConstructWith(mapConstruct).Entry(),
	}
})

var mapPrototypeSpec = newSpec("Map.prototype", func() entries {
	isMap := thisType(vm.TypeMap)
	return entries{
		method("get", 1).When("Map", isMap, mapGet).Incompatible().Entry(),
		method("set", 2).When("Map", isMap, mapSet).Incompatible().Entry(),
		method("has", 1).When("Map", isMap, mapHas).Incompatible().Entry(),
		method("delete", 1).When("Map", isMap, mapDelete).Incompatible().Entry(),
		method("clear", 0).When("Map", isMap, mapClear).Incompatible().Entry(),
		method("entries", 0).When("Map", isMap, mapIteration(iterators.KindEntries)).Incompatible().Entry(),
		method("forEach", 1).Variadic().When("Map", isMap, mapForEach).Incompatible().Entry(),
		method("keys", 0).When("Map", isMap, mapIteration(iterators.KindKeys)).Incompatible().Entry(),
		getter("size").When("Map", isMap, mapSize).Incompatible().Entry(),
		method("values", 0).When("Map", isMap, mapIteration(iterators.KindValues)).Incompatible().Entry(),
		alias(iteratorKey, "entries"),
		toStringTag("Map"),
	}
})

var mapIteratorSpec = newSpec("Map Iterator.prototype", func() entries {
	return entries{
		iteratorNext(iterators.MapIteratorBrand),
		toStringTag(iterators.MapIteratorBrand),
	}
})

func (m *MapInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.InstallFamily("Map", mapGlobalSpec, nil, mapPrototypeSpec, ctx.Realm.MapPrototype)
	ctx.Realm.SetIntrinsic("%MapIteratorPrototype%", ctx.Realm.MapIteratorPrototype)
	ctx.Install(ctx.Realm.MapIteratorPrototype, mapIteratorSpec)
	return nil
}

// mapConstruct creates a Map from an iterable of [key, value] entry objects.
// A non-object entry or a failing setter closes the source iterator.
func mapConstruct(f *frame) (vm.Value, error) {
	v := f.VM
	m, err := withProto(f, vm.NewMap(), v.Realm().MapPrototype)
	if err != nil {
		return vm.Undefined, err
	}
	if len(f.Rest) == 0 || f.Rest[0].IsNullish() {
		return m, nil
	}
	adder, err := v.Get(m, "set")
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
	err = iterators.ForEach(v, rec, func(entry vm.Value) error {
		if !entry.IsObject() {
			return v.NewTypeError("Iterator value %s is not an entry object", entry.Inspect())
		}
		k, err := v.GetProperty(entry, vm.NewIndexKey(0))
		if err != nil {
			return err
		}
		val, err := v.GetProperty(entry, vm.NewIndexKey(1))
		if err != nil {
			return err
		}
		_, err = v.Call(adder, m, []vm.Value{k, val})
		return err
	})
	if err != nil {
		return vm.Undefined, err
	}
	return m, nil
}

func mapGet(f *frame) (vm.Value, error) {
	if val, ok := f.This.AsMap().Get(f.Arg(0)); ok {
		return val, nil
	}
	return vm.Undefined, nil
}

func mapSet(f *frame) (vm.Value, error) {
	f.This.AsMap().Set(normalizeKey(f.Arg(0)), f.Arg(1))
	return f.This, nil
}

func mapHas(f *frame) (vm.Value, error) {
	return boolResult(f.This.AsMap().Has(f.Arg(0)))
}

func mapDelete(f *frame) (vm.Value, error) {
	return boolResult(f.This.AsMap().Delete(f.Arg(0)))
}

func mapClear(f *frame) (vm.Value, error) {
	f.This.AsMap().Clear()
	return vm.Undefined, nil
}

func mapSize(f *frame) (vm.Value, error) {
	return vm.IndexValue(f.This.AsMap().Size()), nil
}

func mapIteration(kind iterators.Kind) intrinsics.Impl {
	return func(f *frame) (vm.Value, error) {
		state := iterators.NewDirect(iterators.MapIteratorBrand, &iterators.MapSource{Map: f.This.AsMap()}, kind)
		return iterators.NewIteratorObject(f.VM.Realm().MapIteratorPrototype, state), nil
	}
}

func mapForEach(f *frame) (vm.Value, error) {
	v := f.VM
	fn := f.Arg(0)
	if !fn.IsCallable() {
		return vm.Undefined, v.NotCallable(fn)
	}
	thisArg := vm.Undefined
	if len(f.Rest) > 0 {
		thisArg = f.Rest[0]
	}
	m := f.This.AsMap()
	for i := 0; i < m.EntryCount(); i++ {
		k, val, live := m.EntryAt(i)
		if !live {
			continue
		}
		if _, err := v.Call(fn, thisArg, []vm.Value{val, k, f.This}); err != nil {
			return vm.Undefined, err
		}
	}
	return vm.Undefined, nil
}
