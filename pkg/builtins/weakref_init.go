package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type WeakRefInitializer struct{}

func (w *WeakRefInitializer) Name() string {
	return "WeakRef"
}

func (w *WeakRefInitializer) Priority() int {
	return PriorityWeak
}

const (
	weakRefBrand              = "WeakRef"
	finalizationRegistryBrand = "FinalizationRegistry"
)

type weakRefSlot struct {
	target vm.WeakRef
}

func (*weakRefSlot) Brand() string { return weakRefBrand }

type finalizationCell struct {
	target   vm.WeakRef
	held     vm.Value
	token    vm.WeakRef
	hasToken bool
}

func (c *finalizationCell) collected() bool {
	_, ok := c.target.Deref()
	return !ok
}

type finalizationRegistrySlot struct {
	cleanup vm.Value
	cells   []*finalizationCell
}

func (*finalizationRegistrySlot) Brand() string { return finalizationRegistryBrand }

// takeCollected removes and returns the first cell whose target is gone.
func (r *finalizationRegistrySlot) takeCollected() (*finalizationCell, bool) {
	for i, c := range r.cells {
		if c.collected() {
			r.cells = append(r.cells[:i], r.cells[i+1:]...)
			return c, true
		}
	}
	return nil, false
}

func (r *finalizationRegistrySlot) hasCollected() bool {
	for _, c := range r.cells {
		if c.collected() {
			return true
		}
	}
	return false
}

var weakRefGlobalSpec = newSpec("global WeakRef", func() entries {
	return entries{
		constructor("WeakRef", 1).ConstructWith(weakRefConstruct).Entry(),
	}
})

var weakRefPrototypeSpec = newSpec("WeakRef.prototype", func() entries {
	return entries{
		method("deref", 0).When(weakRefBrand, thisBrand(weakRefBrand), weakRefDeref).Incompatible().Entry(),
		toStringTag(weakRefBrand),
	}
})

var finalizationRegistryGlobalSpec = newSpec("global FinalizationRegistry", func() entries {
	return entries{
		constructor("FinalizationRegistry", 1).ConstructWith(finalizationRegistryConstruct).Entry(),
	}
})

var finalizationRegistryPrototypeSpec = newSpec("FinalizationRegistry.prototype", func() entries {
	isRegistry := thisBrand(finalizationRegistryBrand)
	return entries{
		method("register", 2).Variadic().When(finalizationRegistryBrand, isRegistry, finalizationRegistryRegister).Incompatible().Entry(),
		method("unregister", 1).When(finalizationRegistryBrand, isRegistry, finalizationRegistryUnregister).Incompatible().Entry(),
		method("cleanupSome", 0).Variadic().Gated("cleanup-some").
			When(finalizationRegistryBrand, isRegistry, finalizationRegistryCleanupSome).Incompatible().Entry(),
		toStringTag(finalizationRegistryBrand),
	}
})

var cleanupIteratorSpec = newSpec("FinalizationRegistry Cleanup Iterator.prototype", func() entries {
	return entries{
		iteratorNext(iterators.CleanupIteratorBrand),
		toStringTag(iterators.CleanupIteratorBrand),
	}
})

func (w *WeakRefInitializer) InitRuntime(ctx *RuntimeContext) error {
	realm := ctx.Realm
	weakRefProto := vm.NewObject(realm.ObjectPrototype)
	realm.SetIntrinsic("%WeakRef.prototype%", weakRefProto)
	ctx.InstallFamily("WeakRef", weakRefGlobalSpec, nil, weakRefPrototypeSpec, weakRefProto)

	registryProto := vm.NewObject(realm.ObjectPrototype)
	realm.SetIntrinsic("%FinalizationRegistry.prototype%", registryProto)
	ctx.InstallFamily("FinalizationRegistry", finalizationRegistryGlobalSpec, nil, finalizationRegistryPrototypeSpec, registryProto)

	cleanupProto := newIteratorPrototype(ctx, "%FinalizationRegistryCleanupIteratorPrototype%")
	ctx.Install(cleanupProto, cleanupIteratorSpec)
	return nil
}

// canBeHeldWeakly accepts objects and symbols that are not in the global
// registry.
func canBeHeldWeakly(v vm.Value) bool {
	if v.IsObject() {
		return true
	}
	if v.IsSymbol() {
		_, registered := v.AsSymbol().Registered()
		return !registered
	}
	return false
}

func weakRefConstruct(f *frame) (vm.Value, error) {
	v := f.VM
	target := f.Arg(0)
	if !canBeHeldWeakly(target) {
		return vm.Undefined, v.NewTypeError("WeakRef: invalid target")
	}
	proto, err := protoFor(f, intrinsicOf(v, "%WeakRef.prototype%"))
	if err != nil {
		return vm.Undefined, err
	}
	return vm.NewBrandedObject(proto, &weakRefSlot{target: vm.MakeWeakRef(target)}), nil
}

func weakRefDeref(f *frame) (vm.Value, error) {
	if t, ok := f.This.Slot().(*weakRefSlot).target.Deref(); ok {
		return t, nil
	}
	return vm.Undefined, nil
}

func finalizationRegistryConstruct(f *frame) (vm.Value, error) {
	v := f.VM
	cleanup := f.Arg(0)
	if !cleanup.IsCallable() {
		return vm.Undefined, v.NewTypeError("FinalizationRegistry: cleanup must be callable")
	}
	proto, err := protoFor(f, intrinsicOf(v, "%FinalizationRegistry.prototype%"))
	if err != nil {
		return vm.Undefined, err
	}
	return vm.NewBrandedObject(proto, &finalizationRegistrySlot{cleanup: cleanup}), nil
}

func finalizationRegistryRegister(f *frame) (vm.Value, error) {
	v := f.VM
	target, held := f.Arg(0), f.Arg(1)
	token := vm.Undefined
	if len(f.Rest) > 0 {
		token = f.Rest[0]
	}
	if !canBeHeldWeakly(target) {
		return vm.Undefined, v.NewTypeError("%s: invalid target", f.Entry.QualifiedName())
	}
	if target.Is(held) {
		return vm.Undefined, v.NewTypeError("%s: target and holdings must not be same", f.Entry.QualifiedName())
	}
	cell := &finalizationCell{target: vm.MakeWeakRef(target), held: held}
	if !token.IsUndefined() {
		if !canBeHeldWeakly(token) {
			return vm.Undefined, v.NewTypeError("%s: invalid unregister token", f.Entry.QualifiedName())
		}
		cell.token, cell.hasToken = vm.MakeWeakRef(token), true
	}
	r := f.This.Slot().(*finalizationRegistrySlot)
	r.cells = append(r.cells, cell)
	return vm.Undefined, nil
}

func finalizationRegistryUnregister(f *frame) (vm.Value, error) {
	token := f.Arg(0)
	if !canBeHeldWeakly(token) {
		return vm.Undefined, f.VM.NewTypeError("%s: invalid unregister token", f.Entry.QualifiedName())
	}
	r := f.This.Slot().(*finalizationRegistrySlot)
	kept := r.cells[:0]
	removed := false
	for _, c := range r.cells {
		if c.hasToken && c.token.SameTarget(token) {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	r.cells = kept
	return boolResult(removed)
}

// finalizationRegistryCleanupSome hands the callback an iterator over the
// held values of collected cells. The iterator stops working once the
// callback returns.
func finalizationRegistryCleanupSome(f *frame) (vm.Value, error) {
	v := f.VM
	r := f.This.Slot().(*finalizationRegistrySlot)
	callback := r.cleanup
	if len(f.Rest) > 0 && !f.Rest[0].IsUndefined() {
		callback = f.Rest[0]
		if !callback.IsCallable() {
			return vm.Undefined, v.NotCallable(callback)
		}
	}
	if !r.hasCollected() {
		return vm.Undefined, nil
	}
	state := iterators.NewFunc(iterators.CleanupIteratorBrand, func(*vm.VM) (vm.Value, bool, error) {
		c, ok := r.takeCollected()
		if !ok {
			return vm.Undefined, false, nil
		}
		return c.held, true, nil
	})
	it := iterators.NewIteratorObject(intrinsicOf(v, "%FinalizationRegistryCleanupIteratorPrototype%"), state)
	_, err := v.Call(callback, vm.Undefined, []vm.Value{it})
	state.Invalidate()
	log.Debugf("cleanupSome: %d cells remain", len(r.cells))
	if err != nil {
		return vm.Undefined, err
	}
	return vm.Undefined, nil
}
