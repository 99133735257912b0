package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// AsyncContextInitializer installs the staged AsyncContext namespace. The
// global binding only appears when the realm enables "async-context".
type AsyncContextInitializer struct{}

func (a *AsyncContextInitializer) Name() string {
	return "AsyncContext"
}

func (a *AsyncContextInitializer) Priority() int {
	return PriorityAsyncContext
}

const (
	asyncContextFeature = "async-context"
	variableBrand       = "AsyncContext.Variable"
	snapshotBrand       = "AsyncContext.Snapshot"
)

type variableSlot struct {
	name         string
	defaultValue vm.Value
}

func (*variableSlot) Brand() string { return variableBrand }

type snapshotSlot struct {
	mapping *vm.AsyncContextMapping
}

func (*snapshotSlot) Brand() string { return snapshotBrand }

var asyncContextGlobalSpec = newSpec("global AsyncContext", func() entries {
	e := intrinsicValue("AsyncContext", "%AsyncContext%", intrinsics.MethodAttributes)
	e.Feature = asyncContextFeature
	return entries{e}
})

var asyncContextNamespaceSpec = newSpec("AsyncContext", func() entries {
	return entries{
		constructor("Variable", 0).Variadic().ConstructWith(variableConstruct).Entry(),
		constructor("Snapshot", 0).ConstructWith(snapshotConstruct).Entry(),
		toStringTag("AsyncContext"),
	}
})

var variablePrototypeSpec = newSpec("AsyncContext.Variable.prototype", func() entries {
	isVariable := thisBrand(variableBrand)
	return entries{
		getter("name").When(variableBrand, isVariable, variableName).Incompatible().Entry(),
		method("get", 0).When(variableBrand, isVariable, variableGet).Incompatible().Entry(),
		method("run", 2).Variadic().When(variableBrand, isVariable, variableRun).Incompatible().Entry(),
		toStringTag(variableBrand),
	}
})

var snapshotStaticSpec = newSpec("AsyncContext.Snapshot", func() entries {
	return entries{
		method("wrap", 1).Generic(snapshotWrap).Entry(),
	}
})

var snapshotPrototypeSpec = newSpec("AsyncContext.Snapshot.prototype", func() entries {
	return entries{
		method("run", 1).Variadic().When(snapshotBrand, thisBrand(snapshotBrand), snapshotRun).Incompatible().Entry(),
		toStringTag(snapshotBrand),
	}
})

func (a *AsyncContextInitializer) InitRuntime(ctx *RuntimeContext) error {
	realm := ctx.Realm
	ns := vm.NewObject(realm.ObjectPrototype)
	c := ctx.Install(ns, asyncContextNamespaceSpec)

	if variable, ok := ctx.Function(c, "Variable"); ok {
		proto := vm.NewObject(realm.ObjectPrototype)
		ctx.Install(proto, variablePrototypeSpec)
		intrinsics.LinkConstructor(variable, proto)
		realm.SetIntrinsic("%AsyncContext.Variable.prototype%", proto)
	}
	if snapshot, ok := ctx.Function(c, "Snapshot"); ok {
		proto := vm.NewObject(realm.ObjectPrototype)
		ctx.Install(snapshot, snapshotStaticSpec)
		ctx.Install(proto, snapshotPrototypeSpec)
		intrinsics.LinkConstructor(snapshot, proto)
		realm.SetIntrinsic("%AsyncContext.Snapshot.prototype%", proto)
	}
	realm.SetIntrinsic("%AsyncContext%", ns)
	ctx.Install(realm.Global(), asyncContextGlobalSpec)
	return nil
}

// runIn calls fn with the agent's context mapping replaced by m, restoring
// the previous mapping afterwards.
func runIn(v *vm.VM, m *vm.AsyncContextMapping, fn, this vm.Value, args []vm.Value) (vm.Value, error) {
	prev := v.SwapAsyncContext(m)
	defer v.SwapAsyncContext(prev)
	return v.Call(fn, this, args)
}

func variableConstruct(f *frame) (vm.Value, error) {
	v := f.VM
	slot := &variableSlot{defaultValue: vm.Undefined}
	if len(f.Rest) > 0 && !f.Rest[0].IsUndefined() {
		options := f.Rest[0]
		name, err := v.Get(options, "name")
		if err != nil {
			return vm.Undefined, err
		}
		if !name.IsUndefined() {
			if slot.name, err = v.ToString(name); err != nil {
				return vm.Undefined, err
			}
		}
		if slot.defaultValue, err = v.Get(options, "defaultValue"); err != nil {
			return vm.Undefined, err
		}
	}
	proto, err := protoFor(f, intrinsicOf(v, "%AsyncContext.Variable.prototype%"))
	if err != nil {
		return vm.Undefined, err
	}
	return vm.NewBrandedObject(proto, slot), nil
}

func variableName(f *frame) (vm.Value, error) {
	return vm.NewString(f.This.Slot().(*variableSlot).name), nil
}

func variableGet(f *frame) (vm.Value, error) {
	if val, ok := f.VM.AsyncContext().Get(f.This); ok {
		return val, nil
	}
	return f.This.Slot().(*variableSlot).defaultValue, nil
}

func variableRun(f *frame) (vm.Value, error) {
	v := f.VM
	return runIn(v, v.AsyncContext().With(f.This, f.Arg(0)), f.Arg(1), vm.Undefined, f.Rest)
}

func snapshotConstruct(f *frame) (vm.Value, error) {
	proto, err := protoFor(f, intrinsicOf(f.VM, "%AsyncContext.Snapshot.prototype%"))
	if err != nil {
		return vm.Undefined, err
	}
	return vm.NewBrandedObject(proto, &snapshotSlot{mapping: f.VM.AsyncContext()}), nil
}

func snapshotRun(f *frame) (vm.Value, error) {
	return runIn(f.VM, f.This.Slot().(*snapshotSlot).mapping, f.Arg(0), vm.Undefined, f.Rest)
}

// snapshotWrap returns a function that runs fn under the mapping current at
// wrap time, passing its receiver through.
func snapshotWrap(f *frame) (vm.Value, error) {
	v := f.VM
	fn := f.Arg(0)
	if !fn.IsCallable() {
		return vm.Undefined, v.NotCallable(fn)
	}
	captured := v.AsyncContext()
	return v.NewFunction(0, true, "wrapped", func(this vm.Value, args []vm.Value) (vm.Value, error) {
		return runIn(v, captured, fn, this, args)
	}), nil
}
