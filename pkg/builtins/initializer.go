package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// BuiltinInitializer is implemented by each builtin family
type BuiltinInitializer interface {
	// Name returns the family name (e.g., "Array", "Set", "RegExp")
	Name() string

	// Priority returns initialization order (lower = earlier)
	Priority() int

	// InitRuntime installs the family's containers into the realm
	InitRuntime(ctx *RuntimeContext) error
}

// RuntimeContext provides everything needed for runtime initialization
type RuntimeContext struct {
	VM         *vm.VM
	Realm      *vm.Realm
	Dispatcher *intrinsics.Dispatcher

	// containers installed so far, in installation order
	containers []*intrinsics.Container
	byName     map[string]*intrinsics.Container
}

func newRuntimeContext(v *vm.VM, d *intrinsics.Dispatcher) *RuntimeContext {
	return &RuntimeContext{
		VM:         v,
		Realm:      v.Realm(),
		Dispatcher: d,
		byName:     make(map[string]*intrinsics.Container),
	}
}

// Install registers spec's entries on target.
func (ctx *RuntimeContext) Install(target vm.Value, spec *intrinsics.ContainerSpec) *intrinsics.Container {
	c, first := intrinsics.RegisterIntrinsicContainer(ctx.Dispatcher, target, spec)
	if first {
		ctx.containers = append(ctx.containers, c)
		ctx.byName[c.Name()] = c
	}
	return c
}

// Function returns the function object registered under name in c, or false
// when the entry is missing or not enabled in this realm.
func (ctx *RuntimeContext) Function(c *intrinsics.Container, name string) (vm.Value, bool) {
	e, ok := c.LookupFunction(vm.NewStringKey(name))
	if !ok || e.Kind == intrinsics.KindData || !intrinsics.Enabled(e, ctx.Realm.Options()) {
		return vm.Undefined, false
	}
	return ctx.Dispatcher.FunctionFor(e), true
}

// InstallFamily installs a global constructor (or callable) from global,
// its static members and its prototype members, then links the two.
func (ctx *RuntimeContext) InstallFamily(name string, global, statics, protoSpec *intrinsics.ContainerSpec, proto vm.Value) (vm.Value, bool) {
	c := ctx.Install(ctx.Realm.Global(), global)
	ctor, ok := ctx.Function(c, name)
	if !ok {
		return vm.Undefined, false
	}
	if statics != nil {
		ctx.Install(ctor, statics)
	}
	if protoSpec != nil {
		ctx.Install(proto, protoSpec)
	}
	intrinsics.LinkConstructor(ctor, proto)
	ctx.Realm.SetIntrinsic("%"+name+"%", ctor)
	return ctor, true
}

// Containers returns the installed containers in installation order.
func (ctx *RuntimeContext) Containers() []*intrinsics.Container {
	return append([]*intrinsics.Container(nil), ctx.containers...)
}

// Container returns the installed container called name.
func (ctx *RuntimeContext) Container(name string) (*intrinsics.Container, bool) {
	c, ok := ctx.byName[name]
	return c, ok
}

// Priority constants for initialization order
const (
	PriorityIterator      = 2  // %IteratorPrototype% first: every iterator prototype inherits it
	PriorityArray         = 3  // Array and %ArrayIteratorPrototype%
	PriorityString        = 10 // String iteration, normalization, collation
	PrioritySymbol        = 11 // Symbol and well-known symbols
	PriorityBigInt        = 12 // BigInt
	PriorityRegExp        = 13 // RegExp and matchAll
	PriorityCollections   = 20 // Set and Map
	PriorityArrayBuffer   = 30 // ArrayBuffer
	PriorityTypedArray    = 31 // %TypedArray% and concrete views
	PriorityProxy         = 40 // Proxy
	PriorityWeak          = 50 // WeakRef and FinalizationRegistry
	PriorityAsyncIterator = 60 // %AsyncIteratorPrototype% and async-from-sync
	PriorityAsyncContext  = 70 // AsyncContext (staged)
)
