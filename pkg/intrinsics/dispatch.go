package intrinsics

import (
	"github.com/tliron/commonlog"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

var log = commonlog.GetLogger("jsintrinsics.intrinsics")

// Frame is the argument frame handed to an implementation variant.
type Frame struct {
	VM         *vm.VM
	Dispatcher *Dispatcher
	Entry      *Entry
	Kind       InvocationKind
	This       vm.Value
	// Args holds the declared parameters, padded with undefined up to Arity.
	Args []vm.Value
	// Rest holds the arguments past Arity for variadic entries.
	Rest []vm.Value
	// Argc is the number of arguments actually passed.
	Argc      int
	NewTarget vm.Value
}

// Arg returns declared parameter i, or undefined.
func (f *Frame) Arg(i int) vm.Value {
	if i < len(f.Args) {
		return f.Args[i]
	}
	return vm.Undefined
}

// Passed returns the arguments actually supplied, in order.
func (f *Frame) Passed() []vm.Value {
	n := f.Argc
	if n > len(f.Args) {
		n = len(f.Args)
	}
	return append(append([]vm.Value(nil), f.Args[:n]...), f.Rest...)
}

// Dispatcher binds entries to one VM: it creates their function objects and
// routes invocations through the resolver.
type Dispatcher struct {
	vm        *vm.VM
	functions map[*Entry]vm.Value
	caches    map[siteKey]*SiteCache
	useCache  bool
}

type siteKey struct {
	entry *Entry
	kind  InvocationKind
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSiteCache enables per-entry call-site caching of resolved variants.
func WithSiteCache() DispatcherOption {
	return func(d *Dispatcher) {
		d.useCache = true
	}
}

func NewDispatcher(v *vm.VM, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		vm:        v,
		functions: make(map[*Entry]vm.Value),
		caches:    make(map[siteKey]*SiteCache),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) VM() *vm.VM { return d.vm }

// SiteCache returns the cache for (e, kind), or nil when caching is off.
func (d *Dispatcher) SiteCache(e *Entry, kind InvocationKind) *SiteCache {
	if !d.useCache {
		return nil
	}
	if kind == ConstructWithNewTarget {
		kind = Construct
	}
	k := siteKey{entry: e, kind: kind}
	c, ok := d.caches[k]
	if !ok {
		c = &SiteCache{}
		d.caches[k] = c
	}
	return c
}

// Invoke dispatches one invocation of e. `new` on a non-constructor fails
// before any variant runs; errors from the implementation propagate unchanged.
func (d *Dispatcher) Invoke(e *Entry, kind InvocationKind, this vm.Value, args []vm.Value, newTarget vm.Value) (vm.Value, error) {
	switch kind {
	case Construct, ConstructWithNewTarget:
		if !e.IsConstructor() {
			return vm.Undefined, d.vm.NotAConstructor(d.FunctionFor(e))
		}
	case Call:
		if len(e.Call) == 0 {
			return vm.Undefined, d.vm.NewTypeError("Constructor %s requires 'new'", e.Name)
		}
	}

	var variant *Variant
	var err error
	if c := d.SiteCache(e, kind); c != nil {
		variant, err = c.Resolve(e, kind, this, args)
	} else {
		variant, err = Resolve(e, kind, this, args)
	}
	if err != nil {
		return vm.Undefined, err
	}
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("dispatch %s (%s) -> %s", e.QualifiedName(), kind, variant.Name)
	}
	return variant.Impl(d.frame(e, kind, this, args, newTarget))
}

func (d *Dispatcher) frame(e *Entry, kind InvocationKind, this vm.Value, args []vm.Value, newTarget vm.Value) *Frame {
	f := &Frame{VM: d.vm, Dispatcher: d, Entry: e, Kind: kind, This: this, Argc: len(args), NewTarget: newTarget}
	if len(args) >= e.Arity {
		f.Args = args[:e.Arity:e.Arity]
		if e.Variadic {
			f.Rest = args[e.Arity:]
		}
	} else {
		f.Args = make([]vm.Value, e.Arity)
		copy(f.Args, args)
		for i := len(args); i < e.Arity; i++ {
			f.Args[i] = vm.Undefined
		}
	}
	return f
}

// FunctionFor returns the function object of e in this VM, creating it once.
func (d *Dispatcher) FunctionFor(e *Entry) vm.Value {
	if fn, ok := d.functions[e]; ok {
		return fn
	}
	var fn vm.Value
	call := func(this vm.Value, args []vm.Value) (vm.Value, error) {
		return d.Invoke(e, Call, this, args, vm.Undefined)
	}
	if e.IsConstructor() {
		fn = d.vm.NewConstructor(e.Arity, e.Name, call, func(args []vm.Value, newTarget vm.Value) (vm.Value, error) {
			kind := Construct
			if !newTarget.Is(fn) {
				kind = ConstructWithNewTarget
			}
			return d.Invoke(e, kind, vm.Undefined, args, newTarget)
		})
	} else {
		fn = d.vm.NewFunction(e.Arity, e.Variadic, e.Name, call)
	}
	d.functions[e] = fn
	return fn
}
