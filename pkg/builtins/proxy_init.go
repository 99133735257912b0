package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type ProxyInitializer struct{}

func (p *ProxyInitializer) Name() string {
	return "Proxy"
}

func (p *ProxyInitializer) Priority() int {
	return PriorityProxy
}

var proxyGlobalSpec = newSpec("global Proxy", func() entries {
	return entries{
		constructor("Proxy", 2).ConstructWith(func(f *frame) (vm.Value, error) {
			return proxyCreate(f.VM, f.Arg(0), f.Arg(1))
		}).Entry(),
	}
})

var proxyStaticSpec = newSpec("Proxy", func() entries {
	return entries{
		method("revocable", 2).Generic(proxyRevocable).Entry(),
	}
})

// Proxy has no prototype property, so it is installed without LinkConstructor.
func (p *ProxyInitializer) InitRuntime(ctx *RuntimeContext) error {
	c := ctx.Install(ctx.Realm.Global(), proxyGlobalSpec)
	ctor, ok := ctx.Function(c, "Proxy")
	if !ok {
		return nil
	}
	ctx.Install(ctor, proxyStaticSpec)
	ctx.Realm.SetIntrinsic("%Proxy%", ctor)
	return nil
}

func proxyCreate(v *vm.VM, target, handler vm.Value) (vm.Value, error) {
	if !target.IsObject() || !handler.IsObject() {
		return vm.Undefined, v.NewTypeError("Cannot create proxy with a non-object as target or handler")
	}
	return vm.NewProxy(target, handler), nil
}

// revoker owns the proxy it can revoke. Revoking drops the reference, so the
// revoke function never keeps a revoked proxy alive.
type revoker struct {
	proxy *vm.ProxyObject
}

func (r *revoker) revoke(vm.Value, []vm.Value) (vm.Value, error) {
	if p := r.proxy; p != nil {
		r.proxy = nil
		p.Revoke()
	}
	return vm.Undefined, nil
}

func proxyRevocable(f *frame) (vm.Value, error) {
	v := f.VM
	proxy, err := proxyCreate(v, f.Arg(0), f.Arg(1))
	if err != nil {
		return vm.Undefined, err
	}
	r := &revoker{proxy: proxy.AsProxy()}
	result := v.NewPlainObject()
	if err := v.CreateDataProperty(result, stringKey("proxy"), proxy); err != nil {
		return vm.Undefined, err
	}
	if err := v.CreateDataProperty(result, stringKey("revoke"), v.NewFunction(0, false, "", r.revoke)); err != nil {
		return vm.Undefined, err
	}
	return result, nil
}
