package intrinsics

import (
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// Enabled reports whether e is exposed under opts.
func Enabled(e *Entry, opts vm.RealmOptions) bool {
	if e.Since != 0 && opts.EcmaVersion < e.Since {
		return false
	}
	if e.Feature != "" && !opts.HasFeature(e.Feature) {
		return false
	}
	return true
}

// RegisterIntrinsicContainer installs the container described by spec onto
// target, once per realm. It returns the container and whether this call
// performed the installation.
func RegisterIntrinsicContainer(d *Dispatcher, target vm.Value, spec *ContainerSpec) (*Container, bool) {
	c := spec.Build()
	realm := d.vm.Realm()
	if !realm.MarkInstalled(spec.Name()) {
		log.Debugf("container %s already installed in realm %s", spec.Name(), realm.ID())
		return c, false
	}
	opts := realm.Options()
	po := target.AsPlainObject()
	accessorsDone := make(map[string]bool)
	installed := 0
	for _, e := range c.entries {
		if !Enabled(e, opts) {
			log.Debugf("skipping %s (since %d, feature %q)", e.QualifiedName(), e.Since, e.Feature)
			continue
		}
		w, en, cf := e.Attributes.Writable, e.Attributes.Enumerable, e.Attributes.Configurable
		switch e.Kind {
		case KindGetter, KindSetter:
			h := e.Key.Hash()
			if accessorsDone[h] {
				continue
			}
			accessorsDone[h] = true
			getter, setter := d.accessorFunctions(c, e.Key, opts)
			po.DefineAccessorPropertyByKey(e.Key, getter, setter, &en, &cf)
		case KindData:
			po.DefineOwnPropertyByKey(e.Key, e.Value(d.vm), &w, &en, &cf)
		default:
			var fn vm.Value
			if e.AliasOf != nil {
				aliased, _ := c.LookupFunction(*e.AliasOf)
				fn = d.FunctionFor(aliased)
			} else {
				fn = d.FunctionFor(e)
			}
			po.DefineOwnPropertyByKey(e.Key, fn, &w, &en, &cf)
		}
		installed++
	}
	log.Debugf("installed %s: %d properties in realm %s", spec.Name(), installed, realm.ID())
	return c, true
}

// accessorFunctions returns the getter and setter functions for key;
// a missing side is undefined.
func (d *Dispatcher) accessorFunctions(c *Container, key vm.PropertyKey, opts vm.RealmOptions) (getter, setter vm.Value) {
	getter, setter = vm.Undefined, vm.Undefined
	g, s := c.LookupAccessor(key)
	if g != nil && Enabled(g, opts) {
		getter = d.FunctionFor(g)
	}
	if s != nil && Enabled(s, opts) {
		setter = d.FunctionFor(s)
	}
	return getter, setter
}

// LinkConstructor wires ctor.prototype and prototype.constructor.
func LinkConstructor(ctor, prototype vm.Value) {
	f, t := false, true
	ctor.AsPlainObject().DefineOwnProperty("prototype", prototype, &f, &f, &f)
	prototype.AsPlainObject().DefineOwnProperty("constructor", ctor, &t, &f, &t)
}

// ConstructorFunction returns the function object of the constructor entry
// named name in c.
func (d *Dispatcher) ConstructorFunction(c *Container, name string) (vm.Value, bool) {
	e, ok := c.LookupFunction(vm.NewStringKey(name))
	if !ok || e.Kind != KindConstructor {
		return vm.Undefined, false
	}
	return d.FunctionFor(e), true
}
