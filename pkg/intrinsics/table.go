package intrinsics

import (
	"fmt"
	"sync"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

// RegistrationError is the panic value for a malformed container. It is a
// programming error in a builtin family, caught in tests.
type RegistrationError struct {
	Container string
	Key       string
	Reason    string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("intrinsics: %s.%s: %s", e.Container, e.Key, e.Reason)
}

// Container is the ordered builtin table of one intrinsic object.
type Container struct {
	name      string
	entries   []*Entry
	functions map[string]*Entry
	accessors *AccessorRegistry
}

// NewContainer creates an empty container. name prefixes qualified names,
// e.g. "Array.prototype".
func NewContainer(name string) *Container {
	return &Container{
		name:      name,
		functions: make(map[string]*Entry),
		accessors: newAccessorRegistry(),
	}
}

func (c *Container) Name() string { return c.name }

func (c *Container) fail(e *Entry, reason string, args ...any) {
	panic(&RegistrationError{Container: c.name, Key: e.Key.String(), Reason: fmt.Sprintf(reason, args...)})
}

// Register appends e. Duplicate keys, accessor clashes and variant lists
// without a trailing fallback panic.
func (c *Container) Register(e *Entry) {
	h := e.Key.Hash()
	switch e.Kind {
	case KindGetter, KindSetter:
		if _, taken := c.functions[h]; taken {
			c.fail(e, "accessor clashes with a function entry")
		}
		var err error
		if e.Kind == KindGetter {
			err = c.accessors.RegisterGetter(e.Key, e)
		} else {
			err = c.accessors.RegisterSetter(e.Key, e)
		}
		if err != nil {
			c.fail(e, "%v", err)
		}
	default:
		if _, taken := c.functions[h]; taken {
			c.fail(e, "duplicate function entry")
		}
		if g, s := c.accessors.Lookup(e.Key); g != nil || s != nil {
			c.fail(e, "function clashes with an accessor entry")
		}
		if e.AliasOf != nil {
			target, ok := c.functions[e.AliasOf.Hash()]
			if !ok || target.Kind == KindData || target.AliasOf != nil {
				c.fail(e, "alias target %s is not a registered function", e.AliasOf.String())
			}
		}
		c.functions[h] = e
	}

	if e.Kind != KindData && e.AliasOf == nil {
		if len(e.Call) == 0 && len(e.Construct) == 0 {
			c.fail(e, "no implementation variants")
		}
		if err := validateVariants(e.Call); err != nil {
			c.fail(e, "call variants: %v", err)
		}
		if err := validateVariants(e.Construct); err != nil {
			c.fail(e, "construct variants: %v", err)
		}
	}
	if e.Kind == KindConstructor {
		e.qualified = e.Name
	} else if e.Key.IsSymbol() {
		e.qualified = c.name + e.Key.String()
	} else {
		e.qualified = c.name + "." + e.Key.String()
	}
	c.entries = append(c.entries, e)
}

// LookupFunction returns the function, constructor or data entry for key.
func (c *Container) LookupFunction(key vm.PropertyKey) (*Entry, bool) {
	e, ok := c.functions[key.Hash()]
	return e, ok
}

// LookupAccessor returns the getter and setter entries for key (either may be nil).
func (c *Container) LookupAccessor(key vm.PropertyKey) (getter, setter *Entry) {
	return c.accessors.Lookup(key)
}

// Entries returns the entries in registration order.
func (c *Container) Entries() []*Entry {
	return append([]*Entry(nil), c.entries...)
}

// Len returns the number of registered entries.
func (c *Container) Len() int { return len(c.entries) }

// LookupBuiltin finds the entry for key: the function entry if any, else the
// getter, else the setter.
func LookupBuiltin(c *Container, key vm.PropertyKey) (*Entry, bool) {
	if e, ok := c.LookupFunction(key); ok {
		return e, true
	}
	g, s := c.LookupAccessor(key)
	if g != nil {
		return g, true
	}
	if s != nil {
		return s, true
	}
	return nil, false
}

// ContainerSpec is the fixed, ordered description of a container. The
// container is built on first use and shared by every realm.
type ContainerSpec struct {
	name    string
	entries func() []*Entry

	once   sync.Once
	built  *Container
	failed any // panic raised by the first build
}

// NewContainerSpec declares a container. entries must be deterministic.
func NewContainerSpec(name string, entries func() []*Entry) *ContainerSpec {
	return &ContainerSpec{name: name, entries: entries}
}

func (s *ContainerSpec) Name() string { return s.name }

// Build returns the container, constructing it on the first call. A
// registration panic during that build is raised again by every later call.
func (s *ContainerSpec) Build() *Container {
	s.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				s.failed = r
				panic(r)
			}
		}()
		c := NewContainer(s.name)
		for _, e := range s.entries() {
			c.Register(e)
		}
		log.Debugf("built container %s with %d entries", s.name, c.Len())
		s.built = c
	})
	if s.failed != nil {
		panic(s.failed)
	}
	return s.built
}
