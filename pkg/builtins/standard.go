package builtins

import (
	"fmt"
	"sort"

	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// realmBootstrapMarker is recorded in the realm's installed set once
// Initialize has run.
const realmBootstrapMarker = "builtins"

// GetStandardInitializers returns all built-in initializers sorted by priority
func GetStandardInitializers() []BuiltinInitializer {
	initializers := []BuiltinInitializer{
		&IteratorInitializer{},
		&ArrayInitializer{},
		&StringInitializer{},
		&SymbolInitializer{},
		&BigIntInitializer{},
		&RegExpInitializer{},
		&SetInitializer{},
		&MapInitializer{},
		&ArrayBufferInitializer{},
		&TypedArrayInitializer{},
		&ProxyInitializer{},
		&WeakRefInitializer{},
		&AsyncIteratorInitializer{},
		&AsyncContextInitializer{},
	}

	// Sort by priority (lower numbers first)
	sort.SliceStable(initializers, func(i, j int) bool {
		return initializers[i].Priority() < initializers[j].Priority()
	})

	return initializers
}

// Initialize installs every standard builtin family into v's realm.
// Installing twice into the same realm is a no-op: the second call returns a
// context with no containers.
func Initialize(v *vm.VM, opts ...intrinsics.DispatcherOption) (*RuntimeContext, error) {
	ctx := newRuntimeContext(v, intrinsics.NewDispatcher(v, opts...))
	if !v.Realm().MarkInstalled(realmBootstrapMarker) {
		log.Debugf("realm %s already initialized", v.Realm().ID())
		return ctx, nil
	}
	for _, init := range GetStandardInitializers() {
		if err := init.InitRuntime(ctx); err != nil {
			return nil, fmt.Errorf("initializing %s: %w", init.Name(), err)
		}
		log.Debugf("initialized %s", init.Name())
	}
	return ctx, nil
}
