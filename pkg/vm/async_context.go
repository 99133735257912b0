package vm

import "unsafe"

// AsyncContextMapping is the agent's [[AsyncContextMapping]]: an immutable
// association from AsyncContext.Variable objects to values. Updates copy.
type AsyncContextMapping struct {
	entries map[unsafe.Pointer]Value
}

var emptyAsyncContext = &AsyncContextMapping{}

// Get returns the value bound to variable in this mapping.
func (m *AsyncContextMapping) Get(variable Value) (Value, bool) {
	v, ok := m.entries[variable.obj]
	return v, ok
}

// With returns a copy of m with variable bound to value.
func (m *AsyncContextMapping) With(variable, value Value) *AsyncContextMapping {
	entries := make(map[unsafe.Pointer]Value, len(m.entries)+1)
	for k, v := range m.entries {
		entries[k] = v
	}
	entries[variable.obj] = value
	return &AsyncContextMapping{entries: entries}
}

func (m *AsyncContextMapping) Len() int { return len(m.entries) }

// AsyncContext returns the current mapping.
func (vm *VM) AsyncContext() *AsyncContextMapping {
	return vm.asyncContext
}

// SwapAsyncContext installs m as the current mapping and returns the previous one.
func (vm *VM) SwapAsyncContext(m *AsyncContextMapping) *AsyncContextMapping {
	prev := vm.asyncContext
	if m == nil {
		m = emptyAsyncContext
	}
	vm.asyncContext = m
	return prev
}
