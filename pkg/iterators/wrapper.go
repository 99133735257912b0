package iterators

import (
	"errors"
	"fmt"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

// ErrNoThrowMethod marks the throw completion Wrapper.Throw synthesizes when
// the inner iterator has no throw method.
var ErrNoThrowMethod = errors.New("iterator does not provide a 'throw' method")

// Wrapper is the state of a delegating iterator (WrapForValidIterator,
// AsyncFromSyncIterator): it forwards to an inner record instead of owning
// a cursor.
type Wrapper struct {
	brand string
	rec   *Record
}

func NewWrapper(brand string, rec *Record) *Wrapper {
	return &Wrapper{brand: brand, rec: rec}
}

func (w *Wrapper) Brand() string   { return w.brand }
func (w *Wrapper) Record() *Record { return w.rec }

// Next forwards to the inner next method. The result must be an object.
func (w *Wrapper) Next(v *vm.VM, args ...vm.Value) (vm.Value, error) {
	return w.rec.Call(v, args...)
}

// Delegate calls the inner iterator's method name with args and returns its
// result as is. found is false when the inner iterator has no such method.
func (w *Wrapper) Delegate(v *vm.VM, name string, args ...vm.Value) (res vm.Value, found bool, err error) {
	it := w.rec.Iterator
	m, err := v.GetMethod(it, vm.NewStringKey(name))
	if err != nil || m.IsUndefined() {
		return vm.Undefined, false, err
	}
	res, err = v.Call(m, it, args)
	return res, true, err
}

// Return closes the inner iterator through its return method, if any, and
// always reports {value, done: true}. Errors from a present return propagate.
func (w *Wrapper) Return(v *vm.VM, value vm.Value) (vm.Value, error) {
	w.rec.Done = true
	if _, _, err := w.Delegate(v, "return", value); err != nil {
		return vm.Undefined, err
	}
	return v.CreateIterResultObject(value, true), nil
}

// Throw delegates to the inner throw method and returns its result as is.
// Without one, the value is rethrown as a throw completion that also matches
// ErrNoThrowMethod.
func (w *Wrapper) Throw(v *vm.VM, value vm.Value) (vm.Value, error) {
	res, found, err := w.Delegate(v, "throw", value)
	if err == nil && !found {
		return vm.Undefined, fmt.Errorf("%w: %w", ErrNoThrowMethod, vm.ThrowValue(value))
	}
	return res, err
}
