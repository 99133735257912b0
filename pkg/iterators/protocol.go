package iterators

import (
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// Brands of the iterator objects built on this package.
const (
	ArrayIteratorBrand        = "Array Iterator"
	StringIteratorBrand       = "String Iterator"
	SetIteratorBrand          = "Set Iterator"
	MapIteratorBrand          = "Map Iterator"
	RegExpStringIteratorBrand = "RegExp String Iterator"
	WrapForValidIteratorBrand = "WrapForValidIterator"
	AsyncFromSyncBrand        = "AsyncFromSyncIterator"
	CleanupIteratorBrand      = "FinalizationRegistry Cleanup Iterator"
)

// stepper is implemented by every iterator state that can produce a result.
type stepper interface {
	vm.Slot
	Next(v *vm.VM) (vm.Value, error)
}

func stateOf(v *vm.VM, obj vm.Value, brand, builtin string) (vm.Slot, error) {
	s := obj.Slot()
	if s == nil || s.Brand() != brand {
		return nil, v.IncompatibleReceiver(builtin, obj)
	}
	return s, nil
}

// Next advances the iterator object obj, which must carry brand. builtin
// names the calling method for receiver errors.
func Next(v *vm.VM, obj vm.Value, brand, builtin string) (vm.Value, error) {
	s, err := stateOf(v, obj, brand, builtin)
	if err != nil {
		return vm.Undefined, err
	}
	switch st := s.(type) {
	case *Wrapper:
		return st.Next(v)
	case stepper:
		return st.Next(v)
	}
	return vm.Undefined, v.IncompatibleReceiver(builtin, obj)
}

// Return closes a delegating or helper iterator object.
func Return(v *vm.VM, obj vm.Value, value vm.Value, brand, builtin string) (vm.Value, error) {
	s, err := stateOf(v, obj, brand, builtin)
	if err != nil {
		return vm.Undefined, err
	}
	switch st := s.(type) {
	case *Wrapper:
		return st.Return(v, value)
	case *Helper:
		return st.Return(v)
	}
	return vm.Undefined, v.IncompatibleReceiver(builtin, obj)
}

// Throw forwards a throw to a delegating iterator object.
func Throw(v *vm.VM, obj vm.Value, value vm.Value, brand, builtin string) (vm.Value, error) {
	s, err := stateOf(v, obj, brand, builtin)
	if err != nil {
		return vm.Undefined, err
	}
	if w, ok := s.(*Wrapper); ok {
		return w.Throw(v, value)
	}
	return vm.Undefined, v.IncompatibleReceiver(builtin, obj)
}

// NewIteratorObject creates an object with the given prototype carrying state.
func NewIteratorObject(proto vm.Value, state vm.Slot) vm.Value {
	return vm.NewBrandedObject(proto, state)
}
