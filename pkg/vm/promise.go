package vm

import "unsafe"

// PromiseState represents the state of a Promise
type PromiseState int

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromiseFulfilled:
		return "fulfilled"
	case PromiseRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// PromiseObject is an already-settled promise. Job scheduling lives outside
// this package, so promises are created in their final state.
type PromiseObject struct {
	PlainObject
	state  PromiseState
	result Value
}

func newPromise(proto Value, state PromiseState, result Value) Value {
	p := &PromiseObject{state: state, result: result}
	p.init(proto)
	return Value{typ: TypePromise, obj: unsafe.Pointer(p)}
}

// NewResolvedPromise returns a promise fulfilled with v.
func (vm *VM) NewResolvedPromise(v Value) Value {
	return newPromise(vm.realm.PromisePrototype, PromiseFulfilled, v)
}

// NewRejectedPromise returns a promise rejected with reason.
func (vm *VM) NewRejectedPromise(reason Value) Value {
	return newPromise(vm.realm.PromisePrototype, PromiseRejected, reason)
}

// PromiseFromError settles a rejected promise from a Go error, unwrapping
// thrown values.
func (vm *VM) PromiseFromError(err error) Value {
	if v, ok := ThrownValue(err); ok {
		return vm.NewRejectedPromise(v)
	}
	return vm.NewRejectedPromise(NewString(err.Error()))
}

func (p *PromiseObject) State() PromiseState { return p.state }
func (p *PromiseObject) Result() Value       { return p.result }
