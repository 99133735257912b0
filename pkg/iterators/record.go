package iterators

import (
	"github.com/tliron/commonlog"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

var log = commonlog.GetLogger("jsintrinsics.iterators")

// Record is an IteratorRecord: an iterator object, its cached next method
// and the completion flag.
type Record struct {
	Iterator vm.Value
	Next     vm.Value
	Done     bool
}

// GetIterator obtains an iterator record from an iterable.
func GetIterator(v *vm.VM, obj vm.Value, hint vm.IteratorHint) (*Record, error) {
	method, err := v.GetIteratorMethod(obj, hint)
	if err != nil {
		return nil, err
	}
	if method.IsUndefined() {
		if hint == vm.HintAsync {
			return nil, v.NewTypeError("%s is not async iterable", obj.Inspect())
		}
		return nil, v.NewTypeError("%s is not iterable", obj.Inspect())
	}
	return GetIteratorFromMethod(v, obj, method)
}

// GetIteratorFromMethod calls method on obj and records the result's next.
func GetIteratorFromMethod(v *vm.VM, obj, method vm.Value) (*Record, error) {
	iter, err := v.Call(method, obj, nil)
	if err != nil {
		return nil, err
	}
	if !iter.IsObject() {
		return nil, v.NewTypeError("Result of the Symbol.iterator method is not an object")
	}
	return GetIteratorDirect(v, iter)
}

// GetIteratorDirect wraps an iterator object whose next is read once, up front.
func GetIteratorDirect(v *vm.VM, obj vm.Value) (*Record, error) {
	if !obj.IsObject() {
		return nil, v.NewTypeError("%s is not an object", obj.Inspect())
	}
	next, err := v.Get(obj, "next")
	if err != nil {
		return nil, err
	}
	return &Record{Iterator: obj, Next: next}, nil
}

// Call invokes next with optional argument and validates the result object.
func (r *Record) Call(v *vm.VM, args ...vm.Value) (vm.Value, error) {
	res, err := v.Call(r.Next, r.Iterator, args)
	if err != nil {
		r.Done = true
		return vm.Undefined, err
	}
	if !res.IsObject() {
		r.Done = true
		return vm.Undefined, v.NewTypeError("Iterator result %s is not an object", res.Inspect())
	}
	return res, nil
}

// Step implements IteratorStep: it returns the result object, or done=true.
func (r *Record) Step(v *vm.VM) (vm.Value, bool, error) {
	res, err := r.Call(v)
	if err != nil {
		return vm.Undefined, false, err
	}
	done, err := v.Get(res, "done")
	if err != nil {
		r.Done = true
		return vm.Undefined, false, err
	}
	if done.IsTruthy() {
		r.Done = true
		return vm.Undefined, true, nil
	}
	return res, false, nil
}

// StepValue implements IteratorStepValue.
func (r *Record) StepValue(v *vm.VM) (vm.Value, bool, error) {
	res, done, err := r.Step(v)
	if err != nil || done {
		return vm.Undefined, done, err
	}
	val, err := v.Get(res, "value")
	if err != nil {
		r.Done = true
		return vm.Undefined, false, err
	}
	return val, false, nil
}

// ForEach steps r to completion, calling fn on each value. An error from fn
// closes the iterator with the abrupt-completion discipline.
func ForEach(v *vm.VM, r *Record, fn func(vm.Value) error) error {
	for {
		val, done, err := r.StepValue(v)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := fn(val); err != nil {
			return CloseOnAbrupt(v, r, err)
		}
	}
}

// IterableToList collects every value produced by obj's iterator.
func IterableToList(v *vm.VM, obj vm.Value) ([]vm.Value, error) {
	r, err := GetIterator(v, obj, vm.HintSync)
	if err != nil {
		return nil, err
	}
	var out []vm.Value
	err = ForEach(v, r, func(val vm.Value) error {
		out = append(out, val)
		return nil
	})
	return out, err
}

// CloseOnAbrupt runs IteratorClose for an abrupt completion: the inner
// return is called if present, any error it raises is dropped, and cause is
// returned.
func CloseOnAbrupt(v *vm.VM, r *Record, cause error) error {
	r.Done = true
	ret, err := v.GetMethod(r.Iterator, vm.NewStringKey("return"))
	if err == nil && !ret.IsUndefined() {
		_, err = v.Call(ret, r.Iterator, nil)
	}
	if err != nil {
		log.Debugf("suppressed error while closing iterator: %v", err)
	}
	return cause
}

// CloseOnNormal runs IteratorClose for a normal completion: errors from
// return propagate and its result must be an object.
func CloseOnNormal(v *vm.VM, r *Record) error {
	r.Done = true
	ret, err := v.GetMethod(r.Iterator, vm.NewStringKey("return"))
	if err != nil {
		return err
	}
	if ret.IsUndefined() {
		return nil
	}
	res, err := v.Call(ret, r.Iterator, nil)
	if err != nil {
		return err
	}
	if !res.IsObject() {
		return v.NewTypeError("Iterator result %s is not an object", res.Inspect())
	}
	return nil
}
