package iterators

import (
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// StepFunc produces the next value of a generator-like iterator, or ok=false
// when it is finished.
type StepFunc func(v *vm.VM) (value vm.Value, ok bool, err error)

// Func is an iterator driven by a step function (RegExp String Iterator,
// FinalizationRegistry cleanup iterator). Once finished it stays finished.
type Func struct {
	brand string
	step  StepFunc
}

func NewFunc(brand string, step StepFunc) *Func {
	return &Func{brand: brand, step: step}
}

func (f *Func) Brand() string { return f.brand }

// Invalidate finishes the iterator; later next calls report done.
func (f *Func) Invalidate() { f.step = nil }

func (f *Func) Next(v *vm.VM) (vm.Value, error) {
	if f.step == nil {
		return v.CreateIterResultObject(vm.Undefined, true), nil
	}
	value, ok, err := f.step(v)
	if err != nil {
		return vm.Undefined, err
	}
	if !ok {
		f.step = nil
		return v.CreateIterResultObject(vm.Undefined, true), nil
	}
	return v.CreateIterResultObject(value, false), nil
}

// HelperStep produces the next value of an iterator helper from its
// underlying record.
type HelperStep func(v *vm.VM, h *Helper) (value vm.Value, ok bool, err error)

// Helper is the state of an iterator helper (map, filter, take, drop). It
// delegates to the underlying record and refuses re-entrant next calls.
type Helper struct {
	Underlying *Record
	// Counter is the helper's own bookkeeping (index for callbacks, remaining
	// count for take/drop).
	Counter float64
	step    HelperStep
	running bool
	done    bool
}

const HelperBrand = "Iterator Helper"

func NewHelper(underlying *Record, step HelperStep) *Helper {
	return &Helper{Underlying: underlying, step: step}
}

func (h *Helper) Brand() string { return HelperBrand }
func (h *Helper) Done() bool    { return h.done }

func (h *Helper) Next(v *vm.VM) (vm.Value, error) {
	if h.running {
		return vm.Undefined, v.NewTypeError("Iterator Helper is already running")
	}
	if h.done {
		return v.CreateIterResultObject(vm.Undefined, true), nil
	}
	h.running = true
	value, ok, err := h.step(v, h)
	h.running = false
	if err != nil {
		h.done = true
		return vm.Undefined, err
	}
	if !ok {
		h.done = true
		return v.CreateIterResultObject(vm.Undefined, true), nil
	}
	return v.CreateIterResultObject(value, false), nil
}

// Return finishes the helper and closes the underlying iterator.
func (h *Helper) Return(v *vm.VM) (vm.Value, error) {
	if h.running {
		return vm.Undefined, v.NewTypeError("Iterator Helper is already running")
	}
	if h.done {
		return v.CreateIterResultObject(vm.Undefined, true), nil
	}
	h.done = true
	if err := CloseOnNormal(v, h.Underlying); err != nil {
		return vm.Undefined, err
	}
	return v.CreateIterResultObject(vm.Undefined, true), nil
}

// CallbackFailed closes the underlying iterator after a callback threw.
func (h *Helper) CallbackFailed(v *vm.VM, cause error) error {
	return CloseOnAbrupt(v, h.Underlying, cause)
}
