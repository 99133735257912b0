package iterators

import (
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// Kind selects what a direct iterator yields.
type Kind uint8

const (
	KindKeys Kind = iota
	KindValues
	KindEntries
)

func (k Kind) String() string {
	switch k {
	case KindKeys:
		return "keys"
	case KindEntries:
		return "entries"
	}
	return "values"
}

// Source is the iterated collection behind a direct iterator.
type Source interface {
	// Bound returns the current exclusive upper bound of positions. It may
	// run script code (array-like length getters).
	Bound(v *vm.VM) (int, error)
	// Advance returns the position after pos without side effects.
	Advance(pos int) int
	// At reads position pos. live is false for deleted slots, which are skipped.
	At(v *vm.VM, pos int) (key, value vm.Value, live bool, err error)
}

// Direct is the state of an iterator that owns a cursor over a source
// (Array, String, Set and Map iterators). A nil source means exhausted;
// exhaustion is permanent.
type Direct struct {
	brand  string
	source Source
	cursor int
	kind   Kind
}

// NewDirect creates an active iterator over src.
func NewDirect(brand string, src Source, kind Kind) *Direct {
	return &Direct{brand: brand, source: src, kind: kind}
}

func (d *Direct) Brand() string   { return d.brand }
func (d *Direct) Kind() Kind      { return d.kind }
func (d *Direct) Cursor() int     { return d.cursor }
func (d *Direct) Exhausted() bool { return d.source == nil }
func (d *Direct) exhaust()        { d.source = nil }
func (d *Direct) Source() Source  { return d.source }

// Step advances the iterator and returns the yielded value, or done=true.
func (d *Direct) Step(v *vm.VM) (vm.Value, bool, error) {
	for {
		if d.source == nil {
			return vm.Undefined, true, nil
		}
		src := d.source
		bound, err := src.Bound(v)
		if err != nil {
			return vm.Undefined, false, err
		}
		// The bound read may have re-entered and exhausted or advanced us.
		if d.source == nil {
			return vm.Undefined, true, nil
		}
		pos := d.cursor
		if pos >= bound {
			d.exhaust()
			return vm.Undefined, true, nil
		}
		d.cursor = src.Advance(pos)
		key, value, live, err := src.At(v, pos)
		if err != nil {
			return vm.Undefined, false, err
		}
		if !live {
			continue
		}
		switch d.kind {
		case KindKeys:
			return key, false, nil
		case KindEntries:
			return v.NewArrayFrom([]vm.Value{key, value}), false, nil
		default:
			return value, false, nil
		}
	}
}

// Next runs one step and wraps it in an iterator result object.
func (d *Direct) Next(v *vm.VM) (vm.Value, error) {
	value, done, err := d.Step(v)
	if err != nil {
		return vm.Undefined, err
	}
	return v.CreateIterResultObject(value, done), nil
}
