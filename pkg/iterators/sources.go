package iterators

import (
	"unicode/utf8"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

// ArrayLikeSource iterates an Array or any object with a length property.
// The length is re-read on every step.
type ArrayLikeSource struct {
	Object vm.Value
}

func (s *ArrayLikeSource) Bound(v *vm.VM) (int, error) {
	if s.Object.IsArray() {
		return s.Object.AsArray().Length(), nil
	}
	return v.LengthOfArrayLike(s.Object)
}

func (s *ArrayLikeSource) Advance(pos int) int { return pos + 1 }

func (s *ArrayLikeSource) At(v *vm.VM, pos int) (vm.Value, vm.Value, bool, error) {
	val, err := v.GetProperty(s.Object, vm.NewIndexKey(pos))
	return vm.IndexValue(pos), val, true, err
}

// TypedArraySource iterates a typed array view, failing once its buffer is
// detached or the view is out of bounds.
type TypedArraySource struct {
	Array vm.Value
}

func (s *TypedArraySource) Bound(v *vm.VM) (int, error) {
	ta := s.Array.AsTypedArray()
	if ta.IsOutOfBounds() {
		return 0, v.NewTypeError("Cannot perform %%ArrayIteratorPrototype%%.next on a detached ArrayBuffer")
	}
	return ta.Length(), nil
}

func (s *TypedArraySource) Advance(pos int) int { return pos + 1 }

func (s *TypedArraySource) At(_ *vm.VM, pos int) (vm.Value, vm.Value, bool, error) {
	return vm.IndexValue(pos), s.Array.AsTypedArray().GetElement(pos), true, nil
}

// StringSource iterates a string by code point. Positions are byte offsets.
type StringSource struct {
	String string
}

func (s *StringSource) Bound(*vm.VM) (int, error) { return len(s.String), nil }

func (s *StringSource) Advance(pos int) int {
	_, size := utf8.DecodeRuneInString(s.String[pos:])
	return pos + size
}

func (s *StringSource) At(_ *vm.VM, pos int) (vm.Value, vm.Value, bool, error) {
	r, _ := utf8.DecodeRuneInString(s.String[pos:])
	return vm.IndexValue(pos), vm.NewString(string(r)), true, nil
}

// SetSource iterates a Set's live entry list; deleted entries are skipped
// and entries added during iteration are visited.
type SetSource struct {
	Set *vm.SetObject
}

func (s *SetSource) Bound(*vm.VM) (int, error) { return s.Set.EntryCount(), nil }
func (s *SetSource) Advance(pos int) int       { return pos + 1 }

func (s *SetSource) At(_ *vm.VM, pos int) (vm.Value, vm.Value, bool, error) {
	val, live := s.Set.EntryAt(pos)
	return val, val, live, nil
}

// MapSource iterates a Map's live entry list.
type MapSource struct {
	Map *vm.MapObject
}

func (s *MapSource) Bound(*vm.VM) (int, error) { return s.Map.EntryCount(), nil }
func (s *MapSource) Advance(pos int) int       { return pos + 1 }

func (s *MapSource) At(_ *vm.VM, pos int) (vm.Value, vm.Value, bool, error) {
	key, val, live := s.Map.EntryAt(pos)
	return key, val, live, nil
}

// SliceSource iterates a fixed list of values. Used by tests and by
// builtins that snapshot their input.
type SliceSource struct {
	Values []vm.Value
}

func (s *SliceSource) Bound(*vm.VM) (int, error) { return len(s.Values), nil }
func (s *SliceSource) Advance(pos int) int       { return pos + 1 }

func (s *SliceSource) At(_ *vm.VM, pos int) (vm.Value, vm.Value, bool, error) {
	return vm.IndexValue(pos), s.Values[pos], true, nil
}
