package vm

import (
	"fmt"
	"math"
	"unsafe"
)

type ArrayObject struct {
	PlainObject
	elements []Value
}

func NewArray() Value {
	a := &ArrayObject{}
	a.init(Null)
	return Value{typ: TypeArray, obj: unsafe.Pointer(a)}
}

// NewArrayFromSlice creates an array holding a copy of elems.
func NewArrayFromSlice(elems []Value) Value {
	v := NewArray()
	arr := v.AsArray()
	arr.elements = append(make([]Value, 0, len(elems)), elems...)
	return v
}

func (a *ArrayObject) Length() int {
	return len(a.elements)
}

func (a *ArrayObject) SetLength(n int) {
	if n < len(a.elements) {
		a.elements = a.elements[:n]
		return
	}
	for len(a.elements) < n {
		a.elements = append(a.elements, Undefined)
	}
}

// Get returns the element at index, or undefined when out of range.
func (a *ArrayObject) Get(index int) Value {
	if index < 0 || index >= len(a.elements) {
		return Undefined
	}
	return a.elements[index]
}

// Set stores an element, growing the array as needed.
func (a *ArrayObject) Set(index int, value Value) {
	if index < 0 {
		return
	}
	if index >= len(a.elements) {
		a.SetLength(index + 1)
	}
	a.elements[index] = value
}

func (a *ArrayObject) Append(value Value) {
	a.elements = append(a.elements, value)
}

// Elements returns a copy of the element list.
func (a *ArrayObject) Elements() []Value {
	return append([]Value(nil), a.elements...)
}

// collectionEntry is one slot of an ordered table. Deleted entries stay in
// place as tombstones so live iterators keep their positions.
type collectionEntry struct {
	key     Value
	value   Value
	deleted bool
}

// orderedTable backs Map and Set: insertion-ordered, SameValueZero keyed.
type orderedTable struct {
	entries []collectionEntry
	index   map[string]int
	size    int
}

func (t *orderedTable) find(key Value) (int, bool) {
	if t.index == nil {
		return 0, false
	}
	i, ok := t.index[hashKey(key)]
	return i, ok
}

func (t *orderedTable) get(key Value) (Value, bool) {
	if i, ok := t.find(key); ok {
		return t.entries[i].value, true
	}
	return Undefined, false
}

func (t *orderedTable) set(key, value Value) {
	if i, ok := t.find(key); ok {
		t.entries[i].value = value
		return
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	// -0 is normalized to +0 on insertion
	if key.IsNumber() && key.AsFloat() == 0 {
		key = IntegerValue(0)
	}
	t.index[hashKey(key)] = len(t.entries)
	t.entries = append(t.entries, collectionEntry{key: key, value: value})
	t.size++
}

func (t *orderedTable) remove(key Value) bool {
	i, ok := t.find(key)
	if !ok {
		return false
	}
	delete(t.index, hashKey(key))
	t.entries[i].deleted = true
	t.entries[i].key, t.entries[i].value = Undefined, Undefined
	t.size--
	return true
}

func (t *orderedTable) clear() {
	for i := range t.entries {
		t.entries[i].deleted = true
		t.entries[i].key, t.entries[i].value = Undefined, Undefined
	}
	t.index = nil
	t.size = 0
}

// hashKey produces the SameValueZero identity of a value.
func hashKey(v Value) string {
	switch v.Type() {
	case TypeUndefined:
		return "u"
	case TypeNull:
		return "n"
	case TypeBoolean:
		if v.AsBoolean() {
			return "b:1"
		}
		return "b:0"
	case TypeFloatNumber, TypeIntegerNumber:
		f := v.AsFloat()
		if math.IsNaN(f) {
			return "f:NaN"
		}
		if f == 0 {
			f = 0
		}
		return fmt.Sprintf("f:%v", f)
	case TypeString:
		return "s:" + v.AsString()
	case TypeBigInt:
		return "i:" + v.AsBigInt().String()
	default:
		return fmt.Sprintf("o:%p", v.obj)
	}
}

type MapObject struct {
	PlainObject
	table orderedTable
}

func NewMap() Value {
	m := &MapObject{}
	m.init(Null)
	return Value{typ: TypeMap, obj: unsafe.Pointer(m)}
}

func (m *MapObject) Get(key Value) (Value, bool) { return m.table.get(key) }
func (m *MapObject) Set(key, value Value)        { m.table.set(key, value) }
func (m *MapObject) Has(key Value) bool          { _, ok := m.table.find(key); return ok }
func (m *MapObject) Delete(key Value) bool       { return m.table.remove(key) }
func (m *MapObject) Clear()                      { m.table.clear() }
func (m *MapObject) Size() int                   { return m.table.size }

// EntryCount is the number of entry slots including tombstones; it bounds
// iteration cursors.
func (m *MapObject) EntryCount() int { return len(m.table.entries) }

// EntryAt returns the live entry at slot i, or ok=false for a tombstone.
func (m *MapObject) EntryAt(i int) (key, value Value, ok bool) {
	e := m.table.entries[i]
	return e.key, e.value, !e.deleted
}

type SetObject struct {
	PlainObject
	table orderedTable
}

func NewSet() Value {
	s := &SetObject{}
	s.init(Null)
	return Value{typ: TypeSet, obj: unsafe.Pointer(s)}
}

func (s *SetObject) Add(v Value)         { s.table.set(v, v) }
func (s *SetObject) Has(v Value) bool    { _, ok := s.table.find(v); return ok }
func (s *SetObject) Delete(v Value) bool { return s.table.remove(v) }
func (s *SetObject) Clear()              { s.table.clear() }
func (s *SetObject) Size() int           { return s.table.size }
func (s *SetObject) EntryCount() int     { return len(s.table.entries) }

// EntryAt returns the live value at slot i, or ok=false for a tombstone.
func (s *SetObject) EntryAt(i int) (Value, bool) {
	e := s.table.entries[i]
	return e.key, !e.deleted
}
