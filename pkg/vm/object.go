package vm

import (
	"fmt"
	"strconv"
	"unsafe"
)

type KeyKind uint8

const (
	KeyKindString KeyKind = iota
	KeyKindSymbol
)

// PropertyKey represents a property key which can be a string or a symbol.
// String keys compare by value, symbol keys by identity.
type PropertyKey struct {
	kind   KeyKind
	name   string
	symbol *SymbolObject
}

// NewStringKey constructs a PropertyKey for string-named properties.
func NewStringKey(name string) PropertyKey {
	return PropertyKey{kind: KeyKindString, name: name}
}

// NewSymbolKey constructs a PropertyKey for symbol-named properties.
func NewSymbolKey(sym Value) PropertyKey {
	return PropertyKey{kind: KeyKindSymbol, symbol: sym.AsSymbol()}
}

// NewIndexKey constructs the canonical string key for an array index.
func NewIndexKey(i int) PropertyKey {
	return NewStringKey(strconv.Itoa(i))
}

func (k PropertyKey) Kind() KeyKind  { return k.kind }
func (k PropertyKey) IsString() bool { return k.kind == KeyKindString }
func (k PropertyKey) IsSymbol() bool { return k.kind == KeyKindSymbol }

// Name returns the string name of a string key, or "" for symbols.
func (k PropertyKey) Name() string { return k.name }

// Symbol returns the symbol value of a symbol key.
func (k PropertyKey) Symbol() Value {
	if k.kind != KeyKindSymbol {
		return Undefined
	}
	return Value{typ: TypeSymbol, obj: unsafe.Pointer(k.symbol)}
}

// ToValue returns the key as a script value (string or symbol).
func (k PropertyKey) ToValue() Value {
	if k.kind == KeyKindSymbol {
		return k.Symbol()
	}
	return NewString(k.name)
}

// Equal reports key identity: value equality for strings, identity for symbols.
func (k PropertyKey) Equal(other PropertyKey) bool {
	if k.kind != other.kind {
		return false
	}
	if k.kind == KeyKindString {
		return k.name == other.name
	}
	return k.symbol == other.symbol
}

// Hash returns a string usable as a map key for this property key.
func (k PropertyKey) Hash() string {
	if k.kind == KeyKindString {
		return "s:" + k.name
	}
	return fmt.Sprintf("y:%p", k.symbol)
}

// String renders the key for diagnostics and function names.
func (k PropertyKey) String() string {
	if k.kind == KeyKindString {
		return k.name
	}
	return "[" + k.symbol.DescriptiveName() + "]"
}

// ArrayIndex reports whether the key is a canonical array index.
func (k PropertyKey) ArrayIndex() (int, bool) {
	if k.kind != KeyKindString || k.name == "" {
		return 0, false
	}
	if len(k.name) > 1 && k.name[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(k.name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Slot is the out-of-band internal state of a branded object (iterator
// records, registry cells, boxed primitives). Brand identifies the family.
type Slot interface {
	Brand() string
}

// PrimitiveSlot holds the [[XData]] of a primitive wrapper object.
type PrimitiveSlot struct {
	Value Value
}

func (p *PrimitiveSlot) Brand() string {
	switch p.Value.Type() {
	case TypeBigInt:
		return "BigInt"
	case TypeSymbol:
		return "Symbol"
	case TypeString:
		return "String"
	case TypeBoolean:
		return "Boolean"
	}
	return "Number"
}

type Field struct {
	key          PropertyKey
	value        Value
	getter       Value
	setter       Value
	writable     bool
	enumerable   bool
	configurable bool
	isAccessor   bool
}

// Key returns the property key of the field.
func (f *Field) Key() PropertyKey { return f.key }

// Value returns the data value of the field (undefined for accessors).
func (f *Field) Value() Value { return f.value }

// Accessor returns the getter and setter of an accessor field.
func (f *Field) Accessor() (getter, setter Value, ok bool) {
	return f.getter, f.setter, f.isAccessor
}

func (f *Field) Writable() bool     { return f.writable }
func (f *Field) Enumerable() bool   { return f.enumerable }
func (f *Field) Configurable() bool { return f.configurable }

// PlainObject is an ordinary object: a prototype link plus own properties in
// insertion order.
type PlainObject struct {
	prototype  Value
	fields     []Field
	index      map[string]int
	slot       Slot
	extensible bool
}

func (o *PlainObject) init(proto Value) {
	o.prototype = proto
	o.extensible = true
}

func (o *PlainObject) lookup(key PropertyKey) (int, bool) {
	if o.index == nil {
		return 0, false
	}
	i, ok := o.index[key.Hash()]
	return i, ok
}

// GetOwn looks up a direct (own) data property by name.
func (o *PlainObject) GetOwn(name string) (Value, bool) {
	return o.GetOwnByKey(NewStringKey(name))
}

// GetOwnByKey looks up a direct (own) data property by key. Accessor
// properties report ok=true with an undefined value.
func (o *PlainObject) GetOwnByKey(key PropertyKey) (Value, bool) {
	i, ok := o.lookup(key)
	if !ok {
		return Undefined, false
	}
	return o.fields[i].value, true
}

// GetOwnField returns the full own property record for key.
func (o *PlainObject) GetOwnField(key PropertyKey) (*Field, bool) {
	i, ok := o.lookup(key)
	if !ok {
		return nil, false
	}
	return &o.fields[i], true
}

func (o *PlainObject) HasOwn(name string) bool {
	return o.HasOwnByKey(NewStringKey(name))
}

func (o *PlainObject) HasOwnByKey(key PropertyKey) bool {
	_, ok := o.lookup(key)
	return ok
}

func (o *PlainObject) append(f Field) {
	if o.index == nil {
		o.index = make(map[string]int)
	}
	o.index[f.key.Hash()] = len(o.fields)
	o.fields = append(o.fields, f)
}

// SetOwn assigns an own property with ordinary assignment semantics: new
// properties are writable, enumerable and configurable.
func (o *PlainObject) SetOwn(name string, v Value) {
	o.SetOwnByKey(NewStringKey(name), v)
}

func (o *PlainObject) SetOwnByKey(key PropertyKey, v Value) bool {
	if i, ok := o.lookup(key); ok {
		f := &o.fields[i]
		if f.isAccessor || !f.writable {
			return false
		}
		f.value = v
		return true
	}
	if !o.extensible {
		return false
	}
	o.append(Field{key: key, value: v, writable: true, enumerable: true, configurable: true})
	return true
}

// SetOwnNonEnumerable sets or defines an own property as non-enumerable (for built-in methods).
func (o *PlainObject) SetOwnNonEnumerable(name string, v Value) {
	w, e, c := true, false, true
	o.DefineOwnProperty(name, v, &w, &e, &c)
}

// DefineOwnProperty defines or updates an own property with explicit attributes.
// For existing properties, unspecified attributes (nil) keep previous values.
func (o *PlainObject) DefineOwnProperty(name string, value Value, writable, enumerable, configurable *bool) bool {
	return o.DefineOwnPropertyByKey(NewStringKey(name), value, writable, enumerable, configurable)
}

// DefineOwnPropertyByKey defines or updates a data property for arbitrary key kinds.
func (o *PlainObject) DefineOwnPropertyByKey(key PropertyKey, value Value, writable, enumerable, configurable *bool) bool {
	if i, ok := o.lookup(key); ok {
		f := &o.fields[i]
		if !f.configurable {
			if f.isAccessor || (!f.writable && !value.Is(f.value)) {
				return false
			}
			if (writable != nil && *writable && !f.writable) ||
				(enumerable != nil && *enumerable != f.enumerable) ||
				(configurable != nil && *configurable) {
				return false
			}
		}
		if f.isAccessor {
			f.isAccessor = false
			f.getter, f.setter = Undefined, Undefined
			f.writable = false
		}
		f.value = value
		if writable != nil {
			f.writable = *writable
		}
		if enumerable != nil {
			f.enumerable = *enumerable
		}
		if configurable != nil {
			f.configurable = *configurable
		}
		return true
	}
	if !o.extensible {
		return false
	}
	f := Field{key: key, value: value}
	if writable != nil {
		f.writable = *writable
	}
	if enumerable != nil {
		f.enumerable = *enumerable
	}
	if configurable != nil {
		f.configurable = *configurable
	}
	o.append(f)
	return true
}

// DefineAccessorPropertyByKey defines or updates an accessor own property.
func (o *PlainObject) DefineAccessorPropertyByKey(key PropertyKey, getter, setter Value, enumerable, configurable *bool) bool {
	if i, ok := o.lookup(key); ok {
		f := &o.fields[i]
		if !f.configurable {
			return false
		}
		f.isAccessor = true
		f.value = Undefined
		f.writable = false
		f.getter, f.setter = getter, setter
		if enumerable != nil {
			f.enumerable = *enumerable
		}
		if configurable != nil {
			f.configurable = *configurable
		}
		return true
	}
	if !o.extensible {
		return false
	}
	f := Field{key: key, value: Undefined, getter: getter, setter: setter, isAccessor: true}
	if enumerable != nil {
		f.enumerable = *enumerable
	}
	if configurable != nil {
		f.configurable = *configurable
	}
	o.append(f)
	return true
}

// DeleteOwnByKey removes a configurable own property, preserving the order of
// the remaining ones.
func (o *PlainObject) DeleteOwnByKey(key PropertyKey) bool {
	i, ok := o.lookup(key)
	if !ok {
		return true
	}
	if !o.fields[i].configurable {
		return false
	}
	o.fields = append(o.fields[:i], o.fields[i+1:]...)
	delete(o.index, key.Hash())
	for j := i; j < len(o.fields); j++ {
		o.index[o.fields[j].key.Hash()] = j
	}
	return true
}

// OwnKeys returns own property keys in insertion order, string keys first and
// symbol keys after, matching [[OwnPropertyKeys]] for non-index keys.
func (o *PlainObject) OwnKeys() []PropertyKey {
	keys := make([]PropertyKey, 0, len(o.fields))
	for _, f := range o.fields {
		if f.key.IsString() {
			keys = append(keys, f.key)
		}
	}
	for _, f := range o.fields {
		if f.key.IsSymbol() {
			keys = append(keys, f.key)
		}
	}
	return keys
}

// OwnPropertyNames returns own string keys in insertion order.
func (o *PlainObject) OwnPropertyNames() []string {
	names := make([]string, 0, len(o.fields))
	for _, f := range o.fields {
		if f.key.IsString() {
			names = append(names, f.key.name)
		}
	}
	return names
}

func (o *PlainObject) GetPrototype() Value {
	return o.prototype
}

// SetPrototype replaces [[Prototype]], refusing cycles and non-extensible targets.
func (o *PlainObject) SetPrototype(proto Value) bool {
	if !proto.IsObject() && !proto.IsNull() {
		return false
	}
	if !o.extensible {
		return o.prototype.Is(proto)
	}
	for p := proto; p.IsObject(); p = p.AsPlainObject().prototype {
		if p.AsPlainObject() == o {
			return false
		}
	}
	o.prototype = proto
	return true
}

// IsExtensible reports whether new own properties may be added.
func (o *PlainObject) IsExtensible() bool {
	return o.extensible
}

// PreventExtensions makes the object refuse new own properties and
// prototype changes. Existing properties keep their attributes.
func (o *PlainObject) PreventExtensions() {
	o.extensible = false
}

// Slot returns the object's internal slot record.
func (o *PlainObject) Slot() Slot {
	return o.slot
}

// SetSlot attaches an internal slot record. Slots are attached once when a
// branded object is created.
func (o *PlainObject) SetSlot(s Slot) {
	o.slot = s
}

// NewObject creates an ordinary object with the given prototype (null when
// proto is not an object).
func NewObject(proto Value) Value {
	po := &PlainObject{}
	if proto.IsObject() {
		po.init(proto)
	} else {
		po.init(Null)
	}
	return Value{typ: TypeObject, obj: unsafe.Pointer(po)}
}

// NewBrandedObject creates an ordinary object carrying an internal slot.
func NewBrandedObject(proto Value, slot Slot) Value {
	v := NewObject(proto)
	v.AsPlainObject().slot = slot
	return v
}

// NewValueFromPlainObject wraps an existing ordinary object.
func NewValueFromPlainObject(po *PlainObject) Value {
	return Value{typ: TypeObject, obj: unsafe.Pointer(po)}
}
