package agent

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("agent: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireKind uint8

const (
	wireUndefined wireKind = iota
	wireNull
	wireBool
	wireNumber
	wireString
	wireBigInt
	wireArray
	wireObject
	wireSet
	wireMap
)

// wireValue is the CBOR form of a cloned value. Objects store their keys in
// Keys and values in Items at the same index; maps store alternating
// key/value pairs in Items.
type wireValue struct {
	Kind   wireKind    `cbor:"1,keyasint"`
	Bool   bool        `cbor:"2,keyasint,omitempty"`
	Number float64     `cbor:"3,keyasint"`
	String string      `cbor:"4,keyasint,omitempty"`
	BigInt *big.Int    `cbor:"5,keyasint,omitempty"`
	Keys   []string    `cbor:"6,keyasint,omitempty"`
	Items  []wireValue `cbor:"7,keyasint,omitempty"`
}

// Serialize converts val into a realm-independent CBOR message. Only
// primitives other than symbols, BigInts, arrays, plain data objects, Sets
// and Maps can be cloned; anything else, or a cycle, is a TypeError.
func Serialize(v *vm.VM, val vm.Value) ([]byte, error) {
	c := &cloner{v: v, seen: map[vm.Value]bool{}}
	w, err := c.encode(val)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// Deserialize rebuilds a message produced by Serialize inside v's realm.
func Deserialize(v *vm.VM, data []byte) (vm.Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return vm.Undefined, fmt.Errorf("agent: unmarshal message: %w", err)
	}
	return decode(v, &w)
}

type cloner struct {
	v    *vm.VM
	seen map[vm.Value]bool
}

func (c *cloner) uncloneable(val vm.Value) error {
	return c.v.NewTypeError("%s could not be cloned", val.Inspect())
}

func (c *cloner) encode(val vm.Value) (wireValue, error) {
	switch val.Type() {
	case vm.TypeUndefined:
		return wireValue{Kind: wireUndefined}, nil
	case vm.TypeNull:
		return wireValue{Kind: wireNull}, nil
	case vm.TypeBoolean:
		return wireValue{Kind: wireBool, Bool: val.AsBoolean()}, nil
	case vm.TypeFloatNumber, vm.TypeIntegerNumber:
		return wireValue{Kind: wireNumber, Number: val.ToFloat()}, nil
	case vm.TypeString:
		return wireValue{Kind: wireString, String: val.AsString()}, nil
	case vm.TypeBigInt:
		return wireValue{Kind: wireBigInt, BigInt: new(big.Int).Set(val.AsBigInt())}, nil
	case vm.TypeArray, vm.TypeObject, vm.TypeSet, vm.TypeMap:
	default:
		return wireValue{}, c.uncloneable(val)
	}

	if c.seen[val] {
		return wireValue{}, c.v.NewTypeError("cyclic value could not be cloned")
	}
	c.seen[val] = true
	defer delete(c.seen, val)

	switch val.Type() {
	case vm.TypeArray:
		elems := val.AsArray().Elements()
		w := wireValue{Kind: wireArray, Items: make([]wireValue, len(elems))}
		for i, e := range elems {
			item, err := c.encode(e)
			if err != nil {
				return wireValue{}, err
			}
			w.Items[i] = item
		}
		return w, nil
	case vm.TypeSet:
		s := val.AsSet()
		w := wireValue{Kind: wireSet}
		for i := 0; i < s.EntryCount(); i++ {
			e, ok := s.EntryAt(i)
			if !ok {
				continue
			}
			item, err := c.encode(e)
			if err != nil {
				return wireValue{}, err
			}
			w.Items = append(w.Items, item)
		}
		return w, nil
	case vm.TypeMap:
		m := val.AsMap()
		w := wireValue{Kind: wireMap}
		for i := 0; i < m.EntryCount(); i++ {
			k, e, ok := m.EntryAt(i)
			if !ok {
				continue
			}
			key, err := c.encode(k)
			if err != nil {
				return wireValue{}, err
			}
			item, err := c.encode(e)
			if err != nil {
				return wireValue{}, err
			}
			w.Items = append(w.Items, key, item)
		}
		return w, nil
	}

	obj := val.AsPlainObject()
	if obj.Slot() != nil {
		return wireValue{}, c.uncloneable(val)
	}
	w := wireValue{Kind: wireObject}
	for _, key := range obj.OwnKeys() {
		f, _ := obj.GetOwnField(key)
		if key.IsSymbol() || !f.Enumerable() {
			continue
		}
		if _, _, isAccessor := f.Accessor(); isAccessor {
			return wireValue{}, c.v.NewTypeError("accessor property %s could not be cloned", key.Name())
		}
		item, err := c.encode(f.Value())
		if err != nil {
			return wireValue{}, err
		}
		w.Keys = append(w.Keys, key.Name())
		w.Items = append(w.Items, item)
	}
	return w, nil
}

func decode(v *vm.VM, w *wireValue) (vm.Value, error) {
	realm := v.Realm()
	switch w.Kind {
	case wireUndefined:
		return vm.Undefined, nil
	case wireNull:
		return vm.Null, nil
	case wireBool:
		return vm.BooleanValue(w.Bool), nil
	case wireNumber:
		return vm.NumberValue(w.Number), nil
	case wireString:
		return vm.NewString(w.String), nil
	case wireBigInt:
		if w.BigInt == nil {
			return vm.NewBigInt(new(big.Int)), nil
		}
		return vm.NewBigInt(w.BigInt), nil
	case wireArray:
		items, err := decodeAll(v, w.Items)
		if err != nil {
			return vm.Undefined, err
		}
		return v.NewArrayFrom(items), nil
	case wireSet:
		items, err := decodeAll(v, w.Items)
		if err != nil {
			return vm.Undefined, err
		}
		set := vm.NewSet()
		set.AsPlainObject().SetPrototype(realm.SetPrototype)
		for _, item := range items {
			set.AsSet().Add(item)
		}
		return set, nil
	case wireMap:
		if len(w.Items)%2 != 0 {
			return vm.Undefined, fmt.Errorf("agent: map message has %d items", len(w.Items))
		}
		items, err := decodeAll(v, w.Items)
		if err != nil {
			return vm.Undefined, err
		}
		m := vm.NewMap()
		m.AsPlainObject().SetPrototype(realm.MapPrototype)
		for i := 0; i < len(items); i += 2 {
			m.AsMap().Set(items[i], items[i+1])
		}
		return m, nil
	case wireObject:
		if len(w.Keys) != len(w.Items) {
			return vm.Undefined, fmt.Errorf("agent: object message has %d keys for %d items", len(w.Keys), len(w.Items))
		}
		obj := v.NewPlainObject()
		for i, key := range w.Keys {
			item, err := decode(v, &w.Items[i])
			if err != nil {
				return vm.Undefined, err
			}
			if err := v.CreateDataProperty(obj, vm.NewStringKey(key), item); err != nil {
				return vm.Undefined, err
			}
		}
		return obj, nil
	default:
		return vm.Undefined, fmt.Errorf("agent: unknown value kind %d", w.Kind)
	}
}

func decodeAll(v *vm.VM, ws []wireValue) ([]vm.Value, error) {
	out := make([]vm.Value, len(ws))
	for i := range ws {
		val, err := decode(v, &ws[i])
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}
