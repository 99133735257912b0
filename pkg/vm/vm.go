package vm

import (
	"math"
	"math/big"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jsintrinsics.vm")

// maxCallDepth bounds native re-entrancy (getters calling iterators calling getters).
const maxCallDepth = 10000

// IteratorHint selects between Symbol.iterator and Symbol.asyncIterator.
type IteratorHint uint8

const (
	HintSync IteratorHint = iota
	HintAsync
)

// VM is the object-model and call primitive a realm's builtins run against.
// A VM is confined to one goroutine.
type VM struct {
	realm        *Realm
	asyncContext *AsyncContextMapping
	callDepth    int
}

// NewVM creates a VM with a fresh realm.
func NewVM(opts RealmOptions) *VM {
	vm := &VM{realm: NewRealm(opts), asyncContext: emptyAsyncContext}
	log.Debugf("created realm %s (ecma %d)", vm.realm.ID(), vm.realm.Options().EcmaVersion)
	return vm
}

func (vm *VM) Realm() *Realm {
	return vm.realm
}

// NewFunction creates a non-constructible native function in this realm.
func (vm *VM) NewFunction(arity int, variadic bool, name string, fn NativeFn) Value {
	f := NewNativeFunction(arity, variadic, name, fn)
	f.AsPlainObject().prototype = vm.realm.FunctionPrototype
	return f
}

// NewConstructor creates a native function with construct behaviour. fn may
// be nil for constructors that require `new`.
func (vm *VM) NewConstructor(arity int, name string, fn NativeFn, ctor NativeCtor) Value {
	f := NewNativeConstructor(arity, name, fn, ctor)
	f.AsPlainObject().prototype = vm.realm.FunctionPrototype
	return f
}

// NewPlainObject creates an ordinary object inheriting from %Object.prototype%.
func (vm *VM) NewPlainObject() Value {
	return NewObject(vm.realm.ObjectPrototype)
}

// NewArrayFrom creates an Array in this realm holding a copy of values.
func (vm *VM) NewArrayFrom(values []Value) Value {
	arr := NewArrayFromSlice(values)
	arr.AsPlainObject().prototype = vm.realm.ArrayPrototype
	return arr
}

// CreateIterResultObject builds the {value, done} record returned by next().
func (vm *VM) CreateIterResultObject(value Value, done bool) Value {
	obj := vm.NewPlainObject()
	po := obj.AsPlainObject()
	po.SetOwn("value", value)
	po.SetOwn("done", BooleanValue(done))
	return obj
}

// Get reads a string-keyed property.
func (vm *VM) Get(obj Value, name string) (Value, error) {
	return vm.GetProperty(obj, NewStringKey(name))
}

// GetProperty implements [[Get]] with the value itself as receiver. Primitives
// read through their prototype; accessors run their getter.
func (vm *VM) GetProperty(obj Value, key PropertyKey) (Value, error) {
	return vm.get(obj, key, obj)
}

func (vm *VM) get(obj Value, key PropertyKey, receiver Value) (Value, error) {
	r := vm.realm
	switch obj.typ {
	case TypeUndefined, TypeNull:
		return Undefined, vm.NewTypeError("Cannot read properties of %s (reading '%s')", obj.ToString(), key.String())
	case TypeString:
		if v, ok := stringOwnProperty(obj.AsString(), key); ok {
			return v, nil
		}
		return vm.get(r.StringPrototype, key, receiver)
	case TypeFloatNumber, TypeIntegerNumber:
		return vm.get(r.NumberPrototype, key, receiver)
	case TypeBoolean:
		return vm.get(r.BooleanPrototype, key, receiver)
	case TypeSymbol:
		return vm.get(r.SymbolPrototype, key, receiver)
	case TypeBigInt:
		return vm.get(r.BigIntPrototype, key, receiver)
	case TypeArray:
		arr := obj.AsArray()
		if key.IsString() && key.name == "length" {
			return IndexValue(arr.Length()), nil
		}
		if i, ok := key.ArrayIndex(); ok && i < arr.Length() {
			return arr.elements[i], nil
		}
	case TypeTypedArray:
		if i, ok := key.ArrayIndex(); ok {
			return obj.AsTypedArray().GetElement(i), nil
		}
	case TypeProxy:
		return vm.proxyGet(obj.AsProxy(), key, receiver)
	}

	po := obj.AsPlainObject()
	if f, ok := po.GetOwnField(key); ok {
		if f.isAccessor {
			if f.getter.IsUndefined() {
				return Undefined, nil
			}
			return vm.Call(f.getter, receiver, nil)
		}
		return f.value, nil
	}
	if po.prototype.IsObject() {
		return vm.get(po.prototype, key, receiver)
	}
	return Undefined, nil
}

func stringOwnProperty(s string, key PropertyKey) (Value, bool) {
	if !key.IsString() {
		return Undefined, false
	}
	if key.name == "length" {
		return IndexValue(UTF16Length(s)), true
	}
	if i, ok := key.ArrayIndex(); ok {
		units := codeUnits(s)
		if i < len(units) {
			return NewString(codeUnitString(units[i])), true
		}
	}
	return Undefined, false
}

// Set assigns a string-keyed property.
func (vm *VM) Set(obj Value, name string, v Value) error {
	return vm.SetProperty(obj, NewStringKey(name), v)
}

// SetProperty implements strict-mode assignment: a rejected write is a TypeError.
func (vm *VM) SetProperty(obj Value, key PropertyKey, v Value) error {
	ok, err := vm.set(obj, key, v, obj)
	if err != nil {
		return err
	}
	if !ok {
		return vm.NewTypeError("Cannot assign to read only property '%s' of %s", key.String(), obj.Inspect())
	}
	return nil
}

func (vm *VM) set(obj Value, key PropertyKey, v Value, receiver Value) (bool, error) {
	r := vm.realm
	switch obj.typ {
	case TypeUndefined, TypeNull:
		return false, vm.NewTypeError("Cannot set properties of %s (setting '%s')", obj.ToString(), key.String())
	case TypeString:
		if _, ok := stringOwnProperty(obj.AsString(), key); ok {
			return false, nil
		}
		return vm.set(r.StringPrototype, key, v, receiver)
	case TypeFloatNumber, TypeIntegerNumber:
		return vm.set(r.NumberPrototype, key, v, receiver)
	case TypeBoolean:
		return vm.set(r.BooleanPrototype, key, v, receiver)
	case TypeSymbol:
		return vm.set(r.SymbolPrototype, key, v, receiver)
	case TypeBigInt:
		return vm.set(r.BigIntPrototype, key, v, receiver)
	case TypeArray:
		if obj.Is(receiver) {
			arr := obj.AsArray()
			if key.IsString() && key.name == "length" {
				n, err := vm.ToIndex(v)
				if err != nil {
					return false, err
				}
				arr.SetLength(n)
				return true, nil
			}
			if i, ok := key.ArrayIndex(); ok && i < arr.Length() {
				arr.elements[i] = v
				return true, nil
			}
		}
	case TypeTypedArray:
		if i, ok := key.ArrayIndex(); ok {
			ta := obj.AsTypedArray()
			num, err := vm.toTypedArrayElement(ta.kind, v)
			if err != nil {
				return false, err
			}
			ta.SetElement(i, num)
			return true, nil
		}
	case TypeProxy:
		return vm.proxySet(obj.AsProxy(), key, v, receiver)
	}

	po := obj.AsPlainObject()
	if f, ok := po.GetOwnField(key); ok {
		if f.isAccessor {
			if f.setter.IsUndefined() {
				return false, nil
			}
			_, err := vm.Call(f.setter, receiver, []Value{v})
			return err == nil, err
		}
		if !f.writable {
			return false, nil
		}
		if obj.Is(receiver) {
			f.value = v
			return true, nil
		}
		return vm.defineOnReceiver(receiver, key, v), nil
	}
	if po.prototype.IsObject() {
		return vm.set(po.prototype, key, v, receiver)
	}
	return vm.defineOnReceiver(receiver, key, v), nil
}

func (vm *VM) defineOnReceiver(receiver Value, key PropertyKey, v Value) bool {
	if !receiver.IsObject() {
		return false
	}
	if receiver.IsArray() {
		if i, ok := key.ArrayIndex(); ok {
			receiver.AsArray().Set(i, v)
			return true
		}
	}
	return receiver.AsPlainObject().SetOwnByKey(key, v)
}

func (vm *VM) toTypedArrayElement(kind TypedArrayKind, v Value) (Value, error) {
	if kind.IsBigInt() {
		b, err := vm.ToBigInt(v)
		if err != nil {
			return Undefined, err
		}
		return NewBigInt(b), nil
	}
	f, err := vm.ToNumber(v)
	if err != nil {
		return Undefined, err
	}
	return NumberValue(f), nil
}

// CreateDataProperty defines an enumerable, writable, configurable own data
// property, failing with a TypeError when the object refuses it.
func (vm *VM) CreateDataProperty(obj Value, key PropertyKey, v Value) error {
	if obj.IsArray() {
		if i, ok := key.ArrayIndex(); ok {
			obj.AsArray().Set(i, v)
			return nil
		}
	}
	t := true
	if !obj.IsObject() || obj.IsProxy() || !obj.AsPlainObject().DefineOwnPropertyByKey(key, v, &t, &t, &t) {
		return vm.NewTypeError("Cannot define property %s on %s", key.String(), obj.Inspect())
	}
	return nil
}

func (v Value) IsProxy() bool { return v.typ == TypeProxy }

func (vm *VM) proxyTrap(p *ProxyObject, name string) (Value, error) {
	if p.revoked {
		return Undefined, vm.NewTypeError("Cannot perform '%s' on a proxy that has been revoked", name)
	}
	return vm.GetMethod(p.handler, NewStringKey(name))
}

func (vm *VM) proxyGet(p *ProxyObject, key PropertyKey, receiver Value) (Value, error) {
	trap, err := vm.proxyTrap(p, "get")
	if err != nil {
		return Undefined, err
	}
	if trap.IsUndefined() {
		return vm.get(p.target, key, receiver)
	}
	return vm.Call(trap, p.handler, []Value{p.target, key.ToValue(), receiver})
}

func (vm *VM) proxySet(p *ProxyObject, key PropertyKey, v Value, receiver Value) (bool, error) {
	trap, err := vm.proxyTrap(p, "set")
	if err != nil {
		return false, err
	}
	if trap.IsUndefined() {
		return vm.set(p.target, key, v, receiver)
	}
	res, err := vm.Call(trap, p.handler, []Value{p.target, key.ToValue(), v, receiver})
	if err != nil {
		return false, err
	}
	return res.IsTruthy(), nil
}

// Call invokes fn with the given receiver and arguments.
func (vm *VM) Call(fn Value, this Value, args []Value) (Value, error) {
	switch fn.typ {
	case TypeNativeFunction:
		f := fn.AsNativeFunction()
		if f.Fn == nil {
			return Undefined, vm.NewTypeError("Constructor %s requires 'new'", f.Name)
		}
		if vm.callDepth >= maxCallDepth {
			return Undefined, vm.NewRangeError("Maximum call stack size exceeded")
		}
		vm.callDepth++
		defer func() { vm.callDepth-- }()
		return f.Fn(this, args)
	case TypeProxy:
		p := fn.AsProxy()
		if !p.target.IsCallable() {
			break
		}
		trap, err := vm.proxyTrap(p, "apply")
		if err != nil {
			return Undefined, err
		}
		if trap.IsUndefined() {
			return vm.Call(p.target, this, args)
		}
		return vm.Call(trap, p.handler, []Value{p.target, this, vm.NewArrayFrom(args)})
	}
	return Undefined, vm.NotCallable(fn)
}

// Construct invokes fn as a constructor. An undefined newTarget means fn itself.
func (vm *VM) Construct(fn Value, args []Value, newTarget Value) (Value, error) {
	if newTarget.IsUndefined() {
		newTarget = fn
	}
	switch fn.typ {
	case TypeNativeFunction:
		f := fn.AsNativeFunction()
		if f.Ctor == nil {
			break
		}
		if vm.callDepth >= maxCallDepth {
			return Undefined, vm.NewRangeError("Maximum call stack size exceeded")
		}
		vm.callDepth++
		defer func() { vm.callDepth-- }()
		return f.Ctor(args, newTarget)
	case TypeProxy:
		p := fn.AsProxy()
		if !p.target.IsConstructor() {
			break
		}
		trap, err := vm.proxyTrap(p, "construct")
		if err != nil {
			return Undefined, err
		}
		if trap.IsUndefined() {
			return vm.Construct(p.target, args, newTarget)
		}
		res, err := vm.Call(trap, p.handler, []Value{p.target, vm.NewArrayFrom(args), newTarget})
		if err != nil {
			return Undefined, err
		}
		if !res.IsObject() {
			return Undefined, vm.NewTypeError("proxy [[Construct]] must return an object")
		}
		return res, nil
	}
	return Undefined, vm.NotAConstructor(fn)
}

// GetMethod returns the callable at key, or undefined when the property is
// null or undefined.
func (vm *VM) GetMethod(v Value, key PropertyKey) (Value, error) {
	fn, err := vm.GetProperty(v, key)
	if err != nil {
		return Undefined, err
	}
	if fn.IsNullish() {
		return Undefined, nil
	}
	if !fn.IsCallable() {
		return Undefined, vm.NewTypeError("%s is not a function", fn.Inspect())
	}
	return fn, nil
}

// GetIteratorMethod reads @@iterator or @@asyncIterator from obj.
func (vm *VM) GetIteratorMethod(obj Value, hint IteratorHint) (Value, error) {
	sym := SymbolIterator
	if hint == HintAsync {
		sym = SymbolAsyncIterator
	}
	return vm.GetMethod(obj, NewSymbolKey(sym))
}

// Invoke calls the method named name on v.
func (vm *VM) Invoke(v Value, name string, args ...Value) (Value, error) {
	fn, err := vm.Get(v, name)
	if err != nil {
		return Undefined, err
	}
	return vm.Call(fn, v, args)
}

// ToObject boxes primitives into wrapper objects carrying a PrimitiveSlot.
func (vm *VM) ToObject(v Value) (Value, error) {
	r := vm.realm
	var proto Value
	switch v.typ {
	case TypeUndefined, TypeNull:
		return Undefined, vm.NewTypeError("Cannot convert undefined or null to object")
	case TypeString:
		proto = r.StringPrototype
	case TypeFloatNumber, TypeIntegerNumber:
		proto = r.NumberPrototype
	case TypeBoolean:
		proto = r.BooleanPrototype
	case TypeSymbol:
		proto = r.SymbolPrototype
	case TypeBigInt:
		proto = r.BigIntPrototype
	default:
		return v, nil
	}
	return NewBrandedObject(proto, &PrimitiveSlot{Value: v}), nil
}

// ToPrimitive converts objects through @@toPrimitive, then valueOf/toString in
// hint order. Boxed primitives fall back to their wrapped value.
func (vm *VM) ToPrimitive(v Value, hint string) (Value, error) {
	if v.IsPrimitive() {
		return v, nil
	}
	exotic, err := vm.GetMethod(v, NewSymbolKey(SymbolToPrimitive))
	if err != nil {
		return Undefined, err
	}
	if !exotic.IsUndefined() {
		h := hint
		if h == "" {
			h = "default"
		}
		res, err := vm.Call(exotic, v, []Value{NewString(h)})
		if err != nil {
			return Undefined, err
		}
		if res.IsObject() {
			return Undefined, vm.NewTypeError("Cannot convert object to primitive value")
		}
		return res, nil
	}
	order := []string{"valueOf", "toString"}
	if hint == "string" {
		order = []string{"toString", "valueOf"}
	}
	called := false
	for _, name := range order {
		fn, err := vm.Get(v, name)
		if err != nil {
			return Undefined, err
		}
		if !fn.IsCallable() {
			continue
		}
		called = true
		res, err := vm.Call(fn, v, nil)
		if err != nil {
			return Undefined, err
		}
		if res.IsPrimitive() {
			return res, nil
		}
	}
	if called {
		return Undefined, vm.NewTypeError("Cannot convert object to primitive value")
	}
	// No conversion methods are installed: behave like the Object.prototype defaults.
	if prim, ok := v.Slot().(*PrimitiveSlot); ok {
		return prim.Value, nil
	}
	return NewString(v.ToString()), nil
}

// ToString implements ECMAScript ToString.
func (vm *VM) ToString(v Value) (string, error) {
	switch {
	case v.IsSymbol():
		return "", vm.NewTypeError("Cannot convert a Symbol value to a string")
	case v.IsPrimitive():
		return v.ToString(), nil
	}
	prim, err := vm.ToPrimitive(v, "string")
	if err != nil {
		return "", err
	}
	return vm.ToString(prim)
}

// ToNumber implements ECMAScript ToNumber.
func (vm *VM) ToNumber(v Value) (float64, error) {
	switch {
	case v.IsSymbol():
		return 0, vm.NewTypeError("Cannot convert a Symbol value to a number")
	case v.IsBigInt():
		return 0, vm.NewTypeError("Cannot convert a BigInt value to a number")
	case v.IsPrimitive():
		return v.ToFloat(), nil
	}
	prim, err := vm.ToPrimitive(v, "number")
	if err != nil {
		return 0, err
	}
	return vm.ToNumber(prim)
}

// ToIntegerOrInfinity truncates toward zero, mapping NaN to 0.
func (vm *VM) ToIntegerOrInfinity(v Value) (float64, error) {
	f, err := vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, nil
	}
	return math.Trunc(f) + 0, nil
}

const maxSafeInteger = 1<<53 - 1

// ToIndex converts v to a non-negative integer index, or fails with RangeError.
func (vm *VM) ToIndex(v Value) (int, error) {
	if v.IsUndefined() {
		return 0, nil
	}
	f, err := vm.ToIntegerOrInfinity(v)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > maxSafeInteger {
		return 0, vm.NewRangeError("Invalid index: %s", formatNumber(f))
	}
	return int(f), nil
}

// ToLength clamps v into [0, 2^53-1].
func (vm *VM) ToLength(v Value) (int, error) {
	f, err := vm.ToIntegerOrInfinity(v)
	if err != nil {
		return 0, err
	}
	switch {
	case f <= 0:
		return 0, nil
	case f > maxSafeInteger:
		return maxSafeInteger, nil
	}
	return int(f), nil
}

// LengthOfArrayLike reads and converts obj.length. The read may run a user getter.
func (vm *VM) LengthOfArrayLike(obj Value) (int, error) {
	l, err := vm.Get(obj, "length")
	if err != nil {
		return 0, err
	}
	return vm.ToLength(l)
}

// ToBigInt implements ECMAScript ToBigInt.
func (vm *VM) ToBigInt(v Value) (*big.Int, error) {
	prim, err := vm.ToPrimitive(v, "number")
	if err != nil {
		return nil, err
	}
	switch prim.typ {
	case TypeBigInt:
		return prim.AsBigInt(), nil
	case TypeBoolean:
		if prim.AsBoolean() {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case TypeString:
		b, ok := StringToBigInt(prim.AsString())
		if !ok {
			return nil, vm.NewSyntaxError("Cannot convert %s to a BigInt", prim.AsString())
		}
		return b, nil
	}
	return nil, vm.NewTypeError("Cannot convert %s to a BigInt", prim.ToString())
}

// StringToBigInt parses a StringIntegerLiteral.
func StringToBigInt(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), true
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 10 {
			s = s[2:]
		}
	}
	if base == 10 && (s[0] == '+' || s[0] == '-') && len(s) == 1 {
		return nil, false
	}
	if base != 10 && (s[0] == '+' || s[0] == '-') {
		return nil, false
	}
	if strings.ContainsAny(s, "_") {
		return nil, false
	}
	b, ok := new(big.Int).SetString(s, base)
	return b, ok
}

// ToPropertyKey converts v to a string or symbol key.
func (vm *VM) ToPropertyKey(v Value) (PropertyKey, error) {
	prim, err := vm.ToPrimitive(v, "string")
	if err != nil {
		return PropertyKey{}, err
	}
	if prim.IsSymbol() {
		return NewSymbolKey(prim), nil
	}
	s, err := vm.ToString(prim)
	if err != nil {
		return PropertyKey{}, err
	}
	return NewStringKey(s), nil
}

// IsArray implements IsArray, seeing through proxies.
func (vm *VM) IsArray(v Value) (bool, error) {
	switch v.typ {
	case TypeArray:
		return true, nil
	case TypeProxy:
		p := v.AsProxy()
		if p.revoked {
			return false, vm.NewTypeError("Cannot perform 'IsArray' on a proxy that has been revoked")
		}
		return vm.IsArray(p.target)
	}
	return false, nil
}

// GetPrototypeFromConstructor reads newTarget.prototype, using fallback when it
// is not an object.
func (vm *VM) GetPrototypeFromConstructor(newTarget Value, fallback Value) (Value, error) {
	if !newTarget.IsObject() {
		return fallback, nil
	}
	proto, err := vm.Get(newTarget, "prototype")
	if err != nil {
		return Undefined, err
	}
	if proto.IsObject() {
		return proto, nil
	}
	return fallback, nil
}
