package vm

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unsafe"
)

type ValueType uint8

const (
	TypeUndefined ValueType = iota
	TypeNull

	TypeString
	TypeSymbol

	TypeFloatNumber
	TypeIntegerNumber
	TypeBigInt

	TypeBoolean

	TypeNativeFunction

	TypeObject
	TypeArray
	TypeMap
	TypeSet
	TypeRegExp
	TypePromise
	TypeArrayBuffer
	TypeTypedArray
	TypeProxy
)

// String returns a human-readable string representation of the ValueType
func (vt ValueType) String() string {
	switch vt {
	case TypeNull:
		return "null"
	case TypeUndefined:
		return "undefined"
	case TypeString:
		return "string"
	case TypeSymbol:
		return "symbol"
	case TypeFloatNumber, TypeIntegerNumber:
		return "number"
	case TypeBigInt:
		return "bigint"
	case TypeBoolean:
		return "boolean"
	case TypeNativeFunction:
		return "native function"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeMap:
		return "map"
	case TypeSet:
		return "set"
	case TypeRegExp:
		return "regexp"
	case TypePromise:
		return "promise"
	case TypeArrayBuffer:
		return "arraybuffer"
	case TypeTypedArray:
		return "typed array"
	case TypeProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

type StringObject struct {
	value string
}

type BigIntObject struct {
	value *big.Int
}

// Value is a tagged ECMAScript value. Primitive numbers and booleans live in
// payload; everything else points at a heap object through obj.
type Value struct {
	typ     ValueType
	payload uint64
	obj     unsafe.Pointer
}

var (
	Undefined = Value{typ: TypeUndefined}
	Null      = Value{typ: TypeNull}
	True      = Value{typ: TypeBoolean, payload: 1}
	False     = Value{typ: TypeBoolean, payload: 0}
	NaN       = Value{typ: TypeFloatNumber, payload: math.Float64bits(math.NaN())}
)

func NumberValue(value float64) Value {
	return Value{typ: TypeFloatNumber, payload: math.Float64bits(value)}
}

func IntegerValue(value int32) Value {
	return Value{typ: TypeIntegerNumber, payload: uint64(int64(value))}
}

// IndexValue returns the number value for a non-negative index, preferring the
// integer representation when it fits.
func IndexValue(i int) Value {
	if i >= 0 && i <= math.MaxInt32 {
		return IntegerValue(int32(i))
	}
	return NumberValue(float64(i))
}

func BooleanValue(value bool) Value {
	if value {
		return True
	}
	return False
}

func NewBigInt(value *big.Int) Value {
	return Value{typ: TypeBigInt, obj: unsafe.Pointer(&BigIntObject{value: value})}
}

func NewString(value string) Value {
	return Value{typ: TypeString, obj: unsafe.Pointer(&StringObject{value: value})}
}

func (v Value) Type() ValueType {
	return v.typ
}

func (v Value) IsUndefined() bool      { return v.typ == TypeUndefined }
func (v Value) IsNull() bool           { return v.typ == TypeNull }
func (v Value) IsNullish() bool        { return v.typ == TypeUndefined || v.typ == TypeNull }
func (v Value) IsString() bool         { return v.typ == TypeString }
func (v Value) IsSymbol() bool         { return v.typ == TypeSymbol }
func (v Value) IsBigInt() bool         { return v.typ == TypeBigInt }
func (v Value) IsArray() bool          { return v.typ == TypeArray }
func (v Value) IsTypedArray() bool     { return v.typ == TypeTypedArray }
func (v Value) IsArrayBuffer() bool    { return v.typ == TypeArrayBuffer }
func (v Value) IsNativeFunction() bool { return v.typ == TypeNativeFunction }

func (v Value) IsNumber() bool {
	return v.typ == TypeFloatNumber || v.typ == TypeIntegerNumber
}

// IsObject reports whether v is any object kind (functions included).
func (v Value) IsObject() bool {
	return v.typ >= TypeNativeFunction
}

// IsPrimitive reports whether v is not an object.
func (v Value) IsPrimitive() bool {
	return !v.IsObject()
}

func (v Value) IsCallable() bool {
	switch v.typ {
	case TypeNativeFunction:
		return true
	case TypeProxy:
		p := v.AsProxy()
		return p.target.IsCallable()
	}
	return false
}

func (v Value) IsConstructor() bool {
	switch v.typ {
	case TypeNativeFunction:
		return v.AsNativeFunction().Ctor != nil
	case TypeProxy:
		return v.AsProxy().target.IsConstructor()
	}
	return false
}

func (v Value) AsBoolean() bool {
	if v.typ != TypeBoolean {
		panic("value is not a boolean")
	}
	return v.payload != 0
}

func (v Value) AsFloat() float64 {
	switch v.typ {
	case TypeFloatNumber:
		return math.Float64frombits(v.payload)
	case TypeIntegerNumber:
		return float64(int32(int64(v.payload)))
	}
	panic("value is not a number")
}

func (v Value) AsInteger() int32 {
	if v.typ != TypeIntegerNumber {
		panic("value is not an integer")
	}
	return int32(int64(v.payload))
}

func (v Value) AsString() string {
	if v.typ != TypeString {
		panic("value is not a string")
	}
	return (*StringObject)(v.obj).value
}

func (v Value) AsBigInt() *big.Int {
	if v.typ != TypeBigInt {
		panic("value is not a bigint")
	}
	return (*BigIntObject)(v.obj).value
}

func (v Value) AsSymbol() *SymbolObject {
	if v.typ != TypeSymbol {
		panic("value is not a symbol")
	}
	return (*SymbolObject)(v.obj)
}

// AsPlainObject returns the ordinary object part of any object value, or nil
// for primitives.
func (v Value) AsPlainObject() *PlainObject {
	switch v.typ {
	case TypeObject:
		return (*PlainObject)(v.obj)
	case TypeNativeFunction:
		return &(*NativeFunctionObject)(v.obj).PlainObject
	case TypeArray:
		return &(*ArrayObject)(v.obj).PlainObject
	case TypeMap:
		return &(*MapObject)(v.obj).PlainObject
	case TypeSet:
		return &(*SetObject)(v.obj).PlainObject
	case TypeRegExp:
		return &(*RegExpObject)(v.obj).PlainObject
	case TypePromise:
		return &(*PromiseObject)(v.obj).PlainObject
	case TypeArrayBuffer:
		return &(*ArrayBufferObject)(v.obj).PlainObject
	case TypeTypedArray:
		return &(*TypedArrayObject)(v.obj).PlainObject
	case TypeProxy:
		return &(*ProxyObject)(v.obj).PlainObject
	}
	return nil
}

func (v Value) AsNativeFunction() *NativeFunctionObject {
	if v.typ != TypeNativeFunction {
		panic("value is not a native function")
	}
	return (*NativeFunctionObject)(v.obj)
}

func (v Value) AsArray() *ArrayObject {
	if v.typ != TypeArray {
		panic("value is not an array")
	}
	return (*ArrayObject)(v.obj)
}

func (v Value) AsMap() *MapObject {
	if v.typ != TypeMap {
		panic("value is not a map")
	}
	return (*MapObject)(v.obj)
}

func (v Value) AsSet() *SetObject {
	if v.typ != TypeSet {
		panic("value is not a set")
	}
	return (*SetObject)(v.obj)
}

func (v Value) AsRegExp() *RegExpObject {
	if v.typ != TypeRegExp {
		panic("value is not a regexp")
	}
	return (*RegExpObject)(v.obj)
}

func (v Value) AsPromise() *PromiseObject {
	if v.typ != TypePromise {
		panic("value is not a promise")
	}
	return (*PromiseObject)(v.obj)
}

func (v Value) AsArrayBuffer() *ArrayBufferObject {
	if v.typ != TypeArrayBuffer {
		panic("value is not an array buffer")
	}
	return (*ArrayBufferObject)(v.obj)
}

func (v Value) AsTypedArray() *TypedArrayObject {
	if v.typ != TypeTypedArray {
		panic("value is not a typed array")
	}
	return (*TypedArrayObject)(v.obj)
}

func (v Value) AsProxy() *ProxyObject {
	if v.typ != TypeProxy {
		panic("value is not a proxy")
	}
	return (*ProxyObject)(v.obj)
}

// Slot returns the internal slot record of an object value, or nil.
func (v Value) Slot() Slot {
	if po := v.AsPlainObject(); po != nil {
		return po.slot
	}
	return nil
}

// HasBrand reports whether v is an object carrying an internal slot with the
// given brand.
func (v Value) HasBrand(brand string) bool {
	s := v.Slot()
	return s != nil && s.Brand() == brand
}

// Is implements SameValue.
func (v Value) Is(other Value) bool {
	if v.IsNumber() && other.IsNumber() {
		a, b := v.AsFloat(), other.AsFloat()
		if math.IsNaN(a) && math.IsNaN(b) {
			return true
		}
		if a == 0 && b == 0 {
			return math.Signbit(a) == math.Signbit(b)
		}
		return a == b
	}
	return v.sameNonNumber(other)
}

// SameValueZero is SameValue with +0 and -0 treated as equal.
func (v Value) SameValueZero(other Value) bool {
	if v.IsNumber() && other.IsNumber() {
		a, b := v.AsFloat(), other.AsFloat()
		if math.IsNaN(a) && math.IsNaN(b) {
			return true
		}
		return a == b
	}
	return v.sameNonNumber(other)
}

// StrictlyEquals implements ===.
func (v Value) StrictlyEquals(other Value) bool {
	if v.IsNumber() && other.IsNumber() {
		return v.AsFloat() == other.AsFloat()
	}
	return v.sameNonNumber(other)
}

func (v Value) sameNonNumber(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeUndefined, TypeNull:
		return true
	case TypeBoolean:
		return v.payload == other.payload
	case TypeString:
		return v.AsString() == other.AsString()
	case TypeBigInt:
		return v.AsBigInt().Cmp(other.AsBigInt()) == 0
	default:
		return v.obj == other.obj
	}
}

// ToString renders a value the way ECMAScript ToString does for primitives.
// Objects render as a tag; callers needing user-visible conversion of objects go
// through VM.ToString.
func (v Value) ToString() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		if v.AsBoolean() {
			return "true"
		}
		return "false"
	case TypeIntegerNumber:
		return strconv.FormatInt(int64(v.AsInteger()), 10)
	case TypeFloatNumber:
		return formatNumber(v.AsFloat())
	case TypeString:
		return v.AsString()
	case TypeBigInt:
		return v.AsBigInt().String()
	case TypeSymbol:
		return v.AsSymbol().DescriptiveString()
	case TypeArray:
		arr := v.AsArray()
		parts := make([]string, len(arr.elements))
		for i, el := range arr.elements {
			if !el.IsNullish() {
				parts[i] = el.ToString()
			}
		}
		return strings.Join(parts, ",")
	case TypeNativeFunction:
		return fmt.Sprintf("function %s() { [native code] }", v.AsNativeFunction().Name)
	case TypeRegExp:
		re := v.AsRegExp()
		return "/" + re.source + "/" + re.flags
	default:
		return "[object " + v.className() + "]"
	}
}

func (v Value) className() string {
	switch v.typ {
	case TypeArray:
		return "Array"
	case TypeMap:
		return "Map"
	case TypeSet:
		return "Set"
	case TypePromise:
		return "Promise"
	case TypeArrayBuffer:
		return "ArrayBuffer"
	case TypeTypedArray:
		return v.AsTypedArray().kind.Name()
	case TypeNativeFunction:
		return "Function"
	}
	if s := v.Slot(); s != nil {
		return s.Brand()
	}
	return "Object"
}

// Inspect returns a debug representation used in error messages.
func (v Value) Inspect() string {
	switch v.typ {
	case TypeString:
		return strconv.Quote(v.AsString())
	case TypeBigInt:
		return v.AsBigInt().String() + "n"
	case TypeArray, TypeObject, TypeMap, TypeSet, TypePromise, TypeArrayBuffer, TypeTypedArray, TypeProxy:
		return "[object " + v.className() + "]"
	}
	return v.ToString()
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	return cleanExponentialFormat(s)
}

// cleanExponentialFormat removes leading zeros from exponent to match JS format
// e.g., "1e-07" -> "1e-7", "1e+25" -> "1e+25"
func cleanExponentialFormat(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == 'e' || s[i] == 'E' {
			if i+1 < len(s) && (s[i+1] == '+' || s[i+1] == '-') {
				sign := s[i+1]
				j := i + 2
				for j < len(s) && s[j] == '0' {
					j++
				}
				if j >= len(s) {
					return s[:i+2] + "0"
				}
				return s[:i+1] + string(sign) + s[j:]
			}
			break
		}
	}
	return s
}

// ToFloat converts primitives to a float64 the way ToNumber does. Objects
// convert through their boxed primitive, or to NaN.
func (v Value) ToFloat() float64 {
	switch v.typ {
	case TypeFloatNumber, TypeIntegerNumber:
		return v.AsFloat()
	case TypeUndefined:
		return math.NaN()
	case TypeNull:
		return 0
	case TypeBoolean:
		if v.AsBoolean() {
			return 1
		}
		return 0
	case TypeString:
		return parseStringToNumber(v.AsString())
	}
	if po := v.AsPlainObject(); po != nil {
		if prim, ok := po.slot.(*PrimitiveSlot); ok {
			return prim.Value.ToFloat()
		}
	}
	return math.NaN()
}

func parseStringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	lower := strings.ToLower(s)
	for prefix, base := range map[string]int{"0x": 16, "0o": 8, "0b": 2} {
		if strings.HasPrefix(lower, prefix) {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// IsTruthy implements ToBoolean.
func (v Value) IsTruthy() bool {
	switch v.typ {
	case TypeUndefined, TypeNull:
		return false
	case TypeBoolean:
		return v.AsBoolean()
	case TypeFloatNumber, TypeIntegerNumber:
		f := v.AsFloat()
		return f != 0 && !math.IsNaN(f)
	case TypeString:
		return v.AsString() != ""
	case TypeBigInt:
		return v.AsBigInt().Sign() != 0
	}
	return true
}

// TypeOf returns the result of the typeof operator.
func (v Value) TypeOf() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "object"
	case TypeBoolean:
		return "boolean"
	case TypeFloatNumber, TypeIntegerNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeSymbol:
		return "symbol"
	case TypeBigInt:
		return "bigint"
	}
	if v.IsCallable() {
		return "function"
	}
	return "object"
}
