package vm

import (
	"encoding/binary"
	"math"
	"math/big"
	"unsafe"
)

// TypedArrayKind represents the different typed array types
type TypedArrayKind uint8

const (
	TypedArrayInt8 TypedArrayKind = iota
	TypedArrayUint8
	TypedArrayUint8Clamped
	TypedArrayInt16
	TypedArrayUint16
	TypedArrayInt32
	TypedArrayUint32
	TypedArrayFloat32
	TypedArrayFloat64
	TypedArrayBigInt64
	TypedArrayBigUint64
)

// TypedArrayKinds lists every concrete kind in constructor order.
var TypedArrayKinds = []TypedArrayKind{
	TypedArrayInt8, TypedArrayUint8, TypedArrayUint8Clamped,
	TypedArrayInt16, TypedArrayUint16, TypedArrayInt32, TypedArrayUint32,
	TypedArrayFloat32, TypedArrayFloat64, TypedArrayBigInt64, TypedArrayBigUint64,
}

// BytesPerElement returns the element size for each typed array kind
func (kind TypedArrayKind) BytesPerElement() int {
	switch kind {
	case TypedArrayInt8, TypedArrayUint8, TypedArrayUint8Clamped:
		return 1
	case TypedArrayInt16, TypedArrayUint16:
		return 2
	case TypedArrayInt32, TypedArrayUint32, TypedArrayFloat32:
		return 4
	case TypedArrayFloat64, TypedArrayBigInt64, TypedArrayBigUint64:
		return 8
	default:
		return 0
	}
}

// IsBigInt reports whether elements of this kind are BigInts.
func (kind TypedArrayKind) IsBigInt() bool {
	return kind == TypedArrayBigInt64 || kind == TypedArrayBigUint64
}

// Name returns the ECMAScript constructor name for this TypedArray kind
func (kind TypedArrayKind) Name() string {
	switch kind {
	case TypedArrayInt8:
		return "Int8Array"
	case TypedArrayUint8:
		return "Uint8Array"
	case TypedArrayUint8Clamped:
		return "Uint8ClampedArray"
	case TypedArrayInt16:
		return "Int16Array"
	case TypedArrayUint16:
		return "Uint16Array"
	case TypedArrayInt32:
		return "Int32Array"
	case TypedArrayUint32:
		return "Uint32Array"
	case TypedArrayFloat32:
		return "Float32Array"
	case TypedArrayFloat64:
		return "Float64Array"
	case TypedArrayBigInt64:
		return "BigInt64Array"
	case TypedArrayBigUint64:
		return "BigUint64Array"
	default:
		return "TypedArray"
	}
}

// ArrayBufferObject represents a raw binary data buffer
type ArrayBufferObject struct {
	PlainObject
	data     []byte
	detached bool
}

func NewArrayBuffer(size int) Value {
	ab := &ArrayBufferObject{data: make([]byte, size)}
	ab.init(Null)
	return Value{typ: TypeArrayBuffer, obj: unsafe.Pointer(ab)}
}

// Data returns the underlying byte slice (nil once detached).
func (ab *ArrayBufferObject) Data() []byte {
	return ab.data
}

func (ab *ArrayBufferObject) ByteLength() int {
	return len(ab.data)
}

func (ab *ArrayBufferObject) IsDetached() bool {
	return ab.detached
}

// Detach releases the buffer's data; every view over it becomes out of bounds.
func (ab *ArrayBufferObject) Detach() {
	ab.detached = true
	ab.data = nil
}

type TypedArrayObject struct {
	PlainObject
	kind       TypedArrayKind
	buffer     *ArrayBufferObject
	bufferVal  Value
	byteOffset int
	length     int
}

// NewTypedArray creates a view of kind over buffer. The caller validates
// offset and length against the buffer.
func NewTypedArray(kind TypedArrayKind, buffer Value, byteOffset, length int) Value {
	ta := &TypedArrayObject{
		kind:       kind,
		buffer:     buffer.AsArrayBuffer(),
		bufferVal:  buffer,
		byteOffset: byteOffset,
		length:     length,
	}
	ta.init(Null)
	return Value{typ: TypeTypedArray, obj: unsafe.Pointer(ta)}
}

func (ta *TypedArrayObject) Kind() TypedArrayKind { return ta.kind }
func (ta *TypedArrayObject) Buffer() Value        { return ta.bufferVal }
func (ta *TypedArrayObject) ByteOffset() int      { return ta.byteOffset }

// IsDetached reports whether the backing buffer is detached.
func (ta *TypedArrayObject) IsDetached() bool {
	return ta.buffer.IsDetached()
}

// IsOutOfBounds implements IsTypedArrayOutOfBounds for fixed-length views.
func (ta *TypedArrayObject) IsOutOfBounds() bool {
	if ta.buffer.IsDetached() {
		return true
	}
	end := ta.byteOffset + ta.length*ta.kind.BytesPerElement()
	return ta.byteOffset > ta.buffer.ByteLength() || end > ta.buffer.ByteLength()
}

// Length returns the element count, 0 when out of bounds.
func (ta *TypedArrayObject) Length() int {
	if ta.IsOutOfBounds() {
		return 0
	}
	return ta.length
}

func (ta *TypedArrayObject) ByteLength() int {
	return ta.Length() * ta.kind.BytesPerElement()
}

// GetElement reads the element at index, undefined when out of range.
func (ta *TypedArrayObject) GetElement(index int) Value {
	if index < 0 || index >= ta.Length() {
		return Undefined
	}
	offset := ta.byteOffset + index*ta.kind.BytesPerElement()
	data := ta.buffer.data[offset:]

	switch ta.kind {
	case TypedArrayInt8:
		return IntegerValue(int32(int8(data[0])))
	case TypedArrayUint8, TypedArrayUint8Clamped:
		return IntegerValue(int32(data[0]))
	case TypedArrayInt16:
		return IntegerValue(int32(int16(binary.LittleEndian.Uint16(data))))
	case TypedArrayUint16:
		return IntegerValue(int32(binary.LittleEndian.Uint16(data)))
	case TypedArrayInt32:
		return IntegerValue(int32(binary.LittleEndian.Uint32(data)))
	case TypedArrayUint32:
		return NumberValue(float64(binary.LittleEndian.Uint32(data)))
	case TypedArrayFloat32:
		return NumberValue(float64(math.Float32frombits(binary.LittleEndian.Uint32(data))))
	case TypedArrayFloat64:
		return NumberValue(math.Float64frombits(binary.LittleEndian.Uint64(data)))
	case TypedArrayBigInt64:
		return NewBigInt(big.NewInt(int64(binary.LittleEndian.Uint64(data))))
	case TypedArrayBigUint64:
		return NewBigInt(new(big.Int).SetUint64(binary.LittleEndian.Uint64(data)))
	default:
		return Undefined
	}
}

var mask64 = new(big.Int).SetUint64(math.MaxUint64)

// SetElement stores an already-converted element value (a number for numeric
// kinds, a BigInt for BigInt kinds). Out-of-range writes are ignored.
func (ta *TypedArrayObject) SetElement(index int, value Value) {
	if index < 0 || index >= ta.Length() {
		return
	}
	offset := ta.byteOffset + index*ta.kind.BytesPerElement()
	data := ta.buffer.data[offset:]

	if ta.kind.IsBigInt() {
		u := new(big.Int).And(value.AsBigInt(), mask64).Uint64()
		binary.LittleEndian.PutUint64(data, u)
		return
	}

	num := value.ToFloat()
	switch ta.kind {
	case TypedArrayInt8, TypedArrayUint8:
		data[0] = byte(toUint32Modular(num))
	case TypedArrayUint8Clamped:
		data[0] = clampUint8(num)
	case TypedArrayInt16, TypedArrayUint16:
		binary.LittleEndian.PutUint16(data, uint16(toUint32Modular(num)))
	case TypedArrayInt32, TypedArrayUint32:
		binary.LittleEndian.PutUint32(data, toUint32Modular(num))
	case TypedArrayFloat32:
		binary.LittleEndian.PutUint32(data, math.Float32bits(float32(num)))
	case TypedArrayFloat64:
		binary.LittleEndian.PutUint64(data, math.Float64bits(num))
	}
}

// toUint32Modular implements the modulo-2^32 step shared by ToInt32/ToUint32.
func toUint32Modular(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	f = math.Mod(f, 4294967296)
	if f < 0 {
		f += 4294967296
	}
	return uint32(f)
}

func clampUint8(f float64) byte {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return byte(math.RoundToEven(f))
}
