package vm

import (
	"math/big"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVM() *VM {
	return NewVM(RealmOptions{})
}

func TestGetPropertyRunsGetterWithReceiver(t *testing.T) {
	vm := newTestVM()
	proto := vm.NewPlainObject()
	var seen Value
	getter := vm.NewFunction(0, false, "get x", func(this Value, _ []Value) (Value, error) {
		seen = this
		return IntegerValue(5), nil
	})
	f := false
	proto.AsPlainObject().DefineAccessorPropertyByKey(NewStringKey("x"), getter, Undefined, &f, &f)
	obj := NewObject(proto)

	v, err := vm.Get(obj, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(5), v.AsInteger())
	assert.True(t, seen.Is(obj))
}

func TestSetPropertyReadOnlyIsTypeError(t *testing.T) {
	vm := newTestVM()
	obj := vm.NewPlainObject()
	f := false
	obj.AsPlainObject().DefineOwnProperty("x", IntegerValue(1), &f, &f, &f)
	err := vm.Set(obj, "x", IntegerValue(2))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTypeError))
}

func TestArrayLengthAndIndex(t *testing.T) {
	vm := newTestVM()
	arr := vm.NewArrayFrom([]Value{NewString("a"), NewString("b")})
	n, err := vm.LengthOfArrayLike(arr)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, vm.Set(arr, "3", True))
	n, _ = vm.LengthOfArrayLike(arr)
	assert.Equal(t, 4, n)
	v, _ := vm.Get(arr, "2")
	assert.True(t, v.IsUndefined())
}

func TestStringOwnProperties(t *testing.T) {
	vm := newTestVM()
	s := NewString("a😀")
	l, err := vm.Get(s, "length")
	require.NoError(t, err)
	assert.Equal(t, int32(3), l.AsInteger())
	c, _ := vm.Get(s, "0")
	assert.Equal(t, "a", c.AsString())
}

func TestStringIndexSplitsSurrogatePairs(t *testing.T) {
	vm := newTestVM()
	s := NewString("😀")
	hi, err := vm.Get(s, "0")
	require.NoError(t, err)
	lo, err := vm.Get(s, "1")
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xD83D}, codeUnits(hi.AsString()))
	assert.Equal(t, []uint16{0xDE00}, codeUnits(lo.AsString()))
	assert.NotEqual(t, "\uFFFD", hi.AsString())
	assert.Equal(t, 1, UTF16Length(hi.AsString()))

	lone := NewString("x" + hi.AsString())
	l, err := vm.Get(lone, "length")
	require.NoError(t, err)
	assert.Equal(t, int32(2), l.AsInteger())
	c, err := vm.Get(lone, "1")
	require.NoError(t, err)
	assert.Equal(t, hi.AsString(), c.AsString())
	u, _ := vm.Get(lone, "2")
	assert.True(t, u.IsUndefined())
}

func TestCallAndConstructErrors(t *testing.T) {
	vm := newTestVM()
	fn := vm.NewFunction(0, false, "f", func(Value, []Value) (Value, error) { return True, nil })
	_, err := vm.Construct(fn, nil, Undefined)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "f is not a constructor")

	_, err = vm.Call(IntegerValue(1), Undefined, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTypeError))

	ctorOnly := vm.NewConstructor(0, "C", nil, func([]Value, Value) (Value, error) { return vm.NewPlainObject(), nil })
	_, err = vm.Call(ctorOnly, Undefined, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Constructor C requires 'new'")
}

func TestProxyForwardsAndRevokes(t *testing.T) {
	vm := newTestVM()
	target := vm.NewPlainObject()
	target.AsPlainObject().SetOwn("x", IntegerValue(1))
	handler := vm.NewPlainObject()
	handler.AsPlainObject().SetOwn("get", vm.NewFunction(3, false, "get", func(_ Value, args []Value) (Value, error) {
		return NewString("trapped:" + args[1].AsString()), nil
	}))
	p := NewProxy(target, handler)

	v, err := vm.Get(p, "x")
	require.NoError(t, err)
	assert.Equal(t, "trapped:x", v.AsString())

	p.AsProxy().Revoke()
	_, err = vm.Get(p, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoked")
}

func TestToBigInt(t *testing.T) {
	vm := newTestVM()
	b, err := vm.ToBigInt(NewString("0x10"))
	require.NoError(t, err)
	assert.Equal(t, int64(16), b.Int64())

	_, err = vm.ToBigInt(NewString("1.5"))
	assert.True(t, IsKind(err, KindSyntaxError))

	_, err = vm.ToBigInt(IntegerValue(1))
	assert.True(t, IsKind(err, KindTypeError))

	b, err = vm.ToBigInt(True)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Cmp(big.NewInt(1)))
}

func TestToIndexRange(t *testing.T) {
	vm := newTestVM()
	_, err := vm.ToIndex(IntegerValue(-1))
	assert.True(t, IsKind(err, KindRangeError))
	n, err := vm.ToIndex(NumberValue(3.7))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTypedArrayElements(t *testing.T) {
	buf := NewArrayBuffer(8)
	ta := NewTypedArray(TypedArrayUint8Clamped, buf, 0, 8).AsTypedArray()
	ta.SetElement(0, NumberValue(300))
	ta.SetElement(1, NumberValue(1.5))
	assert.Equal(t, int32(255), ta.GetElement(0).AsInteger())
	assert.Equal(t, int32(2), ta.GetElement(1).AsInteger())

	buf.AsArrayBuffer().Detach()
	assert.True(t, ta.IsOutOfBounds())
	assert.Equal(t, 0, ta.Length())
	assert.True(t, ta.GetElement(0).IsUndefined())
}

func TestAsyncContextMappingIsImmutable(t *testing.T) {
	vm := newTestVM()
	variable := vm.NewPlainObject()
	base := vm.AsyncContext()
	next := base.With(variable, IntegerValue(1))
	_, ok := base.Get(variable)
	assert.False(t, ok)
	v, ok := next.Get(variable)
	require.True(t, ok)
	assert.Equal(t, int32(1), v.AsInteger())

	prev := vm.SwapAsyncContext(next)
	assert.Same(t, base, prev)
	assert.Same(t, next, vm.AsyncContext())
}

func makeUnreachable(vm *VM) WeakRef {
	return MakeWeakRef(vm.NewPlainObject())
}

func TestWeakRefObservesCollection(t *testing.T) {
	vm := newTestVM()
	live := vm.NewPlainObject()
	w := MakeWeakRef(live)
	dead := makeUnreachable(vm)

	runtime.GC()
	runtime.GC()

	assert.True(t, w.SameTarget(live))
	_, ok := dead.Deref()
	assert.False(t, ok)
	runtime.KeepAlive(live)
}

func TestRegExpMatchAt(t *testing.T) {
	re, err := NewRegExp(`a(b)?`, "g")
	require.NoError(t, err)
	m, err := re.AsRegExp().MatchAt([]rune("xxaab"), 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Index)
	assert.True(t, m.Groups[1].IsUndefined())

	_, err = NewRegExp(`a`, "gg")
	assert.Error(t, err)
}
