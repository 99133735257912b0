package builtins

import (
	"math"
	"math/big"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

func TestBigIntToStringVariants(t *testing.T) {
	v := newTestVM(t)
	n, err := v.Call(global(t, v, "BigInt"), vm.Undefined, []vm.Value{num(255)})
	require.NoError(t, err)
	require.True(t, n.IsBigInt())

	assert.Equal(t, "ff", invoke(t, v, n, "toString", num(16)).AsString())
	assert.Equal(t, "255", invoke(t, v, n, "toString").AsString())

	boxed, err := v.ToObject(n)
	require.NoError(t, err)
	assert.Equal(t, "11111111", invoke(t, v, boxed, "toString", num(2)).AsString())

	_, err = v.Invoke(n, "toString", num(1))
	require.Error(t, err)
	assert.True(t, vm.IsKind(err, vm.KindRangeError))

	toString := get(t, v, v.Realm().BigIntPrototype, "toString")
	_, err = v.Call(toString, str("255"), nil)
	requireTypeError(t, err, "BigInt.prototype.toString")

	_, err = v.Construct(global(t, v, "BigInt"), []vm.Value{num(1)}, vm.Undefined)
	requireTypeError(t, err, "not a constructor")

	_, err = v.Call(global(t, v, "BigInt"), vm.Undefined, []vm.Value{vm.NumberValue(1.5)})
	assert.True(t, vm.IsKind(err, vm.KindRangeError))
}

func TestBigIntToLocaleString(t *testing.T) {
	v := newTestVM(t)
	n := vm.NewBigInt(big.NewInt(1234567))
	assert.Equal(t, "1,234,567", invoke(t, v, n, "toLocaleString", str("en-US")).AsString())

	_, err := v.Invoke(n, "toLocaleString", str("not a locale!"))
	assert.True(t, vm.IsKind(err, vm.KindRangeError))
}

func TestBigIntAsIntN(t *testing.T) {
	v := newTestVM(t)
	ctor := global(t, v, "BigInt")
	res := invoke(t, v, ctor, "asIntN", num(8), vm.NewBigInt(big.NewInt(255)))
	assert.Equal(t, "-1", res.AsBigInt().String())
	res = invoke(t, v, ctor, "asUintN", num(8), vm.NewBigInt(big.NewInt(-1)))
	assert.Equal(t, "255", res.AsBigInt().String())
}

func TestBigIntAsNWideBitCounts(t *testing.T) {
	v := newTestVM(t)
	ctor := global(t, v, "BigInt")
	maxIndex := vm.NumberValue(1<<53 - 1)
	five := vm.NewBigInt(big.NewInt(5))
	minusFive := vm.NewBigInt(big.NewInt(-5))

	assert.Equal(t, "5", invoke(t, v, ctor, "asIntN", maxIndex, five).AsBigInt().String())
	assert.Equal(t, "-5", invoke(t, v, ctor, "asIntN", maxIndex, minusFive).AsBigInt().String())
	assert.Equal(t, "5", invoke(t, v, ctor, "asUintN", maxIndex, five).AsBigInt().String())
	assert.Equal(t, "-5", invoke(t, v, ctor, "asIntN", vm.NumberValue(1<<40), minusFive).AsBigInt().String())

	_, err := v.Invoke(ctor, "asUintN", maxIndex, minusFive)
	require.Error(t, err)
	assert.True(t, vm.IsKind(err, vm.KindRangeError), "%v", err)

	res := invoke(t, v, ctor, "asUintN", num(70), minusFive)
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 70), big.NewInt(5))
	assert.Equal(t, want.String(), res.AsBigInt().String())
	assert.Equal(t, "-128", invoke(t, v, ctor, "asIntN", num(8), vm.NewBigInt(big.NewInt(128))).AsBigInt().String())
}

func TestSymbolRegistry(t *testing.T) {
	v := newTestVM(t)
	ctor := global(t, v, "Symbol")
	a := invoke(t, v, ctor, "for", str("app"))
	b := invoke(t, v, ctor, "for", str("app"))
	assert.True(t, a.Is(b))
	assert.Equal(t, "app", invoke(t, v, ctor, "keyFor", a).AsString())

	local, err := v.Call(ctor, vm.Undefined, []vm.Value{str("app")})
	require.NoError(t, err)
	assert.False(t, local.Is(a))
	assert.True(t, invoke(t, v, ctor, "keyFor", local).IsUndefined())

	_, err = v.Invoke(ctor, "keyFor", str("app"))
	requireTypeError(t, err, "is not a symbol")

	_, err = v.Construct(ctor, nil, vm.Undefined)
	requireTypeError(t, err, "not a constructor")

	assert.Equal(t, "app", get(t, v, local, "description").AsString())
}

// closeTracker is an iterable whose iterator counts return calls.
func closeTracker(v *vm.VM, values []vm.Value, returns *int) vm.Value {
	pos := 0
	iter := v.NewPlainObject()
	_ = v.Set(iter, "next", fn(v, func(vm.Value, []vm.Value) (vm.Value, error) {
		if pos >= len(values) {
			return v.CreateIterResultObject(vm.Undefined, true), nil
		}
		pos++
		return v.CreateIterResultObject(values[pos-1], false), nil
	}))
	_ = v.Set(iter, "return", fn(v, func(vm.Value, []vm.Value) (vm.Value, error) {
		*returns++
		return v.CreateIterResultObject(vm.Undefined, true), nil
	}))
	iterable := v.NewPlainObject()
	_ = v.SetProperty(iterable, symKey(vm.SymbolIterator), fn(v, func(vm.Value, []vm.Value) (vm.Value, error) {
		return iter, nil
	}))
	return iterable
}

func TestArrayFromClosesIteratorOnMapperError(t *testing.T) {
	v := newTestVM(t)
	returns := 0
	iterable := closeTracker(v, []vm.Value{num(1), num(2)}, &returns)
	boom := fn(v, func(vm.Value, []vm.Value) (vm.Value, error) {
		return vm.Undefined, vm.ThrowValue(str("boom"))
	})

	_, err := v.Invoke(global(t, v, "Array"), "from", iterable, boom)
	require.Error(t, err)
	thrown, ok := vm.ThrownValue(err)
	require.True(t, ok)
	assert.Equal(t, "boom", thrown.AsString())
	assert.Equal(t, 1, returns)
}

func TestArrayFromArrayLike(t *testing.T) {
	v := newTestVM(t)
	obj := v.NewPlainObject()
	require.NoError(t, v.Set(obj, "length", num(3)))
	require.NoError(t, v.Set(obj, "0", str("a")))
	require.NoError(t, v.Set(obj, "2", str("c")))

	res := invoke(t, v, global(t, v, "Array"), "from", obj)
	require.True(t, res.IsArray())
	assert.Equal(t, "a||c", join(res.AsArray().Elements(), "|"))
}

func TestArrayConstructorLength(t *testing.T) {
	v := newTestVM(t)
	arr := construct(t, v, "Array", num(3))
	assert.Equal(t, 3, arr.AsArray().Length())

	_, err := v.Construct(global(t, v, "Array"), []vm.Value{vm.NumberValue(-1)}, vm.Undefined)
	assert.True(t, vm.IsKind(err, vm.KindRangeError))
}

func TestIteratorHelpersChain(t *testing.T) {
	v := newTestVM(t)
	arr := array(v, num(1), num(2), num(3))
	it := invoke(t, v, arr, "values")
	times10 := fn(v, func(_ vm.Value, args []vm.Value) (vm.Value, error) {
		return vm.NumberValue(args[0].ToFloat() * 10), nil
	})
	over10 := fn(v, func(_ vm.Value, args []vm.Value) (vm.Value, error) {
		return vm.BooleanValue(args[0].ToFloat() > 10), nil
	})
	mapped := invoke(t, v, it, "map", times10)
	tag, err := v.GetProperty(mapped, symKey(vm.SymbolToStringTag))
	require.NoError(t, err)
	assert.Equal(t, "Iterator Helper", tag.AsString())
	res := invoke(t, v, invoke(t, v, mapped, "filter", over10), "toArray")
	assert.Equal(t, "20,30", join(res.AsArray().Elements(), ","))
}

func TestIteratorTakeValidatesLimit(t *testing.T) {
	v := newTestVM(t)
	returns := 0
	iterable := closeTracker(v, []vm.Value{num(1)}, &returns)
	rec, err := iterators.GetIterator(v, iterable, vm.HintSync)
	require.NoError(t, err)
	take := get(t, v, v.Realm().IteratorPrototype, "take")

	_, err = v.Call(take, rec.Iterator, []vm.Value{num(-1)})
	require.Error(t, err)
	assert.True(t, vm.IsKind(err, vm.KindRangeError))
	assert.Equal(t, 1, returns)
}

func TestIteratorFromWrapsForeignIterators(t *testing.T) {
	v := newTestVM(t)
	returns := 0
	iterable := closeTracker(v, []vm.Value{num(1), num(2)}, &returns)
	rec, err := iterators.GetIterator(v, iterable, vm.HintSync)
	require.NoError(t, err)

	wrapped := invoke(t, v, global(t, v, "Iterator"), "from", rec.Iterator)
	assert.False(t, wrapped.Is(rec.Iterator))
	assert.True(t, inheritsFrom(wrapped, v.Realm().IteratorPrototype))

	res := invoke(t, v, wrapped, "return", num(7))
	assert.True(t, get(t, v, res, "done").IsTruthy())
	assert.Equal(t, 1, returns)

	arrIter := invoke(t, v, array(v, num(1)), "values")
	assert.True(t, invoke(t, v, global(t, v, "Iterator"), "from", arrIter).Is(arrIter))
}

func TestIteratorIsAbstract(t *testing.T) {
	v := newTestVM(t)
	_, err := v.Construct(global(t, v, "Iterator"), nil, vm.Undefined)
	requireTypeError(t, err, "Abstract class Iterator")
}

func TestIteratorReduceEmpty(t *testing.T) {
	v := newTestVM(t)
	it := invoke(t, v, array(v), "values")
	sum := fn(v, func(_ vm.Value, args []vm.Value) (vm.Value, error) {
		return vm.NumberValue(args[0].ToFloat() + args[1].ToFloat()), nil
	})
	_, err := v.Invoke(it, "reduce", sum)
	requireTypeError(t, err, "Reduce of empty iterator")

	it = invoke(t, v, array(v, num(1), num(2)), "values")
	assert.Equal(t, 13.0, invoke(t, v, it, "reduce", sum, num(10)).ToFloat())
}

func TestStringMatchAll(t *testing.T) {
	v := newTestVM(t)
	rx := construct(t, v, "RegExp", str(`\d`), str("g"))
	matches := list(t, v, invoke(t, v, str("a1b2c3"), "matchAll", rx))
	var digits []vm.Value
	for _, m := range matches {
		d, err := v.GetProperty(m, vm.NewIndexKey(0))
		require.NoError(t, err)
		digits = append(digits, d)
	}
	assert.Equal(t, "1,2,3", join(digits, ","))
	assert.Equal(t, 0.0, get(t, v, rx, "lastIndex").ToFloat())

	_, err := v.Invoke(str("a1"), "matchAll", construct(t, v, "RegExp", str(`\d`)))
	requireTypeError(t, err, "non-global RegExp")
}

func TestRegExpAccessors(t *testing.T) {
	v := newTestVM(t)
	rx := construct(t, v, "RegExp", str("a+"), str("gi"))
	assert.Equal(t, "gi", get(t, v, rx, "flags").AsString())
	assert.Equal(t, "a+", get(t, v, rx, "source").AsString())
	assert.True(t, get(t, v, rx, "global").IsTruthy())
	assert.False(t, get(t, v, rx, "sticky").IsTruthy())
	assert.True(t, invoke(t, v, rx, "test", str("xAAy")).IsTruthy())

	assert.Equal(t, "(?:)", get(t, v, v.Realm().RegExpPrototype, "source").AsString())

	_, err := v.Construct(global(t, v, "RegExp"), []vm.Value{str("(")}, vm.Undefined)
	require.Error(t, err)
	assert.True(t, vm.IsKind(err, vm.KindSyntaxError))
}

func TestStringNormalizeAndCompare(t *testing.T) {
	v := newTestVM(t)
	composed := invoke(t, v, str("A\u030A"), "normalize", str("NFC"))
	assert.Equal(t, "\u00C5", composed.AsString())
	assert.Equal(t, "A\u030A", invoke(t, v, str("\u00C5"), "normalize", str("NFD")).AsString())
	assert.Equal(t, "\u00C5", invoke(t, v, str("A\u030A"), "normalize").AsString())

	_, err := v.Invoke(str("x"), "normalize", str("NFX"))
	assert.True(t, vm.IsKind(err, vm.KindRangeError))

	assert.Less(t, invoke(t, v, str("a"), "localeCompare", str("b")).ToFloat(), 0.0)
	assert.Equal(t, 0.0, invoke(t, v, str("a"), "localeCompare", str("a")).ToFloat())
}

func TestMapConstructorRejectsNonEntries(t *testing.T) {
	v := newTestVM(t)
	_, err := v.Construct(global(t, v, "Map"), []vm.Value{array(v, num(1))}, vm.Undefined)
	requireTypeError(t, err, "is not an entry object")

	_, err = v.Call(global(t, v, "Map"), vm.Undefined, nil)
	requireTypeError(t, err, "requires 'new'")
}

func TestSetNormalizesNegativeZero(t *testing.T) {
	v := newTestVM(t)
	set := construct(t, v, "Set")
	invoke(t, v, set, "add", vm.NumberValue(math.Copysign(0, -1)))
	assert.True(t, invoke(t, v, set, "has", num(0)).IsTruthy())
	assert.Equal(t, 1.0, get(t, v, set, "size").ToFloat())
}

func TestTypedArrayDetach(t *testing.T) {
	v := newTestVM(t)
	buf := construct(t, v, "ArrayBuffer", num(8))
	ta := construct(t, v, "Uint8Array", buf)
	assert.Equal(t, 8.0, get(t, v, ta, "length").ToFloat())
	assert.False(t, get(t, v, buf, "detached").IsTruthy())

	moved := invoke(t, v, buf, "transfer")
	assert.Equal(t, 8.0, get(t, v, moved, "byteLength").ToFloat())
	assert.True(t, get(t, v, buf, "detached").IsTruthy())
	assert.Equal(t, 0.0, get(t, v, ta, "length").ToFloat())
	assert.Equal(t, 0.0, get(t, v, ta, "byteLength").ToFloat())

	_, err := v.Invoke(ta, "values")
	requireTypeError(t, err, "detached ArrayBuffer")

	_, err = v.Construct(global(t, v, "Uint8Array"), []vm.Value{buf}, vm.Undefined)
	requireTypeError(t, err, "detached ArrayBuffer")
}

func TestTypedArrayConstruction(t *testing.T) {
	v := newTestVM(t)

	_, err := v.Construct(global(t, v, "Int16Array"), []vm.Value{construct(t, v, "ArrayBuffer", num(4)), num(1)}, vm.Undefined)
	assert.True(t, vm.IsKind(err, vm.KindRangeError))

	_, err = v.Call(global(t, v, "Uint8Array"), vm.Undefined, []vm.Value{num(1)})
	requireTypeError(t, err, "requires 'new'")

	_, err = v.Construct(global(t, v, "BigInt64Array"), []vm.Value{construct(t, v, "Uint8Array", num(2))}, vm.Undefined)
	requireTypeError(t, err, "Cannot mix BigInt")

	view := construct(t, v, "Int16Array", construct(t, v, "ArrayBuffer", num(8)), num(2), num(2))
	assert.Equal(t, 2.0, get(t, v, view, "byteOffset").ToFloat())
	assert.Equal(t, 4.0, get(t, v, view, "byteLength").ToFloat())

	copied := construct(t, v, "Float64Array", construct(t, v, "Int8Array", array(v, num(-1), num(2))))
	assert.Equal(t, "-1,2", join(list(t, v, copied), ","))
}

func TestTypedArrayConstructorShape(t *testing.T) {
	v := newTestVM(t)
	abstract, ok := v.Realm().Intrinsic("%TypedArray%")
	require.True(t, ok)
	_, err := v.Construct(abstract, nil, vm.Undefined)
	requireTypeError(t, err, "Abstract class TypedArray")

	for _, kind := range vm.TypedArrayKinds {
		ctor := global(t, v, kind.Name())
		assert.True(t, ctor.AsPlainObject().GetPrototype().Is(abstract), kind.Name())
		assert.Equal(t, float64(kind.BytesPerElement()), get(t, v, ctor, "BYTES_PER_ELEMENT").ToFloat())
		proto := get(t, v, ctor, "prototype")
		assert.Equal(t, float64(kind.BytesPerElement()), get(t, v, proto, "BYTES_PER_ELEMENT").ToFloat())
		ta := construct(t, v, kind.Name(), num(1))
		tag, err := v.GetProperty(ta, symKey(vm.SymbolToStringTag))
		require.NoError(t, err)
		assert.Equal(t, kind.Name(), tag.AsString())
	}
	tag, err := v.Call(getterOf(t, v, v.Realm().TypedArrayPrototype, symKey(vm.SymbolToStringTag)), v.NewPlainObject(), nil)
	require.NoError(t, err)
	assert.True(t, tag.IsUndefined())
}

func getterOf(t *testing.T, v *vm.VM, obj vm.Value, key vm.PropertyKey) vm.Value {
	t.Helper()
	field, ok := obj.AsPlainObject().GetOwnField(key)
	require.True(t, ok)
	g, _, ok := field.Accessor()
	require.True(t, ok)
	return g
}

func TestArrayBufferSlice(t *testing.T) {
	v := newTestVM(t)
	ta := construct(t, v, "Uint8Array", array(v, num(1), num(2), num(3), num(4)))
	buf := get(t, v, ta, "buffer")
	part := invoke(t, v, buf, "slice", num(1), num(-1))
	assert.Equal(t, "2,3", join(list(t, v, construct(t, v, "Uint8Array", part)), ","))
	assert.True(t, invoke(t, v, global(t, v, "ArrayBuffer"), "isView", ta).IsTruthy())
	assert.False(t, invoke(t, v, global(t, v, "ArrayBuffer"), "isView", buf).IsTruthy())
}

func TestProxyRevocable(t *testing.T) {
	v := newTestVM(t)
	ctor := global(t, v, "Proxy")
	target := v.NewPlainObject()
	res := invoke(t, v, ctor, "revocable", target, v.NewPlainObject())
	proxy := get(t, v, res, "proxy")
	revoke := get(t, v, res, "revoke")
	require.True(t, proxy.IsProxy())
	assert.False(t, proxy.AsProxy().IsRevoked())
	assert.True(t, proxy.AsProxy().Target().Is(target))

	_, err := v.Call(revoke, vm.Undefined, nil)
	require.NoError(t, err)
	assert.True(t, proxy.AsProxy().IsRevoked())
	assert.True(t, proxy.AsProxy().Target().Is(target))
	_, err = v.Call(revoke, vm.Undefined, nil)
	require.NoError(t, err)

	_, err = v.Construct(ctor, []vm.Value{num(1), v.NewPlainObject()}, vm.Undefined)
	requireTypeError(t, err, "non-object as target or handler")
	_, err = v.Call(ctor, vm.Undefined, []vm.Value{v.NewPlainObject(), v.NewPlainObject()})
	requireTypeError(t, err, "requires 'new'")
	assert.True(t, get(t, v, ctor, "prototype").IsUndefined())
}

func TestWeakRefDeref(t *testing.T) {
	v := newTestVM(t)
	target := v.NewPlainObject()
	ref := construct(t, v, "WeakRef", target)
	assert.True(t, invoke(t, v, ref, "deref").Is(target))
	runtime.KeepAlive(target)

	_, err := v.Construct(global(t, v, "WeakRef"), []vm.Value{num(1)}, vm.Undefined)
	requireTypeError(t, err, "invalid target")
	_, err = v.Construct(global(t, v, "WeakRef"), []vm.Value{invoke(t, v, global(t, v, "Symbol"), "for", str("k"))}, vm.Undefined)
	requireTypeError(t, err, "invalid target")
}

func TestFinalizationRegistryCleanupSome(t *testing.T) {
	v := newTestVM(t, "cleanup-some")
	noop := fn(v, func(vm.Value, []vm.Value) (vm.Value, error) { return vm.Undefined, nil })
	registry := construct(t, v, "FinalizationRegistry", noop)

	target, other, token := v.NewPlainObject(), v.NewPlainObject(), v.NewPlainObject()
	invoke(t, v, registry, "register", target, str("held"))
	invoke(t, v, registry, "register", other, str("kept"), token)
	assert.True(t, invoke(t, v, registry, "unregister", token).IsTruthy())
	assert.False(t, invoke(t, v, registry, "unregister", token).IsTruthy())

	_, err := v.Invoke(registry, "register", target, target)
	requireTypeError(t, err, "must not be same")

	// Nothing collected: the callback is not run.
	calls := 0
	var seen []vm.Value
	var cleanupIter vm.Value
	cb := fn(v, func(_ vm.Value, args []vm.Value) (vm.Value, error) {
		calls++
		cleanupIter = args[0]
		seen = list(t, v, args[0])
		return vm.Undefined, nil
	})
	invoke(t, v, registry, "cleanupSome", cb)
	assert.Equal(t, 0, calls)

	slot := registry.Slot().(*finalizationRegistrySlot)
	require.Len(t, slot.cells, 1)
	slot.cells[0].target = vm.WeakRef{}

	invoke(t, v, registry, "cleanupSome", cb)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "held", join(seen, ","))
	assert.Empty(t, slot.cells)

	res := invoke(t, v, cleanupIter, "next")
	assert.True(t, get(t, v, res, "done").IsTruthy())
	runtime.KeepAlive(target)
	runtime.KeepAlive(other)
}

func TestAsyncFromSyncIterator(t *testing.T) {
	v := newTestVM(t)
	arr := array(v, num(1), v.NewRejectedPromise(str("bad")))
	rec, err := iterators.GetIterator(v, arr, vm.HintSync)
	require.NoError(t, err)
	ai := CreateAsyncFromSyncIterator(v, rec)

	p := invoke(t, v, ai, "next")
	require.Equal(t, vm.PromiseFulfilled, p.AsPromise().State())
	res := p.AsPromise().Result()
	assert.Equal(t, 1.0, get(t, v, res, "value").ToFloat())
	assert.False(t, get(t, v, res, "done").IsTruthy())

	p = invoke(t, v, ai, "next")
	require.Equal(t, vm.PromiseRejected, p.AsPromise().State())
	assert.Equal(t, "bad", p.AsPromise().Result().AsString())

	p = invoke(t, v, ai, "throw", str("x"))
	require.Equal(t, vm.PromiseRejected, p.AsPromise().State())
	assert.Contains(t, get(t, v, p.AsPromise().Result(), "message").AsString(), "'throw' method")

	p = invoke(t, v, ai, "return", num(5))
	require.Equal(t, vm.PromiseFulfilled, p.AsPromise().State())
	assert.True(t, get(t, v, p.AsPromise().Result(), "done").IsTruthy())

	next := get(t, v, ai, "next")
	p, err = v.Call(next, v.NewPlainObject(), nil)
	require.NoError(t, err)
	assert.Equal(t, vm.PromiseRejected, p.AsPromise().State())

	self, err := v.Call(getAsyncIteratorMethod(t, v), ai, nil)
	require.NoError(t, err)
	assert.True(t, self.Is(ai))
}

func TestAsyncFromSyncDelegatesToInnerMethods(t *testing.T) {
	v := newTestVM(t)
	var closed int
	var thrown vm.Value
	inner := v.NewPlainObject()
	require.NoError(t, v.Set(inner, "next", fn(v, func(vm.Value, []vm.Value) (vm.Value, error) {
		return v.CreateIterResultObject(num(1), false), nil
	})))
	require.NoError(t, v.Set(inner, "return", fn(v, func(_ vm.Value, args []vm.Value) (vm.Value, error) {
		closed++
		return v.CreateIterResultObject(str("closed"), true), nil
	})))
	require.NoError(t, v.Set(inner, "throw", fn(v, func(_ vm.Value, args []vm.Value) (vm.Value, error) {
		thrown = args[0]
		return v.CreateIterResultObject(v.NewRejectedPromise(str("bad")), false), nil
	})))
	rec, err := iterators.GetIteratorDirect(v, inner)
	require.NoError(t, err)
	ai := CreateAsyncFromSyncIterator(v, rec)

	p := invoke(t, v, ai, "return", num(5))
	require.Equal(t, vm.PromiseFulfilled, p.AsPromise().State())
	assert.Equal(t, "closed", get(t, v, p.AsPromise().Result(), "value").AsString())
	assert.Equal(t, 1, closed)

	p = invoke(t, v, ai, "throw", str("x"))
	require.Equal(t, vm.PromiseRejected, p.AsPromise().State())
	assert.Equal(t, "bad", p.AsPromise().Result().AsString())
	assert.Equal(t, "x", thrown.AsString())
	assert.Equal(t, 2, closed, "a rejected value from throw closes the sync iterator")

	require.NoError(t, v.Set(inner, "return", fn(v, func(vm.Value, []vm.Value) (vm.Value, error) {
		return num(1), nil
	})))
	p = invoke(t, v, ai, "return")
	require.Equal(t, vm.PromiseRejected, p.AsPromise().State())
	assert.Contains(t, get(t, v, p.AsPromise().Result(), "message").AsString(), "is not an object")
}

func getAsyncIteratorMethod(t *testing.T, v *vm.VM) vm.Value {
	t.Helper()
	m, err := v.GetProperty(v.Realm().AsyncIteratorPrototype, symKey(vm.SymbolAsyncIterator))
	require.NoError(t, err)
	return m
}

func TestGetAsyncIteratorFallsBackToSync(t *testing.T) {
	v := newTestVM(t)
	rec, err := GetAsyncIterator(v, array(v, num(1)))
	require.NoError(t, err)
	assert.True(t, rec.Iterator.HasBrand(iterators.AsyncFromSyncBrand))

	_, err = GetAsyncIterator(v, num(1))
	requireTypeError(t, err, "is not async iterable")
}

func TestAsyncContextVariableAndSnapshot(t *testing.T) {
	v := newTestVM(t, asyncContextFeature)
	ns := global(t, v, "AsyncContext")
	opts := v.NewPlainObject()
	require.NoError(t, v.Set(opts, "name", str("request")))
	require.NoError(t, v.Set(opts, "defaultValue", str("none")))
	variable, err := v.Construct(get(t, v, ns, "Variable"), []vm.Value{opts}, vm.Undefined)
	require.NoError(t, err)
	assert.Equal(t, "request", get(t, v, variable, "name").AsString())
	assert.Equal(t, "none", invoke(t, v, variable, "get").AsString())

	snapshotCtor := get(t, v, ns, "Snapshot")
	read := fn(v, func(vm.Value, []vm.Value) (vm.Value, error) {
		return v.Invoke(variable, "get")
	})
	var snapshot, wrapped vm.Value
	inside := fn(v, func(_ vm.Value, args []vm.Value) (vm.Value, error) {
		var err error
		if snapshot, err = v.Construct(snapshotCtor, nil, vm.Undefined); err != nil {
			return vm.Undefined, err
		}
		if wrapped, err = v.Invoke(snapshotCtor, "wrap", read); err != nil {
			return vm.Undefined, err
		}
		return v.Invoke(variable, "get")
	})
	res := invoke(t, v, variable, "run", str("r1"), inside)
	assert.Equal(t, "r1", res.AsString())
	assert.Equal(t, "none", invoke(t, v, variable, "get").AsString())

	assert.Equal(t, "r1", invoke(t, v, snapshot, "run", read).AsString())
	res, err = v.Call(wrapped, vm.Undefined, nil)
	require.NoError(t, err)
	assert.Equal(t, "r1", res.AsString())

	failing := fn(v, func(vm.Value, []vm.Value) (vm.Value, error) {
		return vm.Undefined, vm.ThrowValue(str("boom"))
	})
	_, err = v.Invoke(variable, "run", str("r2"), failing)
	require.Error(t, err)
	assert.Equal(t, "none", invoke(t, v, variable, "get").AsString())

	_, err = v.Call(get(t, v, get(t, v, get(t, v, ns, "Variable"), "prototype"), "get"), v.NewPlainObject(), nil)
	requireTypeError(t, err, "AsyncContext.Variable.prototype.get")
}
