package intrinsics

import (
	"errors"
	"math/big"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

func constant(v vm.Value) Impl {
	return func(*Frame) (vm.Value, error) { return v, nil }
}

func TestRegisterDuplicateFunctionPanics(t *testing.T) {
	c := NewContainer("Test")
	c.Register(Method("next", 0).Generic(constant(vm.True)).Entry())

	assert.PanicsWithError(t, "intrinsics: Test.next: duplicate function entry", func() {
		c.Register(Method("next", 0).Generic(constant(vm.False)).Entry())
	})
	e, ok := c.LookupFunction(vm.NewStringKey("next"))
	require.True(t, ok)
	v, err := e.Call[0].Impl(nil)
	require.NoError(t, err)
	assert.True(t, v.Is(vm.True), "first registration must not be overwritten")
}

func TestRegisterAccessorSides(t *testing.T) {
	c := NewContainer("Test")
	c.Register(Getter("size").Generic(constant(vm.IntegerValue(1))).Entry())
	c.Register(Setter("size").Generic(constant(vm.Undefined)).Entry())

	assert.Panics(t, func() {
		c.Register(Getter("size").Generic(constant(vm.IntegerValue(2))).Entry())
	})
	assert.Panics(t, func() {
		c.Register(Setter("size").Generic(constant(vm.Undefined)).Entry())
	})
	assert.Panics(t, func() {
		c.Register(Method("size", 0).Generic(constant(vm.Undefined)).Entry())
	})

	g, s := c.LookupAccessor(vm.NewStringKey("size"))
	assert.NotNil(t, g)
	assert.NotNil(t, s)
	g, s = c.LookupAccessor(vm.NewStringKey("missing"))
	assert.Nil(t, g)
	assert.Nil(t, s)
}

func TestRegisterRequiresTrailingFallback(t *testing.T) {
	c := NewContainer("Test")
	assert.Panics(t, func() {
		c.Register(Method("f", 0).When("bigint", ThisPrimitiveBigInt, constant(vm.True)).Entry())
	})
	assert.Panics(t, func() {
		b := Method("g", 0).Fallback(constant(vm.True)).When("late", Any, constant(vm.False))
		c.Register(b.Entry())
	})
}

func TestSymbolKeysAreDistinct(t *testing.T) {
	c := NewContainer("Test")
	c.Register(SymbolMethod(vm.SymbolIterator, 0).Generic(constant(vm.True)).Entry())
	c.Register(SymbolMethod(vm.NewSymbol("Symbol.iterator"), 0).Generic(constant(vm.True)).Entry())
	assert.Equal(t, 2, c.Len())
}

func TestResolveWithoutFallbackIsInternalError(t *testing.T) {
	e := &Entry{Name: "broken", Call: []Variant{{Name: "bigint", Guard: ThisPrimitiveBigInt, Impl: constant(vm.True)}}}
	_, err := Resolve(e, Call, vm.IntegerValue(1), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoVariant))
	_, isException := vm.AsException(err)
	assert.False(t, isException)
}

func bigIntToStringEntry() *Entry {
	format := func(b *big.Int) (vm.Value, error) { return vm.NewString(b.String()), nil }
	return Method("toString", 0).
		When("primitive", ThisPrimitiveBigInt, func(f *Frame) (vm.Value, error) {
			return format(f.This.AsBigInt())
		}).
		When("boxed", ThisBigIntObject, func(f *Frame) (vm.Value, error) {
			return format(f.This.Slot().(*vm.PrimitiveSlot).Value.AsBigInt())
		}).
		Incompatible().
		Entry()
}

func TestResolverTotality(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	e := bigIntToStringEntry()
	c := NewContainer("BigInt.prototype")
	c.Register(e)

	boxed, err := v.ToObject(vm.NewBigInt(big.NewInt(7)))
	require.NoError(t, err)
	receivers := []vm.Value{
		vm.Undefined, vm.Null, vm.True, vm.IntegerValue(1), vm.NumberValue(1.5),
		vm.NewString("s"), vm.NewSymbol("x"), vm.NewBigInt(big.NewInt(7)), boxed,
		v.NewPlainObject(), v.NewArrayFrom(nil), vm.NewMap(), vm.NewSet(),
		vm.NewArrayBuffer(4), vm.NewTypedArray(vm.TypedArrayInt8, vm.NewArrayBuffer(4), 0, 4),
	}
	for _, r := range receivers {
		matched := 0
		for i := range e.Call {
			if e.Call[i].Guard(r, nil) && !e.Call[i].Fallback {
				matched++
			}
		}
		assert.LessOrEqual(t, matched, 1, "guards overlap for %s", r.Inspect())
		variant, err := Resolve(e, Call, r, nil)
		require.NoError(t, err)
		require.NotNil(t, variant)
	}
}

func TestBigIntVariantsAgree(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	e := bigIntToStringEntry()
	NewContainer("BigInt.prototype").Register(e)
	d := NewDispatcher(v)

	prim := vm.NewBigInt(big.NewInt(-42))
	boxed, err := v.ToObject(prim)
	require.NoError(t, err)

	pv, err := Resolve(e, Call, prim, nil)
	require.NoError(t, err)
	bv, err := Resolve(e, Call, boxed, nil)
	require.NoError(t, err)
	assert.Equal(t, "primitive", pv.Name)
	assert.Equal(t, "boxed", bv.Name)

	a, err := d.Invoke(e, Call, prim, nil, vm.Undefined)
	require.NoError(t, err)
	b, err := d.Invoke(e, Call, boxed, nil, vm.Undefined)
	require.NoError(t, err)
	assert.Equal(t, "-42", a.AsString())
	assert.Equal(t, a.AsString(), b.AsString())

	_, err = d.Invoke(e, Call, vm.IntegerValue(1), nil, vm.Undefined)
	require.Error(t, err)
	assert.True(t, vm.IsKind(err, vm.KindTypeError))
	assert.Contains(t, err.Error(), "BigInt.prototype.toString")
}

func TestConstructOnNonConstructorFailsBeforeDispatch(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	d := NewDispatcher(v)
	ran := false
	e := Method("values", 0).Generic(func(*Frame) (vm.Value, error) {
		ran = true
		return vm.Undefined, nil
	}).Entry()
	NewContainer("Array.prototype").Register(e)

	for _, kind := range []InvocationKind{Construct, ConstructWithNewTarget} {
		_, err := d.Invoke(e, kind, vm.Undefined, nil, vm.Undefined)
		require.Error(t, err)
		assert.True(t, vm.IsKind(err, vm.KindTypeError))
		assert.Contains(t, err.Error(), "is not a constructor")
	}
	assert.False(t, ran)
}

func TestCallOnConstructOnlyEntry(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	d := NewDispatcher(v)
	e := Constructor("Int8Array", 3).ConstructWith(constant(vm.True)).Entry()
	NewContainer("global").Register(e)

	_, err := d.Invoke(e, Call, vm.Undefined, nil, vm.Undefined)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Constructor Int8Array requires 'new'")

	fn := d.FunctionFor(e)
	res, err := v.Construct(fn, nil, vm.Undefined)
	require.NoError(t, err)
	assert.True(t, res.Is(vm.True))
}

func TestFrameBinding(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	d := NewDispatcher(v)
	var got *Frame
	capture := func(f *Frame) (vm.Value, error) {
		got = f
		return vm.Undefined, nil
	}
	fixed := Method("fixed", 2).Generic(capture).Entry()
	variadic := Method("variadic", 1).Variadic().Generic(capture).Entry()
	c := NewContainer("Test")
	c.Register(fixed)
	c.Register(variadic)

	_, err := d.Invoke(fixed, Call, vm.True, []vm.Value{vm.IntegerValue(1)}, vm.Undefined)
	require.NoError(t, err)
	require.Len(t, got.Args, 2)
	assert.True(t, got.Args[1].IsUndefined())
	assert.Empty(t, got.Rest)
	assert.Equal(t, 1, got.Argc)
	assert.True(t, got.This.Is(vm.True))

	args := []vm.Value{vm.IntegerValue(1), vm.IntegerValue(2), vm.IntegerValue(3)}
	_, err = d.Invoke(variadic, Call, vm.Undefined, args, vm.Undefined)
	require.NoError(t, err)
	require.Len(t, got.Args, 1)
	require.Len(t, got.Rest, 2)
	assert.Equal(t, int32(3), got.Rest[1].AsInteger())
	assert.Len(t, got.Passed(), 3)
}

func TestImplementationErrorsPropagateUnchanged(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	d := NewDispatcher(v)
	sentinel := errors.New("boom")
	e := Method("f", 0).Generic(func(*Frame) (vm.Value, error) { return vm.Undefined, sentinel }).Entry()
	NewContainer("Test").Register(e)
	_, err := d.Invoke(e, Call, vm.Undefined, nil, vm.Undefined)
	assert.Same(t, sentinel, err)
}

func TestSiteCacheMatchesUncachedResolution(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	cached := NewDispatcher(v, WithSiteCache())
	plain := NewDispatcher(v)
	e := bigIntToStringEntry()
	NewContainer("BigInt.prototype").Register(e)

	boxed, _ := v.ToObject(vm.NewBigInt(big.NewInt(3)))
	receivers := []vm.Value{vm.NewBigInt(big.NewInt(1)), boxed, vm.NewBigInt(big.NewInt(2)), vm.IntegerValue(1), boxed}
	for _, r := range receivers {
		a, errA := cached.Invoke(e, Call, r, nil, vm.Undefined)
		b, errB := plain.Invoke(e, Call, r, nil, vm.Undefined)
		assert.Equal(t, errA == nil, errB == nil)
		if errA == nil {
			assert.Equal(t, b.AsString(), a.AsString())
		}
	}
	c := cached.SiteCache(e, Call)
	hits, misses := c.Stats()
	assert.Equal(t, uint32(2), hits)
	assert.Equal(t, uint32(3), misses)
	assert.Equal(t, CacheStatePolymorphic, c.State())
}

func TestSiteCacheGoesMegamorphic(t *testing.T) {
	var c SiteCache
	for i := 0; i < 5; i++ {
		c.update(receiverTag{typ: vm.TypeObject, brand: string(rune('a' + i))}, 0)
	}
	assert.Equal(t, CacheStateMegamorphic, c.State())
	_, ok := c.lookup(receiverTag{typ: vm.TypeObject, brand: "a"})
	assert.False(t, ok)
}

var testSpec = NewContainerSpec("Widget.prototype", func() []*Entry {
	return []*Entry{
		Method("b", 0).Generic(constant(vm.True)).Entry(),
		Getter("size").Generic(constant(vm.IntegerValue(3))).Entry(),
		Method("a", 1).Generic(constant(vm.True)).Entry(),
		Alias(vm.NewSymbolKey(vm.SymbolIterator), vm.NewStringKey("a")),
		Method("staged", 0).Gated("widgets-staged").Generic(constant(vm.True)).Entry(),
		Method("future", 0).Since(2099).Generic(constant(vm.True)).Entry(),
		ToStringTag("Widget"),
	}
})

func TestInstallPreservesOrderAndGates(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	d := NewDispatcher(v)
	target := v.NewPlainObject()

	c, first := RegisterIntrinsicContainer(d, target, testSpec)
	require.True(t, first)
	assert.Equal(t, 7, c.Len())

	po := target.AsPlainObject()
	keys := po.OwnKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	assert.Equal(t, []string{"b", "size", "a", "[Symbol.iterator]", "[Symbol.toStringTag]"}, names)

	a, _ := po.GetOwn("a")
	it, _ := po.GetOwnByKey(vm.NewSymbolKey(vm.SymbolIterator))
	assert.True(t, a.Is(it))

	field, ok := po.GetOwnField(vm.NewStringKey("size"))
	require.True(t, ok)
	getter, setter, isAccessor := field.Accessor()
	assert.True(t, isAccessor)
	assert.True(t, getter.IsCallable())
	assert.True(t, setter.IsUndefined())

	field, _ = po.GetOwnField(vm.NewStringKey("a"))
	assert.True(t, field.Writable())
	assert.False(t, field.Enumerable())
	assert.True(t, field.Configurable())

	_, again := RegisterIntrinsicContainer(d, target, testSpec)
	assert.False(t, again)
	assert.Len(t, po.OwnKeys(), 5)
}

func TestInstallEnablesStagedFeature(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{Features: mapset.NewSet("widgets-staged")})
	d := NewDispatcher(v)
	target := v.NewPlainObject()
	RegisterIntrinsicContainer(d, target, testSpec)
	assert.True(t, target.AsPlainObject().HasOwn("staged"))
	assert.False(t, target.AsPlainObject().HasOwn("future"))
}

func TestContainerSpecBuildFailureIsSticky(t *testing.T) {
	calls := 0
	spec := NewContainerSpec("Broken", func() []*Entry {
		calls++
		return []*Entry{
			Method("next", 0).Generic(constant(vm.True)).Entry(),
			Method("next", 0).Generic(constant(vm.False)).Entry(),
		}
	})
	msg := "intrinsics: Broken.next: duplicate function entry"
	assert.PanicsWithError(t, msg, func() { spec.Build() })
	assert.PanicsWithError(t, msg, func() { spec.Build() })
	assert.Equal(t, 1, calls)
}

func TestContainerSpecBuildsOnce(t *testing.T) {
	assert.Same(t, testSpec.Build(), testSpec.Build())
	e, ok := LookupBuiltin(testSpec.Build(), vm.NewStringKey("size"))
	require.True(t, ok)
	assert.Equal(t, KindGetter, e.Kind)
	_, ok = LookupBuiltin(testSpec.Build(), vm.NewStringKey("nope"))
	assert.False(t, ok)
}
