package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainObjectBasic(t *testing.T) {
	po := NewObject(Null).AsPlainObject()
	assert.False(t, po.HasOwn("foo"))

	po.SetOwn("foo", IntegerValue(42))
	v, ok := po.GetOwn("foo")
	require.True(t, ok)
	assert.Equal(t, int32(42), v.AsInteger())

	po.SetOwn("foo", IntegerValue(7))
	v, _ = po.GetOwn("foo")
	assert.Equal(t, int32(7), v.AsInteger())
	assert.Equal(t, []string{"foo"}, po.OwnPropertyNames())
}

func TestOwnKeysOrder(t *testing.T) {
	po := NewObject(Null).AsPlainObject()
	sym := NewSymbol("s")
	tr := true
	po.DefineOwnPropertyByKey(NewSymbolKey(sym), True, &tr, &tr, &tr)
	po.SetOwn("b", True)
	po.SetOwn("a", True)

	keys := po.OwnKeys()
	require.Len(t, keys, 3)
	assert.Equal(t, "b", keys[0].Name())
	assert.Equal(t, "a", keys[1].Name())
	assert.True(t, keys[2].IsSymbol())
	assert.True(t, keys[2].Symbol().Is(sym))
}

func TestSymbolKeysCompareByIdentity(t *testing.T) {
	a, b := NewSymbol("x"), NewSymbol("x")
	assert.False(t, NewSymbolKey(a).Equal(NewSymbolKey(b)))
	assert.True(t, NewSymbolKey(a).Equal(NewSymbolKey(a)))
	assert.True(t, NewStringKey("x").Equal(NewStringKey("x")))
	assert.True(t, SymbolFor("k").Is(SymbolFor("k")))
}

func TestNonConfigurableRejectsRedefinition(t *testing.T) {
	po := NewObject(Null).AsPlainObject()
	f := false
	require.True(t, po.DefineOwnProperty("x", IntegerValue(1), &f, &f, &f))
	assert.False(t, po.DefineOwnProperty("x", IntegerValue(2), nil, nil, nil))
	assert.False(t, po.SetOwnByKey(NewStringKey("x"), IntegerValue(2)))
	assert.False(t, po.DeleteOwnByKey(NewStringKey("x")))
}

func TestSetPrototypeRefusesCycles(t *testing.T) {
	a := NewObject(Null)
	b := NewObject(a)
	assert.False(t, a.AsPlainObject().SetPrototype(b))
	assert.True(t, a.AsPlainObject().SetPrototype(Null))
}

func TestPreventExtensions(t *testing.T) {
	proto := NewObject(Null)
	po := NewObject(Null).AsPlainObject()
	po.SetOwn("kept", IntegerValue(1))
	require.True(t, po.IsExtensible())

	po.PreventExtensions()
	assert.False(t, po.IsExtensible())
	assert.True(t, po.HasOwnByKey(NewStringKey("kept")))
	assert.True(t, po.SetOwnByKey(NewStringKey("kept"), IntegerValue(2)))
	assert.False(t, po.SetOwnByKey(NewStringKey("added"), IntegerValue(3)))
	assert.False(t, po.HasOwn("added"))
	assert.False(t, po.DefineAccessorPropertyByKey(NewStringKey("acc"), Undefined, Undefined, nil, nil))
	assert.False(t, po.SetPrototype(proto))
	assert.True(t, po.SetPrototype(Null))
	assert.True(t, po.DeleteOwnByKey(NewStringKey("kept")))
}

func TestCollectionTombstones(t *testing.T) {
	s := NewSet().AsSet()
	s.Add(IntegerValue(1))
	s.Add(NumberValue(2))
	s.Add(IntegerValue(3))
	require.True(t, s.Delete(IntegerValue(2)))
	assert.Equal(t, 2, s.Size())
	assert.Equal(t, 3, s.EntryCount())
	_, live := s.EntryAt(1)
	assert.False(t, live)

	m := NewMap().AsMap()
	m.Set(NumberValue(0), True)
	m.Set(NaN, False)
	v, ok := m.Get(IntegerValue(0))
	require.True(t, ok)
	assert.True(t, v.Is(True))
	assert.True(t, m.Has(NumberValue(0)))
	assert.True(t, m.Has(NaN))
}
