package builtins

import (
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

func newTestVM(t *testing.T, features ...string) *vm.VM {
	t.Helper()
	return newTestVMEdition(t, 0, features...)
}

func newTestVMEdition(t *testing.T, edition int, features ...string) *vm.VM {
	t.Helper()
	v := vm.NewVM(vm.RealmOptions{EcmaVersion: edition, Features: mapset.NewThreadUnsafeSet(features...)})
	_, err := Initialize(v)
	require.NoError(t, err)
	return v
}

func global(t *testing.T, v *vm.VM, name string) vm.Value {
	t.Helper()
	val, ok := v.Realm().GetGlobal(name)
	require.True(t, ok, "global %s", name)
	return val
}

func invoke(t *testing.T, v *vm.VM, obj vm.Value, name string, args ...vm.Value) vm.Value {
	t.Helper()
	res, err := v.Invoke(obj, name, args...)
	require.NoError(t, err)
	return res
}

func construct(t *testing.T, v *vm.VM, name string, args ...vm.Value) vm.Value {
	t.Helper()
	ctor := global(t, v, name)
	res, err := v.Construct(ctor, args, vm.Undefined)
	require.NoError(t, err)
	return res
}

func get(t *testing.T, v *vm.VM, obj vm.Value, name string) vm.Value {
	t.Helper()
	res, err := v.Get(obj, name)
	require.NoError(t, err)
	return res
}

func num(i int) vm.Value { return vm.IntegerValue(int32(i)) }
func str(s string) vm.Value { return vm.NewString(s) }
func symKey(s vm.Value) vm.PropertyKey { return vm.NewSymbolKey(s) }

func array(v *vm.VM, vals ...vm.Value) vm.Value {
	return v.NewArrayFrom(vals)
}

// join mirrors Array.prototype.join with sep: nullish elements print empty.
func join(vals []vm.Value, sep string) string {
	out := make([]string, len(vals))
	for i, val := range vals {
		if !val.IsNullish() {
			out[i] = val.ToString()
		}
	}
	return strings.Join(out, sep)
}

func list(t *testing.T, v *vm.VM, iterable vm.Value) []vm.Value {
	t.Helper()
	vals, err := iterators.IterableToList(v, iterable)
	require.NoError(t, err)
	return vals
}

func requireTypeError(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, vm.IsKind(err, vm.KindTypeError), "want TypeError, got %v", err)
	assert.Contains(t, err.Error(), contains)
}

func fn(v *vm.VM, body func(this vm.Value, args []vm.Value) (vm.Value, error)) vm.Value {
	return v.NewFunction(0, true, "", body)
}

func TestInstallOrderFollowsPriority(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	ctx, err := Initialize(v)
	require.NoError(t, err)

	index := map[string]int{}
	for i, c := range ctx.Containers() {
		index[c.Name()] = i
	}
	order := []string{"Iterator.prototype", "Array.prototype", "String.prototype", "Set.prototype", "ArrayBuffer.prototype", "%TypedArray%.prototype", "WeakRef.prototype", "%AsyncFromSyncIteratorPrototype%"}
	for i := 1; i < len(order); i++ {
		require.Contains(t, index, order[i])
		assert.Less(t, index[order[i-1]], index[order[i]], "%s before %s", order[i-1], order[i])
	}

	c, ok := ctx.Container("Array Iterator.prototype")
	require.True(t, ok)
	_, ok = c.LookupFunction(vm.NewStringKey("next"))
	assert.True(t, ok)
}

func TestInitializeTwiceIsNoOp(t *testing.T) {
	v := newTestVM(t)
	arrayCtor := global(t, v, "Array")
	values := get(t, v, v.Realm().ArrayPrototype, "values")

	require.True(t, v.Realm().IsInstalled(realmBootstrapMarker))
	assert.True(t, v.Realm().IsInstalled("Array.prototype"))

	ctx, err := Initialize(v)
	require.NoError(t, err)
	assert.Empty(t, ctx.Containers())
	assert.True(t, global(t, v, "Array").Is(arrayCtor))
	assert.True(t, get(t, v, v.Realm().ArrayPrototype, "values").Is(values))
	assert.True(t, get(t, v, v.Realm().ArrayPrototype, "constructor").Is(arrayCtor))
}

func TestAliasesShareFunctionObjects(t *testing.T) {
	v := newTestVM(t)
	r := v.Realm()
	cases := []struct {
		proto  vm.Value
		alias  vm.PropertyKey
		target string
	}{
		{r.ArrayPrototype, symKey(vm.SymbolIterator), "values"},
		{r.SetPrototype, symKey(vm.SymbolIterator), "values"},
		{r.SetPrototype, vm.NewStringKey("keys"), "values"},
		{r.MapPrototype, symKey(vm.SymbolIterator), "entries"},
		{r.TypedArrayPrototype, symKey(vm.SymbolIterator), "values"},
	}
	for _, tc := range cases {
		aliased, err := v.GetProperty(tc.proto, tc.alias)
		require.NoError(t, err)
		assert.True(t, aliased.Is(get(t, v, tc.proto, tc.target)), "%s", tc.alias)
	}
}

func TestIncompatibleReceiverNamesTheBuiltin(t *testing.T) {
	v := newTestVM(t)
	set := construct(t, v, "Set")
	setIter := invoke(t, v, set, "values")
	next := get(t, v, v.Realm().ArrayIteratorPrototype, "next")

	_, err := v.Call(next, setIter, nil)
	requireTypeError(t, err, "Array Iterator.prototype.next")

	has := get(t, v, v.Realm().SetPrototype, "has")
	_, err = v.Call(has, construct(t, v, "Map"), []vm.Value{num(1)})
	requireTypeError(t, err, "Set.prototype.has")
}

func TestEditionGating(t *testing.T) {
	old := newTestVMEdition(t, 2019)
	assert.True(t, get(t, old, old.Realm().StringPrototype, "matchAll").IsUndefined())
	assert.True(t, get(t, old, old.Realm().IteratorPrototype, "map").IsUndefined())
	assert.True(t, get(t, old, old.Realm().ArrayBufferPrototype, "transfer").IsUndefined())

	cur := newTestVM(t)
	assert.True(t, get(t, cur, cur.Realm().StringPrototype, "matchAll").IsCallable())
	assert.True(t, get(t, cur, cur.Realm().IteratorPrototype, "map").IsCallable())
}

func TestStagedFeatureGating(t *testing.T) {
	v := newTestVM(t)
	_, ok := v.Realm().GetGlobal("AsyncContext")
	assert.False(t, ok)
	assert.True(t, get(t, v, get(t, v, global(t, v, "FinalizationRegistry"), "prototype"), "cleanupSome").IsUndefined())

	staged := newTestVM(t, asyncContextFeature, "cleanup-some")
	_, ok = staged.Realm().GetGlobal("AsyncContext")
	assert.True(t, ok)
	assert.True(t, get(t, staged, get(t, staged, global(t, staged, "FinalizationRegistry"), "prototype"), "cleanupSome").IsCallable())
}

func TestSiteCacheDispatchesSameResults(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	_, err := Initialize(v, intrinsics.WithSiteCache())
	require.NoError(t, err)

	toString := get(t, v, v.Realm().SymbolPrototype, "toString")
	sym := vm.NewSymbol("x")
	boxed, err := v.ToObject(sym)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		res, err := v.Call(toString, sym, nil)
		require.NoError(t, err)
		assert.Equal(t, "Symbol(x)", res.AsString())
		res, err = v.Call(toString, boxed, nil)
		require.NoError(t, err)
		assert.Equal(t, "Symbol(x)", res.AsString())
	}
	_, err = v.Call(toString, str("nope"), nil)
	requireTypeError(t, err, "Symbol.prototype.toString")
}
