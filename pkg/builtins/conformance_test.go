package builtins

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// The tests in this file drive the same scenario through the builtins and
// through goja, and compare the joined output.

func gojaEval(t *testing.T, src string) string {
	t.Helper()
	rt := goja.New()
	val, err := rt.RunString(src)
	require.NoError(t, err)
	return val.String()
}

// drain steps the iterator object it, calling visit on each value.
func drain(t *testing.T, v *vm.VM, it vm.Value, visit func(vm.Value)) {
	t.Helper()
	rec, err := iterators.GetIteratorDirect(v, it)
	require.NoError(t, err)
	for {
		val, done, err := rec.StepValue(v)
		require.NoError(t, err)
		if done {
			return
		}
		visit(val)
	}
}

func TestConformanceSetIterationWithMutation(t *testing.T) {
	want := gojaEval(t, `
		var s = new Set([1, 2, 3]);
		var out = [];
		for (var x of s) {
			out.push(x);
			if (x === 1) { s.delete(2); s.add(4); }
		}
		out.join(",")`)

	v := newTestVM(t)
	set := construct(t, v, "Set", array(v, num(1), num(2), num(3)))
	var got []vm.Value
	drain(t, v, invoke(t, v, set, "values"), func(x vm.Value) {
		got = append(got, x)
		if x.ToString() == "1" {
			invoke(t, v, set, "delete", num(2))
			invoke(t, v, set, "add", num(4))
		}
	})
	assert.Equal(t, want, join(got, ","))
}

func TestConformanceMapIterationWithMutation(t *testing.T) {
	want := gojaEval(t, `
		var m = new Map([["a", 1], ["b", 2]]);
		var out = [];
		for (var e of m) {
			out.push(e[0] + "=" + e[1]);
			if (e[0] === "a") { m.delete("b"); m.set("c", 3); m.set("a", 9); }
		}
		out.join(",")`)

	v := newTestVM(t)
	m := construct(t, v, "Map", array(v, array(v, str("a"), num(1)), array(v, str("b"), num(2))))
	var got []vm.Value
	drain(t, v, invoke(t, v, m, "entries"), func(e vm.Value) {
		k, err := v.GetProperty(e, vm.NewIndexKey(0))
		require.NoError(t, err)
		val, err := v.GetProperty(e, vm.NewIndexKey(1))
		require.NoError(t, err)
		got = append(got, str(k.ToString()+"="+val.ToString()))
		if k.ToString() == "a" {
			invoke(t, v, m, "delete", str("b"))
			invoke(t, v, m, "set", str("c"), num(3))
			invoke(t, v, m, "set", str("a"), num(9))
		}
	})
	assert.Equal(t, want, join(got, ","))
}

func TestConformanceSetClearDuringIteration(t *testing.T) {
	want := gojaEval(t, `
		var s = new Set(["a", "b"]);
		var out = [];
		for (var x of s) {
			out.push(x);
			if (x === "a") { s.clear(); s.add("z"); }
		}
		out.join(",")`)

	v := newTestVM(t)
	set := construct(t, v, "Set", array(v, str("a"), str("b")))
	var got []vm.Value
	drain(t, v, invoke(t, v, set, "values"), func(x vm.Value) {
		got = append(got, x)
		if x.ToString() == "a" {
			invoke(t, v, set, "clear")
			invoke(t, v, set, "add", str("z"))
		}
	})
	assert.Equal(t, want, join(got, ","))
}

func TestConformanceStringCodePoints(t *testing.T) {
	const s = "a\U0001F600bé"
	want := gojaEval(t, `Array.from("a😀bé").join("|")`)

	v := newTestVM(t)
	res := invoke(t, v, global(t, v, "Array"), "from", str(s))
	assert.Equal(t, want, join(res.AsArray().Elements(), "|"))
	assert.Equal(t, want, join(list(t, v, str(s)), "|"))
}

func TestConformanceArrayFrom(t *testing.T) {
	want := gojaEval(t, `
		Array.from({length: 3, 0: "a", 2: "c"}).join("|") + ";" +
		Array.from([1, 2, 3], function (x, i) { return x * 10 + i; }).join(",")`)

	v := newTestVM(t)
	obj := v.NewPlainObject()
	require.NoError(t, v.Set(obj, "length", num(3)))
	require.NoError(t, v.Set(obj, "0", str("a")))
	require.NoError(t, v.Set(obj, "2", str("c")))
	first := invoke(t, v, global(t, v, "Array"), "from", obj)

	mapFn := fn(v, func(_ vm.Value, args []vm.Value) (vm.Value, error) {
		return vm.NumberValue(args[0].ToFloat()*10 + args[1].ToFloat()), nil
	})
	second := invoke(t, v, global(t, v, "Array"), "from", array(v, num(1), num(2), num(3)), mapFn)

	assert.Equal(t, want, join(first.AsArray().Elements(), "|")+";"+join(second.AsArray().Elements(), ","))
}

func TestConformanceTypedArrayConversions(t *testing.T) {
	cases := []struct {
		kind  string
		input []float64
	}{
		{"Uint8Array", []float64{1, 2, 300, -1}},
		{"Int8Array", []float64{127, 128, -129}},
		{"Uint8ClampedArray", []float64{300, -5, 1.5, 2.5}},
		{"Int16Array", []float64{40000, -40000}},
		{"Uint32Array", []float64{-1, 4294967297}},
		{"Float64Array", []float64{0.5, -2}},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			src := "["
			vals := make([]vm.Value, len(tc.input))
			for i, x := range tc.input {
				if i > 0 {
					src += ","
				}
				src += vm.NumberValue(x).ToString()
				vals[i] = vm.NumberValue(x)
			}
			src += "]"
			want := gojaEval(t, "Array.from(new "+tc.kind+"("+src+")).join(\",\")")

			v := newTestVM(t)
			ta := construct(t, v, tc.kind, array(v, vals...))
			assert.Equal(t, want, join(list(t, v, ta), ","))
		})
	}
}

func TestConformanceTypedArrayKeysAndEntries(t *testing.T) {
	want := gojaEval(t, `
		var ta = new Int8Array([5, 6]);
		var out = [];
		for (var k of ta.keys()) out.push(k);
		for (var e of ta.entries()) out.push(e[0] + ":" + e[1]);
		out.join(",")`)

	v := newTestVM(t)
	ta := construct(t, v, "Int8Array", array(v, num(5), num(6)))
	got := list(t, v, invoke(t, v, ta, "keys"))
	for _, e := range list(t, v, invoke(t, v, ta, "entries")) {
		pair := e.AsArray().Elements()
		got = append(got, str(pair[0].ToString()+":"+pair[1].ToString()))
	}
	assert.Equal(t, want, join(got, ","))
}

func TestConformanceRegExpExec(t *testing.T) {
	want := gojaEval(t, `
		var r = /(\d)(\w)/g;
		var s = "1a 2b";
		var out = [];
		var m;
		while ((m = r.exec(s)) !== null) {
			out.push(m[0] + "@" + m.index + "/" + r.lastIndex + "/" + m[2]);
		}
		out.push(r.lastIndex);
		out.join(",")`)

	v := newTestVM(t)
	rx := construct(t, v, "RegExp", str(`(\d)(\w)`), str("g"))
	var got []vm.Value
	for {
		m := invoke(t, v, rx, "exec", str("1a 2b"))
		if m.IsNull() {
			break
		}
		groups := m.AsArray().Elements()
		line := groups[0].ToString() + "@" + get(t, v, m, "index").ToString() + "/" + get(t, v, rx, "lastIndex").ToString() + "/" + groups[2].ToString()
		got = append(got, str(line))
	}
	got = append(got, get(t, v, rx, "lastIndex"))
	assert.Equal(t, want, join(got, ","))
}

func TestConformanceArrayIteratorSeesGrowth(t *testing.T) {
	want := gojaEval(t, `
		var a = [1, 2];
		var out = [];
		for (var x of a) {
			out.push(x);
			if (a.length < 4) a.push(x * 10);
		}
		out.join(",")`)

	v := newTestVM(t)
	arr := array(v, num(1), num(2))
	var got []vm.Value
	drain(t, v, invoke(t, v, arr, "values"), func(x vm.Value) {
		got = append(got, x)
		if a := arr.AsArray(); a.Length() < 4 {
			a.Append(vm.NumberValue(x.ToFloat() * 10))
		}
	})
	assert.Equal(t, want, join(got, ","))
}
