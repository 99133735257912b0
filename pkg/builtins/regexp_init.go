package builtins

import (
	"strings"
	"unicode/utf16"

	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type RegExpInitializer struct{}

func (r *RegExpInitializer) Name() string {
	return "RegExp"
}

func (r *RegExpInitializer) Priority() int {
	return PriorityRegExp
}

var regexpGlobalSpec = newSpec("global RegExp", func() entries {
	return entries{
		constructor("RegExp", 2).Generic(regexpCall).ConstructWith(regexpConstruct).Entry(),
	}
})

// regexpFlagGetters pairs each flag character with its accessor, in the
// order the flags getter reports them.
var regexpFlagGetters = []struct {
	flag byte
	name string
	get  func(*vm.RegExpObject) bool
}{
	{'d', "hasIndices", nil},
	{'g', "global", (*vm.RegExpObject).Global},
	{'i', "ignoreCase", (*vm.RegExpObject).IgnoreCase},
	{'m', "multiline", (*vm.RegExpObject).Multiline},
	{'s', "dotAll", (*vm.RegExpObject).DotAll},
	{'u', "unicode", (*vm.RegExpObject).Unicode},
	{'v', "unicodeSets", nil},
	{'y', "sticky", (*vm.RegExpObject).Sticky},
}

var regexpPrototypeSpec = newSpec("RegExp.prototype", func() entries {
	isRegExp := thisType(vm.TypeRegExp)
	out := entries{
		method("exec", 1).When("RegExp", isRegExp, regexpExecMethod).Incompatible().Entry(),
		method("test", 1).When("object", intrinsics.ThisObject, regexpTest).Incompatible().Entry(),
		method("toString", 0).When("object", intrinsics.ThisObject, regexpToString).Incompatible().Entry(),
		getter("source").When("RegExp", isRegExp, regexpSource).Fallback(onRegExpPrototype(vm.NewString("(?:)"))).Entry(),
		getter("flags").When("object", intrinsics.ThisObject, regexpFlags).Incompatible().Entry(),
	}
	for _, fg := range regexpFlagGetters {
		if fg.get == nil {
			continue
		}
		get := fg.get
		out = append(out, getter(fg.name).
			When("RegExp", isRegExp, func(f *frame) (vm.Value, error) {
				return boolResult(get(f.This.AsRegExp()))
			}).
			Fallback(onRegExpPrototype(vm.Undefined)).Entry())
	}
	return append(out,
		symbolMethod(vm.SymbolMatchAll, 1).When("object", intrinsics.ThisObject, regexpMatchAll).Incompatible().Entry(),
	)
})

var regexpStringIteratorSpec = newSpec("RegExp String Iterator.prototype", func() entries {
	return entries{
		iteratorNext(iterators.RegExpStringIteratorBrand),
		toStringTag(iterators.RegExpStringIteratorBrand),
	}
})

func (r *RegExpInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.InstallFamily("RegExp", regexpGlobalSpec, nil, regexpPrototypeSpec, ctx.Realm.RegExpPrototype)
	ctx.Realm.SetIntrinsic("%RegExpStringIteratorPrototype%", ctx.Realm.RegExpStringIteratorPrototype)
	ctx.Install(ctx.Realm.RegExpStringIteratorPrototype, regexpStringIteratorSpec)
	return nil
}

// onRegExpPrototype answers accessor reads on %RegExp.prototype% itself
// with value and rejects every other receiver.
func onRegExpPrototype(value vm.Value) intrinsics.Impl {
	return func(f *frame) (vm.Value, error) {
		if f.This.Is(f.VM.Realm().RegExpPrototype) {
			return value, nil
		}
		return vm.Undefined, f.VM.IncompatibleReceiver(f.Entry.QualifiedName(), f.This)
	}
}

// regexpCreate compiles pattern and flags into a RegExp object with proto.
func regexpCreate(v *vm.VM, pattern, flags vm.Value, proto vm.Value) (vm.Value, error) {
	var p, fl string
	var err error
	if pattern.Type() == vm.TypeRegExp {
		p = pattern.AsRegExp().Source()
		if flags.IsUndefined() {
			fl = pattern.AsRegExp().Flags()
		}
	} else if !pattern.IsUndefined() {
		if p, err = v.ToString(pattern); err != nil {
			return vm.Undefined, err
		}
	}
	if !flags.IsUndefined() {
		if fl, err = v.ToString(flags); err != nil {
			return vm.Undefined, err
		}
	}
	rx, err := vm.NewRegExp(p, fl)
	if err != nil {
		return vm.Undefined, v.NewSyntaxError("%v", err)
	}
	rx.AsPlainObject().SetPrototype(proto)
	return rx, nil
}

func regexpCall(f *frame) (vm.Value, error) {
	pattern, flags := f.Arg(0), f.Arg(1)
	if pattern.Type() == vm.TypeRegExp && flags.IsUndefined() {
		ctor, err := f.VM.Get(pattern, "constructor")
		if err != nil {
			return vm.Undefined, err
		}
		if ctor.Is(intrinsicOf(f.VM, "%RegExp%")) {
			return pattern, nil
		}
	}
	return regexpCreate(f.VM, pattern, flags, f.VM.Realm().RegExpPrototype)
}

func regexpConstruct(f *frame) (vm.Value, error) {
	proto, err := protoFor(f, f.VM.Realm().RegExpPrototype)
	if err != nil {
		return vm.Undefined, err
	}
	return regexpCreate(f.VM, f.Arg(0), f.Arg(1), proto)
}

// runeIndex converts a UTF-16 offset into s's rune offset.
func runeIndex(runes []rune, unit int) int {
	u := 0
	for i, r := range runes {
		if u >= unit {
			return i
		}
		u += utf16.RuneLen(r)
	}
	return len(runes)
}

// unitIndex converts a rune offset into a UTF-16 offset.
func unitIndex(runes []rune, idx int) int {
	u := 0
	for _, r := range runes[:idx] {
		u += utf16.RuneLen(r)
	}
	return u
}

// regexpBuiltinExec runs rx against s honouring lastIndex, global and sticky.
func regexpBuiltinExec(v *vm.VM, rx vm.Value, s string) (vm.Value, error) {
	re := rx.AsRegExp()
	li, err := v.Get(rx, "lastIndex")
	if err != nil {
		return vm.Undefined, err
	}
	lastIndex, err := v.ToLength(li)
	if err != nil {
		return vm.Undefined, err
	}
	updates := re.Global() || re.Sticky()
	if !updates {
		lastIndex = 0
	}
	fail := func() (vm.Value, error) {
		if updates {
			if err := v.Set(rx, "lastIndex", vm.IntegerValue(0)); err != nil {
				return vm.Undefined, err
			}
		}
		return vm.Null, nil
	}
	if lastIndex > vm.UTF16Length(s) {
		return fail()
	}
	runes := []rune(s)
	m, err := re.MatchAt(runes, runeIndex(runes, lastIndex))
	if err != nil {
		return vm.Undefined, v.NewRangeError("%v", err)
	}
	if m == nil {
		return fail()
	}
	if updates {
		if err := v.Set(rx, "lastIndex", vm.IndexValue(unitIndex(runes, m.End))); err != nil {
			return vm.Undefined, err
		}
	}
	arr := v.NewArrayFrom(m.Groups)
	po := arr.AsPlainObject()
	po.SetOwn("index", vm.IndexValue(unitIndex(runes, m.Index)))
	po.SetOwn("input", vm.NewString(s))
	po.SetOwn("groups", vm.Undefined)
	return arr, nil
}

// regexpExec implements RegExpExec: a user-visible exec takes precedence.
func regexpExec(v *vm.VM, rx vm.Value, s string) (vm.Value, error) {
	exec, err := v.Get(rx, "exec")
	if err != nil {
		return vm.Undefined, err
	}
	if exec.IsCallable() {
		res, err := v.Call(exec, rx, []vm.Value{vm.NewString(s)})
		if err != nil {
			return vm.Undefined, err
		}
		if !res.IsObject() && !res.IsNull() {
			return vm.Undefined, v.NewTypeError("exec result must be an object or null")
		}
		return res, nil
	}
	if rx.Type() != vm.TypeRegExp {
		return vm.Undefined, v.IncompatibleReceiver("RegExp.prototype.exec", rx)
	}
	return regexpBuiltinExec(v, rx, s)
}

func regexpExecMethod(f *frame) (vm.Value, error) {
	s, err := f.VM.ToString(f.Arg(0))
	if err != nil {
		return vm.Undefined, err
	}
	return regexpBuiltinExec(f.VM, f.This, s)
}

func regexpTest(f *frame) (vm.Value, error) {
	s, err := f.VM.ToString(f.Arg(0))
	if err != nil {
		return vm.Undefined, err
	}
	res, err := regexpExec(f.VM, f.This, s)
	if err != nil {
		return vm.Undefined, err
	}
	return boolResult(!res.IsNull())
}

func regexpSource(f *frame) (vm.Value, error) {
	src := f.This.AsRegExp().Source()
	if src == "" {
		src = "(?:)"
	}
	return vm.NewString(src), nil
}

func regexpFlags(f *frame) (vm.Value, error) {
	var b strings.Builder
	for _, fg := range regexpFlagGetters {
		val, err := f.VM.Get(f.This, fg.name)
		if err != nil {
			return vm.Undefined, err
		}
		if val.IsTruthy() {
			b.WriteByte(fg.flag)
		}
	}
	return vm.NewString(b.String()), nil
}

func regexpToString(f *frame) (vm.Value, error) {
	parts := make([]string, 2)
	for i, name := range []string{"source", "flags"} {
		val, err := f.VM.Get(f.This, name)
		if err != nil {
			return vm.Undefined, err
		}
		if parts[i], err = f.VM.ToString(val); err != nil {
			return vm.Undefined, err
		}
	}
	return vm.NewString("/" + parts[0] + "/" + parts[1]), nil
}

// regexpMatchAll implements RegExp.prototype[@@matchAll]: it clones the
// receiver so iteration does not disturb its lastIndex.
func regexpMatchAll(f *frame) (vm.Value, error) {
	v := f.VM
	s, err := v.ToString(f.Arg(0))
	if err != nil {
		return vm.Undefined, err
	}
	flagsVal, err := v.Get(f.This, "flags")
	if err != nil {
		return vm.Undefined, err
	}
	flags, err := v.ToString(flagsVal)
	if err != nil {
		return vm.Undefined, err
	}
	pattern := f.This
	if pattern.Type() != vm.TypeRegExp {
		if pattern, err = v.Get(f.This, "source"); err != nil {
			return vm.Undefined, err
		}
	}
	matcher, err := regexpCreate(v, pattern, vm.NewString(flags), v.Realm().RegExpPrototype)
	if err != nil {
		return vm.Undefined, err
	}
	li, err := v.Get(f.This, "lastIndex")
	if err != nil {
		return vm.Undefined, err
	}
	lastIndex, err := v.ToLength(li)
	if err != nil {
		return vm.Undefined, err
	}
	if err := v.Set(matcher, "lastIndex", vm.IndexValue(lastIndex)); err != nil {
		return vm.Undefined, err
	}
	global := strings.Contains(flags, "g")
	fullUnicode := strings.ContainsAny(flags, "uv")
	return newRegExpStringIterator(v, matcher, s, global, fullUnicode), nil
}

func newRegExpStringIterator(v *vm.VM, rx vm.Value, s string, global, fullUnicode bool) vm.Value {
	units := utf16.Encode([]rune(s))
	finished := false
	step := func(v *vm.VM) (vm.Value, bool, error) {
		if finished {
			return vm.Undefined, false, nil
		}
		match, err := regexpExec(v, rx, s)
		if err != nil {
			return vm.Undefined, false, err
		}
		if match.IsNull() {
			return vm.Undefined, false, nil
		}
		if !global {
			finished = true
			return match, true, nil
		}
		first, err := v.Get(match, "0")
		if err != nil {
			return vm.Undefined, false, err
		}
		matched, err := v.ToString(first)
		if err != nil {
			return vm.Undefined, false, err
		}
		if matched == "" {
			li, err := v.Get(rx, "lastIndex")
			if err != nil {
				return vm.Undefined, false, err
			}
			thisIndex, err := v.ToLength(li)
			if err != nil {
				return vm.Undefined, false, err
			}
			next := advanceStringIndex(units, thisIndex, fullUnicode)
			if err := v.Set(rx, "lastIndex", vm.IndexValue(next)); err != nil {
				return vm.Undefined, false, err
			}
		}
		return match, true, nil
	}
	state := iterators.NewFunc(iterators.RegExpStringIteratorBrand, step)
	return iterators.NewIteratorObject(v.Realm().RegExpStringIteratorPrototype, state)
}

// advanceStringIndex steps over a whole surrogate pair in unicode mode.
func advanceStringIndex(units []uint16, index int, unicode bool) int {
	if !unicode || index+1 >= len(units) {
		return index + 1
	}
	if utf16.IsSurrogate(rune(units[index])) && utf16.IsSurrogate(rune(units[index+1])) {
		return index + 2
	}
	return index + 1
}

// stringMatchAll implements String.prototype.matchAll.
func stringMatchAll(f *frame) (vm.Value, error) {
	v := f.VM
	if err := requireObjectCoercible(f); err != nil {
		return vm.Undefined, err
	}
	regexp := f.Arg(0)
	if !regexp.IsNullish() {
		if regexp.Type() == vm.TypeRegExp {
			flags, err := v.Get(regexp, "flags")
			if err != nil {
				return vm.Undefined, err
			}
			fs, err := v.ToString(flags)
			if err != nil {
				return vm.Undefined, err
			}
			if !strings.Contains(fs, "g") {
				return vm.Undefined, v.NewTypeError("String.prototype.matchAll called with a non-global RegExp argument")
			}
		}
		matcher, err := v.GetMethod(regexp, vm.NewSymbolKey(vm.SymbolMatchAll))
		if err != nil {
			return vm.Undefined, err
		}
		if !matcher.IsUndefined() {
			return v.Call(matcher, regexp, []vm.Value{f.This})
		}
	}
	s, err := v.ToString(f.This)
	if err != nil {
		return vm.Undefined, err
	}
	rx, err := regexpCreate(v, regexp, vm.NewString("g"), v.Realm().RegExpPrototype)
	if err != nil {
		return vm.Undefined, err
	}
	matchAll, err := v.GetMethod(rx, vm.NewSymbolKey(vm.SymbolMatchAll))
	if err != nil {
		return vm.Undefined, err
	}
	return v.Call(matchAll, rx, []vm.Value{vm.NewString(s)})
}
