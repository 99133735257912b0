package builtins

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/iterators"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type StringInitializer struct{}

func (s *StringInitializer) Name() string {
	return "String"
}

func (s *StringInitializer) Priority() int {
	return PriorityString
}

var stringPrototypeSpec = newSpec("String.prototype", func() entries {
	return entries{
		symbolMethod(vm.SymbolIterator, 0).
			When("string", intrinsics.ThisPrimitiveString, stringIteratorPrimitive).
			When("String object", intrinsics.ThisStringObject, stringIteratorBoxed).
			Fallback(stringIteratorGeneric).Entry(),
		method("matchAll", 1).Since(2020).Generic(stringMatchAll).Entry(),
		method("normalize", 0).Variadic().Generic(stringNormalize).Entry(),
		method("localeCompare", 1).Generic(stringLocaleCompare).Entry(),
	}
})

var stringIteratorSpec = newSpec("String Iterator.prototype", func() entries {
	return entries{
		iteratorNext(iterators.StringIteratorBrand),
		toStringTag(iterators.StringIteratorBrand),
	}
})

func (s *StringInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.Install(ctx.Realm.StringPrototype, stringPrototypeSpec)
	ctx.Realm.SetIntrinsic("%StringIteratorPrototype%", ctx.Realm.StringIteratorPrototype)
	ctx.Install(ctx.Realm.StringIteratorPrototype, stringIteratorSpec)
	return nil
}

func newStringIterator(v *vm.VM, s string) vm.Value {
	state := iterators.NewDirect(iterators.StringIteratorBrand, &iterators.StringSource{String: s}, iterators.KindValues)
	return iterators.NewIteratorObject(v.Realm().StringIteratorPrototype, state)
}

func stringIteratorPrimitive(f *frame) (vm.Value, error) {
	return newStringIterator(f.VM, f.This.AsString()), nil
}

func stringIteratorBoxed(f *frame) (vm.Value, error) {
	return newStringIterator(f.VM, f.This.Slot().(*vm.PrimitiveSlot).Value.AsString()), nil
}

func stringIteratorGeneric(f *frame) (vm.Value, error) {
	s, err := thisString(f)
	if err != nil {
		return vm.Undefined, err
	}
	return newStringIterator(f.VM, s), nil
}

// thisString coerces the receiver of a String.prototype method.
func thisString(f *frame) (string, error) {
	if err := requireObjectCoercible(f); err != nil {
		return "", err
	}
	return f.VM.ToString(f.This)
}

var normalizationForms = map[string]norm.Form{
	"NFC":  norm.NFC,
	"NFD":  norm.NFD,
	"NFKC": norm.NFKC,
	"NFKD": norm.NFKD,
}

func stringNormalize(f *frame) (vm.Value, error) {
	s, err := thisString(f)
	if err != nil {
		return vm.Undefined, err
	}
	name := "NFC"
	if len(f.Rest) > 0 && !f.Rest[0].IsUndefined() {
		if name, err = f.VM.ToString(f.Rest[0]); err != nil {
			return vm.Undefined, err
		}
	}
	form, ok := normalizationForms[name]
	if !ok {
		return vm.Undefined, f.VM.NewRangeError("The normalization form should be one of NFC, NFD, NFKC, NFKD.")
	}
	return vm.NewString(form.String(s)), nil
}

// realmLanguage parses the realm locale, defaulting to English.
func realmLanguage(v *vm.VM) language.Tag {
	locale := v.Realm().Options().Locale
	if locale == "" {
		return language.English
	}
	tag, err := language.Parse(locale)
	if err != nil {
		log.Warningf("invalid locale %q: %v", locale, err)
		return language.English
	}
	return tag
}

func stringLocaleCompare(f *frame) (vm.Value, error) {
	s, err := thisString(f)
	if err != nil {
		return vm.Undefined, err
	}
	that, err := f.VM.ToString(f.Arg(0))
	if err != nil {
		return vm.Undefined, err
	}
	c := collate.New(realmLanguage(f.VM))
	return vm.IntegerValue(int32(c.CompareString(s, that))), nil
}
