package builtins

import (
	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type SymbolInitializer struct{}

func (s *SymbolInitializer) Name() string {
	return "Symbol"
}

func (s *SymbolInitializer) Priority() int {
	return PrioritySymbol
}

// Symbol is callable but not constructible.
var symbolGlobalSpec = newSpec("global Symbol", func() entries {
	return entries{
		method("Symbol", 0).Variadic().Generic(symbolCall).Entry(),
	}
})

var symbolStaticSpec = newSpec("Symbol", func() entries {
	out := entries{
		method("for", 1).Generic(symbolFor).Entry(),
		method("keyFor", 1).Generic(symbolKeyFor).Entry(),
	}
	for _, wk := range vm.WellKnownSymbols() {
		out = append(out, constant(wk.Name, wk.Symbol))
	}
	return out
})

var symbolPrototypeSpec = newSpec("Symbol.prototype", func() entries {
	return entries{
		method("toString", 0).
			When("symbol", intrinsics.ThisPrimitiveSymbol, symbolToString).
			When("Symbol object", intrinsics.ThisSymbolObject, symbolToString).
			Incompatible().Entry(),
		method("valueOf", 0).
			When("symbol", intrinsics.ThisPrimitiveSymbol, returnThis).
			When("Symbol object", intrinsics.ThisSymbolObject, symbolUnbox).
			Incompatible().Entry(),
		getter("description").
			When("symbol", intrinsics.ThisPrimitiveSymbol, symbolDescription).
			When("Symbol object", intrinsics.ThisSymbolObject, symbolDescription).
			Incompatible().Entry(),
		symbolMethod(vm.SymbolToPrimitive, 1).
			Attrs(intrinsics.Attributes{Configurable: true}).
			When("symbol", intrinsics.ThisPrimitiveSymbol, returnThis).
			When("Symbol object", intrinsics.ThisSymbolObject, symbolUnbox).
			Incompatible().Entry(),
		toStringTag("Symbol"),
	}
})

func (s *SymbolInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.InstallFamily("Symbol", symbolGlobalSpec, symbolStaticSpec, symbolPrototypeSpec, ctx.Realm.SymbolPrototype)
	return nil
}

func symbolCall(f *frame) (vm.Value, error) {
	if len(f.Rest) == 0 || f.Rest[0].IsUndefined() {
		return vm.NewAnonymousSymbol(), nil
	}
	desc, err := f.VM.ToString(f.Rest[0])
	if err != nil {
		return vm.Undefined, err
	}
	return vm.NewSymbol(desc), nil
}

func symbolFor(f *frame) (vm.Value, error) {
	key, err := f.VM.ToString(f.Arg(0))
	if err != nil {
		return vm.Undefined, err
	}
	return vm.SymbolFor(key), nil
}

func symbolKeyFor(f *frame) (vm.Value, error) {
	sym := f.Arg(0)
	if !sym.IsSymbol() {
		return vm.Undefined, f.VM.NewTypeError("%s is not a symbol", sym.Inspect())
	}
	if key, ok := sym.AsSymbol().Registered(); ok {
		return vm.NewString(key), nil
	}
	return vm.Undefined, nil
}

// thisSymbol unwraps a symbol primitive or Symbol object receiver.
func thisSymbol(this vm.Value) vm.Value {
	if this.IsSymbol() {
		return this
	}
	return this.Slot().(*vm.PrimitiveSlot).Value
}

func symbolUnbox(f *frame) (vm.Value, error) {
	return thisSymbol(f.This), nil
}

func symbolToString(f *frame) (vm.Value, error) {
	return vm.NewString(thisSymbol(f.This).AsSymbol().DescriptiveString()), nil
}

func symbolDescription(f *frame) (vm.Value, error) {
	if desc, ok := thisSymbol(f.This).AsSymbol().Description(); ok {
		return vm.NewString(desc), nil
	}
	return vm.Undefined, nil
}
