package builtins

import (
	"math"
	"math/big"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

type BigIntInitializer struct{}

func (b *BigIntInitializer) Name() string {
	return "BigInt"
}

func (b *BigIntInitializer) Priority() int {
	return PriorityBigInt
}

// BigInt is callable but `new BigInt` is a TypeError.
var bigintGlobalSpec = newSpec("global BigInt", func() entries {
	return entries{
		method("BigInt", 1).Generic(bigintCall).Entry(),
	}
})

var bigintStaticSpec = newSpec("BigInt", func() entries {
	return entries{
		method("asIntN", 2).Generic(bigintAsN(true)).Entry(),
		method("asUintN", 2).Generic(bigintAsN(false)).Entry(),
	}
})

var bigintPrototypeSpec = newSpec("BigInt.prototype", func() entries {
	return entries{
		method("toString", 0).Variadic().
			When("bigint", intrinsics.ThisPrimitiveBigInt, bigintToString).
			When("BigInt object", intrinsics.ThisBigIntObject, bigintToString).
			Incompatible().Entry(),
		method("toLocaleString", 0).Variadic().
			When("bigint", intrinsics.ThisPrimitiveBigInt, bigintToLocaleString).
			When("BigInt object", intrinsics.ThisBigIntObject, bigintToLocaleString).
			Incompatible().Entry(),
		method("valueOf", 0).
			When("bigint", intrinsics.ThisPrimitiveBigInt, returnThis).
			When("BigInt object", intrinsics.ThisBigIntObject, bigintUnbox).
			Incompatible().Entry(),
		toStringTag("BigInt"),
	}
})

func (b *BigIntInitializer) InitRuntime(ctx *RuntimeContext) error {
	ctx.InstallFamily("BigInt", bigintGlobalSpec, bigintStaticSpec, bigintPrototypeSpec, ctx.Realm.BigIntPrototype)
	return nil
}

func bigintCall(f *frame) (vm.Value, error) {
	v := f.VM
	prim, err := v.ToPrimitive(f.Arg(0), "number")
	if err != nil {
		return vm.Undefined, err
	}
	if prim.IsNumber() {
		n := prim.AsFloat()
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return vm.Undefined, v.NewRangeError("The number %s cannot be converted to a BigInt because it is not an integer", prim.ToString())
		}
		i, _ := new(big.Float).SetFloat64(n).Int(nil)
		return vm.NewBigInt(i), nil
	}
	i, err := v.ToBigInt(prim)
	if err != nil {
		return vm.Undefined, err
	}
	return vm.NewBigInt(i), nil
}

// maxBigIntBits bounds the width of a BigInt result.
const maxBigIntBits = 1 << 30

// bigintAsN implements BigInt.asIntN and BigInt.asUintN.
func bigintAsN(signed bool) intrinsics.Impl {
	return func(f *frame) (vm.Value, error) {
		v := f.VM
		bits, err := v.ToIndex(f.Arg(0))
		if err != nil {
			return vm.Undefined, err
		}
		n, err := v.ToBigInt(f.Arg(1))
		if err != nil {
			return vm.Undefined, err
		}
		if bits == 0 {
			return vm.NewBigInt(new(big.Int)), nil
		}
		if bits > n.BitLen() && (signed || n.Sign() >= 0) {
			return vm.NewBigInt(n), nil
		}
		if bits > maxBigIntBits {
			return vm.Undefined, v.NewRangeError("Maximum BigInt size exceeded")
		}
		mod := new(big.Int).Lsh(big.NewInt(1), uint(bits))
		r := new(big.Int).Mod(n, mod)
		if signed && r.Cmp(new(big.Int).Rsh(mod, 1)) >= 0 {
			r.Sub(r, mod)
		}
		return vm.NewBigInt(r), nil
	}
}

// thisBigInt unwraps a bigint primitive or BigInt object receiver.
func thisBigInt(this vm.Value) *big.Int {
	if this.IsBigInt() {
		return this.AsBigInt()
	}
	return this.Slot().(*vm.PrimitiveSlot).Value.AsBigInt()
}

func bigintUnbox(f *frame) (vm.Value, error) {
	return vm.NewBigInt(thisBigInt(f.This)), nil
}

func bigintToString(f *frame) (vm.Value, error) {
	radix := 10
	if len(f.Rest) > 0 && !f.Rest[0].IsUndefined() {
		r, err := f.VM.ToIntegerOrInfinity(f.Rest[0])
		if err != nil {
			return vm.Undefined, err
		}
		if r < 2 || r > 36 {
			return vm.Undefined, f.VM.NewRangeError("toString() radix must be between 2 and 36")
		}
		radix = int(r)
	}
	return vm.NewString(thisBigInt(f.This).Text(radix)), nil
}

// bigintToLocaleString formats with the realm locale's digit grouping.
// Values outside int64 fall back to the plain decimal form.
func bigintToLocaleString(f *frame) (vm.Value, error) {
	n := thisBigInt(f.This)
	if !n.IsInt64() {
		return vm.NewString(n.String()), nil
	}
	tag := realmLanguage(f.VM)
	if len(f.Rest) > 0 && f.Rest[0].IsString() {
		t, err := language.Parse(f.Rest[0].AsString())
		if err != nil {
			return vm.Undefined, f.VM.NewRangeError("Incorrect locale information provided")
		}
		tag = t
	}
	p := message.NewPrinter(tag)
	return vm.NewString(p.Sprint(number.Decimal(n.Int64()))), nil
}
