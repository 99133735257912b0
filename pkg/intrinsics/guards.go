package intrinsics

import (
	"github.com/nooga/jsintrinsics/pkg/vm"
)

// Guard selects an implementation variant. Guards look only at value tags and
// internal slots; they never run script code.
type Guard func(this vm.Value, args []vm.Value) bool

// Any accepts every receiver.
func Any(vm.Value, []vm.Value) bool { return true }

// ThisType accepts receivers whose tag is one of types.
func ThisType(types ...vm.ValueType) Guard {
	return func(this vm.Value, _ []vm.Value) bool {
		for _, t := range types {
			if this.Type() == t {
				return true
			}
		}
		return false
	}
}

// ThisObject accepts any object receiver.
func ThisObject(this vm.Value, _ []vm.Value) bool { return this.IsObject() }

// ThisPrimitiveBigInt accepts a BigInt primitive receiver.
func ThisPrimitiveBigInt(this vm.Value, _ []vm.Value) bool { return this.IsBigInt() }

// ThisBigIntObject accepts a BigInt wrapper object.
func ThisBigIntObject(this vm.Value, _ []vm.Value) bool {
	return boxed(this, vm.TypeBigInt)
}

// ThisPrimitiveSymbol accepts a symbol primitive receiver.
func ThisPrimitiveSymbol(this vm.Value, _ []vm.Value) bool { return this.IsSymbol() }

// ThisSymbolObject accepts a Symbol wrapper object.
func ThisSymbolObject(this vm.Value, _ []vm.Value) bool {
	return boxed(this, vm.TypeSymbol)
}

// ThisPrimitiveString accepts a string primitive receiver.
func ThisPrimitiveString(this vm.Value, _ []vm.Value) bool { return this.IsString() }

// ThisStringObject accepts a String wrapper object.
func ThisStringObject(this vm.Value, _ []vm.Value) bool {
	return boxed(this, vm.TypeString)
}

func boxed(v vm.Value, t vm.ValueType) bool {
	if !v.IsObject() {
		return false
	}
	p, ok := v.Slot().(*vm.PrimitiveSlot)
	return ok && p.Value.Type() == t
}

// ThisTypedArray accepts a typed array view with an attached, in-bounds buffer.
func ThisTypedArray(this vm.Value, _ []vm.Value) bool {
	return this.IsTypedArray() && !this.AsTypedArray().IsOutOfBounds()
}

// ThisDetachedTypedArray accepts a typed array view whose buffer is detached
// or shrunk below the view.
func ThisDetachedTypedArray(this vm.Value, _ []vm.Value) bool {
	return this.IsTypedArray() && this.AsTypedArray().IsOutOfBounds()
}

// ThisBrand accepts objects whose internal slot carries brand.
func ThisBrand(brand string) Guard {
	return func(this vm.Value, _ []vm.Value) bool {
		return this.HasBrand(brand)
	}
}

// ArgType accepts when argument i has tag t. Missing arguments are undefined.
func ArgType(i int, t vm.ValueType) Guard {
	return func(_ vm.Value, args []vm.Value) bool {
		if i >= len(args) {
			return t == vm.TypeUndefined
		}
		return args[i].Type() == t
	}
}

// ArgCallable accepts when argument i is callable.
func ArgCallable(i int) Guard {
	return func(_ vm.Value, args []vm.Value) bool {
		return i < len(args) && args[i].IsCallable()
	}
}

// And accepts when every guard accepts.
func And(guards ...Guard) Guard {
	return func(this vm.Value, args []vm.Value) bool {
		for _, g := range guards {
			if !g(this, args) {
				return false
			}
		}
		return true
	}
}

// Not inverts g.
func Not(g Guard) Guard {
	return func(this vm.Value, args []vm.Value) bool {
		return !g(this, args)
	}
}
