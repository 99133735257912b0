package intrinsics

import (
	"errors"
	"fmt"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

// ErrNoVariant reports a variant list without a matching fallback. It signals
// a registration bug, never a script-visible error.
var ErrNoVariant = errors.New("no implementation variant matched")

// variants returns the list consulted for an invocation kind.
func (e *Entry) variants(kind InvocationKind) []Variant {
	if kind == Call {
		return e.Call
	}
	return e.Construct
}

// Resolve returns the first variant of e whose guard accepts (this, args).
func Resolve(e *Entry, kind InvocationKind, this vm.Value, args []vm.Value) (*Variant, error) {
	i, err := resolveIndex(e, kind, this, args)
	if err != nil {
		return nil, err
	}
	return &e.variants(kind)[i], nil
}

func resolveIndex(e *Entry, kind InvocationKind, this vm.Value, args []vm.Value) (int, error) {
	vs := e.variants(kind)
	for i := range vs {
		if vs[i].Guard(this, args) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s (%s): %w", e.QualifiedName(), kind, ErrNoVariant)
}

// validateVariants checks that vs ends with exactly one fallback.
func validateVariants(vs []Variant) error {
	if len(vs) == 0 {
		return nil
	}
	for i, v := range vs {
		if v.Guard == nil || v.Impl == nil {
			return fmt.Errorf("variant %q is incomplete", v.Name)
		}
		if v.Fallback && i != len(vs)-1 {
			return fmt.Errorf("fallback variant %q is not last", v.Name)
		}
	}
	if !vs[len(vs)-1].Fallback {
		return errors.New("missing fallback variant")
	}
	return nil
}
