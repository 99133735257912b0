package intrinsics

import (
	"fmt"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

type accessorPair struct {
	getter *Entry
	setter *Entry
}

// AccessorRegistry pairs getters and setters sharing a key. Each side may be
// registered at most once.
type AccessorRegistry struct {
	pairs map[string]*accessorPair
}

func newAccessorRegistry() *AccessorRegistry {
	return &AccessorRegistry{pairs: make(map[string]*accessorPair)}
}

func (r *AccessorRegistry) pair(key vm.PropertyKey) *accessorPair {
	p, ok := r.pairs[key.Hash()]
	if !ok {
		p = &accessorPair{}
		r.pairs[key.Hash()] = p
	}
	return p
}

func (r *AccessorRegistry) RegisterGetter(key vm.PropertyKey, e *Entry) error {
	p := r.pair(key)
	if p.getter != nil {
		return fmt.Errorf("getter for %s already registered", key.String())
	}
	p.getter = e
	return nil
}

func (r *AccessorRegistry) RegisterSetter(key vm.PropertyKey, e *Entry) error {
	p := r.pair(key)
	if p.setter != nil {
		return fmt.Errorf("setter for %s already registered", key.String())
	}
	p.setter = e
	return nil
}

// Lookup returns the getter and setter for key; absent sides are nil.
func (r *AccessorRegistry) Lookup(key vm.PropertyKey) (getter, setter *Entry) {
	p, ok := r.pairs[key.Hash()]
	if !ok {
		return nil, nil
	}
	return p.getter, p.setter
}
