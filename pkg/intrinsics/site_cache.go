package intrinsics

import (
	"fmt"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

// CacheState represents the different states of a call-site cache
type CacheState uint8

const (
	CacheStateUninitialized CacheState = iota
	CacheStateMonomorphic              // Single receiver tag cached
	CacheStatePolymorphic              // Multiple tags cached (up to 4)
	CacheStateMegamorphic              // Too many tags, always resolve
)

func (s CacheState) String() string {
	switch s {
	case CacheStateMonomorphic:
		return "monomorphic"
	case CacheStatePolymorphic:
		return "polymorphic"
	case CacheStateMegamorphic:
		return "megamorphic"
	}
	return "uninitialized"
}

// receiverTag is the static shape a guard may inspect: value type plus slot brand.
type receiverTag struct {
	typ   vm.ValueType
	brand string
}

func tagOf(v vm.Value) receiverTag {
	t := receiverTag{typ: v.Type()}
	if s := v.Slot(); s != nil {
		t.brand = s.Brand()
	}
	return t
}

type siteCacheEntry struct {
	tag     receiverTag
	variant int
}

// SiteCache remembers the last resolved variant per receiver tag for one
// (entry, invocation kind) call site. A hit re-checks the cached guard, and
// fallback resolutions are never cached, so results match uncached
// resolution for any variant list whose reachable guards are mutually exclusive.
type SiteCache struct {
	state      CacheState
	entries    [4]siteCacheEntry
	entryCount int
	hitCount   uint32
	missCount  uint32
}

// Resolve is Resolve with caching.
func (c *SiteCache) Resolve(e *Entry, kind InvocationKind, this vm.Value, args []vm.Value) (*Variant, error) {
	vs := e.variants(kind)
	tag := tagOf(this)
	if i, ok := c.lookup(tag); ok && vs[i].Guard(this, args) {
		c.hitCount++
		return &vs[i], nil
	}
	c.missCount++
	i, err := resolveIndex(e, kind, this, args)
	if err != nil {
		return nil, err
	}
	if !vs[i].Fallback {
		c.update(tag, i)
	}
	return &vs[i], nil
}

func (c *SiteCache) lookup(tag receiverTag) (int, bool) {
	switch c.state {
	case CacheStateMonomorphic:
		if c.entries[0].tag == tag {
			return c.entries[0].variant, true
		}
	case CacheStatePolymorphic:
		for i := 0; i < c.entryCount; i++ {
			if c.entries[i].tag == tag {
				// Move hit entry to front
				if i > 0 {
					entry := c.entries[i]
					copy(c.entries[1:i+1], c.entries[0:i])
					c.entries[0] = entry
				}
				return c.entries[0].variant, true
			}
		}
	}
	return -1, false
}

func (c *SiteCache) update(tag receiverTag, variant int) {
	switch c.state {
	case CacheStateUninitialized:
		c.state = CacheStateMonomorphic
		c.entries[0] = siteCacheEntry{tag: tag, variant: variant}
		c.entryCount = 1
	case CacheStateMonomorphic, CacheStatePolymorphic:
		for i := 0; i < c.entryCount; i++ {
			if c.entries[i].tag == tag {
				c.entries[i].variant = variant
				return
			}
		}
		if c.entryCount == len(c.entries) {
			c.state = CacheStateMegamorphic
			c.entryCount = 0
			return
		}
		c.entries[c.entryCount] = siteCacheEntry{tag: tag, variant: variant}
		c.entryCount++
		c.state = CacheStatePolymorphic
	}
}

// Reset drops all cached entries and counters.
func (c *SiteCache) Reset() {
	*c = SiteCache{}
}

func (c *SiteCache) State() CacheState { return c.state }

// Stats returns the hit and miss counters.
func (c *SiteCache) Stats() (hits, misses uint32) {
	return c.hitCount, c.missCount
}

func (c *SiteCache) String() string {
	return fmt.Sprintf("%s hits=%d misses=%d", c.state, c.hitCount, c.missCount)
}
