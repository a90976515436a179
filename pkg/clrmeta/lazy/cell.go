// Package lazy implements the concurrency-safe lazy field and
// owned-collection primitives the member model is built from (§4.F).
package lazy

import "sync/atomic"

// Cell is a single-init slot: the first reader to observe it empty calls
// init and publishes the result; concurrent readers racing on first
// touch may all invoke init, but only one result is ever published and
// every reader observes that same value (§5's "safe concurrency" rule,
// §8's "lazy cell idempotence" invariant).
type Cell[T any] struct {
	ptr atomic.Pointer[T]
}

// Get returns the cell's value, computing it via init on first access.
// init must be side-effect-free beyond its returned value, since a
// benign race may call it more than once (§4.F, §9).
func (c *Cell[T]) Get(init func() T) T {
	if v := c.ptr.Load(); v != nil {
		return *v
	}
	v := init()
	c.ptr.CompareAndSwap(nil, &v)
	return *c.ptr.Load()
}

// Set publishes v unconditionally, bypassing init. This models a user
// override of a derived field (§3's "Lifecycle": loader-created members
// are immutable in their raw row but mutable in derived fields).
func (c *Cell[T]) Set(v T) {
	c.ptr.Store(&v)
}

// Reset clears the cell back to uninitialized, so the next Get
// recomputes via init. Used by invalidation on a dependency write (e.g.
// TypeDefinition.FullName after Name/Namespace/DeclaringType changes).
func (c *Cell[T]) Reset() {
	c.ptr.Store(nil)
}

// IsSet reports whether the cell has been initialized or set, without
// triggering initialization.
func (c *Cell[T]) IsSet() bool {
	return c.ptr.Load() != nil
}
