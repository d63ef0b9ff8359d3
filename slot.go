package tally

import (
	"runtime"
	"sync/atomic"
	"weak"
)

// cell is padded to a cache line so owners writing neighbouring cells do not
// contend.
type cell struct {
	v atomic.Int64
	_ [56]byte
}

// slot is one owner's storage for one counter. Only the owner writes to it,
// except for the swap a reset-on-read aggregation performs.
//
// The registry keeps the cell strongly and the slot weakly: once the slot is
// unreachable its cell is frozen, so the last value can be folded safely.
type slot struct {
	c *cell
}

// slotRef is the registry's view of a slot.
type slotRef struct {
	owner weak.Pointer[slot]
	c     *cell
}

func newSlot(identity int64) (*slot, slotRef) {
	s := &slot{c: &cell{}}
	s.c.v.Store(identity)
	return s, slotRef{owner: weak.Make(s), c: s.c}
}

// KeepAlive pins the slot until the atomic has landed: a slot must never be
// seen dead while its cell is still being written.

func (s *slot) add(n int64) {
	s.c.v.Add(n)
	runtime.KeepAlive(s)
}

func (s *slot) storeMax(n int64) {
	for {
		cur := s.c.v.Load()
		if n <= cur || s.c.v.CompareAndSwap(cur, n) {
			break
		}
	}
	runtime.KeepAlive(s)
}

func (s *slot) storeMin(n int64) {
	for {
		cur := s.c.v.Load()
		if n >= cur || s.c.v.CompareAndSwap(cur, n) {
			break
		}
	}
	runtime.KeepAlive(s)
}

// alive reports whether the owning slot can still be written to.
func (r slotRef) alive() bool {
	return r.owner.Value() != nil
}
