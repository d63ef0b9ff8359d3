package tally

import "sync/atomic"

// Guard holds a delta added to a Sum counter until Release gives it back.
// It tracks quantities that are outstanding for exactly one scope, such as
// in-flight requests or bytes currently buffered:
//
//	defer inflight.Hold(1).Release()
type Guard struct {
	c        *Sum
	delta    int64
	released atomic.Bool
}

// Hold adds delta to the counter and returns a Guard that subtracts it again.
func (c *Sum) Hold(delta int64) *Guard {
	c.IncBy(delta)
	return &Guard{c: c, delta: delta}
}

// Release subtracts the held delta. Only the first call has an effect.
func (g *Guard) Release() {
	if g.released.CompareAndSwap(false, true) {
		g.c.sub(g.delta)
	}
}
