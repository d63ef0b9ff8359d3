package tally

// Handles are cheap, immutable and safe for concurrent use. Declare them once
// per call site and keep them, typically in a package-level variable:
//
//	var requests = tally.NewSum("requests")
//
// Their methods pick up a slot cached for the current P, so no lock is taken
// once the cache is warm. Goroutines that increment in a tight loop can use
// Local for a slot of their own.

// Sum is a counter whose slots are added together.
type Sum struct {
	r *Registry
	e *entry
}

// Sum declares (or looks up) a Sum counter.
func (r *Registry) Sum(name string, opts ...Option) *Sum {
	return &Sum{r: r, e: r.declare(name, ModeSum, opts)}
}

// Name returns the declared name.
func (c *Sum) Name() string { return c.e.name }

// Inc adds one.
func (c *Sum) Inc() { c.IncBy(1) }

// IncBy adds n.
func (c *Sum) IncBy(n int64) {
	s := c.e.pool.Get().(*slot)
	s.add(n)
	c.e.pool.Put(s)
}

// sub removes n; only a Guard gives a value back.
func (c *Sum) sub(n int64) { c.IncBy(-n) }

// Local returns a handle with a slot of its own. It must be used by one
// goroutine at a time.
func (c *Sum) Local() *LocalSum {
	return &LocalSum{local: local{r: c.r, e: c.e}}
}

// Max is a counter that keeps the largest value written.
type Max struct {
	r *Registry
	e *entry
}

// Max declares (or looks up) a Max counter.
func (r *Registry) Max(name string, opts ...Option) *Max {
	return &Max{r: r, e: r.declare(name, ModeMax, opts)}
}

// Name returns the declared name.
func (c *Max) Name() string { return c.e.name }

// Max records n if it exceeds the current maximum.
func (c *Max) Max(n int64) {
	s := c.e.pool.Get().(*slot)
	s.storeMax(n)
	c.e.pool.Put(s)
}

// Local returns a handle with a slot of its own.
func (c *Max) Local() *LocalMax {
	return &LocalMax{local: local{r: c.r, e: c.e}}
}

// Min is a counter that keeps the smallest value written.
type Min struct {
	r *Registry
	e *entry
}

// Min declares (or looks up) a Min counter.
func (r *Registry) Min(name string, opts ...Option) *Min {
	return &Min{r: r, e: r.declare(name, ModeMin, opts)}
}

// Name returns the declared name.
func (c *Min) Name() string { return c.e.name }

// Min records n if it is below the current minimum.
func (c *Min) Min(n int64) {
	s := c.e.pool.Get().(*slot)
	s.storeMin(n)
	c.e.pool.Put(s)
}

// Local returns a handle with a slot of its own.
func (c *Min) Local() *LocalMin {
	return &LocalMin{local: local{r: c.r, e: c.e}}
}
