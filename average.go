package tally

// Average tracks a running total and a sample count as two Sum reductions.
// The total lives under the declared name, the count under a private
// companion name that reporters skip.
//
// AddValue updates the two independently, so a concurrent Aggregate may see
// a total without its matching count or the other way round. Readers get an
// approximation, never a torn integer.
type Average struct {
	r     *Registry
	sum   *entry
	count *entry
}

// Average declares (or looks up) an Average counter. The reset policy
// applies to both halves.
func (r *Registry) Average(name string, opts ...Option) *Average {
	return &Average{
		r:     r,
		sum:   r.declare(name, ModeAverage, opts),
		count: r.declare(name+averageSuffix, ModeSum, opts),
	}
}

// Name returns the declared name.
func (c *Average) Name() string { return c.sum.name }

// AddValue records one sample.
func (c *Average) AddValue(v int64) {
	s := c.sum.pool.Get().(*slot)
	s.add(v)
	c.sum.pool.Put(s)

	n := c.count.pool.Get().(*slot)
	n.add(1)
	c.count.pool.Put(n)
}

// Local returns a handle with slots of its own.
func (c *Average) Local() *LocalAverage {
	return &LocalAverage{
		sum:   local{r: c.r, e: c.sum},
		count: local{r: c.r, e: c.count},
	}
}

// LocalAverage is an Average handle owned by a single goroutine.
type LocalAverage struct {
	sum   local
	count local
}

// AddValue records one sample.
func (l *LocalAverage) AddValue(v int64) {
	l.sum.get().add(v)
	l.count.get().add(1)
}
