package tally

// local owns at most one slot for one counter. The slot is allocated and
// registered on first use; after that the handle never takes the registry
// lock again. When the handle is dropped its slot dies with it and the next
// Aggregate folds what it held.
type local struct {
	r *Registry
	e *entry
	s *slot
}

func (l *local) get() *slot {
	if l.s == nil {
		l.s = l.r.newSlot(l.e)
	}
	return l.s
}

// LocalSum is a Sum handle owned by a single goroutine.
type LocalSum struct{ local }

// Inc adds one.
func (l *LocalSum) Inc() { l.get().add(1) }

// IncBy adds n.
func (l *LocalSum) IncBy(n int64) { l.get().add(n) }

// LocalMax is a Max handle owned by a single goroutine.
type LocalMax struct{ local }

// Max records n if it exceeds the current maximum.
func (l *LocalMax) Max(n int64) { l.get().storeMax(n) }

// LocalMin is a Min handle owned by a single goroutine.
type LocalMin struct{ local }

// Min records n if it is below the current minimum.
func (l *LocalMin) Min(n int64) { l.get().storeMin(n) }
