// Package stats provides atomic counters describing the reporter's own activity.
package stats

import "sync/atomic"

// Stats holds atomic counters for reporter cycles.
type Stats struct {
	Cycles  atomic.Int64
	Written atomic.Int64
	Failed  atomic.Int64
	Emitted atomic.Int64
	// Failing counts failed cycles since the last successful write.
	Failing atomic.Int64
}

// New returns a zero-valued Stats ready for use.
func New() *Stats {
	return &Stats{}
}

// Snapshot is a plain-struct copy of all counters at a point in time.
type Snapshot struct {
	Cycles  int64
	Written int64
	Failed  int64
	Emitted int64
	Failing int64
}

// Snapshot reads all counters atomically and returns a plain copy.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Cycles:  s.Cycles.Load(),
		Written: s.Written.Load(),
		Failed:  s.Failed.Load(),
		Emitted: s.Emitted.Load(),
		Failing: s.Failing.Load(),
	}
}

// Healthy reports whether the latest cycle wrote its record. A reporter that
// has not run a cycle yet is healthy.
func (s Snapshot) Healthy() bool {
	return s.Failing == 0
}
