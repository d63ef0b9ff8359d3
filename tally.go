// Package tally provides process-wide named counters that can be bumped from
// any goroutine without locking and read back, reduced across goroutines, by
// a periodic consumer.
//
// A counter is declared once by name with one of four modes (Sum, Max, Min,
// Average). Each goroutine, or each P for the plain handle methods, writes to
// a slot of its own; the Registry keeps weak references to those slots and
// reduces them on Aggregate. Slots whose owner has gone away are folded into
// the counter exactly once and then dropped, so nothing written is lost.
//
//	var (
//		requests = tally.NewSum("requests")
//		latency  = tally.NewAverage("latency_ms", tally.WithResetOnRead())
//		inflight = tally.NewSum("inflight")
//	)
//
//	func handle() {
//		defer inflight.Hold(1).Release()
//		requests.Inc()
//		latency.AddValue(12)
//	}
package tally

import "errors"

// ErrInvalidPattern is returned when a name filter or rename rule does not
// compile.
var ErrInvalidPattern = errors.New("invalid pattern")
