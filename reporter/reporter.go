// Package reporter periodically aggregates every counter of a tally registry
// and appends one JSON record per cycle to a sink.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudbox/tally"
	"github.com/cloudbox/tally/stats"
)

// ErrInvalidConfig is returned by New for a config it cannot run with.
var ErrInvalidConfig = errors.New("invalid reporter config")

// Source is the read side of a counter registry. *tally.Registry implements
// it.
type Source interface {
	Names() []string
	Aggregate(name string) tally.Reading
}

// Config controls what a Reporter emits and how often.
type Config struct {
	Interval time.Duration   `yaml:"interval"`
	Include  []string        `yaml:"include"`
	Exclude  []string        `yaml:"exclude"`
	Rename   []tally.Rewrite `yaml:"rename"`
}

// Reporter reads a Source on a fixed interval. Its only effect on the
// counters is the reset that Aggregate performs on reset-on-read counters.
type Reporter struct {
	src      Source
	sink     io.Writer
	interval time.Duration
	filter   tally.Filterer
	rename   tally.Rewriter

	log   zerolog.Logger
	stats *stats.Stats
	start time.Time
	now   func() time.Time

	mu   sync.Mutex // serialises cycles
	last atomic.Pointer[Record]
}

// Option configures a Reporter constructed by New.
type Option func(*Reporter)

// WithLogger sets the logger for the reporter's own diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reporter) { r.log = l }
}

// WithStats makes the reporter account its cycles in s.
func WithStats(s *stats.Stats) Option {
	return func(r *Reporter) { r.stats = s }
}

// New creates a Reporter writing to sink. Record times are measured from
// this call.
func New(src Source, sink io.Writer, c Config, opts ...Option) (*Reporter, error) {
	if c.Interval <= 0 {
		return nil, fmt.Errorf("interval %v: %w", c.Interval, ErrInvalidConfig)
	}

	filter, err := tally.NewFilterer(c.Include, c.Exclude)
	if err != nil {
		return nil, fmt.Errorf("name filter: %w", err)
	}

	rename, err := tally.NewRewriter(c.Rename)
	if err != nil {
		return nil, fmt.Errorf("name rewrite: %w", err)
	}

	r := &Reporter{
		src:      src,
		sink:     sink,
		interval: c.Interval,
		filter:   filter,
		rename:   rename,
		log:      zerolog.Nop(),
		stats:    stats.New(),
		now:      time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	r.start = r.now()

	return r, nil
}

// Collect aggregates every reported counter once and returns the record
// without writing it.
func (r *Reporter) Collect() Record {
	names := r.src.Names()

	rec := Record{
		Time:   r.now().Sub(r.start).Seconds(),
		Values: make([]Value, 0, len(names)),
	}

	for _, name := range names {
		if !r.filter(name) {
			continue
		}

		rec.Values = append(rec.Values, newValue(r.rename(name), r.src.Aggregate(name)))
	}

	return rec
}

// Flush runs one cycle: it collects a record and appends it to the sink.
// The record is returned, and kept as Last, even when writing it fails.
func (r *Reporter) Flush() (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.Collect()
	r.last.Store(&rec)
	r.stats.Cycles.Add(1)

	if err := rec.Encode(r.sink); err != nil {
		r.stats.Failed.Add(1)
		r.stats.Failing.Add(1)
		return rec, fmt.Errorf("writing record: %w", err)
	}

	r.stats.Written.Add(1)
	r.stats.Failing.Store(0)
	r.stats.Emitted.Add(int64(len(rec.Values)))

	return rec, nil
}

// Last returns the most recent record, if a cycle has run.
func (r *Reporter) Last() (Record, bool) {
	rec := r.last.Load()
	if rec == nil {
		return Record{}, false
	}
	return *rec, true
}

// Stats returns the reporter's activity counters.
func (r *Reporter) Stats() stats.Snapshot {
	return r.stats.Snapshot()
}

// Run flushes every interval until ctx is done, then flushes once more so
// that the tail since the last tick is not lost. Write failures are logged
// and do not stop the loop.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().
		Stringer("interval", r.interval).
		Msg("Reporter Started")

	for {
		select {
		case <-ctx.Done():
			r.flush()
			r.log.Info().Msg("Reporter Stopped")
			return nil

		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *Reporter) flush() {
	rec, err := r.Flush()
	if err != nil {
		r.log.Error().
			Err(err).
			Msg("Record Write Failed")
		return
	}

	r.log.Trace().
		Float64("time", rec.Time).
		Int("counters", len(rec.Values)).
		Msg("Record Written")
}
