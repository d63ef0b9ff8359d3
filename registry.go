package tally

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// minPruneSlots is the slot count below which registering a slot never
// prunes the entry.
const minPruneSlots = 64

// averageSuffix marks the companion entry that holds an average's sample
// count. Names carrying it are internal and never reported.
const averageSuffix = "$samples"

// IsInternal reports whether name belongs to a derived counter that is not
// meant to be reported on its own.
func IsInternal(name string) bool {
	return strings.HasSuffix(name, averageSuffix)
}

// Registry maps counter names to their per-owner slots.
//
// A single mutex guards the whole map. It is taken when a counter is
// declared, when an owner registers its first slot, and on Aggregate; the
// increment path never touches it.
type Registry struct {
	log zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	name        string
	mode        Mode
	resetOnRead bool

	// guarded by Registry.mu
	slots   []slotRef
	dead    int64
	pruneAt int

	// implicit owners: slots cached per P for handle methods
	pool sync.Pool
}

// RegistryOption configures a Registry constructed by NewRegistry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for registry diagnostics.
func WithLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		log:     zerolog.Nop(),
		entries: make(map[string]*entry),
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// Option configures a counter declaration.
type Option func(*declaration)

type declaration struct {
	resetOnRead bool
}

// WithResetOnRead makes every Aggregate of the counter report only what
// happened since the previous Aggregate.
func WithResetOnRead() Option {
	return func(d *declaration) { d.resetOnRead = true }
}

// declare returns the entry for name, creating it if needed. The first
// declaration fixes mode and reset policy; later ones are plain look-ups and
// are not checked against it.
func (r *Registry) declare(name string, mode Mode, opts []Option) *entry {
	var d declaration
	for _, o := range opts {
		if o != nil {
			o(&d)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[name]; ok {
		return e
	}

	e := &entry{
		name:        name,
		mode:        mode,
		resetOnRead: d.resetOnRead,
		dead:        mode.Identity(),
		pruneAt:     minPruneSlots,
	}
	e.pool.New = func() any { return r.newSlot(e) }
	r.entries[name] = e

	r.log.Debug().
		Str("counter", name).
		Stringer("mode", mode).
		Bool("reset_on_read", d.resetOnRead).
		Msg("Counter Declared")

	return e
}

// newSlot allocates a slot for e and registers a weak reference to it.
//
// Pooled slots are dropped on every GC and replaced here, so an entry nobody
// aggregates would keep growing. Once it has doubled since its last prune,
// dead slots are folded and dropped before the new one is added.
func (r *Registry) newSlot(e *entry) *slot {
	s, ref := newSlot(e.mode.Identity())

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(e.slots) >= e.pruneAt {
		if pruned := e.prune(); pruned > 0 {
			r.log.Trace().
				Str("counter", e.name).
				Int("pruned", pruned).
				Int("live", len(e.slots)).
				Msg("Dead Slots Pruned")
		}
	}
	e.slots = append(e.slots, ref)

	return s
}

// prune folds the final value of every slot whose owner is gone into e.dead
// and drops it. It returns the number of slots dropped. Callers hold
// Registry.mu.
func (e *entry) prune() int {
	live := e.slots[:0]
	for _, ref := range e.slots {
		if !ref.alive() {
			e.dead = e.mode.combine(e.dead, ref.c.v.Load())
			continue
		}
		live = append(live, ref)
	}

	pruned := len(e.slots) - len(live)
	clear(e.slots[len(live):])
	e.slots = live
	e.pruneAt = max(2*len(live), minPruneSlots)

	return pruned
}

// Names returns every declared name in sorted order, internal ones included.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.entries))
}

// Info describes a declared counter.
type Info struct {
	Name        string
	Mode        Mode
	ResetOnRead bool
	// LiveSlots counts registered slots, including ones whose owner has gone
	// but that have not been pruned yet.
	LiveSlots int
}

// Info returns the declaration of name, if any.
func (r *Registry) Info(name string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return Info{}, false
	}
	return Info{Name: e.name, Mode: e.mode, ResetOnRead: e.resetOnRead, LiveSlots: len(e.slots)}, true
}

// Reading is the result of one Aggregate.
type Reading struct {
	Mode Mode
	// Value is the reduced value: the sum for Sum and Average, the extreme
	// for Max and Min.
	Value int64
	// Count is the number of samples behind an Average and zero otherwise.
	Count int64
}

// Mean returns Value/Count for an Average reading. It reports false when
// there are no samples.
func (r Reading) Mean() (float64, bool) {
	if r.Count == 0 {
		return 0, false
	}
	return float64(r.Value) / float64(r.Count), true
}

// Empty reports whether the reading carries no data: an Average without
// samples, or a Max/Min nobody wrote to. A Sum is never empty.
func (r Reading) Empty() bool {
	switch r.Mode {
	case ModeAverage:
		return r.Count == 0
	case ModeMax, ModeMin:
		return r.Value == r.Mode.Identity()
	default:
		return false
	}
}

// Aggregate reduces every slot of name into one Reading. An unknown name
// yields the zero Reading.
//
// Slots are read one at a time, so the result is not a point-in-time
// snapshot. An increment racing with a reset lands in exactly one of the two
// readings; none is lost and none is counted twice.
//
// Slots whose owner is gone have their final value folded into the entry
// exactly once and are then dropped.
func (r *Registry) Aggregate(name string) Reading {
	value, mode, ok := r.reduce(name)
	if !ok {
		return Reading{}
	}

	res := Reading{Mode: mode, Value: value}
	if mode == ModeAverage {
		// separate lock acquisition; reduce must not nest
		res.Count, _, _ = r.reduce(name + averageSuffix)
	}
	return res
}

func (r *Registry) reduce(name string) (int64, Mode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return 0, ModeSum, false
	}

	pruned := e.prune()

	identity := e.mode.Identity()
	result := identity

	for _, ref := range e.slots {
		var v int64
		if e.resetOnRead {
			v = ref.c.v.Swap(identity)
		} else {
			v = ref.c.v.Load()
		}
		result = e.mode.combine(result, v)
	}

	result = e.mode.combine(result, e.dead)
	if e.resetOnRead {
		e.dead = identity
	}

	if pruned > 0 {
		r.log.Trace().
			Str("counter", name).
			Int("pruned", pruned).
			Int("live", len(e.slots)).
			Msg("Dead Slots Pruned")
	}

	return result, e.mode, true
}
