package tally

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect runs the collector until every slot of name whose owner is gone
// has been pruned by Aggregate, checking that each Aggregate still reports
// want.
func collect(t *testing.T, r *Registry, name string, want int64) {
	t.Helper()

	for range 10 {
		runtime.GC()
		require.Equal(t, want, r.Aggregate(name).Value)

		info, ok := r.Info(name)
		require.True(t, ok)
		if info.LiveSlots == 0 {
			return
		}
	}
	t.Fatalf("slots of %q were never pruned", name)
}

func TestAggregateUnknownName(t *testing.T) {
	r := NewRegistry()

	got := r.Aggregate("missing")
	assert.Equal(t, Reading{}, got)
	assert.False(t, got.Empty())

	_, ok := r.Info("missing")
	assert.False(t, ok)
}

func TestSumAcrossGoroutines(t *testing.T) {
	cases := []struct {
		name       string
		goroutines int
		n          int
		v          int64
	}{
		{"none", 0, 10, 3},
		{"zero increments", 4, 0, 3},
		{"zero delta", 4, 10, 0},
		{"one goroutine", 1, 1000, 2},
		{"many goroutines", 16, 500, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			c := r.Sum("bytes")

			var wg sync.WaitGroup
			for range tc.goroutines {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range tc.n {
						c.IncBy(tc.v)
					}
				}()
			}
			wg.Wait()

			want := int64(tc.goroutines*tc.n) * tc.v
			assert.Equal(t, want, r.Aggregate("bytes").Value)
			// non-destructive read
			assert.Equal(t, want, r.Aggregate("bytes").Value)
		})
	}
}

func TestScenarioRequests(t *testing.T) {
	r := NewRegistry()
	requests := r.Sum("requests")

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := requests.Local()
			for range 100 {
				l.Inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, Reading{Mode: ModeSum, Value: 300}, r.Aggregate("requests"))
}

func TestScenarioLatency(t *testing.T) {
	r := NewRegistry()
	latency := r.Average("latency_ms", WithResetOnRead())

	latency.AddValue(10)
	latency.AddValue(20)

	got := r.Aggregate("latency_ms")
	assert.Equal(t, Reading{Mode: ModeAverage, Value: 30, Count: 2}, got)
	mean, ok := got.Mean()
	require.True(t, ok)
	assert.Equal(t, 15.0, mean)

	got = r.Aggregate("latency_ms")
	assert.Equal(t, Reading{Mode: ModeAverage, Value: 0, Count: 0}, got)
	_, ok = got.Mean()
	assert.False(t, ok)
	assert.True(t, got.Empty())
}

func TestScenarioPeakMemory(t *testing.T) {
	r := NewRegistry()
	peak := r.Max("peak_mem")

	a, b := peak.Local(), peak.Local()
	done := make(chan struct{})

	go func() {
		a.Max(50)
		done <- struct{}{}
	}()
	<-done

	go func() {
		b.Max(80)
		done <- struct{}{}
	}()
	<-done

	go func() {
		a.Max(60)
		done <- struct{}{}
	}()
	<-done

	assert.Equal(t, int64(80), r.Aggregate("peak_mem").Value)
}

func TestAverageWithoutSamples(t *testing.T) {
	r := NewRegistry()
	r.Average("latency_ms")

	got := r.Aggregate("latency_ms")
	assert.True(t, got.Empty())
	_, ok := got.Mean()
	assert.False(t, ok)
}

func TestResetIdempotence(t *testing.T) {
	cases := []struct {
		name  string
		mode  Mode
		write func(r *Registry)
	}{
		{"sum", ModeSum, func(r *Registry) { r.Sum("c", WithResetOnRead()).IncBy(9) }},
		{"max", ModeMax, func(r *Registry) { r.Max("c", WithResetOnRead()).Max(9) }},
		{"min", ModeMin, func(r *Registry) { r.Min("c", WithResetOnRead()).Min(9) }},
		{"average", ModeAverage, func(r *Registry) { r.Average("c", WithResetOnRead()).AddValue(9) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			tc.write(r)

			first := r.Aggregate("c")
			assert.Equal(t, int64(9), first.Value)
			assert.False(t, first.Empty())

			second := r.Aggregate("c")
			assert.Equal(t, tc.mode.Identity(), second.Value)
			assert.Zero(t, second.Count)
			assert.True(t, second.Empty() || tc.mode == ModeSum)
		})
	}
}

func TestMaxMinOrderIndependence(t *testing.T) {
	values := []int64{-40, 3, 17, 0, 99, -2, 58, 12, 99, -40}

	for seed := range uint64(20) {
		rng := rand.New(rand.NewPCG(seed, seed))
		shuffled := append([]int64(nil), values...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		r := NewRegistry()
		hi, lo := r.Max("hi"), r.Min("lo")

		var wg sync.WaitGroup
		for _, v := range shuffled {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hi.Local().Max(v)
				lo.Min(v)
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(99), r.Aggregate("hi").Value, "seed %d", seed)
		assert.Equal(t, int64(-40), r.Aggregate("lo").Value, "seed %d", seed)
	}
}

func TestMaxMinWithoutWrites(t *testing.T) {
	r := NewRegistry()
	r.Max("hi")
	r.Min("lo")

	hi := r.Aggregate("hi")
	assert.Equal(t, int64(math.MinInt64), hi.Value)
	assert.True(t, hi.Empty())

	lo := r.Aggregate("lo")
	assert.Equal(t, int64(math.MaxInt64), lo.Value)
	assert.True(t, lo.Empty())
}

func TestFirstDeclarationWins(t *testing.T) {
	r := NewRegistry()
	r.Sum("shared")
	r.Max("shared", WithResetOnRead())

	info, ok := r.Info("shared")
	require.True(t, ok)
	assert.Equal(t, ModeSum, info.Mode)
	assert.False(t, info.ResetOnRead)
}

func TestNamesIncludeInternal(t *testing.T) {
	r := NewRegistry()
	r.Sum("requests")
	r.Average("latency_ms")
	r.Max("peak_mem")

	names := r.Names()
	assert.Equal(t, []string{"latency_ms", "latency_ms" + averageSuffix, "peak_mem", "requests"}, names)
	assert.True(t, IsInternal(names[1]))
	assert.False(t, IsInternal(names[0]))
}

func TestLocalRegistersOnce(t *testing.T) {
	r := NewRegistry()
	l := r.Sum("ops").Local()

	info, _ := r.Info("ops")
	assert.Zero(t, info.LiveSlots, "slot is allocated on first increment")

	for range 100 {
		l.Inc()
	}

	info, _ = r.Info("ops")
	assert.Equal(t, 1, info.LiveSlots)
	assert.Equal(t, int64(100), r.Aggregate("ops").Value)
	runtime.KeepAlive(l)
}

func TestDeadOwnerCountedOnce(t *testing.T) {
	for _, reset := range []bool{false, true} {
		t.Run(map[bool]string{false: "keep", true: "reset"}[reset], func(t *testing.T) {
			r := NewRegistry()
			var opts []Option
			if reset {
				opts = append(opts, WithResetOnRead())
			}
			c := r.Sum("bytes", opts...)

			done := make(chan struct{})
			go func() {
				defer close(done)
				l := c.Local()
				l.IncBy(42)
			}()
			<-done

			if !reset {
				collect(t, r, "bytes", 42)
				return
			}

			// wait for the owner to go without reading, a read would reset it
			for range 10 {
				runtime.GC()
				if r.slotDead("bytes") {
					break
				}
			}
			require.True(t, r.slotDead("bytes"))

			assert.Equal(t, int64(42), r.Aggregate("bytes").Value)
			assert.Equal(t, int64(0), r.Aggregate("bytes").Value)

			info, _ := r.Info("bytes")
			assert.Zero(t, info.LiveSlots)
		})
	}
}

func TestDeadMaxOwnerFolded(t *testing.T) {
	r := NewRegistry()
	peak := r.Max("peak")

	done := make(chan struct{})
	go func() {
		defer close(done)
		peak.Local().Max(77)
	}()
	<-done

	keep := peak.Local()
	keep.Max(12)

	collectUntil(t, r, "peak", 1)
	assert.Equal(t, int64(77), r.Aggregate("peak").Value)
	runtime.KeepAlive(keep)
}

func TestPooledSlotsSurviveCollection(t *testing.T) {
	r := NewRegistry()
	c := r.Sum("pooled")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	// the pool drops its slots after two cycles
	for range 3 {
		runtime.GC()
		assert.Equal(t, int64(8000), r.Aggregate("pooled").Value)
	}

	c.Inc()
	assert.Equal(t, int64(8001), r.Aggregate("pooled").Value)
}

func TestUnreadCounterSlotsStayBounded(t *testing.T) {
	r := NewRegistry()
	c := r.Sum("unread")
	peak := r.Max("unread_peak")

	const cycles = 2000
	// at most a primary and a victim slot per P are ever reachable
	bound := max(minPruneSlots, 4*runtime.GOMAXPROCS(0))

	for i := range cycles {
		c.Inc()
		peak.Max(int64(i))
		runtime.GC()

		for _, name := range []string{"unread", "unread_peak"} {
			info, ok := r.Info(name)
			require.True(t, ok)
			require.LessOrEqual(t, info.LiveSlots, bound, "cycle %d", i)
		}
	}

	assert.Equal(t, int64(cycles), r.Aggregate("unread").Value)
	assert.Equal(t, int64(cycles-1), r.Aggregate("unread_peak").Value)
}

func TestResetUnderConcurrentWrites(t *testing.T) {
	r := NewRegistry()
	c := r.Sum("events", WithResetOnRead())

	const writers, perWriter = 8, 20000

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := c.Local()
			for i := range perWriter {
				if i%2 == 0 {
					l.Inc()
				} else {
					c.Inc()
				}
			}
		}()
	}

	var seen int64
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
				seen += r.Aggregate("events").Value
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	seen += r.Aggregate("events").Value
	assert.Equal(t, int64(writers*perWriter), seen)
}

// slotDead reports whether some registered slot of name has lost its owner.
func (r *Registry) slotDead(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.entries[name].slots {
		if !ref.alive() {
			return true
		}
	}
	return false
}

// collectUntil runs the collector until name has at most n slots left after
// an Aggregate.
func collectUntil(t *testing.T, r *Registry, name string, n int) {
	t.Helper()

	for range 10 {
		runtime.GC()
		r.Aggregate(name)
		if info, _ := r.Info(name); info.LiveSlots <= n {
			return
		}
	}
	t.Fatalf("slots of %q were never pruned", name)
}
