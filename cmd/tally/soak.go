package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cloudbox/tally"
	"github.com/cloudbox/tally/reporter"
	"github.com/cloudbox/tally/stats"
)

type soakCmd struct {
	Config string `type:"path" default:"${config_file}" env:"TALLY_CONFIG" help:"Config file path"`
}

// workload is the set of counters a soak worker drives.
type workload struct {
	ops      *tally.Sum
	bytes    *tally.Sum
	inflight *tally.Sum
	latency  *tally.Average
	peak     *tally.Max
	low      *tally.Min
}

func newWorkload(r *tally.Registry) *workload {
	return &workload{
		ops:      r.Sum("soak_ops", tally.WithResetOnRead()),
		bytes:    r.Sum("soak_bytes", tally.WithResetOnRead()),
		inflight: r.Sum("soak_inflight"),
		latency:  r.Average("soak_latency_us", tally.WithResetOnRead()),
		peak:     r.Max("soak_peak_batch", tally.WithResetOnRead()),
		low:      r.Min("soak_low_batch", tally.WithResetOnRead()),
	}
}

// op performs one synthetic operation. Every counter is touched through the
// worker's own local handles except inflight, which goes through the shared
// handle so that the guard is exercised.
func (w *workload) op(rnd *rand.Rand, l *workerCounters) {
	defer w.inflight.Hold(1).Release()

	batch := rnd.Int64N(1024) + 1
	started := time.Now()

	l.ops.Inc()
	l.bytes.IncBy(batch)
	l.peak.Max(batch)
	l.low.Min(batch)
	l.latency.AddValue(time.Since(started).Microseconds())
}

type workerCounters struct {
	ops     *tally.LocalSum
	bytes   *tally.LocalSum
	latency *tally.LocalAverage
	peak    *tally.LocalMax
	low     *tally.LocalMin
}

func (w *workload) local() *workerCounters {
	return &workerCounters{
		ops:     w.ops.Local(),
		bytes:   w.bytes.Local(),
		latency: w.latency.Local(),
		peak:    w.peak.Local(),
		low:     w.low.Local(),
	}
}

// run drives the workload from cfg.Workers goroutines until ctx is done.
// A zero rate leaves the workers unthrottled.
func (w *workload) run(ctx context.Context, cfg soakConfig) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := range cfg.Workers {
		g.Go(func() error {
			limiter := rate.NewLimiter(rate.Inf, 1)
			if cfg.Rate > 0 {
				limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
			}

			rnd := rand.New(rand.NewPCG(uint64(i), uint64(time.Now().UnixNano())))
			counters := w.local()

			for {
				if err := limiter.Wait(gctx); err != nil {
					// context done
					return nil
				}

				w.op(rnd, counters)
			}
		})
	}

	return g.Wait()
}

func (c soakCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	reg := tally.NewRegistry(tally.WithLogger(tally.GetLogger("registry", cfg.Verbosity)))
	if !tally.SetDefault(reg) {
		return errors.New("default registry already in use")
	}

	sink, err := reporter.OpenSink(cfg.Sink)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn().
				Err(err).
				Msg("Sink Close Failed")
		}
	}()

	rep, err := reporter.New(tally.Default(), sink, cfg.reporter(),
		reporter.WithLogger(tally.GetLogger("reporter", cfg.Verbosity)),
		reporter.WithStats(stats.New()),
	)
	if err != nil {
		return fmt.Errorf("reporter: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Soak.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Soak.Duration)
		defer cancel()
	}

	// reporter context outlives the workload so the final flush sees every op
	repCtx, repStop := context.WithCancel(context.Background())
	repDone := make(chan error, 1)
	go func() { repDone <- rep.Run(repCtx) }()

	startHTTPServers(cfg, getRouter(rep))
	if cfg.StatsInterval > 0 {
		go reportStats(ctx, rep, cfg.StatsInterval)
	}

	notifyReady()

	log.Info().
		Int("workers", cfg.Soak.Workers).
		Float64("rate", cfg.Soak.Rate).
		Stringer("duration", cfg.Soak.Duration).
		Msg("Soak Started")

	werr := newWorkload(tally.Default()).run(ctx, cfg.Soak)

	repStop()
	if err := <-repDone; err != nil {
		return fmt.Errorf("reporter: %w", err)
	}

	snap := rep.Stats()
	log.Info().
		Int64("cycles", snap.Cycles).
		Int64("written", snap.Written).
		Int64("failed", snap.Failed).
		Msg("Soak Finished")

	return werr
}

func notifyReady() {
	ready.Store(true)

	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	switch {
	case err != nil:
		log.Warn().
			Err(err).
			Msg("Failed notifying systemd of readiness")
	case sent:
		log.Debug().Msg("Notified systemd of readiness")
	}
}
