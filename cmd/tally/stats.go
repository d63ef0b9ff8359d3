package main

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog/log"

	"github.com/cloudbox/tally/reporter"
)

func reportStats(ctx context.Context, rep *reporter.Reporter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := rep.Stats()

		log.Info().
			Int64("cycles", snap.Cycles).
			Int64("written", snap.Written).
			Int64("failed", snap.Failed).
			Int64("emitted", snap.Emitted).
			Msg("Reporter Stats")

		status := fmt.Sprintf(
			"STATUS=cycles: %d | written: %d | failed: %d | emitted: %d",
			snap.Cycles, snap.Written, snap.Failed, snap.Emitted,
		)
		_, _ = daemon.SdNotify(false, status)

		if !snap.Healthy() {
			log.Error().
				Int64("failing", snap.Failing).
				Msg("Reporter Unhealthy")
		}
	}
}
