package reporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudbox/tally"
)

func TestCollectorExportsLastRecord(t *testing.T) {
	reg := tally.NewRegistry()
	reg.Sum("requests", tally.WithResetOnRead()).IncBy(12)
	reg.Max("peak.mem").Max(80)
	reg.Average("latency_ms")

	r, err := New(reg, &bytes.Buffer{}, Config{Interval: time.Second})
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(NewCollector(r))

	mfs, err := promReg.Gather()
	require.NoError(t, err)
	assert.Empty(t, mfs, "nothing before the first cycle")

	_, err = r.Flush()
	require.NoError(t, err)

	// scraping twice must not consume the reset-on-read delta
	for range 2 {
		mfs, err = promReg.Gather()
		require.NoError(t, err)

		got := make(map[string]float64)
		for _, mf := range mfs {
			got[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		}
		assert.Equal(t, map[string]float64{
			"tally_requests": 12,
			"tally_peak_mem": 80,
		}, got)
	}
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "tally_requests", metricName("requests"))
	assert.Equal(t, "tally_db_peak_mem", metricName("db.peak-mem"))
	assert.Equal(t, "tally_a_b", metricName("a b"))
}
