package reporter

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tally"

// Collector exposes the reporter's last record as Prometheus gauges. It
// never aggregates on its own, so scrapes do not steal deltas from
// reset-on-read counters.
type Collector struct {
	r *Reporter
}

// NewCollector returns a collector over r.
func NewCollector(r *Reporter) *Collector {
	return &Collector{r: r}
}

// Describe sends nothing: the set of counters is only known at collect time.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	rec, ok := c.r.Last()
	if !ok {
		return
	}

	seen := make(map[string]struct{}, len(rec.Values))
	for _, v := range rec.Values {
		if v.NoData {
			continue
		}

		name := metricName(v.Name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		desc := prometheus.NewDesc(name, "tally "+v.Reading.Mode.String()+" counter "+v.Name, nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v.Number)
	}
}

// metricName maps a counter name onto the Prometheus metric name charset.
func metricName(name string) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte('_')

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	return b.String()
}
