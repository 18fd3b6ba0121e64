// Package metric provides Prometheus metrics for CredGate.
package metric

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes the live session count as a gauge that is read
// from storage on every scrape, so the value never drifts the way an
// incremented gauge would across restarts and GC sweeps.
type Collector struct {
	desc  *prometheus.Desc
	count func() float64
}

// NewCollector creates a collector that reads the live session count
// from fn on every scrape.
func NewCollector(fn func() float64) *Collector {
	return &Collector{
		desc: prometheus.NewDesc(
			"credgate_sessions_active",
			"Number of live sessions in storage.",
			nil, nil,
		),
		count: fn,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, c.count())
}

// RegisterSessionCount registers a live session count collector that
// reads from fn on every scrape.
func (r *Registry) RegisterSessionCount(fn func() float64) {
	if r == nil {
		return
	}
	r.reg.MustRegister(NewCollector(fn))
}
