package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Entity kinds used as label values.
const (
	KindRepository = "repository"
	KindApp        = "app"
	KindStorage    = "storage"
)

// EntityCounts reports the number of cached entities per kind.
type EntityCounts func() map[string]int

// Collector reports cached entity counts at scrape time.
type Collector struct {
	counts EntityCounts
	desc   *prometheus.Desc
}

// NewCollector creates a collector reading counts on every scrape.
func NewCollector(counts EntityCounts) *Collector {
	return &Collector{
		counts: counts,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "entities"),
			"Session entities held in memory, by kind",
			[]string{"kind"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for kind, n := range c.counts() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), kind)
	}
}

// RegisterEntities adds an entity count collector to the registry.
func (r *Registry) RegisterEntities(counts EntityCounts) error {
	if r == nil {
		return nil
	}
	return r.reg.Register(NewCollector(counts))
}
