package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "thingvault"

// Command results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Session registry metrics
	GCEvictions *prometheus.CounterVec
	GCRuns      prometheus.Counter
}

// NewRegistry creates a registry with the thingvault metrics and the
// standard Go and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by command and result",
		}, []string{"command", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		GCEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_evictions_total",
			Help:      "Session entities evicted from memory, by kind",
		}, []string{"kind"}),
		GCRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_runs_total",
			Help:      "Eviction sweeps run",
		}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.CommandsTotal,
		r.CommandDuration,
		r.GCEvictions,
		r.GCRuns,
	)
	return r
}

// Registerer exposes the underlying registry for components that own
// their metrics, such as the badger backend.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Gatherer returns the registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// ObserveCommand records one handled command.
func (r *Registry) ObserveCommand(command string, ok bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	result := ResultOK
	if !ok {
		result = ResultError
	}
	r.CommandsTotal.WithLabelValues(command, result).Inc()
	r.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObserveGC records one eviction sweep.
func (r *Registry) ObserveGC(storages, apps, repositories int) {
	if r == nil {
		return
	}
	r.GCRuns.Inc()
	r.GCEvictions.WithLabelValues(KindStorage).Add(float64(storages))
	r.GCEvictions.WithLabelValues(KindApp).Add(float64(apps))
	r.GCEvictions.WithLabelValues(KindRepository).Add(float64(repositories))
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
