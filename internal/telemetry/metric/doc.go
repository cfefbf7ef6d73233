// Package metric provides Prometheus metrics for thingvault.
//
//   - prometheus.go: registry, command and GC instruments, HTTP handler
//   - collector.go: entity count gauges read at scrape time
//
// Metrics are exposed at /metrics in Prometheus format. All Registry
// methods are safe on a nil *Registry, so components can be built without
// metrics.
package metric
