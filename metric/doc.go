// Package metric owns the Prometheus registry for the process.
//
// MetricsRegistry wraps a private prometheus.Registry (no global state) with
// the Go runtime and process collectors plus a small set of process-level
// metrics: index loads, health, janitor runs and the NATS connection.
// Packages that own collectors, such as patterncache and pkg/cache, register
// them through the MetricsRegistrar methods, keyed by service and metric name
// so that duplicates are reported as invalid errors instead of panics.
//
// Server exposes the registry at /metrics and a JSON /health endpoint.
package metric
