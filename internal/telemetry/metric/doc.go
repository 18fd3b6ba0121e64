// Package metric provides Prometheus metrics for CredGate.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry and HTTP handler
//   - collector.go: Scrape-time collector for the live session count
//
// Metrics include:
//
//   - Login attempt counters (by result)
//   - Session lifecycle counters and the active session gauge
//   - Token validation counters
//   - HTTP request latency histograms
//   - Storage statistics (registered by the Badger engine)
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
