// Package promql wraps the Prometheus HTTP query API. Client executes
// instant queries and decodes results into prometheus/common/model sample
// vectors; MeshOverview assembles the mesh-wide traffic summary (request
// rate, error rate, latency percentiles, active connections) from Istio and
// Envoy metrics. Fetch adapts the overview to the collector's opaque
// snapshot contract.
package promql
