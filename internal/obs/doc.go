// Package obs holds meshwatch's own Prometheus instrumentation: request
// counters and latency histograms for the REST surface, gauges and counters
// for the push channel and the collector loop, and the /metrics exposition
// handler. Collectors are registered on the default registry via promauto.
//
// Instrument must not wrap handlers that hijack the connection (the WebSocket
// endpoint) — the recorder does not implement http.Hijacker.
package obs
