// Package topology derives the service mesh graph from traffic metrics: one
// PromQL aggregation over istio_requests_total yields the workloads (nodes),
// their observed traffic relationships (edges), and the namespaces they span.
// Watcher rebuilds the graph on an interval and pushes topology_update
// envelopes when it changes.
package topology
