package promql

import (
	"context"
	"time"
)

// PromQL for the mesh-wide traffic overview. Istio standard metrics for
// request volume and latency, Envoy cluster stats for live connections.
const (
	queryRequestRate = `sum(rate(istio_requests_total[5m]))`
	queryErrorRate   = `sum(rate(istio_requests_total{response_code=~"5.."}[5m])) / sum(rate(istio_requests_total[5m])) * 100`
	queryLatencyP50  = `histogram_quantile(0.50, sum(rate(istio_request_duration_milliseconds_bucket[5m])) by (le))`
	queryLatencyP95  = `histogram_quantile(0.95, sum(rate(istio_request_duration_milliseconds_bucket[5m])) by (le))`
	queryLatencyP99  = `histogram_quantile(0.99, sum(rate(istio_request_duration_milliseconds_bucket[5m])) by (le))`
	queryActiveConns = `sum(envoy_cluster_upstream_cx_active)`
)

// Overview is one point-in-time summary of mesh traffic. Latencies are in
// milliseconds, the error rate is a percentage, the request rate is per
// second. Fields with no backing series are zero.
type Overview struct {
	RequestRate       float64
	ErrorRate         float64
	P50Latency        float64
	P95Latency        float64
	P99Latency        float64
	ActiveConnections float64
}

// MeshOverview runs the overview queries and assembles the result. The first
// failing query aborts the call; the caller decides whether that is fatal
// (the collector treats it as recoverable).
func (c *Client) MeshOverview(ctx context.Context) (Overview, error) {
	var (
		o   Overview
		err error
	)
	fields := []struct {
		dst   *float64
		query string
	}{
		{&o.RequestRate, queryRequestRate},
		{&o.ErrorRate, queryErrorRate},
		{&o.P50Latency, queryLatencyP50},
		{&o.P95Latency, queryLatencyP95},
		{&o.P99Latency, queryLatencyP99},
		{&o.ActiveConnections, queryActiveConns},
	}
	for _, f := range fields {
		if *f.dst, err = c.queryScalar(ctx, f.query); err != nil {
			return Overview{}, err
		}
	}
	return o, nil
}

// Fetch implements the collector's source contract: it returns the mesh
// overview as the opaque snapshot map carried inside metrics_update
// envelopes.
func (c *Client) Fetch(ctx context.Context) (map[string]any, error) {
	o, err := c.MeshOverview(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"request_rate":       o.RequestRate,
		"error_rate":         o.ErrorRate,
		"p50_latency":        o.P50Latency,
		"p95_latency":        o.P95Latency,
		"p99_latency":        o.P99Latency,
		"active_connections": o.ActiveConnections,
	}, nil
}
