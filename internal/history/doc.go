// Package history keeps a bounded, TTL-evicted buffer of recently collected
// metrics snapshots, backing the GET /api/v1/metrics/history endpoint.
package history
