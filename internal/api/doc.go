// Package api implements the REST surface of meshwatch: mesh traffic
// overview, topology graph, certificate inventory, active alerts, push
// channel statistics, and the liveness/readiness probes. APIKey provides
// optional static-key authentication for the /api/v1 routes.
package api
