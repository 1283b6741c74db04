// Package ws implements the real-time push channel for meshwatch.
//
// Registry tracks live WebSocket subscriber connections and fans envelopes
// out to them. A broadcast serializes the envelope once, iterates a stable
// snapshot of the live set, and unregisters failed connections after the
// pass — one dead subscriber never disturbs delivery to the others, and no
// lock is held across the fan-out.
//
// Handler is the transport endpoint: it upgrades HTTP connections (gorilla),
// registers them, and echoes inbound client messages back as "ack" envelopes.
// Per-client delivery runs through a buffered channel and a write pump, so a
// stalled peer fails its own write instead of blocking the broadcast.
//
// Message format sent to clients:
//
//	{
//	  "type":      "metrics_update" | "topology_update" | "alert" |
//	               "cert_expiry_warning" | "ack",
//	  "timestamp": "<RFC3339>",
//	  "severity":  "<only for alerts>",
//	  "data":      { /* type-specific payload */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The WebSocket endpoint is mounted at /ws by the server.
package ws
