package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/meshwatch/meshwatch/internal/obs"
)

// Conn is the transport-level write surface of one subscriber connection.
// Implementations must not block indefinitely in WriteEnvelope: a slow
// subscriber should fail its own write, not stall the fan-out.
type Conn interface {
	// WriteEnvelope queues one serialized envelope for delivery.
	WriteEnvelope(data []byte) error

	// Close releases the connection. Must be idempotent.
	Close() error
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	ActiveConnections int   `json:"active_connections"`
	TotalMessagesSent int64 `json:"total_messages_sent"`
}

// connState is the registry's per-connection bookkeeping. Counters live here,
// not on the connection, and are discarded at unregistration.
type connState struct {
	connectedAt  time.Time
	messagesSent int64
}

// Registry tracks live subscriber connections and fans envelopes out to them.
// A failed write unregisters the offending connection and never disturbs
// delivery to the others. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[Conn]*connState
	now   func() time.Time // injectable for deterministic tests
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[Conn]*connState),
		now:   time.Now,
	}
}

// Register adds c to the live set. The transport accept handshake has already
// happened by the time a Conn exists, so Register cannot fail. Registering an
// already-registered connection is a no-op.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	if _, ok := r.conns[c]; !ok {
		r.conns[c] = &connState{connectedAt: r.now()}
	}
	n := len(r.conns)
	r.mu.Unlock()

	obs.WSConnections.Set(float64(n))
	slog.Info("ws: client connected", "total_connections", n)
}

// Unregister removes c from the live set and closes it. Calling it for a
// connection that was already removed is a no-op, so the failed-send path and
// the transport's own disconnect path may both call it.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()
	_, ok := r.conns[c]
	if ok {
		delete(r.conns, c)
	}
	n := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return
	}
	c.Close() //nolint:errcheck
	obs.WSConnections.Set(float64(n))
	slog.Info("ws: client disconnected", "total_connections", n)
}

// Send delivers env to a single connection. A write failure is handled here:
// it is logged and c is unregistered, so the caller never needs to retry or
// re-check liveness.
func (r *Registry) Send(c Conn, env Envelope) {
	data, err := env.encode()
	if err != nil {
		slog.Error("ws: envelope not serializable", "type", env.Type, "err", err)
		return
	}
	if !r.deliver(c, data) {
		r.Unregister(c)
	}
}

// Broadcast delivers env to every connection live at the start of the call.
// The envelope is serialized once and the live set is copied up front, so
// concurrent register/unregister calls never mutate the in-flight iteration.
// Connections that fail are unregistered after the fan-out completes.
func (r *Registry) Broadcast(env Envelope) {
	data, err := env.encode()
	if err != nil {
		slog.Error("ws: envelope not serializable — dropping broadcast",
			"type", env.Type, "err", err)
		return
	}

	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	var failed []Conn
	for _, c := range targets {
		if !r.deliver(c, data) {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		r.Unregister(c)
	}

	obs.Broadcasts.WithLabelValues(string(env.Type)).Inc()
	slog.Debug("ws: broadcast complete",
		"type", env.Type,
		"delivered", len(targets)-len(failed),
		"failed", len(failed),
	)
}

// deliver writes pre-serialized bytes to c and updates its counter.
// Returns false when the write failed and c should be unregistered.
func (r *Registry) deliver(c Conn, data []byte) bool {
	if err := c.WriteEnvelope(data); err != nil {
		obs.SendFailures.Inc()
		slog.Warn("ws: send failed", "err", err)
		return false
	}
	r.mu.Lock()
	if st, ok := r.conns[c]; ok {
		st.messagesSent++
	}
	r.mu.Unlock()
	return true
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Stats returns aggregate connection statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{ActiveConnections: len(r.conns)}
	for _, st := range r.conns {
		s.TotalMessagesSent += st.messagesSent
	}
	return s
}

// CloseAll closes and removes every live connection. Shutdown path.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	for c := range r.conns {
		c.Close() //nolint:errcheck
		delete(r.conns, c)
	}
	r.mu.Unlock()
	obs.WSConnections.Set(0)
}
