package topology

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/meshwatch/meshwatch/internal/ws"
)

// Broadcaster is the subscriber-facing side of the push registry.
type Broadcaster interface {
	Count() int
	Broadcast(env ws.Envelope)
}

// Watcher periodically rebuilds the mesh graph and broadcasts a
// topology_update when it changes. Clients fetch the initial graph over
// REST, so only deltas need the push channel.
type Watcher struct {
	svc      *Service
	reg      Broadcaster
	interval time.Duration

	last string // fingerprint of the previously broadcast graph
}

// NewWatcher creates a Watcher refreshing every interval.
func NewWatcher(svc *Service, reg Broadcaster, interval time.Duration) *Watcher {
	return &Watcher{svc: svc, reg: reg, interval: interval}
}

// Run starts the refresh loop. It rebuilds the graph immediately, then on
// every tick. Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.refresh(ctx)
		}
	}
}

// refresh rebuilds the graph and broadcasts it if it differs from the last
// one seen. Query failures are logged and retried on the next tick.
func (w *Watcher) refresh(ctx context.Context) {
	g, err := w.svc.Graph(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("topology: refresh failed", "err", err)
		return
	}

	fp, err := json.Marshal(g)
	if err != nil {
		slog.Error("topology: graph not serializable", "err", err)
		return
	}
	if string(fp) == w.last {
		return
	}
	w.last = string(fp)

	if w.reg.Count() == 0 {
		return
	}
	w.reg.Broadcast(ws.TopologyUpdate(g))
	slog.Debug("topology: update broadcast",
		"nodes", len(g.Nodes), "edges", len(g.Edges))
}
