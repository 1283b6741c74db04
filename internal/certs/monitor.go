package certs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meshwatch/meshwatch/internal/config"
	"github.com/meshwatch/meshwatch/internal/ws"
)

// Broadcaster is the subscriber-facing side of the push registry.
type Broadcaster interface {
	Count() int
	Broadcast(env ws.Envelope)
}

// Monitor re-checks the configured TLS endpoints on an interval, caches the
// inventory for the REST API, and broadcasts cert_expiry_warning envelopes
// for certificates at or past the warning threshold.
type Monitor struct {
	cfg config.CertsConfig
	reg Broadcaster

	mu        sync.RWMutex
	inventory []Status
}

// NewMonitor creates a Monitor from the certificate configuration.
func NewMonitor(cfg config.CertsConfig, reg Broadcaster) *Monitor {
	return &Monitor{cfg: cfg, reg: reg}
}

// Run starts the check loop: one pass immediately, then on every tick.
// Run blocks until ctx is cancelled. With no configured endpoints it returns
// straight away.
func (m *Monitor) Run(ctx context.Context) {
	if len(m.cfg.Endpoints) == 0 {
		slog.Info("certs: no endpoints configured — monitor idle")
		return
	}

	t := time.NewTicker(m.cfg.CheckInterval)
	defer t.Stop()

	m.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.refresh(ctx)
		}
	}
}

// refresh checks every endpoint, replaces the cached inventory, and pushes
// warnings for anything expiring, expired, or unreachable.
func (m *Monitor) refresh(ctx context.Context) {
	out := make([]Status, 0, len(m.cfg.Endpoints))
	for _, ep := range m.cfg.Endpoints {
		st := Check(ctx, ep, m.cfg.InsecureSkipVerify, m.cfg.WarnDays)
		if st == nil {
			continue
		}
		out = append(out, *st)
	}

	m.mu.Lock()
	m.inventory = out
	m.mu.Unlock()

	for _, st := range out {
		switch st.Status {
		case "expiring", "expired":
			slog.Warn("certs: certificate near expiry",
				"endpoint", st.Endpoint,
				"status", st.Status,
				"days_left", st.DaysLeft,
			)
			if m.reg.Count() > 0 {
				m.reg.Broadcast(ws.CertExpiryWarning(st))
			}
		case "unreachable":
			slog.Warn("certs: endpoint unreachable", "endpoint", st.Endpoint)
		}
	}
}

// Inventory returns a copy of the most recent check results.
func (m *Monitor) Inventory() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, len(m.inventory))
	copy(out, m.inventory)
	return out
}

// Expiring returns the certificates expiring within days (including already
// expired ones).
func (m *Monitor) Expiring(days int) []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0)
	for _, st := range m.inventory {
		if st.Status == "unreachable" {
			continue
		}
		if st.DaysLeft <= days {
			out = append(out, st)
		}
	}
	return out
}
