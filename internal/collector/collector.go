package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meshwatch/meshwatch/internal/obs"
	"github.com/meshwatch/meshwatch/internal/ws"
)

// Source produces one point-in-time snapshot per call. The collector treats
// the snapshot as opaque — it neither inspects nor reshapes it. A fetch error
// is recoverable: the collector logs it and retries on the next tick.
type Source interface {
	Fetch(ctx context.Context) (map[string]any, error)
}

// Broadcaster is the subscriber-facing side of the push registry.
// *ws.Registry satisfies it.
type Broadcaster interface {
	Count() int
	Broadcast(env ws.Envelope)
}

// Collector drives periodic collection: it polls a Source on a fixed interval
// and publishes each snapshot through a Broadcaster as a metrics_update
// envelope. It owns exactly one background goroutine between Start and Stop.
type Collector struct {
	source   Source
	reg      Broadcaster
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped Collector.
func New(src Source, reg Broadcaster, interval time.Duration) *Collector {
	return &Collector{
		source:   src,
		reg:      reg,
		interval: interval,
	}
}

// Start launches the collection loop and returns immediately; it does not
// wait for the first poll. Calling Start while running is a logged no-op, so
// at most one loop goroutine ever exists.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		slog.Warn("collector: already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.running = true
	c.cancel = cancel
	c.done = done

	go c.loop(ctx, done)
	slog.Info("collector: started", "interval", c.interval)
}

// Stop cancels the loop and blocks until its goroutine has fully terminated —
// no poll happens after Stop returns. Calling Stop while stopped is a no-op.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.running = false
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	cancel()
	<-done
	slog.Info("collector: stopped")
}

// Running reports whether the collection loop is active.
func (c *Collector) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// loop polls immediately, then on every tick until ctx is cancelled. The
// ticker makes the inter-poll sleep interruptible, so shutdown latency is
// bounded by one in-flight poll, not one full interval.
func (c *Collector) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(c.interval)
	defer t.Stop()

	c.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.collect(ctx)
		}
	}
}

// collect performs one poll-and-publish iteration. Errors never escape: a
// failed fetch is logged and the loop carries on at the next tick.
func (c *Collector) collect(ctx context.Context) {
	snap, err := c.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return // shutting down — not a fetch failure
		}
		obs.CollectorPolls.WithLabelValues("error").Inc()
		slog.Error("collector: fetch failed", "err", err)
		return
	}
	obs.CollectorPolls.WithLabelValues("ok").Inc()

	if c.reg.Count() == 0 {
		return // nobody is listening
	}
	c.reg.Broadcast(ws.MetricsUpdate(snap))
	slog.Debug("collector: snapshot broadcast", "connections", c.reg.Count())
}
