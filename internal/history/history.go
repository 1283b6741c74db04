package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sample is one collected metrics snapshot together with the time it was
// recorded.
type Sample struct {
	RecordedAt time.Time      `json:"recorded_at"`
	Data       map[string]any `json:"data"`
}

// Buffer is a thread-safe in-memory buffer of recent metrics snapshots.
// Samples older than the configured TTL are dropped; a background goroutine
// (Run) evicts them periodically, and a hard cap bounds memory when the
// collect interval is short.
type Buffer struct {
	mu      sync.RWMutex
	samples []Sample
	ttl     time.Duration
	max     int
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Buffer holding at most max samples, each retained for ttl.
func New(ttl time.Duration, max int) *Buffer {
	return &Buffer{
		ttl: ttl,
		max: max,
		now: time.Now,
	}
}

// Append records a snapshot at the current time. The oldest sample is
// dropped when the buffer is at capacity. Callers must not modify data
// after calling Append.
func (b *Buffer) Append(data map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, Sample{RecordedAt: b.now(), Data: data})
	if len(b.samples) > b.max {
		b.samples = b.samples[len(b.samples)-b.max:]
	}
}

// List returns all samples recorded within the TTL, oldest first. Stale
// samples that have not yet been evicted are excluded.
func (b *Buffer) List() []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cutoff := b.now().Add(-b.ttl)
	out := make([]Sample, 0, len(b.samples))
	for _, s := range b.samples {
		if s.RecordedAt.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the total number of samples currently held, including stale ones.
func (b *Buffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Evict removes samples older than now minus TTL. It returns the number of
// samples removed.
func (b *Buffer) Evict(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := now.Add(-b.ttl)
	keep := 0
	for keep < len(b.samples) && !b.samples[keep].RecordedAt.After(cutoff) {
		keep++
	}
	if keep == 0 {
		return 0
	}
	b.samples = append([]Sample(nil), b.samples[keep:]...)
	return keep
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) so stale samples are dropped promptly. Run
// blocks until ctx is cancelled.
func (b *Buffer) Run(ctx context.Context) {
	interval := b.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := b.Evict(now); n > 0 {
				slog.Debug("history: evicted stale samples", "count", n)
			}
		}
	}
}
