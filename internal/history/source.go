package history

import (
	"context"

	"github.com/meshwatch/meshwatch/internal/collector"
)

// Source decorates a collector source with history recording: every snapshot
// fetched from the inner source is appended to the buffer before it is handed
// to the collector, unchanged.
type Source struct {
	inner collector.Source
	buf   *Buffer
}

// NewSource wraps inner with recording into buf.
func NewSource(inner collector.Source, buf *Buffer) *Source {
	return &Source{inner: inner, buf: buf}
}

// Fetch implements collector.Source. Fetch errors pass straight through and
// are not recorded.
func (s *Source) Fetch(ctx context.Context) (map[string]any, error) {
	snap, err := s.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.buf.Append(snap)
	return snap, nil
}
