package alerts

import (
	"context"

	"github.com/meshwatch/meshwatch/internal/collector"
)

// Source decorates a collector source with alert evaluation: every snapshot
// fetched from the inner source passes through the rule engine before it is
// handed to the collector, unchanged. The collector stays payload-agnostic;
// alerting hangs off the data path instead.
type Source struct {
	inner  collector.Source
	engine *Engine
}

// NewSource wraps inner with evaluation by e.
func NewSource(inner collector.Source, e *Engine) *Source {
	return &Source{inner: inner, engine: e}
}

// Fetch implements collector.Source. Fetch errors pass straight through and
// are not evaluated.
func (s *Source) Fetch(ctx context.Context) (map[string]any, error) {
	snap, err := s.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.engine.Evaluate(snap)
	return snap, nil
}
