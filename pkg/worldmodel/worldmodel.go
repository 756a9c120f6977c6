package worldmodel

import (
	"context"
	"sync"
	"time"

	"github.com/voxhollow/cortex/pkg/turns"
)

// Model exposes the live world snapshot and its synchronous cached
// fallback. Live may block and is always called under a caller-owned
// timeout; Cached never fails and returns instantly.
type Model interface {
	Live(ctx context.Context) (turns.WorldSnapshot, error)
	Cached() turns.WorldSnapshot
}

// FetchFunc produces a fresh snapshot from whatever feeds the world model
// (sensors, agent telemetry, external APIs).
type FetchFunc func(ctx context.Context) (map[string]any, error)

// CachingModel wraps a FetchFunc and retains the last good snapshot as the
// designated fallback. The zero snapshot (empty fact map) is served before
// the first successful fetch so Cached never fails.
type CachingModel struct {
	fetch FetchFunc

	mu   sync.RWMutex
	last turns.WorldSnapshot
}

func NewCachingModel(fetch FetchFunc) *CachingModel {
	return &CachingModel{
		fetch: fetch,
		last: turns.WorldSnapshot{
			Facts:      map[string]any{},
			CapturedAt: time.Time{},
			Cached:     true,
		},
	}
}

// NewStaticModel returns a model whose live snapshot is the fixed fact map.
// Used by tests and by the CLI when no world feed is configured.
func NewStaticModel(facts map[string]any) *CachingModel {
	if facts == nil {
		facts = map[string]any{}
	}
	return NewCachingModel(func(ctx context.Context) (map[string]any, error) {
		return facts, nil
	})
}

func (m *CachingModel) Live(ctx context.Context) (turns.WorldSnapshot, error) {
	facts, err := m.fetch(ctx)
	if err != nil {
		return turns.WorldSnapshot{}, err
	}
	snap := turns.WorldSnapshot{Facts: facts, CapturedAt: time.Now()}

	m.mu.Lock()
	m.last = snap
	m.last.Cached = true
	m.mu.Unlock()

	return snap, nil
}

func (m *CachingModel) Cached() turns.WorldSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

var _ Model = (*CachingModel)(nil)
