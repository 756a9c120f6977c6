package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/voxhollow/cortex/pkg/turns"
)

// InMemoryStore is a thread-safe Store for tests and for running without a
// database. Recall is naive substring scoring over stored fragments and
// turn responses; real vector indexing lives behind the same interface in
// an external service.
type InMemoryStore struct {
	mu        sync.RWMutex
	working   map[string]map[string]any
	fragments map[string][]fragment
	turns     []*turns.Turn
}

type fragment struct {
	speaker string
	text    string
	at      time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		working:   map[string]map[string]any{},
		fragments: map[string][]fragment{},
	}
}

// SetWorking replaces the working-memory map for a session.
func (s *InMemoryStore) SetWorking(sessionID string, m map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working[sessionID] = m
}

func (s *InMemoryStore) LoadWorking(ctx context.Context, sessionID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]any{}
	for k, v := range s.working[sessionID] {
		out[k] = v
	}
	frags := s.fragments[sessionID]
	if n := len(frags); n > 0 {
		recent := make([]string, 0, 5)
		for i := n - 1; i >= 0 && len(recent) < 5; i-- {
			recent = append(recent, frags[i].speaker+": "+frags[i].text)
		}
		out["recent_fragments"] = recent
	}
	return out, nil
}

func (s *InMemoryStore) RecallSemantic(ctx context.Context, query string, limit int) ([]turns.RecalledMemory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	scored := []turns.RecalledMemory{}
	for _, t := range s.turns {
		text := t.RawText + " " + t.ResponseText
		if score := overlapScore(text, terms); score > 0 {
			scored = append(scored, turns.RecalledMemory{
				Content: t.ResponseText,
				Layer:   "episodic",
				Score:   score,
			})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *InMemoryStore) AppendFragment(ctx context.Context, sessionID, speaker, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments[sessionID] = append(s.fragments[sessionID], fragment{speaker: speaker, text: text, at: time.Now()})
	return nil
}

func (s *InMemoryStore) PersistTurn(ctx context.Context, t *turns.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t.Clone())
	return nil
}

// Fragments returns the mirrored fragments for a session, oldest first.
func (s *InMemoryStore) Fragments(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.fragments[sessionID]))
	for _, f := range s.fragments[sessionID] {
		out = append(out, f.text)
	}
	return out
}

// PersistedTurns returns copies of all persisted turns.
func (s *InMemoryStore) PersistedTurns() []*turns.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*turns.Turn, 0, len(s.turns))
	for _, t := range s.turns {
		out = append(out, t.Clone())
	}
	return out
}

func overlapScore(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	text = strings.ToLower(text)
	hits := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
