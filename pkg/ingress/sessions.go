package ingress

import (
	"hash/fnv"
	"sync"
	"time"
)

// SessionRegistry owns the per-session dedup window and rate-limiter state.
// It is shared by every concurrent Turn of a session; check and update are
// performed under one lock so check-then-set cannot race. Tests inject a
// fresh registry per case instead of relying on ambient globals.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	dedup          map[uint64]time.Time
	lastDispatchAt time.Time
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: map[string]*sessionState{}}
}

// Admit atomically checks the dedup window and rate limiter for the session
// and, when admitted, records the dispatch. The returned reason is empty on
// admission.
func (r *SessionRegistry) Admit(sessionID, normalizedText string, now time.Time, window, minInterval time.Duration) RejectReason {
	key := dedupKey(sessionID, normalizedText)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		s = &sessionState{dedup: map[uint64]time.Time{}}
		r.sessions[sessionID] = s
	}

	for k, seen := range s.dedup {
		if now.Sub(seen) >= window {
			delete(s.dedup, k)
		}
	}

	if seen, ok := s.dedup[key]; ok && now.Sub(seen) < window {
		return RejectDuplicate
	}
	if !s.lastDispatchAt.IsZero() && now.Sub(s.lastDispatchAt) < minInterval {
		return RejectRateLimited
	}

	s.dedup[key] = now
	s.lastDispatchAt = now
	return ""
}

func dedupKey(sessionID, normalizedText string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sessionID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(normalizedText))
	return h.Sum64()
}
