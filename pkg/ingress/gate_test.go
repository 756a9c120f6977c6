package ingress

import (
	"testing"
	"time"
)

var baseTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestGate() *Gate {
	return NewGate(DefaultConfig(), NewSessionRegistry())
}

func TestGateAdmitsFirstUtterance(t *testing.T) {
	g := newTestGate()

	turn, rejection := g.Admit("s1", "what time is it", baseTime)
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection.Reason)
	}
	if turn == nil || turn.SessionID != "s1" || turn.RawText != "what time is it" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
}

func TestGateDedupWindow(t *testing.T) {
	g := newTestGate()

	if _, rejection := g.Admit("s1", "Turn on the lights!", baseTime); rejection != nil {
		t.Fatalf("first utterance rejected: %v", rejection.Reason)
	}

	// Same text, different surface form, inside the window.
	_, rejection := g.Admit("s1", "turn on the lights", baseTime.Add(500*time.Millisecond))
	if rejection == nil || rejection.Reason != RejectDuplicate {
		t.Fatalf("expected duplicate rejection, got %+v", rejection)
	}

	// Past the window the same text is admitted again; spacing satisfies
	// the rate limiter too.
	if _, rejection := g.Admit("s1", "turn on the lights", baseTime.Add(3*time.Second)); rejection != nil {
		t.Fatalf("utterance after window rejected: %v", rejection.Reason)
	}
}

func TestGateRateLimit(t *testing.T) {
	g := newTestGate()

	if _, rejection := g.Admit("s1", "first thing", baseTime); rejection != nil {
		t.Fatalf("first utterance rejected: %v", rejection.Reason)
	}

	// Different text, too soon.
	_, rejection := g.Admit("s1", "second thing", baseTime.Add(800*time.Millisecond))
	if rejection == nil || rejection.Reason != RejectRateLimited {
		t.Fatalf("expected rate-limit rejection, got %+v", rejection)
	}

	if _, rejection := g.Admit("s1", "second thing", baseTime.Add(1500*time.Millisecond)); rejection != nil {
		t.Fatalf("spaced utterance rejected: %v", rejection.Reason)
	}
}

func TestGateSessionsAreIndependent(t *testing.T) {
	g := newTestGate()

	if _, rejection := g.Admit("s1", "hello", baseTime); rejection != nil {
		t.Fatalf("s1 rejected: %v", rejection.Reason)
	}
	if _, rejection := g.Admit("s2", "hello", baseTime.Add(10*time.Millisecond)); rejection != nil {
		t.Fatalf("s2 rejected despite separate session: %v", rejection.Reason)
	}
}

func TestGateRejectionMutatesNoState(t *testing.T) {
	g := newTestGate()

	if _, rejection := g.Admit("s1", "one", baseTime); rejection != nil {
		t.Fatalf("first utterance rejected: %v", rejection.Reason)
	}
	// Rate-limited rejection must not reset the dispatch clock.
	if _, rejection := g.Admit("s1", "two", baseTime.Add(600*time.Millisecond)); rejection == nil {
		t.Fatal("expected rate-limit rejection")
	}
	if _, rejection := g.Admit("s1", "two", baseTime.Add(1300*time.Millisecond)); rejection != nil {
		t.Fatalf("admission should be measured from the last admit, got %v", rejection.Reason)
	}
}
