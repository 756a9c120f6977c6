package ingress

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxhollow/cortex/pkg/turns"
)

// RejectReason explains why an utterance did not create a Turn. A rejection
// is a deliberate short-circuit, not an error: the caller must not surface
// it to the user.
type RejectReason string

const (
	RejectDuplicate   RejectReason = "duplicate"
	RejectRateLimited RejectReason = "rate_limited"
)

// Rejection is returned instead of a Turn when the gate short-circuits.
type Rejection struct {
	Reason RejectReason
}

// Config carries the gate's timing knobs.
type Config struct {
	// DedupWindow suppresses identical (session, text) pairs arriving
	// within this span, protecting against repeated/overlapping audio
	// segments.
	DedupWindow time.Duration
	// MinInterval is the minimum spacing between admitted utterances of
	// one session, independent of dedup.
	MinInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		DedupWindow: 2 * time.Second,
		MinInterval: 1200 * time.Millisecond,
	}
}

// Gate is the ingress classifier and admission check. It is synchronous and
// non-blocking by contract; the only shared state it touches is the session
// registry, whose check-and-set is atomic.
type Gate struct {
	cfg        Config
	classifier *Classifier
	registry   *SessionRegistry
}

func NewGate(cfg Config, registry *SessionRegistry) *Gate {
	if registry == nil {
		registry = NewSessionRegistry()
	}
	return &Gate{cfg: cfg, classifier: NewClassifier(), registry: registry}
}

// Admit classifies the utterance and applies dedup and rate limiting. On
// rejection no Turn is created and no session state is mutated.
func (g *Gate) Admit(sessionID, rawText string, now time.Time) (*turns.Turn, *Rejection) {
	intent := g.classifier.Classify(rawText)

	if reason := g.registry.Admit(sessionID, normalize(rawText), now, g.cfg.DedupWindow, g.cfg.MinInterval); reason != "" {
		log.Debug().
			Str("session_id", sessionID).
			Str("reason", string(reason)).
			Msg("utterance rejected at ingress")
		return nil, &Rejection{Reason: reason}
	}

	t := turns.NewTurn(sessionID, rawText, intent, now)
	log.Debug().
		Str("session_id", sessionID).
		Str("turn_id", t.ID).
		Str("category", string(intent.Category)).
		Bool("requires_tool", intent.RequiresTool).
		Bool("requires_confirmation", intent.RequiresConfirmation).
		Msg("turn admitted")
	return t, nil
}
