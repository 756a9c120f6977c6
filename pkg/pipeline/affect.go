package pipeline

import (
	"sync"

	"github.com/voxhollow/cortex/pkg/turns"
)

// AffectTracker keeps a coarse valence/arousal pair for the assistant,
// nudged by each finalized turn and decayed toward neutral. The snapshot
// rides into working memory so the generator can match the conversation's
// tone. It is deliberately crude; it only needs to distinguish "things are
// going well" from "the user keeps cancelling and streams keep breaking".
type AffectTracker struct {
	mu      sync.Mutex
	valence float64
	arousal float64
}

func NewAffectTracker() *AffectTracker {
	return &AffectTracker{}
}

// Observe folds a finalized turn into the affect state.
func (a *AffectTracker) Observe(t *turns.Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.valence *= 0.9
	a.arousal *= 0.9

	switch t.Intent.Category {
	case turns.CategoryChitchat, turns.CategoryConfirm:
		a.valence += 0.1
	case turns.CategoryCancel:
		a.valence -= 0.15
	case turns.CategoryAction:
		a.arousal += 0.1
	}
	if t.StreamErr != "" {
		a.valence -= 0.2
		a.arousal += 0.15
	}
	if len(t.ToolInvocations) > 0 {
		a.arousal += 0.05
	}

	a.valence = clamp(a.valence)
	a.arousal = clamp(a.arousal)
}

// Snapshot returns the current state in working-memory shape.
func (a *AffectTracker) Snapshot() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{
		"valence": a.valence,
		"arousal": a.arousal,
		"mood":    moodLabel(a.valence, a.arousal),
	}
}

func moodLabel(valence, arousal float64) string {
	switch {
	case valence > 0.3:
		return "upbeat"
	case valence < -0.3 && arousal > 0.3:
		return "strained"
	case valence < -0.3:
		return "subdued"
	case arousal > 0.5:
		return "alert"
	default:
		return "neutral"
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
